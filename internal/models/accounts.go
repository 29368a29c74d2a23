package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LedgerStatus string

const (
	LedgerStatusUnpaid        LedgerStatus = "unpaid"
	LedgerStatusPartiallyPaid LedgerStatus = "partially_paid" // 型別保留，目前沒有流程會寫入
	LedgerStatusPaid          LedgerStatus = "paid"
)

// AccountsPayable: 應付帳款，對應一張進貨單的付款狀態（1:1 影子紀錄）。
// 不一定存在；列表畫面會用單頭即時補出虛擬紀錄。
type AccountsPayable struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	PurchaseOrderID string       `gorm:"size:36;uniqueIndex;not null" json:"purchase_order_id"`
	SupplierID      *string      `gorm:"size:36;index" json:"supplier_id"`
	AmountDue       float64      `gorm:"not null;default:0" json:"amount_due"`
	TotalAmount     float64      `gorm:"not null;default:0" json:"total_amount"`
	PaidAmount      float64      `gorm:"not null;default:0" json:"paid_amount"`
	DueDate         *time.Time   `json:"due_date"`
	Status          LedgerStatus `gorm:"size:20;not null;default:unpaid" json:"status"`
	Notes           string       `gorm:"size:500" json:"notes"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (a *AccountsPayable) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AccountsReceivable: 應收帳款，對應一張銷貨單。
type AccountsReceivable struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	SalesOrderID string       `gorm:"size:36;uniqueIndex;not null" json:"sales_order_id"`
	CustomerCode *string      `gorm:"size:50;index" json:"customer_code"`
	AmountDue    float64      `gorm:"not null;default:0" json:"amount_due"`
	TotalAmount  float64      `gorm:"not null;default:0" json:"total_amount"`
	PaidAmount   float64      `gorm:"not null;default:0" json:"paid_amount"`
	DueDate      *time.Time   `json:"due_date"`
	Status       LedgerStatus `gorm:"size:20;not null;default:unpaid" json:"status"`
	Notes        string       `gorm:"size:500" json:"notes"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (a *AccountsReceivable) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
