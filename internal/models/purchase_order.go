package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PurchaseOrder: 進貨單單頭。order_no 是對外的單號，id 才是主鍵。
type PurchaseOrder struct {
	ID          string              `gorm:"primaryKey;size:36" json:"id"`
	OrderNo     string              `gorm:"size:50;uniqueIndex;not null" json:"order_no"`
	SupplierID  *string             `gorm:"size:36;index" json:"supplier_id"`
	Supplier    *Supplier           `json:"supplier,omitempty"`
	OrderDate   time.Time           `gorm:"not null" json:"order_date"`
	TotalAmount float64             `gorm:"not null;default:0" json:"total_amount"` // 商品總額 + 運費（明細小計的快取）
	ShippingFee float64             `gorm:"not null;default:0" json:"shipping_fee"`
	Status      OrderStatus         `gorm:"size:20;not null;default:completed" json:"status"`
	IsPaid      bool                `gorm:"not null;default:false" json:"is_paid"`
	Notes       string              `gorm:"size:500" json:"notes"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:OrderNo;references:OrderNo" json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// PurchaseOrderItem: 進貨明細。掛在 order_no 下（沿用既有資料庫的鍵），
// code 指向商品編號。
type PurchaseOrderItem struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OrderNo   string    `gorm:"size:50;index;not null" json:"order_no"`
	Code      string    `gorm:"size:50;index" json:"code"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"not null;default:0" json:"unit_price"`
	Subtotal  float64   `gorm:"not null;default:0" json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
}

func (i *PurchaseOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
