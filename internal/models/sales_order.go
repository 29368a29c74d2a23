package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SalesOrder: 銷貨單單頭。
type SalesOrder struct {
	ID           string           `gorm:"primaryKey;size:36" json:"id"`
	OrderNo      string           `gorm:"size:50;uniqueIndex;not null" json:"order_no"`
	CustomerCode *string          `gorm:"size:50;index" json:"customer_code"`
	Customer     *Customer        `gorm:"foreignKey:CustomerCode;references:Code" json:"customer,omitempty"`
	OrderDate    time.Time        `gorm:"not null" json:"order_date"`
	TotalAmount  float64          `gorm:"not null;default:0" json:"total_amount"`
	Status       OrderStatus      `gorm:"size:20;not null;default:completed" json:"status"`
	IsPaid       bool             `gorm:"not null;default:false" json:"is_paid"`
	Notes        string           `gorm:"size:500" json:"notes"`
	Items        []SalesOrderItem `gorm:"foreignKey:SalesOrderID" json:"items,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (o *SalesOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// SalesOrderItem: 銷貨明細，掛在單頭 id 下（和進貨明細掛 order_no 不同，
// 兩邊沿用各自資料表既有的外鍵）。
type SalesOrderItem struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	SalesOrderID string    `gorm:"size:36;index;not null" json:"sales_order_id"`
	Code         string    `gorm:"size:50;index" json:"code"`
	Quantity     float64   `gorm:"not null" json:"quantity"`
	UnitPrice    float64   `gorm:"not null;default:0" json:"unit_price"`
	Subtotal     float64   `gorm:"not null;default:0" json:"subtotal"`
	CreatedAt    time.Time `json:"created_at"`
}

func (i *SalesOrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
