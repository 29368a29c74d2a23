package models

import "time"

// Product: 商品主檔。code 為業務編號，同時是主鍵。
// Cost 是加權平均進貨成本，每次進貨收貨時重算（含運費分攤），不會被銷貨或刪單回溯。
type Product struct {
	Code             string    `gorm:"primaryKey;size:50" json:"code"`
	Name             string    `gorm:"size:200;not null" json:"name"`
	Spec             string    `gorm:"size:200" json:"spec"`
	Unit             string    `gorm:"size:20" json:"unit"` // 個、箱、組…
	Category         string    `gorm:"size:100" json:"category"`
	Cost             float64   `gorm:"not null;default:0" json:"cost"`
	Price            float64   `gorm:"not null;default:0" json:"price"`
	SalePrice        *float64  `json:"sale_price"` // 特價，null 表示沒有
	StockQty         float64   `gorm:"not null;default:0" json:"stock_qty"`
	PurchaseQtyTotal float64   `gorm:"not null;default:0" json:"purchase_qty_total"` // 累計進貨量
	SafetyStock      float64   `gorm:"not null;default:0" json:"safety_stock"`       // 安全庫存
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
