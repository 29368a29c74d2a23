package models

import "time"

// Customer: 客戶主檔，以業務代號 code 為主鍵。
// 舊資料庫用 cno/compy 欄位，database.Init 啟動時會改名成 code/name，
// 程式內一律用標準名稱。
type Customer struct {
	Code          string    `gorm:"primaryKey;size:50" json:"code"`
	Name          string    `gorm:"size:200;not null" json:"name"`
	ContactPerson string    `gorm:"size:100" json:"contact_person"`
	Tel1          string    `gorm:"size:50" json:"tel1"`
	Tel11         string    `gorm:"size:50" json:"tel11"`
	Tel12         string    `gorm:"size:50" json:"tel12"`
	Addr          string    `gorm:"size:255" json:"addr"`
	Notes         string    `gorm:"size:500" json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
