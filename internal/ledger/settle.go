package ledger

import (
	"errors"
	"fmt"

	"ledger-backend/internal/models"

	"gorm.io/gorm"
)

// 一鍵沖帳：把某個供應商/客戶所有未結清的單一次標成已付，
// 並逐單對齊影子紀錄。整段在呼叫端的 transaction 裡跑，
// 任何一張單失敗就整批退回，不會只沖到一半。

// BatchSettlePayables: supplierID 為空字串表示沖「未指定供應商」的單。
// 回傳沖掉的單數。
func BatchSettlePayables(db *gorm.DB, supplierID string) (int, error) {
	// 作廢單不進沖帳範圍
	query := db.Model(&models.PurchaseOrder{}).
		Where("status <> ?", models.OrderStatusCancelled)
	if supplierID == "" {
		query = query.Where("supplier_id IS NULL")
	} else {
		query = query.Where("supplier_id = ?", supplierID)
	}

	var orders []models.PurchaseOrder
	if err := query.Find(&orders).Error; err != nil {
		return 0, fmt.Errorf("讀取進貨單失敗: %w", err)
	}

	settled := 0
	for i := range orders {
		order := &orders[i]
		outstanding, err := payableOutstanding(db, order)
		if err != nil {
			return 0, err
		}
		if outstanding <= 0 {
			continue
		}

		if err := db.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).
			Update("is_paid", true).Error; err != nil {
			return 0, fmt.Errorf("無法更新進貨付款狀態: %w", err)
		}
		order.IsPaid = true

		if err := SyncPayable(db, order, true); err != nil {
			return 0, fmt.Errorf("進貨單 %s: %w", order.OrderNo, err)
		}
		settled++
	}
	return settled, nil
}

// BatchSettleReceivables: 客戶側的一鍵沖帳。
func BatchSettleReceivables(db *gorm.DB, customerCode string) (int, error) {
	query := db.Model(&models.SalesOrder{}).
		Where("status <> ?", models.OrderStatusCancelled)
	if customerCode == "" {
		query = query.Where("customer_code IS NULL")
	} else {
		query = query.Where("customer_code = ?", customerCode)
	}

	var orders []models.SalesOrder
	if err := query.Find(&orders).Error; err != nil {
		return 0, fmt.Errorf("讀取銷貨單失敗: %w", err)
	}

	settled := 0
	for i := range orders {
		order := &orders[i]
		outstanding, err := receivableOutstanding(db, order)
		if err != nil {
			return 0, err
		}
		if outstanding <= 0 {
			continue
		}

		if err := db.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("is_paid", true).Error; err != nil {
			return 0, fmt.Errorf("無法更新銷貨付款狀態: %w", err)
		}
		order.IsPaid = true

		if err := SyncReceivable(db, order, true); err != nil {
			return 0, fmt.Errorf("銷貨單 %s: %w", order.OrderNo, err)
		}
		settled++
	}
	return settled, nil
}

// 未付金額：有影子紀錄看影子紀錄，沒有就看單頭的 is_paid。
func payableOutstanding(db *gorm.DB, order *models.PurchaseOrder) (float64, error) {
	var shadow models.AccountsPayable
	err := db.Where("purchase_order_id = ?", order.ID).First(&shadow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if order.IsPaid {
			return 0, nil
		}
		return order.TotalAmount, nil
	}
	if err != nil {
		return 0, fmt.Errorf("讀取應付帳款失敗: %w", err)
	}
	return shadow.AmountDue - shadow.PaidAmount, nil
}

func receivableOutstanding(db *gorm.DB, order *models.SalesOrder) (float64, error) {
	var shadow models.AccountsReceivable
	err := db.Where("sales_order_id = ?", order.ID).First(&shadow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if order.IsPaid {
			return 0, nil
		}
		return order.TotalAmount, nil
	}
	if err != nil {
		return 0, fmt.Errorf("讀取應收帳款失敗: %w", err)
	}
	return shadow.AmountDue - shadow.PaidAmount, nil
}
