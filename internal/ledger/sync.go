package ledger

import (
	"errors"
	"fmt"

	"ledger-backend/internal/models"

	"gorm.io/gorm"
)

// 應付/應收的影子紀錄同步。每張單對應最多一筆帳款，
// 跟著單頭的 is_paid 與 total_amount 走。全額付清或全額未付，
// partially_paid 只是型別上保留的狀態，這裡不會產生。

func ledgerStatus(paid bool) models.LedgerStatus {
	if paid {
		return models.LedgerStatusPaid
	}
	return models.LedgerStatusUnpaid
}

func paidAmount(paid bool, total float64) float64 {
	if paid {
		return total
	}
	return 0
}

// SyncPayable: 把應付帳款對齊進貨單。沒有就建、有就更新，不會長出第二筆。
func SyncPayable(db *gorm.DB, order *models.PurchaseOrder, paid bool) error {
	var existing models.AccountsPayable
	err := db.Where("purchase_order_id = ?", order.ID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		due := order.OrderDate
		record := models.AccountsPayable{
			PurchaseOrderID: order.ID,
			SupplierID:      order.SupplierID,
			AmountDue:       order.TotalAmount,
			TotalAmount:     order.TotalAmount,
			PaidAmount:      paidAmount(paid, order.TotalAmount),
			DueDate:         &due,
			Status:          ledgerStatus(paid),
		}
		if err := db.Create(&record).Error; err != nil {
			return fmt.Errorf("同步應付帳款失敗: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("讀取應付帳款失敗: %w", err)
	}

	updates := map[string]any{
		"supplier_id":  order.SupplierID,
		"amount_due":   order.TotalAmount,
		"total_amount": order.TotalAmount,
		"paid_amount":  paidAmount(paid, order.TotalAmount),
		"status":       ledgerStatus(paid),
	}
	if err := db.Model(&models.AccountsPayable{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新應付帳款失敗: %w", err)
	}
	return nil
}

// SyncReceivable: 應收帳款版本，邏輯同上。
func SyncReceivable(db *gorm.DB, order *models.SalesOrder, paid bool) error {
	var existing models.AccountsReceivable
	err := db.Where("sales_order_id = ?", order.ID).First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		due := order.OrderDate
		record := models.AccountsReceivable{
			SalesOrderID: order.ID,
			CustomerCode: order.CustomerCode,
			AmountDue:    order.TotalAmount,
			TotalAmount:  order.TotalAmount,
			PaidAmount:   paidAmount(paid, order.TotalAmount),
			DueDate:      &due,
			Status:       ledgerStatus(paid),
		}
		if err := db.Create(&record).Error; err != nil {
			return fmt.Errorf("同步應收帳款失敗: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("讀取應收帳款失敗: %w", err)
	}

	updates := map[string]any{
		"customer_code": order.CustomerCode,
		"amount_due":    order.TotalAmount,
		"total_amount":  order.TotalAmount,
		"paid_amount":   paidAmount(paid, order.TotalAmount),
		"status":        ledgerStatus(paid),
	}
	if err := db.Model(&models.AccountsReceivable{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新應收帳款失敗: %w", err)
	}
	return nil
}

// SyncAllReceivables: 銷貨批次匯入後的全量對帳。
// 每張銷貨單用明細重算 total_amount，寫回單頭再同步應收帳款。
func SyncAllReceivables(db *gorm.DB) error {
	var orders []models.SalesOrder
	if err := db.Find(&orders).Error; err != nil {
		return fmt.Errorf("讀取銷貨單失敗: %w", err)
	}

	for i := range orders {
		order := &orders[i]

		var total float64
		if err := db.Model(&models.SalesOrderItem{}).
			Where("sales_order_id = ?", order.ID).
			Select("COALESCE(SUM(subtotal), 0)").
			Scan(&total).Error; err != nil {
			return fmt.Errorf("計算銷貨單 %s 金額失敗: %w", order.OrderNo, err)
		}

		if err := db.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
			Update("total_amount", total).Error; err != nil {
			return fmt.Errorf("更新銷貨單 %s 金額失敗: %w", order.OrderNo, err)
		}

		order.TotalAmount = total
		if err := SyncReceivable(db, order, order.IsPaid); err != nil {
			return fmt.Errorf("銷貨單 %s: %w", order.OrderNo, err)
		}
	}
	return nil
}
