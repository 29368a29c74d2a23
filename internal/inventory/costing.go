package inventory

import (
	"fmt"

	"ledger-backend/internal/models"

	"gorm.io/gorm"
)

// 庫存與成本的更新核心。所有函式都吃呼叫端給的 *gorm.DB，
// 包在單/明細異動的同一個 transaction 裡跑，失敗整筆 rollback，
// 不會留下半套資料。

// AllocateShipping: 運費按明細金額佔比分攤。
// 商品總額為 0 時全部分攤 0，避免除以零。
func AllocateShipping(lineTotal, totalGoodsAmount, shippingFee float64) float64 {
	if totalGoodsAmount <= 0 {
		return 0
	}
	return lineTotal / totalGoodsAmount * shippingFee
}

// ApplyPurchaseReceipt: 進貨收貨。
// 成本 = 本次單位成本 + 本次分攤運費的單位成本，直接覆寫（不是和舊成本平均）。
func ApplyPurchaseReceipt(db *gorm.DB, code string, quantity, lineTotal, allocatedShipping float64) error {
	if quantity <= 0 {
		return fmt.Errorf("商品 %s 的數量無效，請輸入大於 0 的數字", code)
	}

	product, err := findProduct(db, code)
	if err != nil {
		return err
	}

	unitCost := lineTotal / quantity
	shippingPerUnit := allocatedShipping / quantity
	nextCost := unitCost + shippingPerUnit

	updates := map[string]any{
		"stock_qty":          product.StockQty + quantity,
		"purchase_qty_total": product.PurchaseQtyTotal + quantity,
		"cost":               nextCost,
	}
	if err := db.Model(&models.Product{}).Where("code = ?", code).Updates(updates).Error; err != nil {
		return fmt.Errorf("成本更新失敗：%w", err)
	}
	return nil
}

// ApplySaleDeduction: 銷貨扣庫存，最低扣到 0（沒有負庫存、沒有預購概念）。
// 成本與累計進貨量不動。
func ApplySaleDeduction(db *gorm.DB, code string, quantity float64) error {
	product, err := findProduct(db, code)
	if err != nil {
		return err
	}

	next := product.StockQty - quantity
	if next < 0 {
		next = 0
	}
	if err := db.Model(&models.Product{}).Where("code = ?", code).
		Update("stock_qty", next).Error; err != nil {
		return fmt.Errorf("更新庫存失敗：%w", err)
	}
	return nil
}

// ReversePurchaseReceipt: 刪進貨單時把數量退回去。
// 注意：成本不回復。加權平均成本是單向的，刪單只退量不退價
// （成本沒有歷史可查，回不去上一個值）。
func ReversePurchaseReceipt(db *gorm.DB, code string, quantity float64) error {
	product, err := findProduct(db, code)
	if err != nil {
		return err
	}

	nextStock := product.StockQty - quantity
	if nextStock < 0 {
		nextStock = 0
	}
	nextTotal := product.PurchaseQtyTotal - quantity
	if nextTotal < 0 {
		nextTotal = 0
	}

	updates := map[string]any{
		"stock_qty":          nextStock,
		"purchase_qty_total": nextTotal,
	}
	if err := db.Model(&models.Product{}).Where("code = ?", code).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新庫存失敗：%w", err)
	}
	return nil
}

// ReverseSaleDeduction: 刪銷貨單時把扣掉的量加回來。
func ReverseSaleDeduction(db *gorm.DB, code string, quantity float64) error {
	product, err := findProduct(db, code)
	if err != nil {
		return err
	}

	if err := db.Model(&models.Product{}).Where("code = ?", code).
		Update("stock_qty", product.StockQty+quantity).Error; err != nil {
		return fmt.Errorf("更新庫存失敗：%w", err)
	}
	return nil
}

type codeTotal struct {
	Code  string
	Total float64
}

// RecomputeAll: 批次匯入後的全量重算。
// 每個商品：purchase_qty_total = Σ進貨量、stock_qty = max(0, Σ進貨 − Σ銷貨)。
// 覆寫式寫入，跑幾次結果都一樣；成本不動。
func RecomputeAll(db *gorm.DB) error {
	purchaseTotals, err := sumQuantities(db, &models.PurchaseOrderItem{})
	if err != nil {
		return fmt.Errorf("重算庫存失敗：無法讀取進貨明細: %w", err)
	}
	salesTotals, err := sumQuantities(db, &models.SalesOrderItem{})
	if err != nil {
		return fmt.Errorf("重算庫存失敗：無法讀取銷貨明細: %w", err)
	}

	var products []models.Product
	if err := db.Find(&products).Error; err != nil {
		return fmt.Errorf("重算庫存失敗：無法讀取商品資料: %w", err)
	}

	for _, p := range products {
		purchaseQty := purchaseTotals[p.Code]
		salesQty := salesTotals[p.Code]

		nextStock := purchaseQty - salesQty
		if nextStock < 0 {
			nextStock = 0
		}

		updates := map[string]any{
			"stock_qty":          nextStock,
			"purchase_qty_total": purchaseQty,
		}
		if err := db.Model(&models.Product{}).Where("code = ?", p.Code).Updates(updates).Error; err != nil {
			return fmt.Errorf("商品 %s 庫存重算失敗: %w", p.Code, err)
		}
	}
	return nil
}

func sumQuantities(db *gorm.DB, model any) (map[string]float64, error) {
	var rows []codeTotal
	if err := db.Model(model).
		Select("code, SUM(quantity) AS total").
		Where("code <> ''").
		Group("code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]float64, len(rows))
	for _, r := range rows {
		totals[r.Code] = r.Total
	}
	return totals, nil
}

func findProduct(db *gorm.DB, code string) (*models.Product, error) {
	var product models.Product
	if err := db.Where("code = ?", code).First(&product).Error; err != nil {
		return nil, fmt.Errorf("找不到商品 %s", code)
	}
	return &product, nil
}
