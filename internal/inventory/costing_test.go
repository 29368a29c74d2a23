package inventory

import (
	"fmt"
	"testing"

	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, code string, stock, purchaseTotal, cost float64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Product{
		Code:             code,
		Name:             "測試商品" + code,
		Cost:             cost,
		StockQty:         stock,
		PurchaseQtyTotal: purchaseTotal,
	}).Error)
}

func getProduct(t *testing.T, db *gorm.DB, code string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "code = ?", code).Error)
	return p
}

func TestApplyPurchaseReceiptOverwritesCost(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 10, 50, 5.00)

	// 進 20 個、單價 6，無運費：成本直接覆寫成 6，不做移動平均
	require.NoError(t, ApplyPurchaseReceipt(db, "P001", 20, 120.00, 0))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 30, p.StockQty, 1e-9)
	assert.InDelta(t, 70, p.PurchaseQtyTotal, 1e-9)
	assert.InDelta(t, 6.00, p.Cost, 1e-9)
}

func TestApplyPurchaseReceiptAddsShippingPerUnit(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 0, 0, 0)

	// 100 元貨 + 分攤到 10 元運費，10 個 → 單位成本 11
	require.NoError(t, ApplyPurchaseReceipt(db, "P001", 10, 100.00, 10.00))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 11.00, p.Cost, 1e-9)
}

func TestApplyPurchaseReceiptRejectsBadQuantity(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 0, 0, 0)

	err := ApplyPurchaseReceipt(db, "P001", 0, 100, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P001")

	err = ApplyPurchaseReceipt(db, "P001", -5, 100, 0)
	require.Error(t, err)
}

func TestApplyPurchaseReceiptUnknownProduct(t *testing.T) {
	db := newTestDB(t)

	err := ApplyPurchaseReceipt(db, "ZZZ", 1, 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "找不到商品 ZZZ")
}

func TestAllocateShipping(t *testing.T) {
	// 照各明細佔商品總額的比例分攤
	assert.InDelta(t, 25.0, AllocateShipping(50, 100, 50), 1e-9)
	assert.InDelta(t, 0.0, AllocateShipping(50, 0, 50), 1e-9)
	assert.InDelta(t, 0.0, AllocateShipping(50, -1, 50), 1e-9)

	// 各明細分攤加總要等於整筆運費
	total := 0.0
	for _, amount := range []float64{33.0, 45.5, 21.5} {
		total += AllocateShipping(amount, 100.0, 17.0)
	}
	assert.InDelta(t, 17.0, total, 1e-9)
}

func TestApplySaleDeductionClampsAtZero(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 30, 70, 6.00)

	// 賣超過庫存：扣到 0，不會變負數，也不報錯
	require.NoError(t, ApplySaleDeduction(db, "P001", 100))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 0, p.StockQty, 1e-9)
}

func TestReversePurchaseReceiptKeepsCost(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 10, 50, 5.00)
	require.NoError(t, ApplyPurchaseReceipt(db, "P001", 20, 120.00, 0))

	// 退貨只退數量，成本停留在最後一次進貨算出來的值
	require.NoError(t, ReversePurchaseReceipt(db, "P001", 20))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 10, p.StockQty, 1e-9)
	assert.InDelta(t, 50, p.PurchaseQtyTotal, 1e-9)
	assert.InDelta(t, 6.00, p.Cost, 1e-9)
}

func TestReverseSaleDeductionRestoresStock(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 10, 10, 5.00)
	require.NoError(t, ApplySaleDeduction(db, "P001", 4))
	require.NoError(t, ReverseSaleDeduction(db, "P001", 4))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 10, p.StockQty, 1e-9)
}

func TestRecomputeAllFromOrderItems(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 999, 999, 5.00) // 現值是錯的，重算要蓋掉

	require.NoError(t, db.Create(&models.PurchaseOrder{OrderNo: "PO1"}).Error)
	require.NoError(t, db.Create(&models.PurchaseOrderItem{
		OrderNo: "PO1", Code: "P001", Quantity: 30, UnitPrice: 5, Subtotal: 150,
	}).Error)

	so := models.SalesOrder{OrderNo: "SO1"}
	require.NoError(t, db.Create(&so).Error)
	require.NoError(t, db.Create(&models.SalesOrderItem{
		SalesOrderID: so.ID, Code: "P001", Quantity: 12, UnitPrice: 8, Subtotal: 96,
	}).Error)

	require.NoError(t, RecomputeAll(db))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 30, p.PurchaseQtyTotal, 1e-9)
	assert.InDelta(t, 18, p.StockQty, 1e-9)
	assert.InDelta(t, 5.00, p.Cost, 1e-9) // 重算不動成本

	// 再跑一次結果不變
	require.NoError(t, RecomputeAll(db))
	p = getProduct(t, db, "P001")
	assert.InDelta(t, 18, p.StockQty, 1e-9)
}

func TestRecomputeAllClampsOversold(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, "P001", 0, 0, 0)

	so := models.SalesOrder{OrderNo: "SO1"}
	require.NoError(t, db.Create(&so).Error)
	require.NoError(t, db.Create(&models.SalesOrderItem{
		SalesOrderID: so.ID, Code: "P001", Quantity: 7, UnitPrice: 8, Subtotal: 56,
	}).Error)

	require.NoError(t, RecomputeAll(db))

	p := getProduct(t, db, "P001")
	assert.InDelta(t, 0, p.StockQty, 1e-9)
}
