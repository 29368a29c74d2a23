package purchase

import (
	"fmt"
	"strings"
	"testing"
	"time"

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

func seedBatchFixtures(t *testing.T, db *gorm.DB) models.PurchaseOrder {
	t.Helper()
	require.NoError(t, db.Create(&models.Product{Code: "P001", Name: "花生油"}).Error)
	require.NoError(t, db.Create(&models.Product{Code: "P002", Name: "醬油"}).Error)
	order := models.PurchaseOrder{
		OrderNo:   "PO20260301001",
		OrderDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.OrderStatusCompleted,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestParseBatchCSV(t *testing.T) {
	csv := "order_no,purchase_date,item_code,quantity,unit_price\n" +
		"PO1,2026.3.1,P001,10,5\n" +
		"PO1,2026/3/1,P002,3,20\n"
	rows, err := parseBatchCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-03-01", rows[0].OrderDate)
	assert.InDelta(t, 50, rows[0].Amount, 1e-9) // amount 沒給就用 數量×單價
	assert.Equal(t, 2, rows[0].RowNo)
}

func TestParseBatchCSVWithBOMHeader(t *testing.T) {
	csv := "\ufefforder_no,item_code,quantity,unit_price\nPO1,P001,1,5\n"
	rows, err := parseBatchCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "PO1", rows[0].OrderNo)
}

func TestParseBatchCSVMissingColumn(t *testing.T) {
	csv := "order_no,item_code,quantity\nPO1,P001,1\n"
	_, err := parseBatchCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit_price")
}

func TestImportBatchRowsUpsert(t *testing.T) {
	db := newTestDB(t)
	order := seedBatchFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: order.OrderNo, ItemCode: "P001", Quantity: 10, UnitPrice: 5, Amount: 50},
		{RowNo: 3, OrderNo: order.OrderNo, ItemCode: "P002", Quantity: 3, UnitPrice: 20, Amount: 60},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	}))

	var items []models.PurchaseOrderItem
	require.NoError(t, db.Where("order_no = ?", order.OrderNo).Find(&items).Error)
	require.Len(t, items, 2)
	firstID := map[string]string{}
	for _, item := range items {
		firstID[item.Code] = item.ID
	}

	// 同一個 (order_no, item_code) 再匯一次要沿用原本的明細 id
	rows[0].Quantity = 12
	rows[0].Amount = 60
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	}))

	require.NoError(t, db.Where("order_no = ?", order.OrderNo).Find(&items).Error)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, firstID[item.Code], item.ID)
		if item.Code == "P001" {
			assert.InDelta(t, 12, item.Quantity, 1e-9)
		}
	}

	// 單頭金額照明細重算
	var got models.PurchaseOrder
	require.NoError(t, db.First(&got, "order_no = ?", order.OrderNo).Error)
	assert.InDelta(t, 120, got.TotalAmount, 1e-9)

	// 匯入後全量重算庫存
	var p models.Product
	require.NoError(t, db.First(&p, "code = ?", "P001").Error)
	assert.InDelta(t, 12, p.StockQty, 1e-9)
	assert.InDelta(t, 12, p.PurchaseQtyTotal, 1e-9)
}

func TestImportBatchRowsUnknownOrderAborts(t *testing.T) {
	db := newTestDB(t)
	seedBatchFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: "PO-NOPE", ItemCode: "P001", Quantity: 1, UnitPrice: 5, Amount: 5},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PO-NOPE")
}

func TestImportBatchRowsUnknownItemAbortsWholeBatch(t *testing.T) {
	db := newTestDB(t)
	order := seedBatchFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: order.OrderNo, ItemCode: "P001", Quantity: 10, UnitPrice: 5, Amount: 50},
		{RowNo: 3, OrderNo: order.OrderNo, ItemCode: "ZZZ", Quantity: 1, UnitPrice: 1, Amount: 1},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZZZ")

	// 好的那列也不能進
	var count int64
	db.Model(&models.PurchaseOrderItem{}).Count(&count)
	assert.Zero(t, count)
}

func TestImportBatchRowsHeaderConflict(t *testing.T) {
	db := newTestDB(t)
	order := seedBatchFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: order.OrderNo, OrderDate: "2026-03-01", ItemCode: "P001", Quantity: 1, UnitPrice: 5, Amount: 5},
		{RowNo: 3, OrderNo: order.OrderNo, OrderDate: "2026-03-02", ItemCode: "P002", Quantity: 1, UnitPrice: 5, Amount: 5},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "單頭資料不一致")
}

func TestImportBatchRowsSyncDeleteMissing(t *testing.T) {
	db := newTestDB(t)
	order := seedBatchFixtures(t, db)

	both := []batchRow{
		{RowNo: 2, OrderNo: order.OrderNo, ItemCode: "P001", Quantity: 10, UnitPrice: 5, Amount: 50},
		{RowNo: 3, OrderNo: order.OrderNo, ItemCode: "P002", Quantity: 3, UnitPrice: 20, Amount: 60},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, both, false)
	}))

	onlyFirst := both[:1]
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, onlyFirst, true)
	}))

	var items []models.PurchaseOrderItem
	require.NoError(t, db.Where("order_no = ?", order.OrderNo).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "P001", items[0].Code)

	// 被刪掉的明細也要從庫存量消失
	var p models.Product
	require.NoError(t, db.First(&p, "code = ?", "P002").Error)
	assert.InDelta(t, 0, p.StockQty, 1e-9)
}

func TestImportBatchRowsUpdatesHeader(t *testing.T) {
	db := newTestDB(t)
	order := seedBatchFixtures(t, db)
	supplier := models.Supplier{Name: "大盤商"}
	require.NoError(t, db.Create(&supplier).Error)

	rows := []batchRow{
		{RowNo: 2, OrderNo: order.OrderNo, OrderDate: "2026-04-01", Vendor: supplier.ID,
			ItemCode: "P001", Quantity: 1, UnitPrice: 5, Amount: 5},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	}))

	var got models.PurchaseOrder
	require.NoError(t, db.First(&got, "order_no = ?", order.OrderNo).Error)
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, supplier.ID, *got.SupplierID)
	assert.Equal(t, "2026-04-01", got.OrderDate.Format("2006-01-02"))
}
