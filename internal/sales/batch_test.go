package sales

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

func seedSalesFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Product{Code: "P001", Name: "花生油", StockQty: 100, PurchaseQtyTotal: 100}).Error)
	require.NoError(t, db.Create(&models.PurchaseOrder{OrderNo: "PO-SEED", OrderDate: time.Now()}).Error)
	require.NoError(t, db.Create(&models.PurchaseOrderItem{
		OrderNo: "PO-SEED", Code: "P001", Quantity: 100, UnitPrice: 5, Subtotal: 500,
	}).Error)
	require.NoError(t, db.Create(&models.Customer{Code: "C01", Name: "老王商行"}).Error)
}

func TestParseBatchCSVNormalizesDate(t *testing.T) {
	csv := "order_no,sale_date,customer_code,item_code,quantity,unit_price\n" +
		"SO1,2026.3.5,C01,P001,2,80\n"
	rows, err := parseBatchCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-03-05", rows[0].OrderDate)
	assert.Equal(t, "C01", rows[0].Customer)
	assert.InDelta(t, 160, rows[0].Amount, 1e-9)
}

func TestImportBatchRowsAutoCreatesOrder(t *testing.T) {
	db := newTestDB(t)
	seedSalesFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: "SO-NEW", OrderDate: "2026-03-05", Customer: "C01",
			ItemCode: "P001", Quantity: 2, UnitPrice: 80, Amount: 160},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	}))

	// 銷貨匯入會自動開單
	var order models.SalesOrder
	require.NoError(t, db.First(&order, "order_no = ?", "SO-NEW").Error)
	require.NotNil(t, order.CustomerCode)
	assert.Equal(t, "C01", *order.CustomerCode)
	assert.InDelta(t, 160, order.TotalAmount, 1e-9)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	// 應收帳款跟著長出來
	var ar models.AccountsReceivable
	require.NoError(t, db.First(&ar, "sales_order_id = ?", order.ID).Error)
	assert.InDelta(t, 160, ar.AmountDue, 1e-9)
	assert.Equal(t, models.LedgerStatusUnpaid, ar.Status)

	// 庫存全量重算：100 進 − 2 銷
	var p models.Product
	require.NoError(t, db.First(&p, "code = ?", "P001").Error)
	assert.InDelta(t, 98, p.StockQty, 1e-9)
}

func TestImportBatchRowsUnknownCustomerAborts(t *testing.T) {
	db := newTestDB(t)
	seedSalesFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: "SO-NEW", Customer: "C99",
			ItemCode: "P001", Quantity: 1, UnitPrice: 80, Amount: 80},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C99")

	var count int64
	db.Model(&models.SalesOrder{}).Count(&count)
	assert.Zero(t, count)
}

func TestImportBatchRowsHeaderConflict(t *testing.T) {
	db := newTestDB(t)
	seedSalesFixtures(t, db)

	rows := []batchRow{
		{RowNo: 2, OrderNo: "SO1", OrderDate: "2026-03-01", ItemCode: "P001", Quantity: 1, UnitPrice: 80, Amount: 80},
		{RowNo: 3, OrderNo: "SO1", OrderDate: "2026-03-02", ItemCode: "P001", Quantity: 1, UnitPrice: 80, Amount: 80},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, rows, false)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "單頭資料不一致")
}

func TestImportBatchRowsSyncDeleteRecomputesReceivable(t *testing.T) {
	db := newTestDB(t)
	seedSalesFixtures(t, db)
	require.NoError(t, db.Create(&models.Product{Code: "P002", Name: "醬油"}).Error)

	both := []batchRow{
		{RowNo: 2, OrderNo: "SO1", Customer: "C01", ItemCode: "P001", Quantity: 2, UnitPrice: 80, Amount: 160},
		{RowNo: 3, OrderNo: "SO1", Customer: "C01", ItemCode: "P002", Quantity: 1, UnitPrice: 40, Amount: 40},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, both, false)
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return importBatchRows(tx, both[:1], true)
	}))

	var order models.SalesOrder
	require.NoError(t, db.First(&order, "order_no = ?", "SO1").Error)
	assert.InDelta(t, 160, order.TotalAmount, 1e-9)

	var ar models.AccountsReceivable
	require.NoError(t, db.First(&ar, "sales_order_id = ?", order.ID).Error)
	assert.InDelta(t, 160, ar.AmountDue, 1e-9)

	var items []models.SalesOrderItem
	require.NoError(t, db.Where("sales_order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "P001", items[0].Code)
}
