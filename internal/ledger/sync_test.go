package ledger

import (
	"fmt"
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

func seedPurchaseOrder(t *testing.T, db *gorm.DB, orderNo string, total float64, paid bool) models.PurchaseOrder {
	t.Helper()
	order := models.PurchaseOrder{
		OrderNo:     orderNo,
		OrderDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount: total,
		Status:      models.OrderStatusCompleted,
		IsPaid:      paid,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func seedSalesOrder(t *testing.T, db *gorm.DB, orderNo string, total float64, paid bool) models.SalesOrder {
	t.Helper()
	order := models.SalesOrder{
		OrderNo:     orderNo,
		OrderDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount: total,
		Status:      models.OrderStatusCompleted,
		IsPaid:      paid,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestSyncPayableCreatesSingleShadowRow(t *testing.T) {
	db := newTestDB(t)
	order := seedPurchaseOrder(t, db, "PO20260315001", 1000, false)

	require.NoError(t, SyncPayable(db, &order, false))

	var rows []models.AccountsPayable
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, order.ID, rows[0].PurchaseOrderID)
	assert.InDelta(t, 1000, rows[0].AmountDue, 1e-9)
	assert.InDelta(t, 0, rows[0].PaidAmount, 1e-9)
	assert.Equal(t, models.LedgerStatusUnpaid, rows[0].Status)

	// 再同步一次是更新，不會多開一筆
	require.NoError(t, SyncPayable(db, &order, true))
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.LedgerStatusPaid, rows[0].Status)
	assert.InDelta(t, 1000, rows[0].PaidAmount, 1e-9)

	// 翻回未付
	require.NoError(t, SyncPayable(db, &order, false))
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.LedgerStatusUnpaid, rows[0].Status)
	assert.InDelta(t, 0, rows[0].PaidAmount, 1e-9)
}

func TestSyncAllReceivablesRecomputesTotals(t *testing.T) {
	db := newTestDB(t)
	order := seedSalesOrder(t, db, "SO1", 0, false)
	require.NoError(t, db.Create(&models.SalesOrderItem{
		SalesOrderID: order.ID, Code: "P001", Quantity: 2, UnitPrice: 50, Subtotal: 100,
	}).Error)
	require.NoError(t, db.Create(&models.SalesOrderItem{
		SalesOrderID: order.ID, Code: "P002", Quantity: 1, UnitPrice: 30, Subtotal: 30,
	}).Error)

	require.NoError(t, SyncAllReceivables(db))

	var got models.SalesOrder
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	assert.InDelta(t, 130, got.TotalAmount, 1e-9)

	var ar models.AccountsReceivable
	require.NoError(t, db.First(&ar, "sales_order_id = ?", order.ID).Error)
	assert.InDelta(t, 130, ar.AmountDue, 1e-9)
	assert.Equal(t, models.LedgerStatusUnpaid, ar.Status)
}

func TestListPayablesSynthesizesVirtualRecords(t *testing.T) {
	db := newTestDB(t)
	withShadow := seedPurchaseOrder(t, db, "PO1", 500, false)
	require.NoError(t, SyncPayable(db, &withShadow, false))
	noShadow := seedPurchaseOrder(t, db, "PO2", 300, false)

	records, err := ListPayables(db)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byNo := map[string]Record{}
	for _, r := range records {
		byNo[r.OrderNo] = r
	}

	assert.False(t, byNo["PO1"].IsVirtual())
	assert.True(t, byNo["PO2"].IsVirtual())
	assert.Equal(t, "virtual-"+noShadow.ID, byNo["PO2"].ID)
	assert.InDelta(t, 300, byNo["PO2"].Outstanding, 1e-9)
}

func TestListPayablesSkipsCancelled(t *testing.T) {
	db := newTestDB(t)
	order := seedPurchaseOrder(t, db, "PO1", 500, false)
	require.NoError(t, db.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).
		Update("status", models.OrderStatusCancelled).Error)

	records, err := ListPayables(db)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBatchSettlePayables(t *testing.T) {
	db := newTestDB(t)

	supplier := models.Supplier{Name: "大盤商"}
	require.NoError(t, db.Create(&supplier).Error)

	o1 := models.PurchaseOrder{
		OrderNo: "PO1", SupplierID: &supplier.ID,
		OrderDate: time.Now(), TotalAmount: 500, Status: models.OrderStatusCompleted,
	}
	require.NoError(t, db.Create(&o1).Error)
	o2 := models.PurchaseOrder{
		OrderNo: "PO2", SupplierID: &supplier.ID,
		OrderDate: time.Now(), TotalAmount: 300, Status: models.OrderStatusCompleted, IsPaid: true,
	}
	require.NoError(t, db.Create(&o2).Error)
	// 別家供應商的單不能被掃到
	other := seedPurchaseOrder(t, db, "PO3", 999, false)

	settled, err := BatchSettlePayables(db, supplier.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, settled) // 只有 PO1 未付

	var got models.PurchaseOrder
	require.NoError(t, db.First(&got, "id = ?", o1.ID).Error)
	assert.True(t, got.IsPaid)

	var ap models.AccountsPayable
	require.NoError(t, db.First(&ap, "purchase_order_id = ?", o1.ID).Error)
	assert.Equal(t, models.LedgerStatusPaid, ap.Status)
	assert.InDelta(t, 500, ap.PaidAmount, 1e-9)

	// gorm 會把目的 struct 既有的主鍵帶進查詢條件，重查要用乾淨的變數
	var untouched models.PurchaseOrder
	require.NoError(t, db.First(&untouched, "id = ?", other.ID).Error)
	assert.False(t, untouched.IsPaid)
}

func TestBatchSettleReceivablesNoOutstanding(t *testing.T) {
	db := newTestDB(t)
	order := seedSalesOrder(t, db, "SO1", 200, true)
	require.NoError(t, SyncReceivable(db, &order, true))

	settled, err := BatchSettleReceivables(db, "")
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}
