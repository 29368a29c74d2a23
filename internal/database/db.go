package database

import (
	"ledger-backend/internal/config"
	"ledger-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("資料庫連線失敗: %v", err)
	}

	// 舊欄位改名要在 AutoMigrate 之前跑，不然會多出一份新欄位、舊資料留在原欄位
	renameLegacyColumns(DB)

	if err := Migrate(DB); err != nil {
		logrus.Fatalf("AutoMigrate 失敗: %v", err)
	}

	logrus.Info("資料庫連線成功，migration 完成")
}

// Migrate: 建立/更新所有資料表。測試用 sqlite 也走同一份清單。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Supplier{},
		&models.Customer{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderItem{},
		&models.SalesOrder{},
		&models.SalesOrderItem{},
		&models.AccountsPayable{},
		&models.AccountsReceivable{},
		&models.AuditLog{},
	)
}

// 舊版資料庫有兩套欄位名（同一次沒改完的 schema 搬遷）：
// customers 用 cno/compy、orders 用 purno/salno/order_number、
// products 用 pno/pname/stock_quantity/min_stock_level、明細用 product_pno/product_code。
// 這裡統一改成標準名稱，之後整個核心都只認標準欄位，不再到處嘗試兩種寫法。
func renameLegacyColumns(db *gorm.DB) {
	type rename struct {
		model    any
		from, to string
	}

	renames := []rename{
		{&models.Customer{}, "cno", "code"},
		{&models.Customer{}, "compy", "name"},
		{&models.Product{}, "pno", "code"},
		{&models.Product{}, "pname", "name"},
		{&models.Product{}, "stock_quantity", "stock_qty"},
		{&models.Product{}, "min_stock_level", "safety_stock"},
		{&models.PurchaseOrder{}, "purno", "order_no"},
		{&models.PurchaseOrder{}, "order_number", "order_no"},
		{&models.SalesOrder{}, "salno", "order_no"},
		{&models.SalesOrder{}, "order_number", "order_no"},
		{&models.PurchaseOrderItem{}, "product_pno", "code"},
		{&models.SalesOrderItem{}, "product_code", "code"},
		{&models.SalesOrderItem{}, "product_pno", "code"},
	}

	m := db.Migrator()
	for _, r := range renames {
		if !m.HasTable(r.model) {
			continue
		}
		if !m.HasColumn(r.model, r.from) || m.HasColumn(r.model, r.to) {
			continue
		}
		if err := m.RenameColumn(r.model, r.from, r.to); err != nil {
			logrus.Warnf("欄位改名 %s -> %s 失敗（繼續執行）: %v", r.from, r.to, err)
		} else {
			logrus.Infof("舊欄位已改名: %s -> %s", r.from, r.to)
		}
	}
}
