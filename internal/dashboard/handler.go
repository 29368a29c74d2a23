package dashboard

import (
	"time"

	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Stats struct {
	ProductCount        int64   `json:"product_count"`
	SupplierCount       int64   `json:"supplier_count"`
	CustomerCount       int64   `json:"customer_count"`
	LowStockCount       int64   `json:"low_stock_count"`
	MonthPurchaseAmount float64 `json:"month_purchase_amount"`
	MonthSalesAmount    float64 `json:"month_sales_amount"`
	UnpaidPayableCount  int64   `json:"unpaid_payable_count"`
	UnpaidReceivableCnt int64   `json:"unpaid_receivable_count"`
}

type RecentOrder struct {
	Kind        string    `json:"kind"` // purchase / sales
	OrderNo     string    `json:"order_no"`
	OrderDate   time.Time `json:"order_date"`
	TotalAmount float64   `json:"total_amount"`
	Status      string    `json:"status"`
}

// GET /api/dashboard
// 首頁總覽：主檔數量、低庫存、本月進銷金額（不含作廢單）、未結帳款數。
func StatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		db := database.DB
		var stats Stats

		db.Model(&models.Product{}).Count(&stats.ProductCount)
		db.Model(&models.Supplier{}).Count(&stats.SupplierCount)
		db.Model(&models.Customer{}).Count(&stats.CustomerCount)
		db.Model(&models.Product{}).
			Where("safety_stock > 0 AND stock_qty <= safety_stock").
			Count(&stats.LowStockCount)

		now := time.Now()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

		db.Model(&models.PurchaseOrder{}).
			Where("order_date >= ? AND status <> ?", monthStart, models.OrderStatusCancelled).
			Select("COALESCE(SUM(total_amount), 0)").Scan(&stats.MonthPurchaseAmount)
		db.Model(&models.SalesOrder{}).
			Where("order_date >= ? AND status <> ?", monthStart, models.OrderStatusCancelled).
			Select("COALESCE(SUM(total_amount), 0)").Scan(&stats.MonthSalesAmount)

		db.Model(&models.PurchaseOrder{}).
			Where("is_paid = ? AND status <> ?", false, models.OrderStatusCancelled).
			Count(&stats.UnpaidPayableCount)
		db.Model(&models.SalesOrder{}).
			Where("is_paid = ? AND status <> ?", false, models.OrderStatusCancelled).
			Count(&stats.UnpaidReceivableCnt)

		var recentPurchases []models.PurchaseOrder
		db.Order("created_at DESC").Limit(5).Find(&recentPurchases)
		var recentSales []models.SalesOrder
		db.Order("created_at DESC").Limit(5).Find(&recentSales)

		recent := make([]RecentOrder, 0, len(recentPurchases)+len(recentSales))
		for _, o := range recentPurchases {
			recent = append(recent, RecentOrder{
				Kind: "purchase", OrderNo: o.OrderNo, OrderDate: o.OrderDate,
				TotalAmount: o.TotalAmount, Status: string(o.Status),
			})
		}
		for _, o := range recentSales {
			recent = append(recent, RecentOrder{
				Kind: "sales", OrderNo: o.OrderNo, OrderDate: o.OrderDate,
				TotalAmount: o.TotalAmount, Status: string(o.Status),
			})
		}

		return c.JSON(fiber.Map{
			"stats":         stats,
			"recent_orders": recent,
		})
	}
}
