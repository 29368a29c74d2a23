package main

import (
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/config"
	"ledger-backend/internal/dashboard"
	"ledger-backend/internal/database"
	"ledger-backend/internal/inventory"
	"ledger-backend/internal/ledger"
	"ledger-backend/internal/models"
	"ledger-backend/internal/partner"
	"ledger-backend/internal/purchase"
	"ledger-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			logrus.WithError(err).Error("未預期的錯誤")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "伺服器發生未預期的錯誤",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// 不用登入的部份
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// 商品
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/low-stock", inventory.LowStockHandler())
	protected.Get("/products/export", inventory.ExportProductsHandler())
	protected.Get("/products/:code", inventory.GetProductHandler())
	protected.Post("/products", inventory.CreateProductHandler())
	protected.Put("/products/:code", inventory.UpdateProductHandler())

	// 供應商
	protected.Get("/suppliers", partner.ListSuppliersHandler())
	protected.Get("/suppliers/:id", partner.GetSupplierHandler())
	protected.Post("/suppliers", partner.CreateSupplierHandler())
	protected.Put("/suppliers/:id", partner.UpdateSupplierHandler())

	// 客戶
	protected.Get("/customers", partner.ListCustomersHandler())
	protected.Get("/customers/:code", partner.GetCustomerHandler())
	protected.Post("/customers", partner.CreateCustomerHandler())
	protected.Put("/customers/:code", partner.UpdateCustomerHandler())

	// 進貨單
	protected.Get("/purchase-orders", purchase.ListOrdersHandler())
	protected.Get("/purchase-orders/export", purchase.ExportBatchHandler())
	protected.Get("/purchase-orders/:id", purchase.GetOrderHandler())
	protected.Post("/purchase-orders", purchase.CreateOrderHandler())
	protected.Post("/purchase-orders/:id/toggle-paid", purchase.TogglePaidHandler())
	protected.Put("/purchase-orders/:id/status", purchase.UpdateStatusHandler())

	// 銷貨單
	protected.Get("/sales-orders", sales.ListOrdersHandler())
	protected.Get("/sales-orders/export", sales.ExportBatchHandler())
	protected.Get("/sales-orders/:id", sales.GetOrderHandler())
	protected.Post("/sales-orders", sales.CreateOrderHandler())
	protected.Post("/sales-orders/:id/toggle-paid", sales.TogglePaidHandler())
	protected.Put("/sales-orders/:id/status", sales.UpdateStatusHandler())

	// 應付 / 應收
	protected.Get("/accounts-payable", ledger.ListAccountsPayableHandler())
	protected.Get("/accounts-receivable", ledger.ListAccountsReceivableHandler())
	protected.Get("/accounts-payable/statement", ledger.ExportPayableStatementHandler())
	protected.Get("/accounts-receivable/statement", ledger.ExportReceivableStatementHandler())

	// Dashboard
	protected.Get("/dashboard", dashboard.StatsHandler())

	// 異動紀錄
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	// 刪單、批次匯入、一鍵沖帳只開給管理員
	adminRoutes := protected.Group("")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Delete("/products/:code", inventory.DeleteProductHandler())
	adminRoutes.Post("/products/import", inventory.ImportProductsHandler())
	adminRoutes.Post("/products/recompute", inventory.RecomputeStockHandler())
	adminRoutes.Delete("/suppliers/:id", partner.DeleteSupplierHandler())
	adminRoutes.Delete("/customers/:code", partner.DeleteCustomerHandler())
	adminRoutes.Delete("/purchase-orders/:id", purchase.DeleteOrderHandler())
	adminRoutes.Post("/purchase-orders/import", purchase.ImportBatchHandler())
	adminRoutes.Delete("/sales-orders/:id", sales.DeleteOrderHandler())
	adminRoutes.Post("/sales-orders/import", sales.ImportBatchHandler())
	adminRoutes.Post("/accounts-payable/settle", ledger.SettlePayablesHandler())
	adminRoutes.Post("/accounts-receivable/settle", ledger.SettleReceivablesHandler())

	logrus.WithField("port", cfg.HTTPPort).Info("伺服器啟動")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logrus.Fatal(err)
	}
}
