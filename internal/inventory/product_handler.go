package inventory

import (
	"fmt"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type ProductRequest struct {
	Code        string   `json:"code" validate:"required,max=50"`
	Name        string   `json:"name" validate:"required,max=100"`
	Spec        string   `json:"spec" validate:"max=100"`
	Unit        string   `json:"unit" validate:"max=20"`
	Category    string   `json:"category" validate:"max=50"`
	Cost        float64  `json:"cost" validate:"gte=0"`
	Price       float64  `json:"price" validate:"gte=0"`
	SalePrice   *float64 `json:"sale_price"`
	StockQty    float64  `json:"stock_qty" validate:"gte=0"`
	SafetyStock float64  `json:"safety_stock" validate:"gte=0"`
}

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Code = strings.TrimSpace(body.Code)
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "商品資料不完整或格式錯誤")
		}

		var count int64
		database.DB.Model(&models.Product{}).Where("code = ?", body.Code).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("商品編號 %s 已存在", body.Code))
		}

		product := models.Product{
			Code:        body.Code,
			Name:        body.Name,
			Spec:        body.Spec,
			Unit:        body.Unit,
			Category:    body.Category,
			Cost:        body.Cost,
			Price:       body.Price,
			SalePrice:   body.SalePrice,
			StockQty:    body.StockQty,
			SafetyStock: body.SafetyStock,
		}
		if err := database.DB.Create(&product).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法建立商品")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    product.Code,
			Action:      models.AuditActionCreate,
			Description: "建立商品 " + product.Name,
			After:       product,
		})

		return c.Status(fiber.StatusCreated).JSON(product)
	}
}

// GET /api/products?q=&category=
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := database.DB.Model(&models.Product{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + q + "%"
			query = query.Where("code LIKE ? OR name LIKE ?", like, like)
		}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			query = query.Where("category = ?", category)
		}

		var products []models.Product
		if err := query.Order("code ASC").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取商品失敗")
		}
		return c.JSON(products)
	}
}

// GET /api/products/low-stock
// 安全庫存 > 0 且現有庫存低於或等於安全庫存的商品
func LowStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.
			Where("safety_stock > 0 AND stock_qty <= safety_stock").
			Order("stock_qty ASC").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取低庫存商品失敗")
		}
		return c.JSON(products)
	}
}

// GET /api/products/:code
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var product models.Product
		if err := database.DB.First(&product, "code = ?", c.Params("code")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("找不到商品 %s", c.Params("code")))
		}
		return c.JSON(product)
	}
}

// PUT /api/products/:code
// code 是主鍵不能改，其他欄位整筆覆寫。
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var product models.Product
		if err := database.DB.First(&product, "code = ?", c.Params("code")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("找不到商品 %s", c.Params("code")))
		}
		before := product

		var body ProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Code = product.Code
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "商品資料不完整或格式錯誤")
		}

		updates := map[string]any{
			"name":         body.Name,
			"spec":         body.Spec,
			"unit":         body.Unit,
			"category":     body.Category,
			"cost":         body.Cost,
			"price":        body.Price,
			"sale_price":   body.SalePrice,
			"stock_qty":    body.StockQty,
			"safety_stock": body.SafetyStock,
		}
		if err := database.DB.Model(&product).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法更新商品")
		}

		database.DB.First(&product, "code = ?", product.Code)
		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    product.Code,
			Action:      models.AuditActionUpdate,
			Description: "更新商品 " + product.Name,
			Before:      before,
			After:       product,
		})
		return c.JSON(product)
	}
}

// DELETE /api/products/:code
// 有進銷明細引用的商品不給刪，避免歷史單據斷鏈。
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		var product models.Product
		if err := database.DB.First(&product, "code = ?", code).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("找不到商品 %s", code))
		}

		var refs int64
		database.DB.Model(&models.PurchaseOrderItem{}).Where("code = ?", code).Count(&refs)
		if refs > 0 {
			return fiber.NewError(fiber.StatusConflict, "商品已有進貨紀錄，無法刪除")
		}
		database.DB.Model(&models.SalesOrderItem{}).Where("code = ?", code).Count(&refs)
		if refs > 0 {
			return fiber.NewError(fiber.StatusConflict, "商品已有銷貨紀錄，無法刪除")
		}

		if err := database.DB.Delete(&models.Product{}, "code = ?", code).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法刪除商品")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    code,
			Action:      models.AuditActionDelete,
			Description: "刪除商品 " + product.Name,
			Before:      product,
		})
		return c.JSON(fiber.Map{"deleted": code})
	}
}

// POST /api/products/recompute
// 依所有進銷明細全量重算庫存數量（成本不動）。
func RecomputeStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := database.DB.Transaction(RecomputeAll); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"message": "庫存數量重算完成"})
	}
}
