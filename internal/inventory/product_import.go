package inventory

import (
	"fmt"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/csvx"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// POST /api/products/import
// 依 code upsert 商品主檔，整批一個 transaction。
func ImportProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "請上傳 CSV 檔案（欄位名稱 file）")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無法讀取上傳的檔案")
		}
		defer file.Close()

		header, records, err := csvx.ParseTable(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		index := map[string]int{}
		for i, name := range header {
			index[name] = i
		}
		for _, required := range []string{"code", "name"} {
			if _, ok := index[required]; !ok {
				return fiber.NewError(fiber.StatusBadRequest, "CSV 缺少必要欄位："+required)
			}
		}
		field := func(record []string, name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		products := make([]models.Product, 0, len(records))
		seen := map[string]int{}
		for i, record := range records {
			rowNo := i + 2
			code := field(record, "code")
			if code == "" {
				continue
			}
			if prev, dup := seen[code]; dup {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("第 %d 列與第 %d 列的 code 重複：%s", rowNo, prev, code))
			}
			seen[code] = rowNo

			product := models.Product{
				Code:        code,
				Name:        field(record, "name"),
				Spec:        field(record, "spec"),
				Unit:        field(record, "unit"),
				Category:    field(record, "category"),
				Cost:        csvx.NumberOrZero(field(record, "cost")),
				Price:       csvx.NumberOrZero(field(record, "price")),
				StockQty:    csvx.NumberOrZero(field(record, "stock_qty")),
				SafetyStock: csvx.NumberOrZero(field(record, "safety_stock")),
			}
			if s := field(record, "sale_price"); s != "" {
				v := csvx.NumberOrZero(s)
				product.SalePrice = &v
			}
			if product.Name == "" {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("第 %d 列缺少 name", rowNo))
			}
			products = append(products, product)
		}
		if len(products) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "CSV 沒有可匯入的資料列")
		}

		if err := database.DB.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				UpdateAll: true,
			}).Create(&products).Error
		}); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "寫入商品失敗")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "product",
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("批次匯入商品 %d 筆", len(products)),
		})

		return c.JSON(fiber.Map{"message": fmt.Sprintf("成功匯入 %d 筆商品", len(products))})
	}
}

// GET /api/products/export
func ExportProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		if err := database.DB.Order("code ASC").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取商品失敗")
		}

		var buf strings.Builder
		w := csvx.NewExportWriter(&buf)
		if err := w.Write([]string{
			"code", "name", "spec", "unit", "category",
			"cost", "price", "sale_price", "stock_qty", "safety_stock",
		}); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "匯出失敗")
		}
		for _, p := range products {
			salePrice := ""
			if p.SalePrice != nil {
				salePrice = fmt.Sprintf("%g", *p.SalePrice)
			}
			record := []string{
				p.Code, p.Name, p.Spec, p.Unit, p.Category,
				fmt.Sprintf("%g", p.Cost),
				fmt.Sprintf("%g", p.Price),
				salePrice,
				fmt.Sprintf("%g", p.StockQty),
				fmt.Sprintf("%g", p.SafetyStock),
			}
			if err := w.Write(record); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "匯出失敗")
			}
		}
		w.Flush()

		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="products.csv"`)
		return c.SendString(buf.String())
	}
}
