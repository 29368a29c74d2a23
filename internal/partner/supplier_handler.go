package partner

import (
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type SupplierRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	ContactPerson string `json:"contact_person" validate:"max=50"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email,max=100"`
	Notes         string `json:"notes" validate:"max=500"`
}

// POST /api/suppliers
func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Name = strings.TrimSpace(body.Name)
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "供應商資料不完整或格式錯誤")
		}

		supplier := models.Supplier{
			Name:          body.Name,
			ContactPerson: body.ContactPerson,
			Phone:         body.Phone,
			Address:       body.Address,
			Email:         body.Email,
			Notes:         body.Notes,
		}
		if err := database.DB.Create(&supplier).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法建立供應商")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "supplier",
			EntityID:    supplier.ID,
			Action:      models.AuditActionCreate,
			Description: "建立供應商 " + supplier.Name,
			After:       supplier,
		})
		return c.Status(fiber.StatusCreated).JSON(supplier)
	}
}

// GET /api/suppliers
func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := database.DB.Model(&models.Supplier{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			query = query.Where("name LIKE ?", "%"+q+"%")
		}
		var suppliers []models.Supplier
		if err := query.Order("name ASC").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取供應商失敗")
		}
		return c.JSON(suppliers)
	}
}

// GET /api/suppliers/:id
func GetSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "供應商不存在")
		}
		return c.JSON(supplier)
	}
}

// PUT /api/suppliers/:id
func UpdateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "供應商不存在")
		}
		before := supplier

		var body SupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Name = strings.TrimSpace(body.Name)
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "供應商資料不完整或格式錯誤")
		}

		updates := map[string]any{
			"name":           body.Name,
			"contact_person": body.ContactPerson,
			"phone":          body.Phone,
			"address":        body.Address,
			"email":          body.Email,
			"notes":          body.Notes,
		}
		if err := database.DB.Model(&supplier).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法更新供應商")
		}

		database.DB.First(&supplier, "id = ?", supplier.ID)
		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "supplier",
			EntityID:    supplier.ID,
			Action:      models.AuditActionUpdate,
			Description: "更新供應商 " + supplier.Name,
			Before:      before,
			After:       supplier,
		})
		return c.JSON(supplier)
	}
}

// DELETE /api/suppliers/:id
// 名下還掛著進貨單的供應商不給刪。
func DeleteSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		var supplier models.Supplier
		if err := database.DB.First(&supplier, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "供應商不存在")
		}

		var refs int64
		database.DB.Model(&models.PurchaseOrder{}).Where("supplier_id = ?", id).Count(&refs)
		if refs > 0 {
			return fiber.NewError(fiber.StatusConflict, "供應商已有進貨單，無法刪除")
		}

		if err := database.DB.Delete(&models.Supplier{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法刪除供應商")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "supplier",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "刪除供應商 " + supplier.Name,
			Before:      supplier,
		})
		return c.JSON(fiber.Map{"deleted": id})
	}
}
