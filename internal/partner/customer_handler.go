package partner

import (
	"fmt"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CustomerRequest struct {
	Code          string `json:"code" validate:"required,max=50"`
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=100"`
	Tel1          string `json:"tel1" validate:"max=50"`
	Tel11         string `json:"tel11" validate:"max=50"`
	Tel12         string `json:"tel12" validate:"max=50"`
	Addr          string `json:"addr" validate:"max=255"`
	Notes         string `json:"notes" validate:"max=500"`
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Code = strings.TrimSpace(body.Code)
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "客戶資料不完整或格式錯誤")
		}

		var count int64
		database.DB.Model(&models.Customer{}).Where("code = ?", body.Code).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("客戶代號 %s 已存在", body.Code))
		}

		customer := models.Customer{
			Code:          body.Code,
			Name:          body.Name,
			ContactPerson: body.ContactPerson,
			Tel1:          body.Tel1,
			Tel11:         body.Tel11,
			Tel12:         body.Tel12,
			Addr:          body.Addr,
			Notes:         body.Notes,
		}
		if err := database.DB.Create(&customer).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法建立客戶")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "customer",
			EntityID:    customer.Code,
			Action:      models.AuditActionCreate,
			Description: "建立客戶 " + customer.Name,
			After:       customer,
		})
		return c.Status(fiber.StatusCreated).JSON(customer)
	}
}

// GET /api/customers
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := database.DB.Model(&models.Customer{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + q + "%"
			query = query.Where("code LIKE ? OR name LIKE ?", like, like)
		}
		var customers []models.Customer
		if err := query.Order("code ASC").Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取客戶失敗")
		}
		return c.JSON(customers)
	}
}

// GET /api/customers/:code
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		if err := database.DB.First(&customer, "code = ?", c.Params("code")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "客戶不存在")
		}
		return c.JSON(customer)
	}
}

// PUT /api/customers/:code
func UpdateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		if err := database.DB.First(&customer, "code = ?", c.Params("code")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "客戶不存在")
		}
		before := customer

		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		body.Code = customer.Code
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "客戶資料不完整或格式錯誤")
		}

		updates := map[string]any{
			"name":           body.Name,
			"contact_person": body.ContactPerson,
			"tel1":           body.Tel1,
			"tel11":          body.Tel11,
			"tel12":          body.Tel12,
			"addr":           body.Addr,
			"notes":          body.Notes,
		}
		if err := database.DB.Model(&customer).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法更新客戶")
		}

		database.DB.First(&customer, "code = ?", customer.Code)
		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "customer",
			EntityID:    customer.Code,
			Action:      models.AuditActionUpdate,
			Description: "更新客戶 " + customer.Name,
			Before:      before,
			After:       customer,
		})
		return c.JSON(customer)
	}
}

// DELETE /api/customers/:code
// 名下還掛著銷貨單的客戶不給刪。
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		var customer models.Customer
		if err := database.DB.First(&customer, "code = ?", code).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "客戶不存在")
		}

		var refs int64
		database.DB.Model(&models.SalesOrder{}).Where("customer_code = ?", code).Count(&refs)
		if refs > 0 {
			return fiber.NewError(fiber.StatusConflict, "客戶已有銷貨單，無法刪除")
		}

		if err := database.DB.Delete(&models.Customer{}, "code = ?", code).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "無法刪除客戶")
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "customer",
			EntityID:    code,
			Action:      models.AuditActionDelete,
			Description: "刪除客戶 " + customer.Name,
			Before:      customer,
		})
		return c.JSON(fiber.Map{"deleted": code})
	}
}
