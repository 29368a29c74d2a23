package sales

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/csvx"
	"ledger-backend/internal/database"
	"ledger-backend/internal/inventory"
	"ledger-backend/internal/ledger"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type OrderItemInput struct {
	Code      string  `json:"code"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerCode string           `json:"customer_code"`
	OrderDate    string           `json:"order_date"`
	Notes        string           `json:"notes"`
	IsPaid       bool             `json:"is_paid"`
	Items        []OrderItemInput `json:"items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func generateOrderNo(prefix string) string {
	return fmt.Sprintf("%s%s%03d", prefix, time.Now().Format("20060102"), rand.Intn(1000))
}

func parseDate(s string) (time.Time, error) {
	normalized := csvx.NormalizeDate(s)
	if normalized == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式錯誤：%s", s)
	}
	return t, nil
}

// POST /api/sales-orders
// 扣庫存、建應收帳款和單據寫入同一個 transaction。
// 庫存不足不擋單，扣到 0 為止（超賣是日常，帳照開）。
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}
		if len(body.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "請至少新增一筆銷貨明細")
		}

		quantityByCode := map[string]float64{}
		var totalAmount float64
		for _, item := range body.Items {
			code := strings.TrimSpace(item.Code)
			if code == "" {
				return fiber.NewError(fiber.StatusBadRequest, "銷貨明細缺少商品編號(code)")
			}
			if item.Quantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("商品 %s 的數量無效，請輸入大於 0 的數字", code))
			}
			quantityByCode[code] += item.Quantity
			totalAmount += item.Quantity * item.UnitPrice
		}

		orderDate, err := parseDate(body.OrderDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var customerCode *string
		if s := strings.TrimSpace(body.CustomerCode); s != "" {
			customerCode = &s
		}

		order := models.SalesOrder{
			OrderNo:      generateOrderNo("SO"),
			CustomerCode: customerCode,
			OrderDate:    orderDate,
			TotalAmount:  totalAmount,
			Status:       models.OrderStatusCompleted,
			IsPaid:       body.IsPaid,
			Notes:        body.Notes,
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("無法建立銷貨單: %w", err)
			}

			items := make([]models.SalesOrderItem, 0, len(body.Items))
			for _, item := range body.Items {
				items = append(items, models.SalesOrderItem{
					SalesOrderID: order.ID,
					Code:         strings.TrimSpace(item.Code),
					Quantity:     item.Quantity,
					UnitPrice:    item.UnitPrice,
					Subtotal:     item.Quantity * item.UnitPrice,
				})
			}
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("無法新增銷貨明細: %w", err)
			}

			for code, quantity := range quantityByCode {
				if err := inventory.ApplySaleDeduction(tx, code, quantity); err != nil {
					return err
				}
			}

			return ledger.SyncReceivable(tx, &order, body.IsPaid)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: "建立銷貨單 " + order.OrderNo,
			After:       order,
		})

		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// GET /api/sales-orders
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var orders []models.SalesOrder
		if err := database.DB.Preload("Customer").Preload("Items").
			Order("created_at DESC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取銷貨單失敗")
		}
		return c.JSON(orders)
	}
}

// GET /api/sales-orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.SalesOrder
		if err := database.DB.Preload("Customer").Preload("Items").
			First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "銷貨單不存在")
		}
		return c.JSON(order)
	}
}

// POST /api/sales-orders/:id/toggle-paid
func TogglePaidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.SalesOrder
		if err := database.DB.First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "銷貨單不存在")
		}

		newPaid := !order.IsPaid
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
				Update("is_paid", newPaid).Error; err != nil {
				return fmt.Errorf("無法更新收款狀態: %w", err)
			}
			order.IsPaid = newPaid
			return ledger.SyncReceivable(tx, &order, newPaid)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("銷貨單 %s 收款狀態改為 %v", order.OrderNo, newPaid),
		})

		return c.JSON(fiber.Map{"id": order.ID, "is_paid": newPaid})
	}
}

// PUT /api/sales-orders/:id/status
// completed/pending -> cancelled 把扣掉的庫存加回去；
// cancelled -> completed/pending 重新扣（照樣扣到 0 為止）。
func UpdateStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}

		newStatus := models.OrderStatus(body.Status)
		switch newStatus {
		case models.OrderStatusPending, models.OrderStatusCompleted, models.OrderStatusCancelled:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "無效的狀態")
		}

		var order models.SalesOrder
		if err := database.DB.Preload("Items").First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "銷貨單不存在")
		}
		if order.Status == newStatus {
			return c.JSON(order)
		}

		wasActive := order.Status != models.OrderStatusCancelled
		willBeActive := newStatus != models.OrderStatusCancelled

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.SalesOrder{}).Where("id = ?", order.ID).
				Update("status", newStatus).Error; err != nil {
				return fmt.Errorf("無法更新狀態: %w", err)
			}

			switch {
			case wasActive && !willBeActive:
				for code, quantity := range aggregateItems(order.Items) {
					if err := inventory.ReverseSaleDeduction(tx, code, quantity); err != nil {
						return err
					}
				}
			case !wasActive && willBeActive:
				for code, quantity := range aggregateItems(order.Items) {
					if err := inventory.ApplySaleDeduction(tx, code, quantity); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		order.Status = newStatus
		return c.JSON(order)
	}
}

// DELETE /api/sales-orders/:id
func DeleteOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.SalesOrder
		if err := database.DB.Preload("Items").First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "銷貨單不存在")
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if order.Status != models.OrderStatusCancelled {
				for code, quantity := range aggregateItems(order.Items) {
					if err := inventory.ReverseSaleDeduction(tx, code, quantity); err != nil {
						return err
					}
				}
			}

			if err := tx.Where("sales_order_id = ?", order.ID).
				Delete(&models.SalesOrderItem{}).Error; err != nil {
				return fmt.Errorf("刪除銷貨明細失敗: %w", err)
			}
			if err := tx.Where("sales_order_id = ?", order.ID).
				Delete(&models.AccountsReceivable{}).Error; err != nil {
				return fmt.Errorf("刪除應收帳款失敗: %w", err)
			}
			if err := tx.Delete(&models.SalesOrder{}, "id = ?", order.ID).Error; err != nil {
				return fmt.Errorf("刪除銷貨單失敗: %w", err)
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "sales_order",
			EntityID:    order.ID,
			Action:      models.AuditActionDelete,
			Description: "刪除銷貨單 " + order.OrderNo,
			Before:      order,
		})

		return c.JSON(fiber.Map{"deleted": order.ID})
	}
}

func aggregateItems(items []models.SalesOrderItem) map[string]float64 {
	totals := map[string]float64{}
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		totals[item.Code] += item.Quantity
	}
	return totals
}
