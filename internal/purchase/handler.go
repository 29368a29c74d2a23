package purchase

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
	SupplierID  string           `json:"supplier_id"`
	OrderDate   string           `json:"order_date"`
	Notes       string           `json:"notes"`
	ShippingFee float64          `json:"shipping_fee"`
	IsPaid      bool             `json:"is_paid"`
	Items       []OrderItemInput `json:"items"`
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

// POST /api/purchase-orders
// 單頭、明細、庫存成本、應付帳款在同一個 transaction 內完成，
// 任何一步失敗整筆退回。
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}

		if len(body.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "請至少新增一筆進貨明細")
		}

		// 同商品多列先彙總，庫存更新一個商品只跑一次
		quantityByCode := map[string]float64{}
		amountByCode := map[string]float64{}
		for _, item := range body.Items {
			code := strings.TrimSpace(item.Code)
			if code == "" {
				return fiber.NewError(fiber.StatusBadRequest, "進貨明細缺少商品編號(code)")
			}
			if item.Quantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("商品 %s 的數量無效，請輸入大於 0 的數字", code))
			}
			quantityByCode[code] += item.Quantity
			amountByCode[code] += item.Quantity * item.UnitPrice
		}

		orderDate, err := parseDate(body.OrderDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var totalGoods float64
		for _, amount := range amountByCode {
			totalGoods += amount
		}
		totalAmount := totalGoods + body.ShippingFee

		var supplierID *string
		if s := strings.TrimSpace(body.SupplierID); s != "" {
			supplierID = &s
		}

		order := models.PurchaseOrder{
			OrderNo:     generateOrderNo("PO"),
			SupplierID:  supplierID,
			OrderDate:   orderDate,
			TotalAmount: totalAmount,
			ShippingFee: body.ShippingFee,
			Status:      models.OrderStatusCompleted,
			IsPaid:      body.IsPaid,
			Notes:       body.Notes,
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("無法建立進貨單: %w", err)
			}

			items := make([]models.PurchaseOrderItem, 0, len(body.Items))
			for _, item := range body.Items {
				items = append(items, models.PurchaseOrderItem{
					OrderNo:   order.OrderNo,
					Code:      strings.TrimSpace(item.Code),
					Quantity:  item.Quantity,
					UnitPrice: item.UnitPrice,
					Subtotal:  item.Quantity * item.UnitPrice,
				})
			}
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("無法新增進貨明細: %w", err)
			}

			for code, quantity := range quantityByCode {
				lineTotal := amountByCode[code]
				allocated := inventory.AllocateShipping(lineTotal, totalGoods, body.ShippingFee)
				if err := inventory.ApplyPurchaseReceipt(tx, code, quantity, lineTotal, allocated); err != nil {
					return err
				}
			}

			return ledger.SyncPayable(tx, &order, body.IsPaid)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "purchase_order",
			EntityID:    order.ID,
			Action:      models.AuditActionCreate,
			Description: "建立進貨單 " + order.OrderNo,
			After:       order,
		})

		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// GET /api/purchase-orders
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var orders []models.PurchaseOrder
		if err := database.DB.Preload("Supplier").Preload("Items").
			Order("created_at DESC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取進貨單失敗")
		}
		return c.JSON(orders)
	}
}

// GET /api/purchase-orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.PurchaseOrder
		if err := database.DB.Preload("Supplier").Preload("Items").
			First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "進貨單不存在")
		}
		return c.JSON(order)
	}
}

// POST /api/purchase-orders/:id/toggle-paid
func TogglePaidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.PurchaseOrder
		if err := database.DB.First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "進貨單不存在")
		}

		newPaid := !order.IsPaid
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).
				Update("is_paid", newPaid).Error; err != nil {
				return fmt.Errorf("無法更新付款狀態: %w", err)
			}
			order.IsPaid = newPaid
			return ledger.SyncPayable(tx, &order, newPaid)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "purchase_order",
			EntityID:    order.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("進貨單 %s 付款狀態改為 %v", order.OrderNo, newPaid),
		})

		return c.JSON(fiber.Map{"id": order.ID, "is_paid": newPaid})
	}
}

// PUT /api/purchase-orders/:id/status
// completed/pending -> cancelled 會把收進來的庫存退掉；
// cancelled -> completed/pending 再收一次。成本照收貨邏輯重算、不回溯。
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

		var order models.PurchaseOrder
		if err := database.DB.Preload("Items").First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "進貨單不存在")
		}
		if order.Status == newStatus {
			return c.JSON(order)
		}

		wasActive := order.Status != models.OrderStatusCancelled
		willBeActive := newStatus != models.OrderStatusCancelled

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", order.ID).
				Update("status", newStatus).Error; err != nil {
				return fmt.Errorf("無法更新狀態: %w", err)
			}

			switch {
			case wasActive && !willBeActive:
				for code, quantity := range aggregateItems(order.Items) {
					if err := inventory.ReversePurchaseReceipt(tx, code, quantity); err != nil {
						return err
					}
				}
			case !wasActive && willBeActive:
				totals := aggregateAmounts(order.Items)
				var totalGoods float64
				for _, amount := range totals {
					totalGoods += amount
				}
				for code, quantity := range aggregateItems(order.Items) {
					allocated := inventory.AllocateShipping(totals[code], totalGoods, order.ShippingFee)
					if err := inventory.ApplyPurchaseReceipt(tx, code, quantity, totals[code], allocated); err != nil {
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

// DELETE /api/purchase-orders/:id
// 退庫存、刪明細、刪應付帳款、刪單頭，一個 transaction。
// 成本不回溯（已知的單向行為，見 DESIGN.md）。
func DeleteOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var order models.PurchaseOrder
		if err := database.DB.Preload("Items").First(&order, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "進貨單不存在")
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if order.Status != models.OrderStatusCancelled {
				for code, quantity := range aggregateItems(order.Items) {
					if err := inventory.ReversePurchaseReceipt(tx, code, quantity); err != nil {
						return err
					}
				}
			}

			if err := tx.Where("order_no = ?", order.OrderNo).
				Delete(&models.PurchaseOrderItem{}).Error; err != nil {
				return fmt.Errorf("刪除進貨明細失敗: %w", err)
			}
			if err := tx.Where("purchase_order_id = ?", order.ID).
				Delete(&models.AccountsPayable{}).Error; err != nil {
				return fmt.Errorf("刪除應付帳款失敗: %w", err)
			}
			if err := tx.Delete(&models.PurchaseOrder{}, "id = ?", order.ID).Error; err != nil {
				return fmt.Errorf("刪除進貨單失敗: %w", err)
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "purchase_order",
			EntityID:    order.ID,
			Action:      models.AuditActionDelete,
			Description: "刪除進貨單 " + order.OrderNo,
			Before:      order,
		})

		return c.JSON(fiber.Map{"deleted": order.ID})
	}
}

func aggregateItems(items []models.PurchaseOrderItem) map[string]float64 {
	totals := map[string]float64{}
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		totals[item.Code] += item.Quantity
	}
	return totals
}

func aggregateAmounts(items []models.PurchaseOrderItem) map[string]float64 {
	totals := map[string]float64{}
	for _, item := range items {
		if item.Code == "" {
			continue
		}
		totals[item.Code] += item.Subtotal
	}
	return totals
}
