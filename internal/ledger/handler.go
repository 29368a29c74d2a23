package ledger

import (
	"time"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/database"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SettleRequest struct {
	SupplierID   string `json:"supplier_id"`
	CustomerCode string `json:"customer_code"`
}

// GET /api/accounts-payable
func ListAccountsPayableHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := ListPayables(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	}
}

// GET /api/accounts-receivable
func ListAccountsReceivableHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := ListReceivables(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(records)
	}
}

// POST /api/accounts-payable/settle  一鍵沖帳（供應商歸戶）
func SettlePayablesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SettleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}

		var settled int
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			settled, err = BatchSettlePayables(tx, body.SupplierID)
			return err
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if settled == 0 {
			return c.JSON(fiber.Map{"settled": 0, "message": "此供應商目前沒有未付款單據"})
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "accounts_payable",
			EntityID:    body.SupplierID,
			Action:      models.AuditActionUpdate,
			Description: "一鍵沖帳（應付）",
		})
		logrus.WithFields(logrus.Fields{"supplier_id": body.SupplierID, "settled": settled}).
			Info("應付帳款一鍵沖帳完成")

		return c.JSON(fiber.Map{"settled": settled})
	}
}

// POST /api/accounts-receivable/settle
func SettleReceivablesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SettleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "無效的請求內容")
		}

		var settled int
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			settled, err = BatchSettleReceivables(tx, body.CustomerCode)
			return err
		})
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if settled == 0 {
			return c.JSON(fiber.Map{"settled": 0, "message": "此客戶目前沒有未收款單據"})
		}

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "accounts_receivable",
			EntityID:    body.CustomerCode,
			Action:      models.AuditActionUpdate,
			Description: "一鍵沖帳（應收）",
		})

		return c.JSON(fiber.Map{"settled": settled})
	}
}

// GET /api/accounts-payable/statement?supplier_id=...  匯出對帳單 (xlsx)
func ExportPayableStatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplierID := c.Query("supplier_id")

		records, err := ListPayables(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var (
			name string
			rows []Record
		)
		for _, r := range records {
			if r.CounterpartyID != supplierID {
				continue
			}
			name = r.CounterpartyName
			if r.Outstanding > 0 {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "此供應商目前沒有未付款資料可匯出")
		}

		buf, err := buildStatementXLSX("應付對帳單", name, rows)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "匯出對帳單失敗")
		}

		filename := name + "-對帳單-" + time.Now().Format("2006-01-02") + ".xlsx"
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
		return c.Send(buf)
	}
}

// GET /api/accounts-receivable/statement?customer_code=...
func ExportReceivableStatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerCode := c.Query("customer_code")

		records, err := ListReceivables(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var (
			name string
			rows []Record
		)
		for _, r := range records {
			if r.CounterpartyID != customerCode {
				continue
			}
			name = r.CounterpartyName
			if r.Outstanding > 0 {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "此客戶目前沒有未收款資料可匯出")
		}

		buf, err := buildStatementXLSX("應收對帳單", name, rows)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "匯出對帳單失敗")
		}

		filename := name + "-對帳單-" + time.Now().Format("2006-01-02") + ".xlsx"
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
		return c.Send(buf)
	}
}
