package sales

import (
	"fmt"
	"io"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/csvx"
	"ledger-backend/internal/database"
	"ledger-backend/internal/inventory"
	"ledger-backend/internal/ledger"
	"ledger-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type batchRow struct {
	RowNo     int
	OrderNo   string
	OrderDate string
	Customer  string
	ItemCode  string
	Quantity  float64
	UnitPrice float64
	Amount    float64
}

type headerPatch struct {
	OrderDate string
	Customer  string
}

func parseBatchCSV(r io.Reader) ([]batchRow, error) {
	header, records, err := csvx.ParseTable(r)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{"order_no", "item_code", "quantity", "unit_price"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("CSV 缺少必要欄位：%s", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := make([]batchRow, 0, len(records))
	for i, record := range records {
		rowNo := i + 2
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		row := batchRow{
			RowNo:     rowNo,
			OrderNo:   field(record, "order_no"),
			OrderDate: csvx.NormalizeDate(field(record, "sale_date")),
			Customer:  field(record, "customer_code"),
			ItemCode:  field(record, "item_code"),
			Quantity:  csvx.NumberOrZero(field(record, "quantity")),
			UnitPrice: csvx.NumberOrZero(field(record, "unit_price")),
			Amount:    csvx.NumberOrZero(field(record, "amount")),
		}
		if row.OrderNo == "" {
			return nil, fmt.Errorf("第 %d 列缺少 order_no", rowNo)
		}
		if row.ItemCode == "" {
			return nil, fmt.Errorf("第 %d 列缺少 item_code", rowNo)
		}
		if row.Amount == 0 {
			row.Amount = row.Quantity * row.UnitPrice
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV 沒有可匯入的資料列")
	}
	return rows, nil
}

// importBatchRows 把整批銷貨明細 upsert 進資料庫。
// 和進貨匯入不同：order_no 不存在會自動開單（客戶常拿整月的流水帳來補）。
// 匯完全量重算庫存、再逐單同步應收帳款。
func importBatchRows(db *gorm.DB, rows []batchRow, syncDelete bool) error {
	orderNos := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		if !seen[row.OrderNo] {
			seen[row.OrderNo] = true
			orderNos = append(orderNos, row.OrderNo)
		}
	}

	var productCodes []string
	if err := db.Model(&models.Product{}).Pluck("code", &productCodes).Error; err != nil {
		return fmt.Errorf("讀取商品清單失敗: %w", err)
	}
	productSet := map[string]bool{}
	for _, code := range productCodes {
		productSet[code] = true
	}

	var customerCodes []string
	if err := db.Model(&models.Customer{}).Pluck("code", &customerCodes).Error; err != nil {
		return fmt.Errorf("讀取客戶清單失敗: %w", err)
	}
	customerSet := map[string]bool{}
	for _, code := range customerCodes {
		customerSet[code] = true
	}

	// 驗證 + 單頭彙整，全過才開始寫
	patches := map[string]headerPatch{}
	for _, row := range rows {
		if !productSet[row.ItemCode] {
			return fmt.Errorf("第 %d 列失敗：item_code %s 不存在", row.RowNo, row.ItemCode)
		}
		if row.Customer != "" && !customerSet[row.Customer] {
			return fmt.Errorf("第 %d 列失敗：customer_code %s 不存在", row.RowNo, row.Customer)
		}

		patch := patches[row.OrderNo]
		if row.OrderDate != "" {
			if patch.OrderDate != "" && patch.OrderDate != row.OrderDate {
				return fmt.Errorf("order_no %s 的單頭資料不一致（sale_date），請先修正 CSV", row.OrderNo)
			}
			patch.OrderDate = row.OrderDate
		}
		if row.Customer != "" {
			if patch.Customer != "" && patch.Customer != row.Customer {
				return fmt.Errorf("order_no %s 的單頭資料不一致（customer_code），請先修正 CSV", row.OrderNo)
			}
			patch.Customer = row.Customer
		}
		patches[row.OrderNo] = patch
	}

	var orders []models.SalesOrder
	if err := db.Where("order_no IN ?", orderNos).Find(&orders).Error; err != nil {
		return fmt.Errorf("讀取銷貨單失敗: %w", err)
	}
	orderIDByNo := map[string]string{}
	for _, order := range orders {
		orderIDByNo[order.OrderNo] = order.ID
	}

	for _, orderNo := range orderNos {
		patch := patches[orderNo]

		if _, ok := orderIDByNo[orderNo]; !ok {
			// 自動開單：日期沒給就用今天，金額稍後照明細重算
			order := models.SalesOrder{
				OrderNo: orderNo,
				Status:  models.OrderStatusCompleted,
			}
			orderDate, err := parseDate(patch.OrderDate)
			if err != nil {
				return fmt.Errorf("order_no %s：%s", orderNo, err.Error())
			}
			order.OrderDate = orderDate
			if patch.Customer != "" {
				customer := patch.Customer
				order.CustomerCode = &customer
			}
			if err := db.Create(&order).Error; err != nil {
				return fmt.Errorf("無法建立銷貨單 %s: %w", orderNo, err)
			}
			orderIDByNo[orderNo] = order.ID
			continue
		}

		updates := map[string]any{}
		if patch.OrderDate != "" {
			orderDate, err := parseDate(patch.OrderDate)
			if err != nil {
				return fmt.Errorf("order_no %s：%s", orderNo, err.Error())
			}
			updates["order_date"] = orderDate
		}
		if patch.Customer != "" {
			updates["customer_code"] = patch.Customer
		}
		if len(updates) == 0 {
			continue
		}
		if err := db.Model(&models.SalesOrder{}).Where("order_no = ?", orderNo).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("更新銷貨單 %s 失敗: %w", orderNo, err)
		}
	}

	orderIDs := make([]string, 0, len(orderIDByNo))
	for _, id := range orderIDByNo {
		orderIDs = append(orderIDs, id)
	}

	var existing []models.SalesOrderItem
	if err := db.Where("sales_order_id IN ?", orderIDs).Find(&existing).Error; err != nil {
		return fmt.Errorf("讀取既有明細失敗: %w", err)
	}
	existingID := map[string]string{}
	for _, item := range existing {
		existingID[item.SalesOrderID+"\x00"+item.Code] = item.ID
	}

	payload := make([]models.SalesOrderItem, 0, len(rows))
	keptIDs := map[string]bool{}
	for _, row := range rows {
		orderID := orderIDByNo[row.OrderNo]
		key := orderID + "\x00" + row.ItemCode
		id, ok := existingID[key]
		if !ok {
			id = uuid.NewString()
			existingID[key] = id
		}
		keptIDs[id] = true
		payload = append(payload, models.SalesOrderItem{
			ID:           id,
			SalesOrderID: orderID,
			Code:         row.ItemCode,
			Quantity:     row.Quantity,
			UnitPrice:    row.UnitPrice,
			Subtotal:     row.Amount,
		})
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&payload).Error; err != nil {
		return fmt.Errorf("寫入銷貨明細失敗: %w", err)
	}

	if syncDelete {
		var stale []string
		for _, item := range existing {
			if !keptIDs[item.ID] {
				stale = append(stale, item.ID)
			}
		}
		if len(stale) > 0 {
			if err := db.Where("id IN ?", stale).
				Delete(&models.SalesOrderItem{}).Error; err != nil {
				return fmt.Errorf("刪除多餘明細失敗: %w", err)
			}
		}
	}

	if err := inventory.RecomputeAll(db); err != nil {
		return err
	}
	// 單頭金額重算和應收帳款同步包在這裡面
	return ledger.SyncAllReceivables(db)
}

// POST /api/sales-orders/import
func ImportBatchHandler() fiber.Handler {
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

		rows, err := parseBatchCSV(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		syncDelete := c.Query("sync_delete_missing") == "true"
		if err := database.DB.Transaction(func(tx *gorm.DB) error {
			return importBatchRows(tx, rows, syncDelete)
		}); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		logrus.WithFields(logrus.Fields{
			"rows":        len(rows),
			"sync_delete": syncDelete,
		}).Info("銷貨明細批次匯入完成")

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "sales_order",
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("批次匯入銷貨明細 %d 列", len(rows)),
		})

		return c.JSON(fiber.Map{"message": fmt.Sprintf("成功匯入 %d 列銷貨明細", len(rows))})
	}
}

// GET /api/sales-orders/export
func ExportBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var orders []models.SalesOrder
		if err := database.DB.Preload("Customer").Preload("Items").
			Order("order_date ASC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取銷貨單失敗")
		}

		var products []models.Product
		if err := database.DB.Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取商品失敗")
		}
		productByCode := map[string]models.Product{}
		for _, p := range products {
			productByCode[p.Code] = p
		}

		var buf strings.Builder
		w := csvx.NewExportWriter(&buf)
		if err := w.Write([]string{
			"order_no", "sale_date", "customer_code", "customer_name",
			"item_code", "product_name", "spec", "quantity", "unit_price", "amount",
		}); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "匯出失敗")
		}

		for _, order := range orders {
			customerCode := ""
			customerName := ""
			if order.CustomerCode != nil {
				customerCode = *order.CustomerCode
			}
			if order.Customer != nil {
				customerName = order.Customer.Name
			}
			for _, item := range order.Items {
				p := productByCode[item.Code]
				record := []string{
					order.OrderNo,
					order.OrderDate.Format("2006-01-02"),
					customerCode,
					customerName,
					item.Code,
					p.Name,
					p.Spec,
					fmt.Sprintf("%g", item.Quantity),
					fmt.Sprintf("%g", item.UnitPrice),
					fmt.Sprintf("%g", item.Subtotal),
				}
				if err := w.Write(record); err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "匯出失敗")
				}
			}
		}
		w.Flush()

		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="sales_items.csv"`)
		return c.SendString(buf.String())
	}
}
