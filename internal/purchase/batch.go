package purchase

import (
	"fmt"
	"io"
	"strings"

	"ledger-backend/internal/audit"
	"ledger-backend/internal/csvx"
	"ledger-backend/internal/database"
	"ledger-backend/internal/inventory"
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
	Vendor    string
	ItemCode  string
	Quantity  float64
	UnitPrice float64
	Amount    float64
}

// 單頭欄位在多列之間彙整後的結果。同一張單給了兩個不同的值就算衝突。
type headerPatch struct {
	OrderDate string
	Vendor    string
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
		rowNo := i + 2 // 含標題列的實際列號
		if strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}

		row := batchRow{
			RowNo:     rowNo,
			OrderNo:   field(record, "order_no"),
			OrderDate: csvx.NormalizeDate(field(record, "purchase_date")),
			Vendor:    field(record, "vendor_code"),
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

// importBatchRows 把整批明細 upsert 進既有進貨單。
// 先全部驗完才動資料庫，任何一列有問題整批不進。
// 進貨單必須已存在，不會替 CSV 自動開單（銷貨匯入才會）。
func importBatchRows(db *gorm.DB, rows []batchRow, syncDelete bool) error {
	orderNos := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		if !seen[row.OrderNo] {
			seen[row.OrderNo] = true
			orderNos = append(orderNos, row.OrderNo)
		}
	}

	var orders []models.PurchaseOrder
	if err := db.Where("order_no IN ?", orderNos).Find(&orders).Error; err != nil {
		return fmt.Errorf("讀取進貨單失敗: %w", err)
	}
	orderByNo := map[string]models.PurchaseOrder{}
	for _, order := range orders {
		orderByNo[order.OrderNo] = order
	}

	var productCodes []string
	if err := db.Model(&models.Product{}).Pluck("code", &productCodes).Error; err != nil {
		return fmt.Errorf("讀取商品清單失敗: %w", err)
	}
	productSet := map[string]bool{}
	for _, code := range productCodes {
		productSet[code] = true
	}

	var supplierIDs []string
	if err := db.Model(&models.Supplier{}).Pluck("id", &supplierIDs).Error; err != nil {
		return fmt.Errorf("讀取供應商清單失敗: %w", err)
	}
	supplierSet := map[string]bool{}
	for _, id := range supplierIDs {
		supplierSet[id] = true
	}

	// 驗證 + 單頭彙整
	patches := map[string]headerPatch{}
	for _, row := range rows {
		if _, ok := orderByNo[row.OrderNo]; !ok {
			return fmt.Errorf("order_no %s 不存在，進貨匯入不會自動開單", row.OrderNo)
		}
		if !productSet[row.ItemCode] {
			return fmt.Errorf("第 %d 列失敗：item_code %s 不存在", row.RowNo, row.ItemCode)
		}
		if row.Vendor != "" && !supplierSet[row.Vendor] {
			return fmt.Errorf("第 %d 列失敗：vendor_code %s 不存在", row.RowNo, row.Vendor)
		}

		patch := patches[row.OrderNo]
		if row.OrderDate != "" {
			if patch.OrderDate != "" && patch.OrderDate != row.OrderDate {
				return fmt.Errorf("order_no %s 的單頭資料不一致（purchase_date），請先修正 CSV", row.OrderNo)
			}
			patch.OrderDate = row.OrderDate
		}
		if row.Vendor != "" {
			if patch.Vendor != "" && patch.Vendor != row.Vendor {
				return fmt.Errorf("order_no %s 的單頭資料不一致（vendor_code），請先修正 CSV", row.OrderNo)
			}
			patch.Vendor = row.Vendor
		}
		patches[row.OrderNo] = patch
	}

	for orderNo, patch := range patches {
		updates := map[string]any{}
		if patch.OrderDate != "" {
			orderDate, err := parseDate(patch.OrderDate)
			if err != nil {
				return fmt.Errorf("order_no %s：%s", orderNo, err.Error())
			}
			updates["order_date"] = orderDate
		}
		if patch.Vendor != "" {
			updates["supplier_id"] = patch.Vendor
		}
		if len(updates) == 0 {
			continue
		}
		if err := db.Model(&models.PurchaseOrder{}).Where("order_no = ?", orderNo).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("更新進貨單 %s 失敗: %w", orderNo, err)
		}
	}

	// (order_no, item_code) 已存在就沿用原本的明細 id
	var existing []models.PurchaseOrderItem
	if err := db.Where("order_no IN ?", orderNos).Find(&existing).Error; err != nil {
		return fmt.Errorf("讀取既有明細失敗: %w", err)
	}
	existingID := map[string]string{}
	for _, item := range existing {
		existingID[item.OrderNo+"\x00"+item.Code] = item.ID
	}

	payload := make([]models.PurchaseOrderItem, 0, len(rows))
	keptIDs := map[string]bool{}
	for _, row := range rows {
		key := row.OrderNo + "\x00" + row.ItemCode
		id, ok := existingID[key]
		if !ok {
			id = uuid.NewString()
			existingID[key] = id
		}
		keptIDs[id] = true
		payload = append(payload, models.PurchaseOrderItem{
			ID:        id,
			OrderNo:   row.OrderNo,
			Code:      row.ItemCode,
			Quantity:  row.Quantity,
			UnitPrice: row.UnitPrice,
			Subtotal:  row.Amount,
		})
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&payload).Error; err != nil {
		return fmt.Errorf("寫入進貨明細失敗: %w", err)
	}

	if syncDelete {
		// 只清這次有碰到的單，CSV 裡沒有的舊明細才刪
		var stale []string
		for _, item := range existing {
			if !keptIDs[item.ID] {
				stale = append(stale, item.ID)
			}
		}
		if len(stale) > 0 {
			if err := db.Where("id IN ?", stale).
				Delete(&models.PurchaseOrderItem{}).Error; err != nil {
				return fmt.Errorf("刪除多餘明細失敗: %w", err)
			}
		}
	}

	// 單頭金額照明細重算（運費照舊）
	for _, orderNo := range orderNos {
		var goods float64
		if err := db.Model(&models.PurchaseOrderItem{}).
			Where("order_no = ?", orderNo).
			Select("COALESCE(SUM(subtotal), 0)").Scan(&goods).Error; err != nil {
			return fmt.Errorf("重算進貨單 %s 金額失敗: %w", orderNo, err)
		}
		order := orderByNo[orderNo]
		if err := db.Model(&models.PurchaseOrder{}).Where("order_no = ?", orderNo).
			Update("total_amount", goods+order.ShippingFee).Error; err != nil {
			return fmt.Errorf("更新進貨單 %s 金額失敗: %w", orderNo, err)
		}
	}

	// 匯入不逐筆調庫存，整庫全量重算一次
	return inventory.RecomputeAll(db)
}

// POST /api/purchase-orders/import
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
		}).Info("進貨明細批次匯入完成")

		audit.WriteLogFromCtx(c, audit.LogOptions{
			EntityType:  "purchase_order",
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("批次匯入進貨明細 %d 列", len(rows)),
		})

		return c.JSON(fiber.Map{"message": fmt.Sprintf("成功匯入 %d 列進貨明細", len(rows))})
	}
}

// GET /api/purchase-orders/export
func ExportBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var orders []models.PurchaseOrder
		if err := database.DB.Preload("Supplier").Preload("Items").
			Order("order_date ASC").Find(&orders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "讀取進貨單失敗")
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
			"order_no", "purchase_date", "vendor_code", "supplier_name",
			"item_code", "product_name", "spec", "quantity", "unit_price", "amount",
		}); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "匯出失敗")
		}

		for _, order := range orders {
			vendorCode := ""
			supplierName := ""
			if order.SupplierID != nil {
				vendorCode = *order.SupplierID
			}
			if order.Supplier != nil {
				supplierName = order.Supplier.Name
			}
			for _, item := range order.Items {
				p := productByCode[item.Code]
				record := []string{
					order.OrderNo,
					order.OrderDate.Format("2006-01-02"),
					vendorCode,
					supplierName,
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
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="purchase_items.csv"`)
		return c.SendString(buf.String())
	}
}
