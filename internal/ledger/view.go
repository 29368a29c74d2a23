package ledger

import (
	"fmt"
	"strings"
	"time"

	"ledger-backend/internal/models"

	"gorm.io/gorm"
)

// 帳款列表用的展開紀錄。影子紀錄不存在時就用單頭現算一筆「虛擬」紀錄
// （id 掛 virtual- 前綴），畫面上帳齡表才不會缺單。

const virtualIDPrefix = "virtual-"

type Record struct {
	ID               string              `json:"id"`
	OrderID          string              `json:"order_id"`
	OrderNo          string              `json:"order_no"`
	OrderDate        string              `json:"order_date"`
	CounterpartyID   string              `json:"counterparty_id"` // 供應商 id 或客戶 code
	CounterpartyName string              `json:"counterparty_name"`
	Products         string              `json:"products"` // 明細商品名稱，頓號串起來
	AmountDue        float64             `json:"amount_due"`
	PaidAmount       float64             `json:"paid_amount"`
	Outstanding      float64             `json:"outstanding"`
	Status           models.LedgerStatus `json:"status"`
	DueDate          string              `json:"due_date"`
	Notes            string              `json:"notes"`
}

func (r Record) IsVirtual() bool { return strings.HasPrefix(r.ID, virtualIDPrefix) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// ListPayables: 全部進貨單的應付帳款視圖（含虛擬紀錄）。
func ListPayables(db *gorm.DB) ([]Record, error) {
	var orders []models.PurchaseOrder
	if err := db.Preload("Supplier").Preload("Items").
		Where("status <> ?", models.OrderStatusCancelled).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("讀取進貨單失敗: %w", err)
	}

	var shadows []models.AccountsPayable
	if err := db.Find(&shadows).Error; err != nil {
		return nil, fmt.Errorf("讀取應付帳款失敗: %w", err)
	}
	shadowByOrder := make(map[string]*models.AccountsPayable, len(shadows))
	for i := range shadows {
		shadowByOrder[shadows[i].PurchaseOrderID] = &shadows[i]
	}

	productNames, err := productNameMap(db)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(orders))
	for _, order := range orders {
		names := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			if n, ok := productNames[item.Code]; ok && n != "" {
				names = append(names, n)
			} else if item.Code != "" {
				names = append(names, item.Code)
			}
		}

		supplierID := ""
		supplierName := "未指定供應商"
		if order.SupplierID != nil {
			supplierID = *order.SupplierID
		}
		if order.Supplier != nil {
			supplierName = order.Supplier.Name
		}

		rec := Record{
			OrderID:          order.ID,
			OrderNo:          order.OrderNo,
			OrderDate:        formatDate(order.OrderDate),
			CounterpartyID:   supplierID,
			CounterpartyName: supplierName,
			Products:         strings.Join(names, "、"),
		}

		if shadow := shadowByOrder[order.ID]; shadow != nil {
			rec.ID = shadow.ID
			rec.AmountDue = shadow.AmountDue
			rec.PaidAmount = shadow.PaidAmount
			rec.Status = shadow.Status
			rec.Notes = shadow.Notes
			if shadow.DueDate != nil {
				rec.DueDate = formatDate(*shadow.DueDate)
			}
		} else {
			rec.ID = virtualIDPrefix + order.ID
			rec.AmountDue = order.TotalAmount
			rec.PaidAmount = paidAmount(order.IsPaid, order.TotalAmount)
			rec.Status = ledgerStatus(order.IsPaid)
			rec.DueDate = formatDate(order.OrderDate)
			rec.Notes = order.Notes
		}
		rec.Outstanding = rec.AmountDue - rec.PaidAmount

		records = append(records, rec)
	}
	return records, nil
}

// ListReceivables: 銷貨側的對應視圖。
func ListReceivables(db *gorm.DB) ([]Record, error) {
	var orders []models.SalesOrder
	if err := db.Preload("Customer").Preload("Items").
		Where("status <> ?", models.OrderStatusCancelled).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("讀取銷貨單失敗: %w", err)
	}

	var shadows []models.AccountsReceivable
	if err := db.Find(&shadows).Error; err != nil {
		return nil, fmt.Errorf("讀取應收帳款失敗: %w", err)
	}
	shadowByOrder := make(map[string]*models.AccountsReceivable, len(shadows))
	for i := range shadows {
		shadowByOrder[shadows[i].SalesOrderID] = &shadows[i]
	}

	productNames, err := productNameMap(db)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(orders))
	for _, order := range orders {
		names := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			if n, ok := productNames[item.Code]; ok && n != "" {
				names = append(names, n)
			} else if item.Code != "" {
				names = append(names, item.Code)
			}
		}

		customerCode := ""
		customerName := "未指定客戶"
		if order.CustomerCode != nil {
			customerCode = *order.CustomerCode
		}
		if order.Customer != nil {
			customerName = order.Customer.Name
		}

		rec := Record{
			OrderID:          order.ID,
			OrderNo:          order.OrderNo,
			OrderDate:        formatDate(order.OrderDate),
			CounterpartyID:   customerCode,
			CounterpartyName: customerName,
			Products:         strings.Join(names, "、"),
		}

		if shadow := shadowByOrder[order.ID]; shadow != nil {
			rec.ID = shadow.ID
			rec.AmountDue = shadow.AmountDue
			rec.PaidAmount = shadow.PaidAmount
			rec.Status = shadow.Status
			rec.Notes = shadow.Notes
			if shadow.DueDate != nil {
				rec.DueDate = formatDate(*shadow.DueDate)
			}
		} else {
			rec.ID = virtualIDPrefix + order.ID
			rec.AmountDue = order.TotalAmount
			rec.PaidAmount = paidAmount(order.IsPaid, order.TotalAmount)
			rec.Status = ledgerStatus(order.IsPaid)
			rec.DueDate = formatDate(order.OrderDate)
			rec.Notes = order.Notes
		}
		rec.Outstanding = rec.AmountDue - rec.PaidAmount

		records = append(records, rec)
	}
	return records, nil
}

func productNameMap(db *gorm.DB) (map[string]string, error) {
	var products []models.Product
	if err := db.Select("code", "name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("讀取商品資料失敗: %w", err)
	}
	m := make(map[string]string, len(products))
	for _, p := range products {
		m[p.Code] = p.Name
	}
	return m, nil
}
