package ledger

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// 對帳單 xlsx。一個 sheet，表頭 + 未結單據 + 總計列。

func buildStatementXLSX(title, counterpartyName string, rows []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, title); err != nil {
		return nil, err
	}
	sheet = title

	headers := []any{"名稱", "代號", "單號", "日期", "商品", "單筆金額", "已付金額", "未付金額"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, err
	}

	var totalDue, totalOutstanding float64
	for i, r := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		line := []any{
			counterpartyName,
			r.CounterpartyID,
			r.OrderNo,
			r.OrderDate,
			r.Products,
			r.AmountDue,
			r.PaidAmount,
			r.Outstanding,
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, err
		}
		totalDue += r.AmountDue
		totalOutstanding += r.Outstanding
	}

	totalRow := []any{"", "", "", "", "總金額", totalDue, "", totalOutstanding}
	cell := fmt.Sprintf("A%d", len(rows)+2)
	if err := f.SetSheetRow(sheet, cell, &totalRow); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
