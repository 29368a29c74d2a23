package ledger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildStatementXLSX(t *testing.T) {
	rows := []Record{
		{OrderNo: "PO1", OrderDate: "2026-03-01", CounterpartyID: "S1",
			CounterpartyName: "大盤商", Products: "花生油、醬油",
			AmountDue: 500, PaidAmount: 100, Outstanding: 400},
		{OrderNo: "PO2", OrderDate: "2026-03-02", CounterpartyID: "S1",
			CounterpartyName: "大盤商", AmountDue: 300, Outstanding: 300},
	}

	data, err := buildStatementXLSX("應付對帳單", "大盤商", rows)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.NotEmpty(t, sheets)
	cells, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	// 標題列 + 兩筆 + 合計列
	require.GreaterOrEqual(t, len(cells), 4)
	assert.Contains(t, cells[1], "PO1")
}
