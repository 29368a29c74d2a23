package csvx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHeader(t *testing.T) {
	assert.Equal(t, "order_no", SanitizeHeader("\ufefforder_no"))
	assert.Equal(t, "order_no", SanitizeHeader("  order_no ​"))
	assert.Equal(t, "quantity", SanitizeHeader("quan‍tity"))
}

func TestParseTable(t *testing.T) {
	header, rows, err := ParseTable(strings.NewReader("\ufeffa,b\n1,2\n3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"3", "4"}, rows[1])
}

func TestParseTableRequiresDataRow(t *testing.T) {
	_, _, err := ParseTable(strings.NewReader("a,b\n"))
	require.Error(t, err)
}

func TestNumberOrZero(t *testing.T) {
	assert.InDelta(t, 3.5, NumberOrZero(" 3.5 "), 1e-9)
	assert.InDelta(t, 0, NumberOrZero(""), 1e-9)
	assert.InDelta(t, 0, NumberOrZero("abc"), 1e-9)
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2026-01-05", NormalizeDate("2026.1.5"))
	assert.Equal(t, "2026-01-05", NormalizeDate("2026/01/05"))
	assert.Equal(t, "2026-01-05", NormalizeDate("2026-1-5"))
	assert.Equal(t, "", NormalizeDate("  "))
	// 轉不動的原樣回傳
	assert.Equal(t, "3/5", NormalizeDate("3/5"))
	assert.Equal(t, "26-1-5", NormalizeDate("26-1-5"))
}

func TestNewExportWriterWritesBOM(t *testing.T) {
	var buf strings.Builder
	w := NewExportWriter(&buf)
	require.NoError(t, w.Write([]string{"代號", "名稱"}))
	w.Flush()
	assert.True(t, strings.HasPrefix(buf.String(), BOM))
	assert.Contains(t, buf.String(), "代號,名稱")
}
