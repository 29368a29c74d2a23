// Package csvx: 進出 CSV 的共用小工具。
// 匯入端吃 UTF-8（可帶 BOM）、逗號分隔、雙引號跳脫；匯出端固定加 BOM，
// Excel 開起來中文才不會亂碼。
package csvx

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const BOM = "\ufeff"

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F\x{200B}-\x{200D}\x{2060}]`)

// SanitizeHeader: 去掉 BOM、控制字元、零寬字元。Excel 另存的檔常夾這些。
func SanitizeHeader(h string) string {
	h = strings.TrimPrefix(h, BOM)
	h = controlChars.ReplaceAllString(h, "")
	return strings.TrimSpace(h)
}

// ParseTable: 讀整個 CSV，回傳清洗過的標題列與資料列。
// 至少要有標題列加一筆資料。
func ParseTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // 欄數不齊交給呼叫端自己對
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("CSV 解析失敗: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("CSV 內容不足，至少需要標題列與一筆資料")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = SanitizeHeader(h)
	}

	return headers, records[1:], nil
}

// NumberOrZero: 寬鬆的數字解析，空白或壞值一律當 0（匯入端刻意放水）。
func NumberOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeDate: 2026.1.5、2026/01/05 之類的寫法轉成 2026-01-05。
// 轉不動就原樣回傳，留給上層報錯。
func NormalizeDate(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ""
	}

	normalized := strings.NewReplacer(".", "-", "/", "-").Replace(raw)
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 {
		return raw
	}

	year, month, day := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if len(year) != 4 || month == "" || day == "" {
		return raw
	}
	for _, p := range []string{year, month, day} {
		if _, err := strconv.Atoi(p); err != nil {
			return raw
		}
	}

	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}
	return year + "-" + month + "-" + day
}

// NewExportWriter: 先寫 BOM 再給 csv.Writer。
// 匯出一律先組在記憶體，BOM 寫入不會失敗。
func NewExportWriter(w io.Writer) *csv.Writer {
	io.WriteString(w, BOM)
	return csv.NewWriter(w)
}
