// Package sheet extracts phone numbers from uploaded spreadsheets.
package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"warehouse_bot/internal/phone"
)

// ExtractPhones reads the first sheet of an Excel workbook and returns
// the normalized phone numbers found under the named header column,
// de-duplicated in first-seen order. The header is matched in row 1,
// trimmed and case-insensitive. Cells that do not hold a phone number
// are skipped.
func ExtractPhones(r io.Reader, column string) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	col := -1
	for i, header := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(header), column) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in sheet %q", column, sheetName)
	}

	var phones []string
	seen := make(map[string]struct{})
	for _, row := range rows[1:] {
		// Trailing empty cells are not part of the row.
		if col >= len(row) {
			continue
		}
		number, ok := phone.Normalize(row[col])
		if !ok {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		phones = append(phones, number)
	}
	return phones, nil
}
