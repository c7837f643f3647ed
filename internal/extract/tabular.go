package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXlsx serializes every sheet row by row into plain text, one line
// per row with cells joined by commas, prefixed by the sheet name.
func extractXlsx(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("unreadable spreadsheet: %v", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %q: %v", sheet, err)
		}
		sb.WriteString("Sheet: " + sheet + "\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, ", "))
			if line != "" {
				sb.WriteString(line + "\n")
			}
		}
	}
	return sb.String(), nil
}
