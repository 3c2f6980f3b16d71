package tabular

import (
	"fmt"
	"strings"
)

// columnLetter converts a 0-based column index to A1 letters (0 -> A, 26 -> AA).
func columnLetter(index int) string {
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// quoteSheet quotes a worksheet title for A1 notation.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// cellRange addresses one cell, e.g. 'Cursos'!C5.
func cellRange(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), columnLetter(col), row)
}
