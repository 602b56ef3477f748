package usecase

import (
	"regexp"
	"strings"
)

var (
	// trailingSeparatorRegex matches a line that ends in a name/quantity separator
	trailingSeparatorRegex = regexp.MustCompile(`[-:=]\s*$`)

	// lineQuantityRegex detects a quantity-shaped token anywhere in a line, e.g. "2 L", "500g", "1.5 liters"
	lineQuantityRegex = regexp.MustCompile(`(?i)\d+(\.\d+)?\s*(kg|g|lb|oz|ml|liters?|litres?|l)\b`)
)

// RepairLines reassembles OCR lines that were split across two visual lines.
// A line ending in "-", ":" or "=" is joined with the following line when
// that line carries a quantity; the following line is then consumed.
// All other lines pass through untouched. Order is preserved and the output
// is never longer than the input.
func RepairLines(lines []string) []string {
	repaired := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if i+1 < len(lines) && trailingSeparatorRegex.MatchString(line) && lineQuantityRegex.MatchString(lines[i+1]) {
			joined := strings.TrimRightFunc(line, isSpace) + " " + strings.TrimSpace(lines[i+1])
			repaired = append(repaired, joined)
			i++
			continue
		}

		repaired = append(repaired, line)
	}

	return repaired
}
