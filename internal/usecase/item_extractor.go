package usecase

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/listcart/backend/internal/domain"
)

// itemLineRegex captures "<name><separator><quantity>" where the separator is
// "-", ":", "=" or a whitespace run and the quantity is a number with an
// optional unit suffix ("Milk - 2 L", "Eggs: 12", "Bread 1 pcs")
var itemLineRegex = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)\s*(?:[-:=]|\s)\s*(\d+(?:\.\d+)?\s*[A-Za-z]*)\s*$`)

// ExtractionResult is the structured output of ExtractItems.
//
// Items is an ordered association list keyed by item name. When the same
// name (case-insensitive) appears on several lines the last quantity wins,
// and the entry keeps the position of its first occurrence.
//
// AllLines holds every input line, recognised or not, so no OCR text is lost
// at the response boundary. Unparsed holds the lines that yielded no item.
type ExtractionResult struct {
	Items    []domain.CandidateItem
	AllLines []string
	Unparsed []string
}

// ExtractItem splits one repaired line into a candidate name and quantity token
func ExtractItem(line string) (domain.CandidateItem, bool) {
	line = strings.TrimSpace(norm.NFKC.String(line))

	m := itemLineRegex.FindStringSubmatch(line)
	if m == nil {
		return domain.CandidateItem{}, false
	}

	name := strings.TrimSpace(m[1])
	if name == "" {
		return domain.CandidateItem{}, false
	}

	return domain.CandidateItem{
		RawName:     name,
		RawQuantity: strings.TrimSpace(m[2]),
	}, true
}

// ExtractItems runs ExtractItem over every line in order
func ExtractItems(lines []string) ExtractionResult {
	result := ExtractionResult{
		AllLines: make([]string, 0, len(lines)),
	}
	index := make(map[string]int)

	for _, line := range lines {
		result.AllLines = append(result.AllLines, line)

		item, ok := ExtractItem(line)
		if !ok {
			result.Unparsed = append(result.Unparsed, line)
			continue
		}

		key := strings.ToLower(item.RawName)
		if pos, seen := index[key]; seen {
			result.Items[pos] = item
			continue
		}
		index[key] = len(result.Items)
		result.Items = append(result.Items, item)
	}

	return result
}
