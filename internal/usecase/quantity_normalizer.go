package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/listcart/backend/internal/domain"
)

// quantityTokenRegex matches a whitespace-free, lower-cased quantity token
var quantityTokenRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ml|l|g|kg)?$`)

// NormalizeQuantity parses a free-form quantity token such as "500g", "2 L"
// or "3" into a canonical quantity. It never fails: anything it cannot parse
// becomes a count of 1, and counts below 1 are clamped to 1.
func NormalizeQuantity(token string) domain.Quantity {
	cleaned := strings.ToLower(stripSpaces(token))

	m := quantityTokenRegex.FindStringSubmatch(cleaned)
	if m == nil {
		return domain.DefaultQuantity
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return domain.DefaultQuantity
	}

	switch m[2] {
	case "g":
		return domain.Quantity{Value: value / 1000, Unit: domain.UnitKilogram}
	case "kg":
		return domain.Quantity{Value: value, Unit: domain.UnitKilogram}
	case "ml":
		return domain.Quantity{Value: value / 1000, Unit: domain.UnitLitre}
	case "l":
		return domain.Quantity{Value: value, Unit: domain.UnitLitre}
	}

	if value < 1 {
		value = 1
	}
	return domain.Quantity{Value: value, Unit: domain.UnitCount}
}

// stripSpaces removes every whitespace rune, not only the ends
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
