package domain

// Unit is the canonical unit of a normalized quantity
type Unit string

const (
	UnitCount    Unit = "unit"
	UnitKilogram Unit = "kg"
	UnitLitre    Unit = "litre"
)

// Source records how an item entered the pipeline
type Source string

const (
	SourceManual Source = "manual"
	SourceOCR    Source = "ocr"
)

// ParseSource maps a request value to a Source. Anything other than "ocr"
// is treated as a manual entry.
func ParseSource(s string) Source {
	if s == string(SourceOCR) {
		return SourceOCR
	}
	return SourceManual
}

// Quantity is a canonical (value, unit) pair. Value is always > 0.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// DefaultQuantity is what malformed or missing quantity tokens degrade to
var DefaultQuantity = Quantity{Value: 1, Unit: UnitCount}

// CandidateItem is a raw (name, quantity token) pair produced by the item
// extractor or supplied directly by a bulk upload
type CandidateItem struct {
	RawName     string `json:"rawName"`
	RawQuantity string `json:"rawQuantity"`
}

// ProductRef identifies a catalog product
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchResult is a candidate resolved (or not) against the catalog.
// A nil Product means the item was not found.
type MatchResult struct {
	Candidate CandidateItem `json:"candidate"`
	Product   *ProductRef   `json:"product,omitempty"`
	Quantity  Quantity      `json:"quantity"`
	Source    Source        `json:"source"`
}

// Matched reports whether the candidate resolved to a product
func (m MatchResult) Matched() bool {
	return m.Product != nil
}
