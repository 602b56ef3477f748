package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/listcart/backend/internal/domain"
)

// TextRecognizer turns an image into text lines
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) ([]string, error)
}

// Matcher resolves a raw item name to a catalog product
type Matcher interface {
	Match(ctx context.Context, rawName string) (*domain.ProductRef, error)
}

// BulkItem is one entry of a bulk upload
type BulkItem struct {
	Name     string
	Quantity string
	Source   domain.Source
}

// BulkReport is the result of a bulk upload
type BulkReport struct {
	Outcome    domain.Outcome        `json:"outcome"`
	TotalAdded int                   `json:"totalAdded"`
	Cart       *domain.Cart          `json:"cart"`
	Added      []domain.AddedItem    `json:"added"`
	NotFound   []domain.NotFoundItem `json:"notFound"`
}

// ItemResult is the per-name outcome of a list upload
type ItemResult struct {
	Found            bool               `json:"found"`
	CartAdded        bool               `json:"cartAdded"`
	QuantityDetected domain.Quantity    `json:"quantityDetected"`
	Product          *domain.ProductRef `json:"product,omitempty"`
	Message          string             `json:"message,omitempty"`
}

// ListReport is the result of an OCR or pre-recognised list upload
type ListReport struct {
	Outcome            domain.Outcome        `json:"outcome"`
	TotalAdded         int                   `json:"totalAdded"`
	AllRecognizedLines []string              `json:"allRecognizedLines"`
	Results            map[string]ItemResult `json:"results"`
	Cart               *domain.Cart          `json:"cart"`
}

// IngestionService runs the list-to-cart pipeline
type IngestionService struct {
	recognizer TextRecognizer
	matcher    Matcher
	reconciler *CartReconciler
	logger     *zap.Logger
}

// NewIngestionService wires the pipeline stages. recognizer may be nil when
// image uploads are not configured.
func NewIngestionService(
	recognizer TextRecognizer,
	matcher Matcher,
	reconciler *CartReconciler,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		recognizer: recognizer,
		matcher:    matcher,
		reconciler: reconciler,
		logger:     logger,
	}
}

// IngestBulk normalizes, matches and reconciles a structured product list.
// Any blank name rejects the whole request before matching starts.
func (s *IngestionService) IngestBulk(ctx context.Context, userID string, items []BulkItem) (*BulkReport, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: products must be a non-empty array", domain.ErrInvalidInput)
	}

	candidates := make([]domain.CandidateItem, 0, len(items))
	sources := make([]domain.Source, 0, len(items))
	for i, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: product %d has no name", domain.ErrInvalidInput, i)
		}
		source := item.Source
		if source == "" {
			source = domain.SourceManual
		}
		candidates = append(candidates, domain.CandidateItem{RawName: name, RawQuantity: item.Quantity})
		sources = append(sources, source)
	}

	matches, err := s.matchAll(ctx, candidates, sources)
	if err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.Reconcile(ctx, userID, matches)
	if err != nil {
		return nil, err
	}

	return &BulkReport{
		Outcome:    domain.OutcomeForReport(len(outcome.NotFound)),
		TotalAdded: len(outcome.Added),
		Cart:       outcome.Cart,
		Added:      outcome.Added,
		NotFound:   outcome.NotFound,
	}, nil
}

// IngestImage recognises a shopping list photo and runs it through the
// list pipeline. OCR failures abort before the cart is touched.
func (s *IngestionService) IngestImage(ctx context.Context, userID string, image []byte) (*ListReport, error) {
	if s.recognizer == nil {
		return nil, fmt.Errorf("%w: OCR provider not configured", domain.ErrUpstreamFailure)
	}

	lines, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		s.logger.Warn("ocr failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return s.IngestLines(ctx, userID, lines)
}

// IngestLines repairs, extracts, matches and reconciles recognised text lines
func (s *IngestionService) IngestLines(ctx context.Context, userID string, lines []string) (*ListReport, error) {
	if lines == nil {
		return nil, fmt.Errorf("%w: lines are required", domain.ErrInvalidInput)
	}

	extraction := ExtractItems(RepairLines(lines))
	s.logger.Debug("list extracted",
		zap.String("user_id", userID),
		zap.Int("lines", len(lines)),
		zap.Int("items", len(extraction.Items)),
		zap.Int("unparsed", len(extraction.Unparsed)),
	)

	sources := make([]domain.Source, len(extraction.Items))
	for i := range sources {
		sources[i] = domain.SourceOCR
	}

	matches, err := s.matchAll(ctx, extraction.Items, sources)
	if err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.Reconcile(ctx, userID, matches)
	if err != nil {
		return nil, err
	}

	results := make(map[string]ItemResult, len(matches))
	for _, m := range matches {
		result := ItemResult{
			Found:            m.Matched(),
			CartAdded:        m.Matched(),
			QuantityDetected: m.Quantity,
			Product:          m.Product,
		}
		if !m.Matched() {
			result.Message = domain.NotFoundReason
		}
		results[m.Candidate.RawName] = result
	}

	return &ListReport{
		Outcome:            domain.OutcomeForReport(len(outcome.NotFound)),
		TotalAdded:         len(outcome.Added),
		AllRecognizedLines: extraction.AllLines,
		Results:            results,
		Cart:               outcome.Cart,
	}, nil
}

// GetCart returns the user's cart, or ErrCartNotFound
func (s *IngestionService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.reconciler.Cart(ctx, userID)
}

// matchAll normalizes and matches candidates in order. A catalog failure
// aborts the whole run, so no partial match list ever reaches the cart.
func (s *IngestionService) matchAll(
	ctx context.Context,
	candidates []domain.CandidateItem,
	sources []domain.Source,
) ([]domain.MatchResult, error) {
	matches := make([]domain.MatchResult, 0, len(candidates))

	for i, candidate := range candidates {
		product, err := s.matcher.Match(ctx, candidate.RawName)
		if err != nil {
			s.logger.Error("catalog lookup failed", zap.String("name", candidate.RawName), zap.Error(err))
			return nil, err
		}

		matches = append(matches, domain.MatchResult{
			Candidate: candidate,
			Product:   product,
			Quantity:  NormalizeQuantity(candidate.RawQuantity),
			Source:    sources[i],
		})
	}

	return matches, nil
}
