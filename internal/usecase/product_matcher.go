package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/listcart/backend/internal/domain"
)

// minKeywordLength is the shortest token kept as a keyword; shorter tokens are noise
const minKeywordLength = 3

// matchStopWords are tokens that never identify a product: brand and
// marketing noise plus English function words long enough to survive the
// length filter
var matchStopWords = map[string]bool{
	// Brand/marketing noise
	"amul": true, "brand": true, "pack": true, "offer": true, "new": true,
	// English function words
	"the": true, "and": true, "for": true, "with": true, "from": true,
}

// ExtractKeywords lower-cases and splits a raw item name, dropping tokens of
// two runes or fewer and stop words
func ExtractKeywords(rawName string) []string {
	words := strings.Fields(strings.ToLower(rawName))

	var keywords []string
	for _, word := range words {
		if utf8.RuneCountInString(word) < minKeywordLength {
			continue
		}
		if matchStopWords[word] {
			continue
		}
		keywords = append(keywords, word)
	}

	return keywords
}

// KeywordPredicate requires every keyword to appear, in any order, in a
// product name (case-insensitive). It is immutable once built.
type KeywordPredicate struct {
	keywords []string
}

// BuildKeywordPredicate builds a predicate from keywords. Keywords are
// lower-cased and de-duplicated; order is kept.
func BuildKeywordPredicate(keywords []string) KeywordPredicate {
	seen := make(map[string]bool, len(keywords))
	kept := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		kept = append(kept, kw)
	}
	return KeywordPredicate{keywords: kept}
}

// Keywords returns a copy of the required keywords
func (p KeywordPredicate) Keywords() []string {
	out := make([]string, len(p.keywords))
	copy(out, p.keywords)
	return out
}

// Empty reports whether the predicate has no keywords
func (p KeywordPredicate) Empty() bool {
	return len(p.keywords) == 0
}

// Matches reports whether name contains every keyword
func (p KeywordPredicate) Matches(name string) bool {
	if len(p.keywords) == 0 {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range p.keywords {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// cacheKey is order-independent: "milk toned" and "toned milk" share a key
func (p KeywordPredicate) cacheKey() string {
	sorted := p.Keywords()
	sort.Strings(sorted)
	return "match:" + strings.Join(sorted, "+")
}

// MatcherConfig holds configuration for the product matcher
type MatcherConfig struct {
	TieBreak domain.TieBreak
	CacheTTL time.Duration
	// LookupTimeout bounds one shared catalog query; 0 means 10s
	LookupTimeout time.Duration
}

// ProductMatcher resolves raw item names to catalog products
type ProductMatcher struct {
	catalog       domain.ProductCatalog
	cache         domain.CacheRepository
	tieBreak      domain.TieBreak
	cacheTTL      time.Duration
	lookupTimeout time.Duration
	logger        *zap.Logger
	lookups       singleflight.Group
}

// cachedMatch is what the matcher stores per keyword set. Found=false caches a miss.
type cachedMatch struct {
	Found bool   `json:"found"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// NewProductMatcher creates a matcher. cache may be nil to disable caching.
func NewProductMatcher(
	catalog domain.ProductCatalog,
	cache domain.CacheRepository,
	config MatcherConfig,
	logger *zap.Logger,
) *ProductMatcher {
	tieBreak := config.TieBreak
	if tieBreak == "" {
		tieBreak = domain.TieBreakFirst
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	lookupTimeout := config.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = 10 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProductMatcher{
		catalog:       catalog,
		cache:         cache,
		tieBreak:      tieBreak,
		cacheTTL:      cacheTTL,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Match resolves rawName to a product. It returns (nil, nil) when nothing
// matches, including when rawName has no usable keywords, in which case the
// catalog is not queried. Catalog failures return ErrCatalogUnavailable; a
// done ctx returns ctx.Err().
//
// Concurrent calls for the same keywords share one catalog query. That query
// is detached from every caller's cancellation and bounded by the lookup
// timeout instead, so one caller going away never fails the others.
func (m *ProductMatcher) Match(ctx context.Context, rawName string) (*domain.ProductRef, error) {
	predicate := BuildKeywordPredicate(ExtractKeywords(rawName))
	if predicate.Empty() {
		m.logger.Debug("no keywords left, skipping catalog", zap.String("name", rawName))
		return nil, nil
	}

	key := predicate.cacheKey()
	if cached, ok := m.fromCache(ctx, key); ok {
		return cached.product(), nil
	}

	detached := context.WithoutCancel(ctx)
	results := m.lookups.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(detached, m.lookupTimeout)
		defer cancel()

		product, err := m.catalog.FindOne(lookupCtx, predicate, m.tieBreak)
		if err != nil {
			return nil, err
		}
		entry := cachedMatch{}
		if product != nil {
			entry = cachedMatch{Found: true, ID: product.ID, Name: product.Name}
		}
		m.toCache(lookupCtx, key, entry)
		return entry, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}

	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrCatalogUnavailable) {
			return nil, res.Err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, res.Err)
	}

	entry := res.Val.(cachedMatch)
	shared := res.Shared
	m.logger.Debug("catalog lookup",
		zap.String("name", rawName),
		zap.Strings("keywords", predicate.Keywords()),
		zap.Bool("found", entry.Found),
		zap.Bool("shared", shared),
	)

	return entry.product(), nil
}

func (c cachedMatch) product() *domain.ProductRef {
	if !c.Found {
		return nil
	}
	return &domain.ProductRef{ID: c.ID, Name: c.Name}
}

// fromCache reads a cached lookup. Cache errors are treated as misses.
func (m *ProductMatcher) fromCache(ctx context.Context, key string) (cachedMatch, bool) {
	if m.cache == nil {
		return cachedMatch{}, false
	}

	value, err := m.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			m.logger.Warn("match cache read failed", zap.String("key", key), zap.Error(err))
		}
		return cachedMatch{}, false
	}

	switch v := value.(type) {
	case cachedMatch:
		return v, true
	case *cachedMatch:
		return *v, true
	case map[string]interface{}:
		// The memory cache stores JSON-decoded values, like Redis would
		entry := cachedMatch{}
		entry.Found, _ = v["found"].(bool)
		entry.ID, _ = v["id"].(string)
		entry.Name, _ = v["name"].(string)
		return entry, true
	}

	return cachedMatch{}, false
}

func (m *ProductMatcher) toCache(ctx context.Context, key string, entry cachedMatch) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, key, entry, m.cacheTTL); err != nil {
		m.logger.Warn("match cache write failed", zap.String("key", key), zap.Error(err))
	}
}
