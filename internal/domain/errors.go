package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request body is malformed (missing or
	// non-array product list, missing name, empty image)
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamTimeout is returned when the OCR provider did not finish within the attempt bound
	ErrUpstreamTimeout = errors.New("OCR provider timed out")

	// ErrUpstreamFailure is returned when the OCR provider reports a failure or cannot be reached
	ErrUpstreamFailure = errors.New("OCR provider failed")

	// ErrCatalogUnavailable is returned when catalog lookups cannot be performed.
	// Not found is a normal outcome and never uses this error.
	ErrCatalogUnavailable = errors.New("product catalog unavailable")

	// ErrCartNotFound is returned by cart stores when the user has no cart yet
	ErrCartNotFound = errors.New("cart not found")

	// ErrCartConflict is returned by cart stores when the cart changed since it was loaded
	ErrCartConflict = errors.New("cart write conflict")

	// ErrCartRetriesExhausted is returned when every save attempt hit a conflict
	ErrCartRetriesExhausted = errors.New("cart write retries exhausted")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
