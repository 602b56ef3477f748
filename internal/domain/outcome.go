package domain

import "errors"

// Outcome is the abstract result code of one pipeline run. The delivery
// layer maps it to transport status codes.
type Outcome string

const (
	OutcomeAllMatched   Outcome = "OK_ALL_MATCHED"
	OutcomePartialMatch Outcome = "OK_PARTIAL_MATCH"
	OutcomeInvalidInput Outcome = "FAIL_INVALID_INPUT"
	OutcomeUpstream     Outcome = "FAIL_UPSTREAM"
	OutcomeConflict     Outcome = "FAIL_CONFLICT"
	OutcomeInternal     Outcome = "FAIL_INTERNAL"
)

// OutcomeForError classifies a pipeline-level error
func OutcomeForError(err error) Outcome {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrUpstreamTimeout),
		errors.Is(err, ErrUpstreamFailure),
		errors.Is(err, ErrCatalogUnavailable):
		return OutcomeUpstream
	case errors.Is(err, ErrCartRetriesExhausted), errors.Is(err, ErrCartConflict):
		return OutcomeConflict
	default:
		return OutcomeInternal
	}
}

// OutcomeForReport classifies a successful run. Unmatched items are still a success.
func OutcomeForReport(notFound int) Outcome {
	if notFound > 0 {
		return OutcomePartialMatch
	}
	return OutcomeAllMatched
}
