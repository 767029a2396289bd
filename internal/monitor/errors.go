package monitor

import (
	"context"
	"errors"
)

var (
	ErrQuotaExceeded = errors.New("monitor quota exceeded")
	ErrNotFound      = errors.New("monitor not found")
	ErrNotOwner      = errors.New("monitor belongs to another user")
	ErrInvalidParams = errors.New("invalid search parameters")

	// Fetchers wrap these so the scheduler can classify failures.
	ErrNoResults   = errors.New("no flight listings")
	ErrParseFailed = errors.New("listing parse failed")
)

// FailureReason classifies a failed per-monitor task.
type FailureReason string

const (
	FailureTimeout   FailureReason = "timeout"
	FailureParse     FailureReason = "parse_failed"
	FailureNoResults FailureReason = "no_results"
	FailureFetch     FailureReason = "fetch_failed"
	FailureStore     FailureReason = "store_failed"
	FailurePanic     FailureReason = "panic"
	FailureAbandoned FailureReason = "abandoned"
	FailureNotActive FailureReason = "not_active"
)

// ClassifyFetchError maps a Fetcher error onto a FailureReason.
func ClassifyFetchError(err error) FailureReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrNoResults):
		return FailureNoResults
	case errors.Is(err, ErrParseFailed):
		return FailureParse
	default:
		return FailureFetch
	}
}
