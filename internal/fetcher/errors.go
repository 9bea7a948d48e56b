package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
)

// FetchErrorCause enumerates the TransportError kinds of spec.md §4.2.
// HTTP status codes (4xx/5xx) are never a FetchError — they are ordinary
// FetchResult values; only failures below the HTTP layer reach here.
type FetchErrorCause string

const (
	ErrCauseTimeout               FetchErrorCause = "timeout"
	ErrCauseDNSFailure            FetchErrorCause = "dns failure"
	ErrCauseConnectionRefused     FetchErrorCause = "connection refused"
	ErrCauseTLSError              FetchErrorCause = "tls error"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCauseRedirectLimitExceeded FetchErrorCause = "reached redirect limit"
	ErrCauseOther                 FetchErrorCause = "other"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseDNSFailure, ErrCauseConnectionRefused, ErrCauseTLSError:
		return metadata.CauseNetworkFailure
	case ErrCauseRedirectLimitExceeded:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
