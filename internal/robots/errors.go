package robots

import (
	"fmt"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
)

// RobotsErrorCause enumerates the transport-level failures that can keep a
// robots.txt fetch from completing at all. Any HTTP status code, including
// 4xx/5xx, is a successful fetch (spec.md §4.4) and never reaches here —
// CachedRobot.Decide treats both these errors and non-2xx responses the
// same way: the origin's policy becomes "allow all".
type RobotsErrorCause string

const (
	ErrCausePreFetchFailure RobotsErrorCause = "failed before making fetch"
	ErrCauseHttpFetchFailure RobotsErrorCause = "failed to fetch"
	ErrCauseParseError       RobotsErrorCause = "failed to read robots.txt body"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s", e.Cause)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCausePreFetchFailure:
		return metadata.CauseUnknown
	case ErrCauseHttpFetchFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseParseError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
