package normalize

import (
	"fmt"
	"net/url"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
)

type NormalizationErrorCause string

const (
	ErrCauseUnsupportedScheme NormalizationErrorCause = "unsupported scheme"
	ErrCauseMalformedRef      NormalizationErrorCause = "malformed reference"
)

// NormalizationError is always terminal for the single reference being
// resolved: a rejected href/src is never retried.
// RejectedURL carries the resolved-but-unsupported-scheme URL when Cause is
// ErrCauseUnsupportedScheme, so the caller can still record a Skipped link
// for it (spec.md §4.1); it is the zero value for a malformed reference,
// which has no well-formed URL to record at all.
type NormalizationError struct {
	Message     string
	Cause       NormalizationErrorCause
	RejectedURL url.URL
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s: %s", e.Cause, e.Message)
}

func (e *NormalizationError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(cause NormalizationErrorCause) metadata.ErrorCause {
	switch cause {
	case ErrCauseUnsupportedScheme:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
