package output

import (
	"fmt"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
)

type OutputErrorCause string

const (
	ErrCauseEncodeFailure OutputErrorCause = "encode failed"
	ErrCauseWriteFailure  OutputErrorCause = "write failed"
	ErrCauseDiskFull      OutputErrorCause = "disk is full"
	ErrCausePathError     OutputErrorCause = "path error"
)

// OutputError is always fatal: spec.md §7 classifies every output write
// failure as a startup-class error with a nonzero exit, never something
// the engine retries.
type OutputError struct {
	Message string
	Cause   OutputErrorCause
	Path    string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output error: %s", e.Cause)
}

func (e *OutputError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// mapOutputErrorToMetadataCause maps output-local error semantics to the
// canonical metadata.ErrorCause table. Observational only, per
// internal/metadata's rule: it must never drive control flow.
func mapOutputErrorToMetadataCause(err *OutputError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseEncodeFailure:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
