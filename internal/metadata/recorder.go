package metadata

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder is the default MetadataSink, backed by a structured zerolog
// logger. Every record carries a runID so log lines from one crawl can be
// correlated without a shared document store.
type Recorder struct {
	logger   zerolog.Logger
	runID    string
	progress chan ProgressEvent
	verbose  bool
}

// NewRecorder builds a Recorder writing to w at the given minimum level.
// runID is attached to every log line (see pkg/hashutil for how callers
// derive one). When verbose is false, progress events are recorded but the
// channel returned by Progress() is nil, so nothing subscribes to it.
func NewRecorder(w io.Writer, level zerolog.Level, runID string, verbose bool) *Recorder {
	logger := zerolog.New(w).Level(level).With().Timestamp().Str("run_id", runID).Logger()

	r := &Recorder{
		logger:  logger,
		runID:   runID,
		verbose: verbose,
	}
	if verbose {
		// Buffered so a slow renderer never blocks the engine (spec.md §9).
		r.progress = make(chan ProgressEvent, 256)
	}
	return r
}

// Progress returns the channel progress events are published on, or nil if
// verbose mode is disabled. The CLI renderer ranges over this channel.
func (r *Recorder) Progress() <-chan ProgressEvent {
	return r.progress
}

// Close closes the progress channel. Call once the crawl has terminated.
func (r *Recorder) Close() {
	if r.progress != nil {
		close(r.progress)
	}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.logger.Debug().
		Str("url", fetchUrl).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("depth", crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errString string, attrs []Attribute) {
	event := r.logger.Warn().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str("error", errString)
	for _, a := range attrs {
		event = event.Str(string(a.Key), a.Value)
	}
	event.Msg("error")
}

func (r *Recorder) RecordProgress(event ProgressEvent) {
	r.logger.Trace().
		Int("pages_crawled", event.PagesCrawled).
		Int("links_found", event.LinksFound).
		Str("current_url", event.CurrentURL).
		Int("depth", event.Depth).
		Msg("progress")

	if r.progress == nil {
		return
	}
	select {
	case r.progress <- event:
	default:
		// Never block the engine on a slow or absent renderer.
	}
}
