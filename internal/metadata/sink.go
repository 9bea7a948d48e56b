package metadata

import "time"

// MetadataSink is the observational-only recording surface every pipeline
// stage writes through. Nothing read back from a MetadataSink may influence
// scheduling, retries, or crawl termination.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errString string, attrs []Attribute)
	RecordProgress(event ProgressEvent)
}

// NoopSink discards every record. Useful as a zero-value default and in
// tests that don't care about observability output.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)             {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordProgress(ProgressEvent)                                          {}
