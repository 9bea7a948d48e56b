package extractor

import (
	"net/url"

	"github.com/rohmanhakim/scoutly/internal/normalize"
)

// OpenGraphTag names the five Open Graph properties the analyzer tracks
// (spec.md §3's OpenGraphMissing(tag) issue kind).
type OpenGraphTag string

const (
	OgTitle       OpenGraphTag = "og:title"
	OgDescription OpenGraphTag = "og:description"
	OgImage       OpenGraphTag = "og:image"
	OgURL         OpenGraphTag = "og:url"
	OgType        OpenGraphTag = "og:type"
)

// TrackedOpenGraphTags is the closed set of tags OpenGraphState reports on.
var TrackedOpenGraphTags = []OpenGraphTag{OgTitle, OgDescription, OgImage, OgURL, OgType}

// OpenGraphState is the per-page Open Graph result. NotApplicable is set
// when the page was never analyzed at all (non-HTML content-type); it is
// distinct from an HTML page that simply carries no og: meta tags, where
// Present stays empty and every tracked tag is reported missing.
type OpenGraphState struct {
	Present       map[OpenGraphTag]string
	NotApplicable bool
}

func newOpenGraphState() OpenGraphState {
	return OpenGraphState{Present: make(map[OpenGraphTag]string, len(TrackedOpenGraphTags))}
}

// Missing reports which tracked tags were absent from the page.
func (s OpenGraphState) Missing() []OpenGraphTag {
	if s.NotApplicable {
		return nil
	}
	var missing []OpenGraphTag
	for _, tag := range TrackedOpenGraphTags {
		if _, ok := s.Present[tag]; !ok {
			missing = append(missing, tag)
		}
	}
	return missing
}

// OutboundLink is one reference discovered on the page, already resolved
// to an absolute URL by the URL Normalizer.
type OutboundLink struct {
	URL  url.URL
	Kind normalize.ReferenceKind
}

// SkippedReference is a reference the URL Normalizer rejected for carrying
// a non-http(s) scheme (mailto:, javascript:, tel:, ...). It is not an
// extraction error: the Crawl Engine records it as a Skipped LinkResult
// rather than discarding it outright (spec.md §4.1).
type SkippedReference struct {
	URL  url.URL
	Kind normalize.ReferenceKind
}

// PageSignals is everything a single DOM traversal collects for one page
// (spec.md §4.5). It carries no I/O and no shared state: two calls to
// Extract with the same bytes always produce the same PageSignals.
type PageSignals struct {
	Analyzed bool // false when content-type was not text/html

	Title             string
	HasTitle          bool
	MetaDescription   string
	HasMetaDesc       bool
	H1Count           int
	ImagesMissingAlt  int
	ContentIndicators int
	OpenGraph         OpenGraphState
	OutboundLinks     []OutboundLink
	SkippedReferences []SkippedReference
}

func newUnanalyzedSignals() PageSignals {
	return PageSignals{
		Analyzed:  false,
		OpenGraph: OpenGraphState{NotApplicable: true},
	}
}
