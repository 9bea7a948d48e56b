package extractor

import (
	"bytes"
	"errors"
	"mime"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/normalize"
	"golang.org/x/net/html"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Collect SEO signals in a single traversal: title, meta description, H1
  count, images missing alt text, content-indicator count, Open Graph
  tags, outbound links
- Resolve every discovered reference through the URL Normalizer

The Analyzer never isolates a "main content" subtree: every signal is
counted across the whole document, matching how a search engine or an SEO
auditor reads the page as delivered.
*/

// DomExtractor is the HTML Analyzer. It is a pure function over (URL,
// content-type, bytes): no I/O, no shared state, same input always yields
// the same PageSignals.
type DomExtractor struct {
	metadataSink  metadata.MetadataSink
	constraint    normalize.Constraint
	keepFragments bool
}

func NewDomExtractor(
	metadataSink metadata.MetadataSink,
	constraint normalize.Constraint,
	keepFragments bool,
) DomExtractor {
	return DomExtractor{
		metadataSink:  metadataSink,
		constraint:    constraint,
		keepFragments: keepFragments,
	}
}

// Extract collects PageSignals from htmlByte. Proceeds only when
// contentType's media type is text/html; otherwise returns signals marked
// not-analyzed, with no issues and open_graph not applicable (spec.md
// §4.5). A malformed document never aborts the crawl: it degrades to the
// best-effort signals golang.org/x/net/html's lenient parser recovers.
func (d *DomExtractor) Extract(sourceUrl url.URL, contentType string, htmlByte []byte) PageSignals {
	if !isHTMLContentType(contentType) {
		return newUnanalyzedSignals()
	}

	doc, err := html.Parse(bytes.NewReader(htmlByte))
	if err != nil {
		extractionError := &ExtractionError{
			Message: err.Error(),
			Cause:   ErrCauseNotHTML,
		}
		d.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"DomExtractor.Extract",
			mapExtractionErrorToMetadataCause(extractionError),
			extractionError.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, sourceUrl.String())},
		)
		return newUnanalyzedSignals()
	}

	gqDoc := goquery.NewDocumentFromNode(doc)
	signals := PageSignals{Analyzed: true, OpenGraph: newOpenGraphState()}

	d.collectTextSignals(gqDoc, &signals)
	d.collectOpenGraph(gqDoc, &signals)
	d.collectOutboundLinks(gqDoc, sourceUrl, &signals)

	return signals
}

func isHTMLContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// A bare "text/html" without parameters still parses; only a
		// thoroughly malformed header lands here, which we treat as
		// not-HTML rather than guessing.
		return false
	}
	return strings.EqualFold(mediaType, "text/html")
}

// collectTextSignals gathers every count-based signal that does not
// require resolving a URL: title, meta description, heading counts,
// image alt-text gaps, and content indicators.
func (d *DomExtractor) collectTextSignals(doc *goquery.Document, signals *PageSignals) {
	if title := doc.Find("title").First(); title.Length() > 0 {
		signals.Title = strings.TrimSpace(title.Text())
		signals.HasTitle = signals.Title != ""
	}

	doc.Find(`meta[name="description"]`).First().Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			signals.MetaDescription = strings.TrimSpace(content)
			signals.HasMetaDesc = signals.MetaDescription != ""
		}
	})

	signals.H1Count = doc.Find("h1").Length()

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, has := s.Attr("alt")
		if !has || strings.TrimSpace(alt) == "" {
			signals.ImagesMissingAlt++
		}
	})

	doc.Find("p, li, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if hasNonWhitespaceText(s) {
			signals.ContentIndicators++
		}
	})
}

// hasNonWhitespaceText reports whether the rendered text of s, including
// the text of its descendants, contains a non-space rune.
func hasNonWhitespaceText(s *goquery.Selection) bool {
	for _, r := range s.Text() {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// collectOpenGraph reads every <meta property="og:*"> tag the page
// carries, recording only the tags spec.md tracks.
func (d *DomExtractor) collectOpenGraph(doc *goquery.Document, signals *PageSignals) {
	doc.Find(`meta[property]`).Each(func(_ int, s *goquery.Selection) {
		property, _ := s.Attr("property")
		tag := OpenGraphTag(strings.ToLower(strings.TrimSpace(property)))
		if !isTrackedOpenGraphTag(tag) {
			return
		}
		if _, already := signals.OpenGraph.Present[tag]; already {
			return // first occurrence wins, mirroring <title>
		}
		content, _ := s.Attr("content")
		signals.OpenGraph.Present[tag] = content
	})
}

func isTrackedOpenGraphTag(tag OpenGraphTag) bool {
	for _, t := range TrackedOpenGraphTags {
		if t == tag {
			return true
		}
	}
	return false
}

// outboundSelectors pairs each element/attribute the spec names with the
// normalize.ReferenceKind it gets tagged as.
var outboundSelectors = []struct {
	selector string
	attr     string
	kind     normalize.ReferenceKind
}{
	{"a[href]", "href", normalize.KindAnchor},
	{"iframe[src]", "src", normalize.KindIframe},
	{"video[src]", "src", normalize.KindVideo},
	{"video source[src], audio source[src]", "src", normalize.KindSource},
	{"audio[src]", "src", normalize.KindAudio},
	{"embed[src]", "src", normalize.KindEmbed},
	{"object[data]", "data", normalize.KindObject},
}

// collectOutboundLinks resolves every reference named in spec.md §4.5
// through the URL Normalizer, deduplicating by resolved URL within this
// page. A reference rejected for an unsupported scheme (mailto:,
// javascript:, tel:, ...) is recorded as a SkippedReference rather than
// discarded, so the Crawl Engine can still emit a Skipped LinkResult for
// it (spec.md §4.1); a malformed reference has no well-formed URL to
// record and is dropped.
func (d *DomExtractor) collectOutboundLinks(doc *goquery.Document, sourceUrl url.URL, signals *PageSignals) {
	seen := make(map[string]bool)
	skippedSeen := make(map[string]bool)

	for _, sel := range outboundSelectors {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			raw, ok := s.Attr(sel.attr)
			if !ok || strings.TrimSpace(raw) == "" {
				return
			}

			param := normalize.NewReferenceParam(sourceUrl, d.keepFragments, sel.kind)
			resolved, err := d.constraint.Normalize(raw, param)
			if err != nil {
				var normErr *normalize.NormalizationError
				if errors.As(err, &normErr) && normErr.Cause == normalize.ErrCauseUnsupportedScheme {
					key := normErr.RejectedURL.String()
					if !skippedSeen[key] {
						skippedSeen[key] = true
						signals.SkippedReferences = append(signals.SkippedReferences, SkippedReference{
							URL:  normErr.RejectedURL,
							Kind: sel.kind,
						})
					}
				}
				return
			}

			key := resolved.URL().String()
			if seen[key] {
				return
			}
			seen[key] = true

			signals.OutboundLinks = append(signals.OutboundLinks, OutboundLink{
				URL:  resolved.URL(),
				Kind: sel.kind,
			})
		})
	}
}
