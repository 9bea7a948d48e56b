package report

import (
	"net/url"
	"time"

	"github.com/rohmanhakim/scoutly/internal/extractor"
	"github.com/rohmanhakim/scoutly/internal/linkvalidator"
)

/*
Responsibilities

- Hold the data model spec.md §3 defines: PageResult, Issue, CrawlReport
- Derive Issues from HTML Analyzer signals and Link Validator results
- Aggregate per-page results into one terminal CrawlReport

This package never fetches, parses, or validates anything itself; it only
shapes what the rest of the pipeline already produced.
*/

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

// IssueKind is the closed set spec.md §3 names, plus RobotsDisallowed, the
// one issue kind spec.md §4.7 step 2 names by name outside the §3 table.
type IssueKind string

const (
	KindBrokenLink             IssueKind = "broken_link"
	KindRedirectLink           IssueKind = "redirect_link"
	KindTitleMissing           IssueKind = "title_missing"
	KindTitleTooShort          IssueKind = "title_too_short"
	KindTitleTooLong           IssueKind = "title_too_long"
	KindMetaDescriptionMissing IssueKind = "meta_description_missing"
	KindMetaDescTooShort       IssueKind = "meta_description_too_short"
	KindMetaDescTooLong        IssueKind = "meta_description_too_long"
	KindH1Missing              IssueKind = "h1_missing"
	KindH1Multiple             IssueKind = "h1_multiple"
	KindImagesMissingAlt       IssueKind = "images_missing_alt"
	KindThinContent            IssueKind = "thin_content"
	KindOpenGraphMissing       IssueKind = "open_graph_missing"
	KindRobotsDisallowed       IssueKind = "robots_disallowed"
)

// Issue is one SEO or link finding attributed to a single page. Target and
// Tag are populated only for the kinds that carry them (link issues and
// OpenGraphMissing, respectively); Count is populated for H1Multiple and
// ImagesMissingAlt.
type Issue struct {
	Severity  Severity
	SourceURL url.URL
	Kind      IssueKind
	Detail    string
	Target    url.URL
	Count     int
	Tag       extractor.OpenGraphTag
}

// PageResult is recorded once per URL the engine actually fetched and chose
// to crawl (spec.md §3). A URL rejected before fetch (max-pages exhausted,
// robots disallow) never gets one; a URL that turned out, after following
// redirects, to resolve off-site is also never recorded as a PageResult — it
// becomes a LinkResult instead (spec.md §4.7 step 4). A fetched, non-HTML
// page still produces one, with Issues/OutboundLinks empty and OpenGraph
// not-applicable.
type PageResult struct {
	URL                   url.URL
	FinalURL              url.URL
	HTTPStatus            int
	ContentType           string
	Depth                 int
	Title                 string
	HasTitle              bool
	MetaDescription       string
	HasMetaDescription    bool
	H1Count               int
	ImagesMissingAlt      int
	ContentIndicatorCount int
	OutboundLinks         []url.URL
	Issues                []Issue
	OpenGraph             extractor.OpenGraphState
}

// Counters is CrawlReport's terminal, derived summary.
type Counters struct {
	PagesCrawled int
	LinksFound   int
	Broken       int
	Errors       int
	Warnings     int
	Info         int
}

// CrawlReport is the single aggregated value the core produces per run.
type CrawlReport struct {
	StartURL    url.URL
	Timestamp   time.Time
	Pages       []PageResult
	LinkResults []linkvalidator.LinkResult
	// OrphanIssues holds findings with no PageResult to attach to: today
	// that's only RobotsDisallowed (spec.md §4.7 step 2), raised for a URL
	// that is, by definition, never fetched.
	OrphanIssues []Issue
	Counters     Counters
}
