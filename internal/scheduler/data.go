package scheduler

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/scoutly/internal/config"
	"github.com/rohmanhakim/scoutly/internal/extractor"
	"github.com/rohmanhakim/scoutly/internal/fetcher"
	"github.com/rohmanhakim/scoutly/internal/frontier"
	"github.com/rohmanhakim/scoutly/internal/linkvalidator"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/report"
	"github.com/rohmanhakim/scoutly/internal/robots"
	"github.com/rohmanhakim/scoutly/pkg/limiter"
	"github.com/rohmanhakim/scoutly/pkg/retry"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

/*
Responsibilities

- Run spec.md §4.7's Crawl Engine loop: drain the frontier, fetch, analyze,
  submit outbound links for both validation and further crawling
- Be the single admission choke point: every URL the crawl ever fetches
  passed through robots and depth/page-budget checks first
- Detect termination: frontier empty, no page worker in flight, no link
  validation in flight
- Produce exactly one terminal report.CrawlReport

The Engine owns no retry or backoff logic of its own; it builds one
retry.RetryParam from config and hands it to the Fetcher/Validator, which
already know how to retry.
*/

// robotsChecker is the subset of robots.CachedRobot the Engine depends on,
// kept as an interface so tests can inject a fake robots policy without a
// network round trip.
type robotsChecker interface {
	Init(userAgent string)
	Decide(ctx context.Context, u url.URL) (robots.Decision, *robots.RobotsError)
}

// htmlExtractor is the subset of extractor.DomExtractor the Engine depends on.
type htmlExtractor interface {
	Extract(sourceURL url.URL, contentType string, htmlByte []byte) extractor.PageSignals
}

// linkChecker is the subset of linkvalidator.Validator the Engine depends on.
type linkChecker interface {
	Validate(ctx context.Context, linkURL url.URL, crawlDepth int, retryParam retry.RetryParam) linkvalidator.LinkResult
}

// Engine is the Crawl Engine: a bounded worker pool draining the frontier,
// fetching and analyzing pages, and resolving every outbound link to
// exactly one LinkResult.
type Engine struct {
	cfg          config.Config
	metadataSink metadata.MetadataSink

	frontier    *frontier.CrawlFrontier
	fetcher     fetcher.Fetcher
	robot       robotsChecker
	extractor   htmlExtractor
	validator   linkChecker
	rateLimiter limiter.RateLimiter

	startOrigin urlutil.SiteOrigin
	retryParam  retry.RetryParam
	sem         *semaphore.Weighted

	aggregator *report.Aggregator

	linkGroup   singleflight.Group
	linkMu      sync.Mutex
	linkResults map[string]linkvalidator.LinkResult

	// crawlDelayMu guards crawlDelay, the largest robots.txt Crawl-delay
	// observed so far this run. It is passed to every child candidate's
	// DiscoveryMetadata so the frontier can hand it back on that token,
	// and honored as a pre-fetch pause in processPage.
	crawlDelayMu sync.Mutex
	crawlDelay   time.Duration

	// pagesCrawled is spec.md §4.7's pages_crawled counter.
	pagesCrawled atomic.Int64
	// inFlight counts frontier entries dequeued-but-not-yet-fully-handled
	// plus outbound-link validations still running. It is incremented
	// before a worker starts handling an entry and decremented only after
	// every piece of follow-on work that entry could produce (new frontier
	// submissions, link validations) has itself been accounted for. A
	// worker may stop polling the frontier only when it finds both the
	// frontier empty and inFlight at zero: that combination means nothing
	// left running could ever add more work (spec.md §4.7's termination
	// condition).
	inFlight atomic.Int64

	wg sync.WaitGroup
}
