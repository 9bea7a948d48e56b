package scheduler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/scoutly/internal/config"
	"github.com/rohmanhakim/scoutly/internal/extractor"
	"github.com/rohmanhakim/scoutly/internal/fetcher"
	"github.com/rohmanhakim/scoutly/internal/frontier"
	"github.com/rohmanhakim/scoutly/internal/linkvalidator"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/normalize"
	"github.com/rohmanhakim/scoutly/internal/report"
	"github.com/rohmanhakim/scoutly/internal/robots"
	"github.com/rohmanhakim/scoutly/pkg/limiter"
	"github.com/rohmanhakim/scoutly/pkg/retry"
	"github.com/rohmanhakim/scoutly/pkg/timeutil"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const workerIdleBackoff = 5 * time.Millisecond

// NewEngine wires the Crawl Engine's concrete dependencies from cfg: the
// real Fetcher, robots cache, HTML analyzer, and link validator. Page
// fetches and link validations share one rate limiter; the robots cache
// fetches robots.txt with its own HTTP client, outside that limiter.
func NewEngine(cfg config.Config, metadataSink metadata.MetadataSink) *Engine {
	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink, cfg.Timeout())

	rateLimiter := newRateLimiter(cfg.RateLimit())

	robot := robots.NewCachedRobot(metadataSink)
	robot.Init(cfg.UserAgent())

	constraint := normalize.NewReferenceConstraint(metadataSink)
	domExtractor := extractor.NewDomExtractor(metadataSink, constraint, cfg.KeepFragments())

	validator := linkvalidator.NewValidator(metadataSink, htmlFetcher, rateLimiter, cfg.UserAgent())

	fr := frontier.NewCrawlFrontier()
	fr.Init(cfg)

	return NewEngineWithDeps(cfg, metadataSink, fr, htmlFetcher, &robot, &domExtractor, validator, rateLimiter)
}

// NewEngineWithDeps builds an Engine from already-constructed dependencies,
// the constructor-injection shape this package's tests use to substitute
// fakes for the network-facing pieces.
func NewEngineWithDeps(
	cfg config.Config,
	metadataSink metadata.MetadataSink,
	fr *frontier.CrawlFrontier,
	htmlFetcher fetcher.Fetcher,
	robot robotsChecker,
	domExtractor htmlExtractor,
	validator linkChecker,
	rateLimiter limiter.RateLimiter,
) *Engine {
	return &Engine{
		cfg:          cfg,
		metadataSink: metadataSink,
		frontier:     fr,
		fetcher:      htmlFetcher,
		robot:        robot,
		extractor:    domExtractor,
		validator:    validator,
		rateLimiter:  rateLimiter,
		startOrigin:  urlutil.NewSiteOrigin(cfg.StartURL()),
		retryParam:   buildRetryParam(cfg),
		sem:          semaphore.NewWeighted(int64(cfg.Concurrency())),
		aggregator:   report.NewAggregator(cfg.StartURL()),
		linkResults:  make(map[string]linkvalidator.LinkResult),
	}
}

func newRateLimiter(ratePerSecond float64) limiter.RateLimiter {
	if ratePerSecond <= 0 {
		return limiter.NoopLimiter{}
	}
	return limiter.NewTokenBucketLimiter(ratePerSecond)
}

func buildRetryParam(cfg config.Config) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	return retry.NewRetryParam(cfg.BackoffInitialDuration(), cfg.RetryJitter(), cfg.RetryRandomSeed(), cfg.MaxAttempt(), backoff)
}

// Run drains the frontier to completion and returns the terminal report.
// It submits the start URL at depth 0, spawns cfg.Concurrency() page
// workers, waits for every worker to observe quiescence, and builds the
// report from whatever the run accumulated.
func (e *Engine) Run(ctx context.Context) report.CrawlReport {
	e.inFlight.Add(1)
	if !e.frontier.Submit(frontier.NewCrawlAdmissionCandidate(e.cfg.StartURL(), frontier.SourceSeed, frontier.NewDiscoveryMetadata(0, nil))) {
		e.inFlight.Add(-1)
	}

	workers := e.cfg.Concurrency()
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.runPageWorker(ctx)
	}
	e.wg.Wait()

	return e.aggregator.Build(time.Now())
}

// runPageWorker polls the frontier until the run is quiescent: empty AND
// nothing still in flight. A dequeue failure alone is not enough to stop,
// since another worker's in-flight page may still submit the entry this
// worker is waiting for.
func (e *Engine) runPageWorker(ctx context.Context) {
	defer e.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		token, ok := e.frontier.Dequeue()
		if !ok {
			if e.inFlight.Load() == 0 {
				return
			}
			time.Sleep(workerIdleBackoff)
			continue
		}

		e.processPage(ctx, token)
	}
}

// processPage implements one iteration of spec.md §4.7's per-entry loop.
// inFlight is decremented only once every piece of follow-on work the
// entry produced (child frontier submissions, outbound link validations)
// has itself been launched and accounted for.
func (e *Engine) processPage(ctx context.Context, token frontier.CrawlToken) {
	defer e.inFlight.Add(-1)

	pageURL := token.URL()
	depth := token.Depth()

	// Step 1: max_pages budget.
	if e.pagesCrawled.Load() >= int64(e.cfg.MaxPages()) {
		return
	}

	// Step 2: robots.
	if e.cfg.RespectRobotsTxt() {
		decision, rerr := e.robot.Decide(ctx, pageURL)
		if rerr == nil && !decision.Allowed {
			e.aggregator.AddIssue(report.RobotsDisallowedIssue(pageURL))
			return
		}
		if rerr == nil && decision.CrawlDelay > 0 {
			e.recordCrawlDelay(decision.CrawlDelay)
		}
	}

	// Step 2b: honor a Crawl-delay observed on whichever page discovered
	// this token, on top of (not instead of) the shared rate limiter.
	if delay := token.DelayOverride(); delay != nil && *delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(*delay):
		}
	}

	// Step 3: acquire a rate token, then fetch.
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return
	}
	if err := e.rateLimiter.Wait(ctx); err != nil {
		e.sem.Release(1)
		return
	}
	fetchParam := fetcher.NewFetchParam(pageURL, e.cfg.UserAgent(), fetcher.MethodGet)
	result, ferr := e.fetcher.Fetch(ctx, depth, fetchParam, e.retryParam)
	e.sem.Release(1)
	if ferr != nil {
		return
	}

	// Step 4: a redirect that landed off-site never gets a PageResult, only
	// a LinkResult for the URL as originally requested.
	finalURL := result.URL()
	if !urlutil.IsSameSite(finalURL, e.startOrigin) {
		classification := linkvalidator.Classify(result.Code())
		if result.RedirectHops() > 0 {
			classification = linkvalidator.Redirect
		}
		e.recordLinkResult(pageURL, linkvalidator.LinkResult{
			URL:                 pageURL,
			HTTPStatus:          result.Code(),
			RedirectChainLength: result.RedirectHops(),
			Classification:      classification,
		})
		return
	}

	page := report.PageResult{
		URL:         pageURL,
		FinalURL:    finalURL,
		HTTPStatus:  result.Code(),
		ContentType: result.ContentType(),
		Depth:       depth,
	}

	// Step 5: HTML analysis.
	signals := e.extractor.Extract(finalURL, result.ContentType(), result.Body())
	page.Title = signals.Title
	page.HasTitle = signals.HasTitle
	page.MetaDescription = signals.MetaDescription
	page.HasMetaDescription = signals.HasMetaDesc
	page.H1Count = signals.H1Count
	page.ImagesMissingAlt = signals.ImagesMissingAlt
	page.ContentIndicatorCount = signals.ContentIndicators
	page.OpenGraph = signals.OpenGraph
	page.OutboundLinks = rawURLs(signals.OutboundLinks)

	// Step 6: resolve every outbound link to a LinkResult, and submit the
	// same-site (or follow_external) ones into the frontier for crawling.
	linkResultsByKey := e.handleOutboundLinks(ctx, signals, depth)

	page.Issues = append(
		report.BuildContentIssues(finalURL, signals),
		report.BuildLinkIssues(finalURL, signals.OutboundLinks, linkResultsByKey, e.cfg.IgnoreRedirects(), e.cfg.KeepFragments())...,
	)

	e.aggregator.AddPage(page)

	// Step 7: pages_crawled and progress.
	pagesCrawled := e.pagesCrawled.Add(1)
	e.metadataSink.RecordProgress(metadata.ProgressEvent{
		PagesCrawled: int(pagesCrawled),
		LinksFound:   len(signals.OutboundLinks),
		CurrentURL:   finalURL.String(),
		Depth:        depth,
	})
}

// handleOutboundLinks fans out over every OutboundLink and SkippedReference
// on the page: each gets exactly one LinkResult (deduped by link-equivalence
// across the whole run via resolveLinkResult), and each OutboundLink that is
// same-site, or follow_external is set, is also submitted into the frontier
// at depth+1 when that stays within MaxDepth.
func (e *Engine) handleOutboundLinks(ctx context.Context, signals extractor.PageSignals, sourceDepth int) map[string]linkvalidator.LinkResult {
	perPage := make(map[string]linkvalidator.LinkResult, len(signals.OutboundLinks)+len(signals.SkippedReferences))

	var grp errgroup.Group
	var resultsMu sync.Mutex

	childDepth := sourceDepth + 1
	admitChild := childDepth <= e.cfg.MaxDepth()

	for _, link := range signals.OutboundLinks {
		link := link
		key := urlutil.LinkEquivalenceKey(link.URL, e.cfg.KeepFragments())

		if admitChild && (urlutil.IsSameSite(link.URL, e.startOrigin) || e.cfg.FollowExternal()) {
			e.inFlight.Add(1)
			candidate := frontier.NewCrawlAdmissionCandidate(link.URL, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(childDepth, e.currentCrawlDelay()))
			if !e.frontier.Submit(candidate) {
				e.inFlight.Add(-1)
			}
		}

		grp.Go(func() error {
			result := e.resolveLinkResult(ctx, link, sourceDepth)
			resultsMu.Lock()
			perPage[key] = result
			resultsMu.Unlock()
			return nil
		})
	}

	for _, skipped := range signals.SkippedReferences {
		key := urlutil.LinkEquivalenceKey(skipped.URL, e.cfg.KeepFragments())
		result := e.recordSkippedOnce(key, skipped.URL)
		perPage[key] = result
	}

	grp.Wait()
	return perPage
}

// resolveLinkResult validates link exactly once across the whole run: a
// link already resolved by an earlier page reuses that result, and
// concurrent first-time validations of the same link collapse onto a
// single in-flight request.
func (e *Engine) resolveLinkResult(ctx context.Context, link extractor.OutboundLink, sourceDepth int) linkvalidator.LinkResult {
	key := urlutil.LinkEquivalenceKey(link.URL, e.cfg.KeepFragments())

	if cached, ok := e.cachedLinkResult(key); ok {
		return cached
	}

	v, _, _ := e.linkGroup.Do(key, func() (interface{}, error) {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			result := linkvalidator.LinkResult{URL: link.URL, Classification: linkvalidator.Unreachable}
			e.storeLinkResult(key, result)
			return result, nil
		}
		result := e.validator.Validate(ctx, link.URL, sourceDepth, e.retryParam)
		e.sem.Release(1)
		e.storeLinkResult(key, result)
		return result, nil
	})

	return v.(linkvalidator.LinkResult)
}

// recordSkippedOnce records the Skipped LinkResult for a non-http(s)
// reference at most once per link-equivalence key across the run.
func (e *Engine) recordSkippedOnce(key string, skippedURL url.URL) linkvalidator.LinkResult {
	if cached, ok := e.cachedLinkResult(key); ok {
		return cached
	}
	result := linkvalidator.Skip(skippedURL)
	e.storeLinkResult(key, result)
	return result
}

func (e *Engine) cachedLinkResult(key string) (linkvalidator.LinkResult, bool) {
	e.linkMu.Lock()
	defer e.linkMu.Unlock()
	result, ok := e.linkResults[key]
	return result, ok
}

func (e *Engine) storeLinkResult(key string, result linkvalidator.LinkResult) {
	e.linkMu.Lock()
	if _, exists := e.linkResults[key]; exists {
		e.linkMu.Unlock()
		return
	}
	e.linkResults[key] = result
	e.linkMu.Unlock()
	e.aggregator.AddLinkResult(result)
}

// recordLinkResult is recordSkippedOnce's sibling for the step-4 became-
// external case, where the key is derived from the original request URL.
func (e *Engine) recordLinkResult(sourceURL url.URL, result linkvalidator.LinkResult) {
	key := urlutil.LinkEquivalenceKey(sourceURL, e.cfg.KeepFragments())
	e.storeLinkResult(key, result)
}

// recordCrawlDelay widens the run's observed Crawl-delay to at least d. It
// never narrows: once robots.txt asks for a pause, every later-discovered
// link on that host inherits at least that pause too.
func (e *Engine) recordCrawlDelay(d time.Duration) {
	e.crawlDelayMu.Lock()
	if d > e.crawlDelay {
		e.crawlDelay = d
	}
	e.crawlDelayMu.Unlock()
}

// currentCrawlDelay returns the run's observed Crawl-delay as a
// DiscoveryMetadata delay override, or nil when robots.txt never asked
// for one.
func (e *Engine) currentCrawlDelay() *time.Duration {
	e.crawlDelayMu.Lock()
	defer e.crawlDelayMu.Unlock()
	if e.crawlDelay <= 0 {
		return nil
	}
	d := e.crawlDelay
	return &d
}

func rawURLs(links []extractor.OutboundLink) []url.URL {
	out := make([]url.URL, 0, len(links))
	for _, link := range links {
		out = append(out, link.URL)
	}
	return out
}
