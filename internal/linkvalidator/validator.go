package linkvalidator

import (
	"context"
	"net/url"
	"time"

	"github.com/rohmanhakim/scoutly/internal/fetcher"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/limiter"
	"github.com/rohmanhakim/scoutly/pkg/retry"
)

/*
Responsibilities

- Classify every discovered link into Ok/Redirect/Broken/Unreachable/Skipped
  (spec.md §4.6)
- Share the rate limiter with the rest of the crawl, so link validation
  never exceeds the same requests-per-second ceiling as page fetches
- Issue at most one request per unique link: callers dedupe by
  link-equivalence before calling Validate

A link already known to carry a non-http(s) scheme (surfaced by the HTML
Analyzer as a SkippedReference) never reaches the Validator: Skip it at the
call site instead of here, since no request should ever be attempted for it.
*/

// Validator checks a link's reachability without inspecting its content:
// only status code and redirect count matter.
type Validator struct {
	metadataSink metadata.MetadataSink
	fetcher      fetcher.Fetcher
	rateLimiter  limiter.RateLimiter
	userAgent    string
}

func NewValidator(
	metadataSink metadata.MetadataSink,
	htmlFetcher fetcher.Fetcher,
	rateLimiter limiter.RateLimiter,
	userAgent string,
) *Validator {
	return &Validator{
		metadataSink: metadataSink,
		fetcher:      htmlFetcher,
		rateLimiter:  rateLimiter,
		userAgent:    userAgent,
	}
}

// Validate fetches linkURL with GET and classifies the outcome. It never
// returns an error: a transport failure becomes an Unreachable
// Classification, not a failure.ClassifiedError, because a broken outbound
// link is an ordinary crawl finding, not a crawl-halting condition.
func (v *Validator) Validate(
	ctx context.Context,
	linkURL url.URL,
	crawlDepth int,
	retryParam retry.RetryParam,
) LinkResult {
	if err := v.rateLimiter.Wait(ctx); err != nil {
		return LinkResult{URL: linkURL, Classification: Unreachable}
	}

	fetchParam := fetcher.NewFetchParam(linkURL, v.userAgent, fetcher.MethodGet)

	result, err := v.fetcher.Fetch(ctx, crawlDepth, fetchParam, retryParam)
	if err != nil {
		v.metadataSink.RecordError(
			time.Now(),
			"linkvalidator",
			"Validator.Validate",
			metadata.CauseNetworkFailure,
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, linkURL.String())},
		)
		return LinkResult{URL: linkURL, Classification: Unreachable}
	}

	classification := classify(result.Code())
	if result.RedirectHops() > 0 {
		classification = Redirect
	}

	return LinkResult{
		URL:                 linkURL,
		HTTPStatus:          result.Code(),
		RedirectChainLength: result.RedirectHops(),
		Classification:      classification,
	}
}

// Skip builds the LinkResult for a reference the URL Normalizer rejected
// for carrying a non-http(s) scheme: no request is ever issued for it.
func Skip(linkURL url.URL) LinkResult {
	return LinkResult{URL: linkURL, Classification: Skipped}
}

func classify(statusCode int) Classification {
	return Classify(statusCode)
}

// Classify maps an HTTP status code to its link Classification. Exported so
// the Crawl Engine can classify a page fetch that turned out, after
// following redirects, to have landed off-site (spec.md §4.7 step 4).
func Classify(statusCode int) Classification {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Ok
	case statusCode >= 300 && statusCode < 400:
		return Redirect
	default:
		return Broken
	}
}
