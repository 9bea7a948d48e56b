package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/pkg/failure"
	"github.com/rohmanhakim/scoutly/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers and timeouts
- Follow redirects up to a bounded hop count, surfacing the final URL and hop count
- Classify transport-level failures

Fetch Semantics

- Any status code, including 4xx/5xx, is a normal FetchResult — only
  failures below the HTTP layer (timeout, DNS, connection, TLS) are errors.
- Content-type is never inspected here; that judgment belongs to the HTML
  Analyzer.
- All responses are logged with metadata.

The fetcher never parses content; it only returns bytes and metadata.
*/

const maxRedirectHops = 10

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

func NewHtmlFetcher(metadataSink metadata.MetadataSink, timeout time.Duration) *HtmlFetcher {
	h := &HtmlFetcher{metadataSink: metadataSink}
	h.Init(buildClient(timeout))
	return h
}

// buildClient wraps net/http's default transport with rehttp, retrying
// idempotent dial/temporary-network failures with jittered exponential
// backoff before the caller's own pkg/retry layer ever sees them.
func buildClient(timeout time.Duration) *http.Client {
	transport := rehttp.NewTransport(
		http.DefaultTransport,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(2),
			rehttp.RetryTemporaryErr(),
		),
		rehttp.ExpJitterDelay(100*time.Millisecond, 2*time.Second),
	)

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirectHops {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

func (h *HtmlFetcher) Init(httpClient *http.Client) {
	h.httpClient = httpClient
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err := h.fetchWithRetry(ctx, fetchParam, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var retryCount int

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			retryCount = retryParam.MaxAttempts
		}
	} else {
		statusCode = result.Code()
		contentType = result.ContentType()
	}

	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchParam.fetchUrl, retryErr)
		} else {
			h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		}

		return FetchResult{}, err
	}

	return result, nil
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, err *retry.RetryError) {
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		metadata.CauseRetryFailure,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrMessage, err.Error()),
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}

func (h *HtmlFetcher) fetchWithRetry(ctx context.Context, fetchParam FetchParam, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	}

	result, retryErr := retry.Retry(retryParam, fetchTask)

	if retryErr != nil {
		var fetchErr *FetchError
		if errors.As(retryErr, &fetchErr) {
			return FetchResult{}, fetchErr
		}
		return FetchResult{}, retryErr
	}

	return result, nil
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	fetchUrl := fetchParam.URL()

	req, err := http.NewRequestWithContext(ctx, string(fetchParam.Method()), fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseOther,
		}
	}

	for key, value := range requestHeaders(fetchParam.UserAgent()) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	var body []byte
	if fetchParam.Method() != MethodHead {
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("failed to read response body: %v", err),
				Retryable: true,
				Cause:     ErrCauseReadResponseBodyError,
			}
		}
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := fetchUrl
	hops := 0
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
		hops = len(redirectChain(resp.Request))
	}

	return FetchResult{
		requestURL: fetchUrl,
		finalURL:   finalURL,
		body:       body,
		fetchedAt:  time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			redirectHops:    hops,
			responseHeaders: responseHeaders,
		},
	}, nil
}

// redirectChain walks the *http.Request.Response backlinks net/http keeps
// when it follows redirects internally, so the hop count reflects what
// actually happened on the wire.
func redirectChain(finalReq *http.Request) []*http.Response {
	var chain []*http.Response
	cur := finalReq
	for cur != nil && cur.Response != nil {
		chain = append(chain, cur.Response)
		cur = cur.Response.Request
	}
	return chain
}

func classifyTransportError(err error) *FetchError {
	if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
		if errors.Is(urlErr.Err, http.ErrUseLastResponse) {
			return &FetchError{Message: "redirect limit exceeded", Retryable: false, Cause: ErrCauseRedirectLimitExceeded}
		}
		err = urlErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseDNSFailure}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseConnectionRefused}
	}

	return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseOther}
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
}
