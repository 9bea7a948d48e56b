package fetcher

import (
	"net/url"
	"strings"
	"time"
)

// Method is the HTTP method a Fetch call issues. The engine uses GET for
// both page fetches and link validation (see spec.md §4.6 — HEAD is
// avoided because many servers return misleading HEAD statuses).
type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
	method    Method
}

func NewFetchParam(fetchUrl url.URL, userAgent string, method Method) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
		method:    method,
	}
}

func (p FetchParam) URL() url.URL {
	return p.fetchUrl
}

func (p FetchParam) UserAgent() string {
	return p.userAgent
}

func (p FetchParam) Method() Method {
	if p.method == "" {
		return MethodGet
	}
	return p.method
}

// FetchResult is the Response value from spec.md §4.2: final URL after all
// followed redirects, final status code, redirect hop count, content-type,
// and body bytes (empty for HEAD).
type FetchResult struct {
	requestURL url.URL
	finalURL   url.URL
	body       []byte
	meta       ResponseMeta
	fetchedAt  time.Time
}

func (f *FetchResult) RequestURL() url.URL {
	return f.requestURL
}

func (f *FetchResult) URL() url.URL {
	return f.finalURL
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.body))
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

func (f *FetchResult) RedirectHops() int {
	return f.meta.redirectHops
}

// ContentType returns the lowercased media type, stripped of parameters
// (e.g. "Text/HTML; charset=utf-8" -> "text/html").
func (f *FetchResult) ContentType() string {
	ct := f.meta.responseHeaders["Content-Type"]
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

type ResponseMeta struct {
	statusCode      int
	redirectHops    int
	responseHeaders map[string]string
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	requestURL url.URL,
	finalURL url.URL,
	body []byte,
	statusCode int,
	redirectHops int,
	responseHeaders map[string]string,
	fetchedAt time.Time,
) FetchResult {
	return FetchResult{
		requestURL: requestURL,
		finalURL:   finalURL,
		body:       body,
		fetchedAt:  fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			redirectHops:    redirectHops,
			responseHeaders: responseHeaders,
		},
	}
}
