package robots

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/scoutly/internal/metadata"
	"github.com/rohmanhakim/scoutly/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host with this package's own HTTP client; these
  fetches do not pass through the process-wide rate limiter
- Cache rules for the crawl's duration, keyed by scheme and host
- Enforce allow/disallow rules for a URL the Crawl Engine has dequeued

Robots checks occur after a URL leaves the frontier and before it is
fetched; a disallowed URL never reaches the Fetcher.
*/

// CachedRobot decides whether the crawler's user-agent may fetch a given
// URL, fetching and caching each origin's robots.txt at most once.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	userAgent    string
}

func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: metadataSink}
}

// Init prepares the robot with an in-memory cache shared across the crawl.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot with a caller-supplied Cache.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
}

// Decide reports whether u may be fetched. A fetch failure of any kind —
// network error or non-2xx response — resolves to "allow all" for u's
// origin; Decide itself never returns an error for that case (spec.md §4.4).
func (r *CachedRobot) Decide(ctx context.Context, u url.URL) (Decision, *RobotsError) {
	result, err := r.fetcher.Fetch(ctx, u.Scheme, u.Host)
	if err != nil {
		r.metadataSink.RecordError(
			time.Now(),
			"robots",
			"CachedRobot.Decide",
			mapRobotsErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, u.String()),
				metadata.NewAttr(metadata.AttrHost, u.Host),
			},
		)
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}, nil
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)
	return decide(u, rs), nil
}

// decide applies the longest-match-wins rule to u.Path against rs, ties
// broken in favor of Allow. No matching rule at all means allowed.
func decide(u url.URL, rs ruleSet) Decision {
	if !rs.hasGroups {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}
	}
	if !rs.matchedGroup {
		return Decision{Url: u, Allowed: true, Reason: UserAgentNotMatched}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var bestAllow, bestDisallow bool
	var bestLen = -1

	for _, rule := range rs.allowRules {
		if n, ok := matchRule(rule.prefix, path); ok && n > bestLen {
			bestLen, bestAllow, bestDisallow = n, true, false
		} else if ok && n == bestLen {
			bestAllow = true
		}
	}
	for _, rule := range rs.disallowRules {
		if n, ok := matchRule(rule.prefix, path); ok && n > bestLen {
			bestLen, bestAllow, bestDisallow = n, false, true
		}
	}

	if bestLen < 0 {
		return Decision{Url: u, Allowed: true, Reason: NoMatchingRules, CrawlDelay: crawlDelayOf(rs)}
	}
	if bestAllow || !bestDisallow {
		return Decision{Url: u, Allowed: true, Reason: AllowedByRobots, CrawlDelay: crawlDelayOf(rs)}
	}
	return Decision{Url: u, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: crawlDelayOf(rs)}
}

func crawlDelayOf(rs ruleSet) time.Duration {
	if d := rs.CrawlDelay(); d != nil {
		return *d
	}
	return 0
}

// matchRule reports whether pattern (a robots.txt Allow/Disallow path,
// possibly containing "*" wildcards and a trailing "$" end-anchor) matches
// path, and the pattern's literal length for longest-match ranking.
func matchRule(pattern, path string) (int, bool) {
	if pattern == "" {
		return 0, false
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return 0, false
	}
	return len(pattern), re.MatchString(path)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	anchored := strings.HasSuffix(pattern, "$")
	body := strings.TrimSuffix(pattern, "$")

	escaped := regexp.QuoteMeta(body)
	escaped = strings.ReplaceAll(escaped, `\*`, `.*`)

	expr := "^" + escaped
	if anchored {
		expr += "$"
	}
	return regexp.Compile(expr)
}
