package report

import (
	"fmt"
	"net/url"

	"github.com/rohmanhakim/scoutly/internal/extractor"
	"github.com/rohmanhakim/scoutly/internal/linkvalidator"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
)

// Thresholds the HTML Analyzer's raw signals are checked against (spec.md
// §3). A title or meta description that is missing never also reports a
// too-short/too-long finding; the other checks are independent of these and
// of each other.
const (
	titleTooShortThreshold    = 50
	titleTooLongThreshold     = 60
	metaDescTooShortThreshold = 150
	metaDescTooLongThreshold  = 160
	thinContentThreshold      = 5
)

// BuildContentIssues turns one page's signals into the Issues its title,
// meta description, heading structure, images, body and Open Graph tags
// warrant. It returns nil for a page that was never analyzed.
func BuildContentIssues(pageURL url.URL, signals extractor.PageSignals) []Issue {
	if !signals.Analyzed {
		return nil
	}

	var issues []Issue

	switch {
	case !signals.HasTitle:
		issues = append(issues, simpleIssue(SeverityWarn, pageURL, KindTitleMissing, "page has no <title>"))
	case len(signals.Title) < titleTooShortThreshold:
		issues = append(issues, simpleIssue(SeverityInfo, pageURL, KindTitleTooShort,
			fmt.Sprintf("title is %d characters, fewer than %d", len(signals.Title), titleTooShortThreshold)))
	case len(signals.Title) > titleTooLongThreshold:
		issues = append(issues, simpleIssue(SeverityInfo, pageURL, KindTitleTooLong,
			fmt.Sprintf("title is %d characters, more than %d", len(signals.Title), titleTooLongThreshold)))
	}

	switch {
	case !signals.HasMetaDesc:
		issues = append(issues, simpleIssue(SeverityWarn, pageURL, KindMetaDescriptionMissing, "page has no meta description"))
	case len(signals.MetaDescription) < metaDescTooShortThreshold:
		issues = append(issues, simpleIssue(SeverityInfo, pageURL, KindMetaDescTooShort,
			fmt.Sprintf("meta description is %d characters, fewer than %d", len(signals.MetaDescription), metaDescTooShortThreshold)))
	case len(signals.MetaDescription) > metaDescTooLongThreshold:
		issues = append(issues, simpleIssue(SeverityInfo, pageURL, KindMetaDescTooLong,
			fmt.Sprintf("meta description is %d characters, more than %d", len(signals.MetaDescription), metaDescTooLongThreshold)))
	}

	switch {
	case signals.H1Count == 0:
		issues = append(issues, simpleIssue(SeverityWarn, pageURL, KindH1Missing, "page has no <h1>"))
	case signals.H1Count > 1:
		issues = append(issues, Issue{
			Severity:  SeverityWarn,
			SourceURL: pageURL,
			Kind:      KindH1Multiple,
			Count:     signals.H1Count,
			Detail:    fmt.Sprintf("page has %d <h1> elements", signals.H1Count),
		})
	}

	if signals.ImagesMissingAlt > 0 {
		issues = append(issues, Issue{
			Severity:  SeverityWarn,
			SourceURL: pageURL,
			Kind:      KindImagesMissingAlt,
			Count:     signals.ImagesMissingAlt,
			Detail:    fmt.Sprintf("%d images missing alt text", signals.ImagesMissingAlt),
		})
	}

	if signals.ContentIndicators < thinContentThreshold {
		issues = append(issues, simpleIssue(SeverityInfo, pageURL, KindThinContent,
			fmt.Sprintf("only %d content indicators found", signals.ContentIndicators)))
	}

	for _, tag := range signals.OpenGraph.Missing() {
		issues = append(issues, Issue{
			Severity:  SeverityInfo,
			SourceURL: pageURL,
			Kind:      KindOpenGraphMissing,
			Tag:       tag,
			Detail:    fmt.Sprintf("missing %s", tag),
		})
	}

	return issues
}

// BuildLinkIssues turns the already-classified outcome of each outbound
// link on the page into BrokenLink/RedirectLink Issues. linkResults is
// keyed by link-equivalence (pkg/urlutil.LinkEquivalenceKey); a link with
// no entry (still in flight, or never submitted to the Validator) produces
// no issue yet. Each distinct link is reported at most once per page even
// if it appears in the markup more than once.
func BuildLinkIssues(
	pageURL url.URL,
	outboundLinks []extractor.OutboundLink,
	linkResults map[string]linkvalidator.LinkResult,
	ignoreRedirects bool,
	keepFragments bool,
) []Issue {
	var issues []Issue
	seen := make(map[string]bool, len(outboundLinks))

	for _, link := range outboundLinks {
		key := urlutil.LinkEquivalenceKey(link.URL, keepFragments)
		if seen[key] {
			continue
		}
		seen[key] = true

		result, ok := linkResults[key]
		if !ok {
			continue
		}

		switch result.Classification {
		case linkvalidator.Broken:
			issues = append(issues, Issue{
				Severity:  SeverityError,
				SourceURL: pageURL,
				Kind:      KindBrokenLink,
				Target:    link.URL,
				Detail:    fmt.Sprintf("%s returned %d", link.URL.String(), result.HTTPStatus),
			})
		case linkvalidator.Redirect:
			if ignoreRedirects {
				continue
			}
			issues = append(issues, Issue{
				Severity:  SeverityInfo,
				SourceURL: pageURL,
				Kind:      KindRedirectLink,
				Target:    link.URL,
				Detail:    fmt.Sprintf("%s redirected (%d)", link.URL.String(), result.HTTPStatus),
			})
		}
	}

	return issues
}

// RobotsDisallowedIssue is the one Info issue spec.md §4.7 step 2 names for
// a candidate the Robots Policy Cache rejects before it is ever fetched.
func RobotsDisallowedIssue(pageURL url.URL) Issue {
	return simpleIssue(SeverityInfo, pageURL, KindRobotsDisallowed, "disallowed by robots.txt")
}

func simpleIssue(severity Severity, pageURL url.URL, kind IssueKind, detail string) Issue {
	return Issue{Severity: severity, SourceURL: pageURL, Kind: kind, Detail: detail}
}
