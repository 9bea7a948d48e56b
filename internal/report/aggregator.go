package report

import (
	"net/url"
	"sync"
	"time"

	"github.com/rohmanhakim/scoutly/internal/linkvalidator"
)

// Aggregator accumulates PageResults and LinkResults as the Crawl Engine
// produces them and turns them into one terminal CrawlReport. It is safe
// for concurrent use: multiple workers add results as they finish.
type Aggregator struct {
	mu           sync.Mutex
	startURL     url.URL
	pages        []PageResult
	linkResults  []linkvalidator.LinkResult
	orphanIssues []Issue
}

func NewAggregator(startURL url.URL) *Aggregator {
	return &Aggregator{startURL: startURL}
}

// AddPage records one page's terminal result. Order is not significant;
// Build sorts nothing, it simply reports in submission order.
func (a *Aggregator) AddPage(page PageResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = append(a.pages, page)
}

// AddLinkResult records one link's validation outcome. A link discovered on
// several pages is still submitted once (the engine dedupes by
// link-equivalence before calling the Link Validator), so no dedup happens
// here.
func (a *Aggregator) AddLinkResult(result linkvalidator.LinkResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.linkResults = append(a.linkResults, result)
}

// AddIssue records a finding with no PageResult to attach to — a URL the
// engine decided against fetching at all (spec.md §4.7 step 2's
// RobotsDisallowed is the only such kind today).
func (a *Aggregator) AddIssue(issue Issue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orphanIssues = append(a.orphanIssues, issue)
}

// Build produces the CrawlReport, computing Counters from everything
// recorded so far. Calling it mid-crawl is safe (it's a snapshot), but it
// is meant to be called once the Crawl Engine has terminated.
func (a *Aggregator) Build(timestamp time.Time) CrawlReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	counters := Counters{
		PagesCrawled: len(a.pages),
		LinksFound:   len(a.linkResults),
	}

	for _, result := range a.linkResults {
		if result.Classification == linkvalidator.Broken {
			counters.Broken++
		}
	}

	tally := func(severity Severity) {
		switch severity {
		case SeverityError:
			counters.Errors++
		case SeverityWarn:
			counters.Warnings++
		case SeverityInfo:
			counters.Info++
		}
	}

	for _, page := range a.pages {
		for _, issue := range page.Issues {
			tally(issue.Severity)
		}
	}
	for _, issue := range a.orphanIssues {
		tally(issue.Severity)
	}

	pages := make([]PageResult, len(a.pages))
	copy(pages, a.pages)
	linkResults := make([]linkvalidator.LinkResult, len(a.linkResults))
	copy(linkResults, a.linkResults)
	orphanIssues := make([]Issue, len(a.orphanIssues))
	copy(orphanIssues, a.orphanIssues)

	return CrawlReport{
		StartURL:     a.startURL,
		Timestamp:    timestamp,
		Pages:        pages,
		LinkResults:  linkResults,
		OrphanIssues: orphanIssues,
		Counters:     counters,
	}
}
