package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rohmanhakim/scoutly/internal/report"
)

func renderJSON(rpt report.CrawlReport) ([]byte, error) {
	doc := jsonReport{
		StartURL:  rpt.StartURL.String(),
		Timestamp: rpt.Timestamp.Format(time.RFC3339),
		Summary: jsonSummary{
			PagesCrawled: rpt.Counters.PagesCrawled,
			LinksFound:   rpt.Counters.LinksFound,
			Broken:       rpt.Counters.Broken,
			Errors:       rpt.Counters.Errors,
			Warnings:     rpt.Counters.Warnings,
			Info:         rpt.Counters.Info,
		},
		Pages:  make([]jsonPage, 0, len(rpt.Pages)),
		Issues: make([]jsonIssue, 0),
	}

	for _, page := range rpt.Pages {
		jp := jsonPage{
			URL:                page.URL.String(),
			FinalURL:           page.FinalURL.String(),
			HTTPStatus:         page.HTTPStatus,
			ContentType:        page.ContentType,
			Depth:              page.Depth,
			H1Count:            page.H1Count,
			ImagesMissingAlt:   page.ImagesMissingAlt,
			TextIndicatorCount: page.ContentIndicatorCount,
			OutboundLinks:      make([]string, len(page.OutboundLinks)),
			Issues:             make([]jsonIssue, 0, len(page.Issues)),
			OpenGraph: jsonOpenGraph{
				NotApplicable: page.OpenGraph.NotApplicable,
			},
		}
		if page.HasTitle {
			title := page.Title
			jp.Title = &title
		}
		if page.HasMetaDescription {
			desc := page.MetaDescription
			jp.MetaDescription = &desc
		}
		if !page.OpenGraph.NotApplicable {
			jp.OpenGraph.Present = make(map[string]string, len(page.OpenGraph.Present))
			for tag, content := range page.OpenGraph.Present {
				jp.OpenGraph.Present[string(tag)] = content
			}
		}
		for i, link := range page.OutboundLinks {
			jp.OutboundLinks[i] = link.String()
		}
		for _, issue := range page.Issues {
			ji := toJSONIssue(issue)
			jp.Issues = append(jp.Issues, ji)
			doc.Issues = append(doc.Issues, ji)
		}

		doc.Pages = append(doc.Pages, jp)
	}

	for _, issue := range rpt.OrphanIssues {
		doc.Issues = append(doc.Issues, toJSONIssue(issue))
	}

	return json.MarshalIndent(doc, "", "  ")
}

func toJSONIssue(issue report.Issue) jsonIssue {
	ji := jsonIssue{
		Severity:  string(issue.Severity),
		SourceURL: issue.SourceURL.String(),
		Kind:      string(issue.Kind),
		Detail:    issue.Detail,
		Count:     issue.Count,
	}
	if target := issue.Target.String(); target != "" {
		ji.Target = target
	}
	if issue.Tag != "" {
		ji.Tag = string(issue.Tag)
	}
	return ji
}

func renderText(rpt report.CrawlReport) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "crawl report for %s\n", rpt.StartURL.String())
	fmt.Fprintf(&b, "generated %s\n\n", rpt.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "pages crawled: %d\n", rpt.Counters.PagesCrawled)
	fmt.Fprintf(&b, "links found:   %d (broken: %d)\n", rpt.Counters.LinksFound, rpt.Counters.Broken)
	fmt.Fprintf(&b, "issues:        %d error, %d warn, %d info\n\n", rpt.Counters.Errors, rpt.Counters.Warnings, rpt.Counters.Info)

	for _, page := range rpt.Pages {
		fmt.Fprintf(&b, "%s [%d] depth=%d\n", page.URL.String(), page.HTTPStatus, page.Depth)
		if len(page.Issues) == 0 {
			continue
		}
		for _, issue := range page.Issues {
			fmt.Fprintf(&b, "  %-5s %-28s %s\n", strings.ToUpper(string(issue.Severity)), issue.Kind, issue.Detail)
		}
	}

	if len(rpt.OrphanIssues) > 0 {
		fmt.Fprintf(&b, "\nnot crawled:\n")
		for _, issue := range rpt.OrphanIssues {
			fmt.Fprintf(&b, "  %-5s %-28s %s (%s)\n", strings.ToUpper(string(issue.Severity)), issue.Kind, issue.Detail, issue.SourceURL.String())
		}
	}

	return []byte(b.String())
}
