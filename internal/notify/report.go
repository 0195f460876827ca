// Package notify renders the change report and delivers it over SMTP.
package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed report.html.tmpl
var reportSource string

// html/template escapes every interpolated value for its context, so page
// text, diff bodies and the URL cannot inject markup.
var reportTemplate = template.Must(template.New("report").Parse(reportSource))

// Report is the data shown in the email.
type Report struct {
	URL         string
	Text        string
	Diff        string
	Changed     bool
	GeneratedAt time.Time
}

type reportView struct {
	Title     string
	URL       string
	Text      string
	Summary   string
	Diff      string
	Generated string
}

// Title reflects the changed state.
func (r Report) Title() string {
	if r.Changed {
		return "Page Update: Changed"
	}
	return "Page Update: No Change"
}

// RenderReport produces a self-contained HTML document.
func RenderReport(r Report) (string, error) {
	summary := "No changes detected since the previous run."
	if r.Changed {
		summary = "Changes detected; diff below."
	}
	view := reportView{
		Title:     r.Title(),
		URL:       r.URL,
		Text:      r.Text,
		Summary:   summary,
		Diff:      r.Diff,
		Generated: r.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// RenderSubject substitutes {url} and {date} (UTC, YYYY-MM-DD) in tmpl.
func RenderSubject(tmpl, url string, now time.Time) string {
	return strings.NewReplacer(
		"{url}", url,
		"{date}", now.UTC().Format("2006-01-02"),
	).Replace(tmpl)
}
