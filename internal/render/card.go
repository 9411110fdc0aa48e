// Package render turns batch outcomes into display structures and export files.
package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vrsandeep/seo-batch/internal/models"
)

// previewRunes is the length of the content preview on a card.
const previewRunes = 300

// Card is the display form of one outcome.
type Card struct {
	URL             string       `json:"url"`
	Succeeded       bool         `json:"succeeded"`
	Error           string       `json:"error,omitempty"`
	Status          string       `json:"status,omitempty"`
	TaskType        string       `json:"task_type,omitempty"`
	Score           *float64     `json:"score,omitempty"`
	Title           string       `json:"title,omitempty"`
	Description     string       `json:"description,omitempty"`
	H1              string       `json:"h1,omitempty"`
	WordCount       int          `json:"word_count,omitempty"`
	Readability     float64      `json:"readability,omitempty"`
	Preview         string       `json:"preview,omitempty"`
	Issues          []string     `json:"issues,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Links           *LinkSummary `json:"links,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
}

// LinkSummary condenses a link analysis for display.
type LinkSummary struct {
	Total      int    `json:"total"`
	Toxic      int    `json:"toxic"`
	Suspicious int    `json:"suspicious"`
	Good       int    `json:"good"`
	Summary    string `json:"summary,omitempty"`
}

// Report is the display form of a whole run.
type Report struct {
	RunID      string        `json:"run_id"`
	Totals     models.Totals `json:"totals"`
	Cards      []Card        `json:"cards"`
	Toxic      int           `json:"toxic_domains"`
	Suspicious int           `json:"suspicious_domains"`
}

// RenderOutcome builds the card for one outcome.
func RenderOutcome(o models.ItemOutcome) Card {
	c := Card{
		URL:             o.URL,
		Succeeded:       o.Succeeded,
		Error:           o.Error,
		DurationSeconds: o.Duration.Seconds(),
	}
	p := o.Payload
	if p == nil {
		return c
	}
	c.Status = p.Status
	c.TaskType = p.TaskType
	c.Score = p.Validation.OverallScore
	c.Title = p.MetaTags.Title
	c.Description = p.MetaTags.Description
	c.H1 = p.MetaTags.H1
	c.WordCount = p.Content.WordCount
	c.Readability = p.Content.ReadabilityScore
	c.Preview = Preview(p.Content.Text, previewRunes)
	c.Issues = p.Validation.Issues
	c.Recommendations = p.Validation.Recommendations
	if la := p.LinkAnalysis; la != nil {
		c.Links = &LinkSummary{
			Total:      la.AnalyzedLinks.TotalLinks,
			Toxic:      la.AnalyzedLinks.ToxicLinks,
			Suspicious: la.AnalyzedLinks.SuspiciousLinks,
			Good:       la.AnalyzedLinks.GoodLinks,
			Summary:    la.Report.Summary,
		}
	}
	return c
}

// RenderRun builds the report for a whole run.
func RenderRun(run *models.BatchRun) Report {
	r := Report{RunID: run.ID, Totals: run.Totals(), Cards: make([]Card, 0, len(run.Outcomes))}
	for _, o := range run.Outcomes {
		r.Cards = append(r.Cards, RenderOutcome(o))
	}
	details := CollectLinkDetails(run)
	r.Toxic = len(Domains(details, RiskToxic))
	r.Suspicious = len(Domains(details, RiskSuspicious))
	return r
}

// Preview returns the visible text of an HTML (or plain text) fragment,
// whitespace collapsed and cut to at most n runes.
func Preview(content string, n int) string {
	text := content
	if strings.ContainsAny(content, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			text = doc.Text()
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
