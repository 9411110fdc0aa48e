package render

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/vrsandeep/seo-batch/internal/models"
)

// bom makes spreadsheet applications read the export as UTF-8.
const bom = "\ufeff"

const notAvailable = "N/A"

var (
	outcomesHeader = []string{"URL", "Status", "Score", "Title", "Description", "Word Count"}
	linksHeader    = []string{"Домен", "Title", "Anchor", "Domain Rating", "Domain Traffic", "Page Traffic", "Keywords", "Linked Domains", "Риск-скор", "Причина", "Рекомендация"}
)

// quotedWriter writes rows with every field double-quoted.
type quotedWriter struct {
	w   *bufio.Writer
	err error
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	qw := &quotedWriter{w: bufio.NewWriter(w)}
	_, qw.err = qw.w.WriteString(bom)
	return qw
}

func (q *quotedWriter) row(fields ...string) {
	if q.err != nil {
		return
	}
	for i, f := range fields {
		if i > 0 {
			q.w.WriteByte(',')
		}
		q.w.WriteByte('"')
		q.w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		q.w.WriteByte('"')
	}
	_, q.err = q.w.WriteString("\r\n")
}

func (q *quotedWriter) flush() error {
	if q.err != nil {
		return q.err
	}
	return q.w.Flush()
}

// WriteOutcomesCSV exports one row per outcome.
func WriteOutcomesCSV(w io.Writer, outcomes []models.ItemOutcome) error {
	qw := newQuotedWriter(w)
	qw.row(outcomesHeader...)
	for _, o := range outcomes {
		status := "Failed"
		score, title, description, words := "", "", "", ""
		if o.Succeeded {
			status = "Success"
		}
		if p := o.Payload; p != nil {
			score = formatOptional(p.Validation.OverallScore)
			title = p.MetaTags.Title
			description = p.MetaTags.Description
			words = strconv.Itoa(p.Content.WordCount)
		} else if o.Error != "" {
			description = o.Error
		}
		qw.row(o.URL, status, score, title, description, words)
	}
	return qw.flush()
}

// WriteLinkDetailsCSV exports one row per referring domain.
func WriteLinkDetailsCSV(w io.Writer, details []models.LinkDetail) error {
	qw := newQuotedWriter(w)
	qw.row(linksHeader...)
	for _, d := range details {
		qw.row(
			d.Domain,
			orNA(d.Title),
			orNA(d.Anchor),
			formatOptional(d.DR),
			formatOptional(d.DomainTraffic),
			formatOptional(d.PageTraffic),
			formatOptional(d.Keywords),
			formatOptional(d.ReferringDomains),
			formatFloat(d.RiskScore),
			d.Reason,
			d.Recommendation,
		)
	}
	return qw.flush()
}

func formatOptional(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
