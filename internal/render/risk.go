package render

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/vrsandeep/seo-batch/internal/models"
	"golang.org/x/net/idna"
)

// Risk is the export class of a referring domain.
type Risk int

const (
	RiskClean Risk = iota
	RiskSuspicious
	RiskToxic
)

func (r Risk) String() string {
	switch r {
	case RiskToxic:
		return "toxic"
	case RiskSuspicious:
		return "suspicious"
	}
	return "clean"
}

func (r Risk) label() string {
	switch r {
	case RiskToxic:
		return "Toxic"
	case RiskSuspicious:
		return "Suspicious"
	}
	return "Clean"
}

// ParseRisk maps "toxic" or "suspicious" onto a Risk.
func ParseRisk(s string) (Risk, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "toxic":
		return RiskToxic, true
	case "suspicious":
		return RiskSuspicious, true
	}
	return RiskClean, false
}

// Export thresholds on the 0-100 risk score.
const (
	ToxicThreshold      = 50.0
	SuspiciousThreshold = 30.0
)

// DefaultMinRiskScore is the backend's default disavow threshold.
const DefaultMinRiskScore = 50.0

const disavowReason = "Токсичний домен: включений до disavow файлу"

var disavowLine = regexp.MustCompile(`(?i)domain:\s*(\S+)`)

// Classify applies the export thresholds: a disavow tag or a score of at
// least 50 is toxic; otherwise an attention tag or a score in [30, 50) is
// suspicious.
func Classify(d models.LinkDetail) Risk {
	rec := strings.ToLower(strings.TrimSpace(d.Recommendation))
	switch {
	case rec == models.RecommendDisavow || d.RiskScore >= ToxicThreshold:
		return RiskToxic
	case rec == models.RecommendAttention || d.RiskScore >= SuspiciousThreshold:
		return RiskSuspicious
	}
	return RiskClean
}

// NormalizeDomain lowercases a domain, strips any scheme, path or port and
// converts internationalized names to punycode. It returns "" for input that
// carries no host.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "domain:"), "DOMAIN:")
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Hostname()
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
	if s == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(s); err == nil {
		return ascii
	}
	return s
}

// Domains returns the sorted unique domains whose strongest classification
// equals want. A domain that is toxic in any detail never appears as suspicious.
func Domains(details []models.LinkDetail, want Risk) []string {
	worst := make(map[string]Risk)
	for _, d := range details {
		domain := NormalizeDomain(d.Domain)
		if domain == "" {
			domain = NormalizeDomain(d.URL)
		}
		if domain == "" {
			continue
		}
		if r, ok := worst[domain]; !ok || Classify(d) > r {
			worst[domain] = Classify(d)
		}
	}
	var out []string
	for domain, r := range worst {
		if r == want && want != RiskClean {
			out = append(out, domain)
		}
	}
	sort.Strings(out)
	return out
}

// WriteDomainList writes a disavow-style list: one comment line, then one
// domain:<name> line per qualifying domain.
func WriteDomainList(w io.Writer, details []models.LinkDetail, risk Risk) error {
	domains := Domains(details, risk)
	if _, err := fmt.Fprintf(w, "# %s domains (%d)\n", risk.label(), len(domains)); err != nil {
		return err
	}
	for _, d := range domains {
		if _, err := fmt.Fprintf(w, "domain:%s\n", d); err != nil {
			return err
		}
	}
	return nil
}

// DomainCounts is the backend's unique-domain tally.
type DomainCounts struct {
	Toxic      int `json:"toxic"`
	Suspicious int `json:"suspicious"`
	Good       int `json:"good"`
}

// RecountDomains tallies unique domains the way the backend summarises them:
// score >= minRiskScore or a disavow tag is toxic, else score >= 30 is
// suspicious, else good. The first detail of a domain decides. Unlike
// Classify, attention tags do not count and the toxic floor follows minRiskScore.
func RecountDomains(details []models.LinkDetail, minRiskScore float64) DomainCounts {
	if minRiskScore <= 0 {
		minRiskScore = DefaultMinRiskScore
	}
	var c DomainCounts
	seen := make(map[string]bool)
	for _, d := range details {
		domain := NormalizeDomain(d.Domain)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		switch {
		case d.RiskScore >= minRiskScore || strings.EqualFold(d.Recommendation, models.RecommendDisavow):
			c.Toxic++
		case d.RiskScore >= SuspiciousThreshold:
			c.Suspicious++
		default:
			c.Good++
		}
	}
	return c
}

// Reconcile removes duplicate domains from a link analysis (first wins) and
// adds any domain named in its disavow file but missing from the details.
func Reconcile(la *models.LinkAnalysis) {
	if la == nil {
		return
	}
	seen := make(map[string]bool)
	unique := la.AnalyzedLinks.LinkDetails[:0]
	for _, d := range la.AnalyzedLinks.LinkDetails {
		domain := strings.ToLower(strings.TrimSpace(d.Domain))
		if domain != "" {
			if seen[domain] {
				continue
			}
			seen[domain] = true
		}
		unique = append(unique, d)
	}

	var missing []string
	for _, m := range disavowLine.FindAllStringSubmatch(la.DisavowFile.Content, -1) {
		domain := strings.ToLower(strings.TrimSpace(m[1]))
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		missing = append(missing, domain)
	}
	sort.Strings(missing)
	for _, domain := range missing {
		unique = append(unique, models.LinkDetail{
			Domain:         domain,
			URL:            "https://" + domain,
			Title:          "N/A",
			Anchor:         "N/A",
			RiskScore:      ToxicThreshold,
			Reason:         disavowReason,
			Recommendation: models.RecommendDisavow,
		})
	}
	la.AnalyzedLinks.LinkDetails = unique
}

// CollectLinkDetails gathers the link details of every succeeded outcome in run order.
func CollectLinkDetails(run *models.BatchRun) []models.LinkDetail {
	var details []models.LinkDetail
	for _, o := range run.Outcomes {
		if !o.Succeeded || o.Payload == nil || o.Payload.LinkAnalysis == nil {
			continue
		}
		details = append(details, o.Payload.LinkAnalysis.AnalyzedLinks.LinkDetails...)
	}
	return details
}

// ReconcileRun applies Reconcile to the link analysis of every outcome in run.
func ReconcileRun(run *models.BatchRun) {
	for _, o := range run.Outcomes {
		if o.Payload != nil {
			Reconcile(o.Payload.LinkAnalysis)
		}
	}
}
