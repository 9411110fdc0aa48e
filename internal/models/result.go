// This file mirrors the JSON result returned by the backend's /process endpoint.

package models

// ResultPayload is the backend's answer for one processed page.
type ResultPayload struct {
	TaskType     string                 `json:"task_type,omitempty"`
	Status       string                 `json:"status"`
	MetaTags     MetaTags               `json:"meta_tags"`
	Content      Content                `json:"content"`
	Validation   Validation             `json:"validation"`
	LinkAnalysis *LinkAnalysis          `json:"link_analysis,omitempty"`
	AgentResults map[string]AgentResult `json:"agent_results,omitempty"`
}

// StatusCompleted is the status of a fully processed page.
const StatusCompleted = "completed"

// Completed reports whether the backend marked the page as completed.
func (p *ResultPayload) Completed() bool {
	return p != nil && p.Status == StatusCompleted
}

type MetaTags struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	H1            string   `json:"h1"`
	OGTitle       string   `json:"og_title,omitempty"`
	OGDescription string   `json:"og_description,omitempty"`
	FAQSnippets   []string `json:"faq_snippets,omitempty"`
}

type Content struct {
	Text             string           `json:"text"`
	WordCount        int              `json:"word_count"`
	InternalLinks    []map[string]any `json:"internal_links,omitempty"`
	ReadabilityScore float64          `json:"readability_score"`
}

type Validation struct {
	IsValid         bool               `json:"is_valid"`
	Issues          []string           `json:"issues,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	OverallScore    *float64           `json:"overall_score,omitempty"` // 0-100
	DetailedScores  map[string]float64 `json:"detailed_scores,omitempty"`
}

type AgentResult struct {
	Success       bool     `json:"success"`
	ExecutionTime float64  `json:"execution_time"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Errors        []string `json:"errors"`
}

// LinkAnalysis is the link_builder output for link-toxicity tasks.
type LinkAnalysis struct {
	AnalyzedLinks AnalyzedLinks `json:"analyzed_links"`
	DisavowFile   DisavowFile   `json:"disavow_file"`
	Report        LinkReport    `json:"report"`
}

type AnalyzedLinks struct {
	TotalLinks      int          `json:"total_links"`
	ToxicLinks      int          `json:"toxic_links"`
	SuspiciousLinks int          `json:"suspicious_links"`
	GoodLinks       int          `json:"good_links"`
	LinkDetails     []LinkDetail `json:"link_details"`
}

type DisavowFile struct {
	Content    string `json:"content"`
	LinksCount int    `json:"links_count"`
}

type LinkReport struct {
	Summary string `json:"summary"`
}

// Recommendations attached to a referring domain by the backend.
const (
	RecommendDisavow   = "disavow"
	RecommendAttention = "attention"
	RecommendOK        = "ok"
)

// LinkDetail is the analysis of one referring domain. Metrics absent from the
// source CSV are nil.
type LinkDetail struct {
	Domain           string   `json:"domain"`
	URL              string   `json:"url,omitempty"`
	Title            string   `json:"title,omitempty"`
	Anchor           string   `json:"anchor,omitempty"`
	DR               *float64 `json:"dr,omitempty"`
	DomainTraffic    *float64 `json:"domain_traffic,omitempty"`
	PageTraffic      *float64 `json:"page_traffic,omitempty"`
	Keywords         *float64 `json:"keywords,omitempty"`
	ReferringDomains *float64 `json:"referring_domains,omitempty"`
	RiskScore        float64  `json:"risk_score"`
	Reason           string   `json:"reason,omitempty"`
	Recommendation   string   `json:"recommendation,omitempty"`
}
