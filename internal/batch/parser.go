// Package batch turns raw user input (URL lists, CSV, manual text) into an
// ordered list of work items.
package batch

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/vrsandeep/seo-batch/internal/langdetect"
	"github.com/vrsandeep/seo-batch/internal/models"
)

// ErrNoItems is the pre-flight validation failure for an input that parsed
// into zero work items.
var ErrNoItems = errors.New("no valid items found in input")

// csvHeaderPrefix marks the optional header line of CSV and manual input.
const csvHeaderPrefix = "url,"

// fallbackTopic is used when no topic can be derived from a URL.
const fallbackTopic = "Page"

var nonTopicChars = regexp.MustCompile(`[^a-zA-Zа-яА-ЯёЁіІїЇєЄґҐ0-9]`)

// Form holds the form-level values that apply to every parsed item unless a
// row overrides them.
type Form struct {
	Mode           GenerationMode
	Brand          string
	BusinessType   string
	TargetAudience string
}

// ParseSimpleList builds one item per non-blank line of urlList. The line at the
// same index of keywordList, when non-blank, is used as the topic.
func ParseSimpleList(urlList, keywordList string, form Form) []models.WorkItem {
	urls := splitLines(urlList)
	keywords := splitLines(keywordList)

	var items []models.WorkItem
	for i, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		topic := ""
		if i < len(keywords) {
			topic = strings.TrimSpace(keywords[i])
		}
		if topic == "" {
			topic = DeriveTopic(u)
		}
		items = append(items, newItem(u, topic, form.Brand, form.BusinessType, form))
	}
	return items
}

// ParseCSV parses lines of the form url,topic[,brand[,business_type]].
// A header line starting with "url," and lines with fewer than two fields are skipped.
func ParseCSV(text string, form Form) []models.WorkItem {
	var items []models.WorkItem
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, csvHeaderPrefix) {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 2 {
			continue
		}
		brand := override(fields, 2, form.Brand)
		businessType := override(fields, 3, form.BusinessType)
		items = append(items, newItem(fields[0], fields[1], brand, businessType, form))
	}
	return items
}

// ParseManual parses manually typed rows. The format is the same as ParseCSV.
func ParseManual(text string, form Form) []models.WorkItem {
	return ParseCSV(text, form)
}

// Validate returns ErrNoItems when items is empty.
func Validate(items []models.WorkItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	return nil
}

// DeriveTopic builds a topic from the last path segment of rawURL.
func DeriveTopic(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	segment := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		segment = path[i+1:]
	}
	topic := strings.TrimSpace(nonTopicChars.ReplaceAllString(segment, " "))
	if topic == "" {
		return fallbackTopic
	}
	return topic
}

func newItem(u, topic, brand, businessType string, form Form) models.WorkItem {
	audience := strings.TrimSpace(form.TargetAudience)
	return models.WorkItem{
		URL:            u,
		Topic:          topic,
		Keyword:        topic,
		Language:       langdetect.Detect(topic),
		Brand:          strings.TrimSpace(brand),
		BusinessType:   strings.TrimSpace(businessType),
		TargetAudience: audience,
		QueryText:      BuildInstruction(form.Mode, u, topic, brand, businessType, audience),
	}
}

func override(fields []string, idx int, fallback string) string {
	if idx < len(fields) && fields[idx] != "" {
		return fields[idx]
	}
	return fallback
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
