package batch

import (
	"fmt"
	"strings"
)

// GenerationMode selects how the backend is asked to treat each page.
type GenerationMode string

const (
	// ModeAuto lets the backend route the request.
	ModeAuto GenerationMode = "auto"
	// ModeContent asks for full content generation plus meta tags.
	ModeContent GenerationMode = "chatgpt"
	// ModeMetaOnly asks for meta tags only.
	ModeMetaOnly GenerationMode = "meta"
)

// ParseMode maps a user-supplied mode name onto a GenerationMode.
// Unknown and empty names fall back to ModeAuto.
func ParseMode(s string) GenerationMode {
	switch GenerationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeContent, "content":
		return ModeContent
	case ModeMetaOnly, "meta_only", "meta-tags":
		return ModeMetaOnly
	}
	return ModeAuto
}

// BuildInstruction composes the natural-language request sent as user_query.
func BuildInstruction(mode GenerationMode, url, topic, brand, businessType, audience string) string {
	var b strings.Builder
	switch mode {
	case ModeContent:
		fmt.Fprintf(&b, "Згенеруй SEO-оптимізований текст та мета-теги для сторінки %s на тему \"%s\"", url, topic)
	case ModeMetaOnly:
		fmt.Fprintf(&b, "Згенеруй тільки мета-теги (title, description, h1) для сторінки %s на тему \"%s\"", url, topic)
	default:
		fmt.Fprintf(&b, "Проаналізуй та оптимізуй сторінку %s на тему \"%s\"", url, topic)
	}
	if brand = strings.TrimSpace(brand); brand != "" {
		fmt.Fprintf(&b, ". Бренд: %s", brand)
	}
	if businessType = strings.TrimSpace(businessType); businessType != "" {
		fmt.Fprintf(&b, ". Тип бізнесу: %s", businessType)
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		fmt.Fprintf(&b, ". Цільова аудиторія: %s", audience)
	}
	return b.String()
}
