// Package langdetect guesses the language of a short text (a page topic or
// query) from character-set and keyword heuristics. The result is a routing
// signal for prompt generation, not a linguistic classification.
package langdetect

import (
	"regexp"
	"strings"

	"github.com/vrsandeep/seo-batch/internal/models"
)

// Default is returned for empty input and for Cyrillic text without a
// distinguishing keyword.
const Default = models.LanguageUkrainian

// RE2's \b only knows ASCII word characters, so Cyrillic keywords are
// delimited with explicit non-letter lookarounds.
const (
	wordStart = `(?i)(?:^|[^\p{L}])(?:`
	wordEnd   = `)(?:$|[^\p{L}])`
)

var (
	ukChars    = regexp.MustCompile(`[а-яА-ЯіїєґІЇЄҐ]`)
	ukKeywords = regexp.MustCompile(wordStart +
		`що|це|цей|ця|який|яка|які|та|також|або|є|її|ми|ви|ціна|ціни|купити|україн\p{L}*|київ\p{L}*|більше|найкращ\p{L}*|послуг\p{L}*|сторінк\p{L}*` +
		wordEnd)

	ruChars    = regexp.MustCompile(`[а-яёА-ЯЁ]`)
	ruKeywords = regexp.MustCompile(wordStart +
		`что|это|этот|эта|который|которая|также|или|есть|её|мы|вы|цена|цены|купить|росси\p{L}*|москв\p{L}*|больше|лучш\p{L}*|услуг\p{L}*|страниц\p{L}*` +
		wordEnd)

	enChars    = regexp.MustCompile(`^[A-Za-z0-9\s\p{P}\p{S}]*[A-Za-z][A-Za-z0-9\s\p{P}\p{S}]*$`)
	enKeywords = regexp.MustCompile(`(?i)\b(?:the|and|for|with|buy|best|how|what|is|of|to|page|price|online|shop|service|services)\b`)
)

type scores struct {
	uk, ru, en       int
	ukChars, ruChars bool
}

func score(text string) scores {
	var s scores
	if ukChars.MatchString(text) {
		s.uk++
		s.ukChars = true
	}
	if ukKeywords.MatchString(text) {
		s.uk++
	}
	if ruChars.MatchString(text) {
		s.ru++
		s.ruChars = true
	}
	if ruKeywords.MatchString(text) {
		s.ru++
	}
	if enChars.MatchString(text) {
		s.en++
	}
	if enKeywords.MatchString(text) {
		s.en++
	}
	return s
}

// Detect returns en, ru or uk for text. Empty or blank text yields Default.
func Detect(text string) models.Language {
	if strings.TrimSpace(text) == "" {
		return Default
	}
	s := score(text)
	switch {
	case s.en > 0 && !s.ukChars && !s.ruChars:
		return models.LanguageEnglish
	case s.ru > s.uk:
		return models.LanguageRussian
	case s.uk > 0:
		return models.LanguageUkrainian
	}
	return Default
}
