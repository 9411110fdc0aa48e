package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vrsandeep/seo-batch/internal/models"
)

func TestDetect(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want models.Language
	}{
		{"empty", "", models.LanguageUkrainian},
		{"blank", "   \n\t", models.LanguageUkrainian},
		{"english keyword", "Buy the best shoes online", models.LanguageEnglish},
		{"english without keyword", "blue widgets", models.LanguageEnglish},
		{"english fallback topic", "Page", models.LanguageEnglish},
		{"english with punctuation", "How to choose a laptop?", models.LanguageEnglish},
		{"ukrainian keyword", "Купити взуття в Україні", models.LanguageUkrainian},
		{"ukrainian letters only", "їжак", models.LanguageUkrainian},
		{"russian keyword", "Купить обувь в Москве", models.LanguageRussian},
		{"russian with yo", "Это ёлка", models.LanguageRussian},
		{"generic cyrillic", "школа", models.LanguageUkrainian},
		{"mixed latin and cyrillic", "Nike кросівки ціна", models.LanguageUkrainian},
		{"digits only", "2024", models.LanguageUkrainian},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Detect(tc.text), "Detect(%q)", tc.text)
		})
	}
}

func TestDetect_LatinWithKeywordIsAlwaysEnglish(t *testing.T) {
	keywords := []string{"the", "and", "for", "with", "buy", "best", "how", "what"}
	for _, kw := range keywords {
		text := "Widgets " + kw + " Gadgets"
		assert.Equal(t, models.LanguageEnglish, Detect(text), "Detect(%q)", text)
	}
}

func TestScore_CyrillicPatternsOverlap(t *testing.T) {
	s := score("школа")
	assert.True(t, s.ukChars)
	assert.True(t, s.ruChars)
	assert.Equal(t, 1, s.uk)
	assert.Equal(t, 1, s.ru)
	assert.Equal(t, 0, s.en)
}
