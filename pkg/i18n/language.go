// Package i18n holds the language and geographic code tables shared by the
// news sources and the scorer.
package i18n

import "strings"

// Language is a request language code understood by the news providers.
type Language string

const (
	LangEN Language = "en" // English (default)
	LangFR Language = "fr" // French
	LangES Language = "es" // Spanish
	LangDE Language = "de" // German
	LangIT Language = "it" // Italian
	LangPT Language = "pt" // Portuguese
	LangAR Language = "ar" // Arabic
	LangZH Language = "zh" // Chinese
	LangJA Language = "ja" // Japanese
	LangNL Language = "nl" // Dutch
	LangRU Language = "ru" // Russian
)

// AllLanguages is the list of all supported languages.
var AllLanguages = []Language{LangEN, LangFR, LangES, LangDE, LangIT, LangPT, LangAR, LangZH, LangJA, LangNL, LangRU}

// IsValidLanguage checks if a language code is supported.
func IsValidLanguage(lang string) bool {
	for _, l := range AllLanguages {
		if Language(lang) == l {
			return true
		}
	}
	return false
}

// NormalizeLanguage lower-cases s, strips any region suffix ("en-US") and
// returns it when supported. Unsupported or empty input yields LangEN, false.
func NormalizeLanguage(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	if IsValidLanguage(s) {
		return Language(s), true
	}
	return LangEN, false
}
