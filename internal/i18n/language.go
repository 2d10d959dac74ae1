// Package i18n resolves the display language of the public widget and
// translates its UI strings.
package i18n

import (
	"log/slog"
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported display language.
type Language string

const (
	German  Language = "de"
	French  Language = "fr"
	Italian Language = "it"
)

// Default is used when nothing else resolves.
const Default = German

// Supported lists the display languages in menu order.
var Supported = []Language{German, French, Italian}

// IsSupported returns true for de, fr and it.
func (l Language) IsSupported() bool {
	switch l {
	case German, French, Italian:
		return true
	}
	return false
}

// Parse reads a language attribute such as "FR" or "it-CH". Only the first
// two letters count.
func Parse(raw string) (Language, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) > 2 {
		s = s[:2]
	}
	l := Language(s)
	if !l.IsSupported() {
		return "", false
	}
	return l, true
}

// PreferenceStore persists the visitor's language choice. Implementations
// may be unavailable; callers treat every error as "no preference".
type PreferenceStore interface {
	Load() (Language, error)
	Save(Language) error
}

// Request holds the inputs of language resolution.
type Request struct {
	Override       string          // embed-time data-lang or explicit parameter
	Preferences    PreferenceStore // optional
	AcceptLanguage string          // browser locale, e.g. an Accept-Language header
	Fallback       Language        // configured default language
}

// Resolve picks the active language. The first defined source wins:
// explicit override, persisted preference, the browser's preferred locale
// reduced to its primary subtag, then the configured fallback.
func Resolve(req Request) Language {
	if l, ok := Parse(req.Override); ok {
		return l
	}
	if req.Preferences != nil {
		if stored, err := req.Preferences.Load(); err == nil && stored.IsSupported() {
			return stored
		}
	}
	if l, ok := browserLanguage(req.AcceptLanguage); ok {
		return l
	}
	if req.Fallback.IsSupported() {
		return req.Fallback
	}
	return Default
}

// browserLanguage considers only the most preferred locale, like
// navigator.language does.
func browserLanguage(header string) (Language, bool) {
	if strings.TrimSpace(header) == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	base, _ := tags[0].Base()
	return Parse(base.String())
}

// SavePreference stores l and only logs failures.
func SavePreference(store PreferenceStore, l Language, logger *slog.Logger) {
	if store == nil || !l.IsSupported() {
		return
	}
	if err := store.Save(l); err != nil {
		logger.Debug("failed to persist language preference", "error", err, "language", l)
	}
}
