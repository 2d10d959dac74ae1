package i18n

import (
	"errors"
	"net/http"
	"time"
)

// CookieName holds the persisted widget language.
const CookieName = "storefinder_lang"

var errNoResponse = errors.New("no response writer")

// CookiePreferences keeps the language choice in a cookie on the widget's
// API origin. Third-party cookie blocking makes it unavailable in many
// embeds, which is fine for a best-effort preference.
type CookiePreferences struct {
	r *http.Request
	w http.ResponseWriter
}

// NewCookiePreferences binds the store to one request/response pair. w may be
// nil for read-only use.
func NewCookiePreferences(w http.ResponseWriter, r *http.Request) *CookiePreferences {
	return &CookiePreferences{r: r, w: w}
}

// Load implements PreferenceStore.
func (c *CookiePreferences) Load() (Language, error) {
	cookie, err := c.r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	l, ok := Parse(cookie.Value)
	if !ok {
		return "", errors.New("unsupported language in cookie")
	}
	return l, nil
}

// Save implements PreferenceStore.
func (c *CookiePreferences) Save(l Language) error {
	if c.w == nil {
		return errNoResponse
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     CookieName,
		Value:    string(l),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   c.r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
