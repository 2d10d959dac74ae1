package widget

import (
	"fmt"
	"html"
	"strings"

	"github.com/DukeRupert/storefinder/internal/i18n"
)

// ContainerID is the id of the element the widget script mounts into.
const ContainerID = "storefinder"

// Embed attributes read from the container element
const (
	AttrLanguage     = "data-lang"
	AttrHideSwitcher = "data-hide-lang-switcher"
)

// EmbedOptions are the embed-time settings of a widget instance.
type EmbedOptions struct {
	// Language pins the initial language. Empty means resolve normally.
	Language     i18n.Language `json:"language,omitempty"`
	HideSwitcher bool          `json:"hide_switcher"`
}

// ParseEmbed reads the container attributes. Unknown languages are ignored
// and the switcher is only hidden by the exact value "true".
func ParseEmbed(attrs map[string]string) EmbedOptions {
	var opts EmbedOptions
	if l, ok := i18n.Parse(attrs[AttrLanguage]); ok {
		opts.Language = l
	}
	opts.HideSwitcher = attrs[AttrHideSwitcher] == "true"
	return opts
}

// Attributes returns the container attributes for opts.
func (o EmbedOptions) Attributes() map[string]string {
	attrs := map[string]string{}
	if o.Language != "" {
		attrs[AttrLanguage] = string(o.Language)
	}
	if o.HideSwitcher {
		attrs[AttrHideSwitcher] = "true"
	}
	return attrs
}

// Snippet returns the HTML a site owner pastes into their page.
func Snippet(baseURL string, opts EmbedOptions) string {
	baseURL = strings.TrimSuffix(baseURL, "/")

	var b strings.Builder
	fmt.Fprintf(&b, `<div id="%s"`, ContainerID)
	if opts.Language != "" {
		fmt.Fprintf(&b, ` %s="%s"`, AttrLanguage, html.EscapeString(string(opts.Language)))
	}
	if opts.HideSwitcher {
		fmt.Fprintf(&b, ` %s="true"`, AttrHideSwitcher)
	}
	b.WriteString("></div>\n")
	fmt.Fprintf(&b, `<script src="%s/widget/storefinder.js" defer></script>`, html.EscapeString(baseURL))
	return b.String()
}
