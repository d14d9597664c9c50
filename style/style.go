// Package style chooses a writing style from the focused application.
package style

import (
	"strings"

	"golang.org/x/text/cases"
)

// Style is a formatting register for dictated text.
type Style string

const (
	Chat  Style = "chat"
	Email Style = "email"
	Code  Style = "code"
	Prose Style = "prose"
)

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	switch s {
	case Chat, Email, Code, Prose:
		return true
	}
	return false
}

// Instruction returns the system prompt fragment for s.
func (s Style) Instruction() string {
	switch s {
	case Chat:
		return "Format it as a casual chat message: short, conversational, no greeting or sign-off, light punctuation."
	case Email:
		return "Format it as an email body: complete sentences, paragraphs where the topic changes, keep any greeting or sign-off that was dictated."
	case Code:
		return "The user is in a code editor or terminal. Keep identifiers, commands and symbols verbatim, use code formatting conventions and do not add prose around it."
	default:
		return "Format it as clean written prose with correct punctuation and capitalization."
	}
}

// Rule maps application name fragments to a style.
type Rule struct {
	Match []string `json:"match"`
	Style Style    `json:"style"`
}

// DefaultRules covers common chat, mail and development tools.
var DefaultRules = []Rule{
	{Match: []string{"slack", "discord", "telegram", "whatsapp", "messages", "signal", "teams", "wechat", "element"}, Style: Chat},
	{Match: []string{"mail", "outlook", "thunderbird", "spark", "airmail", "superhuman"}, Style: Email},
	{Match: []string{"code", "cursor", "zed", "goland", "intellij", "pycharm", "webstorm", "xcode", "vim", "emacs", "sublime", "terminal", "iterm", "ghostty", "alacritty", "kitty", "wezterm", "warp"}, Style: Code},
}

// Selector picks a style for an application name.
// Rules are checked in order; the first matching fragment wins.
type Selector struct {
	rules    []Rule
	fallback Style
}

// NewSelector creates a Selector. Custom rules take precedence over DefaultRules.
func NewSelector(custom []Rule) *Selector {
	rules := make([]Rule, 0, len(custom)+len(DefaultRules))
	for _, r := range custom {
		if r.Style.Valid() && len(r.Match) > 0 {
			rules = append(rules, r)
		}
	}
	rules = append(rules, DefaultRules...)
	return &Selector{rules: rules, fallback: Prose}
}

// Select returns the style for appName, Prose when nothing matches.
func (s *Selector) Select(appName string) Style {
	// Casers are stateful; one per call keeps Select safe for concurrent use.
	fold := cases.Fold()
	name := fold.String(strings.TrimSpace(appName))
	if name == "" {
		return s.fallback
	}
	for _, r := range s.rules {
		for _, m := range r.Match {
			m = fold.String(strings.TrimSpace(m))
			if m != "" && strings.Contains(name, m) {
				return r.Style
			}
		}
	}
	return s.fallback
}
