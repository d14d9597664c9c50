package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"go.aimuz.me/murmur/internal/session"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/langdetect"
	"go.aimuz.me/murmur/llm"
	"go.aimuz.me/murmur/style"
)

// defaultFormatPrompt is used when the active profile has no system prompt.
const defaultFormatPrompt = "You clean up dictated speech transcripts. " +
	"Fix punctuation, capitalization and obvious recognition errors, remove filler words and false starts, " +
	"and keep the speaker's meaning and wording otherwise unchanged. " +
	"Reply with the formatted text only, without quotes or commentary."

// FormatProfile holds the minimal config needed for formatting.
type FormatProfile struct {
	Name         string
	Model        string
	SystemPrompt string
}

// completerResolver returns the completer and profile for the active
// formatting profile.
type completerResolver func() (llm.Completer, FormatProfile, error)

// Formatter restyles transcripts for the focused application.
// Zero value is not useful; create via NewFormatter.
type Formatter struct {
	resolve  completerResolver
	selector func() *style.Selector
	detect   func(text string) (code, name string)
}

// NewFormatter creates a Formatter. selector is called per request so style
// rules can change at runtime.
func NewFormatter(resolve completerResolver, selector func() *style.Selector) *Formatter {
	return &Formatter{resolve: resolve, selector: selector, detect: langdetect.Detect}
}

// Format implements session.Formatter. On failure the chosen style and
// detected language are still returned so the fallback result carries them.
func (f *Formatter) Format(ctx context.Context, text string, app types.ForegroundApp) (session.Formatted, error) {
	st := f.selector().Select(app.Name)
	code, name := f.detect(text)

	out := session.Formatted{Style: string(st)}
	if code != langdetect.Unknown {
		out.Language = code
	} else {
		name = ""
	}

	completer, profile, err := f.resolve()
	if err != nil {
		return out, err
	}

	msgs := buildFormatMessages(profile.SystemPrompt, st, name, text)
	formatted, usage, err := completer.Complete(ctx, msgs)
	if err != nil {
		return out, fmt.Errorf("format: %w", err)
	}

	formatted = norm.NFC.String(strings.TrimSpace(formatted))
	if formatted == "" {
		return out, fmt.Errorf("format: %w", llm.ErrEmptyResponse)
	}

	slog.Debug("formatted transcript",
		"profile", profile.Name,
		"model", profile.Model,
		"style", st,
		"language", out.Language,
		"tokens", usage.TotalTokens)

	out.Text = formatted
	return out, nil
}

func buildFormatMessages(systemPrompt string, st style.Style, language, text string) []llm.Message {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultFormatPrompt
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	b.WriteString(st.Instruction())
	if language != "" {
		fmt.Fprintf(&b, "\nThe transcript is in %s. Keep it in %s; do not translate.", language, language)
	}

	return []llm.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: fmt.Sprintf("Transcript:\n\n%s", text)},
	}
}
