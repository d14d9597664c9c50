package app

import (
	"context"
	"errors"
	"fmt"

	"go.aimuz.me/murmur/clipboard"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/llm"
	"go.aimuz.me/murmur/stt"
)

var errNoFormattingProfile = errors.New("no active formatting profile")

// transcribeFunc adapts a function to stt.Transcriber.
type transcribeFunc func(ctx context.Context, audio stt.Audio) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	return f(ctx, audio)
}

// deliverFunc adapts a function to session.Deliverer.
type deliverFunc func(ctx context.Context, text string, app types.ForegroundApp) (bool, bool, error)

func (f deliverFunc) Deliver(ctx context.Context, text string, app types.ForegroundApp) (bool, bool, error) {
	return f(ctx, text, app)
}

// transcribe builds a client from the current speech config, so credential
// edits apply to the next recording.
func (s *Service) transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	var sc types.SpeechConfig
	var cred types.APICredential
	err := s.readConfig(func(cfg *config.Config) error {
		speech, c := cfg.SpeechCredential()
		if speech == nil {
			return stt.ErrNotConfigured
		}
		sc, cred = *speech, *c
		return nil
	})
	if err != nil {
		return "", err
	}

	client := stt.NewOpenAI(stt.Config{
		APIKey:   cred.APIKey,
		BaseURL:  cred.BaseURL,
		Model:    sc.Model,
		Language: sc.Language,
		Prompt:   sc.Prompt,
	})
	return client.Transcribe(ctx, audio)
}

// resolveCompleter returns a completer for the active formatting profile.
func (s *Service) resolveCompleter() (llm.Completer, FormatProfile, error) {
	var profile types.FormattingProfile
	var cred types.APICredential
	err := s.readConfig(func(cfg *config.Config) error {
		p := cfg.GetActiveFormattingProfile()
		if p == nil {
			return errNoFormattingProfile
		}
		c := cfg.GetCredential(p.CredentialID)
		if c == nil {
			return fmt.Errorf("credential not found: %s", p.CredentialID)
		}
		profile, cred = *p, *c
		return nil
	})
	if err != nil {
		return nil, FormatProfile{}, err
	}

	completer := llm.NewCompleter(cred.Type, cred.APIKey, cred.BaseURL, profile.Model, llm.Options{
		MaxTokens:       profile.MaxTokens,
		Temperature:     profile.Temperature,
		DisableThinking: profile.DisableThinking,
	})
	return completer, FormatProfile{
		Name:         profile.Name,
		Model:        profile.Model,
		SystemPrompt: profile.SystemPrompt,
	}, nil
}

// deliver copies and pastes with the current delivery settings.
func (s *Service) deliver(ctx context.Context, text string, app types.ForegroundApp) (bool, bool, error) {
	var d config.DeliveryConfig
	_ = s.readConfig(func(cfg *config.Config) error {
		d = cfg.Delivery
		return nil
	})

	var paster clipboard.Paster
	if d.AutoPaste {
		paster = s.paster
	}
	deliverer := clipboard.NewDeliverer(s.clip, paster, clipboard.DeliveryOptions{
		AutoPaste:        d.AutoPaste,
		PasteDelay:       d.PasteDelay(),
		RestoreClipboard: d.RestoreClipboard,
	})
	return deliverer.Deliver(ctx, text, app)
}
