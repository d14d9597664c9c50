package config

import (
	"strings"

	"go.aimuz.me/murmur/internal/types"
)

// Ids of entries synthesized from the environment carry this prefix and are
// never saved.
const envIDPrefix = "env-"

func isEnvID(id string) bool {
	return strings.HasPrefix(id, envIDPrefix)
}

type envProvider struct {
	keyVar     string
	baseURLVar string
	credType   string
	name       string
	model      string
	noThinking bool
}

var envProviders = []envProvider{
	{keyVar: "OPENAI_API_KEY", baseURLVar: "OPENAI_BASE_URL", credType: "openai", name: "OpenAI", model: "gpt-4o-mini"},
	{keyVar: "ANTHROPIC_API_KEY", baseURLVar: "ANTHROPIC_BASE_URL", credType: "claude", name: "Anthropic", model: "claude-haiku-4-5"},
	{keyVar: "GEMINI_API_KEY", credType: "gemini", name: "Gemini", model: "gemini-2.5-flash", noThinking: true},
}

func envOrDefault(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

// applyEnv adds credentials from well-known API key variables when the file
// defines none, and applies MURMUR_* overrides.
func (c *Config) applyEnv(getenv func(string) string) {
	c.Hotkey = envOrDefault(getenv, "MURMUR_HOTKEY", c.Hotkey)
	c.Capture.Backend = envOrDefault(getenv, "MURMUR_CAPTURE_BACKEND", c.Capture.Backend)
	c.Capture.InputDevice = envOrDefault(getenv, "MURMUR_INPUT_DEVICE", c.Capture.InputDevice)

	if len(c.Credentials) > 0 {
		return
	}

	for _, p := range envProviders {
		key := strings.TrimSpace(getenv(p.keyVar))
		if key == "" {
			continue
		}
		cred := types.APICredential{
			ID:     envIDPrefix + p.credType,
			Name:   p.name + " (" + p.keyVar + ")",
			Type:   p.credType,
			APIKey: key,
		}
		if p.baseURLVar != "" {
			cred.BaseURL = strings.TrimSpace(getenv(p.baseURLVar))
		}
		c.Credentials = append(c.Credentials, cred)

		if len(c.FormattingProfiles) == 0 {
			c.FormattingProfiles = append(c.FormattingProfiles, types.FormattingProfile{
				ID:              envIDPrefix + p.credType + "-format",
				Name:            p.name,
				CredentialID:    cred.ID,
				Model:           envOrDefault(getenv, "MURMUR_FORMAT_MODEL", p.model),
				MaxTokens:       types.DefaultMaxTokens,
				Temperature:     types.DefaultTemperature,
				Active:          true,
				DisableThinking: p.noThinking,
			})
		}
		if c.SpeechConfig == nil && p.credType == "openai" {
			c.SpeechConfig = &types.SpeechConfig{
				CredentialID: cred.ID,
				Model:        envOrDefault(getenv, "MURMUR_SPEECH_MODEL", types.DefaultSpeechModel),
				Language:     getenv("MURMUR_LANGUAGE"),
			}
		}
	}
}
