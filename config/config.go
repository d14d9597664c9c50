// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/style"
)

const (
	appName        = "murmur"
	configFileName = "config.json"

	// DefaultHotkey is the hold-to-dictate accelerator.
	DefaultHotkey = "Shift+Z"

	defaultPasteDelayMS   = 150
	defaultRetentionDays  = 7
	defaultSilenceRMS     = 0.01
	defaultCaptureBackend = "malgo"
)

// ErrNotFound is returned when a credential or profile id is unknown.
var ErrNotFound = errors.New("config: not found")

var credentialTypes = []string{"openai", "openai-compatible", "claude", "gemini"}

// CaptureConfig selects and tunes the microphone backend.
type CaptureConfig struct {
	Backend          string  `json:"backend"` // "malgo" or "ffmpeg"
	SampleRate       int     `json:"sample_rate"`
	Channels         int     `json:"channels"`
	FFmpegCommand    string  `json:"ffmpeg_command,omitempty"`
	InputFormat      string  `json:"input_format,omitempty"`
	InputDevice      string  `json:"input_device,omitempty"`
	SilenceThreshold float64 `json:"silence_threshold"` // RMS relative to full scale
}

// DeliveryConfig controls how results reach the focused application.
type DeliveryConfig struct {
	AutoPaste        bool `json:"auto_paste"`
	PasteDelayMS     int  `json:"paste_delay_ms"`
	RestoreClipboard bool `json:"restore_clipboard"`
}

// PasteDelay returns the paste delay as a duration.
func (d DeliveryConfig) PasteDelay() time.Duration {
	return time.Duration(d.PasteDelayMS) * time.Millisecond
}

// Config represents the application configuration.
type Config struct {
	Credentials        []types.APICredential     `json:"credentials,omitempty"`
	FormattingProfiles []types.FormattingProfile `json:"formatting_profiles,omitempty"`
	SpeechConfig       *types.SpeechConfig       `json:"speech_config,omitempty"`

	Hotkey               string         `json:"hotkey"`
	Capture              CaptureConfig  `json:"capture"`
	Delivery             DeliveryConfig `json:"delivery"`
	Styles               []style.Rule   `json:"styles,omitempty"`
	HistoryRetentionDays int            `json:"history_retention_days"`

	path string
}

// Path returns the config file location: $MURMUR_CONFIG or the user config dir.
func Path() (string, error) {
	if p := os.Getenv("MURMUR_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Dir returns the directory holding the config file.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

// File returns the config file path.
func (c *Config) File() string {
	return c.path
}

// Load loads configuration from the default path with environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path. A missing file is created with
// defaults. Environment credentials and overrides are applied on top and
// never written.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if path != "" {
			cfg.normalize()
			if err := cfg.Save(); err != nil {
				slog.Warn("write default config", "path", path, "error", err)
			}
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		// Unmarshal over defaults so missing fields keep their default.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.normalize()
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// Save persists the configuration to disk. Credentials synthesized from the
// environment are never written.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config: no file path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := *c
	out.Credentials = slices.DeleteFunc(slices.Clone(c.Credentials), func(x types.APICredential) bool {
		return isEnvID(x.ID)
	})
	out.FormattingProfiles = slices.DeleteFunc(slices.Clone(c.FormattingProfiles), func(x types.FormattingProfile) bool {
		return isEnvID(x.ID)
	})
	if out.SpeechConfig != nil && isEnvID(out.SpeechConfig.CredentialID) {
		out.SpeechConfig = nil
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Write-then-rename so watchers never observe a truncated file.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Hotkey: DefaultHotkey,
		Capture: CaptureConfig{
			Backend:          defaultCaptureBackend,
			SampleRate:       16000,
			Channels:         1,
			SilenceThreshold: defaultSilenceRMS,
		},
		Delivery: DeliveryConfig{
			AutoPaste:    true,
			PasteDelayMS: defaultPasteDelayMS,
		},
		HistoryRetentionDays: defaultRetentionDays,
	}
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Hotkey) == "" {
		c.Hotkey = DefaultHotkey
	}
	if c.Capture.Backend == "" {
		c.Capture.Backend = defaultCaptureBackend
	}
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.Channels <= 0 {
		c.Capture.Channels = 1
	}
	if c.Capture.SilenceThreshold < 0 {
		c.Capture.SilenceThreshold = 0
	}
	if c.Delivery.PasteDelayMS <= 0 {
		c.Delivery.PasteDelayMS = defaultPasteDelayMS
	}
	if c.HistoryRetentionDays <= 0 {
		c.HistoryRetentionDays = defaultRetentionDays
	}
}

// HistoryRetention returns how long delivered results are kept.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// SetHotkey sets the hold-to-dictate accelerator. Callers validate the syntax.
func (c *Config) SetHotkey(accel string) error {
	accel = strings.TrimSpace(accel)
	if accel == "" {
		return errors.New("hotkey required")
	}
	c.Hotkey = accel
	return c.Save()
}

// SetDelivery replaces the delivery settings.
func (c *Config) SetDelivery(d DeliveryConfig) error {
	if d.PasteDelayMS <= 0 {
		d.PasteDelayMS = defaultPasteDelayMS
	}
	c.Delivery = d
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredentials returns all API credentials.
func (c *Config) GetCredentials() []types.APICredential {
	return c.Credentials
}

// GetCredential returns a credential by ID.
func (c *Config) GetCredential(id string) *types.APICredential {
	for i := range c.Credentials {
		if c.Credentials[i].ID == id {
			return &c.Credentials[i]
		}
	}
	return nil
}

func validateCredential(cred types.APICredential) error {
	if cred.Name == "" {
		return errors.New("credential name required")
	}
	if cred.APIKey == "" {
		return errors.New("api key required")
	}
	if !slices.Contains(credentialTypes, cred.Type) {
		return fmt.Errorf("unknown credential type: %q", cred.Type)
	}
	if cred.Type == "openai-compatible" && cred.BaseURL == "" {
		return errors.New("base url required for openai-compatible")
	}
	return nil
}

// AddCredential adds a new API credential.
func (c *Config) AddCredential(cred types.APICredential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}

	c.Credentials = append(c.Credentials, cred)
	return c.Save()
}

// UpdateCredential updates an existing credential.
func (c *Config) UpdateCredential(id string, cred types.APICredential) error {
	if err := validateCredential(cred); err != nil {
		return err
	}
	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential %s: %w", id, ErrNotFound)
	}

	cred.ID = id // Preserve ID
	c.Credentials[idx] = cred
	return c.Save()
}

// RemoveCredential removes a credential by ID.
// Returns error if credential is in use by any profile or speech config.
func (c *Config) RemoveCredential(id string) error {
	for _, p := range c.FormattingProfiles {
		if p.CredentialID == id {
			return fmt.Errorf("credential in use by formatting profile: %s", p.Name)
		}
	}
	if c.SpeechConfig != nil && c.SpeechConfig.CredentialID == id {
		return errors.New("credential in use by speech config")
	}

	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential %s: %w", id, ErrNotFound)
	}

	c.Credentials = slices.Delete(c.Credentials, idx, idx+1)
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Formatting Profile Management
// ─────────────────────────────────────────────────────────────────────────────

// GetFormattingProfiles returns all formatting profiles.
func (c *Config) GetFormattingProfiles() []types.FormattingProfile {
	return c.FormattingProfiles
}

// GetActiveFormattingProfile returns the active formatting profile, the first
// one when none is marked active, or nil when there are none.
func (c *Config) GetActiveFormattingProfile() *types.FormattingProfile {
	for i := range c.FormattingProfiles {
		if c.FormattingProfiles[i].Active {
			return &c.FormattingProfiles[i]
		}
	}
	if len(c.FormattingProfiles) > 0 {
		c.FormattingProfiles[0].Active = true
		return &c.FormattingProfiles[0]
	}
	return nil
}

func applyProfileDefaults(p *types.FormattingProfile) {
	if p.MaxTokens == 0 {
		p.MaxTokens = types.DefaultMaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = types.DefaultTemperature
	}
}

// AddFormattingProfile adds a new formatting profile.
func (c *Config) AddFormattingProfile(profile types.FormattingProfile) error {
	if profile.Name == "" {
		return errors.New("profile name required")
	}
	if profile.CredentialID == "" {
		return errors.New("credential id required")
	}
	if profile.Model == "" {
		return errors.New("model required")
	}
	if c.GetCredential(profile.CredentialID) == nil {
		return fmt.Errorf("credential %s: %w", profile.CredentialID, ErrNotFound)
	}

	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	applyProfileDefaults(&profile)

	// First profile or explicitly active: deactivate others
	if len(c.FormattingProfiles) == 0 || profile.Active {
		for i := range c.FormattingProfiles {
			c.FormattingProfiles[i].Active = false
		}
		profile.Active = true
	}

	c.FormattingProfiles = append(c.FormattingProfiles, profile)
	return c.Save()
}

// UpdateFormattingProfile updates an existing formatting profile.
func (c *Config) UpdateFormattingProfile(id string, profile types.FormattingProfile) error {
	idx := slices.IndexFunc(c.FormattingProfiles, func(x types.FormattingProfile) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if c.GetCredential(profile.CredentialID) == nil {
		return fmt.Errorf("credential %s: %w", profile.CredentialID, ErrNotFound)
	}
	applyProfileDefaults(&profile)

	wasActive := c.FormattingProfiles[idx].Active
	if profile.Active && !wasActive {
		for i := range c.FormattingProfiles {
			c.FormattingProfiles[i].Active = false
		}
	} else {
		profile.Active = wasActive
	}

	profile.ID = id // Preserve ID
	c.FormattingProfiles[idx] = profile
	return c.Save()
}

// RemoveFormattingProfile removes a formatting profile by ID.
func (c *Config) RemoveFormattingProfile(id string) error {
	idx := slices.IndexFunc(c.FormattingProfiles, func(x types.FormattingProfile) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	wasActive := c.FormattingProfiles[idx].Active
	c.FormattingProfiles = slices.Delete(c.FormattingProfiles, idx, idx+1)

	if wasActive && len(c.FormattingProfiles) > 0 {
		c.FormattingProfiles[0].Active = true
	}

	return c.Save()
}

// SetFormattingProfileActive sets a formatting profile as active.
func (c *Config) SetFormattingProfileActive(id string) error {
	found := false
	for i := range c.FormattingProfiles {
		if c.FormattingProfiles[i].ID == id {
			c.FormattingProfiles[i].Active = true
			found = true
		} else {
			c.FormattingProfiles[i].Active = false
		}
	}
	if !found {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Speech Configuration
// ─────────────────────────────────────────────────────────────────────────────

// GetSpeechConfig returns the speech configuration.
func (c *Config) GetSpeechConfig() *types.SpeechConfig {
	return c.SpeechConfig
}

// SetSpeechConfig sets the speech configuration.
func (c *Config) SetSpeechConfig(cfg types.SpeechConfig) error {
	cred := c.GetCredential(cfg.CredentialID)
	if cred == nil {
		return fmt.Errorf("credential %s: %w", cfg.CredentialID, ErrNotFound)
	}
	if cred.Type != "openai" && cred.Type != "openai-compatible" {
		return errors.New("speech config requires OpenAI-compatible credential")
	}

	if cfg.Model == "" {
		cfg.Model = types.DefaultSpeechModel
	}

	c.SpeechConfig = &cfg
	return c.Save()
}

// SpeechCredential returns the speech config with its credential, or nil
// values when speech-to-text is not configured.
func (c *Config) SpeechCredential() (*types.SpeechConfig, *types.APICredential) {
	if c.SpeechConfig == nil {
		return nil, nil
	}
	cred := c.GetCredential(c.SpeechConfig.CredentialID)
	if cred == nil {
		return nil, nil
	}
	return c.SpeechConfig, cred
}

// ─────────────────────────────────────────────────────────────────────────────
// Style Rules
// ─────────────────────────────────────────────────────────────────────────────

// SetStyles replaces the per-application style rules.
func (c *Config) SetStyles(rules []style.Rule) error {
	for _, r := range rules {
		if !r.Style.Valid() {
			return fmt.Errorf("unknown style: %q", r.Style)
		}
		if len(r.Match) == 0 {
			return errors.New("style rule needs at least one match")
		}
	}
	c.Styles = rules
	return c.Save()
}
