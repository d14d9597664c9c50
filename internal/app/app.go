package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/clipboard"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/foreground"
	"go.aimuz.me/murmur/history"
	"go.aimuz.me/murmur/hotkey"
	"go.aimuz.me/murmur/internal/session"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/langdetect"
	"go.aimuz.me/murmur/style"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	// mu guards cfg and selector, which the config watcher replaces.
	mu       sync.RWMutex
	cfg      *config.Config
	selector *style.Selector

	cfgPath    string
	history    *history.Store
	hotkey     *hotkey.Manager
	trigger    *trigger
	controller *session.Controller
	stopWatch  context.CancelFunc
	closeOnce  sync.Once

	// OS integration, replaceable in tests
	clip       clipboard.Clipboard
	paster     clipboard.Paster
	foreground foreground.Detector
	detect     func(text string) (code, name string)

	// UI references - set via Init
	app    *application.App
	window application.Window

	// Version info (set by caller)
	version string
}

// New creates a new Service. An empty cfgPath uses the default config
// location. Call Init() after Wails app is created.
func New(version, cfgPath string) *Service {
	return &Service{
		version:    version,
		cfgPath:    cfgPath,
		clip:       &clipboard.System{},
		paster:     clipboard.KeyPaster{},
		foreground: foreground.System{},
		detect:     langdetect.Detect,
	}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg := s.loadConfig()
	s.start(cfg, s.newCapturer(cfg.Capture), s.openHistory(cfg))
	s.setupHotkey(cfg.Hotkey)
	s.watchConfig(cfg.File())
}

// ServiceShutdown releases the hotkey hook, any capture stream and the
// history store. Wails calls it on every quit path; later calls are no-ops.
func (s *Service) ServiceShutdown() error {
	s.closeOnce.Do(s.shutdown)
	return nil
}

func (s *Service) shutdown() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.controller != nil {
		s.controller.Shutdown()
	}
	if s.trigger != nil {
		s.trigger.Close()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}

func (s *Service) loadConfig() *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if s.cfgPath != "" {
		cfg, err = config.LoadFrom(s.cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("load config", "error", err)
		cfg, _ = config.LoadFrom("")
	}
	slog.Info("config loaded", "path", cfg.File())
	return cfg
}

func (s *Service) newCapturer(c config.CaptureConfig) audiocapture.Capturer {
	capturer, err := audiocapture.New(audiocapture.Config{
		Backend:       c.Backend,
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		FFmpegCommand: c.FFmpegCommand,
		InputFormat:   c.InputFormat,
		InputDevice:   c.InputDevice,
	})
	if err != nil {
		slog.Error("create audio capture", "backend", c.Backend, "error", err)
		capturer, _ = audiocapture.New(audiocapture.DefaultConfig())
	}
	return capturer
}

// openHistory opens the on-disk store next to the config file, falling back
// to memory so a locked or corrupt store never blocks dictation.
func (s *Service) openHistory(cfg *config.Config) *history.Store {
	path := ""
	if cfg.File() != "" {
		path = filepath.Join(cfg.Dir(), "history")
	}
	h, err := history.Open(path)
	if err == nil {
		slog.Info("history initialized", "path", path)
		return h
	}
	slog.Error("open history", "path", path, "error", err)
	h, err = history.Open("")
	if err != nil {
		slog.Error("open in-memory history", "error", err)
		return nil
	}
	return h
}

// start wires the session pipeline around cfg.
func (s *Service) start(cfg *config.Config, capturer audiocapture.Capturer, hist *history.Store) {
	s.cfg = cfg
	s.selector = style.NewSelector(cfg.Styles)
	s.history = hist

	formatter := NewFormatter(s.resolveCompleter, s.styleSelector)
	formatter.detect = s.detect

	s.controller = session.NewController(
		newLevelMeter(capturer, s.emit),
		transcribeFunc(s.transcribe),
		formatter,
		deliverFunc(s.deliver),
		s.foreground,
		eventSink{emit: s.emit},
		session.Options{SilenceThreshold: cfg.Capture.SilenceThreshold},
	)
	s.trigger = newTrigger(s.onHotkeyPress, s.onHotkeyRelease)
}

func (s *Service) setupHotkey(accel string) {
	if _, err := hotkey.ParseAccelerator(accel); err != nil {
		slog.Error("invalid hotkey, using default", "hotkey", accel, "error", err)
		accel = hotkey.DefaultAccelerator
	}

	m, err := hotkey.NewManager(accel, s.trigger.Press, s.trigger.Release)
	if err != nil {
		slog.Error("create hotkey", "error", err)
		return
	}
	s.hotkey = m

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

func (s *Service) watchConfig(path string) {
	if path == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	go func() {
		if err := config.Watch(ctx, path, s.applyConfig); err != nil {
			slog.Error("watch config", "error", err)
		}
	}()
}

// applyConfig swaps in a reloaded config. Credentials, profiles, styles and
// delivery apply to the next recording; capture settings need a restart.
func (s *Service) applyConfig(next *config.Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = next
	s.selector = style.NewSelector(next.Styles)
	s.mu.Unlock()

	if prev.Hotkey != next.Hotkey && s.hotkey != nil {
		if err := s.hotkey.SetAccelerator(next.Hotkey); err != nil {
			slog.Error("apply hotkey", "hotkey", next.Hotkey, "error", err)
		}
	}
	if prev.Capture != next.Capture {
		slog.Warn("capture settings change takes effect after restart")
	}
	slog.Info("config reloaded", "path", next.File())
}

func (s *Service) readConfig(fn func(*config.Config) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.cfg)
}

func (s *Service) updateConfig(fn func(*config.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cfg)
}

func (s *Service) styleSelector() *style.Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selector
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) onHotkeyPress() {
	if _, err := s.controller.Start(context.Background()); err != nil {
		slog.Debug("hotkey start ignored", "error", err)
	}
}

func (s *Service) onHotkeyRelease() {
	if _, err := s.finishRecording(context.Background()); err != nil {
		slog.Debug("hotkey stop", "error", err)
	}
}

// StartRecording starts a dictation session, as a hotkey press would.
func (s *Service) StartRecording() (types.SessionStatus, error) {
	return s.controller.Start(context.Background())
}

// StopRecording stops the session and waits for the delivered result.
func (s *Service) StopRecording() (types.Result, error) {
	return s.finishRecording(context.Background())
}

// AbortRecording discards the current recording.
func (s *Service) AbortRecording() error {
	return s.controller.Abort()
}

// ToggleRecording starts a session when idle and stops it otherwise.
// The pipeline runs in the background.
func (s *Service) ToggleRecording() {
	if !s.controller.Status().Active {
		s.trigger.Press()
		return
	}
	s.trigger.Release()
}

// GetStatus returns the current session status.
func (s *Service) GetStatus() types.SessionStatus {
	return s.controller.Status()
}

func (s *Service) finishRecording(ctx context.Context) (types.Result, error) {
	result, err := s.controller.Stop(ctx)
	if err != nil {
		return result, err
	}
	s.remember(result)
	return result, nil
}

func (s *Service) remember(result types.Result) {
	if s.history == nil {
		return
	}
	var ttl = history.DefaultTTL
	_ = s.readConfig(func(cfg *config.Config) error {
		ttl = cfg.HistoryRetention()
		return nil
	})
	entry, err := s.history.Add(result, ttl)
	if err != nil {
		slog.Error("save history", "session", result.SessionID, "error", err)
		return
	}
	s.emit(EventHistoryChanged, entry)
}

// ─────────────────────────────────────────────────────────────────────────────
// Window & Clipboard
// ─────────────────────────────────────────────────────────────────────────────

// ShowPanel brings the panel window to the front.
func (s *Service) ShowPanel() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

// CopyText writes text to the clipboard.
func (s *Service) CopyText(text string) error {
	if err := s.clip.SetText(text); err != nil {
		return fmt.Errorf("copy text: %w", err)
	}
	return nil
}

// GetAccessibilityPermission returns whether accessibility is enabled.
func (s *Service) GetAccessibilityPermission() bool {
	return hotkey.IsAccessibilityEnabled(false)
}

// RequestAccessibilityPermission shows the system prompt when permission is
// missing and reports the current state.
func (s *Service) RequestAccessibilityPermission() bool {
	return hotkey.IsAccessibilityEnabled(true)
}

// OpenAccessibilitySettings opens the system accessibility settings.
func (s *Service) OpenAccessibilitySettings() error {
	return hotkey.OpenAccessibilitySettings()
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// GetHistory returns up to limit recent results, newest first.
func (s *Service) GetHistory(limit int) ([]types.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(limit)
}

// CopyHistoryEntry copies a previous result to the clipboard.
func (s *Service) CopyHistoryEntry(id string) error {
	if s.history == nil {
		return history.ErrNotFound
	}
	entry, err := s.history.Get(id)
	if err != nil {
		return err
	}
	return s.CopyText(entry.Result.Text)
}

// DeleteHistoryEntry removes one result.
func (s *Service) DeleteHistoryEntry(id string) error {
	if s.history == nil {
		return history.ErrNotFound
	}
	if err := s.history.Delete(id); err != nil {
		return err
	}
	s.emit(EventHistoryChanged, nil)
	return nil
}

// ClearHistory removes every stored result.
func (s *Service) ClearHistory() error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Clear(); err != nil {
		return err
	}
	s.emit(EventHistoryChanged, nil)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredentials returns all API credentials.
func (s *Service) GetCredentials() []types.APICredential {
	var out []types.APICredential
	_ = s.readConfig(func(cfg *config.Config) error {
		out = append(out, cfg.GetCredentials()...)
		return nil
	})
	return out
}

// AddCredential adds a new API credential.
func (s *Service) AddCredential(cred types.APICredential) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.AddCredential(cred) })
}

// UpdateCredential updates an existing credential.
func (s *Service) UpdateCredential(id string, cred types.APICredential) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.UpdateCredential(id, cred) })
}

// RemoveCredential removes a credential by ID.
func (s *Service) RemoveCredential(id string) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.RemoveCredential(id) })
}

// ─────────────────────────────────────────────────────────────────────────────
// Formatting Profile Management
// ─────────────────────────────────────────────────────────────────────────────

// GetFormattingProfiles returns all formatting profiles.
func (s *Service) GetFormattingProfiles() []types.FormattingProfile {
	var out []types.FormattingProfile
	_ = s.readConfig(func(cfg *config.Config) error {
		out = append(out, cfg.GetFormattingProfiles()...)
		return nil
	})
	return out
}

// GetActiveFormattingProfile returns the currently active formatting profile.
func (s *Service) GetActiveFormattingProfile() *types.FormattingProfile {
	var out *types.FormattingProfile
	_ = s.readConfig(func(cfg *config.Config) error {
		if p := cfg.GetActiveFormattingProfile(); p != nil {
			cp := *p
			out = &cp
		}
		return nil
	})
	return out
}

// AddFormattingProfile adds a new formatting profile.
func (s *Service) AddFormattingProfile(profile types.FormattingProfile) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.AddFormattingProfile(profile) })
}

// UpdateFormattingProfile updates an existing formatting profile.
func (s *Service) UpdateFormattingProfile(id string, profile types.FormattingProfile) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.UpdateFormattingProfile(id, profile) })
}

// RemoveFormattingProfile removes a formatting profile by ID.
func (s *Service) RemoveFormattingProfile(id string) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.RemoveFormattingProfile(id) })
}

// SetFormattingProfileActive sets a formatting profile as active.
func (s *Service) SetFormattingProfileActive(id string) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.SetFormattingProfileActive(id) })
}

// ─────────────────────────────────────────────────────────────────────────────
// Speech, Hotkey, Delivery & Styles
// ─────────────────────────────────────────────────────────────────────────────

// GetSpeechConfig returns the speech service configuration.
func (s *Service) GetSpeechConfig() *types.SpeechConfig {
	var out *types.SpeechConfig
	_ = s.readConfig(func(cfg *config.Config) error {
		if sc := cfg.GetSpeechConfig(); sc != nil {
			cp := *sc
			out = &cp
		}
		return nil
	})
	return out
}

// SetSpeechConfig sets the speech service configuration.
func (s *Service) SetSpeechConfig(sc types.SpeechConfig) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.SetSpeechConfig(sc) })
}

// GetHotkey returns the hold-to-dictate accelerator.
func (s *Service) GetHotkey() string {
	var out string
	_ = s.readConfig(func(cfg *config.Config) error {
		out = cfg.Hotkey
		return nil
	})
	return out
}

// SetHotkey validates, stores and applies a new accelerator.
func (s *Service) SetHotkey(accel string) error {
	if _, err := hotkey.ParseAccelerator(accel); err != nil {
		return err
	}
	if err := s.updateConfig(func(cfg *config.Config) error { return cfg.SetHotkey(accel) }); err != nil {
		return err
	}
	if s.hotkey != nil {
		return s.hotkey.SetAccelerator(accel)
	}
	return nil
}

// GetDelivery returns the delivery settings.
func (s *Service) GetDelivery() config.DeliveryConfig {
	var out config.DeliveryConfig
	_ = s.readConfig(func(cfg *config.Config) error {
		out = cfg.Delivery
		return nil
	})
	return out
}

// SetDelivery replaces the delivery settings.
func (s *Service) SetDelivery(d config.DeliveryConfig) error {
	return s.updateConfig(func(cfg *config.Config) error { return cfg.SetDelivery(d) })
}

// GetStyles returns the custom per-application style rules.
func (s *Service) GetStyles() []style.Rule {
	var out []style.Rule
	_ = s.readConfig(func(cfg *config.Config) error {
		out = append(out, cfg.Styles...)
		return nil
	})
	return out
}

// SetStyles replaces the custom style rules.
func (s *Service) SetStyles(rules []style.Rule) error {
	return s.updateConfig(func(cfg *config.Config) error {
		if err := cfg.SetStyles(rules); err != nil {
			return err
		}
		s.selector = style.NewSelector(cfg.Styles)
		return nil
	})
}
