// Package types provides shared type definitions for the application.
package types

// APICredential holds an API key for a remote service.
type APICredential struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // "openai", "openai-compatible", "gemini", "claude"
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
}

// FormattingProfile selects the model and prompt used to restyle transcripts.
type FormattingProfile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CredentialID    string  `json:"credential_id"`
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	Active          bool    `json:"active"`
	DisableThinking bool    `json:"disable_thinking,omitempty"` // For Gemini: set thinkingBudget to 0
}

// SpeechConfig configures the speech-to-text service.
type SpeechConfig struct {
	CredentialID string `json:"credential_id"`
	Model        string `json:"model"`
	Language     string `json:"language,omitempty"` // empty means auto-detect
	Prompt       string `json:"prompt,omitempty"`
}

// DefaultMaxTokens is the default max tokens if not specified.
const DefaultMaxTokens = 1000

// DefaultTemperature is the default temperature if not specified.
const DefaultTemperature = 0.3

// DefaultSpeechModel is the transcription model used when none is configured.
const DefaultSpeechModel = "whisper-1"

// Usage represents token usage statistics from LLM API calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ForegroundApp describes the application focused when a recording began.
type ForegroundApp struct {
	PID   int    `json:"pid"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Result is the outcome of one dictation session.
type Result struct {
	SessionID string        `json:"sessionId"`
	Raw       string        `json:"raw"`
	Text      string        `json:"text"`      // Delivered text; equals Raw when formatting fell back
	Formatted bool          `json:"formatted"` // false when the formatting service failed
	Style     string        `json:"style"`
	Language  string        `json:"language,omitempty"`
	App       ForegroundApp `json:"app"`
	Copied    bool          `json:"copied"`
	Pasted    bool          `json:"pasted"`
	Duration  int64         `json:"duration"` // Recording length in milliseconds
}

// HistoryEntry is a delivered result kept for re-copying from the panel.
type HistoryEntry struct {
	ID        string `json:"id"`
	Result    Result `json:"result"`
	CreatedAt int64  `json:"createdAt"` // Unix timestamp in milliseconds
}

// SessionStatus reports the controller state to the UI.
type SessionStatus struct {
	State     string `json:"state"`
	Active    bool   `json:"active"`
	SessionID string `json:"sessionId,omitempty"`
	StartedAt int64  `json:"startedAt,omitempty"` // Unix timestamp in milliseconds
	App       string `json:"app,omitempty"`
}

// SessionError is emitted to the UI when a session step fails.
type SessionError struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"` // true when the session was aborted
}
