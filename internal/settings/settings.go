// Package settings manages the persisted, versioned application settings
// document. Each version is a distinct schema; a freshly parsed document
// whose stamped version is stale is migrated forward before use, and any
// parse failure degrades to the current-version defaults rather than
// surfacing an error.
package settings

import (
	"encoding/json"
	"log"

	"github.com/mlicam/vibe-kanban/internal/profile"
)

// CurrentVersion is the schema version this build reads and writes.
const CurrentVersion = "v2"

// NotificationConfig controls completion notifications.
type NotificationConfig struct {
	SoundEnabled bool `json:"sound_enabled"`
	PushEnabled  bool `json:"push_enabled"`
}

// Config is the current settings schema.
type Config struct {
	ConfigVersion          string             `json:"config_version"`
	Theme                  string             `json:"theme"`
	Profile                profile.Selector   `json:"profile"`
	DisclaimerAcknowledged bool               `json:"disclaimer_acknowledged"`
	OnboardingAcknowledged bool               `json:"onboarding_acknowledged"`
	TelemetryAcknowledged  bool               `json:"telemetry_acknowledged"`
	Notifications          NotificationConfig `json:"notifications"`
	Editor                 EditorConfig       `json:"editor"`
	AnalyticsEnabled       *bool              `json:"analytics_enabled"`
	WorkspaceDir           *string            `json:"workspace_dir"`
}

// Default returns the current-version default settings.
func Default() *Config {
	return &Config{
		ConfigVersion: CurrentVersion,
		Theme:         "system",
		Profile:       profile.NewSelector("claude-code"),
		Notifications: NotificationConfig{SoundEnabled: true},
		Editor:        EditorConfig{EditorType: EditorVSCode},
	}
}

// v1Config is the previous schema, which stored the selected profile as a
// single name string.
type v1Config struct {
	ConfigVersion          string             `json:"config_version"`
	Theme                  string             `json:"theme"`
	Profile                string             `json:"profile"`
	DisclaimerAcknowledged bool               `json:"disclaimer_acknowledged"`
	OnboardingAcknowledged bool               `json:"onboarding_acknowledged"`
	TelemetryAcknowledged  bool               `json:"telemetry_acknowledged"`
	Notifications          NotificationConfig `json:"notifications"`
	Editor                 EditorConfig       `json:"editor"`
	AnalyticsEnabled       *bool              `json:"analytics_enabled"`
	WorkspaceDir           *string            `json:"workspace_dir"`
}

// legacyProfileNames maps v1 profile-name strings to current selectors.
var legacyProfileNames = map[string]profile.Selector{
	"claude-code":        profile.NewSelector("claude-code"),
	"claude-code-plan":   profile.NewSelectorWithVariant("claude-code", "plan"),
	"claude-code-router": profile.NewSelectorWithVariant("claude-code", "router"),
	"amp":                profile.NewSelector("amp"),
	"gemini":             profile.NewSelector("gemini"),
	"codex":              profile.NewSelector("codex"),
	"opencode":           profile.NewSelector("opencode"),
	"qwen-code":          profile.NewSelector("qwen-code"),
}

// migrateFromV1 remaps a v1 document to the current schema. An unrecognized
// legacy profile name falls back to the default profile and resets the
// onboarding acknowledgement, since the user's prior agreement no longer
// matches a valid selection.
func migrateFromV1(raw []byte) (*Config, error) {
	var old v1Config
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, err
	}

	onboarding := old.OnboardingAcknowledged
	selector, ok := legacyProfileNames[old.Profile]
	if !ok {
		onboarding = false
		selector = profile.NewSelector("claude-code")
	}

	return &Config{
		ConfigVersion:          CurrentVersion,
		Theme:                  old.Theme,
		Profile:                selector,
		DisclaimerAcknowledged: old.DisclaimerAcknowledged,
		OnboardingAcknowledged: onboarding,
		TelemetryAcknowledged:  old.TelemetryAcknowledged,
		Notifications:          old.Notifications,
		Editor:                 old.Editor,
		AnalyticsEnabled:       old.AnalyticsEnabled,
		WorkspaceDir:           old.WorkspaceDir,
	}, nil
}

// FromRaw parses a persisted settings document, migrating stale versions
// forward. It never fails: unparseable input yields the default document.
func FromRaw(raw []byte) *Config {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err == nil && cfg.ConfigVersion == CurrentVersion {
		return &cfg
	}

	migrated, err := migrateFromV1(raw)
	if err != nil {
		log.Printf("Warning: config migration failed: %v, using defaults", err)
		return Default()
	}
	log.Printf("Config upgraded to %s", CurrentVersion)
	return migrated
}
