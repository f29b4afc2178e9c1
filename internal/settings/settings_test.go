package settings

import (
	"encoding/json"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ConfigVersion != CurrentVersion {
		t.Errorf("ConfigVersion = %q, want %q", cfg.ConfigVersion, CurrentVersion)
	}
	if cfg.Profile.Profile != "claude-code" || cfg.Profile.Variant != nil {
		t.Errorf("default selector = %+v, want bare claude-code", cfg.Profile)
	}
}

func TestFromRawCurrentVersionPassesThrough(t *testing.T) {
	raw := []byte(`{
		"config_version": "v2",
		"theme": "dark",
		"profile": {"profile": "codex", "variant": null},
		"onboarding_acknowledged": true
	}`)
	cfg := FromRaw(raw)
	if cfg.Theme != "dark" {
		t.Errorf("theme = %q, want dark", cfg.Theme)
	}
	if cfg.Profile.Profile != "codex" {
		t.Errorf("profile = %+v, want codex", cfg.Profile)
	}
}

func TestMigrationRemapsLegacyProfileNames(t *testing.T) {
	tests := []struct {
		legacy      string
		wantProfile string
		wantVariant string // "" means no variant
	}{
		{"claude-code", "claude-code", ""},
		{"claude-code-plan", "claude-code", "plan"},
		{"claude-code-router", "claude-code", "router"},
		{"amp", "amp", ""},
		{"codex", "codex", ""},
		{"qwen-code", "qwen-code", ""},
	}

	for _, tt := range tests {
		t.Run(tt.legacy, func(t *testing.T) {
			raw := []byte(`{
				"config_version": "v1",
				"profile": "` + tt.legacy + `",
				"onboarding_acknowledged": true
			}`)
			cfg := FromRaw(raw)

			if cfg.ConfigVersion != CurrentVersion {
				t.Errorf("ConfigVersion = %q, want %q", cfg.ConfigVersion, CurrentVersion)
			}
			if cfg.Profile.Profile != tt.wantProfile {
				t.Errorf("profile = %q, want %q", cfg.Profile.Profile, tt.wantProfile)
			}
			if tt.wantVariant == "" {
				if cfg.Profile.Variant != nil {
					t.Errorf("variant = %q, want none", *cfg.Profile.Variant)
				}
			} else if cfg.Profile.Variant == nil || *cfg.Profile.Variant != tt.wantVariant {
				t.Errorf("variant = %v, want %q", cfg.Profile.Variant, tt.wantVariant)
			}
			if !cfg.OnboardingAcknowledged {
				t.Error("onboarding acknowledgement should be preserved for known profiles")
			}
		})
	}
}

func TestMigrationUnknownProfileResetsOnboarding(t *testing.T) {
	raw := []byte(`{
		"config_version": "v1",
		"profile": "unknown-tool",
		"onboarding_acknowledged": true
	}`)
	cfg := FromRaw(raw)

	if cfg.Profile.Profile != "claude-code" || cfg.Profile.Variant != nil {
		t.Errorf("profile = %+v, want default claude-code", cfg.Profile)
	}
	if cfg.OnboardingAcknowledged {
		t.Error("onboarding must be reset when the legacy profile is unrecognized")
	}
}

func TestMigrationPreservesUnrelatedFields(t *testing.T) {
	raw := []byte(`{
		"config_version": "v1",
		"theme": "dark",
		"profile": "amp",
		"disclaimer_acknowledged": true,
		"telemetry_acknowledged": true,
		"workspace_dir": "/repos"
	}`)
	cfg := FromRaw(raw)

	if cfg.Theme != "dark" || !cfg.DisclaimerAcknowledged || !cfg.TelemetryAcknowledged {
		t.Errorf("migrated config lost fields: %+v", cfg)
	}
	if cfg.WorkspaceDir == nil || *cfg.WorkspaceDir != "/repos" {
		t.Errorf("workspace_dir = %v, want /repos", cfg.WorkspaceDir)
	}
}

func TestFromRawGarbageYieldsDefaults(t *testing.T) {
	for _, raw := range []string{"", "{not json", `"just a string"`} {
		cfg := FromRaw([]byte(raw))
		if cfg.ConfigVersion != CurrentVersion {
			t.Errorf("FromRaw(%q): version = %q", raw, cfg.ConfigVersion)
		}
		if cfg.Profile.Profile != "claude-code" {
			t.Errorf("FromRaw(%q): profile = %+v", raw, cfg.Profile)
		}
	}
}

func TestConfigJSONShape(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["config_version"] != CurrentVersion {
		t.Errorf("serialized config_version = %v", m["config_version"])
	}
	if _, ok := m["profile"].(map[string]any); !ok {
		t.Errorf("serialized profile is not an object: %v", m["profile"])
	}
}
