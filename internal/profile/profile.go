package profile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/mlicam/vibe-kanban/internal/executor"
	"github.com/mlicam/vibe-kanban/internal/paths"
)

var (
	// ErrUnknownProfile is returned when a selector names a profile label
	// with no matching entry.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrUnknownVariant is returned when a selector names a variant the
	// profile does not have.
	ErrUnknownVariant = errors.New("unknown mode")
)

// Default profiles embedded at compile time. Malformed embedded defaults are
// an unrecoverable build-class error.
//
//go:embed default_profiles.json
var defaultProfilesJSON []byte

var (
	cacheOnce sync.Once
	cached    *Collection
)

// Variant is an alternate configuration of the same profile (e.g. a
// different run mode of the same underlying tool).
type Variant struct {
	Label string               `json:"label"`
	Agent executor.AgentConfig `json:"agent"`
	// MCPConfigPath overrides the agent kind's default config file location
	// (absolute; supports leading ~).
	MCPConfigPath *string `json:"mcp_config_path,omitempty"`
}

// Profile binds a user-visible label to a concrete agent configuration and
// optional variants.
type Profile struct {
	Label         string               `json:"label"`
	Agent         executor.AgentConfig `json:"agent"`
	MCPConfigPath *string              `json:"mcp_config_path,omitempty"`
	Variants      []Variant            `json:"variants,omitempty"`
}

// Selector is the persisted user choice of profile and optional variant.
type Selector struct {
	Profile string  `json:"profile"`
	Variant *string `json:"variant"`
}

// NewSelector returns a selector for a profile without a variant.
func NewSelector(profile string) Selector {
	return Selector{Profile: profile}
}

// NewSelectorWithVariant returns a selector for a profile variant.
func NewSelectorWithVariant(profile, variant string) Selector {
	return Selector{Profile: profile, Variant: &variant}
}

// Collection is an ordered set of profiles with unique labels.
type Collection struct {
	Profiles []Profile `json:"profiles"`
}

// Defaults returns the compiled-in default profiles. Panics if the embedded
// document is invalid; the process cannot start correctly without it.
func Defaults() *Collection {
	var c Collection
	if err := json.Unmarshal(defaultProfilesJSON, &c); err != nil {
		log.Printf("Failed to parse embedded default_profiles.json: %v", err)
		panic("default profiles JSON is invalid")
	}
	return &c
}

// Load reads the user-editable profiles file, falling back to the compiled-in
// defaults on any read or parse failure. It never returns an error; a
// malformed user file must not abort startup.
func Load() *Collection {
	path := paths.ProfilesPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: failed to read %s: %v, using defaults", path, err)
		}
		return Defaults()
	}

	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		log.Printf("Warning: failed to parse %s: %v, using defaults", path, err)
		return Defaults()
	}
	return &c
}

// Cached returns the process-wide profile collection, loading it on first
// access. The collection is immutable for the process lifetime; picking up
// profile edits requires a restart.
func Cached() *Collection {
	cacheOnce.Do(func() {
		cached = Load()
	})
	return cached
}

// Get returns the profile with the given label, or nil.
func (c *Collection) Get(label string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Label == label {
			return &c.Profiles[i]
		}
	}
	return nil
}

// Variant returns the named variant of the profile, or nil.
func (p *Profile) Variant(label string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Label == label {
			return &p.Variants[i]
		}
	}
	return nil
}

// MergeUser overlays user profiles onto c: a user profile whose label
// matches an existing one replaces it wholesale (no field-level merge);
// otherwise it is appended. Partial edits of a default profile must carry
// all its fields.
func (c *Collection) MergeUser(user *Collection) {
	if user == nil {
		return
	}
	for _, up := range user.Profiles {
		replaced := false
		for i := range c.Profiles {
			if c.Profiles[i].Label == up.Label {
				c.Profiles[i] = up
				replaced = true
				break
			}
		}
		if !replaced {
			c.Profiles = append(c.Profiles, up)
		}
	}
}

// MergedWithUserFile returns the defaults overlaid with the user profiles
// file, if present and parseable.
func MergedWithUserFile() *Collection {
	merged := Defaults()

	data, err := os.ReadFile(paths.ProfilesPath())
	if err != nil {
		return merged
	}
	var user Collection
	if err := json.Unmarshal(data, &user); err != nil {
		log.Printf("Warning: failed to parse %s: %v", paths.ProfilesPath(), err)
		return merged
	}
	merged.MergeUser(&user)
	return merged
}

// SaveUser writes c to the user-editable profiles file, creating the data
// dir if needed.
func SaveUser(c *Collection) error {
	path := paths.ProfilesPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// ResolveMCPPath resolves the MCP config file for the profile: the override
// path if set, else the agent kind's default location.
func (p *Profile) ResolveMCPPath() (string, error) {
	return resolveMCPConfigPath(p.MCPConfigPath, p.Agent.Kind)
}

// ResolveMCPPath resolves the MCP config file for the variant.
func (v *Variant) ResolveMCPPath() (string, error) {
	return resolveMCPConfigPath(v.MCPConfigPath, v.Agent.Kind)
}

func resolveMCPConfigPath(override *string, kind executor.Kind) (string, error) {
	if override != nil && *override != "" {
		return paths.ExpandTilde(*override), nil
	}
	return kind.DefaultConfigPath()
}

// ResolveAgent resolves a selector to the concrete agent configuration.
// A variant, when selected, fully overrides the profile's base agent.
func (c *Collection) ResolveAgent(sel Selector) (executor.AgentConfig, error) {
	p := c.Get(sel.Profile)
	if p == nil {
		return executor.AgentConfig{}, fmt.Errorf("%w: %s", ErrUnknownProfile, sel.Profile)
	}
	if sel.Variant == nil {
		return p.Agent, nil
	}
	v := p.Variant(*sel.Variant)
	if v == nil {
		return executor.AgentConfig{}, fmt.Errorf("%w: %s for profile %s", ErrUnknownVariant, *sel.Variant, sel.Profile)
	}
	return v.Agent, nil
}

// ResolveExecutor resolves a selector to a ready-to-spawn executor using
// the given process spawner.
func (c *Collection) ResolveExecutor(sel Selector, sp executor.Spawner) (executor.Executor, error) {
	cfg, err := c.ResolveAgent(sel)
	if err != nil {
		return nil, err
	}
	return executor.NewWithSpawner(cfg, sp)
}
