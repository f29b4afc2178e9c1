// Package mcp reads and mutates the MCP server registry inside a coding
// agent's native config file. The file is treated as an opaque document with
// one owned sub-region; everything else is preserved across a
// read-modify-write cycle.
//
// JSON and TOML configs are both parsed into the same generic tree
// (map[string]any) so a single path-navigation algorithm serves both
// formats; only serialization is format-specific.
package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mlicam/vibe-kanban/internal/executor"
)

// Document is the neutral config tree shared by both file formats.
type Document = map[string]any

// ReadConfig reads an agent config file in the format dictated by kind and
// normalizes it to a Document. A missing file yields an empty document, not
// an error. A non-object top level is coerced to an empty document.
func ReadConfig(path string, kind executor.Kind) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc := Document{}
	switch kind.ConfigFormat() {
	case executor.FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse TOML %s: %w", path, err)
		}
	default:
		var root any
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse JSON %s: %w", path, err)
		}
		if obj, ok := root.(map[string]any); ok {
			doc = obj
		}
	}
	return doc, nil
}

// WriteConfig serializes the document back in the kind's format, creating
// parent directories as needed.
func WriteConfig(path string, kind executor.Kind, doc Document) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	var data []byte
	switch kind.ConfigFormat() {
	case executor.FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		data = buf.Bytes()
	default:
		var err error
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

// Servers navigates the kind's MCP attribute path through the document and
// returns the server registrations found there. Missing intermediate levels
// yield an empty map, never an error.
func Servers(doc Document, kind executor.Kind) map[string]any {
	path := kind.MCPAttributePath()
	if path == nil {
		return map[string]any{}
	}

	var current any
	if kind.UsesFlatKey() {
		// The two path segments are stored as one dot-joined top-level key.
		val, ok := doc[flatKey(path)]
		if !ok {
			return map[string]any{}
		}
		current = val
	} else {
		current = any(doc)
		for _, part := range path {
			obj, ok := current.(map[string]any)
			if !ok {
				return map[string]any{}
			}
			current, ok = obj[part]
			if !ok {
				return map[string]any{}
			}
		}
	}

	servers, ok := current.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(servers))
	for k, v := range servers {
		out[k] = v
	}
	return out
}

// SetServers sets the server registrations at the kind's MCP attribute path,
// creating intermediate objects as needed. A structurally incompatible value
// found mid-path is silently overwritten with an empty object; this mirrors
// the historical behavior and is the documented trade-off for keeping the
// walker simple.
func SetServers(doc Document, kind executor.Kind, servers map[string]any) error {
	path := kind.MCPAttributePath()
	if path == nil {
		return fmt.Errorf("%w: %s", executor.ErrMCPNotSupported, kind)
	}
	if servers == nil {
		servers = map[string]any{}
	}

	if kind.UsesFlatKey() {
		doc[flatKey(path)] = servers
		return nil
	}

	current := doc
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[path[len(path)-1]] = servers
	return nil
}

// InitialConfig produces a fresh document containing only the empty-servers
// shape at the kind's attribute path, so a newly created config file is
// immediately valid for that agent.
func InitialConfig(kind executor.Kind) (Document, error) {
	doc := Document{}
	if err := SetServers(doc, kind, map[string]any{}); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateServers performs the read-modify-write cycle against the config file
// at path and returns a human-readable change summary.
func UpdateServers(path string, kind executor.Kind, servers map[string]any) (string, error) {
	doc, err := ReadConfig(path, kind)
	if err != nil {
		return "", err
	}

	oldCount := len(Servers(doc, kind))

	if err := SetServers(doc, kind, servers); err != nil {
		return "", err
	}
	if err := WriteConfig(path, kind, doc); err != nil {
		return "", err
	}

	return ChangeSummary(oldCount, len(servers)), nil
}

// ChangeSummary classifies an old-count/new-count pair into one of the four
// deterministic summary messages.
func ChangeSummary(oldCount, newCount int) string {
	switch {
	case oldCount == 0 && newCount == 0:
		return "No MCP servers configured"
	case oldCount == 0:
		return fmt.Sprintf("Added %d MCP server(s)", newCount)
	case oldCount == newCount:
		return fmt.Sprintf("Updated MCP server configuration (%d server(s))", newCount)
	default:
		return fmt.Sprintf("Updated MCP server configuration (was %d, now %d)", oldCount, newCount)
	}
}

func flatKey(path []string) string {
	return strings.Join(path, ".")
}
