package command

import "strings"

// Builder assembles the shell command for launching a coding agent.
// Base is the executable invocation (e.g. "npx -y @anthropic-ai/claude-code@latest")
// and Params are appended verbatim. No quoting or escaping is performed; the
// rendered string is handed as-is to a shell-invoking process launcher.
// Validation of the content belongs to profile authoring, not rendering.
type Builder struct {
	Base   string   `json:"base"`
	Params []string `json:"params,omitempty"`
}

// New creates a Builder with the given base command.
func New(base string) Builder {
	return Builder{Base: base}
}

// WithParams returns a copy of the builder with the given params.
func (b Builder) WithParams(params ...string) Builder {
	b.Params = params
	return b
}

// BuildInitial renders the command for an initial invocation: base followed
// by params, joined with single spaces.
func (b Builder) BuildInitial() string {
	parts := append([]string{b.Base}, b.Params...)
	return strings.Join(parts, " ")
}

// BuildFollowUp renders the command for a follow-up invocation with extra
// args appended after params.
func (b Builder) BuildFollowUp(extraArgs []string) string {
	parts := append([]string{b.Base}, b.Params...)
	parts = append(parts, extraArgs...)
	return strings.Join(parts, " ")
}
