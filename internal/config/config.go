// Package config defines the translator's run configuration: the fields
// populated from CLI flags (cmd/jtc) and optionally overlaid from a JSON
// file, exactly as spec.md §6's external interface describes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the full set of knobs a translation run accepts.
type Config struct {
	InputRoot         string   `json:"inputRoot"`
	OutputRoot        string   `json:"outputRoot"`
	EntryClasses      []string `json:"entryClasses"`
	ProvidedByRuntime []string `json:"providedByRuntime"`
	PreserveUnreachable bool   `json:"preserveUnreachable"`
	ABIVersion        string   `json:"abiVersion"`
	ElideDeadCode     bool     `json:"elideDeadCode"`
	EmitAssertions    bool     `json:"emitAssertions"`
	TempDir           string   `json:"tempDir"`
}

// overlay mirrors Config but holds its bool fields as pointers, so
// LoadOverlay can distinguish "absent from the JSON file" (nil) from
// "explicitly set to false" (non-nil, false) — a plain bool overlay can't
// express turning an already-true default off.
type overlay struct {
	InputRoot           string   `json:"inputRoot"`
	OutputRoot          string   `json:"outputRoot"`
	EntryClasses        []string `json:"entryClasses"`
	ProvidedByRuntime   []string `json:"providedByRuntime"`
	PreserveUnreachable *bool    `json:"preserveUnreachable"`
	ABIVersion          string   `json:"abiVersion"`
	ElideDeadCode       *bool    `json:"elideDeadCode"`
	EmitAssertions      *bool    `json:"emitAssertions"`
	TempDir             string   `json:"tempDir"`
}

// LoadOverlay reads a JSON config file and overlays its present fields onto
// c, following the teacher's preference for stdlib-only parsing (no
// retrieval-pack example introduces a config-file library, per DESIGN.md).
func (c *Config) LoadOverlay(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var o overlay
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	c.merge(o)
	return nil
}

func (c *Config) merge(o overlay) {
	if o.InputRoot != "" {
		c.InputRoot = o.InputRoot
	}
	if o.OutputRoot != "" {
		c.OutputRoot = o.OutputRoot
	}
	if len(o.EntryClasses) > 0 {
		c.EntryClasses = o.EntryClasses
	}
	if len(o.ProvidedByRuntime) > 0 {
		c.ProvidedByRuntime = o.ProvidedByRuntime
	}
	if o.ABIVersion != "" {
		c.ABIVersion = o.ABIVersion
	}
	if o.TempDir != "" {
		c.TempDir = o.TempDir
	}
	if o.PreserveUnreachable != nil {
		c.PreserveUnreachable = *o.PreserveUnreachable
	}
	if o.ElideDeadCode != nil {
		c.ElideDeadCode = *o.ElideDeadCode
	}
	if o.EmitAssertions != nil {
		c.EmitAssertions = *o.EmitAssertions
	}
}

// Validate reports the user-error cases spec.md §6 assigns exit code 1:
// a missing input root, a missing output root, or no configured entry class.
func (c *Config) Validate() error {
	if c.InputRoot == "" {
		return fmt.Errorf("input root is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("output root is required")
	}
	if len(c.EntryClasses) == 0 {
		return fmt.Errorf("at least one entry class is required")
	}
	return nil
}
