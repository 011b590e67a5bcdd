package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// TestLoadOverlayCanDisableABoolDefaultedTrue covers the case a plain bool
// overlay can't express: a config file turning an already-true default off.
func TestLoadOverlayCanDisableABoolDefaultedTrue(t *testing.T) {
	c := &Config{ElideDeadCode: true}
	path := writeConfigFile(t, `{"elideDeadCode": false}`)
	if err := c.LoadOverlay(path); err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if c.ElideDeadCode {
		t.Error("ElideDeadCode = true, want false after overlay explicitly disables it")
	}
}

func TestLoadOverlayLeavesBoolUntouchedWhenAbsent(t *testing.T) {
	c := &Config{ElideDeadCode: true, EmitAssertions: false}
	path := writeConfigFile(t, `{"inputRoot": "/in"}`)
	if err := c.LoadOverlay(path); err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if !c.ElideDeadCode {
		t.Error("ElideDeadCode = false, want true preserved when absent from overlay")
	}
	if c.EmitAssertions {
		t.Error("EmitAssertions = true, want false preserved when absent from overlay")
	}
}

func TestLoadOverlayCanEnableABoolDefaultedFalse(t *testing.T) {
	c := &Config{EmitAssertions: false}
	path := writeConfigFile(t, `{"emitAssertions": true}`)
	if err := c.LoadOverlay(path); err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if !c.EmitAssertions {
		t.Error("EmitAssertions = false, want true after overlay enables it")
	}
}

func TestValidateRequiresInputOutputAndEntry(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}
	c = &Config{InputRoot: "/in", OutputRoot: "/out", EntryClasses: []string{"Main"}}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
