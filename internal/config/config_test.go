package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultPath(t *testing.T) {
	p := DefaultPath()
	if p == "" {
		t.Fatal("DefaultPath returned empty string")
	}
	if filepath.Base(p) != "config.toml" {
		t.Errorf("DefaultPath should end with config.toml, got %s", p)
	}
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// File should have been created.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}

	if !cfg.Mouse {
		t.Error("expected mouse=true from defaults")
	}
	if cfg.Directory.Backend != BackendLocal {
		t.Errorf("expected directory.backend=local, got %s", cfg.Directory.Backend)
	}
	if cfg.Feedback.MinDuration.Std() != time.Second {
		t.Errorf("expected feedback.min_duration=1s, got %v", cfg.Feedback.MinDuration.Std())
	}
	if cfg.Mentions.RefreshInterval.Std() != 120*time.Second {
		t.Errorf("expected mentions.refresh_interval=120s, got %v", cfg.Mentions.RefreshInterval.Std())
	}
	if cfg.Invites.DefaultMaxUses != 5 {
		t.Errorf("expected invites.default_max_uses=5, got %d", cfg.Invites.DefaultMaxUses)
	}
	if cfg.Keybinds.Quit != "Ctrl+C" {
		t.Errorf("expected keybinds.quit=Ctrl+C, got %s", cfg.Keybinds.Quit)
	}
}

func TestLoadPartialOverridePreservesDefaults(t *testing.T) {
	path := writeConfig(t, `
[invites]
default_max_uses = 2

[feedback]
min_duration = "250ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Invites.DefaultMaxUses != 2 {
		t.Errorf("expected default_max_uses=2, got %d", cfg.Invites.DefaultMaxUses)
	}
	if cfg.Feedback.MinDuration.Std() != 250*time.Millisecond {
		t.Errorf("expected min_duration=250ms, got %v", cfg.Feedback.MinDuration.Std())
	}

	// Defaults should be preserved.
	if !cfg.Mouse {
		t.Error("expected mouse=true from defaults (not overridden)")
	}
	if cfg.Keybinds.ChannelsTree.Up != "Rune[k]" {
		t.Errorf("expected keybinds.channels_tree.up=Rune[k], got %s", cfg.Keybinds.ChannelsTree.Up)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("USER", "tester")
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identity.Name != "tester" {
		t.Errorf("expected identity from $USER, got %q", cfg.Identity.Name)
	}
	if filepath.Base(cfg.Directory.Path) != "directory.db" {
		t.Errorf("expected default directory path, got %q", cfg.Directory.Path)
	}

	t.Setenv("USER", "")
	cfg, err = Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identity.Name != "me" {
		t.Errorf("expected identity fallback me, got %q", cfg.Identity.Name)
	}
}

func TestValidationRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"messages_limit too low", "messages_limit = 0\n"},
		{"messages_limit too high", "messages_limit = 900\n"},
		{"autocomplete_limit negative", "autocomplete_limit = -1\n"},
		{"unknown backend", "[directory]\nbackend = \"ftp\"\n"},
		{"zero max uses", "[invites]\ndefault_max_uses = 0\n"},
		{"negative feedback", "[feedback]\nmin_duration = \"-1s\"\n"},
		{"slow mention refresh", "[mentions]\nrefresh_interval = \"10m\"\n"},
		{"bad duration", "[feedback]\nmin_duration = \"soon\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.config)); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestInvalidTOMLErrors(t *testing.T) {
	if _, err := Load(writeConfig(t, "not valid [[ toml")); err == nil {
		t.Error("expected error for invalid TOML, got nil")
	}
}

func TestEmbeddedConfigIsValidTOML(t *testing.T) {
	var cfg Config
	if err := toml.Unmarshal(defaultConfig, &cfg); err != nil {
		t.Fatalf("embedded config.toml is not valid TOML: %v", err)
	}
}

func TestPresetLoading(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[theme]\npreset = \"monokai\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	monokai := BuiltinTheme("monokai")
	if cfg.Theme.MessagesList.Author.Tag() != monokai.MessagesList.Author.Tag() {
		t.Errorf("expected monokai author tag %q, got %q",
			monokai.MessagesList.Author.Tag(), cfg.Theme.MessagesList.Author.Tag())
	}
}

func TestPresetWithOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[theme]
preset = "monokai"

[theme.messages_list.author]
foreground = "red"
attributes = "bold"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Theme.MessagesList.Author.Tag() != "[red:-:b]" {
		t.Errorf("expected overridden author tag [red:-:b], got %q",
			cfg.Theme.MessagesList.Author.Tag())
	}

	monokai := BuiltinTheme("monokai")
	if cfg.Theme.ChannelsTree.Folder.Tag() != monokai.ChannelsTree.Folder.Tag() {
		t.Errorf("non-overridden field should keep monokai value, got %q vs %q",
			cfg.Theme.ChannelsTree.Folder.Tag(), monokai.ChannelsTree.Folder.Tag())
	}
}
