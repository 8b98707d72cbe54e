package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/cjrutherford/qd-messages/internal/consts"
)

//go:embed config.toml
var defaultConfig []byte

// Directory backends.
const (
	BackendLocal = "local"
	BackendSlack = "slack"
)

// Config holds the application configuration.
type Config struct {
	Mouse             bool `toml:"mouse"`
	AutocompleteLimit int  `toml:"autocomplete_limit"`
	MessagesLimit     int  `toml:"messages_limit"`

	Directory Directory `toml:"directory"`
	Identity  Identity  `toml:"identity"`
	Feedback  Feedback  `toml:"feedback"`
	Mentions  Mentions  `toml:"mentions"`
	Invites   Invites   `toml:"invites"`

	Keybinds Keybinds `toml:"keybinds"`
	Theme    Theme    `toml:"theme"`
}

// Directory selects and locates the Directory Service backend.
type Directory struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Seed    string `toml:"seed"`
}

// Identity names the local user.
type Identity struct {
	Name string `toml:"name"`
}

// Feedback controls lifecycle progress notices.
type Feedback struct {
	MinDuration Duration `toml:"min_duration"`
}

// Mentions controls the mention candidate cache.
type Mentions struct {
	RefreshInterval Duration `toml:"refresh_interval"`
}

// Invites holds the defaults of the invite form.
type Invites struct {
	DefaultMaxUses         int  `toml:"default_max_uses"`
	IncludeFolderStructure bool `toml:"include_folder_structure"`
}

// Duration is a time.Duration written as a string ("1s", "2m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultPath returns the default config file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, consts.Name, "config.toml")
}

// Load reads the config from the given path. If the file does not exist,
// it writes the default config and loads that. Config loading is two-phase:
// embedded defaults are applied first, then the user file overlays on top.
func Load(path string) (*Config, error) {
	// Phase 1: unmarshal embedded defaults.
	cfg := Config{Theme: BuiltinTheme("default")}
	if err := toml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}

	// Write default config if file does not exist.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, defaultConfig, 0o600); err != nil {
			return nil, err
		}
	}

	// The preset is resolved before the overlay so that individual styles
	// in the user file override the preset's.
	var preset struct {
		Theme struct {
			Preset string `toml:"preset"`
		} `toml:"theme"`
	}
	if _, err := toml.DecodeFile(path, &preset); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if preset.Theme.Preset != "" {
		cfg.Theme = BuiltinTheme(preset.Theme.Preset)
	}

	// Phase 2: overlay user file on top of defaults.
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// applyDefaults resolves computed defaults that can't be expressed in TOML.
func applyDefaults(cfg *Config) {
	if cfg.Directory.Backend == "" {
		cfg.Directory.Backend = BackendLocal
	}
	if cfg.Directory.Path == "" {
		cfg.Directory.Path = filepath.Join(consts.CacheDir, "directory.db")
	}
	if cfg.Identity.Name == "" {
		if env := os.Getenv("USER"); env != "" {
			cfg.Identity.Name = env
		} else {
			cfg.Identity.Name = "me"
		}
	}
	if cfg.Mentions.RefreshInterval <= 0 {
		cfg.Mentions.RefreshInterval = Duration(120 * time.Second)
	}
}

// Validate checks that config values are within acceptable ranges.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutocompleteLimit, validation.Min(0)),
		validation.Field(&c.MessagesLimit, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&c.Directory),
		validation.Field(&c.Feedback),
		validation.Field(&c.Mentions),
		validation.Field(&c.Invites),
	)
}

// Validate implements validation.Validatable.
func (d Directory) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Backend, validation.Required, validation.In(BackendLocal, BackendSlack)),
		validation.Field(&d.Path, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (f Feedback) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.MinDuration, validation.Min(Duration(0)), validation.Max(Duration(10*time.Second))),
	)
}

// Validate implements validation.Validatable.
func (m Mentions) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.RefreshInterval, validation.Max(Duration(120*time.Second))),
	)
}

// Validate implements validation.Validatable.
func (i Invites) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.DefaultMaxUses, validation.Required, validation.Min(1)),
	)
}
