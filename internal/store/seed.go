package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// Layout is the YAML seed format:
//
//	channels:
//	  - name: general
//	    members: [alice, bob]
//	folders:
//	  - name: Work
//	    channels:
//	      - name: standup
//	        challenge: true
//	    folders: []
type Layout struct {
	Channels []SeedChannel `yaml:"channels"`
	Folders  []SeedFolder  `yaml:"folders"`
}

// SeedFolder is a folder of a seed Layout.
type SeedFolder struct {
	Name     string        `yaml:"name"`
	Channels []SeedChannel `yaml:"channels"`
	Folders  []SeedFolder  `yaml:"folders"`
}

// SeedChannel is a channel of a seed Layout.
type SeedChannel struct {
	Name      string   `yaml:"name"`
	Members   []string `yaml:"members"`
	Challenge bool     `yaml:"challenge"`
}

// SeedFile loads the layout at path. See Seed.
func (s *Store) SeedFile(ctx context.Context, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed loads a YAML Layout into an empty store and commits it. A store
// that already holds folders or channels is left alone and Seed reports
// false.
func (s *Store) Seed(ctx context.Context, r io.Reader) (bool, error) {
	var layout Layout
	if err := yaml.NewDecoder(r).Decode(&layout); err != nil && err != io.EOF {
		return false, fmt.Errorf("decoding seed layout: %w", err)
	}

	empty, err := s.isEmpty(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		slog.Debug("store not empty, seed skipped")
		return false, nil
	}

	if err := s.seedLevel(ctx, directory.FolderPath{}, layout.Channels, layout.Folders); err != nil {
		_ = s.Rollback(ctx)
		return false, err
	}
	if err := s.Commit(ctx); err != nil {
		_ = s.Rollback(ctx)
		return false, err
	}
	slog.Info("store seeded", "channels", len(layout.Channels), "folders", len(layout.Folders))
	return true, nil
}

func (s *Store) seedLevel(ctx context.Context, at directory.FolderPath, channels []SeedChannel, folders []SeedFolder) error {
	for _, f := range folders {
		if err := s.CreateFolder(ctx, f.Name, at); err != nil {
			return err
		}
		if err := s.seedLevel(ctx, at.Child(f.Name), f.Channels, f.Folders); err != nil {
			return err
		}
	}
	for _, c := range channels {
		name, err := s.CreateChannel(ctx, c.Name, at)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if ch := s.pending.channel(name); ch != nil {
			ch.members = c.Members
			ch.challenge = c.Challenge
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) isEmpty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM folders) + (SELECT COUNT(*) FROM channels)`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking store contents: %w", err)
	}
	return n == 0, nil
}
