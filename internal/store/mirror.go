package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// MirroredChannel is a channel whose truth lives in another system.
type MirroredChannel struct {
	Name  string
	Owner string
}

// ReserveChannel reserves name exactly as given, for channels whose
// canonical name was assigned elsewhere. The channel may already have
// been mirrored; Commit then only updates its owner and placement.
func (s *Store) ReserveChannel(ctx context.Context, name string, target directory.FolderPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFolderLocked(ctx, target); err != nil {
		return err
	}
	if s.pending.channel(name) != nil {
		return &directory.CreationError{Name: name, Message: "channel already pending"}
	}
	s.pending.channels = append(s.pending.channels, &pendingChannel{
		name:     name,
		folder:   slices.Clone(target),
		mirrored: true,
	})
	return nil
}

// MirrorChannels makes the local user's memberships match channels.
// Missing channels are added at the root, channels no longer listed are
// removed with their invites. Folder placement of kept channels is
// preserved. It reports whether anything changed.
func (s *Store) MirrorChannels(ctx context.Context, channels []MirroredChannel) (bool, error) {
	current, err := s.ChannelNames(ctx)
	if err != nil {
		return false, err
	}

	wanted := make(map[string]bool, len(channels))
	for _, ch := range channels {
		wanted[ch.Name] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning mirror: %w", err)
	}
	defer tx.Rollback()

	changed := false
	now := time.Now().Unix()
	for _, ch := range channels {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO channels (name, owner, challenge, created_at) VALUES (?, ?, 0, ?)
			ON CONFLICT (name) DO UPDATE SET owner = excluded.owner WHERE owner <> excluded.owner`,
			ch.Name, ch.Owner, now)
		if err != nil {
			return false, fmt.Errorf("mirroring channel %s: %w", ch.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed = true
		}
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO members (channel, name) VALUES (?, ?)`, ch.Name, s.identity)
		if err != nil {
			return false, fmt.Errorf("mirroring membership of %s: %w", ch.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed = true
		}
	}

	for _, name := range current {
		if wanted[name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, name); err != nil {
			return false, fmt.Errorf("dropping channel %s: %w", name, err)
		}
		changed = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing mirror: %w", err)
	}
	if changed {
		slog.Debug("channels mirrored", "count", len(channels))
		s.kick()
	}
	return changed, nil
}
