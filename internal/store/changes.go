package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// MaxNameLength caps canonical channel names.
const MaxNameLength = 80

type pendingChannel struct {
	name      string
	folder    directory.FolderPath
	members   []string
	challenge bool
	// mirrored channels may already exist locally; commit upserts them.
	mirrored bool
}

type pendingJoin struct {
	channel string
	link    string
	folder  directory.FolderPath
}

// changeSet holds structural changes awaiting Commit.
type changeSet struct {
	folders  []directory.FolderPath
	channels []*pendingChannel
	joins    []*pendingJoin
	moves    map[string]directory.FolderPath
}

func (c *changeSet) empty() bool {
	return len(c.folders) == 0 && len(c.channels) == 0 && len(c.joins) == 0 && len(c.moves) == 0
}

func (c *changeSet) hasFolder(path directory.FolderPath) bool {
	key := path.String()
	return slices.ContainsFunc(c.folders, func(p directory.FolderPath) bool { return p.String() == key })
}

func (c *changeSet) channel(name string) *pendingChannel {
	for _, ch := range c.channels {
		if ch.name == name {
			return ch
		}
	}
	return nil
}

func (c *changeSet) join(name string) *pendingJoin {
	for _, j := range c.joins {
		if j.channel == name {
			return j
		}
	}
	return nil
}

// folderPayload is the folder structure carried by an invite.
type folderPayload struct {
	Channel string   `json:"channel"`
	Folders []string `json:"folders"`
}

// Canonicalize derives a channel name: lowercase, whitespace runs become a
// single "-", anything other than letters, digits, "-" and "_" is dropped.
func Canonicalize(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r) || r == '-':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > MaxNameLength {
		out = strings.TrimRight(out[:MaxNameLength], "-")
	}
	return out
}

// CreateChannel reserves a canonical name for name in target. The channel
// exists once Commit succeeds.
func (s *Store) CreateChannel(ctx context.Context, name string, target directory.FolderPath) (string, error) {
	base := Canonicalize(name)
	if base == "" {
		return "", &directory.CreationError{Name: name, Message: "name has no usable characters"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFolderLocked(ctx, target); err != nil {
		return "", err
	}
	canonical, err := s.uniqueNameLocked(ctx, base)
	if err != nil {
		return "", err
	}
	s.pending.channels = append(s.pending.channels, &pendingChannel{
		name:   canonical,
		folder: slices.Clone(target),
	})
	slog.Debug("channel reserved", "requested", name, "canonical", canonical, "folder", target.String())
	return canonical, nil
}

// ImportChannel redeems inviteCode. With includeFolderStructure the
// folders recorded in the invite are recreated below target.
func (s *Store) ImportChannel(ctx context.Context, inviteCode string, target directory.FolderPath, includeFolderStructure bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var channel string
	var maxUses, uses int
	var payload sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT channel, max_uses, uses, folder_payload FROM invites WHERE link = ?`, inviteCode,
	).Scan(&channel, &maxUses, &uses, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &directory.NotFoundError{Resource: "invite", ID: inviteCode}
	}
	if err != nil {
		return "", fmt.Errorf("looking up invite: %w", err)
	}
	if uses >= maxUses {
		return "", &directory.CreationError{Name: channel, Message: "invite has no uses left"}
	}
	if err := s.requireFolderLocked(ctx, target); err != nil {
		return "", err
	}

	placement := slices.Clone(target)
	if includeFolderStructure && payload.Valid && payload.String != "" {
		var p folderPayload
		if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
			return "", fmt.Errorf("decoding invite folder payload: %w", err)
		}
		for _, name := range p.Folders {
			placement = placement.Child(name)
			known, err := s.folderKnownLocked(ctx, placement)
			if err != nil {
				return "", err
			}
			if !known {
				s.pending.folders = append(s.pending.folders, placement)
			}
		}
	}

	s.pending.joins = append(s.pending.joins, &pendingJoin{channel: channel, link: inviteCode, folder: placement})
	slog.Debug("invite redeemed", "channel", channel, "folder", placement.String())
	return channel, nil
}

// AddToFolderList places a reserved, imported or joined channel in target.
func (s *Store) AddToFolderList(ctx context.Context, canonicalName string, target directory.FolderPath) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFolderLocked(ctx, target); err != nil {
		return err
	}
	if ch := s.pending.channel(canonicalName); ch != nil {
		ch.folder = slices.Clone(target)
		return nil
	}
	if j := s.pending.join(canonicalName); j != nil {
		j.folder = slices.Clone(target)
		return nil
	}

	member, err := s.isMember(ctx, canonicalName, s.identity)
	if err != nil {
		return err
	}
	if !member {
		return &directory.NotFoundError{Resource: "channel", ID: canonicalName}
	}
	if s.pending.moves == nil {
		s.pending.moves = make(map[string]directory.FolderPath)
	}
	s.pending.moves[canonicalName] = slices.Clone(target)
	return nil
}

// CreateFolder adds a folder named name under parent.
func (s *Store) CreateFolder(ctx context.Context, name string, parent directory.FolderPath) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return &directory.CreationError{Name: name, Message: "folder name is required"}
	case strings.Contains(name, "/"):
		return &directory.CreationError{Name: name, Message: `folder name must not contain "/"`}
	case directory.IsStructuralName(name):
		return &directory.CreationError{Name: name, Message: "folder name is reserved"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireFolderLocked(ctx, parent); err != nil {
		return err
	}
	path := parent.Child(name)
	known, err := s.folderKnownLocked(ctx, path)
	if err != nil {
		return err
	}
	if known {
		return &directory.CreationError{Name: name, Message: "folder already exists in " + parent.String()}
	}
	s.pending.folders = append(s.pending.folders, path)
	return nil
}

// Commit applies all pending changes in one transaction. On failure the
// pending changes are kept; call Rollback to drop them.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.pending.empty() {
		s.mu.Unlock()
		return nil
	}
	err := s.applyLocked(ctx)
	if err == nil {
		s.pending = changeSet{}
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.kick()
	return nil
}

// Rollback drops all pending changes.
func (s *Store) Rollback(context.Context) error {
	s.mu.Lock()
	s.pending = changeSet{}
	s.mu.Unlock()
	return nil
}

func (s *Store) applyLocked(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	for _, f := range s.pending.folders {
		parent := f[:len(f)-1]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders (path, parent, name, created_at) VALUES (?, ?, ?, ?)`,
			f.String(), parent.String(), f[len(f)-1], now,
		); err != nil {
			return &directory.CreationError{Name: f.String(), Message: "folder insert failed", Err: err}
		}
	}

	for _, ch := range s.pending.channels {
		insertChannel := `INSERT INTO channels (name, owner, challenge, created_at) VALUES (?, ?, ?, ?)`
		insertMember := `INSERT INTO members (channel, name, folder) VALUES (?, ?, ?)`
		if ch.mirrored {
			insertChannel += ` ON CONFLICT (name) DO UPDATE SET owner = excluded.owner`
			insertMember += ` ON CONFLICT (channel, name) DO UPDATE SET folder = excluded.folder`
		}
		if _, err := tx.ExecContext(ctx, insertChannel, ch.name, s.identity, ch.challenge, now); err != nil {
			return &directory.CreationError{Name: ch.name, Message: "channel insert failed", Err: err}
		}
		if _, err := tx.ExecContext(ctx, insertMember, ch.name, s.identity, ch.folder.String()); err != nil {
			return fmt.Errorf("adding owner to %s: %w", ch.name, err)
		}
		for _, m := range ch.members {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO members (channel, name) VALUES (?, ?)`, ch.name, m,
			); err != nil {
				return fmt.Errorf("adding member %s to %s: %w", m, ch.name, err)
			}
		}
	}

	for _, j := range s.pending.joins {
		res, err := tx.ExecContext(ctx,
			`UPDATE invites SET uses = uses + 1 WHERE link = ? AND uses < max_uses`, j.link)
		if err != nil {
			return fmt.Errorf("redeeming invite: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &directory.CreationError{Name: j.channel, Message: "invite has no uses left"}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO members (channel, name, folder) VALUES (?, ?, ?)
			ON CONFLICT (channel, name) DO UPDATE SET folder = excluded.folder`,
			j.channel, s.identity, j.folder.String(),
		); err != nil {
			return fmt.Errorf("joining %s: %w", j.channel, err)
		}
	}

	for name, folder := range s.pending.moves {
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET folder = ? WHERE channel = ? AND name = ?`,
			folder.String(), name, s.identity,
		); err != nil {
			return fmt.Errorf("moving %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}
	slog.Info("directory changes committed",
		"folders", len(s.pending.folders),
		"channels", len(s.pending.channels),
		"joins", len(s.pending.joins),
		"moves", len(s.pending.moves))
	return nil
}

// RemoveChannel deletes channel together with its members, invites and
// messages. Only the owner may remove a channel.
func (s *Store) RemoveChannel(ctx context.Context, channel string) error {
	owner, err := s.owner(ctx, channel)
	if err != nil {
		return err
	}
	if owner != s.identity {
		return &directory.PermissionError{Action: "remove", Channel: channel}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, channel); err != nil {
		return fmt.Errorf("removing channel %s: %w", channel, err)
	}
	slog.Info("channel removed", "channel", channel)
	s.kick()
	return nil
}

func (s *Store) requireFolderLocked(ctx context.Context, path directory.FolderPath) error {
	known, err := s.folderKnownLocked(ctx, path)
	if err != nil {
		return err
	}
	if !known {
		return &directory.NotFoundError{Resource: "folder", ID: path.String()}
	}
	return nil
}

// folderKnownLocked reports whether path exists or is pending.
func (s *Store) folderKnownLocked(ctx context.Context, path directory.FolderPath) (bool, error) {
	if s.pending.hasFolder(path) {
		return true, nil
	}
	return s.folderExists(ctx, s.db, path)
}

func (s *Store) uniqueNameLocked(ctx context.Context, base string) (string, error) {
	for i := 1; ; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		if s.pending.channel(candidate) != nil {
			continue
		}
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM channels WHERE name = ?`, candidate,
		).Scan(&n); err != nil {
			return "", fmt.Errorf("checking channel name: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
	}
}

func (s *Store) owner(ctx context.Context, channel string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM channels WHERE name = ?`, channel).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &directory.NotFoundError{Resource: "channel", ID: channel}
	}
	if err != nil {
		return "", fmt.Errorf("looking up channel %s: %w", channel, err)
	}
	return owner, nil
}

func (s *Store) isMember(ctx context.Context, channel, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE channel = ? AND name = ?`, channel, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking membership in %s: %w", channel, err)
	}
	return n > 0, nil
}
