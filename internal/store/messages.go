package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// Message is a stored chat message.
type Message struct {
	ID        string
	Channel   string
	Author    string
	Body      string
	Files     []directory.Attachment
	CreatedAt time.Time
}

// MentionCandidates returns the members of channel other than the local
// user.
func (s *Store) MentionCandidates(ctx context.Context, channel string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM members WHERE channel = ? AND name <> ? ORDER BY name`, channel, s.identity)
	if err != nil {
		return nil, fmt.Errorf("querying members of %s: %w", channel, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddMember adds name to channel.
func (s *Store) AddMember(ctx context.Context, channel, name string) error {
	if _, err := s.owner(ctx, channel); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO members (channel, name) VALUES (?, ?)`, channel, name,
	); err != nil {
		return fmt.Errorf("adding member %s to %s: %w", name, channel, err)
	}
	return nil
}

// PostMessage stores a message from the local user. Attachments are
// recorded by reference.
func (s *Store) PostMessage(ctx context.Context, channel, text string, files []directory.Attachment) error {
	member, err := s.isMember(ctx, channel, s.identity)
	if err != nil {
		return err
	}
	if !member {
		return &directory.NotFoundError{Resource: "channel", ID: channel}
	}

	var encoded []byte
	if len(files) > 0 {
		if encoded, err = json.Marshal(files); err != nil {
			return fmt.Errorf("encoding attachments: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel, author, body, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), channel, s.identity, text, string(encoded), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("storing message in %s: %w", channel, err)
	}
	s.kick()
	return nil
}

// Messages returns the latest limit messages of channel, oldest first. A
// non-positive limit returns all of them.
func (s *Store) Messages(ctx context.Context, channel string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, body, files, created_at FROM (
			SELECT id, author, body, files, created_at, rowid AS seq FROM messages
			WHERE channel = ? ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at, seq`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages of %s: %w", channel, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m := Message{Channel: channel}
		var files string
		var created int64
		if err := rows.Scan(&m.ID, &m.Author, &m.Body, &files, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if files != "" {
			if err := json.Unmarshal([]byte(files), &m.Files); err != nil {
				return nil, fmt.Errorf("decoding attachments of %s: %w", m.ID, err)
			}
		}
		m.CreatedAt = time.Unix(0, created)
		out = append(out, m)
	}
	return out, rows.Err()
}
