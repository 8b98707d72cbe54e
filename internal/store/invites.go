package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// IsOwner reports whether the local user owns channel.
func (s *Store) IsOwner(ctx context.Context, channel string) (bool, error) {
	owner, err := s.owner(ctx, channel)
	if err != nil {
		return false, err
	}
	return owner == s.identity, nil
}

// CreateInvite issues an invite link for channel. With
// includeFolderStructure the local user's folder placement of the channel
// travels with the invite.
func (s *Store) CreateInvite(ctx context.Context, channel string, maxUses int, includeFolderStructure bool) (string, error) {
	if maxUses < 1 {
		return "", &directory.ValidationError{Field: "max uses", Message: "must be at least 1"}
	}

	var folder string
	err := s.db.QueryRowContext(ctx,
		`SELECT folder FROM members WHERE channel = ? AND name = ?`, channel, s.identity,
	).Scan(&folder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &directory.NotFoundError{Resource: "channel", ID: channel}
	}
	if err != nil {
		return "", fmt.Errorf("looking up channel %s: %w", channel, err)
	}

	var payload sql.NullString
	if includeFolderStructure {
		b, err := json.Marshal(folderPayload{Channel: channel, Folders: parseFolderPath(folder)})
		if err != nil {
			return "", fmt.Errorf("encoding folder payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	link := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO invites (link, channel, max_uses, uses, folder_payload, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		link, channel, maxUses, payload, time.Now().Unix(),
	); err != nil {
		return "", fmt.Errorf("creating invite for %s: %w", channel, err)
	}
	slog.Info("invite created", "channel", channel, "max_uses", maxUses, "folders", includeFolderStructure)
	return link, nil
}

// InviteCodes lists the invites of channel, oldest first.
func (s *Store) InviteCodes(ctx context.Context, channel string) (directory.InviteList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT link, max_uses, uses, folder_payload IS NOT NULL, created_at
		FROM invites WHERE channel = ?
		ORDER BY created_at, rowid`, channel)
	if err != nil {
		return directory.InviteList{}, fmt.Errorf("querying invites for %s: %w", channel, err)
	}
	defer rows.Close()

	list := directory.InviteList{Items: []directory.InviteCode{}}
	for rows.Next() {
		code := directory.InviteCode{Channel: channel}
		var created int64
		if err := rows.Scan(&code.Link, &code.MaxUses, &code.Uses, &code.IncludesFolderStructure, &created); err != nil {
			return directory.InviteList{}, fmt.Errorf("scanning invite: %w", err)
		}
		code.CreatedAt = time.Unix(created, 0)
		list.Items = append(list.Items, code)
	}
	return list, rows.Err()
}

// RemoveInviteCode revokes link. An unknown link is a NotFoundError.
func (s *Store) RemoveInviteCode(ctx context.Context, channel, link string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invites WHERE channel = ? AND link = ?`, channel, link)
	if err != nil {
		return fmt.Errorf("removing invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &directory.NotFoundError{Resource: "invite", ID: link}
	}
	return nil
}

// ChallengeFlag reports whether joining channel requires a challenge.
func (s *Store) ChallengeFlag(ctx context.Context, channel string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `SELECT challenge FROM channels WHERE name = ?`, channel).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &directory.NotFoundError{Resource: "channel", ID: channel}
	}
	if err != nil {
		return false, fmt.Errorf("reading challenge flag of %s: %w", channel, err)
	}
	return enabled, nil
}

// EnableChallenge turns the challenge flow on for channel.
func (s *Store) EnableChallenge(ctx context.Context, channel string) error {
	return s.setChallenge(ctx, channel, true)
}

// DisableChallenge turns the challenge flow off for channel.
func (s *Store) DisableChallenge(ctx context.Context, channel string) error {
	return s.setChallenge(ctx, channel, false)
}

func (s *Store) setChallenge(ctx context.Context, channel string, enabled bool) error {
	owner, err := s.owner(ctx, channel)
	if err != nil {
		return err
	}
	if owner != s.identity {
		return &directory.PermissionError{Action: "change challenge flow of", Channel: channel}
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE channels SET challenge = ? WHERE name = ?`, enabled, channel); err != nil {
		return fmt.Errorf("updating challenge flag of %s: %w", channel, err)
	}
	return nil
}
