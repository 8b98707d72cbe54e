package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/keyring"
	slackclient "github.com/cjrutherford/qd-messages/internal/slack"
	"github.com/cjrutherford/qd-messages/internal/slackdir"
	"github.com/cjrutherford/qd-messages/internal/store"
)

// HistoryFunc loads the newest messages of a channel, oldest first.
type HistoryFunc func(ctx context.Context, channel string, limit int) ([]store.Message, error)

// Backend is an opened Directory Service plus what the UI shows about it.
type Backend struct {
	directory.Service
	// Label describes the identity and backend for the status bar.
	Label string
	// History is nil when the backend keeps no message history.
	History HistoryFunc
}

// OpenBackend opens the Directory Service selected by cfg. Background
// work stops when ctx is done; callers still Close the backend.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Directory.Backend {
	case config.BackendLocal, "":
		return openLocal(ctx, cfg)
	case config.BackendSlack:
		return openSlack(ctx, cfg)
	default:
		return nil, &directory.ValidationError{
			Field:   "directory.backend",
			Message: fmt.Sprintf("unknown backend %q", cfg.Directory.Backend),
		}
	}
}

func openLocal(ctx context.Context, cfg *config.Config) (*Backend, error) {
	st, err := store.Open(ctx, cfg.Directory.Path, store.WithIdentity(cfg.Identity.Name))
	if err != nil {
		return nil, err
	}

	if cfg.Directory.Seed != "" {
		seeded, err := st.SeedFile(ctx, cfg.Directory.Seed)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		if seeded {
			slog.Info("seeded directory", "path", cfg.Directory.Path, "seed", cfg.Directory.Seed)
		}
	}

	return &Backend{
		Service: st,
		Label:   fmt.Sprintf("%s · local", st.Identity()),
		History: st.Messages,
	}, nil
}

func openSlack(ctx context.Context, cfg *config.Config) (*Backend, error) {
	tokens, err := keyring.Resolve()
	if err != nil {
		return nil, fmt.Errorf("slack tokens: %w", err)
	}

	client, err := slackclient.New(ctx, tokens.User, tokens.App)
	if err != nil {
		return nil, err
	}
	if !client.SocketMode() {
		slog.Warn("no app token, channel changes are polled", "interval", slackdir.ResyncInterval)
	}

	st, err := store.Open(ctx, cfg.Directory.Path, store.WithIdentity(client.UserName))
	if err != nil {
		return nil, err
	}

	dir := slackdir.New(client, st, client.UserID)
	dir.Start(ctx)

	slog.Info("connected to slack", "user", client.UserName, "team", client.TeamName)
	return &Backend{
		Service: dir,
		Label:   fmt.Sprintf("%s (%s) · slack", client.UserName, client.TeamName),
	}, nil
}

// WaitReady blocks until the backend is ready or ctx is done.
func (b *Backend) WaitReady(ctx context.Context) error {
	select {
	case <-b.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for directory: %w", ctx.Err())
	}
}
