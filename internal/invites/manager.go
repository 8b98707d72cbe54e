// Package invites keeps the channel settings panel's view of invite codes,
// ownership and the challenge flag in step with the selected channel.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// State is a snapshot of the settings for one channel.
type State struct {
	Channel   string
	IsOwner   bool
	Challenge bool
	Codes     []directory.InviteCode
}

// OnStateFunc receives every applied state.
type OnStateFunc func(State)

// Manager holds invite state for the selected channel. Every fetch is
// tagged with a generation and its channel; a result is applied only if it
// is the newest request and its channel is still selected.
type Manager struct {
	svc directory.InviteService

	mu       sync.Mutex
	state    State
	selected string
	gen      uint64
	closed   bool
	subs     []subscription
	nextID   int
}

type subscription struct {
	id int
	fn OnStateFunc
}

// NewManager creates a Manager backed by svc.
func NewManager(svc directory.InviteService) *Manager {
	return &Manager{svc: svc}
}

// IsRealChannel reports whether name refers to a leaf channel rather than
// a folder, a separator or the empty selection.
func IsRealChannel(name string) bool {
	return name != "" && name != directory.NoChannelSelected && !directory.IsStructuralName(name)
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.Codes = slices.Clone(m.state.Codes)
	return st
}

// Subscribe registers fn for applied states and returns a function that
// removes it.
func (m *Manager) Subscribe(fn OnStateFunc) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.subs = slices.DeleteFunc(m.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// OnSelectionChanged loads ownership, invites and the challenge flag for a
// newly selected channel. Folder and separator names leave the state as is.
func (m *Manager) OnSelectionChanged(ctx context.Context, channel string) error {
	if !IsRealChannel(channel) {
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.selected = channel
	m.mu.Unlock()

	return m.refresh(ctx, channel)
}

// Issue creates an invite and reloads the channel's invite list.
func (m *Manager) Issue(ctx context.Context, channel string, maxUses int, includeFolderStructure bool) (string, error) {
	if err := validateIssue(channel, maxUses); err != nil {
		return "", err
	}

	link, err := m.svc.CreateInvite(ctx, channel, maxUses, includeFolderStructure)
	if err != nil {
		return "", fmt.Errorf("creating invite for %s: %w", channel, err)
	}
	slog.Info("invite issued", "channel", channel, "max_uses", maxUses, "folders", includeFolderStructure)

	if err := m.refresh(ctx, channel); err != nil {
		slog.Warn("reloading invites after issue failed", "channel", channel, "error", err)
	}
	return link, nil
}

// Revoke removes an invite and reloads the list. Revoking a link the
// service no longer knows is not an error.
func (m *Manager) Revoke(ctx context.Context, channel, link string) error {
	err := m.svc.RemoveInviteCode(ctx, channel, link)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		slog.Debug("invite already gone", "channel", channel, "link", link)
	case err != nil:
		return fmt.Errorf("removing invite from %s: %w", channel, err)
	default:
		slog.Info("invite revoked", "channel", channel)
	}

	if err := m.refresh(ctx, channel); err != nil {
		slog.Warn("reloading invites after revoke failed", "channel", channel, "error", err)
	}
	return nil
}

// SetChallenge toggles the channel's challenge flow and reloads the state.
func (m *Manager) SetChallenge(ctx context.Context, channel string, enabled bool) error {
	var err error
	if enabled {
		err = m.svc.EnableChallenge(ctx, channel)
	} else {
		err = m.svc.DisableChallenge(ctx, channel)
	}
	if err != nil {
		return fmt.Errorf("setting challenge flag on %s: %w", channel, err)
	}
	return m.refresh(ctx, channel)
}

// Clear drops the state and discards in-flight results, e.g. after the
// selected channel was deleted.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.gen++
	m.selected = ""
	m.state = State{}
	subs := m.snapshotSubs()
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(State{})
	}
}

// Close detaches the manager. Results arriving afterwards are dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = nil
}

// refresh fetches the full state for channel in one round and applies it
// if it is still relevant. Channels other than the selected one are not
// displayed, so they are not fetched.
func (m *Manager) refresh(ctx context.Context, channel string) error {
	m.mu.Lock()
	if m.closed || channel != m.selected {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	st, err := m.fetch(ctx, channel)
	if err != nil {
		return err
	}
	m.apply(gen, st)
	return nil
}

func (m *Manager) fetch(ctx context.Context, channel string) (State, error) {
	st := State{Channel: channel}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		owner, err := m.svc.IsOwner(gctx, channel)
		if err != nil {
			return fmt.Errorf("checking owner of %s: %w", channel, err)
		}
		st.IsOwner = owner
		return nil
	})
	g.Go(func() error {
		list, err := m.svc.InviteCodes(gctx, channel)
		if err != nil {
			return fmt.Errorf("listing invites for %s: %w", channel, err)
		}
		st.Codes = list.Items
		return nil
	})
	g.Go(func() error {
		flag, err := m.svc.ChallengeFlag(gctx, channel)
		if err != nil {
			return fmt.Errorf("reading challenge flag of %s: %w", channel, err)
		}
		st.Challenge = flag
		return nil
	})

	if err := g.Wait(); err != nil {
		return State{}, err
	}
	return st, nil
}

func (m *Manager) apply(gen uint64, st State) {
	m.mu.Lock()
	if m.closed || gen != m.gen || st.Channel != m.selected {
		selected := m.selected
		m.mu.Unlock()
		slog.Debug("discarding stale invite state", "channel", st.Channel, "selected", selected)
		return
	}
	m.state = st
	subs := m.snapshotSubs()
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(st)
	}
}

// snapshotSubs must be called with m.mu held.
func (m *Manager) snapshotSubs() []subscription {
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	return subs
}

func validateIssue(channel string, maxUses int) error {
	if err := validation.Validate(channel, validation.Required); err != nil {
		return &directory.ValidationError{Field: "channel", Message: err.Error()}
	}
	if err := validation.Validate(maxUses, validation.Required, validation.Min(1)); err != nil {
		return &directory.ValidationError{Field: "maxUses", Message: err.Error()}
	}
	return nil
}
