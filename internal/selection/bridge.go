// Package selection broadcasts the currently selected channel to every
// component that depends on it.
package selection

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// OnSelectFunc is invoked with the newly selected channel name.
type OnSelectFunc func(channel string)

// Bridge is a single-value publish/subscribe channel for selections. Only
// names the Directory Service currently knows are published; anything else
// is dropped silently because selection may race with channel deletion.
//
// Concurrent Select calls publish in call order: a call whose lookup
// finishes after a newer call started is dropped.
type Bridge struct {
	channels directory.ChannelLister

	// publish serializes delivery so handlers see selections in order.
	publish sync.Mutex

	mu      sync.Mutex
	seq     uint64
	current string
	subs    []subscription
	nextID  int
}

type subscription struct {
	id int
	fn OnSelectFunc
}

// NewBridge creates a Bridge that validates against channels.
func NewBridge(channels directory.ChannelLister) *Bridge {
	return &Bridge{
		channels: channels,
		current:  directory.NoChannelSelected,
	}
}

// Select publishes name if it is a known channel and reports whether it
// did. Surrounding whitespace is trimmed; matching is case-sensitive.
// Handlers must not call Select.
func (b *Bridge) Select(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	known, err := b.channels.ChannelNames(ctx)
	if err != nil {
		slog.Debug("selection ignored, channel list unavailable", "channel", name, "error", err)
		return false
	}
	if !slices.Contains(known, name) {
		slog.Debug("selection ignored, unknown channel", "channel", name)
		return false
	}

	b.publish.Lock()
	defer b.publish.Unlock()

	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		slog.Debug("selection superseded", "channel", name)
		return false
	}
	b.current = name
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	slog.Info("channel selected", "channel", name)
	for _, sub := range subs {
		sub.fn(name)
	}
	return true
}

// Subscribe registers fn for future selections and returns a function that
// removes it. Handlers run synchronously in registration order.
func (b *Bridge) Subscribe(fn OnSelectFunc) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// Current returns the last published channel or directory.NoChannelSelected.
func (b *Bridge) Current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
