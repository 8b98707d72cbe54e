package composer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// DefaultMentionRefresh is the longest a mention list may go without a
// refresh while a channel is open.
const DefaultMentionRefresh = 120 * time.Second

// MentionCache keeps the mention candidates of one channel.
type MentionCache struct {
	src directory.MentionSource

	mu      sync.Mutex
	channel string
	names   []string
	updated time.Time
}

// NewMentionCache creates an empty cache backed by src.
func NewMentionCache(src directory.MentionSource) *MentionCache {
	return &MentionCache{src: src}
}

// Refresh replaces the candidates with the members of channel. On error
// the previous candidates are kept.
func (c *MentionCache) Refresh(ctx context.Context, channel string) error {
	names, err := c.src.MentionCandidates(ctx, channel)
	if err != nil {
		return fmt.Errorf("fetching mention candidates for %s: %w", channel, err)
	}
	// A cancelled refresher must not replace the list of a newer channel.
	if err := ctx.Err(); err != nil {
		return err
	}
	names = slices.Clone(names)
	slices.Sort(names)
	names = slices.Compact(names)

	c.mu.Lock()
	c.channel = channel
	c.names = names
	c.updated = time.Now()
	c.mu.Unlock()

	slog.Debug("mention candidates refreshed", "channel", channel, "count", len(names))
	return nil
}

// Run refreshes immediately and then every interval until ctx is done.
// Refresh errors are logged and retried on the next tick.
func (c *MentionCache) Run(ctx context.Context, channel string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMentionRefresh
	}
	if err := c.Refresh(ctx, channel); err != nil {
		slog.Warn("mention refresh failed", "channel", channel, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, channel); err != nil {
				slog.Warn("mention refresh failed", "channel", channel, "error", err)
			}
		}
	}
}

// Channel returns the channel the candidates belong to.
func (c *MentionCache) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Updated returns the time of the last successful refresh.
func (c *MentionCache) Updated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

// Filter returns up to limit candidates matching prefix, best first. An
// empty prefix returns the first limit candidates alphabetically.
func (c *MentionCache) Filter(prefix string, limit int) []string {
	c.mu.Lock()
	names := c.names
	c.mu.Unlock()

	prefix = strings.TrimPrefix(prefix, "@")
	if limit <= 0 {
		return nil
	}
	if prefix == "" {
		return slices.Clone(names[:min(limit, len(names))])
	}

	matches := fuzzy.Find(prefix, names)
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
