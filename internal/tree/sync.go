package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// OnResultFunc receives every newly normalized tree.
type OnResultFunc func(*Result)

// Sync keeps a normalized copy of the Directory Service tree and fans it
// out to subscribers. Snapshots arrive either from an explicit Refresh or
// from the service's push stream via Run.
type Sync struct {
	src  directory.TreeSource
	norm *Normalizer

	mu     sync.Mutex
	last   *Result
	subs   []subscription
	nextID int
}

type subscription struct {
	id int
	fn OnResultFunc
}

// NewSync creates a Sync. A nil norm uses the zero Normalizer.
func NewSync(src directory.TreeSource, norm *Normalizer) *Sync {
	if norm == nil {
		norm = &Normalizer{}
	}
	return &Sync{src: src, norm: norm}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Sync) Subscribe(fn OnResultFunc) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Last returns the most recent result, or nil before the first pass.
func (s *Sync) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Refresh pulls a snapshot, normalizes and publishes it.
func (s *Sync) Refresh(ctx context.Context) (*Result, error) {
	nodes, err := s.src.ChannelFolderTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching channel folder tree: %w", err)
	}
	return s.apply(nodes)
}

// Run consumes the push stream until ctx is done or the stream closes.
// A snapshot that fails normalization is logged and the previous result
// stays in place.
func (s *Sync) Run(ctx context.Context) error {
	stream, err := s.src.WatchTree(ctx)
	if err != nil {
		return fmt.Errorf("watching channel folder tree: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case nodes, ok := <-stream:
			if !ok {
				return nil
			}
			if _, err := s.apply(nodes); err != nil {
				slog.Error("dropping tree snapshot", "error", err)
			}
		}
	}
}

func (s *Sync) apply(nodes []directory.Node) (*Result, error) {
	res, err := s.norm.Normalize(nodes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(res)
	}
	return res, nil
}
