package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

type fakeSource struct {
	nodes  []directory.Node
	err    error
	stream chan []directory.Node
}

func (f *fakeSource) ChannelFolderTree(context.Context) ([]directory.Node, error) {
	return f.nodes, f.err
}

func (f *fakeSource) WatchTree(context.Context) (<-chan []directory.Node, error) {
	return f.stream, nil
}

func TestSyncRefreshPublishes(t *testing.T) {
	src := &fakeSource{nodes: []directory.Node{node("dev", 1)}}
	s := NewSync(src, quietNormalizer())

	var got *Result
	s.Subscribe(func(r *Result) { got = r })

	res, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got != res {
		t.Error("subscriber did not receive the refreshed result")
	}
	if s.Last() != res {
		t.Error("Last should return the refreshed result")
	}
}

func TestSyncRefreshError(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	s := NewSync(src, quietNormalizer())

	called := false
	s.Subscribe(func(*Result) { called = true })

	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("subscriber should not be called on error")
	}
}

func TestSyncUnsubscribe(t *testing.T) {
	src := &fakeSource{}
	s := NewSync(src, quietNormalizer())

	calls := 0
	unsub := s.Subscribe(func(*Result) { calls++ })
	s.Refresh(context.Background())
	unsub()
	unsub()
	s.Refresh(context.Background())

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSyncRunConsumesStream(t *testing.T) {
	src := &fakeSource{stream: make(chan []directory.Node, 2)}
	s := NewSync(src, quietNormalizer())

	results := make(chan *Result, 2)
	s.Subscribe(func(r *Result) { results <- r })

	src.stream <- []directory.Node{node("a", 0)}
	src.stream <- []directory.Node{node("a", 0), node("b", 0)}
	close(src.stream)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case r := <-results:
		if len(r.Flat) != 1 {
			t.Errorf("first snapshot flat = %d, want 1", len(r.Flat))
		}
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	if last := s.Last(); last == nil || len(last.Flat) != 2 {
		t.Error("Last should hold the second snapshot")
	}
}
