package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

type staticChannels struct {
	names []string
	err   error
}

func (s *staticChannels) ChannelNames(context.Context) ([]string, error) {
	return s.names, s.err
}

func TestCurrentDefault(t *testing.T) {
	b := NewBridge(&staticChannels{})
	if got := b.Current(); got != directory.NoChannelSelected {
		t.Errorf("Current() = %q, want %q", got, directory.NoChannelSelected)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		current string
	}{
		{"known channel", "alpha", true, "alpha"},
		{"trimmed", "  alpha\t", true, "alpha"},
		{"unknown channel", "gamma", false, directory.NoChannelSelected},
		{"case sensitive", "Alpha", false, directory.NoChannelSelected},
		{"empty", "   ", false, directory.NoChannelSelected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBridge(&staticChannels{names: []string{"alpha", "beta"}})
			if got := b.Select(context.Background(), tt.input); got != tt.want {
				t.Errorf("Select(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got := b.Current(); got != tt.current {
				t.Errorf("Current() = %q, want %q", got, tt.current)
			}
		})
	}
}

func TestSelectListError(t *testing.T) {
	b := NewBridge(&staticChannels{names: []string{"alpha"}, err: errors.New("offline")})
	if b.Select(context.Background(), "alpha") {
		t.Error("Select should fail when the channel list is unavailable")
	}
}

func TestRejectedSelectionKeepsCurrent(t *testing.T) {
	b := NewBridge(&staticChannels{names: []string{"alpha"}})
	b.Select(context.Background(), "alpha")
	b.Select(context.Background(), "deleted")
	if got := b.Current(); got != "alpha" {
		t.Errorf("Current() = %q, want alpha", got)
	}
}

func TestSubscribeOrderAndDelivery(t *testing.T) {
	b := NewBridge(&staticChannels{names: []string{"alpha", "beta"}})

	var order []string
	b.Subscribe(func(ch string) { order = append(order, "first:"+ch) })
	b.Subscribe(func(ch string) { order = append(order, "second:"+ch) })

	b.Select(context.Background(), "alpha")
	b.Select(context.Background(), "nope")
	b.Select(context.Background(), "beta")

	want := []string{"first:alpha", "second:alpha", "first:beta", "second:beta"}
	if len(order) != len(want) {
		t.Fatalf("deliveries = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestSubscribeSeesCurrentValue(t *testing.T) {
	b := NewBridge(&staticChannels{names: []string{"alpha"}})

	var seen string
	b.Subscribe(func(string) { seen = b.Current() })
	b.Select(context.Background(), "alpha")

	if seen != "alpha" {
		t.Errorf("Current() inside handler = %q, want alpha", seen)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBridge(&staticChannels{names: []string{"alpha", "beta"}})

	calls := 0
	unsub := b.Subscribe(func(string) { calls++ })
	late := 0
	b.Select(context.Background(), "alpha")
	unsub()
	unsub()
	b.Subscribe(func(string) { late++ })
	b.Select(context.Background(), "beta")

	if calls != 1 {
		t.Errorf("calls after unsubscribe = %d, want 1", calls)
	}
	if late != 1 {
		t.Errorf("late subscriber calls = %d, want 1 (no replay)", late)
	}
}

// gatedChannels blocks lookups for names in gates until the gate is closed.
type gatedChannels struct {
	names []string
	gates map[string]chan struct{}
	// started receives the name of every lookup as it begins.
	started chan string
}

func (g *gatedChannels) ChannelNames(ctx context.Context) ([]string, error) {
	name, _ := ctx.Value(lookupKey{}).(string)
	g.started <- name
	if gate, ok := g.gates[name]; ok {
		<-gate
	}
	return g.names, nil
}

type lookupKey struct{}

func TestSlowLookupDoesNotOverrideNewerSelection(t *testing.T) {
	release := make(chan struct{})
	src := &gatedChannels{
		names:   []string{"alpha", "beta"},
		gates:   map[string]chan struct{}{"alpha": release},
		started: make(chan string, 2),
	}
	b := NewBridge(src)

	var delivered []string
	b.Subscribe(func(ch string) { delivered = append(delivered, ch) })

	done := make(chan bool)
	go func() {
		done <- b.Select(context.WithValue(context.Background(), lookupKey{}, "alpha"), "alpha")
	}()
	<-src.started

	if !b.Select(context.WithValue(context.Background(), lookupKey{}, "beta"), "beta") {
		t.Fatal("Select(beta) = false")
	}
	<-src.started
	close(release)

	if <-done {
		t.Error("superseded Select(alpha) = true, want false")
	}
	if got := b.Current(); got != "beta" {
		t.Errorf("Current() = %q, want beta", got)
	}
	if len(delivered) != 1 || delivered[0] != "beta" {
		t.Errorf("deliveries = %v, want [beta]", delivered)
	}
}
