package composer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

type fakeMentions struct {
	mu    sync.Mutex
	names map[string][]string
	err   error
	calls int
	// during runs inside a fetch, before the result is returned.
	during func(ch string)
}

func (f *fakeMentions) MentionCandidates(_ context.Context, ch string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.during != nil {
		f.during(ch)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.names[ch], nil
}

func (f *fakeMentions) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePoster struct {
	channel string
	text    string
	files   []directory.Attachment
	err     error
	posts   int
}

func (f *fakePoster) PostMessage(_ context.Context, ch, text string, files []directory.Attachment) error {
	if f.err != nil {
		return f.err
	}
	f.posts++
	f.channel, f.text, f.files = ch, text, files
	return nil
}

func TestMentionCacheFilter(t *testing.T) {
	src := &fakeMentions{names: map[string][]string{
		"general": {"bob", "alice", "alina", "bob", "carol"},
	}}
	c := NewMentionCache(src)
	if err := c.Refresh(context.Background(), "general"); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	tests := []struct {
		name   string
		prefix string
		limit  int
		want   []string
	}{
		{"empty prefix alphabetical", "", 10, []string{"alice", "alina", "bob", "carol"}},
		{"empty prefix limited", "", 2, []string{"alice", "alina"}},
		{"at sign stripped", "@car", 10, []string{"carol"}},
		{"fuzzy", "ali", 10, []string{"alice", "alina"}},
		{"no match", "zzz", 10, []string{}},
		{"zero limit", "a", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Filter(tt.prefix, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%q, %d) = %v, want %v", tt.prefix, tt.limit, got, tt.want)
			}
			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("Filter(%q, %d) = %v, missing %q", tt.prefix, tt.limit, got, w)
				}
			}
		})
	}
}

func TestMentionCacheFilterLimit(t *testing.T) {
	src := &fakeMentions{names: map[string][]string{"general": {"alice", "alina", "anna"}}}
	c := NewMentionCache(src)
	if err := c.Refresh(context.Background(), "general"); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if got := c.Filter("a", 2); len(got) != 2 {
		t.Errorf("Filter(a, 2) = %v, want 2 results", got)
	}
}

func TestMentionCacheRefreshErrorKeepsCandidates(t *testing.T) {
	src := &fakeMentions{names: map[string][]string{"general": {"alice"}}}
	c := NewMentionCache(src)
	if err := c.Refresh(context.Background(), "general"); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	src.err = errors.New("offline")
	if err := c.Refresh(context.Background(), "random"); err == nil {
		t.Fatal("Refresh() error = nil")
	}
	if c.Channel() != "general" {
		t.Errorf("Channel() = %q, want general", c.Channel())
	}
	if got := c.Filter("", 5); !slices.Equal(got, []string{"alice"}) {
		t.Errorf("Filter() = %v", got)
	}
}

func TestMentionCacheCancelledRefreshKeepsCandidates(t *testing.T) {
	src := &fakeMentions{names: map[string][]string{
		"general": {"alice"},
		"random":  {"bob"},
	}}
	c := NewMentionCache(src)
	if err := c.Refresh(context.Background(), "random"); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	// The old channel's refresher is cancelled while its fetch is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	src.during = func(string) { cancel() }
	if err := c.Refresh(ctx, "general"); !errors.Is(err, context.Canceled) {
		t.Errorf("Refresh() error = %v, want context.Canceled", err)
	}

	if c.Channel() != "random" {
		t.Errorf("Channel() = %q, want random", c.Channel())
	}
	if got := c.Filter("", 5); !slices.Equal(got, []string{"bob"}) {
		t.Errorf("Filter() = %v, want [bob]", got)
	}
}

func TestMentionCacheRun(t *testing.T) {
	src := &fakeMentions{names: map[string][]string{"general": {"alice"}}}
	c := NewMentionCache(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, "general", 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for src.Calls() < 3 {
		select {
		case <-deadline:
			t.Fatalf("refreshes = %d, want at least 3", src.Calls())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if c.Updated().IsZero() {
		t.Error("Updated() is zero after Run")
	}
}

func TestDraftAddEmoji(t *testing.T) {
	var d Draft
	d.Text = "hi"

	if err := d.AddEmoji(":smile:"); err != nil {
		t.Fatalf("AddEmoji() error: %v", err)
	}
	if d.Text != "hi :smile: " {
		t.Errorf("Text = %q", d.Text)
	}

	err := d.AddEmoji("definitely_not_an_emoji")
	if !errors.Is(err, directory.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if d.Text != "hi :smile: " {
		t.Errorf("Text changed on rejected emoji: %q", d.Text)
	}
}

func TestDraftAddMention(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"hello @al", "hello @alice "},
		{"", "@alice "},
		{"mail me@ home", "mail me@ home@alice "},
	}
	for _, tt := range tests {
		d := Draft{Text: tt.text}
		d.AddMention("alice")
		if d.Text != tt.want {
			t.Errorf("AddMention on %q = %q, want %q", tt.text, d.Text, tt.want)
		}
	}
}

func TestDraftAttach(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		image   bool
		wantErr bool
	}{
		{"png", write("a.png"), true, false},
		{"upper jpeg", write("b.JPEG"), true, false},
		{"gif", write("c.gif"), true, false},
		{"text", write("notes.txt"), false, false},
		{"directory", dir, false, true},
		{"missing", filepath.Join(dir, "nope.png"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Draft
			att, err := d.Attach(tt.path)
			if tt.wantErr {
				if !errors.Is(err, directory.ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				if len(d.Files) != 0 {
					t.Error("file attached on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Attach() error: %v", err)
			}
			if att.IsImage != tt.image {
				t.Errorf("IsImage = %v, want %v", att.IsImage, tt.image)
			}
			if att.Size != 4 {
				t.Errorf("Size = %d, want 4", att.Size)
			}
		})
	}
}

func TestDraftReady(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
		want  bool
	}{
		{"empty", Draft{}, false},
		{"whitespace only", Draft{Text: " \n\t "}, false},
		{"text", Draft{Text: "hi"}, true},
		{"files only", Draft{Files: []directory.Attachment{{Name: "a.png"}}}, true},
	}
	for _, tt := range tests {
		if got := tt.draft.Ready(); got != tt.want {
			t.Errorf("%s: Ready() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDraftRemoveFile(t *testing.T) {
	d := Draft{Files: []directory.Attachment{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	d.RemoveFile(1)
	d.RemoveFile(7)
	d.RemoveFile(-1)

	var names []string
	for _, f := range d.Files {
		names = append(names, f.Name)
	}
	if !slices.Equal(names, []string{"a", "c"}) {
		t.Errorf("files = %v, want [a c]", names)
	}
}

func TestSend(t *testing.T) {
	p := &fakePoster{}
	d := &Draft{Text: "  hello  ", Files: []directory.Attachment{{Name: "a.png"}}}

	if err := Send(context.Background(), p, "general", d); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if p.channel != "general" || p.text != "hello" || len(p.files) != 1 {
		t.Errorf("posted %q/%q/%d files", p.channel, p.text, len(p.files))
	}
	if d.Ready() {
		t.Error("draft not reset after send")
	}
}

func TestSendRejected(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		draft   Draft
	}{
		{"empty draft", "general", Draft{Text: "   "}},
		{"no channel", directory.NoChannelSelected, Draft{Text: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{}
			d := tt.draft
			err := Send(context.Background(), p, tt.channel, &d)
			if !errors.Is(err, directory.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if p.posts != 0 {
				t.Error("message posted")
			}
		})
	}
}

func TestSendFailureKeepsDraft(t *testing.T) {
	p := &fakePoster{err: errors.New("offline")}
	d := &Draft{Text: "hi"}

	if err := Send(context.Background(), p, "general", d); err == nil {
		t.Fatal("Send() error = nil")
	}
	if d.Text != "hi" {
		t.Errorf("draft text = %q, want kept", d.Text)
	}
}

func TestSearchEmoji(t *testing.T) {
	got := SearchEmoji(":smil", 5)
	if len(got) == 0 {
		t.Fatal("SearchEmoji returned nothing")
	}
	if len(got) > 5 {
		t.Errorf("len = %d, want <= 5", len(got))
	}
	for _, m := range got {
		if m.Glyph == "" {
			t.Errorf("%s has no glyph", m.Code)
		}
	}

	if got := SearchEmoji("", 3); len(got) != 3 {
		t.Errorf("empty query len = %d, want 3", len(got))
	}
}
