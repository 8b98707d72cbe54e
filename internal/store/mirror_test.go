package store

import (
	"context"
	"testing"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

func TestMirrorChannels(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	changed, err := s.MirrorChannels(ctx, []MirroredChannel{
		{Name: "general", Owner: "U123"},
		{Name: "random", Owner: "me"},
	})
	if err != nil {
		t.Fatalf("MirrorChannels() error: %v", err)
	}
	if !changed {
		t.Error("first mirror should report a change")
	}
	if got, want := mustTree(t, s), "general\nrandom\n"; got != want {
		t.Errorf("tree = %q, want %q", got, want)
	}

	changed, err = s.MirrorChannels(ctx, []MirroredChannel{
		{Name: "general", Owner: "U123"},
		{Name: "random", Owner: "me"},
	})
	if err != nil {
		t.Fatalf("MirrorChannels() error: %v", err)
	}
	if changed {
		t.Error("identical mirror should not report a change")
	}

	owner, err := s.IsOwner(ctx, "random")
	if err != nil || !owner {
		t.Errorf("IsOwner(random) = %v, %v; want true", owner, err)
	}

	if _, err := s.MirrorChannels(ctx, []MirroredChannel{{Name: "random", Owner: "me"}}); err != nil {
		t.Fatalf("MirrorChannels() error: %v", err)
	}
	if got, want := mustTree(t, s), "random\n"; got != want {
		t.Errorf("tree after drop = %q, want %q", got, want)
	}
}

func TestMirrorKeepsPlacement(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.CreateFolder(ctx, "Work", directory.FolderPath{}); err != nil {
		t.Fatal(err)
	}
	mustCommit(t, s)

	if _, err := s.MirrorChannels(ctx, []MirroredChannel{{Name: "standup", Owner: "me"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToFolderList(ctx, "standup", directory.FolderPath{"Work"}); err != nil {
		t.Fatal(err)
	}
	mustCommit(t, s)

	if _, err := s.MirrorChannels(ctx, []MirroredChannel{{Name: "standup", Owner: "me"}}); err != nil {
		t.Fatal(err)
	}
	if got, want := mustTree(t, s), "Work/\n  standup\n"; got != want {
		t.Errorf("tree = %q, want %q", got, want)
	}
}

func TestReserveChannelAfterMirror(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.CreateFolder(ctx, "Work", directory.FolderPath{}); err != nil {
		t.Fatal(err)
	}
	mustCommit(t, s)

	// The channel event may arrive before the reservation is committed.
	if _, err := s.MirrorChannels(ctx, []MirroredChannel{{Name: "ops", Owner: "me"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReserveChannel(ctx, "ops", directory.FolderPath{"Work"}); err != nil {
		t.Fatalf("ReserveChannel() error: %v", err)
	}
	if err := s.ReserveChannel(ctx, "ops", directory.FolderPath{"Work"}); err == nil {
		t.Error("second ReserveChannel() should fail while pending")
	}
	mustCommit(t, s)

	if got, want := mustTree(t, s), "Work/\n  ops\n"; got != want {
		t.Errorf("tree = %q, want %q", got, want)
	}
}
