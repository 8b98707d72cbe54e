package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/invites"
)

func newTestSettings() *ChannelSettingsPanel {
	cfg := &config.Config{}
	cfg.Invites.DefaultMaxUses = 5
	cfg.Keybinds.SettingsPanel.Close = "Escape"
	cfg.Keybinds.SettingsPanel.CopyLink = "Rune[y]"
	cfg.Keybinds.SettingsPanel.ShowQR = "Rune[q]"
	cfg.Keybinds.SettingsPanel.Revoke = "Rune[d]"
	cfg.Keybinds.SettingsPanel.ToggleChallenge = "Rune[c]"
	cfg.Keybinds.SettingsPanel.Delete = "Rune[D]"
	return NewChannelSettingsPanel(cfg)
}

func ownedState() invites.State {
	return invites.State{
		Channel: "dev",
		IsOwner: true,
		Codes: []directory.InviteCode{
			{Link: "https://qd.example/i/aaa", Channel: "dev", MaxUses: 5, Uses: 1},
			{Link: "https://qd.example/i/bbb", Channel: "dev", MaxUses: 1},
		},
	}
}

func TestChannelSettings_SetState(t *testing.T) {
	sp := newTestSettings()
	sp.SetState(ownedState())

	if got := sp.list.GetItemCount(); got != 2 {
		t.Fatalf("list items = %d, want 2", got)
	}
	info := sp.info.GetText(true)
	if !strings.Contains(info, "#dev") || !strings.Contains(info, "owner") {
		t.Errorf("info = %q", info)
	}
	if sp.SelectedLink() != "https://qd.example/i/aaa" {
		t.Errorf("selected = %q", sp.SelectedLink())
	}

	sp.SetState(invites.State{Channel: directory.NoChannelSelected})
	if sp.list.GetItemCount() != 0 || sp.SelectedLink() != "" {
		t.Error("clearing state should empty the list")
	}
	if !strings.Contains(sp.info.GetText(true), "no channel selected") {
		t.Errorf("info = %q", sp.info.GetText(true))
	}
}

func TestChannelSettings_InviteRequest(t *testing.T) {
	tests := []struct {
		maxUses string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.maxUses, func(t *testing.T) {
			sp := newTestSettings()
			sp.SetState(ownedState())
			sp.maxUses = tt.maxUses
			req, err := sp.InviteRequest()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (req.MaxUses != tt.want || req.Channel != "dev") {
				t.Errorf("req = %+v", req)
			}
		})
	}
}

func TestChannelSettings_Generate(t *testing.T) {
	sp := newTestSettings()
	var got []InviteRequest
	sp.SetOnGenerate(func(r InviteRequest) { got = append(got, r) })

	sp.generate()
	if len(got) != 0 {
		t.Fatal("generate without a channel should not call back")
	}
	if !strings.Contains(sp.status.GetText(true), "Select a channel") {
		t.Errorf("status = %q", sp.status.GetText(true))
	}

	sp.SetState(ownedState())
	sp.include = true
	sp.generate()
	if len(got) != 1 || got[0].MaxUses != 5 || !got[0].IncludeFolderStructure {
		t.Errorf("generated = %+v", got)
	}
}

func TestChannelSettings_ListKeys(t *testing.T) {
	sp := newTestSettings()
	sp.SetState(ownedState())
	sp.list.SetCurrentItem(1)

	var copied, qr, revokedLink string
	var toggled *bool
	var deleted string
	sp.SetOnCopyLink(func(link string) { copied = link })
	sp.SetOnShowQR(func(link string) { qr = link })
	sp.SetOnRevoke(func(_, link string) { revokedLink = link })
	sp.SetOnToggleChallenge(func(_ string, enabled bool) { toggled = &enabled })
	sp.SetOnDelete(func(channel string) { deleted = channel })

	for _, r := range "yqdcD" {
		if sp.handleListInput(runeKey(r)) != nil {
			t.Errorf("key %q should be consumed", r)
		}
	}

	want := "https://qd.example/i/bbb"
	if copied != want || qr != want || revokedLink != want {
		t.Errorf("copied=%q qr=%q revoked=%q, want %q", copied, qr, revokedLink, want)
	}
	if toggled == nil || !*toggled {
		t.Error("challenge should be toggled on")
	}
	if deleted != "dev" {
		t.Errorf("deleted = %q, want dev", deleted)
	}
}

func TestChannelSettings_OwnerOnlyActions(t *testing.T) {
	sp := newTestSettings()
	st := ownedState()
	st.IsOwner = false
	sp.SetState(st)

	called := false
	sp.SetOnToggleChallenge(func(string, bool) { called = true })
	sp.SetOnDelete(func(string) { called = true })

	sp.handleListInput(runeKey('c'))
	if !strings.Contains(sp.status.GetText(true), "Only the channel owner") {
		t.Errorf("status = %q", sp.status.GetText(true))
	}
	sp.handleListInput(runeKey('D'))
	if called {
		t.Error("non-owners should not reach owner callbacks")
	}
}

func TestInviteSecondaryText(t *testing.T) {
	c := directory.InviteCode{
		MaxUses:                 3,
		Uses:                    2,
		IncludesFolderStructure: true,
		CreatedAt:               time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC),
	}
	got := inviteSecondaryText(c)
	for _, want := range []string{"2/3 uses", "with folders", "Mar 5 14:07"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q should contain %q", got, want)
		}
	}
}
