package chat

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
)

func newTestView() *View {
	cfg := &config.Config{}
	cfg.AutocompleteLimit = 5
	cfg.Keybinds.FocusChannels = "Ctrl+H"
	cfg.Keybinds.FocusMessages = "Ctrl+K"
	cfg.Keybinds.FocusInput = "Rune[i]"
	cfg.Keybinds.ToggleSettings = "Ctrl+S"
	cfg.Keybinds.Picker.Close = "Escape"
	cfg.Keybinds.Picker.Select = "Enter"
	return New(tview.NewApplication(), cfg)
}

func TestView_Overlays(t *testing.T) {
	v := newTestView()
	if v.HasOverlay() {
		t.Fatal("fresh view should have no overlay")
	}

	v.ShowContextMenu(directory.FolderPath{"Work"})
	if !v.HasOverlay() {
		t.Fatal("context menu should be an overlay")
	}
	// Keys go to the overlay, not the panels.
	ev := tcell.NewEventKey(tcell.KeyCtrlS, 0, tcell.ModCtrl)
	if v.HandleKey(ev) == nil {
		t.Error("global keys should pass through while an overlay is open")
	}

	v.ContextMenu.handleInput(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if v.HasOverlay() {
		t.Error("closing the menu should remove the overlay")
	}

	v.ShowChannelForm(FormImportChannel, nil, nil)
	if front, _ := v.GetFrontPage(); front != pageForm {
		t.Errorf("front page = %q, want %q", front, pageForm)
	}
	v.HideChannelForm()
	if v.HasOverlay() {
		t.Error("form should be hidden")
	}
}

func TestView_HandleKey(t *testing.T) {
	v := newTestView()

	v.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'i', tcell.ModNone))
	if v.ActivePanel() != PanelInput {
		t.Fatalf("active panel = %v, want input", v.ActivePanel())
	}

	// Rune keys are typed, not treated as focus keys, in the input.
	v.FocusPanel(PanelInput)
	if v.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'i', tcell.ModNone)) == nil {
		t.Error("typing in the input should not be consumed")
	}

	v.HandleKey(tcell.NewEventKey(tcell.KeyCtrlK, 0, tcell.ModCtrl))
	if v.ActivePanel() != PanelMessages {
		t.Errorf("active panel = %v, want messages", v.ActivePanel())
	}

	v.HandleKey(tcell.NewEventKey(tcell.KeyCtrlS, 0, tcell.ModCtrl))
	if front, _ := v.GetFrontPage(); front != pageSettings {
		t.Errorf("front page = %q, want settings", front)
	}
}

func TestView_ChannelHeader(t *testing.T) {
	v := newTestView()
	if !strings.Contains(v.Header.GetText(true), "No channel selected") {
		t.Errorf("header = %q", v.Header.GetText(true))
	}
	v.SetChannelHeader("dev")
	if got := v.Header.GetText(true); got != " #dev" {
		t.Errorf("header = %q, want \" #dev\"", got)
	}
}

func TestView_Mentions(t *testing.T) {
	v := newTestView()
	v.SetMentionFilter(func(prefix string, limit int) []string { return []string{"alice", "alfred"} })

	v.MessageInput.SetText("@al", true)
	v.MessageInput.onTextChanged()
	if !v.mentionsOn {
		t.Fatal("mentions dropdown should be shown")
	}
	if v.inputFlex.GetItemCount() != 2 {
		t.Errorf("input flex items = %d, want 2", v.inputFlex.GetItemCount())
	}

	v.MessageInput.SetChannel("dev")
	if v.mentionsOn || v.inputFlex.GetItemCount() != 1 {
		t.Error("switching channel should hide the dropdown")
	}
}

func TestView_Confirm(t *testing.T) {
	v := newTestView()
	v.ShowSettings()

	v.Confirm("Delete #dev?", func() { t.Error("onYes should wait for the button") })
	if front, _ := v.GetFrontPage(); front != pageConfirm {
		t.Fatalf("front page = %q, want confirm", front)
	}
	if !v.HasOverlay() {
		t.Error("confirm should be an overlay")
	}
}
