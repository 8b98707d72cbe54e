package keys

import (
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/cjrutherford/qd-messages/internal/config"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Ctrl-S", "Ctrl+S"},
		{"Ctrl+S", "Ctrl+S"},
		{"Esc", "Escape"},
		{"Rune[D]", "Rune[D]"},
		{"Alt+Rune[1]", "Alt+Rune[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Every default binding must be reachable from the key event tcell reports.
func TestNormalizeMatchesDefaultKeybinds(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	kb := cfg.Keybinds

	tests := []struct {
		name    string
		event   *tcell.EventKey
		binding string
	}{
		{"quit", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), kb.Quit},
		{"quit without modifier", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone), kb.Quit},
		{"toggle settings", tcell.NewEventKey(tcell.KeyCtrlS, 0, tcell.ModCtrl), kb.ToggleSettings},
		{"focus channels", tcell.NewEventKey(tcell.KeyRune, '1', tcell.ModAlt), kb.FocusChannels},
		{"context menu", tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone), kb.ChannelsTree.ContextMenu},
		{"newline", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModAlt), kb.MessageInput.Newline},
		{"emoji picker", tcell.NewEventKey(tcell.KeyCtrlE, 0, tcell.ModCtrl), kb.MessageInput.EmojiPicker},
		{"remove file", tcell.NewEventKey(tcell.KeyCtrlR, 0, tcell.ModCtrl), kb.MessageInput.RemoveFile},
		{"cancel draft", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), kb.MessageInput.Cancel},
		{"delete channel", tcell.NewEventKey(tcell.KeyRune, 'D', tcell.ModNone), kb.SettingsPanel.Delete},
		{"picker paste", tcell.NewEventKey(tcell.KeyCtrlV, 0, tcell.ModCtrl), kb.Picker.Paste},
		{"picker select", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), kb.Picker.Select},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.event.Name()); got != tt.binding {
				t.Errorf("Normalize(%q) = %q, want binding %q", tt.event.Name(), got, tt.binding)
			}
		})
	}
}
