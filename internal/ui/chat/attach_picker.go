package chat

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/clipboard"
	"github.com/cjrutherford/qd-messages/internal/composer"
	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

type attachEntry struct {
	name  string
	path  string
	size  int64
	isDir bool
}

// AttachPicker browses the filesystem for a file to attach to the draft.
// Typing a path and pressing Enter picks that file directly.
type AttachPicker struct {
	*tview.Flex
	cfg     *config.Config
	input   *tview.InputField
	list    *tview.List
	dir     string
	entries []attachEntry

	onSelect func(path string)
	onClose  func()
}

// NewAttachPicker creates an attach picker.
func NewAttachPicker(cfg *config.Config) *AttachPicker {
	ap := &AttachPicker{cfg: cfg}

	ap.input = tview.NewInputField().
		SetLabel(" Path: ").
		SetFieldBackgroundColor(tcell.ColorDefault)
	ap.input.SetInputCapture(ap.handleInput)

	ap.list = tview.NewList().
		SetHighlightFullLine(true).
		ShowSecondaryText(false).
		SetWrapAround(false)

	ap.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ap.input, 1, 0, true).
		AddItem(ap.list, 0, 1, false)
	ap.SetBorder(true).SetTitle(" Attach File ")

	return ap
}

func (ap *AttachPicker) SetOnSelect(fn func(path string)) { ap.onSelect = fn }
func (ap *AttachPicker) SetOnClose(fn func())             { ap.onClose = fn }

// Reset starts browsing from the working directory, or home if that fails.
func (ap *AttachPicker) Reset() {
	dir, err := os.Getwd()
	if err != nil {
		if dir, err = os.UserHomeDir(); err != nil {
			dir = string(filepath.Separator)
		}
	}
	ap.Open(dir)
}

// Open lists dir. Hidden entries are skipped.
func (ap *AttachPicker) Open(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	ap.dir = dir
	ap.input.SetText(dir + string(filepath.Separator))

	des, err := os.ReadDir(dir)
	ap.entries = ap.entries[:0]
	ap.list.Clear()
	if err != nil {
		ap.list.AddItem(fmt.Sprintf("  %s", err), "", 0, nil)
		return
	}

	if parent := filepath.Dir(dir); parent != dir {
		ap.entries = append(ap.entries, attachEntry{name: "..", path: parent, isDir: true})
	}

	var found []attachEntry
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e := attachEntry{
			name:  de.Name(),
			path:  filepath.Join(dir, de.Name()),
			isDir: de.IsDir(),
		}
		if info, err := de.Info(); err == nil {
			e.size = info.Size()
		}
		found = append(found, e)
	}
	// Directories first, then case-insensitive by name.
	slices.SortFunc(found, func(a, b attachEntry) int {
		if a.isDir != b.isDir {
			if a.isDir {
				return -1
			}
			return 1
		}
		return cmp.Compare(strings.ToLower(a.name), strings.ToLower(b.name))
	})
	ap.entries = append(ap.entries, found...)

	for _, e := range ap.entries {
		ap.list.AddItem(attachLabel(e), "", 0, nil)
	}
}

// Dir returns the directory being browsed.
func (ap *AttachPicker) Dir() string { return ap.dir }

// Count returns the number of listed entries.
func (ap *AttachPicker) Count() int { return len(ap.entries) }

func attachLabel(e attachEntry) string {
	switch {
	case e.name == "..":
		return "  \U0001F4C1 .."
	case e.isDir:
		return fmt.Sprintf("  \U0001F4C1 %s/", e.name)
	case composer.IsImage(e.name):
		return fmt.Sprintf("  \U0001F5BC %s  (%s)", e.name, formatFileSize(e.size))
	default:
		return fmt.Sprintf("  \U0001F4CE %s  (%s)", e.name, formatFileSize(e.size))
	}
}

func (ap *AttachPicker) handleInput(event *tcell.EventKey) *tcell.EventKey {
	kb := ap.cfg.Keybinds.Picker
	switch name := keys.Normalize(event.Name()); {
	case name == kb.Close:
		ap.close()
		return nil
	case name == kb.Select:
		ap.choose()
		return nil
	case kb.Paste != "" && name == kb.Paste:
		ap.paste()
		return nil
	case name == kb.Up || event.Key() == tcell.KeyUp:
		if cur := ap.list.GetCurrentItem(); cur > 0 {
			ap.list.SetCurrentItem(cur - 1)
		}
		return nil
	case name == kb.Down || event.Key() == tcell.KeyDown:
		if cur := ap.list.GetCurrentItem(); cur < ap.list.GetItemCount()-1 {
			ap.list.SetCurrentItem(cur + 1)
		}
		return nil
	}
	return event
}

// paste replaces the typed path with the clipboard contents.
func (ap *AttachPicker) paste() {
	text, err := clipboard.ReadText()
	if err != nil {
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		ap.input.SetText(text)
	}
}

// choose acts on the typed path if it was edited, otherwise on the
// highlighted entry.
func (ap *AttachPicker) choose() {
	typed := strings.TrimSpace(ap.input.GetText())
	if typed != "" && filepath.Clean(typed) != ap.dir {
		info, err := os.Stat(typed)
		if err != nil {
			return
		}
		if info.IsDir() {
			ap.Open(typed)
			return
		}
		ap.pick(typed)
		return
	}

	cur := ap.list.GetCurrentItem()
	if cur < 0 || cur >= len(ap.entries) {
		return
	}
	e := ap.entries[cur]
	if e.isDir {
		ap.Open(e.path)
		return
	}
	ap.pick(e.path)
}

func (ap *AttachPicker) pick(path string) {
	if ap.onSelect != nil {
		ap.onSelect(path)
	}
	ap.close()
}

func (ap *AttachPicker) close() {
	if ap.onClose != nil {
		ap.onClose()
	}
}
