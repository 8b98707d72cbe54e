package chat

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/composer"
	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// frequentEmoji lists commonly used emoji shown before the user types.
var frequentEmoji = []string{
	"thumbsup", "heart", "smile", "tada", "eyes",
	"fire", "rocket", "white_check_mark", "pray", "clap",
	"joy", "wave", "star", "sparkles", "thinking_face",
}

const maxEmojiResults = 50

// EmojiPicker is a modal popup for searching and inserting emoji.
type EmojiPicker struct {
	*tview.Flex
	cfg      *config.Config
	input    *tview.InputField
	list     *tview.List
	matches  []composer.EmojiMatch
	onSelect func(code string)
	onClose  func()
}

// NewEmojiPicker creates a new emoji picker.
func NewEmojiPicker(cfg *config.Config) *EmojiPicker {
	ep := &EmojiPicker{cfg: cfg}

	ep.input = tview.NewInputField()
	ep.input.SetLabel(" Emoji: ")
	ep.input.SetChangedFunc(ep.onInputChanged)
	ep.input.SetInputCapture(ep.handleInput)

	ep.list = tview.NewList()
	ep.list.SetHighlightFullLine(true)
	ep.list.ShowSecondaryText(false)
	ep.list.SetWrapAround(false)

	ep.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ep.input, 1, 0, true).
		AddItem(ep.list, 0, 1, false)
	ep.SetBorder(true).SetTitle(" Insert Emoji ")

	ep.showFrequent()
	return ep
}

// SetOnSelect sets the callback for emoji selection.
func (ep *EmojiPicker) SetOnSelect(fn func(code string)) {
	ep.onSelect = fn
}

// SetOnClose sets the callback for closing the picker.
func (ep *EmojiPicker) SetOnClose(fn func()) {
	ep.onClose = fn
}

// Reset clears the input and shows frequent emoji.
func (ep *EmojiPicker) Reset() {
	ep.input.SetText("")
	ep.showFrequent()
}

// FilteredCount returns the number of currently visible entries.
func (ep *EmojiPicker) FilteredCount() int {
	return len(ep.matches)
}

func (ep *EmojiPicker) handleInput(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())
	kb := ep.cfg.Keybinds.Picker

	switch {
	case name == kb.Close:
		ep.close()
		return nil

	case name == kb.Select:
		ep.selectCurrent()
		return nil

	case name == kb.Up || event.Key() == tcell.KeyUp:
		if cur := ep.list.GetCurrentItem(); cur > 0 {
			ep.list.SetCurrentItem(cur - 1)
		}
		return nil

	case name == kb.Down || event.Key() == tcell.KeyDown:
		if cur := ep.list.GetCurrentItem(); cur < ep.list.GetItemCount()-1 {
			ep.list.SetCurrentItem(cur + 1)
		}
		return nil
	}

	return event
}

func (ep *EmojiPicker) onInputChanged(text string) {
	if text == "" {
		ep.showFrequent()
		return
	}
	ep.matches = composer.SearchEmoji(text, maxEmojiResults)
	ep.rebuildList()
}

func (ep *EmojiPicker) showFrequent() {
	ep.matches = ep.matches[:0]
	for _, code := range frequentEmoji {
		if glyph, ok := composer.LookupEmoji(code); ok {
			ep.matches = append(ep.matches, composer.EmojiMatch{Code: code, Glyph: glyph})
		}
	}
	ep.rebuildList()
}

func (ep *EmojiPicker) rebuildList() {
	ep.list.Clear()
	for _, m := range ep.matches {
		ep.list.AddItem(fmt.Sprintf("%s  :%s:", m.Glyph, m.Code), "", 0, nil)
	}
	if ep.list.GetItemCount() > 0 {
		ep.list.SetCurrentItem(0)
	}
}

func (ep *EmojiPicker) selectCurrent() {
	cur := ep.list.GetCurrentItem()
	if cur < 0 || cur >= len(ep.matches) {
		return
	}
	code := ep.matches[cur].Code
	ep.close()
	if ep.onSelect != nil {
		ep.onSelect(code)
	}
}

func (ep *EmojiPicker) close() {
	if ep.onClose != nil {
		ep.onClose()
	}
}
