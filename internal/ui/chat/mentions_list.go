package chat

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
)

// MentionFilterFunc returns up to limit mention candidates for prefix.
type MentionFilterFunc func(prefix string, limit int) []string

// MentionsList displays mention suggestions in a dropdown.
type MentionsList struct {
	*tview.List
	cfg         *config.Config
	suggestions []string
}

// NewMentionsList creates a new mentions dropdown.
func NewMentionsList(cfg *config.Config) *MentionsList {
	ml := &MentionsList{
		List: tview.NewList(),
		cfg:  cfg,
	}

	ml.ShowSecondaryText(false)
	ml.SetHighlightFullLine(true)
	ml.SetWrapAround(false)
	ml.SetBorder(true)

	return ml
}

// SetSuggestions replaces the listed names and returns how many there are.
func (ml *MentionsList) SetSuggestions(names []string) int {
	ml.Clear()
	ml.suggestions = names
	for _, n := range names {
		ml.AddItem("@"+tview.Escape(n), "", 0, nil)
	}
	if len(names) > 0 {
		ml.SetCurrentItem(0)
	}
	return len(names)
}

// Selected returns the highlighted name, or "".
func (ml *MentionsList) Selected() string {
	idx := ml.GetCurrentItem()
	if idx < 0 || idx >= len(ml.suggestions) {
		return ""
	}
	return ml.suggestions[idx]
}

// SelectNext moves selection to the next suggestion.
func (ml *MentionsList) SelectNext() {
	if cur := ml.GetCurrentItem(); cur < ml.GetItemCount()-1 {
		ml.SetCurrentItem(cur + 1)
	}
}

// SelectPrev moves selection to the previous suggestion.
func (ml *MentionsList) SelectPrev() {
	if cur := ml.GetCurrentItem(); cur > 0 {
		ml.SetCurrentItem(cur - 1)
	}
}

// findMentionTrigger scans text backwards from the end for an "@" that
// starts the current word. It returns the prefix after the "@".
func findMentionTrigger(text string) (string, bool) {
	for i := len(text) - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\n', '\r', '\t':
			return "", false
		case '@':
			if i > 0 && !strings.ContainsRune(" \n\r\t", rune(text[i-1])) {
				// Part of a word such as an email address.
				return "", false
			}
			return text[i+1:], true
		}
	}
	return "", false
}
