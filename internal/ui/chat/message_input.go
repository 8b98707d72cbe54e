package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/composer"
	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/invites"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// OnSendFunc is called with a snapshot of the draft when the user sends.
type OnSendFunc func(channel string, draft *composer.Draft)

// MessageInput wraps tview.TextArea with the composer draft.
type MessageInput struct {
	*tview.TextArea
	cfg     *config.Config
	channel string
	draft   composer.Draft
	onSend  OnSendFunc

	onAttachRequest func()
	onEmojiRequest  func()
	onError         func(error)

	// Autocomplete state.
	mentionsList       *MentionsList
	mentionFilter      MentionFilterFunc
	acActive           bool
	onShowAutocomplete func(count int)
	onHideAutocomplete func()
}

// NewMessageInput creates a new message input component.
func NewMessageInput(cfg *config.Config) *MessageInput {
	mi := &MessageInput{
		TextArea: tview.NewTextArea(),
		cfg:      cfg,
		channel:  directory.NoChannelSelected,
	}

	mi.SetBorder(true)
	mi.SetPlaceholder("Type a message...")
	mi.SetPlaceholderStyle(cfg.Theme.MessageInput.Placeholder.Style)
	mi.updateTitle()

	mi.SetInputCapture(mi.handleInput)
	mi.SetChangedFunc(mi.onTextChanged)

	return mi
}

// SetOnSend sets the callback for sending messages.
func (mi *MessageInput) SetOnSend(fn OnSendFunc) { mi.onSend = fn }

// SetOnAttachRequest sets the callback for the attach file key.
func (mi *MessageInput) SetOnAttachRequest(fn func()) { mi.onAttachRequest = fn }

// SetOnEmojiRequest sets the callback for the emoji picker key.
func (mi *MessageInput) SetOnEmojiRequest(fn func()) { mi.onEmojiRequest = fn }

// SetOnError sets the callback for rejected input such as a bad file.
func (mi *MessageInput) SetOnError(fn func(error)) { mi.onError = fn }

// SetMentionsList sets the autocomplete dropdown and its candidate source.
func (mi *MessageInput) SetMentionsList(ml *MentionsList, filter MentionFilterFunc) {
	mi.mentionsList = ml
	mi.mentionFilter = filter
}

// SetOnShowAutocomplete sets the callback for showing the dropdown.
func (mi *MessageInput) SetOnShowAutocomplete(fn func(count int)) { mi.onShowAutocomplete = fn }

// SetOnHideAutocomplete sets the callback for hiding the dropdown.
func (mi *MessageInput) SetOnHideAutocomplete(fn func()) { mi.onHideAutocomplete = fn }

// SetChannel sets the channel messages are sent to.
func (mi *MessageInput) SetChannel(channel string) {
	mi.channel = channel
	mi.dismissAutocomplete()
}

// Channel returns the channel messages are sent to.
func (mi *MessageInput) Channel() string { return mi.channel }

// Draft returns a copy of the current draft.
func (mi *MessageInput) Draft() composer.Draft {
	d := mi.draft
	d.Text = mi.GetText()
	d.Files = append([]directory.Attachment(nil), mi.draft.Files...)
	return d
}

// InsertEmoji appends the shortcode to the text.
func (mi *MessageInput) InsertEmoji(code string) error {
	mi.draft.Text = mi.GetText()
	if err := mi.draft.AddEmoji(code); err != nil {
		return err
	}
	mi.SetText(mi.draft.Text, true)
	return nil
}

// Attach adds the file at path to the draft.
func (mi *MessageInput) Attach(path string) (directory.Attachment, error) {
	a, err := mi.draft.Attach(path)
	if err != nil {
		return a, err
	}
	mi.updateTitle()
	return a, nil
}

// RemoveLastFile drops the most recently attached file.
func (mi *MessageInput) RemoveLastFile() {
	if n := len(mi.draft.Files); n > 0 {
		mi.draft.RemoveFile(n - 1)
		mi.updateTitle()
	}
}

// Files returns the attached files.
func (mi *MessageInput) Files() []directory.Attachment {
	return mi.draft.Files
}

// Reset clears the text and attachments.
func (mi *MessageInput) Reset() {
	mi.draft.Reset()
	mi.SetText("", false)
	mi.updateTitle()
}

// updateTitle lists attachments in the border title.
func (mi *MessageInput) updateTitle() {
	if len(mi.draft.Files) == 0 {
		mi.SetTitle(" Input ")
		return
	}
	names := make([]string, len(mi.draft.Files))
	for i, f := range mi.draft.Files {
		names[i] = filepath.Base(f.Name)
		if f.IsImage {
			names[i] += " (image)"
		}
	}
	mi.SetTitle(fmt.Sprintf(" Input · %d file(s): %s ", len(names), strings.Join(names, ", ")))
}

func (mi *MessageInput) handleInput(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())
	kb := mi.cfg.Keybinds.MessageInput

	// Autocomplete navigation when dropdown is active.
	if mi.acActive && mi.mentionsList != nil {
		switch {
		case name == kb.TabComplete:
			mi.completeAutocomplete()
			return nil
		case event.Key() == tcell.KeyUp:
			mi.mentionsList.SelectPrev()
			return nil
		case event.Key() == tcell.KeyDown:
			mi.mentionsList.SelectNext()
			return nil
		case name == kb.Cancel:
			mi.dismissAutocomplete()
			return nil
		}
	}

	switch name {
	case kb.Send:
		mi.dismissAutocomplete()
		mi.send()
		return nil

	case kb.Newline:
		return tcell.NewEventKey(tcell.KeyEnter, '\n', tcell.ModNone)

	case kb.AttachFile:
		if mi.onAttachRequest != nil {
			mi.onAttachRequest()
		}
		return nil

	case kb.EmojiPicker:
		if mi.onEmojiRequest != nil {
			mi.onEmojiRequest()
		}
		return nil

	case kb.RemoveFile:
		mi.RemoveLastFile()
		return nil
	}

	return event
}

// send hands a snapshot of a ready draft to the send callback. The input is
// cleared by the caller once delivery succeeds.
func (mi *MessageInput) send() {
	d := mi.Draft()
	if !d.Ready() {
		return
	}
	if !invites.IsRealChannel(mi.channel) {
		if mi.onError != nil {
			mi.onError(&directory.ValidationError{Field: "channel", Message: "no channel selected"})
		}
		return
	}
	if mi.onSend != nil {
		mi.onSend(mi.channel, &d)
	}
}

func (mi *MessageInput) onTextChanged() {
	if mi.mentionsList == nil || mi.mentionFilter == nil {
		return
	}

	prefix, ok := findMentionTrigger(mi.GetText())
	if !ok {
		if mi.acActive {
			mi.dismissAutocomplete()
		}
		return
	}

	count := mi.mentionsList.SetSuggestions(mi.mentionFilter(prefix, mi.cfg.AutocompleteLimit))
	if count == 0 {
		mi.dismissAutocomplete()
		return
	}
	mi.acActive = true
	if mi.onShowAutocomplete != nil {
		mi.onShowAutocomplete(count)
	}
}

// completeAutocomplete replaces the "@prefix" with the selected name.
func (mi *MessageInput) completeAutocomplete() {
	name := mi.mentionsList.Selected()
	if name == "" {
		return
	}
	mi.draft.Text = mi.GetText()
	mi.draft.AddMention(name)
	mi.SetText(mi.draft.Text, true)
	mi.dismissAutocomplete()
}

func (mi *MessageInput) dismissAutocomplete() {
	mi.acActive = false
	if mi.onHideAutocomplete != nil {
		mi.onHideAutocomplete()
	}
}
