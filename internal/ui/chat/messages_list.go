package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
)

const messageGroupingWindow = 5 * time.Minute

// MessageEntry is a message as shown in the list.
type MessageEntry struct {
	Author string
	Body   string
	Files  []directory.Attachment
	Time   time.Time
}

// MessagesList displays the selected channel's recent messages.
type MessagesList struct {
	*tview.TextView
	cfg      *config.Config
	channel  string
	messages []MessageEntry // oldest first
}

// NewMessagesList creates a new messages list component.
func NewMessagesList(cfg *config.Config) *MessagesList {
	ml := &MessagesList{
		TextView: tview.NewTextView(),
		cfg:      cfg,
	}

	ml.SetDynamicColors(true)
	ml.SetScrollable(true)
	ml.SetWordWrap(true)
	ml.SetBorder(true).SetTitle(" Messages ")
	ml.SetInputCapture(ml.handleInput)

	return ml
}

// SetMessages replaces the list for channel and scrolls to the end.
func (ml *MessagesList) SetMessages(channel string, messages []MessageEntry) {
	ml.channel = channel
	ml.messages = messages
	ml.render()
	ml.ScrollToEnd()
}

// Channel returns the channel whose messages are shown.
func (ml *MessagesList) Channel() string {
	return ml.channel
}

// Len returns the number of messages shown.
func (ml *MessagesList) Len() int {
	return len(ml.messages)
}

// SetPlaceholder shows text instead of messages, e.g. when the backend has
// no history.
func (ml *MessagesList) SetPlaceholder(channel, text string) {
	ml.channel = channel
	ml.messages = nil
	ml.SetText(fmt.Sprintf("[gray::d]%s[-::-]", tview.Escape(text)))
}

func (ml *MessagesList) render() {
	th := ml.cfg.Theme.MessagesList
	var b strings.Builder

	var prevAuthor string
	var prevTime time.Time

	for _, msg := range ml.messages {
		// Skip the header for consecutive messages of one author.
		grouped := msg.Author == prevAuthor && msg.Time.Sub(prevTime) < messageGroupingWindow
		if !grouped {
			fmt.Fprintf(&b, "%s%s%s %s%s%s\n",
				th.Timestamp.Tag(), msg.Time.Format("15:04"), th.Timestamp.Reset(),
				th.Author.Tag(), tview.Escape(msg.Author), th.Author.Reset())
		}

		for _, line := range strings.Split(msg.Body, "\n") {
			if line == "" && msg.Body == "" {
				break
			}
			fmt.Fprintf(&b, "  %s%s%s\n", th.Message.Tag(), tview.Escape(line), th.Message.Reset())
		}

		for _, f := range msg.Files {
			fmt.Fprintf(&b, "  %s📎 %s (%s)%s\n",
				th.File.Tag(), tview.Escape(f.Name), formatFileSize(f.Size), th.File.Reset())
		}

		prevAuthor = msg.Author
		prevTime = msg.Time
	}

	ml.SetText(b.String())
}

func (ml *MessagesList) handleInput(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'j':
			return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
		case 'k':
			return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		case 'g':
			ml.ScrollToBeginning()
			return nil
		case 'G':
			ml.ScrollToEnd()
			return nil
		}
	}
	return event
}

// formatFileSize formats a byte count as a human-readable string.
func formatFileSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(size)/float64(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/float64(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
