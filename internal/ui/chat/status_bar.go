package chat

import (
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
)

// StatusBar shows the identity, the selected channel and transient notices
// at the bottom.
type StatusBar struct {
	*tview.TextView
	cfg        *config.Config
	connStatus string
	channel    string
	notice     string
	isError    bool
	noticeID   uint64
}

// NewStatusBar creates a themed status bar.
func NewStatusBar(cfg *config.Config) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)

	_, bg, _ := cfg.Theme.StatusBar.Background.Style.Decompose()
	fg, _, _ := cfg.Theme.StatusBar.Text.Style.Decompose()
	tv.SetBackgroundColor(bg)
	tv.SetTextColor(fg)

	return &StatusBar{
		TextView: tv,
		cfg:      cfg,
	}
}

// SetConnectionStatus updates the identity/backend text.
func (sb *StatusBar) SetConnectionStatus(s string) {
	sb.connStatus = s
	sb.render()
}

// SetChannel updates the selected channel.
func (sb *StatusBar) SetChannel(name string) {
	sb.channel = name
	sb.render()
}

// SetNotice shows a transient message. It returns an ID for ClearNotice so
// that an expiring notice does not clear a newer one.
func (sb *StatusBar) SetNotice(text string, isError bool) uint64 {
	sb.noticeID++
	sb.notice = text
	sb.isError = isError
	sb.render()
	return sb.noticeID
}

// ClearNotice removes the notice if id is still the latest.
func (sb *StatusBar) ClearNotice(id uint64) {
	if id != sb.noticeID {
		return
	}
	sb.notice = ""
	sb.isError = false
	sb.render()
}

// Notice returns the current notice text.
func (sb *StatusBar) Notice() string {
	return sb.notice
}

func (sb *StatusBar) render() {
	text := " " + tview.Escape(sb.connStatus)
	if sb.channel != "" {
		text += "  |  #" + tview.Escape(sb.channel)
	}
	if sb.notice != "" {
		notice := tview.Escape(sb.notice)
		if sb.isError {
			notice = sb.cfg.Theme.StatusBar.Error.Tag() + notice + sb.cfg.Theme.StatusBar.Error.Reset()
		}
		text += "  |  " + notice
	}
	sb.TextView.SetText(text)
}
