package chat

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/skip2/go-qrcode"
)

// RenderQR renders content as a QR code made of half-block characters.
func RenderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}
	return qr.ToSmallString(false), nil
}

// QRView is a modal showing an invite link as a QR code.
type QRView struct {
	*tview.TextView
	link    string
	onClose func()
}

// NewQRView creates an empty QR view.
func NewQRView() *QRView {
	qv := &QRView{TextView: tview.NewTextView()}
	qv.SetTextAlign(tview.AlignCenter)
	qv.SetBorder(true).SetTitle(" Invite QR ")
	qv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if qv.onClose != nil {
			qv.onClose()
		}
		return nil
	})
	return qv
}

// SetOnClose sets the callback invoked on any key.
func (qv *QRView) SetOnClose(fn func()) {
	qv.onClose = fn
}

// SetLink renders link. It returns the rendered size so the caller can
// size the modal.
func (qv *QRView) SetLink(link string) (width, height int, err error) {
	art, err := RenderQR(link)
	if err != nil {
		return 0, 0, err
	}
	qv.link = link
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	for _, l := range lines {
		width = max(width, len([]rune(l)))
	}
	qv.SetText(art + "\n" + tview.Escape(link))
	width = max(width, len(link))
	// Border and link line.
	return width + 2, len(lines) + 4, nil
}

// Link returns the displayed link.
func (qv *QRView) Link() string {
	return qv.link
}
