package chat

import (
	"strings"
	"testing"
)

func TestRenderQR(t *testing.T) {
	art, err := RenderQR("https://qd.example/i/abc")
	if err != nil {
		t.Fatalf("RenderQR: %v", err)
	}
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	if len(lines) < 10 {
		t.Errorf("qr art has %d lines, want a full code", len(lines))
	}
}

func TestQRView_SetLink(t *testing.T) {
	qv := NewQRView()
	link := "https://qd.example/i/abc"

	w, h, err := qv.SetLink(link)
	if err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	if w <= len(link) || h < 10 {
		t.Errorf("size = %dx%d", w, h)
	}
	if qv.Link() != link {
		t.Errorf("Link() = %q", qv.Link())
	}
	if !strings.Contains(qv.GetText(true), link) {
		t.Error("view should show the link under the code")
	}
}

func TestQRView_AnyKeyCloses(t *testing.T) {
	qv := NewQRView()
	closed := false
	qv.SetOnClose(func() { closed = true })

	if qv.GetInputCapture()(runeKey('x')) != nil {
		t.Error("keys should be consumed")
	}
	if !closed {
		t.Error("any key should close")
	}
}
