package slack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

func TestMessageSubTypeFiltering(t *testing.T) {
	tests := []struct {
		name    string
		subType string
		want    bool
	}{
		{"new message", "", true},
		{"file share", "file_share", true},
		{"message_changed", "message_changed", false},
		{"message_deleted", "message_deleted", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got bool
			handler := &EventHandler{
				OnMessage: func(*slackevents.MessageEvent) { got = true },
			}
			dispatchMessage(handler, &slackevents.MessageEvent{SubType: tt.subType})
			if got != tt.want {
				t.Errorf("OnMessage called=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestNilCallbacksDoNotPanic(t *testing.T) {
	handler := &EventHandler{} // all callbacks nil

	dispatchMessage(handler, &slackevents.MessageEvent{})
	dispatchTyped(slackevents.ChannelCreated, &slackevents.ChannelCreatedEvent{}, handler.OnChannelCreated)
	dispatchLifecycle(handler, socketmode.EventTypeConnected, nil)
	dispatchLifecycle(handler, socketmode.EventTypeDisconnect, nil)
	dispatchLifecycle(handler, socketmode.EventTypeConnectionError, errors.New("boom"))
}

func TestTypedCallbacksInvoked(t *testing.T) {
	var created, renamed string
	handler := &EventHandler{
		OnChannelCreated: func(e *slackevents.ChannelCreatedEvent) { created = e.Channel.Name },
		OnChannelRename:  func(e *slackevents.ChannelRenameEvent) { renamed = e.Channel.Name },
	}

	created0 := &slackevents.ChannelCreatedEvent{}
	created0.Channel.Name = "general"
	dispatchTyped(slackevents.ChannelCreated, created0, handler.OnChannelCreated)

	renamed0 := &slackevents.ChannelRenameEvent{}
	renamed0.Channel.Name = "renamed"
	dispatchTyped(slackevents.ChannelRename, renamed0, handler.OnChannelRename)

	if created != "general" || renamed != "renamed" {
		t.Errorf("created=%q renamed=%q", created, renamed)
	}
}

func TestTypedDispatchIgnoresWrongType(t *testing.T) {
	called := false
	handler := &EventHandler{
		OnChannelArchive: func(*slackevents.ChannelArchiveEvent) { called = true },
	}
	dispatchTyped(slackevents.ChannelArchive, &slackevents.ChannelCreatedEvent{}, handler.OnChannelArchive)
	if called {
		t.Error("callback invoked for mismatched event data")
	}
}

func TestLifecycleErrors(t *testing.T) {
	tests := []struct {
		name string
		kind socketmode.EventType
		data any
		want string
	}{
		{"error value", socketmode.EventTypeConnectionError, errors.New("dial failed"), "dial failed"},
		{"non-error data", socketmode.EventTypeIncomingError, "weird", "weird"},
		{"invalid auth", socketmode.EventTypeInvalidAuth, nil, "invalid auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got error
			handler := &EventHandler{OnError: func(err error) { got = err }}
			dispatchLifecycle(handler, tt.kind, tt.data)
			if got == nil || !strings.Contains(got.Error(), tt.want) {
				t.Errorf("OnError(%v), want message containing %q", got, tt.want)
			}
		})
	}
}

func TestLifecycleConnectDisconnect(t *testing.T) {
	var connected, disconnected int
	handler := &EventHandler{
		OnConnected:    func() { connected++ },
		OnDisconnected: func() { disconnected++ },
	}
	dispatchLifecycle(handler, socketmode.EventTypeConnected, nil)
	dispatchLifecycle(handler, socketmode.EventTypeDisconnect, nil)
	dispatchLifecycle(handler, socketmode.EventTypeConnected, nil)

	if connected != 2 || disconnected != 1 {
		t.Errorf("connected=%d disconnected=%d", connected, disconnected)
	}
}

func TestRunSocketModeWithoutAppToken(t *testing.T) {
	c := &Client{}
	if err := c.RunSocketMode(context.Background(), &EventHandler{}); !errors.Is(err, ErrNoAppToken) {
		t.Errorf("err = %v, want ErrNoAppToken", err)
	}
}

func TestSafePrefix(t *testing.T) {
	if got := safePrefix("xoxb-123456"); got != "xoxb-" {
		t.Errorf("safePrefix = %q", got)
	}
	if got := safePrefix("abc"); got != "abc" {
		t.Errorf("safePrefix = %q", got)
	}
}
