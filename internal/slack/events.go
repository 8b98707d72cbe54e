package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// ErrNoAppToken is returned by RunSocketMode when the client was created
// without an app-level token.
var ErrNoAppToken = errors.New("socket mode needs an app-level token")

// EventHandler holds typed callback fields, one per event kind the
// directory cares about. Nil callbacks are silently skipped.
type EventHandler struct {
	OnMessage             func(*slackevents.MessageEvent)
	OnChannelCreated      func(*slackevents.ChannelCreatedEvent)
	OnChannelDeleted      func(*slackevents.ChannelDeletedEvent)
	OnChannelArchive      func(*slackevents.ChannelArchiveEvent)
	OnChannelUnarchive    func(*slackevents.ChannelUnarchiveEvent)
	OnChannelRename       func(*slackevents.ChannelRenameEvent)
	OnMemberJoinedChannel func(*slackevents.MemberJoinedChannelEvent)
	OnMemberLeftChannel   func(*slackevents.MemberLeftChannelEvent)
	OnConnected           func()
	OnDisconnected        func()
	OnError               func(error)
}

// RunSocketMode creates a socketmode.Client, registers event handlers from
// the provided EventHandler, and runs the event loop. It blocks until ctx
// is cancelled or a fatal error occurs.
func (c *Client) RunSocketMode(ctx context.Context, handler *EventHandler) error {
	if !c.socketMode {
		return ErrNoAppToken
	}
	smClient := socketmode.New(c.api)
	smHandler := socketmode.NewSocketmodeHandler(smClient)

	registerEventHandlers(smHandler, handler)
	registerLifecycleHandlers(smHandler, handler)

	return smHandler.RunEventLoopContext(ctx)
}

// registerEventHandlers wires Events API event types to the appropriate
// EventHandler callbacks.
func registerEventHandlers(smHandler *socketmode.SocketmodeHandler, handler *EventHandler) {
	registerTypedHandler(smHandler, slackevents.Message, func(msg *slackevents.MessageEvent) {
		dispatchMessage(handler, msg)
	})

	// Channel events.
	registerTypedHandler(smHandler, slackevents.ChannelCreated, handler.OnChannelCreated)
	registerTypedHandler(smHandler, slackevents.ChannelDeleted, handler.OnChannelDeleted)
	registerTypedHandler(smHandler, slackevents.ChannelArchive, handler.OnChannelArchive)
	registerTypedHandler(smHandler, slackevents.ChannelUnarchive, handler.OnChannelUnarchive)
	registerTypedHandler(smHandler, slackevents.ChannelRename, handler.OnChannelRename)

	// Membership events.
	registerTypedHandler(smHandler, slackevents.MemberJoinedChannel, handler.OnMemberJoinedChannel)
	registerTypedHandler(smHandler, slackevents.MemberLeftChannel, handler.OnMemberLeftChannel)
}

// dispatchMessage forwards plain messages only; edits and deletions do not
// change the directory.
func dispatchMessage(handler *EventHandler, msg *slackevents.MessageEvent) {
	switch msg.SubType {
	case "message_changed", "message_deleted":
		return
	}
	if handler.OnMessage != nil {
		handler.OnMessage(msg)
	}
}

// registerTypedHandler is a generic helper that registers a HandleEvents callback
// which extracts the inner event, type-asserts it, and calls the provided callback.
func registerTypedHandler[T any](smHandler *socketmode.SocketmodeHandler, eventType slackevents.EventsAPIType, callback func(*T)) {
	smHandler.HandleEvents(eventType, func(evt *socketmode.Event, client *socketmode.Client) {
		client.Ack(*evt.Request)

		apiEvt, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		dispatchTyped(eventType, apiEvt.InnerEvent.Data, callback)
	})
}

func dispatchTyped[T any](eventType slackevents.EventsAPIType, data any, callback func(*T)) {
	inner, ok := data.(*T)
	if !ok {
		slog.Warn("unexpected inner event type",
			"event_type", eventType,
			"data_type", fmt.Sprintf("%T", data))
		return
	}
	if callback != nil {
		callback(inner)
	}
}

// registerLifecycleHandlers wires socketmode-level connection events to the
// appropriate EventHandler callbacks.
func registerLifecycleHandlers(smHandler *socketmode.SocketmodeHandler, handler *EventHandler) {
	smHandler.Handle(socketmode.EventTypeConnected, func(evt *socketmode.Event, _ *socketmode.Client) {
		slog.Info("socket mode connected")
		dispatchLifecycle(handler, socketmode.EventTypeConnected, nil)
	})

	smHandler.Handle(socketmode.EventTypeDisconnect, func(evt *socketmode.Event, _ *socketmode.Client) {
		slog.Warn("socket mode disconnected")
		dispatchLifecycle(handler, socketmode.EventTypeDisconnect, nil)
	})

	smHandler.Handle(socketmode.EventTypeIncomingError, func(evt *socketmode.Event, _ *socketmode.Client) {
		dispatchLifecycle(handler, socketmode.EventTypeIncomingError, evt.Data)
	})

	smHandler.Handle(socketmode.EventTypeConnectionError, func(evt *socketmode.Event, _ *socketmode.Client) {
		slog.Warn("socket mode connection error", "data", evt.Data)
		dispatchLifecycle(handler, socketmode.EventTypeConnectionError, evt.Data)
	})

	smHandler.Handle(socketmode.EventTypeInvalidAuth, func(evt *socketmode.Event, _ *socketmode.Client) {
		slog.Error("socket mode invalid auth")
		dispatchLifecycle(handler, socketmode.EventTypeInvalidAuth, nil)
	})
}

func dispatchLifecycle(handler *EventHandler, kind socketmode.EventType, data any) {
	switch kind {
	case socketmode.EventTypeConnected:
		if handler.OnConnected != nil {
			handler.OnConnected()
		}
	case socketmode.EventTypeDisconnect:
		if handler.OnDisconnected != nil {
			handler.OnDisconnected()
		}
	default:
		if handler.OnError == nil {
			return
		}
		if err, ok := data.(error); ok {
			handler.OnError(err)
			return
		}
		if kind == socketmode.EventTypeInvalidAuth {
			handler.OnError(errors.New("socket mode: invalid auth"))
			return
		}
		handler.OnError(fmt.Errorf("socket mode %s: %v", kind, data))
	}
}
