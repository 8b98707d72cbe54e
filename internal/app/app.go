package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/clipboard"
	"github.com/cjrutherford/qd-messages/internal/composer"
	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/invites"
	"github.com/cjrutherford/qd-messages/internal/lifecycle"
	"github.com/cjrutherford/qd-messages/internal/selection"
	"github.com/cjrutherford/qd-messages/internal/store"
	"github.com/cjrutherford/qd-messages/internal/tree"
	"github.com/cjrutherford/qd-messages/internal/ui/chat"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// noticeDuration is how long informational notices stay in the status bar.
const noticeDuration = 4 * time.Second

// App is the top-level application struct.
type App struct {
	Config   *config.Config
	tview    *tview.Application
	chatView *chat.View
	backend  *Backend

	tree      *tree.Sync
	bridge    *selection.Bridge
	invites   *invites.Manager
	lifecycle *lifecycle.Controller
	mentions  *composer.MentionCache

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	mentionCancel context.CancelFunc
	unsubscribe   []func()
}

// New creates a new App with the given config.
func New(cfg *config.Config) *App {
	return &App{
		Config: cfg,
		tview:  tview.NewApplication(),
	}
}

// Run opens the configured Directory Service and starts the TUI event loop.
func (a *App) Run() error {
	a.ctx, a.cancel = context.WithCancel(context.Background())
	defer a.cancel()

	// Set up OS signal handling for graceful shutdown.
	sigCtx, sigStop := signal.NotifyContext(a.ctx, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCtx.Done()
		sigStop()
		a.shutdown()
	}()

	backend, err := OpenBackend(a.ctx, a.Config)
	if err != nil {
		return fmt.Errorf("opening %s directory: %w", a.Config.Directory.Backend, err)
	}
	defer func() {
		a.cancel()
		if err := backend.Close(); err != nil {
			slog.Error("closing directory", "error", err)
		}
	}()

	a.tview.EnableMouse(a.Config.Mouse)
	a.tview.SetInputCapture(a.handleGlobalKey)
	a.showMain(backend)

	go a.start(a.ctx)
	return a.tview.Run()
}

// shutdown stops background work and the TUI.
func (a *App) shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Lock()
	unsubs := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
	if a.invites != nil {
		a.invites.Close()
	}

	a.tview.Stop()
}

// handleGlobalKey processes global keybindings. It returns nil to consume the
// event or the original event to let it propagate.
func (a *App) handleGlobalKey(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())

	if name == a.Config.Keybinds.Quit {
		a.shutdown()
		return nil
	}

	if a.chatView != nil {
		return a.chatView.HandleKey(event)
	}

	return event
}

// showMain builds the core components on top of backend and sets the root
// to the chat layout.
func (a *App) showMain(backend *Backend) {
	a.backend = backend
	a.tree = tree.NewSync(backend, nil)
	a.bridge = selection.NewBridge(backend)
	a.invites = invites.NewManager(backend)
	a.mentions = composer.NewMentionCache(backend)
	a.lifecycle = lifecycle.New(backend, lifecycle.NotifierFunc(a.onNotice),
		lifecycle.WithMinFeedback(a.Config.Feedback.MinDuration.Std()),
		lifecycle.WithRefresher(a.tree),
		lifecycle.WithTransitionHook(a.onTransition),
		lifecycle.WithDoneHook(a.onLifecycleDone),
	)

	a.chatView = chat.New(a.tview, a.Config)
	a.wireView()

	a.mu.Lock()
	a.unsubscribe = append(a.unsubscribe,
		a.tree.Subscribe(a.onTree),
		a.bridge.Subscribe(a.onChannelSelected),
		a.invites.Subscribe(a.onInviteState),
	)
	a.mu.Unlock()

	a.chatView.StatusBar.SetConnectionStatus(backend.Label + " · loading channels...")
	a.tview.SetRoot(a.chatView, true)
	a.chatView.FocusPanel(chat.PanelChannels)
}

// wireView connects the chat view callbacks.
func (a *App) wireView() {
	v := a.chatView

	v.ChannelsTree.SetOnChannelSelected(func(name string) {
		go a.bridge.Select(a.ctx, name)
	})
	v.ChannelsTree.SetOnContextMenu(v.ShowContextMenu)
	v.ChannelsTree.SetOnCopyName(a.copyToClipboard)

	v.ContextMenu.SetOnSelect(a.onMenuAction)
	v.ChannelForm.SetOnSubmit(a.onFormSubmit)

	v.SettingsPanel.SetOnGenerate(a.onGenerateInvite)
	v.SettingsPanel.SetOnCopyLink(a.copyToClipboard)
	v.SettingsPanel.SetOnShowQR(func(link string) {
		if err := v.ShowQR(link); err != nil {
			v.SettingsPanel.SetStatus(err.Error())
		}
	})
	v.SettingsPanel.SetOnRevoke(a.onRevokeInvite)
	v.SettingsPanel.SetOnToggleChallenge(a.onToggleChallenge)
	v.SettingsPanel.SetOnDelete(func(channel string) {
		v.Confirm(fmt.Sprintf("Delete #%s? This cannot be undone.", channel), func() {
			a.onDeleteChannel(channel)
		})
	})

	v.SetMentionFilter(a.mentions.Filter)
	v.MessageInput.SetOnSend(a.onSend)
	v.MessageInput.SetOnError(func(err error) { a.showNotice(err.Error(), true) })
	v.MessageInput.SetOnEmojiRequest(v.ShowEmojiPicker)
	v.MessageInput.SetOnAttachRequest(func() {
		v.ShowAttachPicker(a.onAttach)
	})
	v.EmojiPicker.SetOnSelect(func(code string) {
		if err := v.MessageInput.InsertEmoji(code); err != nil {
			a.showNotice(err.Error(), true)
		}
		v.FocusPanel(chat.PanelInput)
	})
}

// start waits for the backend, loads the first tree and follows updates
// until ctx is done.
func (a *App) start(ctx context.Context) {
	if err := a.backend.WaitReady(ctx); err != nil {
		return
	}
	a.tview.QueueUpdateDraw(func() {
		a.chatView.StatusBar.SetConnectionStatus(a.backend.Label)
	})

	if _, err := a.tree.Refresh(ctx); err != nil {
		slog.Error("failed to load channel tree", "error", err)
		a.showNotice("Loading channels failed: "+err.Error(), true)
	}

	if err := a.tree.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("tree sync stopped", "error", err)
		a.showNotice("Live channel updates stopped: "+err.Error(), true)
	}
}

func (a *App) onTree(res *tree.Result) {
	for _, w := range res.Warnings {
		slog.Debug("tree warning", "error", w)
	}
	a.tview.QueueUpdateDraw(func() {
		a.chatView.ChannelsTree.SetData(res)
	})
}

// onChannelSelected runs for every accepted selection. It is called on the
// goroutine that made the selection.
func (a *App) onChannelSelected(channel string) {
	slog.Debug("channel selected", "channel", channel)

	go func() {
		if err := a.invites.OnSelectionChanged(a.ctx, channel); err != nil {
			slog.Warn("failed to load channel settings", "channel", channel, "error", err)
		}
	}()
	a.followMentions(channel)

	a.tview.QueueUpdateDraw(func() {
		a.chatView.SetChannelHeader(channel)
		a.chatView.StatusBar.SetChannel(channel)
		a.chatView.MessageInput.SetChannel(channel)
		a.chatView.MessagesList.SetPlaceholder(channel, "Loading...")
	})
	go a.loadMessages(channel)
}

// followMentions restarts the mention cache refresher for channel.
func (a *App) followMentions(channel string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mentionCancel != nil {
		a.mentionCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.mentionCancel = cancel
	go a.mentions.Run(ctx, channel, a.Config.Mentions.RefreshInterval.Std())
}

// loadMessages fetches recent history and shows it if channel is still
// selected.
func (a *App) loadMessages(channel string) {
	if a.backend.History == nil {
		a.tview.QueueUpdateDraw(func() {
			a.chatView.MessagesList.SetPlaceholder(channel, "History for this channel is shown in the workspace client.")
		})
		return
	}

	msgs, err := a.backend.History(a.ctx, channel, a.Config.MessagesLimit)
	if err != nil {
		slog.Error("failed to fetch messages", "channel", channel, "error", err)
		a.showNotice("Loading messages failed: "+err.Error(), true)
		return
	}
	entries := messageEntries(msgs)

	a.tview.QueueUpdateDraw(func() {
		if a.bridge.Current() != channel {
			return
		}
		if len(entries) == 0 {
			a.chatView.MessagesList.SetPlaceholder(channel, "No messages yet.")
			return
		}
		a.chatView.MessagesList.SetMessages(channel, entries)
	})
}

func messageEntries(msgs []store.Message) []chat.MessageEntry {
	entries := make([]chat.MessageEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = chat.MessageEntry{
			Author: m.Author,
			Body:   m.Body,
			Files:  m.Files,
			Time:   m.CreatedAt.Local(),
		}
	}
	return entries
}

func (a *App) onInviteState(st invites.State) {
	a.tview.QueueUpdateDraw(func() {
		a.chatView.SettingsPanel.SetState(st)
	})
}

func (a *App) onMenuAction(action chat.MenuAction, target directory.FolderPath) {
	var folders []directory.FolderPath
	for _, e := range a.tree.Last().Folders() {
		folders = append(folders, e.Path)
	}

	mode := chat.FormCreateChannel
	switch action {
	case chat.ActionImportChannel:
		mode = chat.FormImportChannel
	case chat.ActionCreateFolder:
		mode = chat.FormCreateFolder
	}
	a.chatView.ShowChannelForm(mode, folders, target)
}

// onFormSubmit runs the requested lifecycle operation off the event loop.
// The form closes through the done hook once the operation commits.
func (a *App) onFormSubmit(req chat.FormRequest) {
	a.chatView.ChannelForm.SetBusy(true)

	go func() {
		var err error
		switch req.Mode {
		case chat.FormCreateChannel:
			_, err = a.lifecycle.CreateChannel(a.ctx, req.Name, req.Target)
		case chat.FormImportChannel:
			_, err = a.lifecycle.ImportChannel(a.ctx, req.Code, req.Target, req.IncludeFolderStructure)
		case chat.FormCreateFolder:
			err = a.lifecycle.CreateFolder(a.ctx, req.Name, req.Target)
		}

		a.tview.QueueUpdateDraw(func() {
			a.chatView.ChannelForm.SetBusy(false)
			if err != nil {
				a.chatView.ChannelForm.SetStatus(err.Error())
			}
		})
	}()
}

func (a *App) onTransition(tr lifecycle.Transition) {
	slog.Debug("lifecycle transition", "op", tr.Op, "stage", tr.Stage, "name", tr.Name)
	if tr.Op == lifecycle.OpDeleteChannel {
		return
	}
	a.tview.QueueUpdateDraw(func() {
		a.chatView.ChannelForm.SetStatus(transitionText(tr))
	})
}

func transitionText(tr lifecycle.Transition) string {
	switch tr.Stage {
	case lifecycle.StageRequested:
		return "Working on " + tr.Name + "..."
	case lifecycle.StageCreated:
		return "Saving " + tr.Name + "..."
	case lifecycle.StageCommitted:
		return "Done"
	default:
		if tr.Err != nil {
			return tr.Err.Error()
		}
		return "Failed"
	}
}

func (a *App) onLifecycleDone(op lifecycle.Op, name string) {
	a.tview.QueueUpdateDraw(func() {
		if op == lifecycle.OpDeleteChannel {
			return
		}
		a.chatView.HideChannelForm()
	})
	if op == lifecycle.OpCreateChannel || op == lifecycle.OpImportChannel {
		a.bridge.Select(a.ctx, name)
	}
}

func (a *App) onNotice(n lifecycle.Notice) {
	text := n.Title
	if n.Detail != "" {
		text += ": " + n.Detail
	}
	a.showNoticeFor(text, n.IsError, n.Duration)
}

func (a *App) onGenerateInvite(req chat.InviteRequest) {
	go func() {
		link, err := a.invites.Issue(a.ctx, req.Channel, req.MaxUses, req.IncludeFolderStructure)
		a.tview.QueueUpdateDraw(func() {
			if err != nil {
				slog.Error("failed to create invite", "channel", req.Channel, "error", err)
				a.chatView.SettingsPanel.SetStatus("Invite failed: " + err.Error())
				return
			}
			a.chatView.SettingsPanel.SetStatus("Created " + link)
		})
	}()
}

func (a *App) onRevokeInvite(channel, link string) {
	go func() {
		err := a.invites.Revoke(a.ctx, channel, link)
		a.tview.QueueUpdateDraw(func() {
			if err != nil {
				slog.Error("failed to revoke invite", "channel", channel, "error", err)
				a.chatView.SettingsPanel.SetStatus("Revoke failed: " + err.Error())
				return
			}
			a.chatView.SettingsPanel.SetStatus("Revoked")
		})
	}()
}

func (a *App) onToggleChallenge(channel string, enabled bool) {
	go func() {
		err := a.invites.SetChallenge(a.ctx, channel, enabled)
		a.tview.QueueUpdateDraw(func() {
			if err != nil {
				slog.Error("failed to change challenge flow", "channel", channel, "error", err)
				a.chatView.SettingsPanel.SetStatus("Challenge flow change failed: " + err.Error())
				return
			}
			state := "disabled"
			if enabled {
				state = "enabled"
			}
			a.chatView.SettingsPanel.SetStatus("Challenge flow " + state)
		})
	}()
}

func (a *App) onDeleteChannel(channel string) {
	go func() {
		if err := a.lifecycle.DeleteChannel(a.ctx, channel); err != nil {
			// The controller already showed the failure notice.
			return
		}
		if a.bridge.Current() == channel {
			a.invites.Clear()
		}
		a.tview.QueueUpdateDraw(func() {
			a.chatView.HideSettings()
			if a.chatView.MessageInput.Channel() == channel {
				a.chatView.SetChannelHeader(directory.NoChannelSelected)
				a.chatView.StatusBar.SetChannel("")
				a.chatView.MessageInput.SetChannel(directory.NoChannelSelected)
				a.chatView.MessagesList.SetPlaceholder(directory.NoChannelSelected, "Channel deleted.")
			}
		})
	}()
}

// onSend delivers a draft snapshot. The input is only cleared when the
// message went out, so a failed send can be retried.
func (a *App) onSend(channel string, d *composer.Draft) {
	go func() {
		err := composer.Send(a.ctx, a.backend, channel, d)
		a.tview.QueueUpdateDraw(func() {
			if err != nil {
				slog.Error("failed to send message", "channel", channel, "error", err)
				a.showNotice("Send failed: "+err.Error(), true)
				return
			}
			if a.chatView.MessageInput.Channel() == channel {
				a.chatView.MessageInput.Reset()
			}
		})
		if err == nil {
			a.loadMessages(channel)
		}
	}()
}

func (a *App) onAttach(path string) {
	att, err := a.chatView.MessageInput.Attach(path)
	if err != nil {
		a.showNotice("Attach failed: "+err.Error(), true)
		return
	}
	a.chatView.FocusPanel(chat.PanelInput)
	a.showNotice("Attached "+att.Name, false)
}

func (a *App) copyToClipboard(text string) {
	if err := clipboard.WriteText(text); err != nil {
		slog.Warn("clipboard write failed", "error", err)
		a.showNotice("Copy failed: "+err.Error(), true)
		return
	}
	a.showNotice("Copied "+text, false)
}

// showNotice shows a notice that expires after noticeDuration.
func (a *App) showNotice(text string, isError bool) {
	a.showNoticeFor(text, isError, noticeDuration)
}

// showNoticeFor shows a notice for d, or until replaced when d is zero.
// Safe to call from any goroutine.
func (a *App) showNoticeFor(text string, isError bool, d time.Duration) {
	go a.tview.QueueUpdateDraw(func() {
		id := a.chatView.StatusBar.SetNotice(text, isError)
		if d <= 0 {
			return
		}
		time.AfterFunc(d, func() {
			a.tview.QueueUpdateDraw(func() {
				a.chatView.StatusBar.ClearNotice(id)
			})
		})
	})
}
