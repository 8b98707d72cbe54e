// Package slackdir serves the channel directory from a Slack workspace.
// Slack owns the channels and their membership; folders, placement,
// invites and challenge flags live in a local store mirrored from it.
package slackdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/cjrutherford/qd-messages/internal/directory"
	slackclient "github.com/cjrutherford/qd-messages/internal/slack"
	"github.com/cjrutherford/qd-messages/internal/store"
)

// ResyncInterval is how often the channel list is polled when socket mode
// events are unavailable or missed.
const ResyncInterval = 5 * time.Minute

// maxNameAttempts bounds the -2, -3, ... suffixes tried when Slack reports
// a name as taken.
const maxNameAttempts = 20

// API is the subset of the Slack client the directory uses.
type API interface {
	SocketMode() bool
	RunSocketMode(ctx context.Context, handler *slackclient.EventHandler) error
	MemberChannels(ctx context.Context) ([]slack.Channel, error)
	FindChannel(ctx context.Context, name string) (*slack.Channel, error)
	CreateConversation(ctx context.Context, name string, isPrivate bool) (*slack.Channel, error)
	ArchiveConversation(ctx context.Context, channelID string) error
	JoinConversation(ctx context.Context, channelID string) (*slack.Channel, error)
	ConversationMembers(ctx context.Context, channelID string) ([]string, error)
	Users(ctx context.Context) ([]slack.User, error)
	PostMessage(ctx context.Context, channelID, text string) error
	UploadFile(ctx context.Context, channelID, path, name string) error
}

// Directory implements directory.Service on top of Slack. Operations
// that Slack has no notion of are answered by the embedded store.
type Directory struct {
	*store.Store

	api    API
	selfID string

	mu    sync.Mutex
	ids   map[string]string // channel name -> Slack ID
	users map[string]string // user ID -> handle

	resync chan struct{}
	ready  chan struct{}
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ directory.Service = (*Directory)(nil)

// New returns a Directory for the Slack user selfID. local must have been
// opened with the user's handle as identity.
func New(api API, local *store.Store, selfID string) *Directory {
	return &Directory{
		Store:  local,
		api:    api,
		selfID: selfID,
		ids:    make(map[string]string),
		users:  make(map[string]string),
		resync: make(chan struct{}, 1),
		ready:  make(chan struct{}),
	}
}

// Start mirrors the channel list and keeps it current until Close. Ready
// is closed after the first mirror attempt, successful or not.
func (d *Directory) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Sync(ctx); err != nil {
			slog.Error("initial channel sync failed", "error", err)
		}
		d.once.Do(func() { close(d.ready) })
		d.syncLoop(ctx)
	}()

	if d.api.SocketMode() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runEvents(ctx)
		}()
	}
}

// Ready is closed once the first channel sync has finished.
func (d *Directory) Ready() <-chan struct{} { return d.ready }

// Close stops background syncing and closes the local store.
func (d *Directory) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return d.Store.Close()
}

// Sync fetches the user's channels from Slack and mirrors them locally.
func (d *Directory) Sync(ctx context.Context) error {
	channels, err := d.api.MemberChannels(ctx)
	if err != nil {
		return fmt.Errorf("listing slack channels: %w", err)
	}

	ids := make(map[string]string, len(channels))
	mirrored := make([]store.MirroredChannel, 0, len(channels))
	for _, ch := range channels {
		ids[ch.Name] = ch.ID
		mirrored = append(mirrored, store.MirroredChannel{Name: ch.Name, Owner: d.ownerName(ch.Creator)})
	}

	d.mu.Lock()
	d.ids = ids
	d.mu.Unlock()

	_, err = d.Store.MirrorChannels(ctx, mirrored)
	return err
}

// ownerName maps a Slack creator ID onto the local owner column.
func (d *Directory) ownerName(creator string) string {
	if creator == d.selfID {
		return d.Store.Identity()
	}
	return creator
}

// requestSync schedules a sync, coalescing bursts of events.
func (d *Directory) requestSync() {
	select {
	case d.resync <- struct{}{}:
	default:
	}
}

func (d *Directory) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(ResyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.resync:
		}
		if err := d.Sync(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("channel sync failed", "error", err)
		}
	}
}

func (d *Directory) runEvents(ctx context.Context) {
	changed := func() { d.requestSync() }
	handler := &slackclient.EventHandler{
		OnChannelCreated:      func(*slackevents.ChannelCreatedEvent) { changed() },
		OnChannelDeleted:      func(*slackevents.ChannelDeletedEvent) { changed() },
		OnChannelArchive:      func(*slackevents.ChannelArchiveEvent) { changed() },
		OnChannelUnarchive:    func(*slackevents.ChannelUnarchiveEvent) { changed() },
		OnChannelRename:       func(*slackevents.ChannelRenameEvent) { changed() },
		OnMemberJoinedChannel: func(*slackevents.MemberJoinedChannelEvent) { changed() },
		OnMemberLeftChannel:   func(*slackevents.MemberLeftChannelEvent) { changed() },
		OnConnected:           changed,
		OnError: func(err error) {
			slog.Warn("socket mode error", "error", err)
		},
	}
	if err := d.api.RunSocketMode(ctx, handler); err != nil && ctx.Err() == nil {
		slog.Error("socket mode stopped", "error", err)
	}
}

func (d *Directory) channelID(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	id, ok := d.ids[name]
	d.mu.Unlock()
	if ok {
		return id, nil
	}
	ch, err := d.api.FindChannel(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up channel %s: %w", name, err)
	}
	if ch == nil {
		return "", &directory.NotFoundError{Resource: "channel", ID: name}
	}
	d.mu.Lock()
	d.ids[ch.Name] = ch.ID
	d.mu.Unlock()
	return ch.ID, nil
}

// CreateChannel creates the channel on Slack right away and reserves its
// placement locally until Commit. Slack decides the canonical name.
func (d *Directory) CreateChannel(ctx context.Context, name string, target directory.FolderPath) (string, error) {
	base := store.Canonicalize(name)
	if base == "" {
		return "", &directory.CreationError{Name: name, Message: "name has no usable characters"}
	}

	var (
		ch  *slack.Channel
		err error
	)
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		ch, err = d.api.CreateConversation(ctx, candidate, false)
		if err == nil || !slackclient.HasErrorCode(err, "name_taken") {
			break
		}
	}
	if err != nil {
		return "", &directory.CreationError{Name: name, Message: "slack rejected the channel", Err: err}
	}

	d.mu.Lock()
	d.ids[ch.Name] = ch.ID
	d.mu.Unlock()

	if err := d.Store.ReserveChannel(ctx, ch.Name, target); err != nil {
		return "", err
	}
	slog.Info("slack channel created", "requested", name, "canonical", ch.Name, "id", ch.ID)
	return ch.Name, nil
}

// ImportChannel redeems the invite locally and joins the channel on Slack.
func (d *Directory) ImportChannel(ctx context.Context, inviteCode string, target directory.FolderPath, includeFolderStructure bool) (string, error) {
	name, err := d.Store.ImportChannel(ctx, inviteCode, target, includeFolderStructure)
	if err != nil {
		return "", err
	}

	join := func() error {
		id, err := d.channelID(ctx, name)
		if err != nil {
			return err
		}
		_, err = d.api.JoinConversation(ctx, id)
		return err
	}
	if err := join(); err != nil {
		d.Store.Rollback(context.WithoutCancel(ctx))
		return "", &directory.CreationError{Name: name, Message: "joining slack channel failed", Err: err}
	}
	return name, nil
}

// RemoveChannel archives the channel on Slack and drops it locally.
func (d *Directory) RemoveChannel(ctx context.Context, channel string) error {
	owner, err := d.Store.IsOwner(ctx, channel)
	if err != nil {
		return err
	}
	if !owner {
		return &directory.PermissionError{Action: "remove", Channel: channel}
	}
	id, err := d.channelID(ctx, channel)
	if err != nil {
		return err
	}
	if err := d.api.ArchiveConversation(ctx, id); err != nil {
		return fmt.Errorf("archiving %s: %w", channel, err)
	}
	return d.Store.RemoveChannel(ctx, channel)
}

// MentionCandidates returns the handles of the channel's other members.
func (d *Directory) MentionCandidates(ctx context.Context, channel string) ([]string, error) {
	id, err := d.channelID(ctx, channel)
	if err != nil {
		return nil, err
	}
	members, err := d.api.ConversationMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", channel, err)
	}

	names := make([]string, 0, len(members))
	for _, uid := range members {
		if uid == d.selfID {
			continue
		}
		name, err := d.userName(ctx, uid)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// userName resolves a user ID, reloading the user list on a miss.
func (d *Directory) userName(ctx context.Context, uid string) (string, error) {
	d.mu.Lock()
	name, ok := d.users[uid]
	d.mu.Unlock()
	if ok {
		return name, nil
	}

	users, err := d.api.Users(ctx)
	if err != nil {
		return "", fmt.Errorf("listing users: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		d.users[u.ID] = u.Name
	}
	if name, ok := d.users[uid]; ok {
		return name, nil
	}
	// Unknown users (deleted, external) are mentioned by ID.
	d.users[uid] = uid
	return uid, nil
}

// PostMessage uploads each attachment, then posts the text if any.
func (d *Directory) PostMessage(ctx context.Context, channel, text string, files []directory.Attachment) error {
	id, err := d.channelID(ctx, channel)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := d.api.UploadFile(ctx, id, f.Path, f.Name); err != nil {
			errs = append(errs, fmt.Errorf("uploading %s: %w", f.Name, err))
		}
	}
	if text != "" {
		if err := d.api.PostMessage(ctx, id, text); err != nil {
			errs = append(errs, fmt.Errorf("posting to %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}
