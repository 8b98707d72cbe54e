// Package lifecycle orchestrates channel and folder creation, invite
// import and channel deletion against the Directory Service, with user
// feedback checkpoints and a tree refresh afterwards.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/tree"
)

// DefaultMinFeedback is how long the "please wait" notice stays up at
// least, regardless of how fast the Directory Service answers.
const DefaultMinFeedback = time.Second

// Stage is a step of a lifecycle operation. Committed and Failed are
// terminal.
type Stage int

const (
	StageRequested Stage = iota
	StageCreated
	StageCommitted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageCreated:
		return "created"
	case StageCommitted:
		return "committed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Op names a lifecycle operation.
type Op string

const (
	OpCreateChannel Op = "create_channel"
	OpImportChannel Op = "import_channel"
	OpCreateFolder  Op = "create_folder"
	OpDeleteChannel Op = "delete_channel"
)

// Transition is reported on every stage change.
type Transition struct {
	Op    Op
	Stage Stage
	// Name is the requested name until StageCreated, the canonical name
	// afterwards.
	Name string
	Err  error
}

// Notice is a transient message for the user.
type Notice struct {
	Title    string
	Detail   string
	Duration time.Duration
	IsError  bool
}

// Notifier shows transient notices.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Refresher forces a tree resynchronization.
type Refresher interface {
	Refresh(ctx context.Context) (*tree.Result, error)
}

// rollbacker is implemented by services that can drop pending structural
// changes after a failed operation.
type rollbacker interface {
	Rollback(ctx context.Context) error
}

// Controller runs lifecycle operations. It never mutates the local tree;
// results become visible through the refresh that follows each operation.
type Controller struct {
	svc          directory.LifecycleService
	notifier     Notifier
	refresher    Refresher
	minFeedback  time.Duration
	onTransition func(Transition)
	onDone       func(op Op, name string)
	now          func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithMinFeedback sets the minimum feedback duration.
func WithMinFeedback(d time.Duration) Option {
	return func(c *Controller) { c.minFeedback = d }
}

// WithRefresher sets the tree refresher used after each operation.
func WithRefresher(r Refresher) Option {
	return func(c *Controller) { c.refresher = r }
}

// WithTransitionHook registers fn for every stage change.
func WithTransitionHook(fn func(Transition)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// WithDoneHook registers fn to run after an operation commits, typically
// to close the dialog that started it.
func WithDoneHook(fn func(op Op, name string)) Option {
	return func(c *Controller) { c.onDone = fn }
}

// New creates a Controller.
func New(svc directory.LifecycleService, notifier Notifier, opts ...Option) *Controller {
	c := &Controller{
		svc:         svc,
		notifier:    notifier,
		minFeedback: DefaultMinFeedback,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(Notice) {})
	}
	return c
}

// CreateChannel creates a channel, registers it in target and commits.
// It returns the canonical name assigned by the Directory Service.
func (c *Controller) CreateChannel(ctx context.Context, name string, target directory.FolderPath) (string, error) {
	name = strings.TrimSpace(name)
	return c.run(ctx, flow{
		op:      OpCreateChannel,
		name:    name,
		pending: "Creating Channel...",
		done:    "Create Complete!",
		validate: func() error {
			return requireName(name)
		},
		create: func(ctx context.Context) (string, error) {
			return c.svc.CreateChannel(ctx, name, target)
		},
		register: func(ctx context.Context, canonical string) error {
			return c.svc.AddToFolderList(ctx, canonical, target)
		},
	})
}

// ImportChannel redeems an invite code into target, optionally recreating
// the folder structure carried by the invite.
func (c *Controller) ImportChannel(ctx context.Context, inviteCode string, target directory.FolderPath, includeFolderStructure bool) (string, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	return c.run(ctx, flow{
		op:      OpImportChannel,
		name:    inviteCode,
		pending: "Importing Channels...",
		done:    "Import Complete!",
		validate: func() error {
			if err := validation.Validate(inviteCode, validation.Required); err != nil {
				return &directory.ValidationError{Field: "invite code", Message: err.Error()}
			}
			return nil
		},
		create: func(ctx context.Context) (string, error) {
			return c.svc.ImportChannel(ctx, inviteCode, target, includeFolderStructure)
		},
	})
}

// CreateFolder adds a folder under parent.
func (c *Controller) CreateFolder(ctx context.Context, name string, parent directory.FolderPath) error {
	name = strings.TrimSpace(name)
	_, err := c.run(ctx, flow{
		op:      OpCreateFolder,
		name:    name,
		pending: "Creating Folder...",
		done:    "Folder Created!",
		validate: func() error {
			return requireName(name)
		},
		create: func(ctx context.Context) (string, error) {
			if err := c.svc.CreateFolder(ctx, name, parent); err != nil {
				return "", err
			}
			return name, nil
		},
	})
	return err
}

// DeleteChannel removes channel. The tree is not touched locally.
func (c *Controller) DeleteChannel(ctx context.Context, channel string) error {
	c.transition(Transition{Op: OpDeleteChannel, Stage: StageRequested, Name: channel})
	if err := c.svc.RemoveChannel(ctx, channel); err != nil {
		err = fmt.Errorf("removing channel %s: %w", channel, err)
		c.fail(OpDeleteChannel, channel, err)
		return err
	}
	slog.Info("channel removed", "channel", channel)
	c.transition(Transition{Op: OpDeleteChannel, Stage: StageCommitted, Name: channel})
	c.notifier.Notify(Notice{Title: "Channel Removed", Detail: channel, Duration: c.minFeedback})
	if c.onDone != nil {
		c.onDone(OpDeleteChannel, channel)
	}
	c.refresh(ctx)
	return nil
}

// flow describes one checkpointed operation.
type flow struct {
	op       Op
	name     string
	pending  string
	done     string
	validate func() error
	create   func(ctx context.Context) (string, error)
	// register is optional and runs between creation and commit.
	register func(ctx context.Context, canonical string) error
}

func (c *Controller) run(ctx context.Context, f flow) (string, error) {
	start := c.now()
	c.transition(Transition{Op: f.op, Stage: StageRequested, Name: f.name})

	if err := f.validate(); err != nil {
		c.fail(f.op, f.name, err)
		return "", err
	}

	c.notifier.Notify(Notice{Title: f.pending, Detail: "Please Wait", Duration: c.minFeedback})

	canonical, err := f.create(ctx)
	if err != nil {
		c.fail(f.op, f.name, err)
		return "", err
	}
	c.transition(Transition{Op: f.op, Stage: StageCreated, Name: canonical})

	if f.register != nil {
		if err := f.register(ctx, canonical); err != nil {
			err = fmt.Errorf("adding %s to folder list: %w", canonical, err)
			c.abort(ctx, f.op, canonical, err)
			return "", err
		}
	}

	if err := c.pace(ctx, start); err != nil {
		c.abort(ctx, f.op, canonical, err)
		return "", err
	}

	if err := c.svc.Commit(ctx); err != nil {
		err = fmt.Errorf("committing %s: %w", canonical, err)
		c.abort(ctx, f.op, canonical, err)
		return "", err
	}

	slog.Info("lifecycle operation committed", "op", f.op, "requested", f.name, "canonical", canonical)
	c.transition(Transition{Op: f.op, Stage: StageCommitted, Name: canonical})
	c.notifier.Notify(Notice{Title: f.done, Detail: canonical, Duration: c.minFeedback})
	if c.onDone != nil {
		c.onDone(f.op, canonical)
	}
	c.refresh(ctx)
	return canonical, nil
}

// pace holds the pending notice for the rest of the minimum feedback
// duration measured from start.
func (c *Controller) pace(ctx context.Context, start time.Time) error {
	remaining := c.minFeedback - c.now().Sub(start)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// abort rolls back pending changes when the service supports it, then
// reports the failure.
func (c *Controller) abort(ctx context.Context, op Op, name string, err error) {
	if rb, ok := c.svc.(rollbacker); ok {
		if rbErr := rb.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			slog.Warn("rollback failed", "op", op, "name", name, "error", rbErr)
		}
	}
	c.fail(op, name, err)
}

func (c *Controller) fail(op Op, name string, err error) {
	slog.Error("lifecycle operation failed", "op", op, "name", name, "error", err)
	c.transition(Transition{Op: op, Stage: StageFailed, Name: name, Err: err})
	c.notifier.Notify(Notice{Title: "Failed", Detail: err.Error(), Duration: 3 * c.minFeedback, IsError: true})
}

func (c *Controller) refresh(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	if _, err := c.refresher.Refresh(ctx); err != nil {
		slog.Warn("tree refresh after lifecycle operation failed", "error", err)
	}
}

func (c *Controller) transition(t Transition) {
	slog.Debug("lifecycle transition", "op", t.Op, "stage", t.Stage, "name", t.Name)
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

func requireName(name string) error {
	if err := validation.Validate(name, validation.Required); err != nil {
		return &directory.CreationError{Name: name, Message: "name is required"}
	}
	return nil
}
