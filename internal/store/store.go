// Package store is the local Directory Service: channels, folders,
// memberships, invites and messages kept in a sqlite database file.
//
// Structural changes (new channels, folders, placements and joins) are
// buffered until Commit applies them in one transaction. Tree watchers are
// fed by in-process commits and by file events on the database, so several
// processes can share one file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// DefaultDebounce collapses bursts of database file events.
const DefaultDebounce = 200 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS channels (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	challenge  INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
	channel TEXT NOT NULL REFERENCES channels(name) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	folder  TEXT NOT NULL DEFAULT '/',
	PRIMARY KEY (channel, name)
);
CREATE TABLE IF NOT EXISTS invites (
	link           TEXT PRIMARY KEY,
	channel        TEXT NOT NULL REFERENCES channels(name) ON DELETE CASCADE,
	max_uses       INTEGER NOT NULL,
	uses           INTEGER NOT NULL DEFAULT 0,
	folder_payload TEXT,
	created_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	channel    TEXT NOT NULL REFERENCES channels(name) ON DELETE CASCADE,
	author     TEXT NOT NULL,
	body       TEXT NOT NULL,
	files      TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, created_at);
`

// Option configures a Store.
type Option func(*Store)

// WithIdentity sets the name of the local user. Channels created through
// the store are owned by it and the tree shows its memberships.
func WithIdentity(name string) Option {
	return func(s *Store) { s.identity = name }
}

// WithDebounce sets the file event debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithoutFileWatch disables watching the database file.
func WithoutFileWatch() Option {
	return func(s *Store) { s.fileWatch = false }
}

var _ directory.Service = (*Store)(nil)

// Store is a sqlite-backed directory.Service.
type Store struct {
	db        *sql.DB
	path      string
	identity  string
	debounce  time.Duration
	fileWatch bool
	ready     chan struct{}

	mu       sync.Mutex
	pending  changeSet
	watchers map[chan struct{}]struct{}

	watcher *fsnotify.Watcher
	timer   *time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:      path,
		identity:  "me",
		debounce:  DefaultDebounce,
		fileWatch: true,
		ready:     make(chan struct{}),
		watchers:  make(map[chan struct{}]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	s.db = db

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.fileWatch {
		if err := s.startFileWatch(watchCtx); err != nil {
			slog.Warn("database file watch disabled", "path", path, "error", err)
			close(s.done)
		}
	} else {
		close(s.done)
	}

	slog.Info("local directory opened", "path", path, "identity", s.identity)
	close(s.ready)
	return s, nil
}

// Identity returns the local user name.
func (s *Store) Identity() string { return s.identity }

// Ready is closed once the store can serve requests.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Close stops the file watch and closes the database.
func (s *Store) Close() error {
	s.cancel()
	<-s.done

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	for ch := range s.watchers {
		delete(s.watchers, ch)
	}
	s.mu.Unlock()

	return s.db.Close()
}

func (s *Store) startFileWatch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	// The directory is watched so that the -wal and -shm companions are
	// seen as well.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w
	go s.watchLoop(ctx)
	return nil
}

func (s *Store) watchLoop(ctx context.Context) {
	defer close(s.done)
	defer s.watcher.Close()

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if name != base && name != base+"-wal" {
				continue
			}
			s.scheduleKick()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("database file watch error", "error", err)
		}
	}
}

// scheduleKick fires kick once the file has been quiet for the debounce
// window.
func (s *Store) scheduleKick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.kick)
}

// kick wakes every tree watcher.
func (s *Store) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) addWatcher() chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Store) removeWatcher(ch chan struct{}) {
	s.mu.Lock()
	delete(s.watchers, ch)
	s.mu.Unlock()
}
