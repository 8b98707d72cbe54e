package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

type folderRow struct {
	path   string
	parent string
	name   string
}

type channelRow struct {
	name     string
	folder   string
	messages int
}

// ChannelFolderTree returns the folders and the channels the local user is
// a member of, folders before channels at each level, in creation order.
func (s *Store) ChannelFolderTree(ctx context.Context) ([]directory.Node, error) {
	folders, err := s.loadFolders(ctx)
	if err != nil {
		return nil, err
	}
	channels, err := s.loadMemberChannels(ctx)
	if err != nil {
		return nil, err
	}

	subfolders := make(map[string][]folderRow)
	for _, f := range folders {
		subfolders[f.parent] = append(subfolders[f.parent], f)
	}
	placed := make(map[string][]channelRow)
	for _, c := range channels {
		placed[c.folder] = append(placed[c.folder], c)
	}

	var build func(path string, depth int) []directory.Node
	build = func(path string, depth int) []directory.Node {
		var nodes []directory.Node
		for _, f := range subfolders[path] {
			var children []directory.Node
			// Bounds recursion on a hand-edited row whose parent is
			// itself.
			if depth <= len(folders) {
				children = build(f.path, depth+1)
			}
			nodes = append(nodes, directory.Node{
				Data:     &directory.NodeData{Name: f.name, Items: len(children), Kind: directory.KindFolder},
				Children: children,
			})
		}
		for _, c := range placed[path] {
			nodes = append(nodes, directory.Node{
				Data: &directory.NodeData{Name: c.name, Items: c.messages, Kind: directory.KindChannel},
			})
		}
		return nodes
	}

	return build(directory.FolderPath{}.String(), 0), nil
}

func (s *Store) loadFolders(ctx context.Context) ([]folderRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, parent, name FROM folders ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer rows.Close()

	var out []folderRow
	for rows.Next() {
		var f folderRow
		if err := rows.Scan(&f.path, &f.parent, &f.name); err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) loadMemberChannels(ctx context.Context) ([]channelRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, m.folder,
			(SELECT COUNT(*) FROM messages msg WHERE msg.channel = c.name)
		FROM channels c
		JOIN members m ON m.channel = c.name AND m.name = ?
		ORDER BY c.rowid`, s.identity)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	var out []channelRow
	for rows.Next() {
		var c channelRow
		if err := rows.Scan(&c.name, &c.folder, &c.messages); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChannelNames returns the channels the local user is a member of.
func (s *Store) ChannelNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name FROM channels c
		JOIN members m ON m.channel = c.name AND m.name = ?
		ORDER BY c.rowid`, s.identity)
	if err != nil {
		return nil, fmt.Errorf("querying channel names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning channel name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// WatchTree streams a fresh tree after every commit or deletion made
// through this store and after writes by other processes to the database
// file. The channel is closed when ctx is done.
func (s *Store) WatchTree(ctx context.Context) (<-chan []directory.Node, error) {
	kick := s.addWatcher()
	out := make(chan []directory.Node, 1)

	go func() {
		defer close(out)
		defer s.removeWatcher(kick)
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
			}
			nodes, err := s.ChannelFolderTree(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("tree reload failed", "error", err)
				continue
			}
			select {
			case out <- nodes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) folderExists(ctx context.Context, q querier, path directory.FolderPath) (bool, error) {
	if path.IsRoot() {
		return true, nil
	}
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders WHERE path = ?`, path.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up folder %s: %w", path, err)
	}
	return n > 0, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// parseFolderPath is the inverse of FolderPath.String.
func parseFolderPath(s string) directory.FolderPath {
	s = strings.Trim(s, "/")
	if s == "" {
		return directory.FolderPath{}
	}
	return strings.Split(s, "/")
}
