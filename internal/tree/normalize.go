// Package tree turns Directory Service tree snapshots into the display
// model consumed by the channel browser.
package tree

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

// DefaultMaxDepth bounds traversal depth. Deeper input is treated as cyclic.
const DefaultMaxDepth = 64

// entryNamespace seeds the name-based entry IDs.
var entryNamespace = uuid.MustParse("6f1c1c55-51b6-4d35-9a3e-2c7a52f0d4a1")

// Entry is a normalized tree element.
type Entry struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Items    int                  `json:"items"`
	Kind     directory.NodeKind   `json:"kind"`
	Path     directory.FolderPath `json:"path"`
	Children []*Entry             `json:"children,omitempty"`
}

// IsChannel reports whether the entry is a selectable channel.
func (e *Entry) IsChannel() bool {
	return e.Kind == directory.KindChannel
}

// FolderTarget returns the folder that creation and import flows should use
// when this entry is picked: the entry itself for folders, its parent for
// channels.
func (e *Entry) FolderTarget() directory.FolderPath {
	if e.IsChannel() && len(e.Path) > 0 {
		return e.Path[:len(e.Path)-1]
	}
	return e.Path
}

// Result is the outcome of one normalization pass.
type Result struct {
	// Entries is the nested view.
	Entries []*Entry
	// Flat lists every entry in pre-order.
	Flat []*Entry
	// Warnings holds one *directory.ValidationError per skipped node.
	Warnings []error
}

// DefaultTarget returns the first entry of the flat list, or nil.
func (r *Result) DefaultTarget() *Entry {
	if r == nil || len(r.Flat) == 0 {
		return nil
	}
	return r.Flat[0]
}

// Folders returns the flat entries that can receive new channels.
func (r *Result) Folders() []*Entry {
	if r == nil {
		return nil
	}
	var out []*Entry
	for _, e := range r.Flat {
		if !e.IsChannel() {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first flat entry with the given name, or nil.
func (r *Result) Find(name string) *Entry {
	if r == nil {
		return nil
	}
	for _, e := range r.Flat {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Normalizer converts raw trees. The zero value uses DefaultMaxDepth and
// the default logger.
type Normalizer struct {
	MaxDepth int
	Logger   *slog.Logger
}

// Normalize runs a pass with the zero Normalizer.
func Normalize(root []directory.Node) (*Result, error) {
	var n Normalizer
	return n.Normalize(root)
}

// Normalize walks root depth-first in pre-order. Structural nodes are
// dropped and their children re-parented to the structural node's parent.
// Malformed nodes are skipped with their subtree and reported in
// Result.Warnings.
func (n *Normalizer) Normalize(root []directory.Node) (*Result, error) {
	w := &walker{
		maxDepth: n.MaxDepth,
		logger:   n.Logger,
		res:      &Result{},
	}
	if w.maxDepth <= 0 {
		w.maxDepth = DefaultMaxDepth
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	entries, err := w.level(root, nil, "", 0)
	if err != nil {
		return nil, err
	}
	w.res.Entries = entries
	return w.res, nil
}

type walker struct {
	maxDepth int
	logger   *slog.Logger
	res      *Result
}

// level normalizes one sibling list under parent.
func (w *walker) level(nodes []directory.Node, parent directory.FolderPath, parentID string, depth int) ([]*Entry, error) {
	var out []*Entry
	seen := make(map[string]int)
	if err := w.visit(nodes, parent, parentID, depth, &out, seen); err != nil {
		return nil, err
	}
	return out, nil
}

// visit appends the entries for nodes to out. Structural nodes recurse with
// the same out and seen so their children join the current sibling list.
func (w *walker) visit(nodes []directory.Node, parent directory.FolderPath, parentID string, depth int, out *[]*Entry, seen map[string]int) error {
	if depth > w.maxDepth {
		return &directory.StructuralError{
			Depth:   depth,
			Message: fmt.Sprintf("exceeds maximum depth %d under %s", w.maxDepth, parent),
		}
	}

	for i, node := range nodes {
		if node.Name() == "" {
			warn := &directory.ValidationError{
				Field:   "data.name",
				Message: fmt.Sprintf("node %d under %s has no name", i, parent),
			}
			w.logger.Warn("skipping malformed tree node", "parent", parent.String(), "index", i, "error", warn)
			w.res.Warnings = append(w.res.Warnings, warn)
			continue
		}

		if node.Structural() {
			if err := w.visit(node.Children, parent, parentID, depth+1, out, seen); err != nil {
				return err
			}
			continue
		}

		ordinal := seen[node.Data.Name]
		seen[node.Data.Name] = ordinal + 1

		path := parent.Child(node.Data.Name)
		e := &Entry{
			ID:    entryID(parentID, node.Data.Name, ordinal),
			Name:  node.Data.Name,
			Items: node.Data.Items,
			Kind:  inferKind(node),
			Path:  path,
		}
		w.res.Flat = append(w.res.Flat, e)
		*out = append(*out, e)

		children, err := w.level(node.Children, path, e.ID, depth+1)
		if err != nil {
			return err
		}
		e.Children = children
	}
	return nil
}

// inferKind resolves untagged nodes: a leaf is a channel, anything with
// children is a folder.
func inferKind(node directory.Node) directory.NodeKind {
	if node.Data.Kind != directory.KindUnknown {
		return node.Data.Kind
	}
	if len(node.Children) == 0 {
		return directory.KindChannel
	}
	return directory.KindFolder
}

// entryID derives an ID from the parent's ID, the name and the count of
// earlier siblings with the same name, so that unchanged trees keep their
// IDs across passes.
func entryID(parentID, name string, ordinal int) string {
	key := fmt.Sprintf("%s\x00%s\x00%d", parentID, name, ordinal)
	return uuid.NewSHA1(entryNamespace, []byte(key)).String()
}
