package chat

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/tree"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// OnChannelSelectedFunc is called when the user selects a channel.
type OnChannelSelectedFunc func(name string)

// OnContextMenuFunc is called when the user opens the context menu. target
// is the folder that new channels and folders would go into.
type OnContextMenuFunc func(target directory.FolderPath)

// ChannelsTree shows the normalized channel/folder hierarchy.
type ChannelsTree struct {
	*tview.TreeView
	cfg           *config.Config
	root          *tview.TreeNode
	entries       map[*tview.TreeNode]*tree.Entry
	collapsed     map[string]bool // entry ID → collapsed
	onSelected    OnChannelSelectedFunc
	onContextMenu OnContextMenuFunc
	onCopyName    func(name string)
}

// NewChannelsTree creates an empty channels tree.
func NewChannelsTree(cfg *config.Config) *ChannelsTree {
	ct := &ChannelsTree{
		TreeView:  tview.NewTreeView(),
		cfg:       cfg,
		entries:   make(map[*tview.TreeNode]*tree.Entry),
		collapsed: make(map[string]bool),
	}

	ct.root = tview.NewTreeNode("")
	ct.SetRoot(ct.root)
	ct.SetTopLevel(1)
	ct.SetGraphics(false)
	ct.SetBorder(true).SetTitle(" Channels ")

	ct.SetSelectedFunc(ct.onNodeSelected)
	ct.SetInputCapture(ct.handleInput)

	return ct
}

// SetOnChannelSelected sets the callback for channel selection.
func (ct *ChannelsTree) SetOnChannelSelected(fn OnChannelSelectedFunc) {
	ct.onSelected = fn
}

// SetOnContextMenu sets the callback for the context menu key.
func (ct *ChannelsTree) SetOnContextMenu(fn OnContextMenuFunc) {
	ct.onContextMenu = fn
}

// SetOnCopyName sets the callback for copying a channel name.
func (ct *ChannelsTree) SetOnCopyName(fn func(name string)) {
	ct.onCopyName = fn
}

// SetData rebuilds the tree from a normalization result. Collapsed folders
// and the current node survive the rebuild because entry IDs are stable.
func (ct *ChannelsTree) SetData(res *tree.Result) {
	var currentID string
	if e := ct.CurrentEntry(); e != nil {
		currentID = e.ID
	}

	ct.root.ClearChildren()
	ct.entries = make(map[*tview.TreeNode]*tree.Entry)
	if res == nil {
		return
	}

	var current *tview.TreeNode
	var add func(parent *tview.TreeNode, entries []*tree.Entry)
	add = func(parent *tview.TreeNode, entries []*tree.Entry) {
		for _, e := range entries {
			node := ct.newNode(e)
			parent.AddChild(node)
			if e.ID == currentID {
				current = node
			}
			add(node, e.Children)
		}
	}
	add(ct.root, res.Entries)

	if current == nil {
		children := ct.root.GetChildren()
		if len(children) == 0 {
			return
		}
		current = children[0]
	}
	ct.SetCurrentNode(current)
}

// CurrentEntry returns the entry under the cursor, or nil.
func (ct *ChannelsTree) CurrentEntry() *tree.Entry {
	node := ct.GetCurrentNode()
	if node == nil {
		return nil
	}
	return ct.entries[node]
}

// Target returns the folder the context menu would act on.
func (ct *ChannelsTree) Target() directory.FolderPath {
	if e := ct.CurrentEntry(); e != nil {
		return e.FolderTarget()
	}
	return nil
}

func (ct *ChannelsTree) newNode(e *tree.Entry) *tview.TreeNode {
	node := tview.NewTreeNode(entryDisplayText(e, ct.collapsed[e.ID]))
	node.SetReference(e.ID)
	node.SetSelectable(true)
	if e.IsChannel() {
		node.SetTextStyle(ct.cfg.Theme.ChannelsTree.Channel.Style)
	} else {
		node.SetTextStyle(ct.cfg.Theme.ChannelsTree.Folder.Style)
		node.SetExpanded(!ct.collapsed[e.ID])
	}
	node.SetSelectedTextStyle(ct.cfg.Theme.ChannelsTree.Selected.Style.Reverse(true))
	ct.entries[node] = e
	return node
}

// entryDisplayText renders "# name  3" for channels and "▾ name" for
// folders.
func entryDisplayText(e *tree.Entry, collapsed bool) string {
	if e.IsChannel() {
		if e.Items > 0 {
			return fmt.Sprintf("# %s  %d", e.Name, e.Items)
		}
		return "# " + e.Name
	}
	icon := "▾"
	if collapsed {
		icon = "▸"
	}
	return fmt.Sprintf("%s %s", icon, e.Name)
}

func (ct *ChannelsTree) onNodeSelected(node *tview.TreeNode) {
	e, ok := ct.entries[node]
	if !ok {
		return
	}
	if !e.IsChannel() {
		ct.toggle(node)
		return
	}
	if ct.onSelected != nil {
		ct.onSelected(e.Name)
	}
}

func (ct *ChannelsTree) toggle(node *tview.TreeNode) {
	e, ok := ct.entries[node]
	if !ok || e.IsChannel() {
		return
	}
	collapsed := node.IsExpanded()
	node.SetExpanded(!collapsed)
	ct.collapsed[e.ID] = collapsed
	node.SetText(entryDisplayText(e, collapsed))
}

// parentOf finds the node whose children include child.
func (ct *ChannelsTree) parentOf(child *tview.TreeNode) *tview.TreeNode {
	var found *tview.TreeNode
	ct.root.Walk(func(node, parent *tview.TreeNode) bool {
		if node == child {
			found = parent
			return false
		}
		return found == nil
	})
	if found == ct.root {
		return nil
	}
	return found
}

func (ct *ChannelsTree) handleInput(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())
	kb := ct.cfg.Keybinds.ChannelsTree

	switch name {
	case kb.Up:
		return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	case kb.Down:
		return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	case kb.Top:
		return tcell.NewEventKey(tcell.KeyHome, 0, tcell.ModNone)
	case kb.Bottom:
		return tcell.NewEventKey(tcell.KeyEnd, 0, tcell.ModNone)

	case kb.Collapse:
		current := ct.GetCurrentNode()
		if current == nil {
			return nil
		}
		if e := ct.entries[current]; e != nil && e.IsChannel() {
			current = ct.parentOf(current)
			if current == nil {
				return nil
			}
			ct.SetCurrentNode(current)
		}
		ct.toggle(current)
		return nil

	case kb.MoveToParent:
		if current := ct.GetCurrentNode(); current != nil {
			if parent := ct.parentOf(current); parent != nil {
				ct.SetCurrentNode(parent)
			}
		}
		return nil

	case kb.ContextMenu:
		if ct.onContextMenu != nil {
			ct.onContextMenu(ct.Target())
		}
		return nil

	case kb.CopyChannelName:
		if e := ct.CurrentEntry(); e != nil && e.IsChannel() && ct.onCopyName != nil {
			ct.onCopyName(e.Name)
		}
		return nil
	}

	return event
}
