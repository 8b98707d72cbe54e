package chat

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// MenuAction is an entry of the channel tree context menu.
type MenuAction int

const (
	ActionCreateChannel MenuAction = iota
	ActionImportChannel
	ActionCreateFolder
)

var menuActions = []struct {
	action MenuAction
	label  string
}{
	{ActionCreateChannel, "Create Channel"},
	{ActionImportChannel, "Import Channel"},
	{ActionCreateFolder, "New Folder"},
}

// ContextMenu is the popup opened from the channel tree.
type ContextMenu struct {
	*tview.List
	cfg      *config.Config
	target   directory.FolderPath
	onSelect func(action MenuAction, target directory.FolderPath)
	onClose  func()
}

// NewContextMenu creates the context menu.
func NewContextMenu(cfg *config.Config) *ContextMenu {
	cm := &ContextMenu{
		List: tview.NewList(),
		cfg:  cfg,
	}
	cm.ShowSecondaryText(false)
	cm.SetHighlightFullLine(true)
	cm.SetWrapAround(false)
	cm.SetBorder(true)

	for _, a := range menuActions {
		cm.AddItem(a.label, "", 0, nil)
	}
	cm.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		cm.choose(i)
	})
	cm.SetInputCapture(cm.handleInput)

	return cm
}

// SetOnSelect sets the callback for a chosen action.
func (cm *ContextMenu) SetOnSelect(fn func(action MenuAction, target directory.FolderPath)) {
	cm.onSelect = fn
}

// SetOnClose sets the callback for dismissing the menu.
func (cm *ContextMenu) SetOnClose(fn func()) {
	cm.onClose = fn
}

// Open resets the menu for target.
func (cm *ContextMenu) Open(target directory.FolderPath) {
	cm.target = target
	cm.SetTitle(" " + target.String() + " ")
	cm.SetCurrentItem(0)
}

// Target returns the folder the menu was opened for.
func (cm *ContextMenu) Target() directory.FolderPath {
	return cm.target
}

func (cm *ContextMenu) choose(i int) {
	if i < 0 || i >= len(menuActions) {
		return
	}
	if cm.onClose != nil {
		cm.onClose()
	}
	if cm.onSelect != nil {
		cm.onSelect(menuActions[i].action, cm.target)
	}
}

func (cm *ContextMenu) handleInput(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())
	switch name {
	case cm.cfg.Keybinds.Picker.Close:
		if cm.onClose != nil {
			cm.onClose()
		}
		return nil
	case cm.cfg.Keybinds.Picker.Select:
		cm.choose(cm.GetCurrentItem())
		return nil
	}
	return event
}
