package chat

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

// Panel identifies which panel is focused.
type Panel int

const (
	PanelChannels Panel = iota
	PanelMessages
	PanelInput
)

// Overlay page names.
const (
	pageMain        = "main"
	pageContextMenu = "context-menu"
	pageForm        = "channel-form"
	pageSettings    = "settings"
	pageQR          = "qr"
	pageEmoji       = "emoji"
	pageAttach      = "attach"
	pageConfirm     = "confirm"
)

// View is the main chat layout plus its popups.
type View struct {
	*tview.Pages
	app *tview.Application
	cfg *config.Config

	ChannelsTree  *ChannelsTree
	Header        *tview.TextView
	MessagesList  *MessagesList
	MessageInput  *MessageInput
	MentionsList  *MentionsList
	StatusBar     *StatusBar
	ContextMenu   *ContextMenu
	ChannelForm   *ChannelForm
	SettingsPanel *ChannelSettingsPanel
	QRView        *QRView
	EmojiPicker   *EmojiPicker
	AttachPicker  *AttachPicker
	confirm       *tview.Modal

	contentFlex *tview.Flex
	inputFlex   *tview.Flex
	mainFlex    *tview.Flex
	activePanel Panel
	mentionsOn  bool
}

// New creates the chat view.
//
// Layout:
//
//	Pages
//	├── main: Flex (FlexRow)
//	│   ├── mainFlex (FlexColumn)
//	│   │   ├── ChannelsTree (fixed 32 cols)
//	│   │   └── contentFlex (FlexRow)
//	│   │       ├── Header (fixed 1 row)
//	│   │       ├── MessagesList (proportional)
//	│   │       └── inputFlex: MentionsList (when active) + MessageInput
//	│   └── StatusBar (fixed 1 row)
//	└── overlays: context menu, channel form, settings, QR, emoji, attach, confirm
func New(app *tview.Application, cfg *config.Config) *View {
	v := &View{
		Pages: tview.NewPages(),
		app:   app,
		cfg:   cfg,
	}

	v.ChannelsTree = NewChannelsTree(cfg)
	v.Header = tview.NewTextView().SetDynamicColors(true)
	v.MessagesList = NewMessagesList(cfg)
	v.MessageInput = NewMessageInput(cfg)
	v.MentionsList = NewMentionsList(cfg)
	v.StatusBar = NewStatusBar(cfg)

	v.ContextMenu = NewContextMenu(cfg)
	v.ContextMenu.SetOnClose(func() { v.hideOverlay(pageContextMenu) })

	v.ChannelForm = NewChannelForm(cfg)
	v.ChannelForm.SetOnClose(v.HideChannelForm)

	v.SettingsPanel = NewChannelSettingsPanel(cfg)
	v.SettingsPanel.SetFocusFunc(func(p tview.Primitive) { v.app.SetFocus(p) })
	v.SettingsPanel.SetOnClose(v.HideSettings)

	v.QRView = NewQRView()
	v.QRView.SetOnClose(v.HideQR)

	v.EmojiPicker = NewEmojiPicker(cfg)
	v.EmojiPicker.SetOnClose(func() { v.hideOverlay(pageEmoji) })

	v.AttachPicker = NewAttachPicker(cfg)
	v.AttachPicker.SetOnClose(func() { v.hideOverlay(pageAttach) })

	v.confirm = tview.NewModal().AddButtons([]string{"Delete", "Cancel"})

	v.MessageInput.SetMentionsList(v.MentionsList, nil)
	v.MessageInput.SetOnShowAutocomplete(func(count int) { v.showMentions(count) })
	v.MessageInput.SetOnHideAutocomplete(v.hideMentions)

	v.inputFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.MessageInput, 3, 0, false)

	v.contentFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.Header, 1, 0, false).
		AddItem(v.MessagesList, 0, 1, false).
		AddItem(v.inputFlex, 3, 0, false)

	v.mainFlex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.ChannelsTree, 32, 0, false).
		AddItem(v.contentFlex, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.mainFlex, 0, 1, false).
		AddItem(v.StatusBar, 1, 0, false)

	v.AddPage(pageMain, root, true, true)

	v.activePanel = PanelChannels
	v.applyBorderStyles()
	v.SetChannelHeader(directory.NoChannelSelected)

	return v
}

// centered wraps p in a flex that centers it at the given size.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (v *View) showOverlay(name string, p tview.Primitive, width, height int) {
	v.AddPage(name, centered(p, width, height), true, true)
	v.app.SetFocus(p)
}

func (v *View) hideOverlay(name string) {
	v.RemovePage(name)
	v.FocusPanel(v.activePanel)
}

// HasOverlay reports whether any popup is open.
func (v *View) HasOverlay() bool {
	front, _ := v.GetFrontPage()
	return front != pageMain
}

// FocusPanel sets focus to the given panel and updates border colors.
func (v *View) FocusPanel(panel Panel) {
	v.activePanel = panel
	v.applyBorderStyles()

	switch panel {
	case PanelChannels:
		v.app.SetFocus(v.ChannelsTree)
	case PanelMessages:
		v.app.SetFocus(v.MessagesList)
	case PanelInput:
		v.app.SetFocus(v.MessageInput)
	}
}

// ActivePanel returns the focused panel.
func (v *View) ActivePanel() Panel {
	return v.activePanel
}

// HandleKey processes chat-level keybindings. Returns nil to consume the event.
func (v *View) HandleKey(event *tcell.EventKey) *tcell.EventKey {
	if v.HasOverlay() {
		return event
	}

	name := keys.Normalize(event.Name())

	if name == v.cfg.Keybinds.ToggleSettings {
		v.ShowSettings()
		return nil
	}

	// Skip Rune-based focus keybinds when input is active so the user can type.
	if v.activePanel == PanelInput && event.Key() == tcell.KeyRune && event.Modifiers() == tcell.ModNone {
		return event
	}

	switch name {
	case v.cfg.Keybinds.FocusChannels:
		v.FocusPanel(PanelChannels)
		return nil
	case v.cfg.Keybinds.FocusMessages:
		v.FocusPanel(PanelMessages)
		return nil
	case v.cfg.Keybinds.FocusInput:
		v.FocusPanel(PanelInput)
		return nil
	}

	return event
}

// SetChannelHeader updates the header with the selected channel.
func (v *View) SetChannelHeader(name string) {
	if name == "" || name == directory.NoChannelSelected {
		v.Header.SetText(" [gray::d]No channel selected[-::-]")
		return
	}
	v.Header.SetText(fmt.Sprintf(" [::b]#%s[::-]", tview.Escape(name)))
}

// ShowContextMenu opens the context menu for target.
func (v *View) ShowContextMenu(target directory.FolderPath) {
	v.ContextMenu.Open(target)
	v.showOverlay(pageContextMenu, v.ContextMenu, 30, len(menuActions)+2)
}

// ShowChannelForm opens the channel form.
func (v *View) ShowChannelForm(mode FormMode, folders []directory.FolderPath, target directory.FolderPath) {
	v.ChannelForm.Open(mode, folders, target, v.cfg.Invites.IncludeFolderStructure)
	height := 10
	if mode == FormImportChannel {
		height = 12
	}
	v.showOverlay(pageForm, v.ChannelForm, 60, height)
}

// HideChannelForm closes the channel form.
func (v *View) HideChannelForm() {
	v.hideOverlay(pageForm)
}

// ShowSettings opens the channel settings panel.
func (v *View) ShowSettings() {
	v.SettingsPanel.ResetStatus()
	v.AddPage(pageSettings, centered(v.SettingsPanel, 90, 24), true, true)
	v.SettingsPanel.FocusList()
}

// HideSettings closes the channel settings panel.
func (v *View) HideSettings() {
	v.hideOverlay(pageSettings)
}

// ShowQR shows link as a QR code above the settings panel.
func (v *View) ShowQR(link string) error {
	w, h, err := v.QRView.SetLink(link)
	if err != nil {
		return err
	}
	v.AddPage(pageQR, centered(v.QRView, w, h), true, true)
	v.app.SetFocus(v.QRView)
	return nil
}

// HideQR closes the QR view and returns to the settings panel.
func (v *View) HideQR() {
	v.RemovePage(pageQR)
	v.SettingsPanel.FocusList()
}

// ShowEmojiPicker opens the emoji picker.
func (v *View) ShowEmojiPicker() {
	v.EmojiPicker.Reset()
	v.showOverlay(pageEmoji, v.EmojiPicker, 50, 20)
}

// ShowAttachPicker opens the file browser; done receives the chosen path.
func (v *View) ShowAttachPicker(done func(path string)) {
	v.AttachPicker.SetOnSelect(done)
	v.AttachPicker.Reset()
	v.showOverlay(pageAttach, v.AttachPicker, 70, 20)
}

// Confirm asks a yes/no question and runs onYes if confirmed.
func (v *View) Confirm(text string, onYes func()) {
	v.confirm.SetText(text)
	v.confirm.SetDoneFunc(func(_ int, label string) {
		v.RemovePage(pageConfirm)
		v.SettingsPanel.FocusList()
		if label == "Delete" {
			onYes()
		}
	})
	v.AddPage(pageConfirm, v.confirm, true, true)
	v.app.SetFocus(v.confirm)
}

// SetMentionFilter sets where mention suggestions come from.
func (v *View) SetMentionFilter(fn MentionFilterFunc) {
	v.MessageInput.SetMentionsList(v.MentionsList, fn)
}

func (v *View) showMentions(count int) {
	height := min(count, v.cfg.AutocompleteLimit) + 2
	v.inputFlex.Clear()
	v.inputFlex.AddItem(v.MentionsList, height, 0, false)
	v.inputFlex.AddItem(v.MessageInput, 3, 0, true)
	v.contentFlex.ResizeItem(v.inputFlex, height+3, 0)
	v.mentionsOn = true
}

func (v *View) hideMentions() {
	if !v.mentionsOn {
		return
	}
	v.inputFlex.Clear()
	v.inputFlex.AddItem(v.MessageInput, 3, 0, true)
	v.contentFlex.ResizeItem(v.inputFlex, 3, 0)
	v.mentionsOn = false
}

// applyBorderStyles updates border colors based on which panel is active.
func (v *View) applyBorderStyles() {
	focusedFg, _, _ := v.cfg.Theme.Border.Focused.Style.Decompose()
	normalFg, _, _ := v.cfg.Theme.Border.Normal.Style.Decompose()
	focusedTitleFg, _, _ := v.cfg.Theme.Title.Focused.Style.Decompose()
	normalTitleFg, _, _ := v.cfg.Theme.Title.Normal.Style.Decompose()

	type bordered struct {
		box   *tview.Box
		panel Panel
	}

	panels := []bordered{
		{v.ChannelsTree.Box, PanelChannels},
		{v.MessagesList.Box, PanelMessages},
		{v.MessageInput.Box, PanelInput},
	}

	for _, p := range panels {
		if p.panel == v.activePanel {
			p.box.SetBorderColor(focusedFg)
			p.box.SetTitleColor(focusedTitleFg)
		} else {
			p.box.SetBorderColor(normalFg)
			p.box.SetTitleColor(normalTitleFg)
		}
	}
}
