package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
	"github.com/cjrutherford/qd-messages/internal/invites"
	"github.com/cjrutherford/qd-messages/internal/ui/keys"
)

const settingsHelp = " [y]copy  [q]QR  [d]revoke  [c]challenge  [D]delete  [Tab]generate  [Esc]close"

// InviteRequest is a request to generate a new invite code.
type InviteRequest struct {
	Channel                string
	MaxUses                int
	IncludeFolderStructure bool
}

// ChannelSettingsPanel shows invite codes, the challenge flag and owner
// actions for the selected channel.
type ChannelSettingsPanel struct {
	*tview.Flex
	cfg     *config.Config
	info    *tview.TextView
	form    *tview.Form
	list    *tview.List
	status  *tview.TextView
	state   invites.State
	maxUses string
	include bool

	setFocus          func(tview.Primitive)
	onGenerate        func(InviteRequest)
	onCopyLink        func(link string)
	onShowQR          func(link string)
	onRevoke          func(channel, link string)
	onToggleChallenge func(channel string, enabled bool)
	onDelete          func(channel string)
	onClose           func()
}

// NewChannelSettingsPanel creates the settings panel.
func NewChannelSettingsPanel(cfg *config.Config) *ChannelSettingsPanel {
	sp := &ChannelSettingsPanel{
		cfg:     cfg,
		maxUses: strconv.Itoa(cfg.Invites.DefaultMaxUses),
		include: cfg.Invites.IncludeFolderStructure,
	}

	sp.info = tview.NewTextView().SetDynamicColors(true)

	sp.form = tview.NewForm().
		AddInputField("Max uses", sp.maxUses, 6, tview.InputFieldInteger, func(text string) { sp.maxUses = text }).
		AddCheckbox("Include folder structure", sp.include, func(checked bool) { sp.include = checked }).
		AddButton("Generate", sp.generate)
	sp.form.SetHorizontal(true)
	sp.form.SetInputCapture(sp.handleFormInput)

	sp.list = tview.NewList()
	sp.list.SetHighlightFullLine(true)
	sp.list.ShowSecondaryText(true)
	sp.list.SetWrapAround(false)
	sp.list.SetSecondaryTextColor(tcell.ColorGray)
	sp.list.SetInputCapture(sp.handleListInput)

	sp.status = tview.NewTextView().SetDynamicColors(true)
	sp.status.SetText(settingsHelp)

	sp.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(sp.info, 3, 0, false).
		AddItem(sp.form, 3, 0, false).
		AddItem(sp.list, 0, 1, true).
		AddItem(sp.status, 1, 0, false)
	sp.SetBorder(true).SetTitle(" Channel Settings ")

	sp.render()
	return sp
}

// SetFocusFunc sets how the panel moves focus between its form and list.
func (sp *ChannelSettingsPanel) SetFocusFunc(fn func(tview.Primitive)) { sp.setFocus = fn }

// SetOnGenerate sets the callback for generating an invite.
func (sp *ChannelSettingsPanel) SetOnGenerate(fn func(InviteRequest)) { sp.onGenerate = fn }

// SetOnCopyLink sets the callback for copying an invite link.
func (sp *ChannelSettingsPanel) SetOnCopyLink(fn func(link string)) { sp.onCopyLink = fn }

// SetOnShowQR sets the callback for showing an invite link as a QR code.
func (sp *ChannelSettingsPanel) SetOnShowQR(fn func(link string)) { sp.onShowQR = fn }

// SetOnRevoke sets the callback for revoking an invite.
func (sp *ChannelSettingsPanel) SetOnRevoke(fn func(channel, link string)) { sp.onRevoke = fn }

// SetOnToggleChallenge sets the callback for flipping the challenge flag.
func (sp *ChannelSettingsPanel) SetOnToggleChallenge(fn func(channel string, enabled bool)) {
	sp.onToggleChallenge = fn
}

// SetOnDelete sets the callback for deleting the channel.
func (sp *ChannelSettingsPanel) SetOnDelete(fn func(channel string)) { sp.onDelete = fn }

// SetOnClose sets the callback for closing the panel.
func (sp *ChannelSettingsPanel) SetOnClose(fn func()) { sp.onClose = fn }

// SetState replaces the displayed state.
func (sp *ChannelSettingsPanel) SetState(st invites.State) {
	sp.state = st
	sp.render()
}

// State returns the displayed state.
func (sp *ChannelSettingsPanel) State() invites.State {
	return sp.state
}

// SetStatus updates the status line.
func (sp *ChannelSettingsPanel) SetStatus(text string) {
	sp.status.SetText(" " + text)
}

// ResetStatus restores the key help line.
func (sp *ChannelSettingsPanel) ResetStatus() {
	sp.status.SetText(settingsHelp)
}

// FocusList moves focus to the invite list.
func (sp *ChannelSettingsPanel) FocusList() {
	if sp.setFocus != nil {
		sp.setFocus(sp.list)
	}
}

// SelectedLink returns the link under the cursor, or "".
func (sp *ChannelSettingsPanel) SelectedLink() string {
	i := sp.list.GetCurrentItem()
	if i < 0 || i >= len(sp.state.Codes) {
		return ""
	}
	return sp.state.Codes[i].Link
}

func (sp *ChannelSettingsPanel) render() {
	st := sp.state
	channel := st.Channel
	if !invites.IsRealChannel(channel) {
		channel = "no channel selected"
	}

	role := "member"
	if st.IsOwner {
		role = sp.cfg.Theme.Settings.Owner.Tag() + "owner" + sp.cfg.Theme.Settings.Owner.Reset()
	}
	challenge := "off"
	if st.Challenge {
		challenge = "on"
	}
	label := sp.cfg.Theme.Settings.Label
	sp.info.SetText(fmt.Sprintf(" [::b]#%s[::-]  %s\n %sChallenge flow:%s %s\n %sInvites:%s %d",
		tview.Escape(channel), role,
		label.Tag(), label.Reset(), challenge,
		label.Tag(), label.Reset(), len(st.Codes)))

	current := sp.list.GetCurrentItem()
	sp.list.Clear()
	for _, c := range st.Codes {
		sp.list.AddItem(inviteMainText(sp.cfg, c), inviteSecondaryText(c), 0, nil)
	}
	if n := sp.list.GetItemCount(); n > 0 {
		sp.list.SetCurrentItem(min(max(current, 0), n-1))
	}
}

func inviteMainText(cfg *config.Config, c directory.InviteCode) string {
	link := cfg.Theme.Settings.Link
	return link.Tag() + tview.Escape(c.Link) + link.Reset()
}

func inviteSecondaryText(c directory.InviteCode) string {
	parts := []string{fmt.Sprintf("  %d/%d uses", c.Uses, c.MaxUses)}
	if c.IncludesFolderStructure {
		parts = append(parts, "with folders")
	}
	if !c.CreatedAt.IsZero() {
		parts = append(parts, c.CreatedAt.Format("Jan 2 15:04"))
	}
	return strings.Join(parts, " · ")
}

// InviteRequest validates the generation form.
func (sp *ChannelSettingsPanel) InviteRequest() (InviteRequest, error) {
	n, err := strconv.Atoi(strings.TrimSpace(sp.maxUses))
	if err != nil || n < 1 {
		return InviteRequest{}, &directory.ValidationError{Field: "max uses", Message: "must be a number of at least 1"}
	}
	return InviteRequest{
		Channel:                sp.state.Channel,
		MaxUses:                n,
		IncludeFolderStructure: sp.include,
	}, nil
}

func (sp *ChannelSettingsPanel) generate() {
	if !invites.IsRealChannel(sp.state.Channel) {
		sp.SetStatus("Select a channel first")
		return
	}
	req, err := sp.InviteRequest()
	if err != nil {
		sp.SetStatus(err.Error())
		return
	}
	if sp.onGenerate != nil {
		sp.onGenerate(req)
	}
}

func (sp *ChannelSettingsPanel) requireOwner(action string) bool {
	if sp.state.IsOwner {
		return true
	}
	sp.SetStatus("Only the channel owner can " + action)
	return false
}

func (sp *ChannelSettingsPanel) close() {
	if sp.onClose != nil {
		sp.onClose()
	}
}

func (sp *ChannelSettingsPanel) handleFormInput(event *tcell.EventKey) *tcell.EventKey {
	switch keys.Normalize(event.Name()) {
	case sp.cfg.Keybinds.SettingsPanel.Close:
		sp.close()
		return nil
	case "Backtab":
		sp.FocusList()
		return nil
	}
	return event
}

func (sp *ChannelSettingsPanel) handleListInput(event *tcell.EventKey) *tcell.EventKey {
	name := keys.Normalize(event.Name())
	kb := sp.cfg.Keybinds.SettingsPanel

	switch name {
	case kb.Close:
		sp.close()
		return nil

	case "Tab":
		if sp.setFocus != nil {
			sp.setFocus(sp.form)
		}
		return nil

	case kb.CopyLink:
		if link := sp.SelectedLink(); link != "" && sp.onCopyLink != nil {
			sp.onCopyLink(link)
		}
		return nil

	case kb.ShowQR:
		if link := sp.SelectedLink(); link != "" && sp.onShowQR != nil {
			sp.onShowQR(link)
		}
		return nil

	case kb.Revoke:
		if link := sp.SelectedLink(); link != "" && sp.onRevoke != nil {
			sp.onRevoke(sp.state.Channel, link)
		}
		return nil

	case kb.ToggleChallenge:
		if invites.IsRealChannel(sp.state.Channel) && sp.requireOwner("change the challenge flow") && sp.onToggleChallenge != nil {
			sp.onToggleChallenge(sp.state.Channel, !sp.state.Challenge)
		}
		return nil

	case kb.Delete:
		if invites.IsRealChannel(sp.state.Channel) && sp.requireOwner("delete the channel") && sp.onDelete != nil {
			sp.onDelete(sp.state.Channel)
		}
		return nil
	}

	return event
}
