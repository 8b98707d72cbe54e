package config

// Keybinds holds all keybinding configuration. Values are plain strings
// matching the tcell.EventKey.Name() format (e.g. "Rune[j]", "Ctrl+W", "Enter").
type Keybinds struct {
	FocusChannels  string `toml:"focus_channels"`
	FocusMessages  string `toml:"focus_messages"`
	FocusInput     string `toml:"focus_input"`
	ToggleSettings string `toml:"toggle_settings"`
	Quit           string `toml:"quit"`

	ChannelsTree  ChannelsTreeKeybinds  `toml:"channels_tree"`
	MessageInput  MessageInputKeybinds  `toml:"message_input"`
	SettingsPanel SettingsPanelKeybinds `toml:"settings_panel"`
	Picker        PickerKeybinds        `toml:"picker"`
}

// ChannelsTreeKeybinds holds keybindings for the channels tree panel.
type ChannelsTreeKeybinds struct {
	Up              string `toml:"up"`
	Down            string `toml:"down"`
	Top             string `toml:"top"`
	Bottom          string `toml:"bottom"`
	SelectCurrent   string `toml:"select_current"`
	Collapse        string `toml:"collapse"`
	MoveToParent    string `toml:"move_to_parent"`
	ContextMenu     string `toml:"context_menu"`
	CopyChannelName string `toml:"copy_channel_name"`
}

// MessageInputKeybinds holds keybindings for the message input area.
type MessageInputKeybinds struct {
	Send        string `toml:"send"`
	Newline     string `toml:"newline"`
	TabComplete string `toml:"tab_complete"`
	AttachFile  string `toml:"attach_file"`
	EmojiPicker string `toml:"emoji_picker"`
	RemoveFile  string `toml:"remove_file"`
	Cancel      string `toml:"cancel"`
}

// SettingsPanelKeybinds holds keybindings for the channel settings panel.
type SettingsPanelKeybinds struct {
	Close           string `toml:"close"`
	CopyLink        string `toml:"copy_link"`
	ShowQR          string `toml:"show_qr"`
	Revoke          string `toml:"revoke"`
	ToggleChallenge string `toml:"toggle_challenge"`
	Delete          string `toml:"delete"`
}

// PickerKeybinds holds keybindings shared by popup pickers.
type PickerKeybinds struct {
	Close  string `toml:"close"`
	Up     string `toml:"up"`
	Down   string `toml:"down"`
	Select string `toml:"select"`
	Paste  string `toml:"paste"`
}
