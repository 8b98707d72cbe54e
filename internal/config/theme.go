package config

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// StyleWrapper wraps tcell.Style and implements TOML unmarshalling.
// In TOML it is represented as a table with optional "foreground",
// "background", and "attributes" string fields. Fields missing from the
// table keep their current value, so user files overlay a preset.
type StyleWrapper struct {
	tcell.Style

	fg    string
	bg    string
	attrs string // tview attribute letters, e.g. "bu"
}

// makeStyle builds a style from color names and tview attribute letters.
func makeStyle(fg, bg, attrs string) StyleWrapper {
	s := StyleWrapper{fg: fg, bg: bg, attrs: attrs}
	s.rebuild()
	return s
}

func (s *StyleWrapper) rebuild() {
	style := tcell.StyleDefault
	if s.fg != "" {
		style = style.Foreground(tcell.GetColor(s.fg))
	}
	if s.bg != "" {
		style = style.Background(tcell.GetColor(s.bg))
	}
	s.Style = style.Attributes(lettersToAttrMask(s.attrs))
}

// Tag returns the tview color tag that starts this style.
func (s StyleWrapper) Tag() string {
	if s.bg == "" && s.attrs == "" {
		if s.fg == "" {
			return "[-]"
		}
		return "[" + s.fg + "]"
	}
	return fmt.Sprintf("[%s:%s:%s]", orDash(s.fg), orDash(s.bg), orDash(s.attrs))
}

// Reset returns the tview tag that ends this style.
func (s StyleWrapper) Reset() string {
	switch {
	case s.attrs != "":
		return "[-:-:-]"
	case s.bg != "":
		return "[-:-]"
	default:
		return "[-]"
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// UnmarshalTOML implements the toml.Unmarshaler interface.
func (s *StyleWrapper) UnmarshalTOML(data any) error {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("expected table for style, got %T", data)
	}

	if fg, ok := m["foreground"].(string); ok {
		s.fg = fg
	}
	if bg, ok := m["background"].(string); ok {
		s.bg = bg
	}
	if attrs, ok := m["attributes"].(string); ok {
		mask, err := stringToAttrMask(attrs)
		if err != nil {
			return err
		}
		s.attrs = attrMaskToLetters(mask)
	}

	s.rebuild()
	return nil
}

var attrLetters = []struct {
	letter byte
	name   string
	mask   tcell.AttrMask
}{
	{'b', "bold", tcell.AttrBold},
	{'i', "italic", tcell.AttrItalic},
	{'u', "underline", tcell.AttrUnderline},
	{'d', "dim", tcell.AttrDim},
	{'r', "reverse", tcell.AttrReverse},
	{'l', "blink", tcell.AttrBlink},
	{'s', "strikethrough", tcell.AttrStrikeThrough},
}

// stringToAttrMask parses a pipe-separated list of attribute names into
// a tcell.AttrMask. For example: "bold|underline".
func stringToAttrMask(s string) (tcell.AttrMask, error) {
	var mask tcell.AttrMask
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "none" || part == "" {
			continue
		}
		found := false
		for _, a := range attrLetters {
			if a.name == part {
				mask |= a.mask
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown style attribute: %q", part)
		}
	}
	return mask, nil
}

func attrMaskToLetters(mask tcell.AttrMask) string {
	var b strings.Builder
	for _, a := range attrLetters {
		if mask&a.mask != 0 {
			b.WriteByte(a.letter)
		}
	}
	return b.String()
}

func lettersToAttrMask(letters string) tcell.AttrMask {
	var mask tcell.AttrMask
	for i := 0; i < len(letters); i++ {
		for _, a := range attrLetters {
			if a.letter == letters[i] {
				mask |= a.mask
			}
		}
	}
	return mask
}

// Theme holds the complete theme configuration.
type Theme struct {
	Preset       string            `toml:"preset"`
	Border       BorderTheme       `toml:"border"`
	Title        TitleTheme        `toml:"title"`
	ChannelsTree ChannelsTreeTheme `toml:"channels_tree"`
	MessagesList MessagesListTheme `toml:"messages_list"`
	MessageInput MessageInputTheme `toml:"message_input"`
	Settings     SettingsTheme     `toml:"settings"`
	StatusBar    StatusBarTheme    `toml:"status_bar"`
}

// BorderTheme configures border styling.
type BorderTheme struct {
	Focused StyleWrapper `toml:"focused"`
	Normal  StyleWrapper `toml:"normal"`
}

// TitleTheme configures title bar styling.
type TitleTheme struct {
	Focused StyleWrapper `toml:"focused"`
	Normal  StyleWrapper `toml:"normal"`
}

// ChannelsTreeTheme configures the channels tree styling.
type ChannelsTreeTheme struct {
	Channel  StyleWrapper `toml:"channel"`
	Folder   StyleWrapper `toml:"folder"`
	Selected StyleWrapper `toml:"selected"`
	Count    StyleWrapper `toml:"count"`
}

// MessagesListTheme configures the messages list styling.
type MessagesListTheme struct {
	Message   StyleWrapper `toml:"message"`
	Author    StyleWrapper `toml:"author"`
	Timestamp StyleWrapper `toml:"timestamp"`
	File      StyleWrapper `toml:"file"`
}

// MessageInputTheme configures the message input styling.
type MessageInputTheme struct {
	Text        StyleWrapper `toml:"text"`
	Placeholder StyleWrapper `toml:"placeholder"`
	Attachment  StyleWrapper `toml:"attachment"`
}

// SettingsTheme configures the channel settings panel.
type SettingsTheme struct {
	Label StyleWrapper `toml:"label"`
	Link  StyleWrapper `toml:"link"`
	Owner StyleWrapper `toml:"owner"`
}

// StatusBarTheme configures the status bar styling.
type StatusBarTheme struct {
	Text       StyleWrapper `toml:"text"`
	Background StyleWrapper `toml:"background"`
	Error      StyleWrapper `toml:"error"`
}

// BuiltinTheme returns a fully populated Theme for the given preset name.
// Unknown names fall back to "default".
func BuiltinTheme(name string) Theme {
	switch name {
	case "dark":
		return darkTheme()
	case "monokai":
		return monokaiTheme()
	default:
		return defaultTheme()
	}
}

func defaultTheme() Theme {
	return Theme{
		Preset: "default",
		Border: BorderTheme{
			Focused: makeStyle("blue", "", ""),
			Normal:  makeStyle("gray", "", ""),
		},
		Title: TitleTheme{
			Focused: makeStyle("white", "", "b"),
			Normal:  makeStyle("gray", "", ""),
		},
		ChannelsTree: ChannelsTreeTheme{
			Channel:  makeStyle("white", "", ""),
			Folder:   makeStyle("yellow", "", "b"),
			Selected: makeStyle("blue", "", "b"),
			Count:    makeStyle("gray", "", ""),
		},
		MessagesList: MessagesListTheme{
			Message:   makeStyle("white", "", ""),
			Author:    makeStyle("green", "", "b"),
			Timestamp: makeStyle("gray", "", ""),
			File:      makeStyle("aqua", "", "u"),
		},
		MessageInput: MessageInputTheme{
			Text:        makeStyle("white", "", ""),
			Placeholder: makeStyle("gray", "", "d"),
			Attachment:  makeStyle("aqua", "", ""),
		},
		Settings: SettingsTheme{
			Label: makeStyle("gray", "", ""),
			Link:  makeStyle("aqua", "", ""),
			Owner: makeStyle("yellow", "", "b"),
		},
		StatusBar: StatusBarTheme{
			Text:       makeStyle("white", "", ""),
			Background: makeStyle("", "darkblue", ""),
			Error:      makeStyle("red", "", "b"),
		},
	}
}

func darkTheme() Theme {
	t := defaultTheme()
	t.Preset = "dark"
	t.Border.Focused = makeStyle("#5f87ff", "", "")
	t.Border.Normal = makeStyle("#444444", "", "")
	t.ChannelsTree.Folder = makeStyle("#d7af5f", "", "b")
	t.ChannelsTree.Selected = makeStyle("#5f87ff", "", "b")
	t.MessagesList.Author = makeStyle("#87d787", "", "b")
	t.StatusBar.Background = makeStyle("", "#262626", "")
	return t
}

func monokaiTheme() Theme {
	t := defaultTheme()
	t.Preset = "monokai"
	t.Border.Focused = makeStyle("#66d9ef", "", "")
	t.Border.Normal = makeStyle("#75715e", "", "")
	t.Title.Focused = makeStyle("#f8f8f2", "", "b")
	t.ChannelsTree.Channel = makeStyle("#f8f8f2", "", "")
	t.ChannelsTree.Folder = makeStyle("#e6db74", "", "b")
	t.ChannelsTree.Selected = makeStyle("#a6e22e", "", "b")
	t.MessagesList.Author = makeStyle("#a6e22e", "", "b")
	t.MessagesList.Timestamp = makeStyle("#75715e", "", "")
	t.Settings.Link = makeStyle("#66d9ef", "", "")
	t.StatusBar.Text = makeStyle("#f8f8f2", "", "")
	t.StatusBar.Background = makeStyle("", "#272822", "")
	t.StatusBar.Error = makeStyle("#f92672", "", "b")
	return t
}
