package config

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/gdamore/tcell/v2"
)

func TestMakeStyle_Tag(t *testing.T) {
	tests := []struct {
		name string
		fg   string
		bg   string
		attr string
		want string
	}{
		{"fg only", "green", "", "", "[green]"},
		{"fg+attr", "green", "", "b", "[green:-:b]"},
		{"fg+bg+attr", "green", "black", "b", "[green:black:b]"},
		{"fg+bg", "white", "blue", "", "[white:blue:-]"},
		{"empty", "", "", "", "[-]"},
		{"attr only", "", "", "d", "[-:-:d]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := makeStyle(tt.fg, tt.bg, tt.attr)
			got := s.Tag()
			if got != tt.want {
				t.Errorf("makeStyle(%q,%q,%q).Tag() = %q, want %q", tt.fg, tt.bg, tt.attr, got, tt.want)
			}
		})
	}
}

func TestStyleWrapper_Reset(t *testing.T) {
	tests := []struct {
		name string
		fg   string
		bg   string
		attr string
		want string
	}{
		{"fg only", "green", "", "", "[-]"},
		{"fg+bg", "green", "black", "", "[-:-]"},
		{"fg+attr", "green", "", "b", "[-:-:-]"},
		{"empty", "", "", "", "[-]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := makeStyle(tt.fg, tt.bg, tt.attr)
			if got := s.Reset(); got != tt.want {
				t.Errorf("Reset() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringToAttrMask(t *testing.T) {
	tests := []struct {
		in      string
		want    tcell.AttrMask
		wantErr bool
	}{
		{"bold", tcell.AttrBold, false},
		{"bold|underline", tcell.AttrBold | tcell.AttrUnderline, false},
		{" Italic | dim ", tcell.AttrItalic | tcell.AttrDim, false},
		{"none", 0, false},
		{"", 0, false},
		{"sparkly", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := stringToAttrMask(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("stringToAttrMask(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("stringToAttrMask(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAttrLettersRoundTrip(t *testing.T) {
	for _, letters := range []string{"b", "bu", "iudr", "ls", ""} {
		if got := attrMaskToLetters(lettersToAttrMask(letters)); got != letters {
			t.Errorf("round trip of %q = %q", letters, got)
		}
	}
}

func TestUnmarshalStyleKeepsUnsetFields(t *testing.T) {
	var theme struct {
		Author StyleWrapper `toml:"author"`
	}
	theme.Author = makeStyle("green", "black", "b")

	if err := toml.Unmarshal([]byte("[author]\nforeground = \"red\"\n"), &theme); err != nil {
		t.Fatal(err)
	}
	if got := theme.Author.Tag(); got != "[red:black:b]" {
		t.Errorf("Tag() = %q, want [red:black:b]", got)
	}
	fg, bg, attrs := theme.Author.Decompose()
	if fg != tcell.GetColor("red") || bg != tcell.GetColor("black") || attrs&tcell.AttrBold == 0 {
		t.Errorf("style = %v %v %v", fg, bg, attrs)
	}
}

func TestUnmarshalStyleRejectsNonTable(t *testing.T) {
	var s StyleWrapper
	if err := s.UnmarshalTOML("red"); err == nil {
		t.Error("expected error for non-table style")
	}
}

func TestBuiltinThemeFallback(t *testing.T) {
	if got := BuiltinTheme("nope").Preset; got != "default" {
		t.Errorf("unknown preset = %q, want default", got)
	}
	for _, name := range []string{"default", "dark", "monokai"} {
		if got := BuiltinTheme(name).Preset; got != name {
			t.Errorf("BuiltinTheme(%q).Preset = %q", name, got)
		}
	}
}
