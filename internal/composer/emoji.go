package composer

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/kyokomi/emoji/v2"
	"github.com/sahilm/fuzzy"
)

var (
	emojiCodes     map[string]string
	emojiNames     []string
	emojiCodesOnce sync.Once
)

// loadEmoji builds the shortcode→unicode map from kyokomi/emoji, keeping
// only lowercase shortcodes (letters, digits, _, -, +).
func loadEmoji() {
	codeMap := emoji.CodeMap()
	emojiCodes = make(map[string]string, len(codeMap))
	for k, v := range codeMap {
		name := strings.TrimPrefix(strings.TrimSuffix(k, ":"), ":")
		if !isShortcode(name) {
			continue
		}
		emojiCodes[name] = v
	}
	emojiNames = make([]string, 0, len(emojiCodes))
	for name := range emojiCodes {
		emojiNames = append(emojiNames, name)
	}
	slices.Sort(emojiNames)
}

func isShortcode(name string) bool {
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '+' {
			return false
		}
	}
	return len(name) > 0
}

func emojiTable() (map[string]string, []string) {
	emojiCodesOnce.Do(loadEmoji)
	return emojiCodes, emojiNames
}

// LookupEmoji returns the unicode glyph for a shortcode. Surrounding
// colons are optional.
func LookupEmoji(code string) (string, bool) {
	codes, _ := emojiTable()
	glyph, ok := codes[strings.Trim(code, ":")]
	return glyph, ok
}

// EmojiMatch is a shortcode suggestion.
type EmojiMatch struct {
	Code  string
	Glyph string
}

// SearchEmoji fuzzy-matches shortcodes against query. An empty query
// returns the first limit codes alphabetically.
func SearchEmoji(query string, limit int) []EmojiMatch {
	codes, names := emojiTable()
	query = strings.ToLower(strings.Trim(query, ": "))

	var picked []string
	if query == "" {
		picked = names[:min(limit, len(names))]
	} else {
		for _, m := range fuzzy.Find(query, names) {
			if len(picked) == limit {
				break
			}
			picked = append(picked, m.Str)
		}
	}

	out := make([]EmojiMatch, len(picked))
	for i, name := range picked {
		out[i] = EmojiMatch{Code: name, Glyph: codes[name]}
	}
	return out
}
