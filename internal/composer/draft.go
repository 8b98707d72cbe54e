// Package composer holds the message draft model behind the chat form:
// mention candidates, emoji insertion, attachments and the send gate.
package composer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cjrutherford/qd-messages/internal/directory"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// IsImage reports whether path has an image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Draft is an unsent message.
type Draft struct {
	Text  string
	Files []directory.Attachment
}

// AddEmoji appends " :code: " to the text. Unknown shortcodes are
// rejected with a ValidationError.
func (d *Draft) AddEmoji(code string) error {
	name := strings.Trim(strings.TrimSpace(code), ":")
	if _, ok := LookupEmoji(name); !ok {
		return &directory.ValidationError{Field: "emoji", Message: fmt.Sprintf("unknown shortcode %q", code)}
	}
	d.Text += " :" + name + ": "
	return nil
}

// AddMention replaces the trailing @prefix with @name.
func (d *Draft) AddMention(name string) {
	if i := strings.LastIndex(d.Text, "@"); i >= 0 && !strings.ContainsAny(d.Text[i:], " \n") {
		d.Text = d.Text[:i]
	}
	d.Text += "@" + name + " "
}

// Attach adds the file at path. Directories and missing files are
// rejected.
func (d *Draft) Attach(path string) (directory.Attachment, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return directory.Attachment{}, &directory.ValidationError{Field: "file", Message: err.Error()}
	}
	if info.IsDir() {
		return directory.Attachment{}, &directory.ValidationError{Field: "file", Message: path + " is a directory"}
	}

	att := directory.Attachment{
		Path:    path,
		Name:    info.Name(),
		Size:    info.Size(),
		IsImage: IsImage(path),
	}
	d.Files = append(d.Files, att)
	return att, nil
}

// RemoveFile drops the attachment at index i.
func (d *Draft) RemoveFile(i int) {
	if i < 0 || i >= len(d.Files) {
		return
	}
	d.Files = slices.Delete(d.Files, i, i+1)
}

// Ready reports whether the draft can be sent.
func (d *Draft) Ready() bool {
	return len(d.Files) > 0 || strings.TrimSpace(d.Text) != ""
}

// Reset empties the draft.
func (d *Draft) Reset() {
	d.Text = ""
	d.Files = nil
}

// Send posts the draft to channel and resets it on success.
func Send(ctx context.Context, poster directory.MessagePoster, channel string, d *Draft) error {
	if !d.Ready() {
		return &directory.ValidationError{Field: "message", Message: "nothing to send"}
	}
	if channel == "" || channel == directory.NoChannelSelected {
		return &directory.ValidationError{Field: "channel", Message: "no channel selected"}
	}
	if err := poster.PostMessage(ctx, channel, strings.TrimSpace(d.Text), slices.Clone(d.Files)); err != nil {
		return fmt.Errorf("sending message to %s: %w", channel, err)
	}
	d.Reset()
	return nil
}
