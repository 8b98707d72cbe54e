// Package directory defines the contract between the presentation core and
// the Directory Service, the collaborator that owns channel and folder
// storage, invite issuance and membership truth.
package directory

import (
	"context"
	"strings"
	"time"
)

// Sentinel marks a structural (separator) node in legacy display names.
const Sentinel = "-----"

// NoChannelSelected is the selection value before any channel is chosen.
const NoChannelSelected = "NoChannelSelected"

// NodeKind tags a tree node. KindUnknown means the producer did not tag the
// node: sentinel names are separators, leaves are channels and the rest are
// folders.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindChannel
	KindFolder
	KindSeparator
)

// String returns the lowercase kind name.
func (k NodeKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindFolder:
		return "folder"
	case KindSeparator:
		return "separator"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised values
// decode to KindUnknown.
func (k *NodeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "channel":
		*k = KindChannel
	case "folder":
		*k = KindFolder
	case "separator":
		*k = KindSeparator
	default:
		*k = KindUnknown
	}
	return nil
}

// NodeData holds the display fields of a Node.
type NodeData struct {
	Name  string   `json:"name" yaml:"name"`
	Items int      `json:"items" yaml:"items"`
	Kind  NodeKind `json:"kind" yaml:"-"`
}

// Node is one element of the channel/folder tree as produced by the
// Directory Service. A nil Data or an empty name makes the node malformed.
type Node struct {
	Data     *NodeData `json:"data"`
	Children []Node    `json:"children,omitempty"`
}

// Name returns the node name or "" when Data is missing.
func (n Node) Name() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.Name
}

// Structural reports whether the node is a separator that must not appear
// in the normalized tree. Its children are still visited.
func (n Node) Structural() bool {
	if n.Data == nil {
		return false
	}
	if n.Data.Kind == KindSeparator {
		return true
	}
	return IsStructuralName(n.Data.Name)
}

// IsStructuralName reports whether name carries the legacy sentinel.
func IsStructuralName(name string) bool {
	return strings.Contains(name, Sentinel)
}

// FolderPath names a folder by the folder names leading to it from the
// root. An empty path is the root itself.
type FolderPath []string

// String joins the path with "/".
func (p FolderPath) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// IsRoot reports whether the path names the root.
func (p FolderPath) IsRoot() bool { return len(p) == 0 }

// Child returns a new path with name appended.
func (p FolderPath) Child(name string) FolderPath {
	out := make(FolderPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// InviteCode is an issued invite for a channel.
type InviteCode struct {
	Link                    string    `json:"link"`
	Channel                 string    `json:"channel"`
	MaxUses                 int       `json:"maxUses"`
	Uses                    int       `json:"uses"`
	IncludesFolderStructure bool      `json:"includesFolderStructure"`
	CreatedAt               time.Time `json:"createdAt"`
}

// InviteList is the response shape of InviteCodes.
type InviteList struct {
	Items []InviteCode `json:"items"`
}

// Contains reports whether the list holds link.
func (l InviteList) Contains(link string) bool {
	for _, c := range l.Items {
		if c.Link == link {
			return true
		}
	}
	return false
}

// Attachment is a file sent along with a message.
type Attachment struct {
	Path    string
	Name    string
	Size    int64
	IsImage bool
}

// TreeSource provides tree snapshots, pulled or pushed.
type TreeSource interface {
	ChannelFolderTree(ctx context.Context) ([]Node, error)
	// WatchTree streams a snapshot after every structural change until ctx
	// is done, then closes the channel.
	WatchTree(ctx context.Context) (<-chan []Node, error)
}

// ChannelLister returns the channels that may currently be selected.
type ChannelLister interface {
	ChannelNames(ctx context.Context) ([]string, error)
}

// InviteService is the invite, ownership and challenge-flag surface used by
// the channel settings panel.
type InviteService interface {
	IsOwner(ctx context.Context, channel string) (bool, error)
	CreateInvite(ctx context.Context, channel string, maxUses int, includeFolderStructure bool) (string, error)
	InviteCodes(ctx context.Context, channel string) (InviteList, error)
	RemoveInviteCode(ctx context.Context, channel, link string) error
	ChallengeFlag(ctx context.Context, channel string) (bool, error)
	EnableChallenge(ctx context.Context, channel string) error
	DisableChallenge(ctx context.Context, channel string) error
}

// LifecycleService creates, imports and removes channels and folders.
type LifecycleService interface {
	// CreateChannel returns the canonical name, which may differ from name.
	CreateChannel(ctx context.Context, name string, target FolderPath) (string, error)
	// ImportChannel redeems an invite and returns the canonical name of the
	// joined channel.
	ImportChannel(ctx context.Context, inviteCode string, target FolderPath, includeFolderStructure bool) (string, error)
	AddToFolderList(ctx context.Context, canonicalName string, target FolderPath) error
	CreateFolder(ctx context.Context, name string, parent FolderPath) error
	// Commit persists pending structural changes.
	Commit(ctx context.Context) error
	RemoveChannel(ctx context.Context, channel string) error
}

// MentionSource lists identifiers that may be mentioned in a channel.
type MentionSource interface {
	MentionCandidates(ctx context.Context, channel string) ([]string, error)
}

// MessagePoster delivers composed messages.
type MessagePoster interface {
	PostMessage(ctx context.Context, channel, text string, files []Attachment) error
}

// Service is the full Directory Service contract.
type Service interface {
	TreeSource
	ChannelLister
	InviteService
	LifecycleService
	MentionSource
	MessagePoster
	// Ready is closed once the service can answer requests.
	Ready() <-chan struct{}
	Close() error
}
