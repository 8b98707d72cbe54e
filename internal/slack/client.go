package slack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// pageSize is the page limit used for paginated conversation calls.
const pageSize = 200

// Client is a thin wrapper around slack.Client with rate-limit retry
// and cached identity information.
type Client struct {
	api      *slack.Client
	UserID   string
	TeamID   string
	TeamName string
	UserName string

	socketMode bool
}

// New creates a Client, validates the tokens via AuthTest, and populates
// the identity fields. appToken is optional; without it RunSocketMode is
// unavailable.
func New(ctx context.Context, userToken, appToken string) (*Client, error) {
	opts := []slack.Option{}
	if appToken != "" {
		if !strings.HasPrefix(appToken, "xapp-") {
			return nil, fmt.Errorf("app token must start with xapp- (got %s...)", safePrefix(appToken))
		}
		opts = append(opts, slack.OptionAppLevelToken(appToken))
	}

	api := slack.New(userToken, opts...)

	var resp *slack.AuthTestResponse
	err := retryOnRateLimit(ctx, func() error {
		var e error
		resp, e = api.AuthTestContext(ctx)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("slack auth test: %w", err)
	}

	return &Client{
		api:        api,
		UserID:     resp.UserID,
		TeamID:     resp.TeamID,
		TeamName:   resp.Team,
		UserName:   resp.User,
		socketMode: appToken != "",
	}, nil
}

// SocketMode reports whether an app token was supplied.
func (c *Client) SocketMode() bool { return c.socketMode }

func safePrefix(token string) string {
	if len(token) > 5 {
		return token[:5]
	}
	return token
}

// retryOnRateLimit executes fn and, if a RateLimitedError is returned,
// waits for the requested duration and retries once.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		timer := time.NewTimer(rle.RetryAfter)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		return fn()
	}
	return err
}

// MemberChannels returns every non-archived public or private channel the
// user belongs to.
func (c *Client) MemberChannels(ctx context.Context) ([]slack.Channel, error) {
	var all []slack.Channel
	cursor := ""
	for {
		var (
			page []slack.Channel
			next string
		)
		err := retryOnRateLimit(ctx, func() error {
			var e error
			page, next, e = c.api.GetConversationsForUserContext(ctx, &slack.GetConversationsForUserParameters{
				Cursor:          cursor,
				Types:           []string{"public_channel", "private_channel"},
				Limit:           pageSize,
				ExcludeArchived: true,
			})
			return e
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// FindChannel looks up a public channel by name. It returns nil when no
// channel matches.
func (c *Client) FindChannel(ctx context.Context, name string) (*slack.Channel, error) {
	cursor := ""
	for {
		var (
			page []slack.Channel
			next string
		)
		err := retryOnRateLimit(ctx, func() error {
			var e error
			page, next, e = c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
				Cursor:          cursor,
				Types:           []string{"public_channel"},
				Limit:           pageSize,
				ExcludeArchived: true,
			})
			return e
		})
		if err != nil {
			return nil, err
		}
		for i := range page {
			if page[i].Name == name {
				return &page[i], nil
			}
		}
		if next == "" {
			return nil, nil
		}
		cursor = next
	}
}

// ConversationInfo returns a single channel.
func (c *Client) ConversationInfo(ctx context.Context, channelID string) (*slack.Channel, error) {
	var ch *slack.Channel
	err := retryOnRateLimit(ctx, func() error {
		var e error
		ch, e = c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
		return e
	})
	return ch, err
}

// CreateConversation creates a new channel (public or private).
func (c *Client) CreateConversation(ctx context.Context, name string, isPrivate bool) (*slack.Channel, error) {
	var ch *slack.Channel
	err := retryOnRateLimit(ctx, func() error {
		var e error
		ch, e = c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
			ChannelName: name,
			IsPrivate:   isPrivate,
		})
		return e
	})
	return ch, err
}

// ArchiveConversation archives a channel.
func (c *Client) ArchiveConversation(ctx context.Context, channelID string) error {
	return retryOnRateLimit(ctx, func() error {
		return c.api.ArchiveConversationContext(ctx, channelID)
	})
}

// JoinConversation joins a public channel.
func (c *Client) JoinConversation(ctx context.Context, channelID string) (*slack.Channel, error) {
	var ch *slack.Channel
	err := retryOnRateLimit(ctx, func() error {
		var e error
		ch, _, _, e = c.api.JoinConversationContext(ctx, channelID)
		return e
	})
	return ch, err
}

// ConversationMembers returns the user IDs of a channel, all pages.
func (c *Client) ConversationMembers(ctx context.Context, channelID string) ([]string, error) {
	var all []string
	cursor := ""
	for {
		var (
			ids  []string
			next string
		)
		err := retryOnRateLimit(ctx, func() error {
			var e error
			ids, next, e = c.api.GetUsersInConversationContext(ctx, &slack.GetUsersInConversationParameters{
				ChannelID: channelID,
				Cursor:    cursor,
				Limit:     pageSize,
			})
			return e
		})
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// Users returns all users in the workspace.
func (c *Client) Users(ctx context.Context) ([]slack.User, error) {
	var users []slack.User
	err := retryOnRateLimit(ctx, func() error {
		var e error
		users, e = c.api.GetUsersContext(ctx)
		return e
	})
	return users, err
}

// PostMessage sends a message to a channel. If the user is not a member of the
// channel, it automatically joins first and retries.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	post := func() error {
		return retryOnRateLimit(ctx, func() error {
			_, _, e := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
			return e
		})
	}
	err := post()
	if err != nil && isNotInChannel(err) {
		if _, joinErr := c.JoinConversation(ctx, channelID); joinErr != nil {
			return fmt.Errorf("auto-join failed: %w", joinErr)
		}
		err = post()
	}
	return err
}

// isNotInChannel checks if the error is a "not_in_channel" Slack API error.
func isNotInChannel(err error) bool { return HasErrorCode(err, "not_in_channel") }

// HasErrorCode reports whether err is a Slack API error with the given code.
func HasErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == code
	}
	return strings.Contains(err.Error(), code)
}

// UploadFile uploads the file at path to a channel.
func (c *Client) UploadFile(ctx context.Context, channelID, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return retryOnRateLimit(ctx, func() error {
		_, e := c.api.UploadFileContext(ctx, slack.UploadFileParameters{
			File:     path,
			FileSize: int(info.Size()),
			Filename: name,
			Title:    name,
			Channel:  channelID,
		})
		return e
	})
}
