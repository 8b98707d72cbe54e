// Package keyring resolves the Slack tokens used by the Slack directory
// backend from the environment or the system keyring.
package keyring

import (
	"errors"
	"fmt"
	"os"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/cjrutherford/qd-messages/internal/consts"
)

const (
	userTokenUser = "user_token"
	appTokenUser  = "app_token"

	userTokenEnv = "QDMESSAGES_SLACK_USER_TOKEN"
	appTokenEnv  = "QDMESSAGES_SLACK_APP_TOKEN"
	botTokenEnv  = "QDMESSAGES_SLACK_BOT_TOKEN"
)

// Tokens holds the resolved Slack credentials.
type Tokens struct {
	User string
	App  string
}

// GetUserToken returns the user token from QDMESSAGES_SLACK_USER_TOKEN,
// then QDMESSAGES_SLACK_BOT_TOKEN, falling back to the system keyring.
func GetUserToken() (string, error) {
	if v := os.Getenv(userTokenEnv); v != "" {
		return v, nil
	}
	if v := os.Getenv(botTokenEnv); v != "" {
		return v, nil
	}
	return gokeyring.Get(consts.Name, userTokenUser)
}

// GetAppToken returns the app-level token from QDMESSAGES_SLACK_APP_TOKEN,
// falling back to the system keyring.
func GetAppToken() (string, error) {
	if v := os.Getenv(appTokenEnv); v != "" {
		return v, nil
	}
	return gokeyring.Get(consts.Name, appTokenUser)
}

// SetUserToken stores the user token in the system keyring.
func SetUserToken(token string) error {
	return gokeyring.Set(consts.Name, userTokenUser, token)
}

// SetAppToken stores the app-level token in the system keyring.
func SetAppToken(token string) error {
	return gokeyring.Set(consts.Name, appTokenUser, token)
}

// DeleteUserToken removes the user token from the system keyring.
func DeleteUserToken() error {
	return gokeyring.Delete(consts.Name, userTokenUser)
}

// DeleteAppToken removes the app-level token from the system keyring.
func DeleteAppToken() error {
	return gokeyring.Delete(consts.Name, appTokenUser)
}

// Resolve returns both tokens. The app token is optional; without it the
// Slack backend runs without live events.
func Resolve() (Tokens, error) {
	user, err := GetUserToken()
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return Tokens{}, fmt.Errorf("no Slack user token: set %s or store one in the keyring", userTokenEnv)
		}
		return Tokens{}, fmt.Errorf("reading Slack user token: %w", err)
	}
	app, err := GetAppToken()
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return Tokens{}, fmt.Errorf("reading Slack app token: %w", err)
	}
	return Tokens{User: user, App: app}, nil
}
