package platform

import (
	"errors"
	"net/http"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrNotFound is returned when the message, channel or member no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the bot lacks the permission for an operation.
	ErrForbidden = errors.New("missing permissions")
)

// JSON error codes returned by the REST API.
const (
	codeUnknownChannel     = 10003
	codeUnknownMember      = 10007
	codeUnknownMessage     = 10008
	codeUnknownUser        = 10013
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

// Message is the subset of a chat message the moderation pipeline needs.
type Message struct {
	ID         snowflake.ID
	ChannelID  snowflake.ID
	GuildID    snowflake.ID
	AuthorID   snowflake.ID
	AuthorName string
	Content    string
}

// Member is a resolved guild member.
type Member struct {
	UserID    snowflake.ID
	Username  string
	AvatarURL string
}

// classify maps REST failures onto ErrNotFound and ErrForbidden, leaving
// every other error untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}

	// The REST client returns rest.Error by value.
	var restErr rest.Error
	if ptr := (*rest.Error)(nil); errors.As(err, &ptr) && ptr != nil {
		restErr = *ptr
	} else if !errors.As(err, &restErr) {
		return err
	}

	switch int(restErr.Code) {
	case codeUnknownChannel, codeUnknownMember, codeUnknownMessage, codeUnknownUser:
		return errors.Join(ErrNotFound, err)
	case codeMissingAccess, codeMissingPermissions:
		return errors.Join(ErrForbidden, err)
	}

	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return errors.Join(ErrNotFound, err)
		case http.StatusForbidden:
			return errors.Join(ErrForbidden, err)
		}
	}

	return err
}
