package directory

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Registration binds a Telegram user to a line address and the group chat
// incoming calls are announced in. One registration per user; re-registering
// replaces the previous address.
type Registration struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	Username   string    `json:"username,omitempty" db:"username"`
	Address    string    `json:"address" db:"address"`
	HomeChatID int64     `json:"home_chat_id" db:"home_chat_id"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Contact is one entry in a user's personal contact book.
type Contact struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var (
	ErrNotRegistered   = errors.New("participant not registered")
	ErrInvalidAddress  = errors.New("invalid address format")
	ErrAddressTaken    = errors.New("address registered to another participant")
	ErrContactNotFound = errors.New("contact not found")
)

// Addresses are one letter followed by four digits, e.g. A1234. Stored and
// compared uppercase.
var addressPattern = regexp.MustCompile(`^[A-Za-z][0-9]{4}$`)

// NormalizeAddress validates and canonicalizes a human-entered address.
func NormalizeAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !addressPattern.MatchString(s) {
		return "", ErrInvalidAddress
	}
	return strings.ToUpper(s), nil
}
