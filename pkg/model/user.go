package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d bytes", MaxNameLength)
var ErrUsernameInvalidChars = errors.New("username must be printable UTF-8")

// ValidateUsername checks that a username is 1-32 bytes of printable UTF-8.
// Unlike channel names the surrounding whitespace is significant for display,
// so a name consisting only of spaces is rejected as empty.
func ValidateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrUsernameEmpty
	}
	if len(name) > MaxNameLength {
		return ErrUsernameTooLong
	}
	if !printable(name) {
		return ErrUsernameInvalidChars
	}
	return nil
}
