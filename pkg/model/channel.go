package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChannel is joined by every session on registration.
	DefaultChannel = "Common"

	// MaxNameLength bounds usernames and channel names, in bytes.
	MaxNameLength = 32
)

var ErrChannelNameEmpty = errors.New("channel name must not be empty")
var ErrChannelNameTooLong = fmt.Errorf("channel name must not exceed %d bytes", MaxNameLength)
var ErrChannelNameInvalid = errors.New("channel name must be printable UTF-8")

// Channel is a named broadcast group. Members are kept in join order.
type Channel struct {
	Name    string
	Members []Endpoint
}

// ValidateChannelName checks that a channel name is 1-32 bytes of printable UTF-8.
// Names are case-sensitive and are not normalised.
func ValidateChannelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrChannelNameEmpty
	}
	if len(name) > MaxNameLength {
		return ErrChannelNameTooLong
	}
	if !printable(name) {
		return ErrChannelNameInvalid
	}
	return nil
}

func printable(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
