package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds the text of a single chat line, in bytes.
const MaxTextLength = 256

var ErrTextTooLong = fmt.Errorf("message text exceeds %d bytes", MaxTextLength)
var ErrTextInvalid = errors.New("message text must be valid UTF-8 without NUL bytes")

// ValidateText checks a chat line. Empty text is allowed on the wire; the
// client never sends it.
func ValidateText(text string) error {
	if len(text) > MaxTextLength {
		return ErrTextTooLong
	}
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		return ErrTextInvalid
	}
	return nil
}

// FormatChatLine renders a broadcast line as "[channel][username]: text".
func FormatChatLine(channel, username, text string) string {
	return "[" + channel + "][" + username + "]: " + text
}
