package server

import "strings"

// Reply texts sent back to clients as plain UTF-8 datagrams.
const (
	ReplyInvalidMessage = "Invalid message format."
	ReplyUnknownType    = "Unknown message type."
	ReplyNotLoggedIn    = "Error: You are not logged in."
	ReplyNotInChannel   = "You are not in that channel."
	ReplySayNotMember   = "Error: You are not in that channel."
	ReplyNoChannels     = "No channels"
)

func replyWelcome(username, channel string) string {
	return "Welcome " + username + "! Joined " + channel + "."
}

func replyGoodbye(username string) string {
	return "You have been logged out, " + username + "."
}

func replyJoined(channel string) string { return "Joined channel " + channel }

func replyLeft(channel string) string { return "Left channel " + channel }

func replyChannels(names []string) string {
	if len(names) == 0 {
		return ReplyNoChannels
	}
	return "Channels: " + strings.Join(names, ", ")
}

func replyNoSuchChannel(channel string) string {
	return "Channel " + channel + " does not exist."
}

func replyUsers(channel string, usernames []string) string {
	return "Users in " + channel + ": " + strings.Join(usernames, ", ")
}
