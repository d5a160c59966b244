package client

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/NicolasHaas/mustangchat/pkg/model"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// HelpText lists the slash commands.
const HelpText = `Available commands:
/help                 Show this help menu
/join <channel>       Join or create a channel
/leave <channel>      Leave a channel
/switch <channel>     Switch your active channel
/list                 List all channels
/who <channel>        Show users in a channel
/exit                 Logout and quit`

// Local replies printed without contacting the server.
const (
	OutputNotJoined     = "You are not in that channel."
	OutputJoinFirst     = "You must join the channel first."
	OutputGoodbye       = "Goodbye!"
	OutputMessageTooBig = "Message too long."
)

// Command is the outcome of one input line.
type Command struct {
	Message *protocol.Message // nil = nothing to send
	Output  string            // printed locally when not empty
	Quit    bool
}

// Session tracks the channels the user has joined and the active channel
// that plain lines are said into. It mirrors server state optimistically:
// a join is recorded as soon as it is sent.
type Session struct {
	mu     sync.Mutex
	active string
	joined []string
}

// NewSession returns a session joined to the default channel only.
func NewSession() *Session {
	return &Session{
		active: model.DefaultChannel,
		joined: []string{model.DefaultChannel},
	}
}

// Active returns the channel plain lines are sent to.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Joined returns the joined channels in join order.
func (s *Session) Joined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.joined)
}

// Handle interprets one line of user input.
func (s *Session) Handle(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		return Command{Output: HelpText}
	case "/exit":
		return send(protocol.Deregister(), OutputGoodbye, true)
	case "/list":
		return send(protocol.ListChannels(), "", false)
	case "/join", "/leave", "/switch", "/who":
		if arg == "" {
			return Command{Output: "usage: " + cmd + " <channel>"}
		}
		if err := model.ValidateChannelName(arg); err != nil {
			return Command{Output: "Invalid channel name: " + err.Error()}
		}
		return s.channelCommand(cmd, arg)
	}

	if len(line) > model.MaxTextLength {
		return Command{Output: OutputMessageTooBig}
	}
	return send(protocol.Say(s.Active(), line), "", false)
}

func (s *Session) channelCommand(cmd, ch string) Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case "/join":
		if !lo.Contains(s.joined, ch) {
			s.joined = append(s.joined, ch)
		}
		s.active = ch
		return send(protocol.Join(ch), "", false)
	case "/leave":
		if !lo.Contains(s.joined, ch) {
			return Command{Output: OutputNotJoined}
		}
		s.joined = lo.Without(s.joined, ch)
		if s.active == ch {
			s.active = model.DefaultChannel
		}
		return send(protocol.Leave(ch), "", false)
	case "/switch":
		if !lo.Contains(s.joined, ch) {
			return Command{Output: OutputJoinFirst}
		}
		s.active = ch
		return Command{Output: "Switched to " + ch}
	default: // "/who"
		return send(protocol.WhoIsOn(ch), "", false)
	}
}

func send(msg protocol.Message, output string, quit bool) Command {
	return Command{Message: &msg, Output: output, Quit: quit}
}
