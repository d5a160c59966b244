package server

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/model"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// Dispatcher applies decoded datagrams to the hub and emits the replies.
//
// Per endpoint the protocol has two states: Unregistered (no session) and
// Active. Only Register is honoured while Unregistered; Deregister and
// eviction return the endpoint to Unregistered.
type Dispatcher struct {
	hub     *Hub
	codec   protocol.Codec
	out     Sender
	metrics *Metrics
	journal datastore.Recorder // nil = journaling disabled
	log     *slog.Logger
}

// DispatcherDeps holds the collaborators of a Dispatcher. Metrics and
// Journal are optional.
type DispatcherDeps struct {
	Hub     *Hub
	Codec   protocol.Codec
	Out     Sender
	Metrics *Metrics
	Journal datastore.Recorder
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	m := deps.Metrics
	if m == nil {
		m = NewMetrics()
	}
	codec := deps.Codec
	if codec == nil {
		codec = protocol.BinaryCodec{}
	}
	return &Dispatcher{
		hub:     deps.Hub,
		codec:   codec,
		out:     deps.Out,
		metrics: m,
		journal: deps.Journal,
		log:     logging.For("dispatch"),
	}
}

// Handle processes one datagram from ep. It never panics and never returns
// an error: every failure is answered, logged or counted here so that one
// misbehaving client cannot stop the receive loop.
func (d *Dispatcher) Handle(ep model.Endpoint, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerPanics.Add(1)
			d.log.Error("handler panic", "remote", ep, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	// Any datagram from an active endpoint counts as activity, even one
	// that fails to decode.
	active := d.hub.Touch(ep)

	msg, err := d.codec.Decode(data)
	if err != nil {
		d.metrics.DecodeErrors.Add(1)
		d.log.Debug("decode failed", "remote", ep, "bytes", len(data), "err", err)
		if errors.Is(err, protocol.ErrUnknownType) {
			d.reply(ep, ReplyUnknownType)
		} else {
			d.reply(ep, ReplyInvalidMessage)
		}
		return
	}

	if msg.Type == protocol.TypeRegister {
		d.handleRegister(ep, msg.Username)
		return
	}
	if !active {
		d.reject(ep, msg.Type, ReplyNotLoggedIn)
		return
	}

	switch msg.Type {
	case protocol.TypeDeregister:
		d.handleDeregister(ep)
	case protocol.TypeJoin:
		d.handleJoin(ep, msg.Channel)
	case protocol.TypeLeave:
		d.handleLeave(ep, msg.Channel)
	case protocol.TypeSay:
		d.handleSay(ep, msg.Channel, msg.Text)
	case protocol.TypeListChannels:
		d.reply(ep, replyChannels(d.hub.ChannelNames()))
	case protocol.TypeWhoIsOn:
		d.handleWhoIsOn(ep, msg.Channel)
	case protocol.TypeKeepAlive:
		// Touch above already refreshed the session.
	}
}

func (d *Dispatcher) handleRegister(ep model.Endpoint, username string) {
	sess, replaced := d.hub.Register(ep, username)
	d.metrics.Registrations.Add(1)

	events := make([]datastore.Event, 0, 2)
	if replaced != nil {
		d.log.Info("session replaced", "remote", ep, "old_user", replaced.Username, "user", username)
		events = append(events, sessionEvent(*replaced, datastore.EventReplace, sess.CreatedAt))
	}
	d.log.Info("login", "remote", ep, "user", username, "session", sess.ID)
	events = append(events, sessionEvent(sess, datastore.EventRegister, sess.CreatedAt))
	d.record(events...)

	d.reply(ep, replyWelcome(username, model.DefaultChannel))
}

func (d *Dispatcher) handleDeregister(ep model.Endpoint) {
	sess, ok := d.hub.Deregister(ep)
	if !ok {
		// Evicted between Touch and here.
		d.reject(ep, protocol.TypeDeregister, ReplyNotLoggedIn)
		return
	}
	d.metrics.Deregistrations.Add(1)
	d.log.Info("logout", "remote", ep, "user", sess.Username, "session", sess.ID)
	d.record(sessionEvent(sess, datastore.EventDeregister, d.hub.Now()))
	d.reply(ep, replyGoodbye(sess.Username))
}

func (d *Dispatcher) handleJoin(ep model.Endpoint, channel string) {
	joined, ok := d.hub.Join(ep, channel)
	if !ok {
		d.reject(ep, protocol.TypeJoin, ReplyNotLoggedIn)
		return
	}
	if joined {
		d.log.Info("join", "remote", ep, "channel", channel)
	}
	d.reply(ep, replyJoined(channel))
}

func (d *Dispatcher) handleLeave(ep model.Endpoint, channel string) {
	left, ok := d.hub.Leave(ep, channel)
	switch {
	case !ok:
		d.reject(ep, protocol.TypeLeave, ReplyNotLoggedIn)
	case !left:
		d.reject(ep, protocol.TypeLeave, ReplyNotInChannel)
	default:
		d.log.Info("leave", "remote", ep, "channel", channel)
		d.reply(ep, replyLeft(channel))
	}
}

func (d *Dispatcher) handleSay(ep model.Endpoint, channel, text string) {
	sess, ok := d.hub.Session(ep)
	if !ok {
		d.reject(ep, protocol.TypeSay, ReplyNotLoggedIn)
		return
	}
	if !sess.InChannel(channel) {
		d.reject(ep, protocol.TypeSay, ReplySayNotMember)
		return
	}

	line := model.FormatChatLine(channel, sess.Username, text)
	sent, errs := d.hub.Channels().Broadcast(channel, line, d.out)
	d.metrics.ChatMessages.Add(1)
	d.metrics.ChatDelivers.Add(int64(sent))
	for _, err := range errs {
		d.log.Debug("broadcast send failed", "channel", channel, "err", err)
	}
	d.log.Debug("say", "channel", channel, "user", sess.Username, "delivered", sent)
}

func (d *Dispatcher) handleWhoIsOn(ep model.Endpoint, channel string) {
	users, ok := d.hub.WhoIsOn(channel)
	if !ok {
		d.reply(ep, replyNoSuchChannel(channel))
		return
	}
	d.reply(ep, replyUsers(channel, users))
}

// reject answers a message the sender's state does not allow.
func (d *Dispatcher) reject(ep model.Endpoint, t protocol.MessageType, text string) {
	d.metrics.ProtocolRejected.Add(1)
	d.log.Debug("rejected", "remote", ep, "type", t, "reason", text)
	d.reply(ep, text)
}

// reply sends a plain-text datagram. Failures are logged and dropped.
func (d *Dispatcher) reply(ep model.Endpoint, text string) {
	if err := d.out.Send(ep, []byte(text)); err != nil {
		d.log.Debug("reply send failed", "remote", ep, "err", err)
	}
}

// record journals events outside any hub lock. Failures are logged only.
func (d *Dispatcher) record(events ...datastore.Event) {
	recordEvents(d.journal, d.log, events...)
}

// recordEvents hands events to j, which in a running server is a
// JournalWriter and returns without touching the database.
func recordEvents(j datastore.Recorder, log *slog.Logger, events ...datastore.Event) {
	if j == nil || len(events) == 0 {
		return
	}
	if err := j.Record(context.Background(), events...); err != nil {
		log.Warn("journal events not recorded", "events", len(events), "err", err)
	}
}

func sessionEvent(s model.Session, kind datastore.EventKind, at time.Time) datastore.Event {
	return datastore.Event{
		SessionID: s.ID,
		Endpoint:  s.Endpoint.String(),
		Username:  s.Username,
		Kind:      kind,
		At:        at,
	}
}
