package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

// Hub owns the session registry and channel directory. Every mutation that
// touches both stores runs under one mutex so that, between operations, an
// endpoint is a member of a channel exactly when its session lists that
// channel. Lock order is Hub.mu, then the store locks.
type Hub struct {
	mu       sync.Mutex
	sessions *SessionRegistry
	channels *ChannelDirectory
	now      func() time.Time
}

// NewHub creates a hub with empty stores. A nil clock means time.Now.
func NewHub(clock func() time.Time) *Hub {
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		sessions: NewSessionRegistry(clock),
		channels: NewChannelDirectory(),
		now:      clock,
	}
}

// Sessions returns the session registry.
func (h *Hub) Sessions() *SessionRegistry { return h.sessions }

// Channels returns the channel directory.
func (h *Hub) Channels() *ChannelDirectory { return h.channels }

// Now returns the hub clock's current time.
func (h *Hub) Now() time.Time { return h.now() }

// Register creates a session for ep and joins it to the default channel.
// A session already bound to ep is dropped from all of its channels first
// and returned as replaced.
func (h *Hub) Register(ep model.Endpoint, username string) (sess model.Session, replaced *model.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.dropLocked(ep); ok {
		replaced = &old
	}
	sess = h.sessions.Register(ep, username)
	h.channels.Join(model.DefaultChannel, ep)
	return sess, replaced
}

// Deregister removes ep's session and its memberships.
func (h *Hub) Deregister(ep model.Endpoint) (model.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropLocked(ep)
}

func (h *Hub) dropLocked(ep model.Endpoint) (model.Session, bool) {
	sess, ok := h.sessions.Remove(ep)
	if !ok {
		return model.Session{}, false
	}
	for _, name := range sess.Channels {
		h.channels.Leave(name, ep)
	}
	return sess, true
}

// Join adds ep to channel on both sides. ok is false when ep has no
// session; joined is false when it was already a member.
func (h *Hub) Join(ep model.Endpoint, channel string) (joined, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions.Get(ep)
	if !ok {
		return false, false
	}
	if sess.InChannel(channel) {
		return false, true
	}
	h.sessions.AddChannel(ep, channel)
	h.channels.Join(channel, ep)
	return true, true
}

// Leave removes ep from channel on both sides. ok is false when ep has no
// session; left is false when it was not a member.
func (h *Hub) Leave(ep model.Endpoint, channel string) (left, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions.Get(ep); !ok {
		return false, false
	}
	if !h.sessions.RemoveChannel(ep, channel) {
		return false, true
	}
	h.channels.Leave(channel, ep)
	return true, true
}

// Evict deregisters every session silent since before cutoff, in a single
// critical section, and returns what was removed.
func (h *Hub) Evict(cutoff time.Time) []model.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	var evicted []model.Session
	for _, ep := range h.sessions.Expired(cutoff) {
		// Touch does not take h.mu, so the session may have been refreshed
		// since Expired ran.
		sess, ok := h.sessions.RemoveIfIdle(ep, cutoff)
		if !ok {
			continue
		}
		for _, name := range sess.Channels {
			h.channels.Leave(name, ep)
		}
		evicted = append(evicted, sess)
	}
	return evicted
}

// Touch refreshes ep's last activity. It reports whether ep has a session.
func (h *Hub) Touch(ep model.Endpoint) bool {
	return h.sessions.Touch(ep)
}

// Session returns a snapshot of ep's session.
func (h *Hub) Session(ep model.Endpoint) (model.Session, bool) {
	return h.sessions.Get(ep)
}

// ChannelNames returns all channel names in creation order.
func (h *Hub) ChannelNames() []string {
	return h.channels.AllChannelNames()
}

// WhoIsOn returns the usernames of channel's members in join order.
func (h *Hub) WhoIsOn(channel string) ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels.MembersOf(channel)
	if !ok {
		return nil, false
	}
	return lo.FilterMap(members, func(ep model.Endpoint, _ int) (string, bool) {
		return h.sessions.Username(ep)
	}), true
}

// CheckConsistency verifies the cross-store invariants and returns every
// violation found.
func (h *Hub) CheckConsistency() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, sess := range h.sessions.All() {
		for _, name := range sess.Channels {
			if !h.channels.IsMember(name, sess.Endpoint) {
				errs = append(errs, fmt.Errorf("session %s lists %q but is not a member", sess.Endpoint, name))
			}
		}
	}
	for _, ch := range h.channels.All() {
		if len(ch.Members) == 0 {
			errs = append(errs, fmt.Errorf("channel %q is empty", ch.Name))
		}
		for _, ep := range ch.Members {
			sess, ok := h.sessions.Get(ep)
			if !ok {
				errs = append(errs, fmt.Errorf("channel %q has member %s without a session", ch.Name, ep))
				continue
			}
			if !sess.InChannel(ch.Name) {
				errs = append(errs, fmt.Errorf("channel %q has member %s whose session does not list it", ch.Name, ep))
			}
		}
	}
	return errors.Join(errs...)
}
