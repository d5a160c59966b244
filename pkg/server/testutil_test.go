package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/model"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

var (
	alice = model.MustEndpoint("10.0.0.1:4001")
	bob   = model.MustEndpoint("10.0.0.2:4002")
	carol = model.MustEndpoint("[2001:db8::3]:4003")
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSender records every datagram per destination.
type fakeSender struct {
	mu   sync.Mutex
	sent map[model.Endpoint][]string
	fail map[model.Endpoint]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent: make(map[model.Endpoint][]string),
		fail: make(map[model.Endpoint]error),
	}
}

func (s *fakeSender) Send(ep model.Endpoint, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[ep]; err != nil {
		return &SendError{Endpoint: ep, Err: err}
	}
	s.sent[ep] = append(s.sent[ep], string(payload))
	return nil
}

// Take returns and clears everything sent to ep.
func (s *fakeSender) Take(ep model.Endpoint) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	got := s.sent[ep]
	delete(s.sent, ep)
	return got
}

// harness wires a dispatcher and sweeper to fakes.
type harness struct {
	t       *testing.T
	clock   *fakeClock
	hub     *Hub
	out     *fakeSender
	journal *datastore.Memory
	metrics *Metrics
	disp    *Dispatcher
	sweeper *Sweeper
	codec   protocol.Codec
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   newFakeClock(),
		out:     newFakeSender(),
		journal: datastore.NewMemory(),
		metrics: NewMetrics(),
		codec:   protocol.BinaryCodec{},
	}
	h.hub = NewHub(h.clock.Now)
	h.disp = NewDispatcher(DispatcherDeps{
		Hub:     h.hub,
		Codec:   h.codec,
		Out:     h.out,
		Metrics: h.metrics,
		Journal: h.journal,
	})
	h.sweeper = NewSweeper(h.hub, 10*time.Second, 120*time.Second, h.metrics, h.journal)
	return h
}

// send encodes msg and hands it to the dispatcher as if it came from ep.
func (h *harness) send(ep model.Endpoint, msg protocol.Message) {
	h.t.Helper()
	data, err := h.codec.Encode(msg)
	require.NoError(h.t, err)
	h.disp.Handle(ep, data)
}

// expect asserts the exact datagrams ep has received since the last call.
func (h *harness) expect(ep model.Endpoint, want ...string) {
	h.t.Helper()
	require.Equal(h.t, want, h.out.Take(ep), "datagrams to %s", ep)
}

func (h *harness) consistent() {
	h.t.Helper()
	require.NoError(h.t, h.hub.CheckConsistency())
}

// journalKinds lists the kinds recorded so far, oldest first.
func (h *harness) journalKinds() []datastore.EventKind {
	h.t.Helper()
	events, err := h.journal.List(context.Background(), datastore.Filter{})
	require.NoError(h.t, err)
	kinds := make([]datastore.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}
