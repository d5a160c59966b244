package server

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

func TestSessionRegistry(t *testing.T) {
	clock := newFakeClock()
	sr := NewSessionRegistry(clock.Now)

	sess := sr.Register(alice, "alice")
	require.Equal(t, clock.Now(), sess.CreatedAt)
	require.Equal(t, clock.Now(), sess.LastActivity)

	name, ok := sr.Username(alice)
	require.True(t, ok)
	require.Equal(t, "alice", name)

	require.True(t, sr.AddChannel(alice, "dev"))
	require.False(t, sr.AddChannel(alice, "dev"))
	require.False(t, sr.AddChannel(bob, "dev"))

	// Snapshots are detached from the registry.
	snap, _ := sr.Get(alice)
	snap.Channels[0] = "mutated"
	again, _ := sr.Get(alice)
	require.Equal(t, []string{"Common", "dev"}, again.Channels)

	clock.Advance(time.Minute)
	require.True(t, sr.Touch(alice))
	require.False(t, sr.Touch(bob))

	require.True(t, sr.RemoveChannel(alice, "Common"))
	require.False(t, sr.RemoveChannel(alice, "Common"))

	_, ok = sr.Remove(alice)
	require.True(t, ok)
	_, ok = sr.Remove(alice)
	require.False(t, ok)
	require.Zero(t, sr.Count())
}

func TestSessionRegistryExpired(t *testing.T) {
	clock := newFakeClock()
	sr := NewSessionRegistry(clock.Now)

	sr.Register(alice, "alice")
	clock.Advance(10 * time.Second)
	sr.Register(bob, "bob")
	clock.Advance(10 * time.Second)
	sr.Register(carol, "carol")

	start := clock.Now().Add(-20 * time.Second)
	require.Empty(t, sr.Expired(start))
	require.Equal(t, []model.Endpoint{alice}, sr.Expired(start.Add(time.Second)))
	require.Equal(t, []model.Endpoint{alice, bob}, sr.Expired(clock.Now()))

	// A session refreshed after it was listed survives RemoveIfIdle.
	sr.Touch(alice)
	_, removed := sr.RemoveIfIdle(alice, clock.Now())
	require.False(t, removed)
	_, removed = sr.RemoveIfIdle(bob, clock.Now())
	require.True(t, removed)
}

func TestChannelDirectory(t *testing.T) {
	cd := NewChannelDirectory()

	require.True(t, cd.Join("dev", alice))
	require.True(t, cd.Join("dev", bob))
	require.False(t, cd.Join("dev", alice))
	require.True(t, cd.Join("ops", carol))

	require.Equal(t, []string{"dev", "ops"}, cd.AllChannelNames())
	members, ok := cd.MembersOf("dev")
	require.True(t, ok)
	require.Equal(t, []model.Endpoint{alice, bob}, members)

	require.False(t, cd.Leave("ops", alice))
	require.True(t, cd.Leave("ops", carol))
	require.False(t, cd.Exists("ops"))
	_, ok = cd.MembersOf("ops")
	require.False(t, ok)

	// Re-created channels go to the end of the creation order.
	cd.Join("ops", carol)
	cd.Leave("dev", alice)
	cd.Leave("dev", bob)
	cd.Join("dev", bob)
	require.Equal(t, []string{"ops", "dev"}, cd.AllChannelNames())

	want := []model.Channel{
		{Name: "ops", Members: []model.Endpoint{carol}},
		{Name: "dev", Members: []model.Endpoint{bob}},
	}
	if diff := cmp.Diff(want, cd.All(), cmpopts.EquateComparable(netip.AddrPort{})); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestHubWhoIsOn(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(bob, "bob")
	hub.Register(alice, "alice")
	hub.Join(alice, "dev")

	users, ok := hub.WhoIsOn("Common")
	require.True(t, ok)
	require.Equal(t, []string{"bob", "alice"}, users)

	_, ok = hub.WhoIsOn("nowhere")
	require.False(t, ok)

	joined, ok := hub.Join(carol, "dev")
	require.False(t, joined)
	require.False(t, ok)
}

func TestHubEvict(t *testing.T) {
	clock := newFakeClock()
	hub := NewHub(clock.Now)
	hub.Register(alice, "alice")
	hub.Join(alice, "dev")
	hub.Register(bob, "bob")

	clock.Advance(time.Minute)
	hub.Touch(bob)

	evicted := hub.Evict(clock.Now().Add(-30 * time.Second))
	require.Len(t, evicted, 1)
	require.Equal(t, "alice", evicted[0].Username)
	require.Equal(t, []string{"Common", "dev"}, evicted[0].Channels)
	require.False(t, hub.Channels().Exists("dev"))
	require.NoError(t, hub.CheckConsistency())
}

func TestCheckConsistencyDetectsDrift(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(alice, "alice")

	// Bypass the hub to break the cross-store invariant.
	hub.Channels().Join("ghost", bob)
	hub.Sessions().AddChannel(alice, "dev")

	err := hub.CheckConsistency()
	require.Error(t, err)
	require.Contains(t, err.Error(), `lists "dev"`)
	require.Contains(t, err.Error(), `"ghost" has member`)
}

func TestHubConcurrentOperations(t *testing.T) {
	clock := newFakeClock()
	hub := NewHub(clock.Now)
	channels := []string{"Common", "dev", "ops", "random"}

	const clients = 32
	const opsPerClient = 200

	var wg sync.WaitGroup
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 1, byte(i)}), 5000)
			rng := rand.New(rand.NewPCG(uint64(i), 7))
			for range opsPerClient {
				ch := channels[rng.IntN(len(channels))]
				switch rng.IntN(8) {
				case 0:
					hub.Register(ep, fmt.Sprintf("user%d", i))
				case 1:
					hub.Deregister(ep)
				case 2, 3:
					hub.Join(ep, ch)
				case 4, 5:
					hub.Leave(ep, ch)
				case 6:
					hub.Touch(ep)
					hub.WhoIsOn(ch)
				case 7:
					hub.Evict(clock.Now().Add(-time.Second))
				}
			}
		}(i)
	}

	// Sweep concurrently with a moving clock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			clock.Advance(500 * time.Millisecond)
			hub.Evict(clock.Now().Add(-2 * time.Second))
			if err := hub.CheckConsistency(); err != nil {
				t.Errorf("inconsistent mid-run: %v", err)
				return
			}
		}
	}()

	wg.Wait()
	<-done
	require.NoError(t, hub.CheckConsistency())
}
