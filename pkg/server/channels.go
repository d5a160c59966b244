package server

import (
	"slices"
	"sync"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

// Sender delivers one datagram to an endpoint.
type Sender interface {
	Send(ep model.Endpoint, payload []byte) error
}

// ChannelDirectory maps channel names to their member endpoints. A channel
// exists only while it has members.
type ChannelDirectory struct {
	mu      sync.RWMutex
	members map[string][]model.Endpoint // channel -> members in join order
	order   []string                    // channel creation order
}

// NewChannelDirectory creates an empty directory.
func NewChannelDirectory() *ChannelDirectory {
	return &ChannelDirectory{
		members: make(map[string][]model.Endpoint),
	}
}

// Join adds ep to name, creating the channel if needed. It returns false if
// ep was already a member.
func (cd *ChannelDirectory) Join(name string, ep model.Endpoint) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	eps, exists := cd.members[name]
	if !exists {
		cd.order = append(cd.order, name)
	}
	if slices.Contains(eps, ep) {
		return false
	}
	cd.members[name] = append(eps, ep)
	return true
}

// Leave removes ep from name and deletes the channel once it is empty. It
// returns false if ep was not a member.
func (cd *ChannelDirectory) Leave(name string, ep model.Endpoint) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	eps := cd.members[name]
	i := slices.Index(eps, ep)
	if i < 0 {
		return false
	}
	eps = slices.Delete(eps, i, i+1)
	if len(eps) == 0 {
		delete(cd.members, name)
		if j := slices.Index(cd.order, name); j >= 0 {
			cd.order = slices.Delete(cd.order, j, j+1)
		}
		return true
	}
	cd.members[name] = eps
	return true
}

// MembersOf returns a copy of name's members.
func (cd *ChannelDirectory) MembersOf(name string) ([]model.Endpoint, bool) {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	eps, ok := cd.members[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(eps), true
}

// Exists reports whether name currently has members.
func (cd *ChannelDirectory) Exists(name string) bool {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	_, ok := cd.members[name]
	return ok
}

// IsMember reports whether ep belongs to name.
func (cd *ChannelDirectory) IsMember(name string, ep model.Endpoint) bool {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return slices.Contains(cd.members[name], ep)
}

// AllChannelNames returns the channel names in creation order.
func (cd *ChannelDirectory) AllChannelNames() []string {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return slices.Clone(cd.order)
}

// All returns every channel with its members, in creation order.
func (cd *ChannelDirectory) All() []model.Channel {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	result := make([]model.Channel, 0, len(cd.order))
	for _, name := range cd.order {
		result = append(result, model.Channel{Name: name, Members: slices.Clone(cd.members[name])})
	}
	return result
}

// Count returns the number of channels.
func (cd *ChannelDirectory) Count() int {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return len(cd.members)
}

// Broadcast sends text to every current member of name. Members are
// snapshotted under the read lock and the sends happen after it is released.
// It returns the number of successful sends and the per-member failures.
func (cd *ChannelDirectory) Broadcast(name, text string, s Sender) (sent int, errs []error) {
	members, ok := cd.MembersOf(name)
	if !ok {
		return 0, nil
	}
	payload := []byte(text)
	for _, ep := range members {
		if err := s.Send(ep, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errs
}
