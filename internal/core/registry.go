package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/domain"
	"github.com/GuntLondon/noise-box/internal/event"
)

// Stats are the aggregate totals across all live noise-boxes.
type Stats struct {
	NoiseBoxes int `json:"noiseboxes"`
	Hosts      int `json:"hosts"`
	Users      int `json:"users"`
}

// Registry owns every live noise-box, indexed by id and by participant
// connection id for O(1) reverse lookup on disconnect. It is the sole
// authority for box creation and destruction; membership changes flow
// through it so both indices mutate atomically.
//
// Events are collected during a mutation and published after the lock
// is released, in mutation order. Index removal happens under the
// lock, so a concurrent AddNoiseBox on the same id can never observe a
// half-torn-down box.
type Registry struct {
	bus *event.Bus

	mu     sync.RWMutex
	boxes  map[domain.NoiseBoxID]*NoiseBox
	byConn map[domain.ConnID]*NoiseBox
}

func NewRegistry(bus *event.Bus) *Registry {
	return &Registry{
		bus:    bus,
		boxes:  make(map[domain.NoiseBoxID]*NoiseBox),
		byConn: make(map[domain.ConnID]*NoiseBox),
	}
}

func (r *Registry) NoiseBoxExists(id domain.NoiseBoxID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.boxes[id]
	return ok
}

// AddNoiseBox creates and indexes an empty box. The id must already
// have passed domain.IsValidNoiseBoxID; the registry only enforces
// uniqueness (case-sensitive exact match).
func (r *Registry) AddNoiseBox(id domain.NoiseBoxID) (*NoiseBox, error) {
	r.mu.Lock()
	if _, ok := r.boxes[id]; ok {
		r.mu.Unlock()
		return nil, domain.ErrDuplicateNoiseBox
	}
	nb := newNoiseBox(id, r.bus)
	r.boxes[id] = nb
	r.mu.Unlock()

	log.Info().Str("module", "core.registry").Str("box", string(id)).Msg("noise-box added")
	r.bus.Publish(event.BoxAdded{BoxID: id})
	return nb, nil
}

func (r *Registry) GetNoiseBox(id domain.NoiseBoxID) (*NoiseBox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nb, ok := r.boxes[id]
	return nb, ok
}

// GetNoiseBoxByConnID resolves the box owning a connection. Generic
// disconnect handling uses this: it does not know a priori whether the
// connection was a host or a user, or which box it belonged to.
func (r *Registry) GetNoiseBoxByConnID(connID domain.ConnID) (*NoiseBox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nb, ok := r.byConn[connID]
	return nb, ok
}

// RemoveNoiseBox drops a box from both indices. Participants are
// expected to have been evicted already; any stale reverse-index
// entries for the box are purged as well.
func (r *Registry) RemoveNoiseBox(id domain.NoiseBoxID) error {
	r.mu.Lock()
	nb, ok := r.boxes[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNoiseBoxNotFound
	}
	r.removeBoxLocked(nb)
	r.mu.Unlock()

	r.bus.Publish(event.BoxRemoved{BoxID: id})
	return nil
}

// removeBoxLocked purges every reverse-index entry pointing at nb and
// deletes it from the primary index. Caller holds r.mu.
func (r *Registry) removeBoxLocked(nb *NoiseBox) {
	for connID, owner := range r.byConn {
		if owner == nb {
			delete(r.byConn, connID)
		}
	}
	delete(r.boxes, nb.id)
	log.Info().Str("module", "core.registry").Str("box", string(nb.id)).Msg("noise-box removed")
}

// ConnectHost attaches a new host connection to an existing box.
// Multiple simultaneous hosts are permitted; teardown only fires when
// the count drops back to zero. A connection belongs to at most one
// box: re-declaring a role on a live connection is rejected so the
// reverse index can never be silently overwritten.
func (r *Registry) ConnectHost(id domain.NoiseBoxID, connID domain.ConnID, conn Conn) (domain.Participant, error) {
	r.mu.Lock()
	nb, ok := r.boxes[id]
	if !ok {
		r.mu.Unlock()
		return domain.Participant{}, domain.ErrNoiseBoxNotFound
	}
	if _, bound := r.byConn[connID]; bound {
		r.mu.Unlock()
		return domain.Participant{}, domain.ErrAlreadyConnected
	}
	p := nb.addHost(connID, conn)
	r.byConn[connID] = nb
	r.mu.Unlock()

	r.bus.Publish(event.HostAdded{BoxID: id, Participant: p})
	return p, nil
}

// ConnectUser attaches a new user connection to an existing box and
// returns the created participant so the caller can echo the minted
// identity back over the connection.
func (r *Registry) ConnectUser(id domain.NoiseBoxID, connID domain.ConnID, conn Conn) (domain.Participant, error) {
	r.mu.Lock()
	nb, ok := r.boxes[id]
	if !ok {
		r.mu.Unlock()
		return domain.Participant{}, domain.ErrNoiseBoxNotFound
	}
	if _, bound := r.byConn[connID]; bound {
		r.mu.Unlock()
		return domain.Participant{}, domain.ErrAlreadyConnected
	}
	p := nb.addUser(connID, conn)
	r.byConn[connID] = nb
	r.mu.Unlock()

	r.bus.Publish(event.UserAdded{BoxID: id, Participant: p})
	return p, nil
}

// Disconnect handles a closed connection, whatever its role. Unknown
// connections are a no-op; each connection is processed at most once
// because the reverse-index entry goes away with it.
//
// When the last host leaves, every user is notified with BootReason
// and the box is destroyed before the lock is released, so no new
// join can slip in between notification and destruction.
func (r *Registry) Disconnect(connID domain.ConnID) {
	r.mu.Lock()
	nb, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		log.Debug().Str("module", "core.registry").Str("conn", string(connID)).Msg("disconnect for unknown connection")
		return
	}
	delete(r.byConn, connID)

	var events []event.Event
	switch {
	case nb.HostExists(connID):
		p, left, err := nb.removeHost(connID)
		if err == nil {
			events = append(events, event.HostRemoved{BoxID: nb.id, Participant: p, HostsLeft: left})
		}
		if left == 0 {
			booted := nb.bootUsers(BootReason)
			r.removeBoxLocked(nb)
			events = append(events, event.BoxRemoved{BoxID: nb.id})
			log.Info().Str("module", "core.registry").Str("box", string(nb.id)).Int("booted", booted).Msg("last host left, box destroyed")
		}
	case nb.UserExists(connID):
		p, err := nb.removeUser(connID)
		if err == nil {
			events = append(events, event.UserRemoved{BoxID: nb.id, Participant: p})
		}
	}
	r.mu.Unlock()

	for _, e := range events {
		r.bus.Publish(e)
	}
}

// Stats totals hosts and users across every live box.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{NoiseBoxes: len(r.boxes)}
	for _, nb := range r.boxes {
		s.Hosts += nb.HostCount()
		s.Users += nb.UserCount()
	}
	return s
}
