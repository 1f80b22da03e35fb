package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/domain"
	"github.com/GuntLondon/noise-box/internal/event"
)

// BootReason is the fixed human-readable reason sent to every user
// when the last host leaves and the box is torn down.
const BootReason = "The host no longer exists"

type bootMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type member struct {
	p    *domain.Participant
	conn Conn
}

// NoiseBox is one live session: its hosts, its users and the session's
// track history. It is threadsafe and never closes adapter-owned
// connections. Membership changes go through the Registry so the
// reverse connection index stays consistent; everything else is
// mutated here directly.
type NoiseBox struct {
	id  domain.NoiseBoxID
	bus *event.Bus

	mu       sync.RWMutex
	hosts    map[domain.ConnID]*member
	users    map[domain.ConnID]*member
	order    []domain.ConnID // user join order, for roster and boot fan-out
	byUserID map[domain.UserID]domain.ConnID

	queue   []domain.TrackEntry // tracks waiting for the host to play
	history []domain.TrackEntry // every track ever queued, append-only
	log     []domain.LogEntry
}

func newNoiseBox(id domain.NoiseBoxID, bus *event.Bus) *NoiseBox {
	return &NoiseBox{
		id:       id,
		bus:      bus,
		hosts:    make(map[domain.ConnID]*member),
		users:    make(map[domain.ConnID]*member),
		byUserID: make(map[domain.UserID]domain.ConnID),
	}
}

func (nb *NoiseBox) ID() domain.NoiseBoxID { return nb.id }

// addHost and the other unexported mutators are called by the Registry
// while it holds its own lock; they still take the box lock so that
// box-local operations (tracks, renames, broadcasts) stay safe.
func (nb *NoiseBox) addHost(connID domain.ConnID, conn Conn) domain.Participant {
	p := domain.NewHost(connID)
	nb.mu.Lock()
	nb.hosts[connID] = &member{p: p, conn: conn}
	nb.mu.Unlock()
	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("conn", string(connID)).Msg("host added")
	return *p
}

func (nb *NoiseBox) removeHost(connID domain.ConnID) (domain.Participant, int, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	m, ok := nb.hosts[connID]
	if !ok {
		return domain.Participant{}, len(nb.hosts), domain.ErrParticipantNotFound
	}
	delete(nb.hosts, connID)
	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("conn", string(connID)).Int("hosts_left", len(nb.hosts)).Msg("host removed")
	return *m.p, len(nb.hosts), nil
}

func (nb *NoiseBox) addUser(connID domain.ConnID, conn Conn) domain.Participant {
	p := domain.NewUser(connID)
	nb.mu.Lock()
	nb.users[connID] = &member{p: p, conn: conn}
	nb.order = append(nb.order, connID)
	nb.byUserID[p.UserID] = connID
	nb.mu.Unlock()
	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("conn", string(connID)).Str("userid", string(p.UserID)).Msg("user added")
	return *p
}

func (nb *NoiseBox) removeUser(connID domain.ConnID) (domain.Participant, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	m, ok := nb.users[connID]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	delete(nb.users, connID)
	delete(nb.byUserID, m.p.UserID)
	for i, id := range nb.order {
		if id == connID {
			nb.order = append(nb.order[:i], nb.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("conn", string(connID)).Msg("user removed")
	return *m.p, nil
}

// bootUsers notifies every user, in join order, that the session is
// over. Sends are non-blocking; a stalled connection just drops the
// notice. Returns the number of users notified.
func (nb *NoiseBox) bootUsers(reason string) int {
	frame, err := json.Marshal(bootMessage{Type: "boot", Message: reason})
	if err != nil {
		log.Error().Err(err).Str("module", "core.noisebox").Msg("marshal boot message")
		return 0
	}
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	n := 0
	for _, connID := range nb.order {
		if m, ok := nb.users[connID]; ok {
			_ = m.conn.TrySend(frame)
			n++
		}
	}
	return n
}

func (nb *NoiseBox) userConnIDs() []domain.ConnID {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]domain.ConnID, len(nb.order))
	copy(out, nb.order)
	return out
}

func (nb *NoiseBox) HostExists(connID domain.ConnID) bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	_, ok := nb.hosts[connID]
	return ok
}

func (nb *NoiseBox) UserExists(connID domain.ConnID) bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	_, ok := nb.users[connID]
	return ok
}

func (nb *NoiseBox) HostCount() int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return len(nb.hosts)
}

func (nb *NoiseBox) UserCount() int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return len(nb.users)
}

// UserByConn resolves a user by transport connection id. Callers that
// only have the logical identity use UserByID; the two id spaces are
// deliberately kept apart.
func (nb *NoiseBox) UserByConn(connID domain.ConnID) (domain.Participant, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	if m, ok := nb.users[connID]; ok {
		return *m.p, nil
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (nb *NoiseBox) UserByID(userID domain.UserID) (domain.Participant, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	if connID, ok := nb.byUserID[userID]; ok {
		if m, ok := nb.users[connID]; ok {
			return *m.p, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

// UserRoster returns value snapshots of the current users in join order.
func (nb *NoiseBox) UserRoster() []domain.Participant {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]domain.Participant, 0, len(nb.order))
	for _, connID := range nb.order {
		if m, ok := nb.users[connID]; ok {
			out = append(out, *m.p)
		}
	}
	return out
}

// UpdateUsername renames a user by logical identity and publishes a
// user-updated event carrying both the old and the new name.
func (nb *NoiseBox) UpdateUsername(userID domain.UserID, username string) error {
	nb.mu.Lock()
	connID, ok := nb.byUserID[userID]
	if !ok {
		nb.mu.Unlock()
		return domain.ErrParticipantNotFound
	}
	m := nb.users[connID]
	old := m.p.Username
	if err := m.p.SetUsername(username); err != nil {
		nb.mu.Unlock()
		return err
	}
	snap := *m.p
	nb.mu.Unlock()

	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("userid", string(userID)).Str("username", username).Msg("username updated")
	nb.bus.Publish(event.UserUpdated{BoxID: nb.id, Participant: snap, OldName: old, NewName: username})
	return nil
}

// AddTrack appends a track selection. The entry lands on the pending
// queue for the host and on the permanent history; no deduplication,
// strictly last-writer order.
func (nb *NoiseBox) AddTrack(entry domain.TrackEntry) {
	nb.mu.Lock()
	nb.queue = append(nb.queue, entry)
	nb.history = append(nb.history, entry)
	nb.mu.Unlock()

	log.Info().Str("module", "core.noisebox").Str("box", string(nb.id)).Str("track", entry.TrackRef).Str("user", entry.Contributor).Msg("track added")
	nb.bus.Publish(event.TrackAdded{BoxID: nb.id, Entry: entry})
}

// CompleteTrack pops the first queued entry matching trackRef once the
// host reports it finished. The session log records the playback.
func (nb *NoiseBox) CompleteTrack(trackRef string) (domain.TrackEntry, bool) {
	nb.mu.Lock()
	var entry domain.TrackEntry
	found := false
	for i, e := range nb.queue {
		if e.TrackRef == trackRef {
			entry = e
			nb.queue = append(nb.queue[:i], nb.queue[i+1:]...)
			found = true
			break
		}
	}
	nb.mu.Unlock()
	if !found {
		return domain.TrackEntry{}, false
	}

	nb.bus.Publish(event.TrackRemoved{BoxID: nb.id, Entry: entry})
	nb.AppendLog(entry.Contributor + " played " + entry.TrackRef)
	return entry, true
}

// AppendLog adds a line to the session log and publishes log-updated.
func (nb *NoiseBox) AppendLog(text string) {
	entry := domain.LogEntry{Text: text, At: time.Now()}
	nb.mu.Lock()
	nb.log = append(nb.log, entry)
	nb.mu.Unlock()
	nb.bus.Publish(event.LogUpdated{BoxID: nb.id, Entry: entry})
}

func (nb *NoiseBox) Tracks() []domain.TrackEntry {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]domain.TrackEntry, len(nb.history))
	copy(out, nb.history)
	return out
}

func (nb *NoiseBox) Queue() []domain.TrackEntry {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]domain.TrackEntry, len(nb.queue))
	copy(out, nb.queue)
	return out
}

func (nb *NoiseBox) SessionLog() []domain.LogEntry {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]domain.LogEntry, len(nb.log))
	copy(out, nb.log)
	return out
}

// BroadcastUsers relays a frame verbatim to every user connection.
// Playback signals from the host go through here: the box holds no
// playback state itself, it is a fan-out point.
func (nb *NoiseBox) BroadcastUsers(data Frame) SendResult {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return fanOut(nb.users, data)
}

// BroadcastHosts relays a frame to every host connection.
func (nb *NoiseBox) BroadcastHosts(data Frame) SendResult {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return fanOut(nb.hosts, data)
}

// BroadcastAll relays a frame to every connection in the box.
func (nb *NoiseBox) BroadcastAll(data Frame) SendResult {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	res := fanOut(nb.hosts, data)
	ru := fanOut(nb.users, data)
	res.SentTo += ru.SentTo
	res.Dropped += ru.Dropped
	return res
}

func fanOut(members map[domain.ConnID]*member, data Frame) SendResult {
	res := SendResult{}
	for _, m := range members {
		if err := m.conn.TrySend(data); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	return res
}
