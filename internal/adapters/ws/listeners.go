package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/domain"
	"github.com/GuntLondon/noise-box/internal/event"
)

// registerListeners wires the side effects that follow state changes:
// refreshed stats and user rosters for hosts, queued-track updates the
// host plays from, and session-log lines. The core never talks to
// connections for these; everything rides on the bus.
func (ctl *Controller) registerListeners(bus *event.Bus) {
	for _, t := range []event.Topic{
		event.TopicHostAdded,
		event.TopicHostRemoved,
		event.TopicUserAdded,
		event.TopicUserRemoved,
	} {
		bus.Subscribe(t, ctl.pushStats)
	}

	// hosts get the roster on arrival too, not just on user changes,
	// so a late host (or co-host) sees who is already in the box
	bus.Subscribe(event.TopicHostAdded, ctl.pushRoster)
	bus.Subscribe(event.TopicUserAdded, ctl.pushRoster)
	bus.Subscribe(event.TopicUserUpdated, ctl.pushRoster)
	bus.Subscribe(event.TopicUserRemoved, ctl.pushRoster)

	bus.Subscribe(event.TopicTrackAdded, func(e event.Event) {
		ev := e.(event.TrackAdded)
		ctl.pushToHosts(ev.BoxID, struct {
			Type  string            `json:"type"`
			Entry domain.TrackEntry `json:"entry"`
		}{"track_added", ev.Entry})
	})
	bus.Subscribe(event.TopicTrackRemoved, func(e event.Event) {
		ev := e.(event.TrackRemoved)
		ctl.pushToHosts(ev.BoxID, struct {
			Type  string            `json:"type"`
			Entry domain.TrackEntry `json:"entry"`
		}{"track_removed", ev.Entry})
	})
	bus.Subscribe(event.TopicLogUpdated, func(e event.Event) {
		ev := e.(event.LogUpdated)
		ctl.pushToHosts(ev.BoxID, struct {
			Type  string          `json:"type"`
			Entry domain.LogEntry `json:"entry"`
		}{"log_updated", ev.Entry})
	})
}

func (ctl *Controller) pushStats(e event.Event) {
	var boxID domain.NoiseBoxID
	switch ev := e.(type) {
	case event.HostAdded:
		boxID = ev.BoxID
	case event.HostRemoved:
		boxID = ev.BoxID
	case event.UserAdded:
		boxID = ev.BoxID
	case event.UserRemoved:
		boxID = ev.BoxID
	default:
		return
	}
	ctl.pushToHosts(boxID, struct {
		Type  string     `json:"type"`
		Stats core.Stats `json:"stats"`
	}{"stats", ctl.reg.Stats()})
}

func (ctl *Controller) pushRoster(e event.Event) {
	var boxID domain.NoiseBoxID
	switch ev := e.(type) {
	case event.HostAdded:
		boxID = ev.BoxID
	case event.UserAdded:
		boxID = ev.BoxID
	case event.UserUpdated:
		boxID = ev.BoxID
	case event.UserRemoved:
		boxID = ev.BoxID
	default:
		return
	}
	nb, ok := ctl.reg.GetNoiseBox(boxID)
	if !ok {
		return
	}
	ctl.pushToHosts(boxID, struct {
		Type  string               `json:"type"`
		Users []domain.Participant `json:"users"`
	}{"user_list", nb.UserRoster()})
}

// pushToHosts is best-effort: a box torn down between the event and
// the push is silently skipped.
func (ctl *Controller) pushToHosts(boxID domain.NoiseBoxID, v any) {
	nb, ok := ctl.reg.GetNoiseBox(boxID)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("pushToHosts marshal")
		return
	}
	nb.BroadcastHosts(b)
}
