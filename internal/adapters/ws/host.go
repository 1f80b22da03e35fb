package ws

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/domain"
)

// handleHostConnect declares this connection a host for an existing
// box. Hosting a box that does not exist gets an error frame; the box
// itself is created over HTTP beforehand.
func (ctl *Controller) handleHostConnect(connID domain.ConnID, conn *WSConn, data []byte) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad host_connect payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	host, err := ctl.reg.ConnectHost(domain.NoiseBoxID(p.ID), connID, conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("box", p.ID).Msg("host_connect ignored")
		switch {
		case errors.Is(err, domain.ErrNoiseBoxNotFound):
			ctl.sendError(conn, "noise-box does not exist")
		case errors.Is(err, domain.ErrAlreadyConnected):
			ctl.sendError(conn, "already connected to a noise-box")
		}
		return
	}

	ctl.sendJSON(conn, struct {
		Type   string        `json:"type"`
		ID     string        `json:"id"`
		UserID domain.UserID `json:"userid"`
	}{
		Type:   "host_added",
		ID:     p.ID,
		UserID: host.UserID,
	})
}

// handleTrackPlaying relays a host's now-playing signal verbatim to
// the box's users. No state transition happens server-side: the true
// playback state lives only on the host's client.
func (ctl *Controller) handleTrackPlaying(connID domain.ConnID, conn *WSConn, data []byte) {
	nb, ok := ctl.boxFor(connID, data)
	if !ok {
		return
	}
	res := nb.BroadcastUsers(core.Frame(data))
	log.Debug().Str("module", "ws").Str("box", string(nb.ID())).Int("sent_to", res.SentTo).Int("dropped", res.Dropped).Msg("track_playing relayed")
}

// handleTrackComplete relays the completion verbatim, then pops the
// finished entry off the box's pending queue.
func (ctl *Controller) handleTrackComplete(connID domain.ConnID, conn *WSConn, data []byte) {
	nb, ok := ctl.boxFor(connID, data)
	if !ok {
		return
	}
	nb.BroadcastUsers(core.Frame(data))

	var p struct {
		Track string `json:"track"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Track == "" {
		return
	}
	if _, ok := nb.CompleteTrack(p.Track); !ok {
		log.Warn().Str("module", "ws").Str("box", string(nb.ID())).Str("track", p.Track).Msg("track_complete for unqueued track")
	}
}

// boxFor resolves the target box from the payload's id field, falling
// back to the sender's own membership. Unknown boxes are a logged
// no-op.
func (ctl *Controller) boxFor(connID domain.ConnID, data []byte) (*core.NoiseBox, bool) {
	var p struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &p)
	if p.ID != "" {
		if nb, ok := ctl.reg.GetNoiseBox(domain.NoiseBoxID(p.ID)); ok {
			return nb, true
		}
		log.Warn().Str("module", "ws").Str("box", p.ID).Msg("message for unknown box ignored")
		return nil, false
	}
	if nb, ok := ctl.reg.GetNoiseBoxByConnID(connID); ok {
		return nb, true
	}
	log.Warn().Str("module", "ws").Str("conn", string(connID)).Msg("message from connection outside any box ignored")
	return nil, false
}
