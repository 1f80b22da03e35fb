package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GuntLondon/noise-box/internal/core"
	"github.com/GuntLondon/noise-box/internal/domain"
)

// handleUserConnect declares this connection a user of an existing box
// and echoes the minted identity back so the client can address
// renames with it.
func (ctl *Controller) handleUserConnect(connID domain.ConnID, conn *WSConn, data []byte) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad user_connect payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	user, err := ctl.reg.ConnectUser(domain.NoiseBoxID(p.ID), connID, conn)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("box", p.ID).Msg("user_connect ignored")
		switch {
		case errors.Is(err, domain.ErrNoiseBoxNotFound):
			ctl.sendError(conn, "noise-box does not exist")
		case errors.Is(err, domain.ErrAlreadyConnected):
			ctl.sendError(conn, "already connected to a noise-box")
		}
		return
	}

	ctl.sendJSON(conn, struct {
		Type     string        `json:"type"`
		Username string        `json:"username"`
		UserID   domain.UserID `json:"userid"`
	}{
		Type:     "user_added",
		Username: user.Username,
		UserID:   user.UserID,
	})
}

// handleClickedTrack queues a track for the host, attributed to the
// clicking user's current name.
func (ctl *Controller) handleClickedTrack(connID domain.ConnID, conn *WSConn, data []byte) {
	var p struct {
		ID    string `json:"id"`
		Track string `json:"track"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Track == "" {
		log.Error().Str("module", "ws").Msg("bad user_clicked_track payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	nb, ok := ctl.reg.GetNoiseBox(domain.NoiseBoxID(p.ID))
	if !ok {
		log.Warn().Str("module", "ws").Str("box", p.ID).Msg("track click for unknown box ignored")
		return
	}
	user, err := nb.UserByConn(connID)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("track click from non-member ignored")
		return
	}

	nb.AddTrack(domain.TrackEntry{
		Contributor: user.Username,
		TrackRef:    p.Track,
		CreatedAt:   time.Now(),
	})
}

// handleNameUpdate renames a user. The payload addresses the user by
// logical identity, not by connection id.
func (ctl *Controller) handleNameUpdate(connID domain.ConnID, conn *WSConn, data []byte) {
	var p struct {
		ID       string `json:"id"`
		UserID   string `json:"userid"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad user_name_update payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	nb, ok := ctl.reg.GetNoiseBox(domain.NoiseBoxID(p.ID))
	if !ok {
		log.Warn().Str("module", "ws").Str("box", p.ID).Msg("rename for unknown box ignored")
		return
	}
	if err := nb.UpdateUsername(domain.UserID(p.UserID), p.Username); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("userid", p.UserID).Msg("rename rejected")
		ctl.sendError(conn, "invalid_name")
	}
}

// handleChat fans a chat message out to everyone in the box, hosts
// included, and records it on the session log.
func (ctl *Controller) handleChat(connID domain.ConnID, conn *WSConn, data []byte) {
	var p struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad chat_message payload")
		return
	}

	nb, ok := ctl.boxFor(connID, data)
	if !ok {
		return
	}
	nb.BroadcastAll(core.Frame(data))
	if p.Message != "" {
		nb.AppendLog(p.Username + ": " + p.Message)
	}
}
