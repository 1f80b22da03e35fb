package domain

import "time"

// TrackEntry records one track selection. Entries are immutable once
// appended to a noise-box; insertion order is the playback order.
type TrackEntry struct {
	Contributor string    `json:"user"`
	TrackRef    string    `json:"track"`
	CreatedAt   time.Time `json:"datetime"`
}

// LogEntry is one line of a noise-box's session log (chat, playback
// milestones). Append-only, like the track history.
type LogEntry struct {
	Text string    `json:"text"`
	At   time.Time `json:"datetime"`
}
