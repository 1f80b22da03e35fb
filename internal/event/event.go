// Package event provides the in-process bus decoupling noise-box state
// mutation from side effects (broadcasts, stats, logging).
package event

import "github.com/GuntLondon/noise-box/internal/domain"

type Topic string

const (
	TopicHostAdded    Topic = "host-added"
	TopicHostRemoved  Topic = "host-removed"
	TopicUserAdded    Topic = "user-added"
	TopicUserRemoved  Topic = "user-removed"
	TopicUserUpdated  Topic = "user-updated"
	TopicBoxAdded     Topic = "noisebox-added"
	TopicBoxRemoved   Topic = "noisebox-removed"
	TopicTrackAdded   Topic = "track-added"
	TopicTrackRemoved Topic = "track-removed"
	TopicLogUpdated   Topic = "log-updated"
)

// Event is a domain notification. Payload types are one-per-topic so
// listeners can type-assert instead of duck-typing map payloads.
type Event interface {
	Topic() Topic
}

// Participant payloads carry value snapshots taken at mutation time.
// Events are published after the triggering mutation has committed and
// its locks are released, so listeners may query live state but must
// not publish further events.

type HostAdded struct {
	BoxID       domain.NoiseBoxID
	Participant domain.Participant
}

type HostRemoved struct {
	BoxID       domain.NoiseBoxID
	Participant domain.Participant
	HostsLeft   int
}

type UserAdded struct {
	BoxID       domain.NoiseBoxID
	Participant domain.Participant
}

type UserRemoved struct {
	BoxID       domain.NoiseBoxID
	Participant domain.Participant
}

type UserUpdated struct {
	BoxID       domain.NoiseBoxID
	Participant domain.Participant
	OldName     string
	NewName     string
}

type BoxAdded struct {
	BoxID domain.NoiseBoxID
}

type BoxRemoved struct {
	BoxID domain.NoiseBoxID
}

type TrackAdded struct {
	BoxID domain.NoiseBoxID
	Entry domain.TrackEntry
}

type TrackRemoved struct {
	BoxID domain.NoiseBoxID
	Entry domain.TrackEntry
}

type LogUpdated struct {
	BoxID domain.NoiseBoxID
	Entry domain.LogEntry
}

func (HostAdded) Topic() Topic    { return TopicHostAdded }
func (HostRemoved) Topic() Topic  { return TopicHostRemoved }
func (UserAdded) Topic() Topic    { return TopicUserAdded }
func (UserRemoved) Topic() Topic  { return TopicUserRemoved }
func (UserUpdated) Topic() Topic  { return TopicUserUpdated }
func (BoxAdded) Topic() Topic     { return TopicBoxAdded }
func (BoxRemoved) Topic() Topic   { return TopicBoxRemoved }
func (TrackAdded) Topic() Topic   { return TopicTrackAdded }
func (TrackRemoved) Topic() Topic { return TopicTrackRemoved }
func (LogUpdated) Topic() Topic   { return TopicLogUpdated }
