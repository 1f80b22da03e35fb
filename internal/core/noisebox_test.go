package core

import (
	"errors"
	"testing"
	"time"

	"github.com/GuntLondon/noise-box/internal/domain"
	"github.com/GuntLondon/noise-box/internal/event"
)

func newTestBox(t *testing.T) (*NoiseBox, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	return newNoiseBox("party1", bus), bus
}

func TestUserMembershipAccounting(t *testing.T) {
	nb, _ := newTestBox(t)

	nb.addUser("c1", &fakeConn{})
	nb.addUser("c2", &fakeConn{})
	if !nb.UserExists("c1") || !nb.UserExists("c2") {
		t.Fatal("added users must exist")
	}
	if nb.UserCount() != 2 {
		t.Fatalf("expected 2 users, got %d", nb.UserCount())
	}

	if _, err := nb.removeUser("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nb.UserExists("c1") {
		t.Fatal("removed user must not exist")
	}
	if _, err := nb.removeUser("c1"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("double remove must report not-found, got %v", err)
	}
	if nb.UserCount() != 1 {
		t.Fatalf("expected 1 user after add-add-remove, got %d", nb.UserCount())
	}
}

func TestDualUserLookup(t *testing.T) {
	nb, _ := newTestBox(t)
	p := nb.addUser("c1", &fakeConn{})

	byConn, err := nb.UserByConn("c1")
	if err != nil {
		t.Fatalf("lookup by conn id: %v", err)
	}
	byID, err := nb.UserByID(p.UserID)
	if err != nil {
		t.Fatalf("lookup by logical id: %v", err)
	}
	if byConn.UserID != byID.UserID || byConn.ConnID != byID.ConnID {
		t.Fatalf("the two lookups must resolve the same participant: %+v vs %+v", byConn, byID)
	}

	if _, err := nb.UserByConn(domain.ConnID(p.UserID)); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatal("logical ids must not resolve in the conn id space")
	}
	if _, err := nb.UserByID("nope"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestUpdateUsernamePublishesOldAndNew(t *testing.T) {
	nb, bus := newTestBox(t)
	p := nb.addUser("c1", &fakeConn{})

	var got event.UserUpdated
	bus.Subscribe(event.TopicUserUpdated, func(e event.Event) { got = e.(event.UserUpdated) })

	if err := nb.UpdateUsername(p.UserID, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NewName != "alice" || got.OldName != "" {
		t.Fatalf("payload mismatch: %+v", got)
	}
	if got.Participant.Username != "alice" {
		t.Fatalf("snapshot must carry the new name: %+v", got.Participant)
	}

	after, err := nb.UserByID(p.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Username != "alice" {
		t.Fatalf("stored name not updated: %q", after.Username)
	}

	if err := nb.UpdateUsername("nope", "bob"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestTrackAppendOrder(t *testing.T) {
	nb, bus := newTestBox(t)

	var topics []event.Topic
	bus.Subscribe(event.TopicTrackAdded, func(e event.Event) { topics = append(topics, e.Topic()) })

	refs := []string{"t1.mp3", "t2.mp3", "t3.mp3"}
	for i, ref := range refs {
		nb.AddTrack(domain.TrackEntry{Contributor: "u1", TrackRef: ref, CreatedAt: time.Now().Add(time.Duration(i))})
	}

	tracks := nb.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	for i, ref := range refs {
		if tracks[i].TrackRef != ref {
			t.Fatalf("append order violated: %v", tracks)
		}
	}
	if len(topics) != 3 {
		t.Fatalf("expected one track-added per append, got %d", len(topics))
	}
}

func TestCompleteTrackPopsQueueKeepsHistory(t *testing.T) {
	nb, bus := newTestBox(t)

	var removed []event.TrackRemoved
	var logged []event.LogUpdated
	bus.Subscribe(event.TopicTrackRemoved, func(e event.Event) { removed = append(removed, e.(event.TrackRemoved)) })
	bus.Subscribe(event.TopicLogUpdated, func(e event.Event) { logged = append(logged, e.(event.LogUpdated)) })

	nb.AddTrack(domain.TrackEntry{Contributor: "u1", TrackRef: "a.mp3"})
	nb.AddTrack(domain.TrackEntry{Contributor: "u2", TrackRef: "b.mp3"})

	entry, ok := nb.CompleteTrack("a.mp3")
	if !ok || entry.TrackRef != "a.mp3" {
		t.Fatalf("expected to pop a.mp3, got %+v ok=%v", entry, ok)
	}
	if q := nb.Queue(); len(q) != 1 || q[0].TrackRef != "b.mp3" {
		t.Fatalf("queue mismatch: %v", q)
	}
	if h := nb.Tracks(); len(h) != 2 {
		t.Fatalf("history must stay append-only, got %v", h)
	}
	if len(removed) != 1 || removed[0].Entry.TrackRef != "a.mp3" {
		t.Fatalf("track-removed payload mismatch: %+v", removed)
	}
	if len(logged) != 1 {
		t.Fatalf("playback must land on the session log, got %d entries", len(logged))
	}

	if _, ok := nb.CompleteTrack("a.mp3"); ok {
		t.Fatal("completing an unqueued track must report false")
	}
}

func TestRosterKeepsJoinOrder(t *testing.T) {
	nb, _ := newTestBox(t)
	p1 := nb.addUser("c1", &fakeConn{})
	nb.addUser("c2", &fakeConn{})
	p3 := nb.addUser("c3", &fakeConn{})

	nb.removeUser("c2")

	roster := nb.UserRoster()
	if len(roster) != 2 {
		t.Fatalf("expected 2 users, got %d", len(roster))
	}
	if roster[0].UserID != p1.UserID || roster[1].UserID != p3.UserID {
		t.Fatalf("join order violated: %+v", roster)
	}
}

func TestBroadcastAudiences(t *testing.T) {
	nb, _ := newTestBox(t)
	hostConn := &fakeConn{}
	userConn := &fakeConn{}
	slowConn := &fakeConn{fail: true}
	nb.addHost("h1", hostConn)
	nb.addUser("u1", userConn)
	nb.addUser("u2", slowConn)

	res := nb.BroadcastUsers(Frame(`{"type":"track_playing"}`))
	if res.SentTo != 1 || res.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(hostConn.received()) != 0 {
		t.Fatal("hosts must not receive user broadcasts")
	}
	if len(userConn.received()) != 1 {
		t.Fatalf("user should have one frame, got %d", len(userConn.received()))
	}

	res = nb.BroadcastAll(Frame(`{"type":"chat_message"}`))
	if res.SentTo != 2 || res.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(hostConn.received()) != 1 {
		t.Fatalf("host should have the chat frame, got %d", len(hostConn.received()))
	}
}
