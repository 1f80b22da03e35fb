package core

import (
	"encoding/json"
	"errors"
	"sync"
)

// fakeConn records frames in place of a websocket.
type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("backpressure")
	}
	cp := make(Frame, len(fr))
	copy(cp, fr)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) received() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) bootMessages() []bootMessage {
	var out []bootMessage
	for _, fr := range f.received() {
		var m bootMessage
		if err := json.Unmarshal(fr, &m); err == nil && m.Type == "boot" {
			out = append(out, m)
		}
	}
	return out
}
