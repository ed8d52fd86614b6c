package session

import (
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/entity"
)

// fakeView records every draw call. The session run loop writes from its own
// goroutine, so all access goes through the mutex.
type fakeView struct {
	mu sync.Mutex

	states    []State
	errors    []fakeError
	log       []RenderedMessage
	patches   map[string]time.Time
	removed   []string
	resets    int
	snapshots [][]entity.Participant
	unseen    []fakeUnseen
	navs      []string
	restored  []string
}

type fakeError struct {
	Field   string
	Message string
}

type fakeUnseen struct {
	Count int
	Title string
}

func newFakeView() *fakeView {
	return &fakeView{patches: make(map[string]time.Time)}
}

func (v *fakeView) State(st State) {
	v.mu.Lock()
	v.states = append(v.states, st)
	v.mu.Unlock()
}

func (v *fakeView) Error(field, message string) {
	v.mu.Lock()
	v.errors = append(v.errors, fakeError{Field: field, Message: message})
	v.mu.Unlock()
}

func (v *fakeView) Append(msgs []RenderedMessage) {
	v.mu.Lock()
	v.log = append(v.log, msgs...)
	v.mu.Unlock()
}

func (v *fakeView) PatchTimestamp(id string, ts time.Time) {
	v.mu.Lock()
	v.patches[id] = ts
	for i := range v.log {
		if v.log[i].ID == id {
			t := ts
			v.log[i].Timestamp = &t
		}
	}
	v.mu.Unlock()
}

func (v *fakeView) Remove(id string) {
	v.mu.Lock()
	kept := v.log[:0]
	for _, m := range v.log {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	v.log = kept
	v.removed = append(v.removed, id)
	v.mu.Unlock()
}

func (v *fakeView) Reset() {
	v.mu.Lock()
	v.log = nil
	v.resets++
	v.mu.Unlock()
}

func (v *fakeView) Participants(parts []entity.Participant) {
	v.mu.Lock()
	v.snapshots = append(v.snapshots, parts)
	v.mu.Unlock()
}

func (v *fakeView) Unseen(count int, title string) {
	v.mu.Lock()
	v.unseen = append(v.unseen, fakeUnseen{Count: count, Title: title})
	v.mu.Unlock()
}

func (v *fakeView) Navigate(token string) {
	v.mu.Lock()
	v.navs = append(v.navs, token)
	v.mu.Unlock()
}

func (v *fakeView) InputRestore(text string) {
	v.mu.Lock()
	v.restored = append(v.restored, text)
	v.mu.Unlock()
}

func (v *fakeView) lastState() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.states) == 0 {
		return ""
	}
	return v.states[len(v.states)-1]
}

func (v *fakeView) sawState(st State) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.states {
		if s == st {
			return true
		}
	}
	return false
}

func (v *fakeView) texts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.log))
	for _, m := range v.log {
		out = append(out, m.Text)
	}
	return out
}

func (v *fakeView) logCopy() []RenderedMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]RenderedMessage, len(v.log))
	copy(out, v.log)
	return out
}

func (v *fakeView) errorFields() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.errors))
	for _, e := range v.errors {
		out = append(out, e.Field)
	}
	return out
}

func (v *fakeView) lastNav() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.navs) == 0 {
		return "", false
	}
	return v.navs[len(v.navs)-1], true
}

func (v *fakeView) lastUnseen() (fakeUnseen, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.unseen) == 0 {
		return fakeUnseen{}, false
	}
	return v.unseen[len(v.unseen)-1], true
}

func (v *fakeView) lastSnapshot() []entity.Participant {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.snapshots) == 0 {
		return nil
	}
	return v.snapshots[len(v.snapshots)-1]
}

func (v *fakeView) patchFor(id string) (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ts, ok := v.patches[id]
	return ts, ok
}

func (v *fakeView) resetCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}
