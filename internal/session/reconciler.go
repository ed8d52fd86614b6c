package session

import (
	"sort"
	"time"

	"github.com/parley-chat/parley/internal/store"
)

// reconciler turns the unordered incremental message feed into a stable
// rendered log. It keeps an ordered index keyed by message id: removals and
// timestamp patches hit the index directly; adds are sorted per batch and
// appended. Duplicate delivery of an already-indexed id is a no-op.
type reconciler struct {
	selfID string
	view   View
	notif  *focusTracker

	order    []string
	byID     map[string]int // id -> position in order
	confirms map[string]time.Time
}

func newReconciler(selfID string, view View, notif *focusTracker) *reconciler {
	return &reconciler{
		selfID:   selfID,
		view:     view,
		notif:    notif,
		byID:     make(map[string]int),
		confirms: make(map[string]time.Time),
	}
}

func (r *reconciler) Apply(batch store.MessageBatch) {
	adds := make([]store.MessageEvent, 0, len(batch.Events))
	bumped := false

	for _, ev := range batch.Events {
		switch ev.Type {
		case store.ChangeAdded:
			if _, dup := r.byID[ev.Message.ID]; dup {
				continue
			}
			adds = append(adds, ev)
		case store.ChangeModified:
			if ev.Message.Timestamp == nil {
				continue
			}
			// Timestamp confirmation for a pending message: patch the
			// rendered timestamp slot only, never re-render the row.
			if _, known := r.byID[ev.Message.ID]; known {
				r.view.PatchTimestamp(ev.Message.ID, *ev.Message.Timestamp)
			} else {
				// The feed carries no ordering guarantee, so a confirm can
				// beat its own add. Hold it until the add lands.
				r.confirms[ev.Message.ID] = *ev.Message.Timestamp
			}
		case store.ChangeRemoved:
			pos, known := r.byID[ev.Message.ID]
			if !known {
				delete(r.confirms, ev.Message.ID)
				continue
			}
			r.order = append(r.order[:pos], r.order[pos+1:]...)
			delete(r.byID, ev.Message.ID)
			for i := pos; i < len(r.order); i++ {
				r.byID[r.order[i]] = i
			}
			r.view.Remove(ev.Message.ID)
		}
	}

	if len(adds) == 0 {
		return
	}

	// The feed guarantees no arrival order; sort the added subset by
	// timestamp, pending (nil) first, stable so ties keep delivery order.
	sort.SliceStable(adds, func(i, j int) bool {
		ti, tj := adds[i].Message.Timestamp, adds[j].Message.Timestamp
		if ti == nil {
			return tj != nil
		}
		if tj == nil {
			return false
		}
		return ti.Before(*tj)
	})

	out := make([]RenderedMessage, 0, len(adds))
	for _, ev := range adds {
		if ts, held := r.confirms[ev.Message.ID]; held {
			delete(r.confirms, ev.Message.ID)
			stamp := ts
			ev.Message.Timestamp = &stamp
		}
		r.byID[ev.Message.ID] = len(r.order)
		r.order = append(r.order, ev.Message.ID)
		out = append(out, rendered(ev.Message, r.selfID))

		if ev.Message.SenderID != r.selfID && !r.notif.focused {
			r.notif.Bump()
			bumped = true
		}
	}
	r.view.Append(out)

	if bumped {
		r.view.Unseen(r.notif.unseen, r.notif.Title())
	}
}

// ResetAll drops the whole rendered log at once; used by the bulk clear,
// which deliberately does not wait for per-message removal echoes.
func (r *reconciler) ResetAll() {
	r.order = nil
	r.byID = make(map[string]int)
	r.confirms = make(map[string]time.Time)
	r.view.Reset()
}

// Order exposes the rendered id sequence; test hook.
func (r *reconciler) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
