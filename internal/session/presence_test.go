package session

import (
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedAt(sec int) time.Time {
	return time.Date(2026, 8, 1, 9, 0, sec, 0, time.UTC)
}

func TestPresenceTracker_SnapshotSortedByJoinedAt(t *testing.T) {
	view := newFakeView()
	p := newPresenceTracker(view)

	p.Apply([]entity.Participant{
		{ClientID: "c", Name: "Carol", JoinedAt: joinedAt(3)},
		{ClientID: "a", Name: "Alice", JoinedAt: joinedAt(1)},
		{ClientID: "b", Name: "Bob", JoinedAt: joinedAt(2)},
	})

	snap := view.lastSnapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, []string{snap[0].Name, snap[1].Name, snap[2].Name})
}

func TestPresenceTracker_EachSnapshotReplacesThePrevious(t *testing.T) {
	view := newFakeView()
	p := newPresenceTracker(view)

	p.Apply([]entity.Participant{
		{ClientID: "a", Name: "Alice", JoinedAt: joinedAt(1)},
		{ClientID: "b", Name: "Bob", JoinedAt: joinedAt(2)},
	})
	p.Apply([]entity.Participant{
		{ClientID: "b", Name: "Bob", JoinedAt: joinedAt(2)},
	})

	snap := view.lastSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Bob", snap[0].Name)
}

func TestPresenceTracker_EmptySnapshot(t *testing.T) {
	view := newFakeView()
	p := newPresenceTracker(view)

	p.Apply([]entity.Participant{{ClientID: "a", Name: "Alice", JoinedAt: joinedAt(1)}})
	p.Apply(nil)

	assert.Empty(t, view.lastSnapshot())
}
