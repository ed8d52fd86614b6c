package session

import (
	"sort"

	"github.com/parley-chat/parley/internal/entity"
)

// presenceTracker consumes full participant snapshots. There is no diffing
// and no heartbeat: the set is rebuilt from scratch on every callback and
// "online" means nothing more than "row exists".
type presenceTracker struct {
	view    View
	current []entity.Participant
}

func newPresenceTracker(view View) *presenceTracker {
	return &presenceTracker{view: view}
}

func (p *presenceTracker) Apply(parts []entity.Participant) {
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].JoinedAt.Before(parts[j].JoinedAt)
	})
	p.current = parts
	p.view.Participants(parts)
}
