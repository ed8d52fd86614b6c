package session

import "fmt"

// focusTracker mirrors the client window's focus and counts messages that
// arrived while it was unfocused. Purely cosmetic: feeds the title signal.
type focusTracker struct {
	baseTitle string
	focused   bool
	unseen    int
}

func newFocusTracker(baseTitle string) *focusTracker {
	return &focusTracker{baseTitle: baseTitle, focused: true}
}

func (t *focusTracker) Focus() {
	t.focused = true
	t.unseen = 0
}

func (t *focusTracker) Blur() {
	t.focused = false
}

func (t *focusTracker) Bump() {
	t.unseen++
}

func (t *focusTracker) ResetCount() {
	t.unseen = 0
}

func (t *focusTracker) Title() string {
	if t.unseen == 0 {
		return t.baseTitle
	}
	return fmt.Sprintf("(%d) %s", t.unseen, t.baseTitle)
}
