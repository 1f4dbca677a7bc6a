package unread

import "sync"

// ChatSync counts live chat messages from other participants and resets on
// window focus.
type ChatSync struct {
	counter *Counter

	mu   sync.Mutex
	self string
}

func NewChatSync() *ChatSync {
	return &ChatSync{counter: newCounter()}
}

func (s *ChatSync) Counter() Reader { return s.counter }

// SetIdentity records the locally authenticated participant, whose own
// messages never count.
func (s *ChatSync) SetIdentity(userID string) {
	s.mu.Lock()
	s.self = userID
	s.mu.Unlock()
}

// Accept counts one accepted live message. It reports whether the counter
// moved.
func (s *ChatSync) Accept(authorID string) bool {
	s.mu.Lock()
	self := s.self
	s.mu.Unlock()
	if authorID == "" || authorID == self {
		return false
	}
	s.counter.add(1)
	return true
}

// Focus resets the counter. It runs on every window focus event regardless
// of which view is active.
func (s *ChatSync) Focus() {
	s.counter.set(0)
}
