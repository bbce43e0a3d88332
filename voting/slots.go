package voting

import "sync"

// slots tracks the (election, user) slots with an attempt in flight in this
// process.
type slots struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func newSlots() *slots {
	return &slots{inUse: make(map[string]struct{})}
}

func slotKey(electionID, userID string) string {
	return electionID + "/" + userID
}

// tryAcquire marks the slot as busy. It returns false if it already was.
func (s *slots) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inUse[key]; ok {
		return false
	}
	s.inUse[key] = struct{}{}
	return true
}

func (s *slots) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inUse, key)
}

func (s *slots) busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inUse[key]
	return ok
}
