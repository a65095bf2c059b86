package chat

import (
	"sync"
	"time"
)

// spam tracks, per flood control level, when the chat may run a command again.
type spam struct {
	until map[int]time.Time
	mtx   sync.Mutex
}

func newSpam() *spam {
	return &spam{until: map[int]time.Time{}}
}

func (s *spam) Get(l int) time.Time {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.until[l]
}

func (s *spam) Set(l int, t time.Time) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.until[l] = t
}

// Take opens a new window of length d when level l is free at now and
// returns 0. Otherwise it returns how long the chat still has to wait.
func (s *spam) Take(l int, now time.Time, d time.Duration) time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if wait := s.until[l].Sub(now); wait > 0 {
		return wait
	}
	s.until[l] = now.Add(d)
	return 0
}

func (s *spam) Reset(l int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.until, l)
}
