package service

import "sync"

// MatchLocks hands out one RWMutex per match. Command submission and
// withdrawal hold the read lock; anything that changes the turn (readiness,
// resolution, departures, pause and resume) holds the write lock, so no
// command lands after the turn has been frozen for resolution.
type MatchLocks struct {
	locks sync.Map
}

// Get returns the lock for matchID, creating it on first use.
func (l *MatchLocks) Get(matchID string) *sync.RWMutex {
	v, _ := l.locks.LoadOrStore(matchID, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}
