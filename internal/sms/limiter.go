package sms

import "sync"

// schoolLimiter serializes import passes per cohort, so a web upload can
// never interleave with the scheduled run over the same school.
type schoolLimiter struct {
	mu   sync.Mutex
	byID map[int64]*sync.Mutex
}

func newSchoolLimiter() *schoolLimiter {
	return &schoolLimiter{byID: make(map[int64]*sync.Mutex)}
}

func (l *schoolLimiter) lock(cohortID int64) func() {
	l.mu.Lock()
	m, ok := l.byID[cohortID]
	if !ok {
		m = &sync.Mutex{}
		l.byID[cohortID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func() { m.Unlock() }
}
