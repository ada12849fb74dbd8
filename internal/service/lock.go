package service

import "sync"

// EnrollmentLocker serializes read-compute-write cycles per enrollment.
// The allocator and the recalculator both take the same lock, so their full
// cycles never interleave for one enrollment while different enrollments
// proceed in parallel. The optimistic version column on the enrollment row
// guards the cross-process case this in-process lock cannot cover.
type EnrollmentLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEnrollmentLocker constructs an empty locker.
func NewEnrollmentLocker() *EnrollmentLocker {
	return &EnrollmentLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for an enrollment id, creating it on first use.
// Lock entries are never removed; the set of enrollments is small and stable
// within a process lifetime.
func (l *EnrollmentLocker) Lock(enrollmentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[enrollmentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[enrollmentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
