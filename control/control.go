// control.go — Job handoff and shutdown signalling between the pool session and the miner
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control package carries the only state shared between the stratum session
// goroutine and the mining loop.
//
// Architecture overview:
//   • JobSlot: single-entry mailbox holding the newest job; Put overwrites, Take clears
//   • Global stop flag for process teardown
//
// Threading model:
//   • Stratum session calls Put whenever the pool pushes a job
//   • Miner calls Take only between solve attempts; an attempt is never interrupted
//   • Signal handler calls Shutdown; both loops poll Stopping

package control

import (
	"sync"
	"sync/atomic"

	"miner/types"
)

// ============================================================================
// JOB HANDOFF
// ============================================================================

// JobSlot holds at most one pending job. The zero value is empty and ready.
type JobSlot struct {
	mu        sync.Mutex
	job       types.Job
	ready     bool
	withdrawn bool
	wake      chan struct{}
}

// Put replaces any pending job with job and lifts a withdrawal.
func (s *JobSlot) Put(job types.Job) {
	s.mu.Lock()
	s.job = job
	s.ready = true
	s.withdrawn = false
	if s.wake != nil {
		close(s.wake)
		s.wake = nil
	}
	s.mu.Unlock()
}

// Take returns the pending job and empties the slot.
func (s *JobSlot) Take() (types.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return types.Job{}, false
	}
	s.ready = false
	return s.job, true
}

// Withdraw drops any pending job and marks the job being mined as stale.
// The mark holds until the next Put.
func (s *JobSlot) Withdraw() {
	s.mu.Lock()
	s.ready = false
	s.withdrawn = true
	s.mu.Unlock()
}

// Withdrawn reports whether the source of the current job has gone away.
func (s *JobSlot) Withdrawn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawn
}

// Ready returns a channel that is closed once a job is pending. If a job is
// already pending the channel is closed on return.
func (s *JobSlot) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return closed
	}
	if s.wake == nil {
		s.wake = make(chan struct{})
	}
	return s.wake
}

var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// ============================================================================
// SYSTEM SHUTDOWN
// ============================================================================

var stop atomic.Bool

// Shutdown asks every loop to finish its current step and exit.
func Shutdown() { stop.Store(true) }

// Stopping reports whether Shutdown has been called.
func Stopping() bool { return stop.Load() }

// reset clears the stop flag (tests only).
func reset() { stop.Store(false) }
