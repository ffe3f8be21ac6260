// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ MINING LOOP
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: Job → Nonce → Attempt → Submit
//
// Description:
//   Waits for the first job, then runs attempts back to back. A new job is only picked up
//   between attempts; it resets the nonce to a random value. With no new job the nonce is
//   incremented. Found cycles go to the Submitter and, when configured, the ledger.
//
// Notes:
//   - A failed attempt is logged and skipped; the loop keeps going with the next nonce
//   - A withdrawn job (pool session lost) is abandoned until the next job arrives
//   - Returns when ctx is cancelled or control.Shutdown has been called
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package miner

import (
	"context"
	"math/rand/v2"
	"time"

	"miner/control"
	"miner/debug"
	"miner/sharelog"
	"miner/types"
	"miner/utils"
)

// Attempter runs one solve attempt.
type Attempter interface {
	Solve(header *types.Header, nonce uint64) (types.Solution, bool, error)
}

// Submitter sends a found share upstream.
type Submitter interface {
	Submit(share types.Share) error
}

// Ledger keeps a local record of attempts and found shares.
type Ledger interface {
	RecordAttempt(a sharelog.Attempt) error
	RecordSolution(share types.Share) error
}

// Miner drives attempts from the jobs in slot.
type Miner struct {
	slot   *control.JobSlot
	solver Attempter
	sink   Submitter
	ledger Ledger

	// Nonce picks the starting nonce for each new job.
	Nonce func() uint64
}

// New builds a Miner. ledger may be nil.
func New(slot *control.JobSlot, solver Attempter, sink Submitter, ledger Ledger) *Miner {
	return &Miner{
		slot:   slot,
		solver: solver,
		sink:   sink,
		ledger: ledger,
		Nonce:  rand.Uint64,
	}
}

// Run mines until ctx is done or shutdown is requested.
func (m *Miner) Run(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	var (
		job   types.Job
		nonce uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if control.Stopping() {
			return nil
		}
		if m.slot.Withdrawn() {
			debug.DropMessage("MINER", "Job withdrawn")
			if err := m.wait(ctx); err != nil {
				return err
			}
		}

		if next, ok := m.slot.Take(); ok {
			job = next
			nonce = m.Nonce()
			debug.DropMessage("MINER", "Mining job "+utils.Utoa(job.ID)+" at height "+utils.Utoa(job.Height))
		} else {
			nonce++
			debug.DropMessage("MINER", "Mining job "+utils.Utoa(job.ID)+" with different nonce")
		}

		m.attempt(&job, nonce)
	}
}

// wait blocks until a job is pending.
func (m *Miner) wait(ctx context.Context) error {
	debug.DropMessage("MINER", "Waiting for job")
	select {
	case <-m.slot.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Miner) attempt(job *types.Job, nonce uint64) {
	started := time.Now()
	sol, found, err := m.solver.Solve(&job.Header, nonce)
	if err != nil {
		debug.DropError("MINER", err)
		return
	}

	if found {
		share := types.Share{Height: job.Height, JobID: job.ID, Nonce: nonce, Solution: sol}
		debug.DropMessage("SOLUTION", "Solution found for job "+utils.Utoa(job.ID)+" nonce "+utils.Utoa(nonce))
		if err := m.sink.Submit(share); err != nil {
			debug.DropError("SOLUTION", err)
		}
		if m.ledger != nil {
			if err := m.ledger.RecordSolution(share); err != nil {
				debug.DropError("SOLUTION", err)
			}
		}
	} else {
		debug.DropMessage("MINER", "No solution found")
	}

	if m.ledger != nil {
		err := m.ledger.RecordAttempt(sharelog.Attempt{
			Height:   job.Height,
			JobID:    job.ID,
			Nonce:    nonce,
			Found:    found,
			Started:  started,
			Finished: time.Now(),
		})
		if err != nil {
			debug.DropError("MINER", err)
		}
	}
}

// LogProgress returns a progress callback that logs each percentage under
// prefix.
func LogProgress(prefix, what string) func(percent int) {
	return func(percent int) {
		debug.DropMessage(prefix, what+" "+utils.Itoa(percent)+"%")
	}
}
