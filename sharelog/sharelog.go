// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SOLVE ATTEMPT LEDGER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Cuckatoo Miner
// Component: SQLite Record of Attempts and Found Solutions
//
// Description:
//   Every finished attempt is one row in attempts; every found cycle is also a row in
//   solutions with its 42 edges as comma-separated text. Used by the mine command to keep a
//   local history independent of what the pool accepts.
//
// Notes:
//   - 64-bit nonces and job ids are stored bit-cast to INTEGER (SQLite integers are signed)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sharelog

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"miner/constants"
	"miner/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	height      INTEGER NOT NULL,
	job_id      INTEGER NOT NULL,
	nonce       INTEGER NOT NULL,
	found       INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS solutions (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	height INTEGER NOT NULL,
	job_id INTEGER NOT NULL,
	nonce  INTEGER NOT NULL,
	pow    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS solutions_job ON solutions(job_id);
`

// Ledger is an open ledger database.
type Ledger struct {
	db *sql.DB
}

// Attempt is one finished solve attempt.
type Attempt struct {
	Height   uint64
	JobID    uint64
	Nonce    uint64
	Found    bool
	Started  time.Time
	Finished time.Time
}

// Open creates or opens the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sharelog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sharelog: schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error { return l.db.Close() }

// RecordAttempt appends one attempt row.
func (l *Ledger) RecordAttempt(a Attempt) error {
	_, err := l.db.Exec(
		`INSERT INTO attempts (height, job_id, nonce, found, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(a.Height), int64(a.JobID), int64(a.Nonce), a.Found, a.Started.UnixNano(), a.Finished.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sharelog: record attempt: %w", err)
	}
	return nil
}

// RecordSolution appends one found share.
func (l *Ledger) RecordSolution(s types.Share) error {
	_, err := l.db.Exec(
		`INSERT INTO solutions (height, job_id, nonce, pow) VALUES (?, ?, ?, ?)`,
		int64(s.Height), int64(s.JobID), int64(s.Nonce), formatPow(&s.Solution),
	)
	if err != nil {
		return fmt.Errorf("sharelog: record solution: %w", err)
	}
	return nil
}

// Solutions returns every recorded share for jobID in insertion order.
func (l *Ledger) Solutions(jobID uint64) ([]types.Share, error) {
	rows, err := l.db.Query(
		`SELECT height, job_id, nonce, pow FROM solutions WHERE job_id = ? ORDER BY id`, int64(jobID),
	)
	if err != nil {
		return nil, fmt.Errorf("sharelog: query solutions: %w", err)
	}
	defer rows.Close()

	var out []types.Share
	for rows.Next() {
		var height, job, nonce int64
		var pow string
		if err := rows.Scan(&height, &job, &nonce, &pow); err != nil {
			return nil, fmt.Errorf("sharelog: scan solution: %w", err)
		}
		share := types.Share{Height: uint64(height), JobID: uint64(job), Nonce: uint64(nonce)}
		if err := parsePow(pow, &share.Solution); err != nil {
			return nil, err
		}
		out = append(out, share)
	}
	return out, rows.Err()
}

// Attempts counts recorded attempts and how many found a solution.
func (l *Ledger) Attempts() (total, found int, err error) {
	err = l.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(found), 0) FROM attempts`).Scan(&total, &found)
	if err != nil {
		return 0, 0, fmt.Errorf("sharelog: count attempts: %w", err)
	}
	return total, found, nil
}

func formatPow(sol *types.Solution) string {
	var b strings.Builder
	for i, e := range sol {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(e), 10))
	}
	return b.String()
}

func parsePow(s string, sol *types.Solution) error {
	parts := strings.Split(s, ",")
	if len(parts) != constants.SolutionSize {
		return fmt.Errorf("sharelog: stored pow has %d edges", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return fmt.Errorf("sharelog: stored pow: %w", err)
		}
		sol[i] = uint32(v)
	}
	return nil
}
