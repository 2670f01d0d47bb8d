// Package quota enforces fixed daily call ceilings per LLM model.
//
// Counters live in a sqlite row per model and are incremented with a
// conditional UPDATE, so the ceiling holds exactly even when several
// processes share the database file. Resets are lazy: the first access at or
// after the reset boundary zeroes the counter and advances the boundary to
// the next midnight UTC.
package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anirudhms/vani/internal/db"
)

// State is a snapshot of one model's daily quota.
type State struct {
	Model   string    `json:"model"`
	Count   int       `json:"count"`
	Ceiling int       `json:"ceiling"`
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns how many calls are left before the ceiling.
func (s State) Remaining() int {
	if r := s.Ceiling - s.Count; r > 0 {
		return r
	}
	return 0
}

// Exceeded reports whether the ceiling has been reached.
func (s State) Exceeded() bool {
	return s.Count >= s.Ceiling
}

// ExceededError is returned when a model's daily ceiling has been reached.
type ExceededError struct {
	Model   string
	Ceiling int
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: limit %d requests/day, resets at %s",
		e.Model, e.Ceiling, e.ResetAt.UTC().Format("2006-01-02 15:04:05 UTC"))
}

// Tracker tracks per-model daily call counts against fixed ceilings.
type Tracker struct {
	db       *db.DB
	ceilings map[string]int
	now      func() time.Time
}

// NewTracker creates a Tracker over the given database. ceilings maps each
// model identifier to its daily call limit.
func NewTracker(database *db.DB, ceilings map[string]int) *Tracker {
	return &Tracker{
		db:       database,
		ceilings: ceilings,
		now:      time.Now,
	}
}

// Check returns a read-only snapshot for the model, resetting the counter
// first if the reset boundary has passed.
func (t *Tracker) Check(ctx context.Context, model string) (State, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("beginning quota tx: %w", err)
	}
	defer tx.Rollback()

	state, err := t.syncRow(ctx, tx, model)
	if err != nil {
		return State{}, err
	}

	if err := tx.Commit(); err != nil {
		return State{}, fmt.Errorf("committing quota tx: %w", err)
	}
	return state, nil
}

// CheckAndIncrement counts one call against the model's quota. It fails with
// *ExceededError, without incrementing, once the ceiling is reached.
func (t *Tracker) CheckAndIncrement(ctx context.Context, model string) (State, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return State{}, fmt.Errorf("beginning quota tx: %w", err)
	}
	defer tx.Rollback()

	state, err := t.syncRow(ctx, tx, model)
	if err != nil {
		return State{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE quota_counters SET count = count + 1
		WHERE model = ? AND count < ceiling`, model)
	if err != nil {
		return State{}, fmt.Errorf("incrementing quota counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return State{}, fmt.Errorf("checking quota increment: %w", err)
	}
	if n == 0 {
		return State{}, &ExceededError{Model: model, Ceiling: state.Ceiling, ResetAt: state.ResetAt}
	}
	state.Count++

	if err := tx.Commit(); err != nil {
		return State{}, fmt.Errorf("committing quota tx: %w", err)
	}
	return state, nil
}

// Reset zeroes the model's counter and advances its reset boundary.
// Intended for admin and test use.
func (t *Tracker) Reset(ctx context.Context, model string) error {
	if _, ok := t.ceilings[model]; !ok {
		return fmt.Errorf("no quota configured for model %q", model)
	}
	_, err := t.db.ExecContext(ctx, `
		UPDATE quota_counters SET count = 0, reset_at = ? WHERE model = ?`,
		nextReset(t.now()).Format(time.RFC3339), model)
	if err != nil {
		return fmt.Errorf("resetting quota for %s: %w", model, err)
	}
	return nil
}

// All returns a snapshot of every configured model's quota.
func (t *Tracker) All(ctx context.Context) ([]State, error) {
	states := make([]State, 0, len(t.ceilings))
	for model := range t.ceilings {
		state, err := t.Check(ctx, model)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// syncRow makes sure the model's counter row exists with the configured
// ceiling, applies a lazy reset if due, and returns the current state.
func (t *Tracker) syncRow(ctx context.Context, tx *sql.Tx, model string) (State, error) {
	ceiling, ok := t.ceilings[model]
	if !ok {
		return State{}, fmt.Errorf("no quota configured for model %q", model)
	}

	now := t.now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO quota_counters (model, count, ceiling, reset_at) VALUES (?, 0, ?, ?)
		ON CONFLICT(model) DO UPDATE SET ceiling = excluded.ceiling`,
		model, ceiling, nextReset(now).Format(time.RFC3339))
	if err != nil {
		return State{}, fmt.Errorf("ensuring quota row for %s: %w", model, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE quota_counters SET count = 0, reset_at = ?
		WHERE model = ? AND reset_at <= ?`,
		nextReset(now).Format(time.RFC3339), model, now.Format(time.RFC3339))
	if err != nil {
		return State{}, fmt.Errorf("resetting quota row for %s: %w", model, err)
	}

	var state State
	var resetAt string
	err = tx.QueryRowContext(ctx, `
		SELECT model, count, ceiling, reset_at FROM quota_counters WHERE model = ?`,
		model).Scan(&state.Model, &state.Count, &state.Ceiling, &resetAt)
	if err != nil {
		return State{}, fmt.Errorf("reading quota row for %s: %w", model, err)
	}
	state.ResetAt, err = time.Parse(time.RFC3339, resetAt)
	if err != nil {
		return State{}, fmt.Errorf("parsing quota reset time %q: %w", resetAt, err)
	}

	return state, nil
}

// nextReset returns the first midnight UTC strictly after now.
func nextReset(now time.Time) time.Time {
	now = now.UTC()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
