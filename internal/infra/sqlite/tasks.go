package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `id, requester, input_commitment, complexity, reward, state,
	assigned_operator, result_hash, nonce, created_at, completed_at`

// InsertTask creates a new task record. Returns domain.ErrDuplicateTask if
// the derived identifier already exists (checked, not assumed).
func (d *DB) InsertTask(task domain.Task) error {
	_, err := d.db.Exec(
		`INSERT INTO tasks (id, requester, input_commitment, complexity, reward, state,
			assigned_operator, result_hash, nonce, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Requester, task.InputCommitment, task.Complexity, task.Reward,
		string(task.State), nullStr(task.AssignedOperator), nullStr(task.ResultHash),
		task.Nonce, task.CreatedAt.Unix(), nullableUnix(task.CompletedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return domain.ErrDuplicateTask
	}
	return err
}

// GetTask retrieves a task by ID. Returns domain.ErrTaskNotFound if absent.
func (d *DB) GetTask(id string) (*domain.Task, error) {
	row := d.db.QueryRow(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id,
	)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// ListTasks returns tasks, optionally filtered by state, newest first.
func (d *DB) ListTasks(state domain.TaskState, limit int) ([]domain.Task, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if state == "" {
		rows, err = d.db.Query(
			`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`, limit,
		)
	} else {
		rows, err = d.db.Query(
			`SELECT `+taskColumns+` FROM tasks WHERE state = ? ORDER BY created_at DESC LIMIT ?`,
			string(state), limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// TransitionTask atomically moves a task out of PENDING into a terminal
// state, recording the operator and result on completion. The conditional
// UPDATE is the compare-and-swap that makes concurrent submissions
// first-accepted-wins: exactly one transition succeeds, later attempts see
// the task already settled.
func (d *DB) TransitionTask(id string, to domain.TaskState, operator, resultHash string, at time.Time) error {
	res, err := d.db.Exec(
		`UPDATE tasks
		 SET state = ?, assigned_operator = ?, result_hash = ?, completed_at = ?
		 WHERE id = ? AND state = ?`,
		string(to), nullStr(operator), nullStr(resultHash), at.Unix(),
		id, string(domain.TaskPending),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish missing from already-settled
		if _, err := d.GetTask(id); err != nil {
			return err
		}
		return domain.ErrTaskAlreadyCompleted
	}
	return nil
}

// ReopenTask reverts a terminal task to PENDING, clearing the settlement
// fields. This is the compensating step when a terminal transition has
// committed but the funds movement behind it failed: the escrow is still
// in the vault, so the task must go back to being claimable.
func (d *DB) ReopenTask(id string) error {
	res, err := d.db.Exec(
		`UPDATE tasks
		 SET state = ?, assigned_operator = NULL, result_hash = NULL, completed_at = NULL
		 WHERE id = ? AND state != ?`,
		string(domain.TaskPending), id, string(domain.TaskPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Missing, or already pending; only the former is an error
		if _, err := d.GetTask(id); err != nil {
			return err
		}
	}
	return nil
}

// NextNonce returns and advances the per-requester monotonic nonce used in
// task ID derivation.
func (d *DB) NextNonce(requester string) (uint64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next uint64
	err = tx.QueryRow(
		`SELECT next FROM task_nonces WHERE requester = ?`, requester,
	).Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		next = 0
		if _, err := tx.Exec(
			`INSERT INTO task_nonces (requester, next) VALUES (?, 1)`, requester,
		); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := tx.Exec(
			`UPDATE task_nonces SET next = next + 1 WHERE requester = ?`, requester,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// CountTasks returns the number of tasks in the given state ("" for all).
func (d *DB) CountTasks(state domain.TaskState) (int64, error) {
	var n int64
	var err error
	if state == "" {
		err = d.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	} else {
		err = d.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE state = ?`, string(state)).Scan(&n)
	}
	return n, err
}

// SumRewards returns the total reward across tasks in the given state.
func (d *DB) SumRewards(state domain.TaskState) (int64, error) {
	var total int64
	err := d.db.QueryRow(
		`SELECT COALESCE(SUM(reward), 0) FROM tasks WHERE state = ?`, string(state),
	).Scan(&total)
	return total, err
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var state string
	var operator, resultHash sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64

	err := s.Scan(&t.ID, &t.Requester, &t.InputCommitment, &t.Complexity, &t.Reward,
		&state, &operator, &resultHash, &t.Nonce, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.State = domain.TaskState(state)
	if operator.Valid {
		t.AssignedOperator = operator.String
	}
	if resultHash.Valid {
		t.ResultHash = resultHash.String
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	return &t, nil
}
