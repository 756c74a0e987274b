package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// ─── Operator Repository ────────────────────────────────────────────────────

const operatorColumns = `id, stake, reputation, tasks_completed, registered, registered_at, last_active`

// UpsertOperator writes the full operator record.
func (d *DB) UpsertOperator(op domain.Operator) error {
	_, err := d.db.Exec(
		`INSERT INTO operators (id, stake, reputation, tasks_completed, registered, registered_at, last_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			stake = excluded.stake,
			reputation = excluded.reputation,
			tasks_completed = excluded.tasks_completed,
			registered = excluded.registered,
			last_active = excluded.last_active`,
		op.ID, op.Stake, op.Reputation, op.TasksCompleted, boolInt(op.Registered),
		op.RegisteredAt.Unix(), op.LastActiveAt.Unix(),
	)
	return err
}

// GetOperator retrieves an operator by ID. Returns domain.ErrNotRegistered
// if absent.
func (d *DB) GetOperator(id string) (*domain.Operator, error) {
	row := d.db.QueryRow(
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id,
	)
	op, err := scanOperator(row)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, domain.ErrNotRegistered
	}
	return op, nil
}

// ListOperators returns all operators ordered by stake, largest first.
func (d *DB) ListOperators() ([]domain.Operator, error) {
	rows, err := d.db.Query(
		`SELECT ` + operatorColumns + ` FROM operators ORDER BY stake DESC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []domain.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func scanOperator(s scanner) (*domain.Operator, error) {
	var op domain.Operator
	var registered int
	var registeredAt, lastActive int64

	err := s.Scan(&op.ID, &op.Stake, &op.Reputation, &op.TasksCompleted,
		&registered, &registeredAt, &lastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator: %w", err)
	}

	op.Registered = registered != 0
	op.RegisteredAt = time.Unix(registeredAt, 0)
	op.LastActiveAt = time.Unix(lastActive, 0)
	return &op, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
