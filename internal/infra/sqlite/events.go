package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// ─── Event Log ──────────────────────────────────────────────────────────────

// InsertEvent appends an event to the log. The log is append-only; there is
// no update or delete path.
func (d *DB) InsertEvent(ev domain.Event) error {
	_, err := d.db.Exec(
		`INSERT INTO events (id, type, task_id, requester, operator, complexity, amount, result_hash, reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), nullStr(ev.TaskID), nullStr(ev.Requester),
		nullStr(ev.Operator), ev.Complexity, ev.Amount,
		nullStr(ev.ResultHash), nullStr(ev.Reason), ev.At.Unix(),
	)
	return err
}

// ListEvents returns events newest first, optionally filtered by type or
// task ID ("" for no filter).
func (d *DB) ListEvents(evType domain.EventType, taskID string, limit int) ([]domain.Event, error) {
	query := `SELECT id, type, task_id, requester, operator, complexity, amount, result_hash, reason, at
		 FROM events`
	var conds []string
	var args []any
	if evType != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(evType))
	}
	if taskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, taskID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var evTypeStr string
		var taskID, requester, operator, resultHash, reason sql.NullString
		var at int64
		err := rows.Scan(&ev.ID, &evTypeStr, &taskID, &requester, &operator,
			&ev.Complexity, &ev.Amount, &resultHash, &reason, &at)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = domain.EventType(evTypeStr)
		ev.TaskID = taskID.String
		ev.Requester = requester.String
		ev.Operator = operator.String
		ev.ResultHash = resultHash.String
		ev.Reason = reason.String
		ev.At = time.Unix(at, 0)
		events = append(events, ev)
	}
	return events, rows.Err()
}
