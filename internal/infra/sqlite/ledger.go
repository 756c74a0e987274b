package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coproc-network/coproc/internal/domain"
)

// ─── Settlement Ledger ──────────────────────────────────────────────────────

// InsertLedgerEntry adds a settlement ledger entry.
func (d *DB) InsertLedgerEntry(entry domain.LedgerEntry) (int64, error) {
	result, err := d.db.Exec(
		`INSERT INTO settlement_ledger (timestamp, type, entry_type, account, amount, task_id, description, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.Unix(), string(entry.Type), string(entry.EntryType),
		entry.Account, entry.Amount, entry.TaskID, entry.Description, entry.Balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AccountBalance returns the current ledger balance for an account.
func (d *DB) AccountBalance(account string) (int64, error) {
	return accountBalanceIn(d.db, account)
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func accountBalanceIn(q rowQuerier, account string) (int64, error) {
	var balance sql.NullInt64
	err := q.QueryRow(
		`SELECT balance FROM settlement_ledger WHERE account = ? ORDER BY id DESC LIMIT 1`,
		account,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Int64, nil
}

// LedgerEntries returns recent ledger entries for an account.
func (d *DB) LedgerEntries(account string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, type, entry_type, account, amount, task_id, description, balance
		 FROM settlement_ledger WHERE account = ? ORDER BY id DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var taskID, desc sql.NullString
		err := rows.Scan(&e.ID, &ts, &e.Type, &e.EntryType, &e.Account,
			&e.Amount, &taskID, &desc, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		if taskID.Valid {
			e.TaskID = taskID.String
		}
		if desc.Valid {
			e.Description = desc.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordDoubleEntry writes the matched DEBIT/CREDIT pair for a transfer
// from one account to another, with running balances. Callers invoke this
// only after the external transfer has succeeded.
//
// The balance reads and both inserts run in one transaction. Concurrent
// transfers touching the same account serialize here, so running balances
// never go stale, and a crash can never leave a DEBIT without its CREDIT.
func (d *DB) RecordDoubleEntry(at time.Time, tx domain.TxType, from, to string, amount int64, taskID, desc string) error {
	sqlTx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	fromBal, err := accountBalanceIn(sqlTx, from)
	if err != nil {
		return err
	}
	toBal, err := accountBalanceIn(sqlTx, to)
	if err != nil {
		return err
	}

	const insert = `INSERT INTO settlement_ledger
		(timestamp, type, entry_type, account, amount, task_id, description, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := sqlTx.Exec(insert, at.Unix(), string(tx), string(domain.EntryDebit),
		from, amount, taskID, desc, fromBal-amount); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if _, err := sqlTx.Exec(insert, at.Unix(), string(tx), string(domain.EntryCredit),
		to, amount, taskID, desc, toBal+amount); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return sqlTx.Commit()
}

// LedgerSums returns the total debits and credits across the whole ledger.
// Equal sums are the double-entry invariant; health checks verify it.
func (d *DB) LedgerSums() (debits, credits int64, err error) {
	err = d.db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'DEBIT' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount END), 0)
		 FROM settlement_ledger`,
	).Scan(&debits, &credits)
	return debits, credits, err
}
