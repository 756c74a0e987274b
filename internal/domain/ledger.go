package domain

import "time"

// TxType classifies settlement ledger transactions.
type TxType string

const (
	TxEscrow   TxType = "ESCROW"   // payment moved into the escrow vault
	TxReward   TxType = "REWARD"   // escrow released to an operator's accrual
	TxRefund   TxType = "REFUND"   // escrow returned to the requester
	TxClaim    TxType = "CLAIM"    // accrued rewards transferred out
	TxStake    TxType = "STAKE"    // operator stake deposited
	TxSlash    TxType = "SLASH"    // stake confiscated to the treasury
	TxWithdraw TxType = "WITHDRAW" // treasury funds withdrawn by the admin
)

// EntryType marks which side of a double entry a row records.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// LedgerEntry is one side of a double-entry settlement record. Every
// transfer writes a matched DEBIT/CREDIT pair; SUM(debits) == SUM(credits)
// is an invariant of the ledger.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        TxType    `json:"type"`
	EntryType   EntryType `json:"entry_type"`
	Account     string    `json:"account"`
	Amount      int64     `json:"amount"`
	TaskID      string    `json:"task_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Balance     int64     `json:"balance"`
}
