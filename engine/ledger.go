/*
ledger.go - Append-only leave transaction ledger

PURPOSE:
  The Ledger is the single source of truth for all balance changes.
  Every accrual, debit, reversal, lapse, carry-forward, and encashment
  is recorded here. Balances are always computed by folding the
  transactions - there is no "balance" column anywhere in storage.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified.
  3. AUDITABLE: Every change carries actor, timestamp, and remarks.
  4. IDEMPOTENT: Same idempotency key = no duplicate transaction.

CORRECTIONS:
  Mistakes are not edited. A reversing transaction is posted instead
  (CREDIT_REVERSED against a DEBIT_APPROVED), and both remain visible
  in the history.

SEE ALSO:
  - store.go: TransactionStore persistence contract
  - balance.go: Projection that folds this ledger
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/metrics"
)

// Ledger posts and reads leave transactions. It validates referential
// inputs and enforces idempotency before delegating to the store.
type Ledger struct {
	Store     TransactionStore
	Employees EmployeeStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewLedger(store TransactionStore, employees EmployeeStore) *Ledger {
	return &Ledger{Store: store, Employees: employees, Now: time.Now}
}

// PostInput describes one ledger posting.
type PostInput struct {
	EmployeeID     EmployeeID
	Year           int
	LeaveType      LeaveType
	Delta          decimal.Decimal
	Action         Action
	Remarks        string
	ActionBy       *EmployeeID // nil for system-generated
	LeaveRequestID *RequestID
	IdempotencyKey string
}

// Post appends one transaction. It always succeeds for valid referential
// inputs; unknown employees fail with NotFoundError.
func (l *Ledger) Post(ctx context.Context, in PostInput) (TransactionID, error) {
	if !in.LeaveType.Valid() {
		return "", &ValidationError{Field: "leave_type", Message: fmt.Sprintf("unknown leave type %q", in.LeaveType)}
	}
	if in.Year < 2000 || in.Year > 2200 {
		return "", &ValidationError{Field: "year", Message: "out of range"}
	}
	if _, err := l.Employees.GetEmployee(ctx, in.EmployeeID); err != nil {
		return "", err
	}

	tx := Transaction{
		ID:             TransactionID(uuid.NewString()),
		EmployeeID:     in.EmployeeID,
		Year:           in.Year,
		LeaveType:      in.LeaveType,
		Delta:          in.Delta,
		Action:         in.Action,
		Remarks:        in.Remarks,
		ActionBy:       in.ActionBy,
		ActionAt:       l.now(),
		LeaveRequestID: in.LeaveRequestID,
		IdempotencyKey: in.IdempotencyKey,
	}

	if tx.IdempotencyKey != "" {
		exists, err := l.Store.TransactionExists(ctx, tx.IdempotencyKey)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrDuplicateIdempotencyKey
		}
	}

	if err := l.Store.AppendTransaction(ctx, tx); err != nil {
		return "", err
	}
	metrics.TransactionsPosted.WithLabelValues(string(tx.Action)).Inc()
	return tx.ID, nil
}

// Transactions returns the full chronological history for one key.
func (l *Ledger) Transactions(ctx context.Context, emp EmployeeID, year int, lt LeaveType) ([]Transaction, error) {
	return l.Store.LoadTransactions(ctx, emp, year, lt)
}

// History returns recent transactions for an employee/year across all
// leave types, newest first.
func (l *Ledger) History(ctx context.Context, emp EmployeeID, year int, limit int) ([]Transaction, error) {
	if _, err := l.Employees.GetEmployee(ctx, emp); err != nil {
		return nil, err
	}
	return l.Store.ListTransactions(ctx, emp, year, limit)
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
