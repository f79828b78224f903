/*
balance.go - Balance projection from the ledger

PURPOSE:
  Derives the current balance (allocated, accrued, used, remaining) for
  employee x year x leave type by folding the ledger in chronological
  order. Recomputed on every read; never persisted, so it cannot drift
  from the transactions.

FOLDING RULES:
  accrued   += delta for ACCRUE_MONTHLY, ACCRUE_ANNUAL, CARRY_FORWARD
  used      += -delta for DEBIT_APPROVED, COMPOFF_DEBIT
  used      -= delta for CREDIT_REVERSED (a reversal un-uses days)
  remaining  = sum of every delta, whatever the action

  A key with no transactions projects to zeros - that is not an error.

ELIGIBILITY:
  PL carries an eligibility window from the join date; the projector
  reports Eligible=false until join_date + pl_eligibility_months. Other
  types are always eligible.
*/
package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// Projector answers balance queries from the ledger and policy store.
type Projector struct {
	Store     TransactionStore
	Policies  PolicyStore
	Employees EmployeeStore
}

func NewProjector(store TransactionStore, policies PolicyStore, employees EmployeeStore) *Projector {
	return &Projector{Store: store, Policies: policies, Employees: employees}
}

// Balance folds the ledger for one employee/year/leave-type key.
func (p *Projector) Balance(ctx context.Context, emp EmployeeID, year int, lt LeaveType) (*Balance, error) {
	employee, err := p.Employees.GetEmployee(ctx, emp)
	if err != nil {
		return nil, err
	}

	txs, err := p.Store.LoadTransactions(ctx, emp, year, lt)
	if err != nil {
		return nil, err
	}

	b := &Balance{
		EmployeeID: emp,
		Year:       year,
		LeaveType:  lt,
		Allocated:  decimal.Zero,
		Accrued:    decimal.Zero,
		Used:       decimal.Zero,
		Remaining:  decimal.Zero,
		Eligible:   true,
	}

	// Policy is optional for reads: an unconfigured year still projects
	// whatever the ledger holds, with zero allocation.
	if pol, perr := p.Policies.GetPolicy(ctx, year); perr == nil {
		b.Allocated = decimal.NewFromInt(int64(pol.Annual(lt)))
		if lt == LeavePL && !employee.JoinDate.IsZero() {
			// Usable within the queried year if the window closes by year end.
			eligibleFrom := pol.PLEligibleFrom(employee.JoinDate)
			b.Eligible = eligibleFrom.BeforeOrEqual(NewDate(year, 12, 31))
		}
	} else if !IsNotFound(perr) {
		return nil, perr
	}

	for _, tx := range txs {
		b.Remaining = b.Remaining.Add(tx.Delta)
		switch tx.Action {
		case ActionAccrueMonthly, ActionAccrueAnnual, ActionCarryForward:
			b.Accrued = b.Accrued.Add(tx.Delta)
		case ActionDebitApproved, ActionCompoffDebit:
			b.Used = b.Used.Sub(tx.Delta) // delta is negative
		case ActionCreditReversed:
			b.Used = b.Used.Sub(tx.Delta) // delta is positive, reduces used
		}
	}
	return b, nil
}

// Balances projects all balance leave types for an employee/year.
func (p *Projector) Balances(ctx context.Context, emp EmployeeID, year int) ([]Balance, error) {
	out := make([]Balance, 0, len(BalanceLeaveTypes))
	for _, lt := range BalanceLeaveTypes {
		b, err := p.Balance(ctx, emp, year, lt)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

// CompoffBalance folds the comp-off wallet: credits - debits - expired.
func (p *Projector) CompoffBalance(ctx context.Context, emp EmployeeID, year int) (*CompoffBalance, error) {
	if _, err := p.Employees.GetEmployee(ctx, emp); err != nil {
		return nil, err
	}

	txs, err := p.Store.LoadTransactions(ctx, emp, year, LeaveCompoff)
	if err != nil {
		return nil, err
	}

	cb := &CompoffBalance{
		EmployeeID: emp,
		Year:       year,
		Credits:    decimal.Zero,
		Debits:     decimal.Zero,
		Expired:    decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Action {
		case ActionCompoffCredit:
			cb.Credits = cb.Credits.Add(tx.Delta)
		case ActionCompoffDebit, ActionDebitApproved:
			cb.Debits = cb.Debits.Sub(tx.Delta)
		case ActionCompoffExpired:
			cb.Expired = cb.Expired.Sub(tx.Delta)
		case ActionCreditReversed:
			cb.Debits = cb.Debits.Sub(tx.Delta)
		}
	}
	cb.Available = cb.Credits.Sub(cb.Debits).Sub(cb.Expired)
	return cb, nil
}
