/*
yearclose.go - Calendar year close

PURPOSE:
  At year end every balance is settled through the ledger so the new
  year starts from explicit carry-forward credits rather than implicit
  leftovers:

    CL / SL / RH  remaining balance lapses (LAPSE, negative delta)
    PL            up to the policy cap carries forward: a negative
                  CARRY_FORWARD in the closing year paired with a
                  positive CARRY_FORWARD in the next; the excess above
                  the cap is settled as ENCASHMENT (negative delta)
    COMPOFF       unconsumed credits past their expiry window are
                  expired via CompoffService.ExpireCredits

  The run is idempotent two ways: a pre-check inspects the closing
  year's own settlement keys and skips employees already closed, and every
  posted transaction carries a deterministic idempotency key so a crash
  mid-employee cannot double settle on retry. The pre-check looks only
  at keys the close of THIS year would write: the carry-in credit a
  previous close posted into this year must not mark it as settled.

KEY CONCEPTS:
  - Failure isolation: one employee's error is recorded in the result
    and the run moves on.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// YearCloseProcessor settles all employee balances for a closed year.
type YearCloseProcessor struct {
	Ledger    *Ledger
	Projector *Projector
	Compoff   *CompoffService
	Employees EmployeeStore
	Policies  PolicyStore
	Store     TransactionStore

	Now func() time.Time
}

func NewYearCloseProcessor(store Store, ledger *Ledger, projector *Projector, compoff *CompoffService) *YearCloseProcessor {
	return &YearCloseProcessor{
		Ledger:    ledger,
		Projector: projector,
		Compoff:   compoff,
		Employees: store,
		Policies:  store,
		Store:     store,
		Now:       time.Now,
	}
}

// YearCloseDetail records what happened to one employee / leave type.
type YearCloseDetail struct {
	EmployeeID EmployeeID      `json:"employee_id"`
	LeaveType  LeaveType       `json:"leave_type"`
	Outcome    string          `json:"outcome"` // lapsed | carried_forward | encashed | compoff_expired | skipped | failed
	Days       decimal.Decimal `json:"days"`
	Reason     string          `json:"reason,omitempty"`
}

// YearCloseResult summarizes one run.
type YearCloseResult struct {
	Year             int               `json:"year"`
	Processed        int               `json:"processed"`
	AlreadyClosed    int               `json:"already_closed"`
	Failed           int               `json:"failed"`
	TotalLapsed      decimal.Decimal   `json:"total_lapsed"`
	TotalCarried     decimal.Decimal   `json:"total_carried"`
	TotalEncashed    decimal.Decimal   `json:"total_encashed"`
	CompoffExpired   int               `json:"compoff_expired"`
	Details          []YearCloseDetail `json:"details"`
}

// Run closes the given year for every employee. The year must be over:
// closing the current or a future year is rejected.
func (p *YearCloseProcessor) Run(ctx context.Context, year int) (*YearCloseResult, error) {
	now := p.now()
	if year >= now.Year() {
		return nil, &ValidationError{Field: "year", Message: fmt.Sprintf("year %d is not over yet", year)}
	}
	policy, err := p.Policies.GetPolicy(ctx, year)
	if err != nil {
		return nil, err
	}

	employees, err := p.Employees.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	result := &YearCloseResult{
		Year:          year,
		TotalLapsed:   decimal.Zero,
		TotalCarried:  decimal.Zero,
		TotalEncashed: decimal.Zero,
	}
	for i := range employees {
		emp := &employees[i]

		closed, err := p.alreadyClosed(ctx, emp.ID, year)
		if err != nil {
			p.fail(result, emp.ID, "", err)
			continue
		}
		if closed {
			result.AlreadyClosed++
			continue
		}

		if err := p.closeEmployee(ctx, emp, year, policy, result); err != nil {
			p.fail(result, emp.ID, "", err)
			continue
		}
		result.Processed++
	}
	return result, nil
}

// alreadyClosed checks the settlement keys this year's close would have
// written. Matching on actions alone is wrong here: the carry-in from
// closing year-1 is a CARRY_FORWARD stored under this year and would
// shadow a close that never ran.
func (p *YearCloseProcessor) alreadyClosed(ctx context.Context, emp EmployeeID, year int) (bool, error) {
	keys := make([]string, 0, len(BalanceLeaveTypes)+1)
	for _, lt := range BalanceLeaveTypes {
		if lt == LeavePL {
			keys = append(keys,
				fmt.Sprintf("yearclose:%d:%d:PL:cf-out", emp, year),
				fmt.Sprintf("yearclose:%d:%d:PL:encash", emp, year))
			continue
		}
		keys = append(keys, fmt.Sprintf("yearclose:%d:%d:%s:lapse", emp, year, lt))
	}
	for _, key := range keys {
		exists, err := p.Store.TransactionExists(ctx, key)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func (p *YearCloseProcessor) closeEmployee(ctx context.Context, emp *Employee, year int, policy *Policy, result *YearCloseResult) error {
	for _, lt := range BalanceLeaveTypes {
		bal, err := p.Projector.Balance(ctx, emp.ID, year, lt)
		if err != nil {
			return err
		}
		remaining := bal.Remaining
		if remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}

		if lt != LeavePL {
			if err := p.post(ctx, PostInput{
				EmployeeID:     emp.ID,
				Year:           year,
				LeaveType:      lt,
				Delta:          remaining.Neg(),
				Action:         ActionLapse,
				Remarks:        fmt.Sprintf("year-end lapse for %d", year),
				IdempotencyKey: fmt.Sprintf("yearclose:%d:%d:%s:lapse", emp.ID, year, lt),
			}); err != nil {
				return err
			}
			result.TotalLapsed = result.TotalLapsed.Add(remaining)
			result.Details = append(result.Details, YearCloseDetail{
				EmployeeID: emp.ID, LeaveType: lt, Outcome: "lapsed", Days: remaining,
			})
			continue
		}

		// PL: carry up to the cap into the next year, encash the rest.
		cap := decimal.NewFromInt(int64(policy.CarryForwardPLMax))
		carried := decimal.Min(remaining, cap)
		excess := remaining.Sub(carried)

		if carried.GreaterThan(decimal.Zero) {
			if err := p.post(ctx, PostInput{
				EmployeeID:     emp.ID,
				Year:           year,
				LeaveType:      LeavePL,
				Delta:          carried.Neg(),
				Action:         ActionCarryForward,
				Remarks:        fmt.Sprintf("carried forward to %d", year+1),
				IdempotencyKey: fmt.Sprintf("yearclose:%d:%d:PL:cf-out", emp.ID, year),
			}); err != nil {
				return err
			}
			if err := p.post(ctx, PostInput{
				EmployeeID:     emp.ID,
				Year:           year + 1,
				LeaveType:      LeavePL,
				Delta:          carried,
				Action:         ActionCarryForward,
				Remarks:        fmt.Sprintf("carried forward from %d", year),
				IdempotencyKey: fmt.Sprintf("yearclose:%d:%d:PL:cf-in", emp.ID, year),
			}); err != nil {
				return err
			}
			result.TotalCarried = result.TotalCarried.Add(carried)
			result.Details = append(result.Details, YearCloseDetail{
				EmployeeID: emp.ID, LeaveType: LeavePL, Outcome: "carried_forward", Days: carried,
			})
		}
		if excess.GreaterThan(decimal.Zero) {
			if err := p.post(ctx, PostInput{
				EmployeeID:     emp.ID,
				Year:           year,
				LeaveType:      LeavePL,
				Delta:          excess.Neg(),
				Action:         ActionEncashment,
				Remarks:        fmt.Sprintf("encashed above carry-forward cap of %d", policy.CarryForwardPLMax),
				IdempotencyKey: fmt.Sprintf("yearclose:%d:%d:PL:encash", emp.ID, year),
			}); err != nil {
				return err
			}
			result.TotalEncashed = result.TotalEncashed.Add(excess)
			result.Details = append(result.Details, YearCloseDetail{
				EmployeeID: emp.ID, LeaveType: LeavePL, Outcome: "encashed", Days: excess,
			})
		}
	}

	// Comp-off credits past their window expire as part of the close.
	// Aged against today: a credit earned late in the closing year may
	// only reach its expiry window months after the year ended.
	if p.Compoff != nil {
		now := p.now()
		asOf := NewDate(now.Year(), now.Month(), now.Day())
		expired, err := p.Compoff.ExpireCredits(ctx, emp.ID, year, asOf)
		if err != nil {
			return err
		}
		if expired > 0 {
			result.CompoffExpired += expired
			result.Details = append(result.Details, YearCloseDetail{
				EmployeeID: emp.ID, LeaveType: LeaveCompoff, Outcome: "compoff_expired",
				Days: decimal.NewFromInt(int64(expired)),
			})
		}
	}
	return nil
}

func (p *YearCloseProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *YearCloseProcessor) post(ctx context.Context, in PostInput) error {
	_, err := p.Ledger.Post(ctx, in)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// Already settled by an earlier partial run.
		return nil
	}
	return err
}

func (p *YearCloseProcessor) fail(result *YearCloseResult, emp EmployeeID, lt LeaveType, err error) {
	result.Failed++
	result.Details = append(result.Details, YearCloseDetail{
		EmployeeID: emp,
		LeaveType:  lt,
		Outcome:    "failed",
		Days:       decimal.Zero,
		Reason:     err.Error(),
	})
}
