/*
compoff.go - Compensatory-off lifecycle and wallet

PURPOSE:
  Comp-off is earned by working a Sunday or an active holiday. Approval
  posts a COMPOFF_CREDIT into the ledger; the wallet balance is
  credits - debits - expired, projected from the ledger like every
  other balance.

EXPIRY:
  Credits lapse a configurable number of days after the worked date
  (default 90). ExpireCredits walks unconsumed credits past the cutoff
  and posts COMPOFF_EXPIRED reversals, idempotent per credit. Debits
  consume credits oldest-first.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCompoffExpiryDays is how long an earned comp-off stays usable.
const DefaultCompoffExpiryDays = 90

// CompoffService manages comp-off requests and expiry.
type CompoffService struct {
	Requests   CompoffStore
	Ledger     *Ledger
	Projector  *Projector
	Employees  EmployeeStore
	Holidays   HolidayStore
	ExpiryDays int

	Now func() time.Time
}

func NewCompoffService(store Store, ledger *Ledger, projector *Projector) *CompoffService {
	return &CompoffService{
		Requests:   store,
		Ledger:     ledger,
		Projector:  projector,
		Employees:  store,
		Holidays:   store,
		ExpiryDays: DefaultCompoffExpiryDays,
		Now:        time.Now,
	}
}

// SubmitCompoffInput claims a comp-off for a worked off-day.
type SubmitCompoffInput struct {
	EmployeeID EmployeeID
	WorkedDate Date
	Reason     string

	// HasAttendance asserts the employee has a recorded attendance entry
	// for the worked date. Attendance capture itself lives outside this
	// engine; the flag is the contract with it.
	HasAttendance bool
}

// Submit validates the worked date and creates a PENDING claim.
func (s *CompoffService) Submit(ctx context.Context, in SubmitCompoffInput) (*CompoffRequest, error) {
	emp, err := s.Employees.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.Active {
		return nil, &ValidationError{Field: "employee_id", Message: "employee is not active"}
	}
	if in.WorkedDate.IsZero() {
		return nil, &ValidationError{Field: "worked_date", Message: "worked_date is required"}
	}
	if in.WorkedDate.After(s.today()) {
		return nil, &ValidationError{Field: "worked_date", Message: "worked_date is in the future"}
	}
	if !in.HasAttendance {
		return nil, &PolicyViolationError{Rule: "compoff_attendance", Message: "no recorded attendance for the worked date"}
	}

	if !in.WorkedDate.IsSunday() {
		holidays, err := s.Holidays.ListHolidays(ctx, in.WorkedDate.Year())
		if err != nil {
			return nil, err
		}
		if !NewMapCalendar(holidays).IsHoliday(in.WorkedDate) {
			return nil, &PolicyViolationError{
				Rule:    "compoff_worked_date",
				Message: fmt.Sprintf("%s is neither a Sunday nor an active holiday", in.WorkedDate),
			}
		}
	}

	req := &CompoffRequest{
		EmployeeID: emp.ID,
		WorkedDate: in.WorkedDate,
		Reason:     in.Reason,
		Status:     CompoffPending,
		AppliedAt:  s.Now(),
	}
	if err := s.Requests.CreateCompoffRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve moves PENDING -> APPROVED and credits one comp-off day.
func (s *CompoffService) Approve(ctx context.Context, id RequestID, approverID EmployeeID) (*CompoffRequest, error) {
	req, err := s.Requests.GetCompoffRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAuthority(ctx, approverID, req); err != nil {
		return nil, err
	}
	if req.Status != CompoffPending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(CompoffPending)}
	}

	updated, err := s.Requests.TransitionCompoffRequest(ctx, id, CompoffTransition{
		From:    CompoffPending,
		To:      CompoffApproved,
		ActorID: approverID,
	})
	if err != nil {
		return nil, err
	}

	_, err = s.Ledger.Post(ctx, PostInput{
		EmployeeID:     updated.EmployeeID,
		Year:           updated.WorkedDate.Year(),
		LeaveType:      LeaveCompoff,
		Delta:          decimal.NewFromInt(1),
		Action:         ActionCompoffCredit,
		Remarks:        fmt.Sprintf("comp-off for %s", updated.WorkedDate),
		ActionBy:       &approverID,
		LeaveRequestID: &updated.ID,
		IdempotencyKey: fmt.Sprintf("compoff-credit:%d", updated.ID),
	})
	if err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
		return nil, err
	}
	return updated, nil
}

// Reject moves PENDING -> REJECTED with no ledger effect.
func (s *CompoffService) Reject(ctx context.Context, id RequestID, approverID EmployeeID, remarks string) (*CompoffRequest, error) {
	req, err := s.Requests.GetCompoffRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAuthority(ctx, approverID, req); err != nil {
		return nil, err
	}
	if req.Status != CompoffPending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(CompoffPending)}
	}

	return s.Requests.TransitionCompoffRequest(ctx, id, CompoffTransition{
		From:    CompoffPending,
		To:      CompoffRejected,
		ActorID: approverID,
		Remark:  remarks,
	})
}

// Balance returns the wallet projection for an employee/year.
func (s *CompoffService) Balance(ctx context.Context, emp EmployeeID, year int) (*CompoffBalance, error) {
	return s.Projector.CompoffBalance(ctx, emp, year)
}

// ExpireCredits posts COMPOFF_EXPIRED for unconsumed credits whose
// worked date is more than ExpiryDays before asOf. Safe to re-run.
func (s *CompoffService) ExpireCredits(ctx context.Context, emp EmployeeID, year int, asOf Date) (int, error) {
	txs, err := s.Ledger.Transactions(ctx, emp, year, LeaveCompoff)
	if err != nil {
		return 0, err
	}

	cutoff := asOf.AddDays(-s.expiryDays())
	debited := decimal.Zero
	for _, tx := range txs {
		if tx.Action == ActionCompoffDebit || tx.Action == ActionDebitApproved {
			debited = debited.Sub(tx.Delta)
		}
	}

	// Oldest-first: a credit is consumed to the extent earlier credits
	// plus itself fit under the total debited amount.
	expired := 0
	consumedSoFar := decimal.Zero
	for _, tx := range txs {
		if tx.Action != ActionCompoffCredit {
			continue
		}
		creditEnd := consumedSoFar.Add(tx.Delta)
		unconsumed := decimal.Min(tx.Delta, decimal.Max(creditEnd.Sub(debited), decimal.Zero))
		consumedSoFar = creditEnd

		if unconsumed.IsZero() {
			continue
		}
		// Age from the worked date, not the approval timestamp: approval
		// lag must not extend the credit's life. The posting timestamp is
		// the fallback for credits with no surviving request row.
		workedDate := Date{Time: tx.ActionAt}
		if tx.LeaveRequestID != nil {
			if req, err := s.Requests.GetCompoffRequest(ctx, *tx.LeaveRequestID); err == nil {
				workedDate = req.WorkedDate
			}
		}
		if !workedDate.Before(cutoff) {
			continue
		}

		_, err := s.Ledger.Post(ctx, PostInput{
			EmployeeID:     emp,
			Year:           year,
			LeaveType:      LeaveCompoff,
			Delta:          unconsumed.Neg(),
			Action:         ActionCompoffExpired,
			Remarks:        fmt.Sprintf("comp-off credit expired after %d days", s.expiryDays()),
			IdempotencyKey: fmt.Sprintf("compoff-expire:%s", tx.ID),
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateIdempotencyKey) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// ExpireAll sweeps every employee as of asOf. It covers the current and
// the previous ledger year: a credit earned late in one year reaches its
// expiry window early in the next, and its transactions live under the
// worked date's year.
func (s *CompoffService) ExpireAll(ctx context.Context, asOf Date) (int, error) {
	employees, err := s.Employees.ListEmployees(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range employees {
		for _, year := range []int{asOf.Year() - 1, asOf.Year()} {
			n, err := s.ExpireCredits(ctx, employees[i].ID, year, asOf)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

func (s *CompoffService) checkAuthority(ctx context.Context, actorID EmployeeID, req *CompoffRequest) error {
	actor, err := s.Employees.GetEmployee(ctx, actorID)
	if err != nil {
		return err
	}
	owner, err := s.Employees.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return err
	}
	if !CanApproveCompoff(actor, owner) {
		return &ForbiddenError{ActorID: actorID, Action: fmt.Sprintf("act on comp-off request %d", req.ID)}
	}
	return nil
}

func (s *CompoffService) expiryDays() int {
	if s.ExpiryDays > 0 {
		return s.ExpiryDays
	}
	return DefaultCompoffExpiryDays
}

func (s *CompoffService) today() Date {
	now := s.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}
