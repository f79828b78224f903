/*
request.go - Leave request state machine

PURPOSE:
  Governs the leave request lifecycle and posts the corresponding
  ledger transactions on state transitions.

STATES:
  PENDING -> {APPROVED, REJECTED, CANCELLED}
  APPROVED -> CANCELLED_BY_COMPANY (one-way, HR only, CL/PL only)
  REJECTED / CANCELLED / CANCELLED_BY_COMPANY are terminal.

LEDGER EFFECTS:
  approve        -> DEBIT_APPROVED of -paid_days (LWP days never debit);
                    COMPOFF_DEBIT when the booked type is COMPOFF
  reject         -> none (nothing was ever debited)
  companyCancel  -> CREDIT_REVERSED of +paid_days when recredit is set

CONCURRENCY:
  Transitions go through the store's compare-and-swap update. Of two
  concurrent approvals exactly one wins; the loser's precondition
  (status == PENDING) fails with InvalidStateError. The debit carries a
  request-scoped idempotency key, so a retry after a crash between the
  CAS and the ledger write cannot double-debit.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LeaveService orchestrates the leave request lifecycle.
type LeaveService struct {
	Requests  LeaveRequestStore
	Ledger    *Ledger
	Projector *Projector
	Employees EmployeeStore
	Policies  PolicyStore
	Holidays  HolidayStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewLeaveService(store Store, ledger *Ledger, projector *Projector) *LeaveService {
	return &LeaveService{
		Requests:  store,
		Ledger:    ledger,
		Projector: projector,
		Employees: store,
		Policies:  store,
		Holidays:  store,
		Now:       time.Now,
	}
}

// SubmitLeaveInput is the employee-facing submission payload.
type SubmitLeaveInput struct {
	EmployeeID EmployeeID
	LeaveType  LeaveType
	FromDate   Date
	ToDate     Date
	Reason     string

	// OverridePolicy lets an HR actor bypass the backdating limit.
	OverridePolicy bool
	OverrideRemark string

	// ActorID is who performs the submission (the employee, or HR on
	// their behalf).
	ActorID EmployeeID
}

// Submit validates the request, computes day accounting (sandwich rule,
// holiday exclusion, LWP auto-conversion), assigns the designated
// approver, and creates the request in PENDING.
func (s *LeaveService) Submit(ctx context.Context, in SubmitLeaveInput) (*LeaveRequest, error) {
	if !in.LeaveType.Valid() {
		return nil, &ValidationError{Field: "leave_type", Message: fmt.Sprintf("unknown leave type %q", in.LeaveType)}
	}
	if in.FromDate.IsZero() || in.ToDate.IsZero() {
		return nil, &ValidationError{Field: "from_date", Message: "from_date and to_date are required"}
	}
	if in.ToDate.Before(in.FromDate) {
		return nil, &ValidationError{Field: "to_date", Message: "to_date before from_date"}
	}

	emp, err := s.Employees.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.Active {
		return nil, &ValidationError{Field: "employee_id", Message: "employee is not active"}
	}

	actor := emp
	if in.ActorID != 0 && in.ActorID != emp.ID {
		if actor, err = s.Employees.GetEmployee(ctx, in.ActorID); err != nil {
			return nil, err
		}
	}

	policy, err := s.Policies.GetPolicy(ctx, in.FromDate.Year())
	if err != nil {
		return nil, err
	}

	// Backdating limit. Override requires the flag and an HR-side actor.
	today := s.today()
	if in.FromDate.Before(today.AddDays(-policy.BackdatedMaxDays)) {
		hrOverride := in.OverridePolicy && (actor.Role == RoleHR || actor.Role == RoleAdmin)
		if !hrOverride {
			return nil, &PolicyViolationError{
				Rule:    "backdated_max_days",
				Message: fmt.Sprintf("submission starts more than %d days in the past", policy.BackdatedMaxDays),
			}
		}
	}

	// One leave per day: reject overlap with open or approved requests.
	overlapping, err := s.Requests.ListOverlappingLeave(ctx, emp.ID, in.FromDate, in.ToDate)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, &ValidationError{
			Field:   "from_date",
			Message: fmt.Sprintf("overlaps existing %s request #%d", overlapping[0].Status, overlapping[0].ID),
		}
	}

	holidays, err := s.Holidays.ListHolidays(ctx, in.FromDate.Year())
	if err != nil {
		return nil, err
	}
	days := CountLeaveDays(in.FromDate, in.ToDate, NewMapCalendar(holidays), policy.SandwichEnabled)
	if days == 0 {
		return nil, &ValidationError{Field: "from_date", Message: "range contains no leave days"}
	}
	computed := decimal.NewFromInt(int64(days))

	// Balance check. Comp-off spends only what the wallet holds; the
	// other types may auto-convert the shortfall to LWP.
	var available decimal.Decimal
	if in.LeaveType == LeaveCompoff {
		wallet, err := s.Projector.CompoffBalance(ctx, emp.ID, in.FromDate.Year())
		if err != nil {
			return nil, err
		}
		available = wallet.Available
		if available.LessThan(computed) {
			return nil, &PolicyViolationError{
				Rule:    "insufficient_compoff",
				Message: fmt.Sprintf("comp-off balance %s is less than requested %s", available.String(), computed.String()),
			}
		}
	} else {
		balance, err := s.Projector.Balance(ctx, emp.ID, in.FromDate.Year(), in.LeaveType)
		if err != nil {
			return nil, err
		}
		available = balance.Remaining
		if in.LeaveType == LeavePL && !balance.Eligible {
			available = decimal.Zero
		}
	}

	paid, lwp := computed, decimal.Zero
	autoLwp, autoReason := false, ""
	if available.LessThan(computed) {
		if !policy.AllowHROverride {
			return nil, &PolicyViolationError{
				Rule:    "insufficient_balance",
				Message: fmt.Sprintf("%s balance %s is less than requested %s", in.LeaveType, available.String(), computed.String()),
			}
		}
		paid = decimal.Max(available, decimal.Zero)
		lwp = computed.Sub(paid)
		autoLwp = true
		autoReason = fmt.Sprintf("insufficient %s balance: %s short", in.LeaveType, lwp.String())
	}

	req := &LeaveRequest{
		EmployeeID:         emp.ID,
		LeaveType:          in.LeaveType,
		FromDate:           in.FromDate,
		ToDate:             in.ToDate,
		Reason:             in.Reason,
		Status:             LeavePending,
		ComputedDays:       computed,
		PaidDays:           paid,
		LwpDays:            lwp,
		OverridePolicy:     in.OverridePolicy,
		OverrideRemark:     in.OverrideRemark,
		AutoConvertedToLwp: autoLwp,
		AutoLwpReason:      autoReason,
		ApproverID:         s.resolveApprover(ctx, emp),
		AppliedAt:          s.Now(),
	}
	if err := s.Requests.CreateLeaveRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve moves PENDING -> APPROVED and posts the balance debit.
func (s *LeaveService) Approve(ctx context.Context, id RequestID, approverID EmployeeID, remarks string) (*LeaveRequest, error) {
	req, err := s.Requests.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.Employees.GetEmployee(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if req.Status != LeavePending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(LeavePending)}
	}
	if !CanApproveLeave(actor, req) {
		return nil, &ForbiddenError{ActorID: approverID, Action: fmt.Sprintf("approve leave request %d", id)}
	}

	updated, err := s.Requests.TransitionLeaveRequest(ctx, id, LeaveTransition{
		From:    LeavePending,
		To:      LeaveApproved,
		ActorID: approverID,
		Remark:  remarks,
	})
	if err != nil {
		return nil, err
	}

	// LWP-only approvals touch no balance.
	if updated.PaidDays.IsPositive() {
		action := ActionDebitApproved
		if updated.LeaveType == LeaveCompoff {
			action = ActionCompoffDebit
		}
		_, err = s.Ledger.Post(ctx, PostInput{
			EmployeeID:     updated.EmployeeID,
			Year:           updated.FromDate.Year(),
			LeaveType:      updated.LeaveType,
			Delta:          updated.PaidDays.Neg(),
			Action:         action,
			Remarks:        fmt.Sprintf("leave %s to %s approved", updated.FromDate, updated.ToDate),
			ActionBy:       &approverID,
			LeaveRequestID: &updated.ID,
			IdempotencyKey: fmt.Sprintf("leave-debit:%d", updated.ID),
		})
		if err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
			return nil, err
		}
	}
	return updated, nil
}

// Reject moves PENDING -> REJECTED. Remarks are mandatory; no ledger effect.
func (s *LeaveService) Reject(ctx context.Context, id RequestID, approverID EmployeeID, remarks string) (*LeaveRequest, error) {
	if strings.TrimSpace(remarks) == "" {
		return nil, &ValidationError{Field: "remarks", Message: "remarks are mandatory when rejecting"}
	}
	req, err := s.Requests.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.Employees.GetEmployee(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if req.Status != LeavePending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(LeavePending)}
	}
	if !CanApproveLeave(actor, req) {
		return nil, &ForbiddenError{ActorID: approverID, Action: fmt.Sprintf("reject leave request %d", id)}
	}

	return s.Requests.TransitionLeaveRequest(ctx, id, LeaveTransition{
		From:    LeavePending,
		To:      LeaveRejected,
		ActorID: approverID,
		Remark:  remarks,
	})
}

// Cancel lets the owner (or HR) withdraw a still-pending request.
func (s *LeaveService) Cancel(ctx context.Context, id RequestID, actorID EmployeeID, remarks string) (*LeaveRequest, error) {
	req, err := s.Requests.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.Employees.GetEmployee(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != req.EmployeeID && actor.Role != RoleHR && actor.Role != RoleAdmin {
		return nil, &ForbiddenError{ActorID: actorID, Action: fmt.Sprintf("cancel leave request %d", id)}
	}
	if req.Status != LeavePending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(LeavePending)}
	}

	return s.Requests.TransitionLeaveRequest(ctx, id, LeaveTransition{
		From:    LeavePending,
		To:      LeaveCancelled,
		ActorID: actorID,
		Remark:  remarks,
	})
}

// CompanyCancel moves APPROVED -> CANCELLED_BY_COMPANY (HR only, CL/PL
// only) and optionally reverses the original debit.
func (s *LeaveService) CompanyCancel(ctx context.Context, id RequestID, hrActorID EmployeeID, recredit bool, remarks string) (*LeaveRequest, error) {
	req, err := s.Requests.GetLeaveRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.Employees.GetEmployee(ctx, hrActorID)
	if err != nil {
		return nil, err
	}
	if !CanCompanyCancelLeave(actor, req) {
		return nil, &ForbiddenError{ActorID: hrActorID, Action: fmt.Sprintf("company-cancel leave request %d", id)}
	}
	if req.Status != LeaveApproved {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(LeaveApproved)}
	}

	updated, err := s.Requests.TransitionLeaveRequest(ctx, id, LeaveTransition{
		From:    LeaveApproved,
		To:      LeaveCancelledByCompany,
		ActorID: hrActorID,
		Remark:  remarks,
	})
	if err != nil {
		return nil, err
	}

	if recredit && updated.PaidDays.IsPositive() {
		_, err = s.Ledger.Post(ctx, PostInput{
			EmployeeID:     updated.EmployeeID,
			Year:           updated.FromDate.Year(),
			LeaveType:      updated.LeaveType,
			Delta:          updated.PaidDays,
			Action:         ActionCreditReversed,
			Remarks:        "company cancellation re-credit",
			ActionBy:       &hrActorID,
			LeaveRequestID: &updated.ID,
			IdempotencyKey: fmt.Sprintf("leave-recredit:%d", updated.ID),
		})
		if err != nil && !errors.Is(err, ErrDuplicateIdempotencyKey) {
			return nil, err
		}
	}
	return updated, nil
}

// resolveApprover walks the reporting chain for the designated approver:
// the nearest active manager, or nil when only HR can act.
func (s *LeaveService) resolveApprover(ctx context.Context, emp *Employee) *EmployeeID {
	seen := map[EmployeeID]bool{emp.ID: true}
	next := emp.ReportingManagerID
	for next != nil && !seen[*next] {
		seen[*next] = true
		mgr, err := s.Employees.GetEmployee(ctx, *next)
		if err != nil {
			return nil
		}
		if mgr.Active {
			id := mgr.ID
			return &id
		}
		next = mgr.ReportingManagerID
	}
	return nil
}

func (s *LeaveService) today() Date {
	now := s.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}
