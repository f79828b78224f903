/*
wfh.go - Work-from-home request lifecycle

PURPOSE:
  WFH requests cover a single date and carry no ledger effect: working
  from home consumes no leave balance. The lifecycle mirrors leave
  (PENDING -> APPROVED/REJECTED/CANCELLED) with the WFH authority rule:
  the employee's direct reporting manager, or HR/ADMIN.

  Eligibility is role-driven: only roles with wfh_enabled in the role
  master may request WFH.
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WfhService manages WFH requests and the admin usage read model.
type WfhService struct {
	Requests  WfhStore
	Employees EmployeeStore
	Roles     RoleStore

	Now func() time.Time
}

func NewWfhService(store Store) *WfhService {
	return &WfhService{Requests: store, Employees: store, Roles: store, Now: time.Now}
}

// Submit creates a PENDING WFH request for one date.
func (s *WfhService) Submit(ctx context.Context, empID EmployeeID, date Date, reason string) (*WfhRequest, error) {
	emp, err := s.Employees.GetEmployee(ctx, empID)
	if err != nil {
		return nil, err
	}
	if !emp.Active {
		return nil, &ValidationError{Field: "employee_id", Message: "employee is not active"}
	}
	if date.IsZero() {
		return nil, &ValidationError{Field: "request_date", Message: "request_date is required"}
	}

	role, err := s.Roles.GetRole(ctx, emp.Role)
	if err != nil {
		return nil, err
	}
	if !role.WfhEnabled || !role.IsActive {
		return nil, &PolicyViolationError{Rule: "wfh_enabled", Message: fmt.Sprintf("role %s may not work from home", emp.Role)}
	}

	// One request per date.
	status := WfhPending
	existing, err := s.Requests.ListWfhRequests(ctx, &empID, nil, &Month{Year: date.Year(), Month: date.Month()})
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.RequestDate.Equal(date) && (r.Status == WfhPending || r.Status == WfhApproved) {
			return nil, &ValidationError{Field: "request_date", Message: fmt.Sprintf("a %s WFH request already exists for %s", r.Status, date)}
		}
	}

	req := &WfhRequest{
		EmployeeID:  empID,
		RequestDate: date,
		Reason:      reason,
		Status:      status,
		AppliedAt:   s.Now(),
	}
	if err := s.Requests.CreateWfhRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve moves PENDING -> APPROVED.
func (s *WfhService) Approve(ctx context.Context, id RequestID, approverID EmployeeID) (*WfhRequest, error) {
	return s.transition(ctx, id, approverID, WfhApproved, "")
}

// Reject moves PENDING -> REJECTED.
func (s *WfhService) Reject(ctx context.Context, id RequestID, approverID EmployeeID, remarks string) (*WfhRequest, error) {
	return s.transition(ctx, id, approverID, WfhRejected, remarks)
}

// Cancel lets the owner withdraw a pending request.
func (s *WfhService) Cancel(ctx context.Context, id RequestID, actorID EmployeeID) (*WfhRequest, error) {
	req, err := s.Requests.GetWfhRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actorID {
		actor, err := s.Employees.GetEmployee(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if actor.Role != RoleHR && actor.Role != RoleAdmin {
			return nil, &ForbiddenError{ActorID: actorID, Action: fmt.Sprintf("cancel WFH request %d", id)}
		}
	}
	if req.Status != WfhPending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(WfhPending)}
	}

	return s.Requests.TransitionWfhRequest(ctx, id, WfhTransition{
		From:    WfhPending,
		To:      WfhCancelled,
		ActorID: actorID,
	})
}

func (s *WfhService) transition(ctx context.Context, id RequestID, approverID EmployeeID, to WfhStatus, remarks string) (*WfhRequest, error) {
	req, err := s.Requests.GetWfhRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	actor, err := s.Employees.GetEmployee(ctx, approverID)
	if err != nil {
		return nil, err
	}
	owner, err := s.Employees.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !CanApproveWfh(actor, owner) {
		return nil, &ForbiddenError{ActorID: approverID, Action: fmt.Sprintf("act on WFH request %d", id)}
	}
	if req.Status != WfhPending {
		return nil, &InvalidStateError{RequestID: id, Current: string(req.Status), Required: string(WfhPending)}
	}

	return s.Requests.TransitionWfhRequest(ctx, id, WfhTransition{
		From:    WfhPending,
		To:      to,
		ActorID: approverID,
		Remark:  remarks,
	})
}

// WfhUsage is the admin balance row: approved WFH days per employee in
// a month. A read model over requests; nothing is stored.
type WfhUsage struct {
	EmployeeID EmployeeID
	Month      Month
	Approved   decimal.Decimal
	Pending    int
}

// MonthlyUsage summarizes WFH consumption for the admin screens.
func (s *WfhService) MonthlyUsage(ctx context.Context, month Month) ([]WfhUsage, error) {
	requests, err := s.Requests.ListWfhRequests(ctx, nil, nil, &month)
	if err != nil {
		return nil, err
	}

	byEmployee := map[EmployeeID]*WfhUsage{}
	order := []EmployeeID{}
	for _, r := range requests {
		u, ok := byEmployee[r.EmployeeID]
		if !ok {
			u = &WfhUsage{EmployeeID: r.EmployeeID, Month: month, Approved: decimal.Zero}
			byEmployee[r.EmployeeID] = u
			order = append(order, r.EmployeeID)
		}
		switch r.Status {
		case WfhApproved:
			u.Approved = u.Approved.Add(decimal.NewFromInt(1))
		case WfhPending:
			u.Pending++
		}
	}

	out := make([]WfhUsage, 0, len(order))
	for _, id := range order {
		out = append(out, *byEmployee[id])
	}
	return out, nil
}
