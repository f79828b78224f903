/*
store.go - Persistence interfaces for the leave engine

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations: store/sqlite (production), store/memory (tests).

APPEND-ONLY CONTRACT:
  TransactionStore has no Update or Delete. Corrections are reversing
  transactions. Every write carries an idempotency key; a duplicate key
  is rejected with ErrDuplicateIdempotencyKey.

STATUS TRANSITIONS:
  Request stores expose compare-and-swap transitions: the UPDATE is
  conditional on the current status, so of two concurrent approvals
  exactly one wins and the loser sees ErrInvalidState.

SEE ALSO:
  - ledger.go: Ledger built on TransactionStore
  - store/sqlite/sqlite.go: Concrete implementation
*/
package engine

import "context"

// =============================================================================
// TRANSACTION STORE (append-only)
// =============================================================================

// TransactionStore persists ledger transactions. Append-only.
type TransactionStore interface {
	// AppendTransaction persists one transaction. Fails with
	// ErrDuplicateIdempotencyKey if the key already exists.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// AppendTransactions persists multiple transactions atomically.
	AppendTransactions(ctx context.Context, txs []Transaction) error

	// LoadTransactions returns all transactions for the key in
	// chronological (ActionAt ascending) order.
	LoadTransactions(ctx context.Context, emp EmployeeID, year int, lt LeaveType) ([]Transaction, error)

	// ListTransactions returns transactions for an employee/year across
	// all leave types, ActionAt descending, up to limit (0 = no limit).
	ListTransactions(ctx context.Context, emp EmployeeID, year int, limit int) ([]Transaction, error)

	// TransactionExists checks whether an idempotency key is present.
	TransactionExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// ORGANIZATIONAL STORES
// =============================================================================

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	GetEmployeeByCode(ctx context.Context, empCode string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, e *Employee) error
}

type RoleStore interface {
	ListRoles(ctx context.Context) ([]RoleDefinition, error)
	GetRole(ctx context.Context, name Role) (*RoleDefinition, error)
	SaveRole(ctx context.Context, r *RoleDefinition) error
}

type DepartmentStore interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	SaveDepartment(ctx context.Context, d *Department) error
}

type HolidayStore interface {
	ListHolidays(ctx context.Context, year int) ([]Holiday, error)
	SaveHoliday(ctx context.Context, h *Holiday) error
}

// PolicyStore keeps one policy per year.
type PolicyStore interface {
	// GetPolicy returns ErrPolicyNotFound for unconfigured years.
	GetPolicy(ctx context.Context, year int) (*Policy, error)

	// PutPolicy upserts. Fails with ErrPolicyViolation if posted ledger
	// transactions already reference the year (prospective-only rule).
	PutPolicy(ctx context.Context, p Policy) error
}

// =============================================================================
// REQUEST STORES (CAS transitions)
// =============================================================================

// LeaveRequestFilter narrows leave request listings.
type LeaveRequestFilter struct {
	EmployeeID *EmployeeID
	Status     *LeaveStatus
	From       *Date
	To         *Date
	Limit      int
	Offset     int
}

// LeaveTransition is applied atomically iff the request is in From.
type LeaveTransition struct {
	From    LeaveStatus
	To      LeaveStatus
	ActorID EmployeeID
	Remark  string
}

type LeaveRequestStore interface {
	CreateLeaveRequest(ctx context.Context, req *LeaveRequest) error
	GetLeaveRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListLeaveRequests(ctx context.Context, f LeaveRequestFilter) ([]LeaveRequest, int, error)

	// TransitionLeaveRequest performs the CAS status update and records
	// terminal metadata. Returns ErrInvalidState when the request is not
	// in t.From, ErrNotFound when it does not exist.
	TransitionLeaveRequest(ctx context.Context, id RequestID, t LeaveTransition) (*LeaveRequest, error)

	// ListOverlappingLeave returns PENDING/APPROVED requests for the
	// employee whose date range intersects [from, to].
	ListOverlappingLeave(ctx context.Context, emp EmployeeID, from, to Date) ([]LeaveRequest, error)
}

type CompoffTransition struct {
	From    CompoffStatus
	To      CompoffStatus
	ActorID EmployeeID
	Remark  string
}

type CompoffStore interface {
	CreateCompoffRequest(ctx context.Context, req *CompoffRequest) error
	GetCompoffRequest(ctx context.Context, id RequestID) (*CompoffRequest, error)
	ListCompoffRequests(ctx context.Context, emp *EmployeeID, status *CompoffStatus) ([]CompoffRequest, error)
	TransitionCompoffRequest(ctx context.Context, id RequestID, t CompoffTransition) (*CompoffRequest, error)
}

type WfhTransition struct {
	From    WfhStatus
	To      WfhStatus
	ActorID EmployeeID
	Remark  string
}

type WfhStore interface {
	CreateWfhRequest(ctx context.Context, req *WfhRequest) error
	GetWfhRequest(ctx context.Context, id RequestID) (*WfhRequest, error)
	ListWfhRequests(ctx context.Context, emp *EmployeeID, status *WfhStatus, month *Month) ([]WfhRequest, error)
	TransitionWfhRequest(ctx context.Context, id RequestID, t WfhTransition) (*WfhRequest, error)
}

// Store is the full persistence surface the server wires together.
type Store interface {
	TransactionStore
	EmployeeStore
	RoleStore
	DepartmentStore
	HolidayStore
	PolicyStore
	LeaveRequestStore
	CompoffStore
	WfhStore
}
