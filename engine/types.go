/*
Package engine implements the leave/attendance balance and policy core.

PURPOSE:
  This package contains the domain types and algorithms for leave
  management: the append-only ledger, balance projection, accrual runs,
  the request state machine, approval authority resolution, and the
  year-end close.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry recording a balance change
  - LeaveRequest / CompoffRequest / WfhRequest: workflow records
  - Employee / RoleDefinition: organizational data the resolver runs on

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derivation: Balances are always computed from the ledger, never stored
  4. Auditability: Every transaction carries actor, timestamp, and an
     idempotency key

SEE ALSO:
  - ledger.go: Transaction persistence interface
  - balance.go: Balance projection from transactions
  - request.go: Leave request lifecycle
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID int64
type DepartmentID int64
type RequestID int64
type TransactionID string

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	LeaveCL      LeaveType = "CL"      // Casual leave
	LeaveSL      LeaveType = "SL"      // Sick leave
	LeavePL      LeaveType = "PL"      // Privileged (paid) leave
	LeaveRH      LeaveType = "RH"      // Restricted holiday
	LeaveCompoff LeaveType = "COMPOFF" // Compensatory off wallet
)

// BalanceLeaveTypes are the types tracked per year in the leave ledger.
// COMPOFF has its own wallet semantics (see compoff.go).
var BalanceLeaveTypes = []LeaveType{LeaveCL, LeaveSL, LeavePL, LeaveRH}

func (lt LeaveType) Valid() bool {
	switch lt {
	case LeaveCL, LeaveSL, LeavePL, LeaveRH, LeaveCompoff:
		return true
	}
	return false
}

// =============================================================================
// LEDGER ACTIONS
// =============================================================================

type Action string

const (
	ActionAccrueMonthly  Action = "ACCRUE_MONTHLY"
	ActionAccrueAnnual   Action = "ACCRUE_ANNUAL"
	ActionDebitApproved  Action = "DEBIT_APPROVED"
	ActionCreditReversed Action = "CREDIT_REVERSED"
	ActionCarryForward   Action = "CARRY_FORWARD"
	ActionLapse          Action = "LAPSE"
	ActionEncashment     Action = "ENCASHMENT"
	ActionCompoffCredit  Action = "COMPOFF_CREDIT"
	ActionCompoffDebit   Action = "COMPOFF_DEBIT"
	ActionCompoffExpired Action = "COMPOFF_EXPIRED"
)

// IsAccrual reports whether the action credits entitlement into a year.
func (a Action) IsAccrual() bool {
	return a == ActionAccrueMonthly || a == ActionAccrueAnnual || a == ActionCarryForward
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

// Transaction records a single balance-affecting event for one employee,
// year, and leave type. Corrections are new reversing transactions;
// ledger rows are never updated or deleted.
type Transaction struct {
	ID         TransactionID
	EmployeeID EmployeeID
	Year       int
	LeaveType  LeaveType
	Delta      decimal.Decimal // signed days; fractional for monthly accrual
	Action     Action
	Remarks    string

	// ActionBy is nil for system-generated transactions (accrual, year-close).
	ActionBy *EmployeeID
	ActionAt time.Time

	// LeaveRequestID links debits/reversals back to the originating request.
	LeaveRequestID *RequestID

	// IdempotencyKey dedupes retries. Unique across the ledger when set.
	IdempotencyKey string
}

// =============================================================================
// BALANCES (projections, never persisted)
// =============================================================================

// Balance is the derived state for employee x year x leave type.
type Balance struct {
	EmployeeID EmployeeID
	Year       int
	LeaveType  LeaveType
	Allocated  decimal.Decimal // policy annual entitlement
	Accrued    decimal.Decimal // sum of accrual-class deltas
	Used       decimal.Decimal // debits net of reversals, positive
	Remaining  decimal.Decimal // sum of all deltas
	Eligible   bool            // PL eligibility window; true for other types
}

// CompoffBalance is the derived comp-off wallet state.
type CompoffBalance struct {
	EmployeeID EmployeeID
	Year       int
	Credits    decimal.Decimal
	Debits     decimal.Decimal
	Expired    decimal.Decimal
	Available  decimal.Decimal // credits - debits - expired
}

// =============================================================================
// EMPLOYEES & ROLES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleHR       Role = "HR"
	RoleMD       Role = "MD"
	RoleVP       Role = "VP"
	RoleAdmin    Role = "ADMIN"
)

// Employee is the organizational record authority checks run on.
type Employee struct {
	ID                 EmployeeID
	EmpCode            string
	Name               string
	Role               Role
	RoleRank           int // 1 = highest authority
	DepartmentID       DepartmentID
	ReportingManagerID *EmployeeID // nil iff RoleRank == 1
	JoinDate           Date
	Active             bool
	PasswordHash       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoleDefinition is the role master; ranks drive who may be selected
// as a reporting manager and whether WFH is available.
type RoleDefinition struct {
	ID         int64
	Name       Role
	RoleRank   int
	WfhEnabled bool
	IsActive   bool
}

type Department struct {
	ID   DepartmentID
	Name string
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveStatus string

const (
	LeavePending            LeaveStatus = "PENDING"
	LeaveApproved           LeaveStatus = "APPROVED"
	LeaveRejected           LeaveStatus = "REJECTED"
	LeaveCancelled          LeaveStatus = "CANCELLED"
	LeaveCancelledByCompany LeaveStatus = "CANCELLED_BY_COMPANY"
)

// Terminal reports whether no further transition is allowed from s.
// APPROVED is not terminal: HR may still company-cancel it.
func (s LeaveStatus) Terminal() bool {
	switch s {
	case LeaveRejected, LeaveCancelled, LeaveCancelledByCompany:
		return true
	}
	return false
}

// LeaveRequest is the workflow record for a leave application.
type LeaveRequest struct {
	ID         RequestID
	EmployeeID EmployeeID
	LeaveType  LeaveType
	FromDate   Date
	ToDate     Date
	Reason     string
	Status     LeaveStatus

	// Day accounting, fixed at submission.
	ComputedDays decimal.Decimal // after sandwich rule and holiday exclusion
	PaidDays     decimal.Decimal // debited from the leave balance on approval
	LwpDays      decimal.Decimal // leave-without-pay; never debited

	OverridePolicy     bool
	OverrideRemark     string
	AutoConvertedToLwp bool
	AutoLwpReason      string

	// ApproverID is the designated approver assigned at submission.
	ApproverID *EmployeeID
	AppliedAt  time.Time

	// Terminal-state metadata.
	ApprovedRemark  string
	ApprovedAt      *time.Time
	RejectedRemark  string
	RejectedAt      *time.Time
	RejectedByID    *EmployeeID
	CancelledRemark string
	CancelledAt     *time.Time
	CancelledByID   *EmployeeID
}

// =============================================================================
// COMP-OFF REQUESTS
// =============================================================================

type CompoffStatus string

const (
	CompoffPending  CompoffStatus = "PENDING"
	CompoffApproved CompoffStatus = "APPROVED"
	CompoffRejected CompoffStatus = "REJECTED"
)

// CompoffRequest claims a compensatory day off for working a Sunday or
// an active holiday.
type CompoffRequest struct {
	ID            RequestID
	EmployeeID    EmployeeID
	WorkedDate    Date
	Reason        string
	Status        CompoffStatus
	AppliedAt     time.Time
	ApprovedByID  *EmployeeID
	ApprovedAt    *time.Time
	RejectedRemark string
	RejectedByID  *EmployeeID
	RejectedAt    *time.Time
}

// =============================================================================
// WFH REQUESTS
// =============================================================================

type WfhStatus string

const (
	WfhPending   WfhStatus = "PENDING"
	WfhApproved  WfhStatus = "APPROVED"
	WfhRejected  WfhStatus = "REJECTED"
	WfhCancelled WfhStatus = "CANCELLED"
)

// WfhRequest asks to work from home on a single date. No ledger effect.
type WfhRequest struct {
	ID           RequestID
	EmployeeID   EmployeeID
	RequestDate  Date
	Reason       string
	Status       WfhStatus
	AppliedAt    time.Time
	ApprovedByID *EmployeeID
	ApprovedAt   *time.Time
	ActionRemark string
}
