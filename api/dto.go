/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  - Day amounts are serialized as decimal strings ("0.5833"), never
    floats, so clients see exactly what the ledger stores.
  - Dates are "2006-01-02"; timestamps are RFC3339.
  - Errors use a single {"detail": "..."} shape.
  - Lists use a {"items": [...], "total": N} envelope.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ENVELOPES
// =============================================================================

// ErrorResponse is the standard error shape for every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ListResponse wraps paginated collections.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	EmpCode  string `json:"emp_code"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string      `json:"token"`
	Employee EmployeeDTO `json:"employee"`
}

// =============================================================================
// ORGANIZATION
// =============================================================================

type EmployeeDTO struct {
	ID                 int64  `json:"id"`
	EmpCode            string `json:"emp_code"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	RoleRank           int    `json:"role_rank"`
	DepartmentID       int64  `json:"department_id"`
	ReportingManagerID *int64 `json:"reporting_manager_id,omitempty"`
	JoinDate           string `json:"join_date"`
	Active             bool   `json:"active"`
}

type SaveEmployeeRequest struct {
	EmpCode            string `json:"emp_code"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	DepartmentID       int64  `json:"department_id"`
	ReportingManagerID *int64 `json:"reporting_manager_id,omitempty"`
	JoinDate           string `json:"join_date"`
	Active             *bool  `json:"active,omitempty"`
	Password           string `json:"password,omitempty"`
}

type RoleDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RoleRank   int    `json:"role_rank"`
	WfhEnabled bool   `json:"wfh_enabled"`
	IsActive   bool   `json:"is_active"`
}

type DepartmentDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SaveDepartmentRequest struct {
	Name string `json:"name"`
}

type HolidayDTO struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type SaveHolidayRequest struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Active *bool  `json:"active,omitempty"`
}

// =============================================================================
// POLICY
// =============================================================================

type PolicyDTO struct {
	Year                int    `json:"year"`
	AnnualPL            int    `json:"annual_pl"`
	AnnualCL            int    `json:"annual_cl"`
	AnnualSL            int    `json:"annual_sl"`
	AnnualRH            int    `json:"annual_rh"`
	MonthlyCreditPL     string `json:"monthly_credit_pl"`
	MonthlyCreditCL     string `json:"monthly_credit_cl"`
	MonthlyCreditSL     string `json:"monthly_credit_sl"`
	PLEligibilityMonths int    `json:"pl_eligibility_months"`
	BackdatedMaxDays    int    `json:"backdated_max_days"`
	CarryForwardPLMax   int    `json:"carry_forward_pl_max"`
	SandwichEnabled     bool   `json:"sandwich_enabled"`
	AllowHROverride     bool   `json:"allow_hr_override"`
}

// =============================================================================
// LEAVE
// =============================================================================

type SubmitLeaveRequest struct {
	EmployeeID     *int64 `json:"employee_id,omitempty"` // HR may submit on behalf; defaults to the actor
	LeaveType      string `json:"leave_type"`
	FromDate       string `json:"from_date"`
	ToDate         string `json:"to_date"`
	Reason         string `json:"reason"`
	OverridePolicy bool   `json:"override_policy,omitempty"`
	OverrideRemark string `json:"override_remark,omitempty"`
}

// ActionRequest carries the remark for approve/reject/cancel actions.
type ActionRequest struct {
	Remarks string `json:"remarks"`
}

// CompanyCancelRequest is HR's cancel-approved-leave action.
type CompanyCancelRequest struct {
	Recredit bool   `json:"recredit"`
	Remarks  string `json:"remarks,omitempty"`
}

type LeaveRequestDTO struct {
	ID                 int64  `json:"id"`
	EmployeeID         int64  `json:"employee_id"`
	LeaveType          string `json:"leave_type"`
	FromDate           string `json:"from_date"`
	ToDate             string `json:"to_date"`
	Reason             string `json:"reason"`
	Status             string `json:"status"`
	ComputedDays       string `json:"computed_days"`
	PaidDays           string `json:"paid_days"`
	LwpDays            string `json:"lwp_days"`
	OverridePolicy     bool   `json:"override_policy,omitempty"`
	AutoConvertedToLwp bool   `json:"auto_converted_to_lwp,omitempty"`
	AutoLwpReason      string `json:"auto_lwp_reason,omitempty"`
	ApproverID         *int64 `json:"approver_id,omitempty"`
	AppliedAt          string `json:"applied_at"`
	ApprovedRemark     string `json:"approved_remark,omitempty"`
	ApprovedAt         string `json:"approved_at,omitempty"`
	RejectedRemark     string `json:"rejected_remark,omitempty"`
	RejectedAt         string `json:"rejected_at,omitempty"`
	CancelledRemark    string `json:"cancelled_remark,omitempty"`
	CancelledAt        string `json:"cancelled_at,omitempty"`
}

// =============================================================================
// BALANCES & LEDGER
// =============================================================================

type BalanceDTO struct {
	EmployeeID int64  `json:"employee_id"`
	Year       int    `json:"year"`
	LeaveType  string `json:"leave_type"`
	Allocated  string `json:"allocated"`
	Accrued    string `json:"accrued"`
	Used       string `json:"used"`
	Remaining  string `json:"remaining"`
	Eligible   bool   `json:"eligible"`
}

type EmployeeBalancesDTO struct {
	Employee EmployeeDTO  `json:"employee"`
	Balances []BalanceDTO `json:"balances"`
	Compoff  string       `json:"compoff_available"`
}

type TransactionDTO struct {
	ID             string `json:"id"`
	EmployeeID     int64  `json:"employee_id"`
	Year           int    `json:"year"`
	LeaveType      string `json:"leave_type"`
	Delta          string `json:"delta"`
	Action         string `json:"action"`
	Remarks        string `json:"remarks,omitempty"`
	ActionBy       *int64 `json:"action_by,omitempty"`
	ActionAt       string `json:"action_at"`
	LeaveRequestID *int64 `json:"leave_request_id,omitempty"`
}

// =============================================================================
// COMP-OFF
// =============================================================================

type SubmitCompoffRequest struct {
	WorkedDate    string `json:"worked_date"`
	Reason        string `json:"reason"`
	HasAttendance bool   `json:"has_attendance"`
}

type CompoffRequestDTO struct {
	ID             int64  `json:"id"`
	EmployeeID     int64  `json:"employee_id"`
	WorkedDate     string `json:"worked_date"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
	AppliedAt      string `json:"applied_at"`
	ApprovedByID   *int64 `json:"approved_by_id,omitempty"`
	ApprovedAt     string `json:"approved_at,omitempty"`
	RejectedRemark string `json:"rejected_remark,omitempty"`
	RejectedAt     string `json:"rejected_at,omitempty"`
}

type CompoffBalanceDTO struct {
	EmployeeID int64  `json:"employee_id"`
	Year       int    `json:"year"`
	Credits    string `json:"credits"`
	Debits     string `json:"debits"`
	Expired    string `json:"expired"`
	Available  string `json:"available"`
}

// =============================================================================
// WFH
// =============================================================================

type SubmitWfhRequest struct {
	RequestDate string `json:"request_date"`
	Reason      string `json:"reason"`
}

type WfhRequestDTO struct {
	ID           int64  `json:"id"`
	EmployeeID   int64  `json:"employee_id"`
	RequestDate  string `json:"request_date"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
	AppliedAt    string `json:"applied_at"`
	ApprovedByID *int64 `json:"approved_by_id,omitempty"`
	ApprovedAt   string `json:"approved_at,omitempty"`
	ActionRemark string `json:"action_remark,omitempty"`
}

type WfhUsageDTO struct {
	EmployeeID int64  `json:"employee_id"`
	Month      string `json:"month"`
	Approved   string `json:"approved_days"`
	Pending    int    `json:"pending_count"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func optID(id *engine.EmployeeID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

func optReqID(id *engine.RequestID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toEmployeeDTO(e *engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                 int64(e.ID),
		EmpCode:            e.EmpCode,
		Name:               e.Name,
		Role:               string(e.Role),
		RoleRank:           e.RoleRank,
		DepartmentID:       int64(e.DepartmentID),
		ReportingManagerID: optID(e.ReportingManagerID),
		JoinDate:           e.JoinDate.String(),
		Active:             e.Active,
	}
}

func toRoleDTO(r engine.RoleDefinition) RoleDTO {
	return RoleDTO{
		ID:         r.ID,
		Name:       string(r.Name),
		RoleRank:   r.RoleRank,
		WfhEnabled: r.WfhEnabled,
		IsActive:   r.IsActive,
	}
}

func toHolidayDTO(h engine.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:     h.ID,
		Date:   h.Date.String(),
		Name:   h.Name,
		Active: h.Active,
	}
}

func toPolicyDTO(p *engine.Policy) PolicyDTO {
	return PolicyDTO{
		Year:                p.Year,
		AnnualPL:            p.AnnualPL,
		AnnualCL:            p.AnnualCL,
		AnnualSL:            p.AnnualSL,
		AnnualRH:            p.AnnualRH,
		MonthlyCreditPL:     p.MonthlyCreditPL.String(),
		MonthlyCreditCL:     p.MonthlyCreditCL.String(),
		MonthlyCreditSL:     p.MonthlyCreditSL.String(),
		PLEligibilityMonths: p.PLEligibilityMonths,
		BackdatedMaxDays:    p.BackdatedMaxDays,
		CarryForwardPLMax:   p.CarryForwardPLMax,
		SandwichEnabled:     p.SandwichEnabled,
		AllowHROverride:     p.AllowHROverride,
	}
}

func toPolicy(d PolicyDTO) (engine.Policy, error) {
	pl, err := parseRate("monthly_credit_pl", d.MonthlyCreditPL)
	if err != nil {
		return engine.Policy{}, err
	}
	cl, err := parseRate("monthly_credit_cl", d.MonthlyCreditCL)
	if err != nil {
		return engine.Policy{}, err
	}
	sl, err := parseRate("monthly_credit_sl", d.MonthlyCreditSL)
	if err != nil {
		return engine.Policy{}, err
	}
	return engine.Policy{
		Year:                d.Year,
		AnnualPL:            d.AnnualPL,
		AnnualCL:            d.AnnualCL,
		AnnualSL:            d.AnnualSL,
		AnnualRH:            d.AnnualRH,
		MonthlyCreditPL:     pl,
		MonthlyCreditCL:     cl,
		MonthlyCreditSL:     sl,
		PLEligibilityMonths: d.PLEligibilityMonths,
		BackdatedMaxDays:    d.BackdatedMaxDays,
		CarryForwardPLMax:   d.CarryForwardPLMax,
		SandwichEnabled:     d.SandwichEnabled,
		AllowHROverride:     d.AllowHROverride,
	}, nil
}

func toLeaveRequestDTO(r *engine.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:                 int64(r.ID),
		EmployeeID:         int64(r.EmployeeID),
		LeaveType:          string(r.LeaveType),
		FromDate:           r.FromDate.String(),
		ToDate:             r.ToDate.String(),
		Reason:             r.Reason,
		Status:             string(r.Status),
		ComputedDays:       r.ComputedDays.String(),
		PaidDays:           r.PaidDays.String(),
		LwpDays:            r.LwpDays.String(),
		OverridePolicy:     r.OverridePolicy,
		AutoConvertedToLwp: r.AutoConvertedToLwp,
		AutoLwpReason:      r.AutoLwpReason,
		ApproverID:         optID(r.ApproverID),
		AppliedAt:          r.AppliedAt.Format(time.RFC3339),
		ApprovedRemark:     r.ApprovedRemark,
		ApprovedAt:         optTime(r.ApprovedAt),
		RejectedRemark:     r.RejectedRemark,
		RejectedAt:         optTime(r.RejectedAt),
		CancelledRemark:    r.CancelledRemark,
		CancelledAt:        optTime(r.CancelledAt),
	}
}

func toLeaveRequestDTOs(reqs []engine.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = toLeaveRequestDTO(&reqs[i])
	}
	return dtos
}

func toBalanceDTO(b engine.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID: int64(b.EmployeeID),
		Year:       b.Year,
		LeaveType:  string(b.LeaveType),
		Allocated:  b.Allocated.String(),
		Accrued:    b.Accrued.String(),
		Used:       b.Used.String(),
		Remaining:  b.Remaining.String(),
		Eligible:   b.Eligible,
	}
}

func toTransactionDTO(tx engine.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		EmployeeID:     int64(tx.EmployeeID),
		Year:           tx.Year,
		LeaveType:      string(tx.LeaveType),
		Delta:          tx.Delta.String(),
		Action:         string(tx.Action),
		Remarks:        tx.Remarks,
		ActionBy:       optID(tx.ActionBy),
		ActionAt:       tx.ActionAt.Format(time.RFC3339),
		LeaveRequestID: optReqID(tx.LeaveRequestID),
	}
}

func toTransactionDTOs(txs []engine.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toCompoffRequestDTO(r *engine.CompoffRequest) CompoffRequestDTO {
	return CompoffRequestDTO{
		ID:             int64(r.ID),
		EmployeeID:     int64(r.EmployeeID),
		WorkedDate:     r.WorkedDate.String(),
		Reason:         r.Reason,
		Status:         string(r.Status),
		AppliedAt:      r.AppliedAt.Format(time.RFC3339),
		ApprovedByID:   optID(r.ApprovedByID),
		ApprovedAt:     optTime(r.ApprovedAt),
		RejectedRemark: r.RejectedRemark,
		RejectedAt:     optTime(r.RejectedAt),
	}
}

func toCompoffBalanceDTO(b *engine.CompoffBalance) CompoffBalanceDTO {
	return CompoffBalanceDTO{
		EmployeeID: int64(b.EmployeeID),
		Year:       b.Year,
		Credits:    b.Credits.String(),
		Debits:     b.Debits.String(),
		Expired:    b.Expired.String(),
		Available:  b.Available.String(),
	}
}

func toWfhRequestDTO(r *engine.WfhRequest) WfhRequestDTO {
	return WfhRequestDTO{
		ID:           int64(r.ID),
		EmployeeID:   int64(r.EmployeeID),
		RequestDate:  r.RequestDate.String(),
		Reason:       r.Reason,
		Status:       string(r.Status),
		AppliedAt:    r.AppliedAt.Format(time.RFC3339),
		ApprovedByID: optID(r.ApprovedByID),
		ApprovedAt:   optTime(r.ApprovedAt),
		ActionRemark: r.ActionRemark,
	}
}

func toWfhUsageDTO(u engine.WfhUsage) WfhUsageDTO {
	return WfhUsageDTO{
		EmployeeID: int64(u.EmployeeID),
		Month:      u.Month.String(),
		Approved:   u.Approved.String(),
		Pending:    u.Pending,
	}
}
