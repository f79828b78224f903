/*
accrual.go - Monthly and yearly leave credit runs

PURPOSE:
  Computes and posts the periodic credit transactions into the ledger.
  Runs are discrete administrative operations (triggered from the
  console or CLI), not background loops.

ELIGIBILITY:
  - Inactive employees are skipped entirely.
  - An employee joined after the run month is not eligible for any type.
  - PL additionally requires join_date + pl_eligibility_months to fall
    on or before the first of the run month. Other eligible types for
    the same employee still credit.
  - RH (and any future annual-only type) is granted upfront: once per
    year, in the January run or in the employee's first accrual month.

IDEMPOTENCY:
  Every credit carries a deterministic idempotency key
  ("accrual:<emp>:<YYYY-MM>:<type>"); a second run for the same month
  finds the key and skips, so re-runs never double-credit. The unique
  index on idempotency_key backs this under concurrency.

FAILURE ISOLATION:
  One employee's failure is recorded in the run details and does not
  abort the batch.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccrualEngine posts periodic credits per the year's policy.
type AccrualEngine struct {
	Ledger    *Ledger
	Employees EmployeeStore
	Policies  PolicyStore
}

func NewAccrualEngine(ledger *Ledger, employees EmployeeStore, policies PolicyStore) *AccrualEngine {
	return &AccrualEngine{Ledger: ledger, Employees: employees, Policies: policies}
}

// AccrualDetail is one per-employee-per-type outcome in a run result.
type AccrualDetail struct {
	EmployeeID EmployeeID `json:"employee_id"`
	LeaveType  LeaveType  `json:"leave_type,omitempty"`
	Outcome    string     `json:"outcome"` // "credited", "skipped", "failed"
	Reason     string     `json:"reason,omitempty"`
	Days       string     `json:"days,omitempty"`
}

// AccrualRunResult summarizes one run.
type AccrualRunResult struct {
	Month                   string          `json:"month,omitempty"`
	Year                    int             `json:"year,omitempty"`
	MonthsRun               int             `json:"months_run,omitempty"`
	TotalEmployeesProcessed int             `json:"total_employees_processed"`
	CreditedCount           int             `json:"credited_count"`
	SkippedNotEligible      int             `json:"skipped_not_eligible"`
	SkippedInactive         int             `json:"skipped_inactive"`
	Details                 []AccrualDetail `json:"details"`
}

func (r *AccrualRunResult) merge(o *AccrualRunResult) {
	r.TotalEmployeesProcessed += o.TotalEmployeesProcessed
	r.CreditedCount += o.CreditedCount
	r.SkippedNotEligible += o.SkippedNotEligible
	r.SkippedInactive += o.SkippedInactive
	r.Details = append(r.Details, o.Details...)
}

// RunMonthly credits every active, eligible employee for one month.
func (e *AccrualEngine) RunMonthly(ctx context.Context, month Month) (*AccrualRunResult, error) {
	policy, err := e.Policies.GetPolicy(ctx, month.Year)
	if err != nil {
		return nil, err
	}

	employees, err := e.Employees.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	result := &AccrualRunResult{Month: month.String()}
	for i := range employees {
		emp := &employees[i]
		result.TotalEmployeesProcessed++

		if !emp.Active {
			result.SkippedInactive++
			result.Details = append(result.Details, AccrualDetail{
				EmployeeID: emp.ID, Outcome: "skipped", Reason: "inactive",
			})
			continue
		}
		e.runEmployeeMonth(ctx, policy, emp, month, result)
	}
	return result, nil
}

// RunYearly applies the monthly run for each month of the year up to and
// including the current month (all twelve for past years).
func (e *AccrualEngine) RunYearly(ctx context.Context, year int) (*AccrualRunResult, error) {
	if _, err := e.Policies.GetPolicy(ctx, year); err != nil {
		return nil, err
	}

	lastMonth := time.December
	now := e.Ledger.now()
	if year == now.Year() {
		lastMonth = now.Month()
	} else if year > now.Year() {
		return nil, &ValidationError{Field: "year", Message: "cannot run accrual for a future year"}
	}

	result := &AccrualRunResult{Year: year}
	for m := time.January; m <= lastMonth; m++ {
		monthly, err := e.RunMonthly(ctx, Month{Year: year, Month: m})
		if err != nil {
			return nil, err
		}
		result.MonthsRun++
		result.merge(monthly)
	}
	return result, nil
}

func (e *AccrualEngine) runEmployeeMonth(ctx context.Context, policy *Policy, emp *Employee, month Month, result *AccrualRunResult) {
	monthStart := month.Start()

	// Joined after this month: not eligible for anything yet.
	if emp.JoinDate.IsZero() {
		result.Details = append(result.Details, AccrualDetail{
			EmployeeID: emp.ID, Outcome: "failed", Reason: "missing join date",
		})
		return
	}
	if NewDate(emp.JoinDate.Year(), emp.JoinDate.Month(), 1).After(monthStart) {
		result.SkippedNotEligible++
		result.Details = append(result.Details, AccrualDetail{
			EmployeeID: emp.ID, Outcome: "skipped", Reason: "joined after " + month.String(),
		})
		return
	}

	for _, lt := range []LeaveType{LeavePL, LeaveCL, LeaveSL} {
		rate := policy.MonthlyCredit(lt)
		if rate.IsZero() {
			continue // type not credited monthly under this policy
		}
		if lt == LeavePL && policy.PLEligibleFrom(emp.JoinDate).After(monthStart) {
			result.SkippedNotEligible++
			result.Details = append(result.Details, AccrualDetail{
				EmployeeID: emp.ID, LeaveType: lt, Outcome: "skipped",
				Reason: fmt.Sprintf("PL eligible from %s", policy.PLEligibleFrom(emp.JoinDate)),
			})
			continue
		}

		key := fmt.Sprintf("accrual:%d:%s:%s", emp.ID, month, lt)
		e.post(ctx, emp, month.Year, lt, ActionAccrueMonthly, rate, key,
			"monthly accrual "+month.String(), result)
	}

	// Annual RH grant: January run, or the employee's first accrual month.
	if policy.AnnualRH > 0 {
		firstMonth := Month{Year: month.Year, Month: time.January}
		if emp.JoinDate.Year() == month.Year {
			firstMonth = Month{Year: month.Year, Month: emp.JoinDate.Month()}
		}
		if month == firstMonth {
			key := fmt.Sprintf("accrual-annual:%d:%d:%s", emp.ID, month.Year, LeaveRH)
			e.post(ctx, emp, month.Year, LeaveRH, ActionAccrueAnnual,
				decimal.NewFromInt(int64(policy.AnnualRH)), key,
				fmt.Sprintf("annual RH grant %d", month.Year), result)
		}
	}
}

// MonthStatus reports whether the monthly run has been applied for one
// calendar month of a year.
type MonthStatus struct {
	Month string `json:"month"`
	Run   bool   `json:"run"`
}

// AccrualStatus summarizes which months of a year have been credited.
type AccrualStatus struct {
	Year   int           `json:"year"`
	Months []MonthStatus `json:"months"`
}

// Status inspects the ledger for accrual idempotency keys. A month
// counts as run when at least one employee carries a credit for it.
// One ledger read per employee; the keys are folded in memory.
func (e *AccrualEngine) Status(ctx context.Context, year int) (*AccrualStatus, error) {
	if _, err := e.Policies.GetPolicy(ctx, year); err != nil {
		return nil, err
	}
	employees, err := e.Employees.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool)
	for i := range employees {
		txs, err := e.Ledger.Store.ListTransactions(ctx, employees[i].ID, year, 0)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if tx.Action == ActionAccrueMonthly && tx.IdempotencyKey != "" {
				keys[tx.IdempotencyKey] = true
			}
		}
	}

	status := &AccrualStatus{Year: year}
	for m := time.January; m <= time.December; m++ {
		month := Month{Year: year, Month: m}
		run := false
	scan:
		for _, emp := range employees {
			for _, lt := range []LeaveType{LeavePL, LeaveCL, LeaveSL} {
				if keys[fmt.Sprintf("accrual:%d:%s:%s", emp.ID, month, lt)] {
					run = true
					break scan
				}
			}
		}
		status.Months = append(status.Months, MonthStatus{Month: month.String(), Run: run})
	}
	return status, nil
}

// post appends one credit, translating a duplicate key into a skip.
func (e *AccrualEngine) post(ctx context.Context, emp *Employee, year int, lt LeaveType, action Action, delta decimal.Decimal, key, remarks string, result *AccrualRunResult) {
	_, err := e.Ledger.Post(ctx, PostInput{
		EmployeeID:     emp.ID,
		Year:           year,
		LeaveType:      lt,
		Delta:          delta,
		Action:         action,
		Remarks:        remarks,
		IdempotencyKey: key,
	})
	switch {
	case err == nil:
		result.CreditedCount++
		result.Details = append(result.Details, AccrualDetail{
			EmployeeID: emp.ID, LeaveType: lt, Outcome: "credited", Days: delta.String(),
		})
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		result.Details = append(result.Details, AccrualDetail{
			EmployeeID: emp.ID, LeaveType: lt, Outcome: "skipped", Reason: "already credited",
		})
	default:
		result.Details = append(result.Details, AccrualDetail{
			EmployeeID: emp.ID, LeaveType: lt, Outcome: "failed", Reason: err.Error(),
		})
	}
}
