/*
policy.go - Per-year leave policy configuration

PURPOSE:
  One policy row per year parameterizes the accrual engine, the request
  state machine, and the year-close processor: annual entitlements,
  monthly credit rates, the PL eligibility window, backdating limits,
  the PL carry-forward cap, and rule toggles.

IMMUTABILITY:
  A policy becomes immutable once any posted ledger transaction
  references its year; edits apply prospectively only. The store
  enforces this in PutPolicy by checking the ledger first.

SEE ALSO:
  - accrual.go: monthly_credit_* consumers
  - request.go: backdated_max_days, sandwich_enabled, allow_hr_override
  - yearclose.go: carry_forward_pl_max
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the leave configuration for one calendar year.
type Policy struct {
	Year int

	// Annual entitlements in days.
	AnnualPL int
	AnnualCL int
	AnnualSL int
	AnnualRH int

	// Monthly accrual rates in days/month. A zero rate means the type is
	// not credited monthly (RH is always granted annually).
	MonthlyCreditPL decimal.Decimal
	MonthlyCreditCL decimal.Decimal
	MonthlyCreditSL decimal.Decimal

	// PLEligibilityMonths is the number of months after the join date
	// before PL accrues and becomes usable.
	PLEligibilityMonths int

	// BackdatedMaxDays limits how far in the past a submission may start.
	BackdatedMaxDays int

	// CarryForwardPLMax caps PL days carried into the next year.
	CarryForwardPLMax int

	// SandwichEnabled makes weekends/holidays between two leave days
	// count as leave.
	SandwichEnabled bool

	// AllowHROverride permits HR to bypass policy limits and lets
	// balance shortages auto-convert to LWP at submission.
	AllowHROverride bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPolicy returns the standard configuration for a year, matching
// the console's "create default policy" action.
func DefaultPolicy(year int) Policy {
	return Policy{
		Year:                year,
		AnnualPL:            7,
		AnnualCL:            5,
		AnnualSL:            6,
		AnnualRH:            1,
		MonthlyCreditPL:     decimal.NewFromInt(7).Div(decimal.NewFromInt(12)).Round(4),
		MonthlyCreditCL:     decimal.NewFromInt(5).Div(decimal.NewFromInt(12)).Round(4),
		MonthlyCreditSL:     decimal.Zero,
		PLEligibilityMonths: 6,
		BackdatedMaxDays:    7,
		CarryForwardPLMax:   4,
		SandwichEnabled:     true,
		AllowHROverride:     true,
	}
}

// Validate checks ranges before a policy is stored.
func (p Policy) Validate() error {
	if p.Year < 2000 || p.Year > 2200 {
		return &ValidationError{Field: "year", Message: "out of range"}
	}
	if p.AnnualPL < 0 || p.AnnualCL < 0 || p.AnnualSL < 0 || p.AnnualRH < 0 {
		return &ValidationError{Field: "annual entitlement", Message: "must not be negative"}
	}
	if p.MonthlyCreditPL.IsNegative() || p.MonthlyCreditCL.IsNegative() || p.MonthlyCreditSL.IsNegative() {
		return &ValidationError{Field: "monthly credit", Message: "must not be negative"}
	}
	if p.PLEligibilityMonths < 0 || p.BackdatedMaxDays < 0 || p.CarryForwardPLMax < 0 {
		return &ValidationError{Field: "policy limits", Message: "must not be negative"}
	}
	return nil
}

// Annual returns the annual entitlement for a leave type.
func (p Policy) Annual(lt LeaveType) int {
	switch lt {
	case LeavePL:
		return p.AnnualPL
	case LeaveCL:
		return p.AnnualCL
	case LeaveSL:
		return p.AnnualSL
	case LeaveRH:
		return p.AnnualRH
	}
	return 0
}

// MonthlyCredit returns the monthly accrual rate for a leave type.
func (p Policy) MonthlyCredit(lt LeaveType) decimal.Decimal {
	switch lt {
	case LeavePL:
		return p.MonthlyCreditPL
	case LeaveCL:
		return p.MonthlyCreditCL
	case LeaveSL:
		return p.MonthlyCreditSL
	}
	return decimal.Zero
}

// PLEligibleFrom returns the first date PL is usable for an employee.
func (p Policy) PLEligibleFrom(joinDate Date) Date {
	return joinDate.AddMonths(p.PLEligibilityMonths)
}
