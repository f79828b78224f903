package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testNow is the frozen clock for every service: Monday 2025-06-16.
var testNow = time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type fixture struct {
	store     *memory.Store
	ledger    *engine.Ledger
	projector *engine.Projector
	leaves    *engine.LeaveService
	compoff   *engine.CompoffService
	wfh       *engine.WfhService
	accrual   *engine.AccrualEngine
	yearClose *engine.YearCloseProcessor

	admin *engine.Employee
	hr    *engine.Employee
	mgr   *engine.Employee
	emp   *engine.Employee
}

func testPolicy(year int) engine.Policy {
	p := engine.DefaultPolicy(year)
	return p
}

// newFixture builds a four-person org chart over the in-memory store:
// admin (ADMIN, rank 1) <- hr (HR, 4), mgr (MANAGER, 4) <- emp (EMPLOYEE, 5).
// Policies passed in are stored before any ledger writes, honoring the
// prospective-only rule.
func newFixture(t *testing.T, policies ...engine.Policy) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	roles := []engine.RoleDefinition{
		{Name: engine.RoleAdmin, RoleRank: 1, WfhEnabled: true, IsActive: true},
		{Name: engine.RoleVP, RoleRank: 2, WfhEnabled: true, IsActive: true},
		{Name: engine.RoleMD, RoleRank: 3, WfhEnabled: true, IsActive: true},
		{Name: engine.RoleHR, RoleRank: 4, WfhEnabled: true, IsActive: true},
		{Name: engine.RoleManager, RoleRank: 4, WfhEnabled: true, IsActive: true},
		{Name: engine.RoleEmployee, RoleRank: 5, WfhEnabled: false, IsActive: true},
	}
	for i := range roles {
		require.NoError(t, store.SaveRole(ctx, &roles[i]))
	}

	dept := &engine.Department{Name: "Engineering"}
	require.NoError(t, store.SaveDepartment(ctx, dept))

	if len(policies) == 0 {
		policies = []engine.Policy{testPolicy(2025)}
	}
	for _, p := range policies {
		require.NoError(t, store.PutPolicy(ctx, p))
	}

	newEmp := func(code, name string, role engine.Role, rank int, mgr *engine.Employee, join engine.Date) *engine.Employee {
		e := &engine.Employee{
			EmpCode:      code,
			Name:         name,
			Role:         role,
			RoleRank:     rank,
			DepartmentID: dept.ID,
			JoinDate:     join,
			Active:       true,
		}
		if mgr != nil {
			id := mgr.ID
			e.ReportingManagerID = &id
		}
		require.NoError(t, store.SaveEmployee(ctx, e))
		return e
	}

	admin := newEmp("ADM001", "Admin", engine.RoleAdmin, 1, nil, engine.NewDate(2020, time.January, 1))
	hr := newEmp("HR001", "Hema", engine.RoleHR, 4, admin, engine.NewDate(2021, time.February, 1))
	mgr := newEmp("MGR001", "Ravi", engine.RoleManager, 4, admin, engine.NewDate(2022, time.April, 1))
	emp := newEmp("EMP001", "Asha", engine.RoleEmployee, 5, mgr, engine.NewDate(2024, time.January, 15))

	ledger := engine.NewLedger(store, store)
	ledger.Now = func() time.Time { return testNow }
	projector := engine.NewProjector(store, store, store)

	leaves := engine.NewLeaveService(store, ledger, projector)
	leaves.Now = ledger.Now
	compoff := engine.NewCompoffService(store, ledger, projector)
	compoff.Now = ledger.Now
	wfh := engine.NewWfhService(store)
	wfh.Now = ledger.Now
	accrual := engine.NewAccrualEngine(ledger, store, store)
	yearClose := engine.NewYearCloseProcessor(store, ledger, projector, compoff)
	yearClose.Now = ledger.Now

	return &fixture{
		store:     store,
		ledger:    ledger,
		projector: projector,
		leaves:    leaves,
		compoff:   compoff,
		wfh:       wfh,
		accrual:   accrual,
		yearClose: yearClose,
		admin:     admin,
		hr:        hr,
		mgr:       mgr,
		emp:       emp,
	}
}

// credit posts an opening balance so tests start from a known number.
func (f *fixture) credit(t *testing.T, emp engine.EmployeeID, year int, lt engine.LeaveType, days string, key string) {
	t.Helper()
	d, err := decimal.NewFromString(days)
	require.NoError(t, err)
	_, err = f.ledger.Post(context.Background(), engine.PostInput{
		EmployeeID:     emp,
		Year:           year,
		LeaveType:      lt,
		Delta:          d,
		Action:         engine.ActionAccrueMonthly,
		Remarks:        "opening balance",
		IdempotencyKey: key,
	})
	require.NoError(t, err)
}

func (f *fixture) remaining(t *testing.T, emp engine.EmployeeID, year int, lt engine.LeaveType) decimal.Decimal {
	t.Helper()
	b, err := f.projector.Balance(context.Background(), emp, year, lt)
	require.NoError(t, err)
	return b.Remaining
}
