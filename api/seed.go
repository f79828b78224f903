/*
seed.go - Bootstrap data for a fresh installation

PURPOSE:
  Populates an empty store with the role master, a small demo
  organization, the current year's default policy, and the standard
  holiday list. Used by the `seed` CLI command and by tests that need
  a realistic org chart.

SEEDED ORG:
  admin (ADMIN, rank 1)
   └─ vikram (VP, rank 2)
       └─ meera (MD, rank 3)
           └─ hema (HR, rank 4)
           └─ ravi (MANAGER, rank 4)
               └─ asha, devi (EMPLOYEE, rank 5)

  All seeded accounts use the password "changeme".

SEE ALSO:
  - cmd/server/main.go: seed command
  - engine/policy.go: DefaultPolicy
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-engine/engine"
)

// DefaultRoles is the canonical role master with approval ranks.
// Rank 1 is the highest authority; WFH is a desk-role privilege.
var DefaultRoles = []engine.RoleDefinition{
	{Name: engine.RoleAdmin, RoleRank: 1, WfhEnabled: true, IsActive: true},
	{Name: engine.RoleVP, RoleRank: 2, WfhEnabled: true, IsActive: true},
	{Name: engine.RoleMD, RoleRank: 3, WfhEnabled: true, IsActive: true},
	{Name: engine.RoleHR, RoleRank: 4, WfhEnabled: true, IsActive: true},
	{Name: engine.RoleManager, RoleRank: 4, WfhEnabled: true, IsActive: true},
	{Name: engine.RoleEmployee, RoleRank: 5, WfhEnabled: false, IsActive: true},
}

type seedEmployee struct {
	empCode  string
	name     string
	role     engine.Role
	manager  string // empCode of the reporting manager; "" for rank 1
	joinDate engine.Date
}

// Seed loads roles, a demo org, holidays, and the default policy for
// the given year into an empty store. Safe to call once per database.
func Seed(ctx context.Context, store engine.Store, year int) error {
	for i := range DefaultRoles {
		role := DefaultRoles[i]
		if err := store.SaveRole(ctx, &role); err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}

	dept := &engine.Department{Name: "Engineering"}
	if err := store.SaveDepartment(ctx, dept); err != nil {
		return fmt.Errorf("seed department: %w", err)
	}
	people := &engine.Department{Name: "People Operations"}
	if err := store.SaveDepartment(ctx, people); err != nil {
		return fmt.Errorf("seed department: %w", err)
	}

	hash, err := hashPassword("changeme")
	if err != nil {
		return err
	}

	employees := []seedEmployee{
		{"ADM001", "Admin", engine.RoleAdmin, "", engine.NewDate(year-5, time.January, 1)},
		{"VP001", "Vikram Rao", engine.RoleVP, "ADM001", engine.NewDate(year-4, time.March, 1)},
		{"MD001", "Meera Iyer", engine.RoleMD, "VP001", engine.NewDate(year-3, time.June, 1)},
		{"HR001", "Hema Nair", engine.RoleHR, "MD001", engine.NewDate(year-2, time.February, 1)},
		{"MGR001", "Ravi Kumar", engine.RoleManager, "MD001", engine.NewDate(year-2, time.April, 1)},
		{"EMP001", "Asha Menon", engine.RoleEmployee, "MGR001", engine.NewDate(year-1, time.January, 15)},
		{"EMP002", "Devi Pillai", engine.RoleEmployee, "MGR001", engine.NewDate(year, time.January, 2)},
	}

	byCode := make(map[string]engine.EmployeeID, len(employees))
	rankOf := make(map[engine.Role]int, len(DefaultRoles))
	for _, r := range DefaultRoles {
		rankOf[r.Name] = r.RoleRank
	}

	for _, se := range employees {
		deptID := dept.ID
		if se.role == engine.RoleHR {
			deptID = people.ID
		}
		emp := &engine.Employee{
			EmpCode:      se.empCode,
			Name:         se.name,
			Role:         se.role,
			RoleRank:     rankOf[se.role],
			DepartmentID: deptID,
			JoinDate:     se.joinDate,
			Active:       true,
			PasswordHash: hash,
		}
		if se.manager != "" {
			mgrID, ok := byCode[se.manager]
			if !ok {
				return fmt.Errorf("seed employee %s: manager %s not seeded yet", se.empCode, se.manager)
			}
			emp.ReportingManagerID = &mgrID
		}
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("seed employee %s: %w", se.empCode, err)
		}
		byCode[se.empCode] = emp.ID
	}

	for _, h := range defaultHolidays(year) {
		holiday := h
		if err := store.SaveHoliday(ctx, &holiday); err != nil {
			return fmt.Errorf("seed holiday %s: %w", h.Name, err)
		}
	}

	policy := engine.DefaultPolicy(year)
	if err := store.PutPolicy(ctx, policy); err != nil {
		return fmt.Errorf("seed policy %d: %w", year, err)
	}
	return nil
}

func defaultHolidays(year int) []engine.Holiday {
	return []engine.Holiday{
		{Date: engine.NewDate(year, time.January, 1), Name: "New Year's Day", Active: true},
		{Date: engine.NewDate(year, time.January, 26), Name: "Republic Day", Active: true},
		{Date: engine.NewDate(year, time.May, 1), Name: "Labour Day", Active: true},
		{Date: engine.NewDate(year, time.August, 15), Name: "Independence Day", Active: true},
		{Date: engine.NewDate(year, time.October, 2), Name: "Gandhi Jayanti", Active: true},
		{Date: engine.NewDate(year, time.December, 25), Name: "Christmas", Active: true},
	}
}
