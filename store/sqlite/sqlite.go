/*
Package sqlite provides the SQLite-backed implementation of engine.Store.

PURPOSE:
  Implements every persistence interface the engine defines using a
  single SQLite database. The same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The transactions table has no UPDATE or DELETE statements anywhere in
  this package. Corrections happen via reversal transactions. The
  UNIQUE index on idempotency_key turns a retried write into
  engine.ErrDuplicateIdempotencyKey.

STATUS TRANSITIONS:
  Request transitions are compare-and-swap:

    UPDATE leave_requests SET status = ? ... WHERE id = ? AND status = ?

  Zero affected rows means another actor got there first (or the id is
  unknown); the caller sees ErrInvalidState or NotFoundError.

KEY TABLES:
  transactions:     immutable leave ledger
  leave_requests:   leave workflow records
  compoff_requests: comp-off claims
  wfh_requests:     work-from-home requests
  policies:         one row per calendar year
  employees/roles/departments/holidays: organizational masters

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers do not
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/leave.db")   // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: interface contracts
  - store/memory: map-backed implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/engine"
)

// Store implements engine.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only leave ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		leave_type TEXT NOT NULL,
		delta TEXT NOT NULL,
		action TEXT NOT NULL,
		remarks TEXT,
		action_by INTEGER,
		action_at TEXT NOT NULL,
		leave_request_id INTEGER,
		idempotency_key TEXT UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_emp_year_type
		ON transactions(employee_id, year, leave_type, action_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_emp_year_action
		ON transactions(employee_id, year, action);
	CREATE INDEX IF NOT EXISTS idx_transactions_request
		ON transactions(leave_request_id) WHERE leave_request_id IS NOT NULL;

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		emp_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		role_rank INTEGER NOT NULL,
		department_id INTEGER,
		reporting_manager_id INTEGER,
		join_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(reporting_manager_id) WHERE reporting_manager_id IS NOT NULL;

	-- Role master
	CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		role_rank INTEGER NOT NULL,
		wfh_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Departments
	CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	-- Holiday calendar
	CREATE TABLE IF NOT EXISTS holidays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(date, name)
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);

	-- Policies (one per calendar year)
	CREATE TABLE IF NOT EXISTS policies (
		year INTEGER PRIMARY KEY,
		annual_pl INTEGER NOT NULL,
		annual_cl INTEGER NOT NULL,
		annual_sl INTEGER NOT NULL,
		annual_rh INTEGER NOT NULL,
		monthly_credit_pl TEXT NOT NULL,
		monthly_credit_cl TEXT NOT NULL,
		monthly_credit_sl TEXT NOT NULL,
		pl_eligibility_months INTEGER NOT NULL,
		backdated_max_days INTEGER NOT NULL,
		carry_forward_pl_max INTEGER NOT NULL,
		sandwich_enabled BOOLEAN NOT NULL,
		allow_hr_override BOOLEAN NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Leave requests (workflow state machine)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		leave_type TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		computed_days TEXT NOT NULL,
		paid_days TEXT NOT NULL,
		lwp_days TEXT NOT NULL,
		override_policy BOOLEAN NOT NULL DEFAULT FALSE,
		override_remark TEXT,
		auto_converted_to_lwp BOOLEAN NOT NULL DEFAULT FALSE,
		auto_lwp_reason TEXT,
		approver_id INTEGER,
		applied_at TEXT NOT NULL,
		approved_remark TEXT,
		approved_at TEXT,
		rejected_remark TEXT,
		rejected_at TEXT,
		rejected_by INTEGER,
		cancelled_remark TEXT,
		cancelled_at TEXT,
		cancelled_by INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, from_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	-- Comp-off requests
	CREATE TABLE IF NOT EXISTS compoff_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		worked_date TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		approved_by INTEGER,
		approved_at TEXT,
		rejected_remark TEXT,
		rejected_by INTEGER,
		rejected_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_compoff_requests_employee
		ON compoff_requests(employee_id);

	-- WFH requests
	CREATE TABLE IF NOT EXISTS wfh_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL,
		request_date TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		approved_by INTEGER,
		approved_at TEXT,
		action_remark TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_wfh_requests_employee
		ON wfh_requests(employee_id, request_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

const txColumns = `id, employee_id, year, leave_type, delta, action, remarks,
	action_by, action_at, leave_request_id, idempotency_key`

func (s *Store) AppendTransaction(ctx context.Context, tx engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) AppendTransactions(ctx context.Context, txs []engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject intra-batch duplicates before touching the database.
	keys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if keys[tx.IdempotencyKey] {
				return engine.ErrDuplicateIdempotencyKey
			}
			keys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func (s *Store) appendTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, tx engine.Transaction) error {
	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		string(tx.ID),
		int64(tx.EmployeeID),
		tx.Year,
		string(tx.LeaveType),
		tx.Delta.String(),
		string(tx.Action),
		tx.Remarks,
		nullEmployeeID(tx.ActionBy),
		tx.ActionAt.UTC().Format(time.RFC3339),
		nullRequestID(tx.LeaveRequestID),
		nullString(tx.IdempotencyKey),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", storeErr(err))
	}
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context, emp engine.EmployeeID, year int, lt engine.LeaveType) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE employee_id = ? AND year = ? AND leave_type = ?
		ORDER BY action_at ASC, id ASC
	`
	return s.queryTransactions(ctx, query, int64(emp), year, string(lt))
}

func (s *Store) ListTransactions(ctx context.Context, emp engine.EmployeeID, year int, limit int) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE employee_id = ? AND year = ?
		ORDER BY action_at DESC, id DESC
	`
	args := []any{int64(emp), year}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryTransactions(ctx, query, args...)
}

func (s *Store) TransactionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]engine.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", storeErr(err))
	}
	defer rows.Close()

	var txs []engine.Transaction
	for rows.Next() {
		var (
			tx             engine.Transaction
			id             string
			empID          int64
			leaveType      string
			delta          string
			action         string
			remarks        sql.NullString
			actionBy       sql.NullInt64
			actionAt       string
			requestID      sql.NullInt64
			idempotencyKey sql.NullString
		)
		if err := rows.Scan(&id, &empID, &tx.Year, &leaveType, &delta, &action,
			&remarks, &actionBy, &actionAt, &requestID, &idempotencyKey); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.ID = engine.TransactionID(id)
		tx.EmployeeID = engine.EmployeeID(empID)
		tx.LeaveType = engine.LeaveType(leaveType)
		tx.Delta = mustDecimal(delta)
		tx.Action = engine.Action(action)
		tx.Remarks = remarks.String
		if actionBy.Valid {
			by := engine.EmployeeID(actionBy.Int64)
			tx.ActionBy = &by
		}
		tx.ActionAt, _ = time.Parse(time.RFC3339, actionAt)
		if requestID.Valid {
			rid := engine.RequestID(requestID.Int64)
			tx.LeaveRequestID = &rid
		}
		tx.IdempotencyKey = idempotencyKey.String

		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, emp_code, name, role, role_rank, department_id,
	reporting_manager_id, join_date, active, password_hash, created_at, updated_at`

func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE id = ?", int64(id))
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "employee", ID: id}
	}
	return e, err
}

func (s *Store) GetEmployeeByCode(ctx context.Context, empCode string) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees WHERE emp_code = ?", empCode)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "employee", ID: empCode}
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []engine.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, e *engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if e.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO employees
			(emp_code, name, role, role_rank, department_id, reporting_manager_id,
			 join_date, active, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.EmpCode, e.Name, string(e.Role), e.RoleRank, int64(e.DepartmentID),
			nullEmployeeID(e.ReportingManagerID), e.JoinDate.String(), e.Active,
			e.PasswordHash, now, now,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = engine.EmployeeID(id)
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE employees SET
			emp_code = ?, name = ?, role = ?, role_rank = ?, department_id = ?,
			reporting_manager_id = ?, join_date = ?, active = ?, password_hash = ?,
			updated_at = ?
		WHERE id = ?
	`,
		e.EmpCode, e.Name, string(e.Role), e.RoleRank, int64(e.DepartmentID),
		nullEmployeeID(e.ReportingManagerID), e.JoinDate.String(), e.Active,
		e.PasswordHash, now, int64(e.ID),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*engine.Employee, error) {
	var (
		e         engine.Employee
		id        int64
		role      string
		deptID    sql.NullInt64
		managerID sql.NullInt64
		joinDate  string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&id, &e.EmpCode, &e.Name, &role, &e.RoleRank, &deptID,
		&managerID, &joinDate, &e.Active, &e.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.ID = engine.EmployeeID(id)
	e.Role = engine.Role(role)
	if deptID.Valid {
		e.DepartmentID = engine.DepartmentID(deptID.Int64)
	}
	if managerID.Valid {
		m := engine.EmployeeID(managerID.Int64)
		e.ReportingManagerID = &m
	}
	e.JoinDate, _ = engine.ParseDate(joinDate)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

// =============================================================================
// ROLES & DEPARTMENTS
// =============================================================================

func (s *Store) ListRoles(ctx context.Context) ([]engine.RoleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role_rank, wfh_enabled, is_active FROM roles ORDER BY role_rank")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []engine.RoleDefinition
	for rows.Next() {
		var r engine.RoleDefinition
		var name string
		if err := rows.Scan(&r.ID, &name, &r.RoleRank, &r.WfhEnabled, &r.IsActive); err != nil {
			return nil, err
		}
		r.Name = engine.Role(name)
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, name engine.Role) (*engine.RoleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r engine.RoleDefinition
	var n string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, role_rank, wfh_enabled, is_active FROM roles WHERE name = ?",
		string(name),
	).Scan(&r.ID, &n, &r.RoleRank, &r.WfhEnabled, &r.IsActive)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "role", ID: string(name)}
	}
	if err != nil {
		return nil, err
	}
	r.Name = engine.Role(n)
	return &r, nil
}

func (s *Store) SaveRole(ctx context.Context, r *engine.RoleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (name, role_rank, wfh_enabled, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			role_rank = excluded.role_rank,
			wfh_enabled = excluded.wfh_enabled,
			is_active = excluded.is_active
	`, string(r.Name), r.RoleRank, r.WfhEnabled, r.IsActive)
	if err != nil {
		return err
	}
	if r.ID == 0 {
		r.ID, _ = res.LastInsertId()
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]engine.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM departments ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var depts []engine.Department
	for rows.Next() {
		var d engine.Department
		var id int64
		if err := rows.Scan(&id, &d.Name); err != nil {
			return nil, err
		}
		d.ID = engine.DepartmentID(id)
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

func (s *Store) SaveDepartment(ctx context.Context, d *engine.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, d.Name)
	if err != nil {
		return err
	}
	if d.ID == 0 {
		id, _ := res.LastInsertId()
		d.ID = engine.DepartmentID(id)
	}
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) ListHolidays(ctx context.Context, year int) ([]engine.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, name, active FROM holidays
		WHERE strftime('%Y', date) = ?
		ORDER BY date ASC
	`, fmt.Sprintf("%d", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []engine.Holiday
	for rows.Next() {
		var h engine.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.Active); err != nil {
			return nil, err
		}
		h.Date, _ = engine.ParseDate(dateStr)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (s *Store) SaveHoliday(ctx context.Context, h *engine.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (date, name, active) VALUES (?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET active = excluded.active
	`, h.Date.String(), h.Name, h.Active)
	if err != nil {
		return err
	}
	if h.ID == 0 {
		h.ID, _ = res.LastInsertId()
	}
	return nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) GetPolicy(ctx context.Context, year int) (*engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p         engine.Policy
		mcPL      string
		mcCL      string
		mcSL      string
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT year, annual_pl, annual_cl, annual_sl, annual_rh,
			monthly_credit_pl, monthly_credit_cl, monthly_credit_sl,
			pl_eligibility_months, backdated_max_days, carry_forward_pl_max,
			sandwich_enabled, allow_hr_override, created_at, updated_at
		FROM policies WHERE year = ?
	`, year).Scan(
		&p.Year, &p.AnnualPL, &p.AnnualCL, &p.AnnualSL, &p.AnnualRH,
		&mcPL, &mcCL, &mcSL,
		&p.PLEligibilityMonths, &p.BackdatedMaxDays, &p.CarryForwardPLMax,
		&p.SandwichEnabled, &p.AllowHROverride, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}

	p.MonthlyCreditPL = mustDecimal(mcPL)
	p.MonthlyCreditCL = mustDecimal(mcCL)
	p.MonthlyCreditSL = mustDecimal(mcSL)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (s *Store) PutPolicy(ctx context.Context, p engine.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prospective-only rule: a year with posted ledger activity is locked.
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE year = ?", p.Year,
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return &engine.PolicyViolationError{
			Rule:    "policy_prospective_only",
			Message: "ledger transactions already posted for this year",
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies
		(year, annual_pl, annual_cl, annual_sl, annual_rh,
		 monthly_credit_pl, monthly_credit_cl, monthly_credit_sl,
		 pl_eligibility_months, backdated_max_days, carry_forward_pl_max,
		 sandwich_enabled, allow_hr_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			annual_pl = excluded.annual_pl,
			annual_cl = excluded.annual_cl,
			annual_sl = excluded.annual_sl,
			annual_rh = excluded.annual_rh,
			monthly_credit_pl = excluded.monthly_credit_pl,
			monthly_credit_cl = excluded.monthly_credit_cl,
			monthly_credit_sl = excluded.monthly_credit_sl,
			pl_eligibility_months = excluded.pl_eligibility_months,
			backdated_max_days = excluded.backdated_max_days,
			carry_forward_pl_max = excluded.carry_forward_pl_max,
			sandwich_enabled = excluded.sandwich_enabled,
			allow_hr_override = excluded.allow_hr_override,
			updated_at = excluded.updated_at
	`,
		p.Year, p.AnnualPL, p.AnnualCL, p.AnnualSL, p.AnnualRH,
		p.MonthlyCreditPL.String(), p.MonthlyCreditCL.String(), p.MonthlyCreditSL.String(),
		p.PLEligibilityMonths, p.BackdatedMaxDays, p.CarryForwardPLMax,
		p.SandwichEnabled, p.AllowHROverride, now, now,
	)
	return err
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const leaveRequestColumns = `id, employee_id, leave_type, from_date, to_date, reason,
	status, computed_days, paid_days, lwp_days, override_policy, override_remark,
	auto_converted_to_lwp, auto_lwp_reason, approver_id, applied_at,
	approved_remark, approved_at, rejected_remark, rejected_at, rejected_by,
	cancelled_remark, cancelled_at, cancelled_by`

func (s *Store) CreateLeaveRequest(ctx context.Context, req *engine.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_requests
		(employee_id, leave_type, from_date, to_date, reason, status,
		 computed_days, paid_days, lwp_days, override_policy, override_remark,
		 auto_converted_to_lwp, auto_lwp_reason, approver_id, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(req.EmployeeID), string(req.LeaveType),
		req.FromDate.String(), req.ToDate.String(), req.Reason, string(req.Status),
		req.ComputedDays.String(), req.PaidDays.String(), req.LwpDays.String(),
		req.OverridePolicy, req.OverrideRemark,
		req.AutoConvertedToLwp, req.AutoLwpReason,
		nullEmployeeID(req.ApproverID),
		req.AppliedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = engine.RequestID(id)
	return nil
}

func (s *Store) GetLeaveRequest(ctx context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLeaveRequestLocked(ctx, id)
}

func (s *Store) getLeaveRequestLocked(ctx context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+leaveRequestColumns+" FROM leave_requests WHERE id = ?", int64(id))
	req, err := scanLeaveRequest(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "leave request", ID: id}
	}
	return req, err
}

func (s *Store) ListLeaveRequests(ctx context.Context, f engine.LeaveRequestFilter) ([]engine.LeaveRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	var args []any
	if f.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, int64(*f.EmployeeID))
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.From != nil {
		where = append(where, "to_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "from_date <= ?")
		args = append(args, f.To.String())
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leave_requests WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + leaveRequestColumns + " FROM leave_requests WHERE " + cond + " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []engine.LeaveRequest
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *req)
	}
	return requests, total, rows.Err()
}

func (s *Store) TransitionLeaveRequest(ctx context.Context, id engine.RequestID, t engine.LeaveTransition) (*engine.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	var res sql.Result
	var err error

	switch t.To {
	case engine.LeaveApproved:
		res, err = s.db.ExecContext(ctx, `
			UPDATE leave_requests
			SET status = ?, approver_id = ?, approved_remark = ?, approved_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), t.Remark, now, int64(id), string(t.From))
	case engine.LeaveRejected:
		res, err = s.db.ExecContext(ctx, `
			UPDATE leave_requests
			SET status = ?, rejected_by = ?, rejected_remark = ?, rejected_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), t.Remark, now, int64(id), string(t.From))
	case engine.LeaveCancelled, engine.LeaveCancelledByCompany:
		res, err = s.db.ExecContext(ctx, `
			UPDATE leave_requests
			SET status = ?, cancelled_by = ?, cancelled_remark = ?, cancelled_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), t.Remark, now, int64(id), string(t.From))
	default:
		return nil, &engine.ValidationError{Field: "status", Message: fmt.Sprintf("unsupported transition target %q", t.To)}
	}
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either the status moved underneath us or the id is unknown.
		current, err := s.getLeaveRequestLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(current.Status), Required: string(t.From)}
	}
	return s.getLeaveRequestLocked(ctx, id)
}

func (s *Store) ListOverlappingLeave(ctx context.Context, emp engine.EmployeeID, from, to engine.Date) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leaveRequestColumns+`
		FROM leave_requests
		WHERE employee_id = ?
		  AND status IN ('PENDING', 'APPROVED')
		  AND to_date >= ? AND from_date <= ?
		ORDER BY id ASC
	`, int64(emp), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []engine.LeaveRequest
	for rows.Next() {
		req, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanLeaveRequest(row rowScanner) (*engine.LeaveRequest, error) {
	var (
		req             engine.LeaveRequest
		id              int64
		empID           int64
		leaveType       string
		fromDate        string
		toDate          string
		reason          sql.NullString
		status          string
		computedDays    string
		paidDays        string
		lwpDays         string
		overrideRemark  sql.NullString
		autoLwpReason   sql.NullString
		approverID      sql.NullInt64
		appliedAt       string
		approvedRemark  sql.NullString
		approvedAt      sql.NullString
		rejectedRemark  sql.NullString
		rejectedAt      sql.NullString
		rejectedBy      sql.NullInt64
		cancelledRemark sql.NullString
		cancelledAt     sql.NullString
		cancelledBy     sql.NullInt64
	)
	err := row.Scan(&id, &empID, &leaveType, &fromDate, &toDate, &reason, &status,
		&computedDays, &paidDays, &lwpDays, &req.OverridePolicy, &overrideRemark,
		&req.AutoConvertedToLwp, &autoLwpReason, &approverID, &appliedAt,
		&approvedRemark, &approvedAt, &rejectedRemark, &rejectedAt, &rejectedBy,
		&cancelledRemark, &cancelledAt, &cancelledBy)
	if err != nil {
		return nil, err
	}

	req.ID = engine.RequestID(id)
	req.EmployeeID = engine.EmployeeID(empID)
	req.LeaveType = engine.LeaveType(leaveType)
	req.FromDate, _ = engine.ParseDate(fromDate)
	req.ToDate, _ = engine.ParseDate(toDate)
	req.Reason = reason.String
	req.Status = engine.LeaveStatus(status)
	req.ComputedDays = mustDecimal(computedDays)
	req.PaidDays = mustDecimal(paidDays)
	req.LwpDays = mustDecimal(lwpDays)
	req.OverrideRemark = overrideRemark.String
	req.AutoLwpReason = autoLwpReason.String
	if approverID.Valid {
		a := engine.EmployeeID(approverID.Int64)
		req.ApproverID = &a
	}
	req.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
	req.ApprovedRemark = approvedRemark.String
	req.ApprovedAt = nullTime(approvedAt)
	req.RejectedRemark = rejectedRemark.String
	req.RejectedAt = nullTime(rejectedAt)
	if rejectedBy.Valid {
		r := engine.EmployeeID(rejectedBy.Int64)
		req.RejectedByID = &r
	}
	req.CancelledRemark = cancelledRemark.String
	req.CancelledAt = nullTime(cancelledAt)
	if cancelledBy.Valid {
		c := engine.EmployeeID(cancelledBy.Int64)
		req.CancelledByID = &c
	}
	return &req, nil
}

// =============================================================================
// COMP-OFF REQUESTS
// =============================================================================

const compoffColumns = `id, employee_id, worked_date, reason, status, applied_at,
	approved_by, approved_at, rejected_remark, rejected_by, rejected_at`

func (s *Store) CreateCompoffRequest(ctx context.Context, req *engine.CompoffRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compoff_requests (employee_id, worked_date, reason, status, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		int64(req.EmployeeID), req.WorkedDate.String(), req.Reason,
		string(req.Status), req.AppliedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = engine.RequestID(id)
	return nil
}

func (s *Store) GetCompoffRequest(ctx context.Context, id engine.RequestID) (*engine.CompoffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getCompoffRequestLocked(ctx, id)
}

func (s *Store) getCompoffRequestLocked(ctx context.Context, id engine.RequestID) (*engine.CompoffRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+compoffColumns+" FROM compoff_requests WHERE id = ?", int64(id))
	req, err := scanCompoffRequest(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "comp-off request", ID: id}
	}
	return req, err
}

func (s *Store) ListCompoffRequests(ctx context.Context, emp *engine.EmployeeID, status *engine.CompoffStatus) ([]engine.CompoffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	var args []any
	if emp != nil {
		where = append(where, "employee_id = ?")
		args = append(args, int64(*emp))
	}
	if status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*status))
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+compoffColumns+" FROM compoff_requests WHERE "+strings.Join(where, " AND ")+" ORDER BY id DESC",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []engine.CompoffRequest
	for rows.Next() {
		req, err := scanCompoffRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (s *Store) TransitionCompoffRequest(ctx context.Context, id engine.RequestID, t engine.CompoffTransition) (*engine.CompoffRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	var res sql.Result
	var err error

	switch t.To {
	case engine.CompoffApproved:
		res, err = s.db.ExecContext(ctx, `
			UPDATE compoff_requests
			SET status = ?, approved_by = ?, approved_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), now, int64(id), string(t.From))
	case engine.CompoffRejected:
		res, err = s.db.ExecContext(ctx, `
			UPDATE compoff_requests
			SET status = ?, rejected_by = ?, rejected_remark = ?, rejected_at = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), t.Remark, now, int64(id), string(t.From))
	default:
		return nil, &engine.ValidationError{Field: "status", Message: fmt.Sprintf("unsupported transition target %q", t.To)}
	}
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, err := s.getCompoffRequestLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(current.Status), Required: string(t.From)}
	}
	return s.getCompoffRequestLocked(ctx, id)
}

func scanCompoffRequest(row rowScanner) (*engine.CompoffRequest, error) {
	var (
		req            engine.CompoffRequest
		id             int64
		empID          int64
		workedDate     string
		reason         sql.NullString
		status         string
		appliedAt      string
		approvedBy     sql.NullInt64
		approvedAt     sql.NullString
		rejectedRemark sql.NullString
		rejectedBy     sql.NullInt64
		rejectedAt     sql.NullString
	)
	err := row.Scan(&id, &empID, &workedDate, &reason, &status, &appliedAt,
		&approvedBy, &approvedAt, &rejectedRemark, &rejectedBy, &rejectedAt)
	if err != nil {
		return nil, err
	}

	req.ID = engine.RequestID(id)
	req.EmployeeID = engine.EmployeeID(empID)
	req.WorkedDate, _ = engine.ParseDate(workedDate)
	req.Reason = reason.String
	req.Status = engine.CompoffStatus(status)
	req.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
	if approvedBy.Valid {
		a := engine.EmployeeID(approvedBy.Int64)
		req.ApprovedByID = &a
	}
	req.ApprovedAt = nullTime(approvedAt)
	req.RejectedRemark = rejectedRemark.String
	if rejectedBy.Valid {
		r := engine.EmployeeID(rejectedBy.Int64)
		req.RejectedByID = &r
	}
	req.RejectedAt = nullTime(rejectedAt)
	return &req, nil
}

// =============================================================================
// WFH REQUESTS
// =============================================================================

const wfhColumns = `id, employee_id, request_date, reason, status, applied_at,
	approved_by, approved_at, action_remark`

func (s *Store) CreateWfhRequest(ctx context.Context, req *engine.WfhRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO wfh_requests (employee_id, request_date, reason, status, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		int64(req.EmployeeID), req.RequestDate.String(), req.Reason,
		string(req.Status), req.AppliedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = engine.RequestID(id)
	return nil
}

func (s *Store) GetWfhRequest(ctx context.Context, id engine.RequestID) (*engine.WfhRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getWfhRequestLocked(ctx, id)
}

func (s *Store) getWfhRequestLocked(ctx context.Context, id engine.RequestID) (*engine.WfhRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+wfhColumns+" FROM wfh_requests WHERE id = ?", int64(id))
	req, err := scanWfhRequest(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "WFH request", ID: id}
	}
	return req, err
}

func (s *Store) ListWfhRequests(ctx context.Context, emp *engine.EmployeeID, status *engine.WfhStatus, month *engine.Month) ([]engine.WfhRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	var args []any
	if emp != nil {
		where = append(where, "employee_id = ?")
		args = append(args, int64(*emp))
	}
	if status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*status))
	}
	if month != nil {
		where = append(where, "strftime('%Y-%m', request_date) = ?")
		args = append(args, month.String())
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+wfhColumns+" FROM wfh_requests WHERE "+strings.Join(where, " AND ")+" ORDER BY id ASC",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []engine.WfhRequest
	for rows.Next() {
		req, err := scanWfhRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (s *Store) TransitionWfhRequest(ctx context.Context, id engine.RequestID, t engine.WfhTransition) (*engine.WfhRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	var res sql.Result
	var err error

	switch t.To {
	case engine.WfhApproved, engine.WfhRejected:
		res, err = s.db.ExecContext(ctx, `
			UPDATE wfh_requests
			SET status = ?, approved_by = ?, approved_at = ?, action_remark = ?
			WHERE id = ? AND status = ?
		`, string(t.To), int64(t.ActorID), now, t.Remark, int64(id), string(t.From))
	case engine.WfhCancelled:
		res, err = s.db.ExecContext(ctx, `
			UPDATE wfh_requests
			SET status = ?, action_remark = ?
			WHERE id = ? AND status = ?
		`, string(t.To), t.Remark, int64(id), string(t.From))
	default:
		return nil, &engine.ValidationError{Field: "status", Message: fmt.Sprintf("unsupported transition target %q", t.To)}
	}
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		current, err := s.getWfhRequestLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(current.Status), Required: string(t.From)}
	}
	return s.getWfhRequestLocked(ctx, id)
}

func scanWfhRequest(row rowScanner) (*engine.WfhRequest, error) {
	var (
		req          engine.WfhRequest
		id           int64
		empID        int64
		requestDate  string
		reason       sql.NullString
		status       string
		appliedAt    string
		approvedBy   sql.NullInt64
		approvedAt   sql.NullString
		actionRemark sql.NullString
	)
	err := row.Scan(&id, &empID, &requestDate, &reason, &status, &appliedAt,
		&approvedBy, &approvedAt, &actionRemark)
	if err != nil {
		return nil, err
	}

	req.ID = engine.RequestID(id)
	req.EmployeeID = engine.EmployeeID(empID)
	req.RequestDate, _ = engine.ParseDate(requestDate)
	req.Reason = reason.String
	req.Status = engine.WfhStatus(status)
	req.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
	if approvedBy.Valid {
		a := engine.EmployeeID(approvedBy.Int64)
		req.ApprovedByID = &a
	}
	req.ApprovedAt = nullTime(approvedAt)
	req.ActionRemark = actionRemark.String
	return &req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullEmployeeID(id *engine.EmployeeID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func nullRequestID(id *engine.RequestID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func nullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeErr surfaces a missing schema (database opened without migrate,
// or a file swapped out underneath the server) as ErrStoreNotReady.
func storeErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", engine.ErrStoreNotReady, err)
	}
	return err
}
