/*
Package memory is the in-memory engine.Store, used by tests and demos.

PURPOSE:
  A mutex-protected map-backed implementation of every store interface.
  It honors the same contracts as the SQLite store: idempotency-key
  uniqueness on transaction append and compare-and-swap semantics on
  request status transitions.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/engine"
)

type txKey struct {
	EmployeeID engine.EmployeeID
	Year       int
	LeaveType  engine.LeaveType
}

// Store implements engine.Store.
type Store struct {
	mu sync.RWMutex

	transactions map[txKey][]engine.Transaction
	idempotency  map[string]bool
	txYears      map[int]int // posted transaction count per year

	employees map[engine.EmployeeID]engine.Employee
	roles     map[engine.Role]engine.RoleDefinition
	depts     map[engine.DepartmentID]engine.Department
	holidays  []engine.Holiday
	policies  map[int]engine.Policy

	leaveRequests   map[engine.RequestID]engine.LeaveRequest
	compoffRequests map[engine.RequestID]engine.CompoffRequest
	wfhRequests     map[engine.RequestID]engine.WfhRequest

	nextEmployeeID engine.EmployeeID
	nextRequestID  engine.RequestID
	nextRowID      int64
}

var _ engine.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		transactions:    make(map[txKey][]engine.Transaction),
		idempotency:     make(map[string]bool),
		txYears:         make(map[int]int),
		employees:       make(map[engine.EmployeeID]engine.Employee),
		roles:           make(map[engine.Role]engine.RoleDefinition),
		depts:           make(map[engine.DepartmentID]engine.Department),
		policies:        make(map[int]engine.Policy),
		leaveRequests:   make(map[engine.RequestID]engine.LeaveRequest),
		compoffRequests: make(map[engine.RequestID]engine.CompoffRequest),
		wfhRequests:     make(map[engine.RequestID]engine.WfhRequest),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) AppendTransaction(_ context.Context, tx engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(tx)
}

func (s *Store) AppendTransactions(_ context.Context, txs []engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every key before writing anything, so the batch is atomic.
	for _, tx := range txs {
		if tx.IdempotencyKey != "" && s.idempotency[tx.IdempotencyKey] {
			return engine.ErrDuplicateIdempotencyKey
		}
	}
	for _, tx := range txs {
		if err := s.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendLocked(tx engine.Transaction) error {
	if tx.IdempotencyKey != "" && s.idempotency[tx.IdempotencyKey] {
		return engine.ErrDuplicateIdempotencyKey
	}

	k := txKey{EmployeeID: tx.EmployeeID, Year: tx.Year, LeaveType: tx.LeaveType}
	txs := s.transactions[k]

	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].ActionAt.After(tx.ActionAt)
	})
	txs = append(txs, engine.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	s.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		s.idempotency[tx.IdempotencyKey] = true
	}
	s.txYears[tx.Year]++
	return nil
}

func (s *Store) LoadTransactions(_ context.Context, emp engine.EmployeeID, year int, lt engine.LeaveType) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions[txKey{EmployeeID: emp, Year: year, LeaveType: lt}]
	out := make([]engine.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, emp engine.EmployeeID, year int, limit int) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.Transaction
	for k, txs := range s.transactions {
		if k.EmployeeID != emp || k.Year != year {
			continue
		}
		out = append(out, txs...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActionAt.After(out[j].ActionAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransactionExists(_ context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idempotency[idempotencyKey], nil
}

// =============================================================================
// ORGANIZATION
// =============================================================================

func (s *Store) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "employee", ID: id}
	}
	return &e, nil
}

func (s *Store) GetEmployeeByCode(_ context.Context, empCode string) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employees {
		if e.EmpCode == empCode {
			e := e
			return &e, nil
		}
	}
	return nil, &engine.NotFoundError{Kind: "employee", ID: empCode}
}

func (s *Store) ListEmployees(_ context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveEmployee(_ context.Context, e *engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e.ID == 0 {
		s.nextEmployeeID++
		e.ID = s.nextEmployeeID
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.employees[e.ID] = *e
	return nil
}

func (s *Store) ListRoles(_ context.Context) ([]engine.RoleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.RoleDefinition, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleRank < out[j].RoleRank })
	return out, nil
}

func (s *Store) GetRole(_ context.Context, name engine.Role) (*engine.RoleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[name]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "role", ID: string(name)}
	}
	return &r, nil
}

func (s *Store) SaveRole(_ context.Context, r *engine.RoleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		s.nextRowID++
		r.ID = s.nextRowID
	}
	s.roles[r.Name] = *r
	return nil
}

func (s *Store) ListDepartments(_ context.Context) ([]engine.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.Department, 0, len(s.depts))
	for _, d := range s.depts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveDepartment(_ context.Context, d *engine.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == 0 {
		s.nextRowID++
		d.ID = engine.DepartmentID(s.nextRowID)
	}
	s.depts[d.ID] = *d
	return nil
}

func (s *Store) ListHolidays(_ context.Context, year int) ([]engine.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.Holiday
	for _, h := range s.holidays {
		if h.Date.Year() == year {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) SaveHoliday(_ context.Context, h *engine.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == 0 {
		s.nextRowID++
		h.ID = s.nextRowID
		s.holidays = append(s.holidays, *h)
		return nil
	}
	for i := range s.holidays {
		if s.holidays[i].ID == h.ID {
			s.holidays[i] = *h
			return nil
		}
	}
	s.holidays = append(s.holidays, *h)
	return nil
}

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) GetPolicy(_ context.Context, year int) (*engine.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[year]
	if !ok {
		return nil, engine.ErrPolicyNotFound
	}
	return &p, nil
}

func (s *Store) PutPolicy(_ context.Context, p engine.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txYears[p.Year] > 0 {
		return &engine.PolicyViolationError{
			Rule:    "policy_prospective_only",
			Message: "ledger transactions already posted for this year",
		}
	}
	s.policies[p.Year] = p
	return nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) CreateLeaveRequest(_ context.Context, req *engine.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRequestID++
	req.ID = s.nextRequestID
	s.leaveRequests[req.ID] = *req
	return nil
}

func (s *Store) GetLeaveRequest(_ context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.leaveRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "leave request", ID: id}
	}
	return &r, nil
}

func (s *Store) ListLeaveRequests(_ context.Context, f engine.LeaveRequestFilter) ([]engine.LeaveRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []engine.LeaveRequest
	for _, r := range s.leaveRequests {
		if f.EmployeeID != nil && r.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.From != nil && r.ToDate.Before(*f.From) {
			continue
		}
		if f.To != nil && r.FromDate.After(*f.To) {
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (s *Store) TransitionLeaveRequest(_ context.Context, id engine.RequestID, t engine.LeaveTransition) (*engine.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.leaveRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "leave request", ID: id}
	}
	if r.Status != t.From {
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(r.Status), Required: string(t.From)}
	}

	now := time.Now()
	actor := t.ActorID
	r.Status = t.To
	switch t.To {
	case engine.LeaveApproved:
		r.ApproverID = &actor
		r.ApprovedRemark = t.Remark
		r.ApprovedAt = &now
	case engine.LeaveRejected:
		r.RejectedByID = &actor
		r.RejectedRemark = t.Remark
		r.RejectedAt = &now
	case engine.LeaveCancelled, engine.LeaveCancelledByCompany:
		r.CancelledByID = &actor
		r.CancelledRemark = t.Remark
		r.CancelledAt = &now
	}
	s.leaveRequests[id] = r
	return &r, nil
}

func (s *Store) ListOverlappingLeave(_ context.Context, emp engine.EmployeeID, from, to engine.Date) ([]engine.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.LeaveRequest
	for _, r := range s.leaveRequests {
		if r.EmployeeID != emp {
			continue
		}
		if r.Status != engine.LeavePending && r.Status != engine.LeaveApproved {
			continue
		}
		if r.ToDate.Before(from) || r.FromDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// COMP-OFF REQUESTS
// =============================================================================

func (s *Store) CreateCompoffRequest(_ context.Context, req *engine.CompoffRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRequestID++
	req.ID = s.nextRequestID
	s.compoffRequests[req.ID] = *req
	return nil
}

func (s *Store) GetCompoffRequest(_ context.Context, id engine.RequestID) (*engine.CompoffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.compoffRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "comp-off request", ID: id}
	}
	return &r, nil
}

func (s *Store) ListCompoffRequests(_ context.Context, emp *engine.EmployeeID, status *engine.CompoffStatus) ([]engine.CompoffRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.CompoffRequest
	for _, r := range s.compoffRequests {
		if emp != nil && r.EmployeeID != *emp {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) TransitionCompoffRequest(_ context.Context, id engine.RequestID, t engine.CompoffTransition) (*engine.CompoffRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.compoffRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "comp-off request", ID: id}
	}
	if r.Status != t.From {
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(r.Status), Required: string(t.From)}
	}

	now := time.Now()
	actor := t.ActorID
	r.Status = t.To
	switch t.To {
	case engine.CompoffApproved:
		r.ApprovedByID = &actor
		r.ApprovedAt = &now
	case engine.CompoffRejected:
		r.RejectedByID = &actor
		r.RejectedRemark = t.Remark
		r.RejectedAt = &now
	}
	s.compoffRequests[id] = r
	return &r, nil
}

// =============================================================================
// WFH REQUESTS
// =============================================================================

func (s *Store) CreateWfhRequest(_ context.Context, req *engine.WfhRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRequestID++
	req.ID = s.nextRequestID
	s.wfhRequests[req.ID] = *req
	return nil
}

func (s *Store) GetWfhRequest(_ context.Context, id engine.RequestID) (*engine.WfhRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.wfhRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "WFH request", ID: id}
	}
	return &r, nil
}

func (s *Store) ListWfhRequests(_ context.Context, emp *engine.EmployeeID, status *engine.WfhStatus, month *engine.Month) ([]engine.WfhRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.WfhRequest
	for _, r := range s.wfhRequests {
		if emp != nil && r.EmployeeID != *emp {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		if month != nil {
			if r.RequestDate.Year() != month.Year || r.RequestDate.Month() != month.Month {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TransitionWfhRequest(_ context.Context, id engine.RequestID, t engine.WfhTransition) (*engine.WfhRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.wfhRequests[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "WFH request", ID: id}
	}
	if r.Status != t.From {
		return nil, &engine.InvalidStateError{RequestID: id, Current: string(r.Status), Required: string(t.From)}
	}

	now := time.Now()
	actor := t.ActorID
	r.Status = t.To
	if t.To == engine.WfhApproved || t.To == engine.WfhRejected {
		r.ApprovedByID = &actor
		r.ApprovedAt = &now
	}
	r.ActionRemark = t.Remark
	s.wfhRequests[id] = r
	return &r, nil
}
