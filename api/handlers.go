/*
handlers.go - HTTP API handlers for the leave management engine

PURPOSE:
  Exposes the leave engine via REST API under /api/v1. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/v1/auth/login                      Exchange credentials for a JWT

  Leaves:
    POST   /api/v1/leaves                          Submit a leave request
    GET    /api/v1/leaves/my                       Actor's own requests
    GET    /api/v1/leaves/pending                  Pending requests (approver view)
    GET    /api/v1/leaves/list                     Filtered listing (from/to/employee_id)
    GET    /api/v1/leaves/balance                  Actor's balances for a year
    POST   /api/v1/leaves/{id}/approve             Approve (authority checked)
    POST   /api/v1/leaves/{id}/reject              Reject (remarks required)
    POST   /api/v1/leaves/{id}/cancel              Self-cancel a pending request

  HR actions:
    POST   /api/v1/hr/actions/cancel-leave/{id}    Company-cancel approved leave

  Admin:
    GET    /api/v1/admin/leaves/balances           Balances across employees
    GET    /api/v1/admin/leaves/balances/transactions  Ledger history
    GET    /api/v1/admin/wfh/usage                 Monthly WFH usage

  Accrual & policy:
    POST   /api/v1/accrual/run                     ?month=YYYY-MM or ?year=YYYY
    GET    /api/v1/accrual/status                  Per-month run status
    GET    /api/v1/policy/{year}                   Policy for a year (404 if unset)
    PUT    /api/v1/policy/{year}                   Upsert (prospective-only)
    POST   /api/v1/policy/year-close               Run year-close for ?year

  Comp-off:
    POST   /api/v1/compoff/request                 Claim for a worked Sunday/holiday
    GET    /api/v1/compoff/pending                 Pending claims (approver view)
    GET    /api/v1/compoff/balance                 Actor's wallet
    POST   /api/v1/compoff/{id}/approve
    POST   /api/v1/compoff/{id}/reject

  WFH:
    POST   /api/v1/wfh/request
    GET    /api/v1/wfh/pending
    POST   /api/v1/wfh/{id}/approve
    POST   /api/v1/wfh/{id}/reject
    POST   /api/v1/wfh/{id}/cancel

  Organization (HR/ADMIN):
    GET/POST /api/v1/employees, GET /api/v1/employees/{id}
    GET      /api/v1/roles
    GET/POST /api/v1/departments
    GET/POST /api/v1/holidays

ERROR HANDLING:
  Every non-2xx response is {"detail": "..."}:
  - 400: validation errors, malformed input
  - 401: missing/invalid token
  - 403: authority violations
  - 404: unknown entity, unconfigured policy year
  - 409: invalid state transition, duplicate idempotency key
  - 422: policy violations (quota, eligibility, prospective-only)
  - 503: storage schema not ready

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Token issuing and the actor middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/engine"
	"github.com/warp/leave-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     engine.Store
	Auth      *Auth
	Ledger    *engine.Ledger
	Projector *engine.Projector
	Accrual   *engine.AccrualEngine
	Leaves    *engine.LeaveService
	Compoff   *engine.CompoffService
	Wfh       *engine.WfhService
	YearClose *engine.YearCloseProcessor
}

// NewHandler wires the full service graph over one store.
func NewHandler(store engine.Store, auth *Auth) *Handler {
	ledger := engine.NewLedger(store, store)
	projector := engine.NewProjector(store, store, store)
	compoff := engine.NewCompoffService(store, ledger, projector)
	return &Handler{
		Store:     store,
		Auth:      auth,
		Ledger:    ledger,
		Projector: projector,
		Accrual:   engine.NewAccrualEngine(ledger, store, store),
		Leaves:    engine.NewLeaveService(store, ledger, projector),
		Compoff:   compoff,
		Wfh:       engine.NewWfhService(store),
		YearClose: engine.NewYearCloseProcessor(store, ledger, projector, compoff),
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// respondErr maps a domain error onto the HTTP status contract.
func respondErr(w http.ResponseWriter, err error) {
	writeError(w, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, engine.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrDuplicateIdempotencyKey),
		errors.Is(err, engine.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrStoreNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// PARSE HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathRequestID(w http.ResponseWriter, r *http.Request) (engine.RequestID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id "+strconv.Quote(raw))
		return 0, false
	}
	return engine.RequestID(id), true
}

func queryYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		return 0, &engine.ValidationError{Field: "year", Message: "invalid year " + strconv.Quote(raw)}
	}
	return year, nil
}

func parseDateField(field, raw string) (engine.Date, error) {
	d, err := engine.ParseDate(raw)
	if err != nil {
		return engine.Date{}, &engine.ValidationError{Field: field, Message: "expected YYYY-MM-DD, got " + strconv.Quote(raw)}
	}
	return d, nil
}

func parseRate(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &engine.ValidationError{Field: field, Message: "invalid decimal " + strconv.Quote(raw)}
	}
	return d, nil
}

// =============================================================================
// AUTH
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EmpCode == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "emp_code and password are required")
		return
	}

	emp, err := h.Auth.Authenticate(r.Context(), req.EmpCode, req.Password)
	if err != nil {
		// Uniform 401 regardless of which check failed.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Auth.IssueToken(emp)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Employee: toEmployeeDTO(emp)})
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var req SubmitLeaveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	from, err := parseDateField("from_date", req.FromDate)
	if err != nil {
		respondErr(w, err)
		return
	}
	to, err := parseDateField("to_date", req.ToDate)
	if err != nil {
		respondErr(w, err)
		return
	}

	target := actor.ID
	if req.EmployeeID != nil {
		target = engine.EmployeeID(*req.EmployeeID)
		if target != actor.ID && actor.Role != engine.RoleHR && actor.Role != engine.RoleAdmin {
			writeError(w, http.StatusForbidden, "only HR may submit leave on behalf of another employee")
			return
		}
	}

	created, err := h.Leaves.Submit(r.Context(), engine.SubmitLeaveInput{
		EmployeeID:     target,
		LeaveType:      engine.LeaveType(req.LeaveType),
		FromDate:       from,
		ToDate:         to,
		Reason:         req.Reason,
		OverridePolicy: req.OverridePolicy,
		OverrideRemark: req.OverrideRemark,
		ActorID:        actor.ID,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(created.Status)).Inc()
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(created))
}

func (h *Handler) MyLeaves(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	items, total, err := h.Store.ListLeaveRequests(r.Context(), engine.LeaveRequestFilter{
		EmployeeID: &actor.ID,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[LeaveRequestDTO]{Items: toLeaveRequestDTOs(items), Total: total})
}

// PendingLeaves lists PENDING requests the actor may act on. HR and
// above see everything pending; managers see their designated queue.
func (h *Handler) PendingLeaves(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	status := engine.LeavePending
	items, total, err := h.Store.ListLeaveRequests(r.Context(), engine.LeaveRequestFilter{Status: &status})
	if err != nil {
		respondErr(w, err)
		return
	}

	visible := make([]engine.LeaveRequest, 0, len(items))
	for i := range items {
		if engine.CanApproveLeave(actor, &items[i]) {
			visible = append(visible, items[i])
		}
	}
	if len(visible) != len(items) {
		total = len(visible)
	}
	writeJSON(w, http.StatusOK, ListResponse[LeaveRequestDTO]{Items: toLeaveRequestDTOs(visible), Total: total})
}

func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := engine.LeaveRequestFilter{}

	if raw := q.Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid employee_id")
			return
		}
		empID := engine.EmployeeID(id)
		filter.EmployeeID = &empID
	}
	if raw := q.Get("status"); raw != "" {
		status := engine.LeaveStatus(raw)
		filter.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		from, err := parseDateField("from", raw)
		if err != nil {
			respondErr(w, err)
			return
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := parseDateField("to", raw)
		if err != nil {
			respondErr(w, err)
			return
		}
		filter.To = &to
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	items, total, err := h.Store.ListLeaveRequests(r.Context(), filter)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[LeaveRequestDTO]{Items: toLeaveRequestDTOs(items), Total: total})
}

func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r.Context())
	updated, err := h.Leaves.Approve(r.Context(), id, actor.ID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(updated.Status)).Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r.Context())
	updated, err := h.Leaves.Reject(r.Context(), id, actor.ID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(updated.Status)).Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r.Context())
	updated, err := h.Leaves.Cancel(r.Context(), id, actor.ID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(updated.Status)).Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

// CompanyCancelLeave is HR's revocation of an already-approved leave,
// optionally re-crediting the debited days.
func (h *Handler) CompanyCancelLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req CompanyCancelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	actor := actorFrom(r.Context())
	updated, err := h.Leaves.CompanyCancel(r.Context(), id, actor.ID, req.Recredit, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	metrics.RequestTransitions.WithLabelValues(string(updated.Status)).Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(updated))
}

// =============================================================================
// BALANCES & LEDGER
// =============================================================================

func (h *Handler) MyBalances(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	dto, err := h.employeeBalances(r, actor, year)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) AdminBalances(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	q := r.URL.Query()

	if raw := q.Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid employee_id")
			return
		}
		emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(id))
		if err != nil {
			respondErr(w, err)
			return
		}
		dto, err := h.employeeBalances(r, emp, year)
		if err != nil {
			respondErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse[EmployeeBalancesDTO]{Items: []EmployeeBalancesDTO{dto}, Total: 1})
		return
	}

	var deptFilter *engine.DepartmentID
	if raw := q.Get("department_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid department_id")
			return
		}
		dept := engine.DepartmentID(id)
		deptFilter = &dept
	}

	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}

	items := make([]EmployeeBalancesDTO, 0, len(employees))
	for i := range employees {
		emp := &employees[i]
		if deptFilter != nil && emp.DepartmentID != *deptFilter {
			continue
		}
		dto, err := h.employeeBalances(r, emp, year)
		if err != nil {
			respondErr(w, err)
			return
		}
		items = append(items, dto)
	}
	writeJSON(w, http.StatusOK, ListResponse[EmployeeBalancesDTO]{Items: items, Total: len(items)})
}

func (h *Handler) employeeBalances(r *http.Request, emp *engine.Employee, year int) (EmployeeBalancesDTO, error) {
	balances, err := h.Projector.Balances(r.Context(), emp.ID, year)
	if err != nil {
		return EmployeeBalancesDTO{}, err
	}
	compoff, err := h.Projector.CompoffBalance(r.Context(), emp.ID, year)
	if err != nil {
		return EmployeeBalancesDTO{}, err
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	return EmployeeBalancesDTO{
		Employee: toEmployeeDTO(emp),
		Balances: dtos,
		Compoff:  compoff.Available.String(),
	}, nil
}

func (h *Handler) AdminTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("employee_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	limit := 100
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	txs, err := h.Ledger.History(r.Context(), engine.EmployeeID(id), year, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[TransactionDTO]{Items: toTransactionDTOs(txs), Total: len(txs)})
}

// =============================================================================
// ACCRUAL & YEAR-CLOSE
// =============================================================================

// RunAccrual triggers either a single monthly run (?month=YYYY-MM) or a
// yearly catch-up (?year=YYYY). Both are idempotent.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var result *engine.AccrualRunResult
	var err error
	switch {
	case q.Get("month") != "":
		var month engine.Month
		month, err = engine.ParseMonth(q.Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "expected month=YYYY-MM")
			return
		}
		result, err = h.Accrual.RunMonthly(r.Context(), month)
	case q.Get("year") != "":
		var year int
		year, err = queryYear(r)
		if err != nil {
			respondErr(w, err)
			return
		}
		result, err = h.Accrual.RunYearly(r.Context(), year)
	default:
		writeError(w, http.StatusBadRequest, "month or year query parameter is required")
		return
	}

	if err != nil {
		metrics.AccrualRuns.WithLabelValues("error").Inc()
		respondErr(w, err)
		return
	}
	metrics.AccrualRuns.WithLabelValues("ok").Inc()
	for _, d := range result.Details {
		if d.Outcome == "credited" {
			metrics.AccrualCredits.WithLabelValues(string(d.LeaveType)).Inc()
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) AccrualStatus(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	status, err := h.Accrual.Status(r.Context(), year)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) RunYearClose(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "year query parameter is required")
		return
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}

	result, err := h.YearClose.Run(r.Context(), year)
	if err != nil {
		metrics.YearCloseRuns.WithLabelValues("error").Inc()
		respondErr(w, err)
		return
	}
	metrics.YearCloseRuns.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// POLICY
// =============================================================================

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	policy, err := h.Store.GetPolicy(r.Context(), year)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	var dto PolicyDTO
	if !decodeBody(w, r, &dto) {
		return
	}
	dto.Year = year // path wins over body

	policy, err := toPolicy(dto)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := h.Store.PutPolicy(r.Context(), policy); err != nil {
		respondErr(w, err)
		return
	}

	saved, err := h.Store.GetPolicy(r.Context(), year)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(saved))
}

// =============================================================================
// COMP-OFF
// =============================================================================

func (h *Handler) SubmitCompoff(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var req SubmitCompoffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	worked, err := parseDateField("worked_date", req.WorkedDate)
	if err != nil {
		respondErr(w, err)
		return
	}

	created, err := h.Compoff.Submit(r.Context(), engine.SubmitCompoffInput{
		EmployeeID:    actor.ID,
		WorkedDate:    worked,
		Reason:        req.Reason,
		HasAttendance: req.HasAttendance,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompoffRequestDTO(created))
}

func (h *Handler) PendingCompoff(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	status := engine.CompoffPending
	items, err := h.Store.ListCompoffRequests(r.Context(), nil, &status)
	if err != nil {
		respondErr(w, err)
		return
	}

	visible := make([]CompoffRequestDTO, 0, len(items))
	for i := range items {
		owner, err := h.Store.GetEmployee(r.Context(), items[i].EmployeeID)
		if err != nil {
			continue
		}
		if engine.CanApproveCompoff(actor, owner) {
			visible = append(visible, toCompoffRequestDTO(&items[i]))
		}
	}
	writeJSON(w, http.StatusOK, ListResponse[CompoffRequestDTO]{Items: visible, Total: len(visible)})
}

func (h *Handler) ApproveCompoff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r.Context())
	updated, err := h.Compoff.Approve(r.Context(), id, actor.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompoffRequestDTO(updated))
}

func (h *Handler) RejectCompoff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	updated, err := h.Compoff.Reject(r.Context(), id, actor.ID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompoffRequestDTO(updated))
}

func (h *Handler) CompoffBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	balance, err := h.Compoff.Balance(r.Context(), actor.ID, year)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompoffBalanceDTO(balance))
}

// =============================================================================
// WFH
// =============================================================================

func (h *Handler) SubmitWfh(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	var req SubmitWfhRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDateField("request_date", req.RequestDate)
	if err != nil {
		respondErr(w, err)
		return
	}

	created, err := h.Wfh.Submit(r.Context(), actor.ID, date, req.Reason)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWfhRequestDTO(created))
}

func (h *Handler) PendingWfh(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	status := engine.WfhPending
	items, err := h.Store.ListWfhRequests(r.Context(), nil, &status, nil)
	if err != nil {
		respondErr(w, err)
		return
	}

	visible := make([]WfhRequestDTO, 0, len(items))
	for i := range items {
		owner, err := h.Store.GetEmployee(r.Context(), items[i].EmployeeID)
		if err != nil {
			continue
		}
		if engine.CanApproveWfh(actor, owner) {
			visible = append(visible, toWfhRequestDTO(&items[i]))
		}
	}
	writeJSON(w, http.StatusOK, ListResponse[WfhRequestDTO]{Items: visible, Total: len(visible)})
}

func (h *Handler) ApproveWfh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r.Context())
	updated, err := h.Wfh.Approve(r.Context(), id, actor.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWfhRequestDTO(updated))
}

func (h *Handler) RejectWfh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())
	updated, err := h.Wfh.Reject(r.Context(), id, actor.ID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWfhRequestDTO(updated))
}

func (h *Handler) CancelWfh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathRequestID(w, r)
	if !ok {
		return
	}
	actor := actorFrom(r.Context())
	updated, err := h.Wfh.Cancel(r.Context(), id, actor.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWfhRequestDTO(updated))
}

func (h *Handler) WfhUsage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "month query parameter is required")
		return
	}
	month, err := engine.ParseMonth(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected month=YYYY-MM")
		return
	}

	usage, err := h.Wfh.MonthlyUsage(r.Context(), month)
	if err != nil {
		respondErr(w, err)
		return
	}
	items := make([]WfhUsageDTO, len(usage))
	for i, u := range usage {
		items[i] = toWfhUsageDTO(u)
	}
	writeJSON(w, http.StatusOK, ListResponse[WfhUsageDTO]{Items: items, Total: len(items)})
}

// =============================================================================
// ORGANIZATION
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	items := make([]EmployeeDTO, len(employees))
	for i := range employees {
		items[i] = toEmployeeDTO(&employees[i])
	}
	writeJSON(w, http.StatusOK, ListResponse[EmployeeDTO]{Items: items, Total: len(items)})
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(id))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// SaveEmployee creates or updates an employee. Reporting manager
// assignments are validated against role ranks.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EmpCode == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "emp_code and name are required")
		return
	}
	join, err := parseDateField("join_date", req.JoinDate)
	if err != nil {
		respondErr(w, err)
		return
	}
	roleDef, err := h.Store.GetRole(r.Context(), engine.Role(req.Role))
	if err != nil {
		respondErr(w, err)
		return
	}

	var existing *engine.Employee
	if emp, err := h.Store.GetEmployeeByCode(r.Context(), req.EmpCode); err == nil {
		existing = emp
	} else if !engine.IsNotFound(err) {
		respondErr(w, err)
		return
	}

	emp := &engine.Employee{
		EmpCode:      req.EmpCode,
		Name:         req.Name,
		Role:         roleDef.Name,
		RoleRank:     roleDef.RoleRank,
		DepartmentID: engine.DepartmentID(req.DepartmentID),
		JoinDate:     join,
		Active:       true,
	}
	if existing != nil {
		emp.ID = existing.ID
		emp.PasswordHash = existing.PasswordHash
		emp.CreatedAt = existing.CreatedAt
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			respondErr(w, err)
			return
		}
		emp.PasswordHash = hash
	}

	if req.ReportingManagerID != nil {
		mgrID := engine.EmployeeID(*req.ReportingManagerID)
		manager, err := h.Store.GetEmployee(r.Context(), mgrID)
		if err != nil {
			respondErr(w, err)
			return
		}
		emp.ReportingManagerID = &mgrID
		if err := engine.ValidateReportingAssignment(emp, manager); err != nil {
			respondErr(w, err)
			return
		}
	} else if emp.RoleRank != 1 {
		writeError(w, http.StatusBadRequest, "reporting_manager_id is required below the top rank")
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		respondErr(w, err)
		return
	}
	status := http.StatusCreated
	if existing != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, toEmployeeDTO(emp))
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Store.ListRoles(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	items := make([]RoleDTO, len(roles))
	for i, role := range roles {
		items[i] = toRoleDTO(role)
	}
	writeJSON(w, http.StatusOK, ListResponse[RoleDTO]{Items: items, Total: len(items)})
}

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Store.ListDepartments(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	items := make([]DepartmentDTO, len(depts))
	for i, d := range depts {
		items[i] = DepartmentDTO{ID: int64(d.ID), Name: d.Name}
	}
	writeJSON(w, http.StatusOK, ListResponse[DepartmentDTO]{Items: items, Total: len(items)})
}

func (h *Handler) SaveDepartment(w http.ResponseWriter, r *http.Request) {
	var req SaveDepartmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	dept := &engine.Department{Name: req.Name}
	if err := h.Store.SaveDepartment(r.Context(), dept); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DepartmentDTO{ID: int64(dept.ID), Name: dept.Name})
}

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	holidays, err := h.Store.ListHolidays(r.Context(), year)
	if err != nil {
		respondErr(w, err)
		return
	}
	items := make([]HolidayDTO, len(holidays))
	for i, hd := range holidays {
		items[i] = toHolidayDTO(hd)
	}
	writeJSON(w, http.StatusOK, ListResponse[HolidayDTO]{Items: items, Total: len(items)})
}

func (h *Handler) SaveHoliday(w http.ResponseWriter, r *http.Request) {
	var req SaveHolidayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		respondErr(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	holiday := &engine.Holiday{Date: date, Name: req.Name, Active: true}
	if req.Active != nil {
		holiday.Active = *req.Active
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(*holiday))
}
