/*
auth.go - Console authentication

PURPOSE:
  Login exchanges emp_code + password for a signed JWT carrying the
  employee id. Middleware verifies the token, loads the employee, and
  puts it in the request context so handlers run authority checks
  against fresh organizational data (role changes take effect on the
  next request, not at next login).

  Nothing is stored server-side: no session table, no refresh tokens.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/engine"
)

type contextKey string

const actorKey contextKey = "actor"

// Auth issues and verifies console tokens.
type Auth struct {
	Secret    []byte
	TokenTTL  time.Duration
	Employees engine.EmployeeStore
}

func NewAuth(secret string, ttl time.Duration, employees engine.EmployeeStore) *Auth {
	return &Auth{Secret: []byte(secret), TokenTTL: ttl, Employees: employees}
}

type claims struct {
	EmployeeID int64  `json:"emp_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the employee.
func (a *Auth) IssueToken(emp *engine.Employee) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		EmployeeID: int64(emp.ID),
		Role:       string(emp.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   emp.EmpCode,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TokenTTL)),
		},
	})
	return token.SignedString(a.Secret)
}

// Authenticate verifies credentials and returns the employee.
func (a *Auth) Authenticate(ctx context.Context, empCode, password string) (*engine.Employee, error) {
	emp, err := a.Employees.GetEmployeeByCode(ctx, empCode)
	if err != nil {
		return nil, err
	}
	if !emp.Active {
		return nil, &engine.ForbiddenError{ActorID: emp.ID, Action: "login"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(password)); err != nil {
		return nil, &engine.ForbiddenError{ActorID: emp.ID, Action: "login"}
	}
	return emp, nil
}

// Middleware requires a valid Bearer token and resolves the actor.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		var c claims
		token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.Secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		emp, err := a.Employees.GetEmployee(r.Context(), engine.EmployeeID(c.EmployeeID))
		if err != nil || !emp.Active {
			writeError(w, http.StatusUnauthorized, "unknown or inactive employee")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, emp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles gates a subtree to the listed roles.
func RequireRoles(roles ...engine.Role) func(http.Handler) http.Handler {
	allowed := make(map[engine.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFrom(r.Context())
			if actor == nil || !allowed[actor.Role] {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorFrom(ctx context.Context) *engine.Employee {
	emp, _ := ctx.Value(actorKey).(*engine.Employee)
	return emp
}

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
