package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/rental-engine/rental"
)

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// AuthConfig holds the token verification parameters. Tokens are issued
// elsewhere; this service only verifies them.
type AuthConfig struct {
	Secret string
	Issuer string
}

type actorKey struct{}

// Authenticator resolves the bearer token's subject to an active employee.
type Authenticator struct {
	cfg       AuthConfig
	employees rental.EmployeeStore
}

// NewAuthenticator creates an authenticator backed by the employee store.
func NewAuthenticator(cfg AuthConfig, employees rental.EmployeeStore) *Authenticator {
	return &Authenticator{cfg: cfg, employees: employees}
}

// ParseToken validates an HS256 token and returns its subject.
func (a *Authenticator) ParseToken(token string) (rental.EmployeeID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	}, jwt.WithIssuer(a.cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return rental.EmployeeID(subject), nil
}

// Middleware rejects requests without a valid token for an active employee
// and stores that employee in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", ErrMissingToken)
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeError(w, http.StatusUnauthorized, "Authentication required", ErrInvalidToken)
			return
		}

		id, err := a.ParseToken(header[len("Bearer "):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		emp, err := a.employees.GetEmployee(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load employee", err)
			return
		}
		if emp == nil || !emp.IsActive {
			writeError(w, http.StatusUnauthorized, "Unknown or inactive employee", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), *emp)))
	})
}

// WithActor stores the authenticated employee on ctx.
func WithActor(ctx context.Context, emp rental.Employee) context.Context {
	return context.WithValue(ctx, actorKey{}, emp)
}

// ActorFrom returns the authenticated employee, if any.
func ActorFrom(ctx context.Context) (rental.Employee, bool) {
	emp, ok := ctx.Value(actorKey{}).(rental.Employee)
	return emp, ok
}
