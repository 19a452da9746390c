package apiv1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coop-voucher/internal/infra/logging"
)

// ===== Staff JWT primitives =====

const (
	RoleAdmin   = "admin"   // templates, batches, manual transitions
	RoleCashier = "cashier" // verify and redeem only
)

var ErrMissingToken = errors.New("missing token")

type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type StaffClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint signs a token for the staff member; voucherctl uses it to hand out credentials.
func (a *AuthManager) Mint(staffID, role string) (string, error) {
	if staffID == "" || (role != RoleAdmin && role != RoleCashier) {
		return "", errors.New("staff id and a known role are required")
	}
	now := a.now()
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   staffID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*StaffClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return a.parse(strings.TrimSpace(hdr[7:]))
	}
	return nil, ErrMissingToken
}

func (a *AuthManager) parse(tok string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Require admits requests carrying a valid token with one of roles and records
// the subject as the request actor.
func (a *AuthManager) Require(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized", Message: err.Error()})
				return
			}
			if !hasRole(roles, claims.Role) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "Forbidden", Message: "role " + claims.Role + " may not call this endpoint"})
				return
			}
			ctx := logging.WithActor(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasRole(allowed []string, role string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
