package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	identityKey contextKey = "identity"

	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Identity is the authenticated caller as asserted by the gateway in front
// of this service.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff
}

// Authenticate rejects requests without a caller id and stores the caller
// in the request context.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			http.Error(w, "missing caller identity", http.StatusUnauthorized)
			return
		}

		role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader))))
		if role != RoleStaff {
			role = RoleCustomer
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireStaff lets only staff callers through.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok || !id.IsStaff() {
			http.Error(w, "staff role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
