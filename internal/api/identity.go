package api

import (
	"net/http"
	"strconv"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/permission"
)

// Identity headers are set by the gateway after it authenticates the caller.
const (
	HeaderUserID      = "X-User-Id"
	HeaderUserRole    = "X-User-Role"
	HeaderUserOwner   = "X-User-Owner"
	HeaderSessionCode = "X-Session-Code"
	HeaderUserEmail   = "X-User-Email"
	HeaderUsername    = "X-Username"
)

// identify stores the caller in the request context. Requests without a
// user id stay anonymous.
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderUserID)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		owner, _ := strconv.ParseBool(r.Header.Get(HeaderUserOwner))
		user := &domain.User{
			ID:          id,
			Username:    r.Header.Get(HeaderUsername),
			Email:       r.Header.Get(HeaderUserEmail),
			Role:        r.Header.Get(HeaderUserRole),
			IsOwner:     owner,
			SessionCode: r.Header.Get(HeaderSessionCode),
		}
		next.ServeHTTP(w, r.WithContext(permission.WithUser(r.Context(), user)))
	})
}
