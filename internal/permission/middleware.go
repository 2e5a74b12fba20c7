package permission

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware applies checkers to every request. Login failures answer 401,
// any other check failure 403.
func Middleware(checkers ...Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			for _, check := range checkers {
				if err := check(user); err != nil {
					deny(w, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Status maps a checker error to its HTTP status. Errors that did not come
// from a checker yield 0.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrLoginRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionRequired):
		return http.StatusForbidden
	default:
		return 0
	}
}

func deny(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == 0 {
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
