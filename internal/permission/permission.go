// Package permission guards resolvers and HTTP handlers with user checks.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

var (
	ErrLoginRequired      = errors.New("Login required")
	ErrPermissionRequired = errors.New("Permission required")
)

type ctxKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom returns the user stored by WithUser, or nil.
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(ctxKey{}).(*domain.User)
	return user
}

// Checker rejects a user by returning an error.
type Checker func(user *domain.User) error

func CheckLogin(user *domain.User) error {
	if user == nil {
		return ErrLoginRequired
	}
	return nil
}

// CheckAdmin lets owners and admins through. A nil user fails the login
// check instead.
func CheckAdmin(user *domain.User) error {
	if user == nil {
		return ErrLoginRequired
	}
	if !user.IsOwner && user.Role != domain.RoleAdmin {
		return ErrPermissionRequired
	}
	return nil
}

// Resolver is an operation guarded by checkers. The caller is read from ctx.
type Resolver func(ctx context.Context, args map[string]any) (any, error)

// Wrap returns a resolver that runs every checker, in order, before r.
func Wrap(r Resolver, checkers ...Checker) Resolver {
	return func(ctx context.Context, args map[string]any) (any, error) {
		user := UserFrom(ctx)
		for _, check := range checkers {
			if err := check(user); err != nil {
				return nil, err
			}
		}
		return r(ctx, args)
	}
}

func RequireLogin(r Resolver) Resolver {
	return Wrap(r, CheckLogin)
}

func RequireAdmin(r Resolver) Resolver {
	return Wrap(r, CheckLogin, CheckAdmin)
}

// ModuleRequireLogin returns a copy of module with every resolver wrapped.
func ModuleRequireLogin(module map[string]Resolver) map[string]Resolver {
	return wrapAll(module, RequireLogin)
}

// ModuleRequireAdmin returns a copy of module with every resolver wrapped.
func ModuleRequireAdmin(module map[string]Resolver) map[string]Resolver {
	return wrapAll(module, RequireAdmin)
}

func wrapAll(module map[string]Resolver, wrap func(Resolver) Resolver) map[string]Resolver {
	out := make(map[string]Resolver, len(module))
	for name, r := range module {
		out[name] = wrap(r)
	}
	return out
}

// Can reports whether userID may perform action.
type Can func(ctx context.Context, action, userID string) (bool, error)

// CheckPermission requires a logged in user that can perform action.
func CheckPermission(r Resolver, can Can, action string) Resolver {
	return func(ctx context.Context, args map[string]any) (any, error) {
		user := UserFrom(ctx)
		if err := CheckLogin(user); err != nil {
			return nil, err
		}

		allowed, err := can(ctx, action, user.ID)
		if err != nil {
			return nil, fmt.Errorf("checking %s permission: %w", action, err)
		}
		if !allowed {
			return nil, ErrPermissionRequired
		}
		return r(ctx, args)
	}
}
