package middleware

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	internalhttputil "github.com/R3E-Network/marketplace_console/internal/httputil"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

type (
	accountKey struct{}
	tenantKey  struct{}
)

// AccountLookup loads accounts and their current workspace.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (account.Account, error)
	// CurrentTenant fails with a no_workspace ServiceError for accounts
	// without membership.
	CurrentTenant(ctx context.Context, accountID string) (account.Tenant, account.Role, error)
}

// WithAccount stores the current account on ctx.
func WithAccount(ctx context.Context, acct account.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acct)
}

// CurrentAccount returns the account loaded by RequireInitializedAccount.
func CurrentAccount(ctx context.Context) (account.Account, bool) {
	acct, ok := ctx.Value(accountKey{}).(account.Account)
	return acct, ok
}

// WithTenant stores the current workspace on ctx.
func WithTenant(ctx context.Context, tenant account.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// CurrentTenant returns the workspace resolved by RequireInitializedAccount.
// Accounts without membership have none.
func CurrentTenant(ctx context.Context) (account.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(account.Tenant)
	return tenant, ok
}

// RequireInitializedAccount loads the authenticated account and rejects
// unknown, banned, closed or uninitialized accounts. It must run after the
// auth middleware. The account's current workspace and role, when it has
// one, are added to the request context.
func RequireInitializedAccount(accounts AccountLookup, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				internalhttputil.Unauthorized(w, "")
				return
			}

			acct, err := accounts.GetAccount(r.Context(), userID)
			if err != nil {
				if stderrors.Is(err, storage.ErrNotFound) {
					internalhttputil.WriteServiceError(w, r, errors.Unauthorized("Account not found"))
					return
				}
				logger.WithContext(r.Context()).WithError(err).Error("load current account")
				internalhttputil.WriteServiceError(w, r, err)
				return
			}

			switch {
			case !acct.Usable():
				logger.LogSecurityEvent(r.Context(), "account_blocked", map[string]interface{}{"status": string(acct.Status)})
				internalhttputil.WriteServiceError(w, r, errors.Forbidden("Account is banned or closed"))
				return
			case !acct.Initialized():
				internalhttputil.WriteServiceError(w, r, errors.NotInitialized())
				return
			}

			ctx := WithAccount(r.Context(), acct)
			tenant, role, err := accounts.CurrentTenant(ctx, acct.ID)
			switch {
			case err == nil:
				ctx = WithTenant(ctx, tenant)
				ctx = context.WithValue(ctx, logging.RoleKey, string(role))
			case !errors.Is(err, errors.CodeNoWorkspace):
				logger.WithContext(ctx).WithError(err).Error("resolve current tenant")
				internalhttputil.WriteServiceError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey guards a handler with a static key in the X-Api-Key header.
// An empty key disables the check.
func RequireAPIKey(key string, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !constantTimeEqual(r.Header.Get("X-Api-Key"), key) {
				if logger != nil {
					logger.LogSecurityEvent(r.Context(), "invalid_api_key", map[string]interface{}{"path": r.URL.Path})
				}
				internalhttputil.WriteServiceError(w, r, errors.Unauthorized("Invalid API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
