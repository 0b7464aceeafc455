package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write collides with a unique constraint.
	ErrConflict = errors.New("storage: conflict")
)

// AccountStore persists account records.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (account.Account, error)
}

// TenantStore persists workspaces and their members.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (account.Tenant, error)
	CountTenants(ctx context.Context) (int, error)
	// FirstTenant returns the oldest tenant.
	FirstTenant(ctx context.Context) (account.Tenant, error)
	ListMemberships(ctx context.Context, accountID string) ([]account.TenantMember, error)
}

// SetupBundle is everything written by the first-run setup.
type SetupBundle struct {
	Account account.Account
	Tenant  account.Tenant
	Setup   account.Setup
}

// SetupStore records the first-run bootstrap.
type SetupStore interface {
	// GetSetup returns ErrNotFound until setup has completed.
	GetSetup(ctx context.Context) (account.Setup, error)
	// CompleteSetup atomically creates the owner account, its workspace,
	// the owner membership and the setup record. It returns ErrConflict when
	// a setup record or any tenant already exists, or the email is taken.
	CompleteSetup(ctx context.Context, bundle SetupBundle) (SetupBundle, error)
	// JoinFirstTenant atomically creates acct and attaches it to the oldest
	// tenant with role, marked as its current tenant. It returns ErrNotFound
	// when no tenant exists and ErrConflict when the email is taken.
	JoinFirstTenant(ctx context.Context, acct account.Account, role account.Role) (account.Account, account.Tenant, error)
}

// AppStore persists apps.
type AppStore interface {
	CreateApp(ctx context.Context, a app.App) (app.App, error)
	GetApp(ctx context.Context, id string) (app.App, error)
}

// RecommendedAppStore persists marketplace listings.
type RecommendedAppStore interface {
	// ListRecommended returns one page of listed apps whose App is public,
	// newest first, and the total number of matches.
	ListRecommended(ctx context.Context, filter recommend.ListFilter) ([]recommend.Listing, int, error)
	GetRecommendedByAppID(ctx context.Context, appID string) (recommend.RecommendedApp, error)
	// GetListing returns the listing for appID when it is listed and public.
	GetListing(ctx context.Context, appID string) (recommend.Listing, error)
	// ListCatalogue returns listed public apps for language ordered by position.
	ListCatalogue(ctx context.Context, language string) ([]recommend.Listing, error)
	// PublishRecommended inserts rec and marks its App public in one unit.
	// ErrNotFound when the App is missing, ErrConflict when a listing exists.
	PublishRecommended(ctx context.Context, rec recommend.RecommendedApp) (recommend.RecommendedApp, error)
	// UnpublishRecommended deletes the single listing of appID.
	// ErrNotFound when there is none.
	UnpublishRecommended(ctx context.Context, appID string) error
}
