package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu             sync.RWMutex
	accounts       map[string]account.Account
	accountsByMail map[string]string
	tenants        map[string]account.Tenant
	tenantOrder    []string
	members        []account.TenantMember
	setup          *account.Setup
	apps           map[string]app.App
	recommended    map[string]recommend.RecommendedApp // keyed by app id
	recOrder       []string
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.TenantStore = (*Store)(nil)
var _ storage.SetupStore = (*Store)(nil)
var _ storage.AppStore = (*Store)(nil)
var _ storage.RecommendedAppStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:       make(map[string]account.Account),
		accountsByMail: make(map[string]string),
		tenants:        make(map[string]account.Tenant),
		apps:           make(map[string]app.App),
		recommended:    make(map[string]recommend.RecommendedApp),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccountLocked(acct)
}

func (s *Store) createAccountLocked(acct account.Account) (account.Account, error) {
	acct.Email = account.NormalizeEmail(acct.Email)
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, storage.ErrConflict
	}
	if _, exists := s.accountsByMail[acct.Email]; exists {
		return account.Account{}, storage.ErrConflict
	}

	ts := now()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = ts
	}
	acct.UpdatedAt = ts

	s.accounts[acct.ID] = acct
	s.accountsByMail[acct.Email] = acct.ID
	return cloneAccount(acct), nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return cloneAccount(acct), nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByMail[account.NormalizeEmail(email)]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// TenantStore implementation --------------------------------------------------

// CreateTenant seeds a workspace outside the setup flow, as fixtures and
// local development do.
func (s *Store) CreateTenant(_ context.Context, tenant account.Tenant) (account.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTenantLocked(tenant)
}

func (s *Store) createTenantLocked(tenant account.Tenant) (account.Tenant, error) {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	} else if _, exists := s.tenants[tenant.ID]; exists {
		return account.Tenant{}, storage.ErrConflict
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now()
	}
	if tenant.Plan == "" {
		tenant.Plan = "basic"
	}
	if tenant.Status == "" {
		tenant.Status = "normal"
	}
	s.tenants[tenant.ID] = tenant
	s.tenantOrder = append(s.tenantOrder, tenant.ID)
	return tenant, nil
}

func (s *Store) GetTenant(_ context.Context, id string) (account.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return account.Tenant{}, storage.ErrNotFound
	}
	return tenant, nil
}

func (s *Store) CountTenants(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants), nil
}

func (s *Store) FirstTenant(_ context.Context) (account.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstTenantLocked()
}

func (s *Store) firstTenantLocked() (account.Tenant, error) {
	var (
		first account.Tenant
		found bool
	)
	for _, id := range s.tenantOrder {
		t := s.tenants[id]
		if !found || t.CreatedAt.Before(first.CreatedAt) {
			first, found = t, true
		}
	}
	if !found {
		return account.Tenant{}, storage.ErrNotFound
	}
	return first, nil
}

func (s *Store) ListMemberships(_ context.Context, accountID string) ([]account.TenantMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []account.TenantMember
	for _, m := range s.members {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) addMemberLocked(m account.TenantMember) {
	if m.Current {
		for i := range s.members {
			if s.members[i].AccountID == m.AccountID {
				s.members[i].Current = false
			}
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	s.members = append(s.members, m)
}

// SetupStore implementation ---------------------------------------------------

func (s *Store) GetSetup(_ context.Context) (account.Setup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.setup == nil {
		return account.Setup{}, storage.ErrNotFound
	}
	return *s.setup, nil
}

func (s *Store) CompleteSetup(_ context.Context, bundle storage.SetupBundle) (storage.SetupBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setup != nil || len(s.tenants) > 0 {
		return storage.SetupBundle{}, storage.ErrConflict
	}

	acct, err := s.createAccountLocked(bundle.Account)
	if err != nil {
		return storage.SetupBundle{}, err
	}
	tenant, err := s.createTenantLocked(bundle.Tenant)
	if err != nil {
		s.dropAccountLocked(acct)
		return storage.SetupBundle{}, err
	}
	s.addMemberLocked(account.TenantMember{TenantID: tenant.ID, AccountID: acct.ID, Role: account.RoleOwner, Current: true})

	setup := bundle.Setup
	if setup.SetupAt.IsZero() {
		setup.SetupAt = now()
	}
	s.setup = &setup

	return storage.SetupBundle{Account: acct, Tenant: tenant, Setup: setup}, nil
}

func (s *Store) JoinFirstTenant(_ context.Context, acct account.Account, role account.Role) (account.Account, account.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, err := s.firstTenantLocked()
	if err != nil {
		return account.Account{}, account.Tenant{}, err
	}
	created, err := s.createAccountLocked(acct)
	if err != nil {
		return account.Account{}, account.Tenant{}, err
	}
	s.addMemberLocked(account.TenantMember{TenantID: tenant.ID, AccountID: created.ID, Role: role, Current: true})
	return created, tenant, nil
}

func (s *Store) dropAccountLocked(acct account.Account) {
	delete(s.accounts, acct.ID)
	delete(s.accountsByMail, acct.Email)
}

// AppStore implementation -----------------------------------------------------

func (s *Store) CreateApp(_ context.Context, a app.App) (app.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := s.apps[a.ID]; exists {
		return app.App{}, storage.ErrConflict
	}
	ts := now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = ts
	}
	a.UpdatedAt = ts
	s.apps[a.ID] = a
	return a, nil
}

func (s *Store) GetApp(_ context.Context, id string) (app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return app.App{}, storage.ErrNotFound
	}
	return a, nil
}

// RecommendedAppStore implementation ------------------------------------------

func (s *Store) ListRecommended(_ context.Context, filter recommend.ListFilter) ([]recommend.Listing, int, error) {
	filter = filter.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	curator := account.NormalizeEmail(filter.CuratorEmail)
	needle := strings.ToLower(filter.Name)

	var matches []recommend.Listing
	for _, listing := range s.listedLocked() {
		if needle != "" && !strings.Contains(strings.ToLower(listing.App.Name), needle) {
			continue
		}
		isCurated := listing.OwnerEmail == curator
		if filter.Mode == recommend.ModeRecommended && !isCurated {
			continue
		}
		if filter.Mode == recommend.ModeCommunity && isCurated {
			continue
		}
		matches = append(matches, listing)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Recommended.CreatedAt.After(matches[j].Recommended.CreatedAt)
	})

	total := len(matches)
	start := filter.Offset()
	if start >= total {
		return []recommend.Listing{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return append([]recommend.Listing(nil), matches[start:end]...), total, nil
}

// listedLocked returns listed recommendations of public apps with an owner,
// newest insertion first.
func (s *Store) listedLocked() []recommend.Listing {
	out := make([]recommend.Listing, 0, len(s.recOrder))
	for i := len(s.recOrder) - 1; i >= 0; i-- {
		rec := s.recommended[s.recOrder[i]]
		if !rec.IsListed {
			continue
		}
		a, ok := s.apps[rec.AppID]
		if !ok || !a.IsPublic {
			continue
		}
		owner, ok := s.accounts[a.CreatedBy]
		if !ok {
			continue
		}
		out = append(out, recommend.Listing{Recommended: rec, App: a, OwnerEmail: owner.Email})
	}
	return out
}

func (s *Store) GetRecommendedByAppID(_ context.Context, appID string) (recommend.RecommendedApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recommended[appID]
	if !ok {
		return recommend.RecommendedApp{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) GetListing(_ context.Context, appID string) (recommend.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, listing := range s.listedLocked() {
		if listing.App.ID == appID {
			return listing, nil
		}
	}
	return recommend.Listing{}, storage.ErrNotFound
}

func (s *Store) ListCatalogue(_ context.Context, language string) ([]recommend.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []recommend.Listing
	for _, listing := range s.listedLocked() {
		if listing.Recommended.Language == language {
			out = append(out, listing)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Recommended.Position < out[j].Recommended.Position
	})
	return out, nil
}

func (s *Store) PublishRecommended(_ context.Context, rec recommend.RecommendedApp) (recommend.RecommendedApp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[rec.AppID]
	if !ok {
		return recommend.RecommendedApp{}, storage.ErrNotFound
	}
	if _, exists := s.recommended[rec.AppID]; exists {
		return recommend.RecommendedApp{}, storage.ErrConflict
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	ts := now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = ts
	}
	rec.UpdatedAt = ts

	a.IsPublic = true
	a.UpdatedAt = ts
	s.apps[a.ID] = a
	s.recommended[rec.AppID] = rec
	s.recOrder = append(s.recOrder, rec.AppID)
	return rec, nil
}

func (s *Store) UnpublishRecommended(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recommended[appID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.recommended, appID)
	for i, id := range s.recOrder {
		if id == appID {
			s.recOrder = append(s.recOrder[:i], s.recOrder[i+1:]...)
			break
		}
	}
	return nil
}

func cloneAccount(acct account.Account) account.Account {
	if acct.InitializedAt != nil {
		t := *acct.InitializedAt
		acct.InitializedAt = &t
	}
	return acct
}
