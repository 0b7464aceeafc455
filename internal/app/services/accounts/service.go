// Package accounts manages console accounts, their passwords and their
// workspace memberships.
package accounts

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

// Service provides account management.
type Service struct {
	accounts storage.AccountStore
	tenants  storage.TenantStore
	cost     int
	log      *logging.Logger
}

// New constructs an account service.
func New(accounts storage.AccountStore, tenants storage.TenantStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("accounts")
	}
	return &Service{accounts: accounts, tenants: tenants, cost: bcrypt.DefaultCost, log: log}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// HashPassword returns the bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Prepare validates reg and builds an active account ready to persist. The
// interface language defaults to the first supported language.
func (s *Service) Prepare(reg Registration, ip string) (account.Account, error) {
	if err := reg.Validate(); err != nil {
		return account.Account{}, err
	}
	hash, err := s.HashPassword(reg.Password)
	if err != nil {
		return account.Account{}, errors.Internal("", err)
	}
	now := time.Now().UTC()
	return account.Account{
		Email:             account.NormalizeEmail(reg.Email),
		Name:              strings.TrimSpace(reg.Name),
		PasswordHash:      hash,
		InterfaceLanguage: account.DefaultLanguage(),
		Timezone:          "UTC",
		Status:            account.StatusActive,
		LastLoginIP:       ip,
		InitializedAt:     &now,
	}, nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return account.Account{}, errors.NotFound("Account not found")
		}
		return account.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return acct, nil
}

// GetAccount satisfies the middleware account lookup; it keeps storage errors unwrapped.
func (s *Service) GetAccount(ctx context.Context, id string) (account.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

// EmailTaken reports whether an account already uses email.
func (s *Service) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.accounts.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup account by email: %w", err)
	}
}

// CurrentTenant returns the tenant marked current for accountID, or the
// first membership when none is marked. It backs the request-scoped tenant
// resolved by the account middleware.
func (s *Service) CurrentTenant(ctx context.Context, accountID string) (account.Tenant, account.Role, error) {
	members, err := s.tenants.ListMemberships(ctx, accountID)
	if err != nil {
		return account.Tenant{}, "", fmt.Errorf("list memberships: %w", err)
	}
	if len(members) == 0 {
		return account.Tenant{}, "", errors.NoWorkspace()
	}
	chosen := members[0]
	for _, m := range members {
		if m.Current {
			chosen = m
			break
		}
	}
	tenant, err := s.tenants.GetTenant(ctx, chosen.TenantID)
	if err != nil {
		return account.Tenant{}, "", fmt.Errorf("get tenant %s: %w", chosen.TenantID, err)
	}
	return tenant, chosen.Role, nil
}
