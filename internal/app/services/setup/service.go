// Package setup bootstraps a fresh deployment and syncs accounts into its
// first workspace.
package setup

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/metrics"
	"github.com/R3E-Network/marketplace_console/internal/app/services/accounts"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

// Step values reported by Status and InitStatus.
const (
	StepNotStarted = "not_started"
	StepFinished   = "finished"
)

// Config controls the bootstrap rules.
type Config struct {
	// SelfHosted enables setup; cloud deployments are provisioned elsewhere.
	SelfHosted bool
	// InitPassword, when set, must be presented through ValidateInit first.
	InitPassword string
	// Version is recorded on the setup row.
	Version string
}

// Status is the bootstrap state of the deployment.
type Status struct {
	Step    string
	SetupAt *time.Time
}

// InsertResult describes an account synced into the first workspace.
type InsertResult struct {
	Email     string
	Name      string
	Workspace string
}

// Service implements setup, init validation and account insert.
type Service struct {
	setups   storage.SetupStore
	tenants  storage.TenantStore
	accounts *accounts.Service
	cfg      Config
	log      *logging.Logger

	mu            sync.Mutex
	initValidated bool
}

// New constructs a setup service.
func New(setups storage.SetupStore, tenants storage.TenantStore, accts *accounts.Service, cfg Config, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("setup")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Service{setups: setups, tenants: tenants, accounts: accts, cfg: cfg, log: log}
}

// Status reports whether setup has completed. Cloud deployments are always finished.
func (s *Service) Status(ctx context.Context) (Status, error) {
	if !s.cfg.SelfHosted {
		return Status{Step: StepFinished}, nil
	}
	rec, err := s.setups.GetSetup(ctx)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return Status{Step: StepNotStarted}, nil
	case err != nil:
		return Status{}, fmt.Errorf("get setup: %w", err)
	}
	at := rec.SetupAt
	return Status{Step: StepFinished, SetupAt: &at}, nil
}

// InitStatus returns StepFinished once the init password step is satisfied.
func (s *Service) InitStatus(ctx context.Context) (string, error) {
	ok, err := s.initDone(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return StepFinished, nil
	}
	return StepNotStarted, nil
}

func (s *Service) initDone(ctx context.Context) (bool, error) {
	if !s.cfg.SelfHosted || s.cfg.InitPassword == "" {
		return true, nil
	}
	s.mu.Lock()
	validated := s.initValidated
	s.mu.Unlock()
	if validated {
		return true, nil
	}
	done, err := s.setupDone(ctx)
	if err != nil {
		return false, err
	}
	return done, nil
}

// ValidateInit checks the init password and unlocks Setup.
func (s *Service) ValidateInit(ctx context.Context, password string) error {
	err := s.validateInit(ctx, password)
	metrics.RecordSetupEvent("init", outcome(err))
	return err
}

func (s *Service) validateInit(ctx context.Context, password string) error {
	count, err := s.tenants.CountTenants(ctx)
	if err != nil {
		return fmt.Errorf("count tenants: %w", err)
	}
	if count > 0 {
		return errors.AlreadySetup()
	}
	if s.cfg.InitPassword != "" && subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.InitPassword)) != 1 {
		s.log.LogSecurityEvent(ctx, "init_validate_failed", nil)
		return errors.InitValidateFailed()
	}

	s.mu.Lock()
	s.initValidated = true
	s.mu.Unlock()
	return nil
}

// Setup creates the first account, its workspace and the setup record. It
// succeeds at most once per deployment.
func (s *Service) Setup(ctx context.Context, reg accounts.Registration, ip string) error {
	err := s.setup(ctx, reg, ip)
	metrics.RecordSetupEvent("setup", outcome(err))
	return err
}

func (s *Service) setup(ctx context.Context, reg accounts.Registration, ip string) error {
	if !s.cfg.SelfHosted {
		return errors.Forbidden("Setup is only available for self-hosted deployments")
	}

	done, err := s.setupDone(ctx)
	if err != nil {
		return err
	}
	if done {
		return errors.AlreadySetup()
	}
	validated, err := s.initDone(ctx)
	if err != nil {
		return err
	}
	if !validated {
		return errors.NotInitValidated()
	}

	acct, err := s.accounts.Prepare(reg, ip)
	if err != nil {
		return err
	}
	bundle, err := s.setups.CompleteSetup(ctx, storage.SetupBundle{
		Account: acct,
		Tenant:  account.Tenant{Name: account.WorkspaceName(acct.Name), Plan: "basic", Status: "normal"},
		Setup:   account.Setup{Version: s.cfg.Version, SetupAt: time.Now().UTC()},
	})
	switch {
	case stderrors.Is(err, storage.ErrConflict):
		return errors.AlreadySetup()
	case err != nil:
		s.log.WithContext(ctx).WithError(err).Error("setup rolled back")
		return fmt.Errorf("complete setup: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("account_id", bundle.Account.ID).
		WithField("tenant_id", bundle.Tenant.ID).
		Info("deployment setup completed")
	return nil
}

// setupDone reports whether a setup record or any tenant exists.
func (s *Service) setupDone(ctx context.Context) (bool, error) {
	_, err := s.setups.GetSetup(ctx)
	switch {
	case err == nil:
		return true, nil
	case !stderrors.Is(err, storage.ErrNotFound):
		return false, fmt.Errorf("get setup: %w", err)
	}
	count, err := s.tenants.CountTenants(ctx)
	if err != nil {
		return false, fmt.Errorf("count tenants: %w", err)
	}
	return count > 0, nil
}

// Insert creates an account and joins it to the first workspace as admin.
func (s *Service) Insert(ctx context.Context, reg accounts.Registration, ip string) (InsertResult, error) {
	res, err := s.insert(ctx, reg, ip)
	metrics.RecordSetupEvent("insert", outcome(err))
	return res, err
}

func (s *Service) insert(ctx context.Context, reg accounts.Registration, ip string) (InsertResult, error) {
	if err := reg.Validate(); err != nil {
		return InsertResult{}, err
	}
	taken, err := s.accounts.EmailTaken(ctx, reg.Email)
	if err != nil {
		return InsertResult{}, err
	}
	if taken {
		return InsertResult{}, errors.AccountExists()
	}

	acct, err := s.accounts.Prepare(reg, ip)
	if err != nil {
		return InsertResult{}, err
	}
	created, tenant, err := s.setups.JoinFirstTenant(ctx, acct, account.RoleAdmin)
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return InsertResult{}, errors.NoWorkspace()
	case stderrors.Is(err, storage.ErrConflict):
		return InsertResult{}, errors.AccountExists()
	case err != nil:
		s.log.WithContext(ctx).WithError(err).Error("insert account rolled back")
		return InsertResult{}, fmt.Errorf("join first tenant: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("account_id", created.ID).
		WithField("tenant_id", tenant.ID).
		Info("account inserted")
	return InsertResult{Email: created.Email, Name: created.Name, Workspace: tenant.Name}, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		return string(svcErr.Code)
	}
	return "error"
}
