package accounts

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/app/storage/memory"
	"github.com/R3E-Network/marketplace_console/internal/errors"
)

func TestService_PrepareAndGet(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil).WithHashCost(bcrypt.MinCost)

	acct, err := svc.Prepare(Registration{Email: " Alice@Example.com ", Name: "Alice", Password: "s3cretpass"}, "10.0.0.1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if acct.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", acct.Email)
	}
	if acct.Status != account.StatusActive || acct.InterfaceLanguage != "en-US" || acct.LastLoginIP != "10.0.0.1" {
		t.Fatalf("unexpected account defaults: %+v", acct)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte("s3cretpass")); err != nil {
		t.Fatalf("password should verify: %v", err)
	}

	created, err := store.CreateAccount(context.Background(), acct)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Alice" {
		t.Fatalf("unexpected name %q", got.Name)
	}

	taken, err := svc.EmailTaken(context.Background(), "ALICE@example.com")
	if err != nil || !taken {
		t.Fatalf("expected email to be taken, got %v %v", taken, err)
	}
	taken, err = svc.EmailTaken(context.Background(), "bob@example.com")
	if err != nil || taken {
		t.Fatalf("expected email to be free, got %v %v", taken, err)
	}
}

func TestService_GetMissing(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.GetAccount(context.Background(), "missing"); err != storage.ErrNotFound {
		t.Fatalf("lookup should return the storage sentinel, got %v", err)
	}
}

func TestService_CurrentTenant(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil).WithHashCost(bcrypt.MinCost)

	if _, _, err := svc.CurrentTenant(ctx, "nobody"); !errors.Is(err, errors.CodeNoWorkspace) {
		t.Fatalf("expected no workspace, got %v", err)
	}

	owner, err := svc.Prepare(Registration{Email: "owner@example.com", Name: "Owner", Password: "passw0rd"}, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	bundle, err := store.CompleteSetup(ctx, storage.SetupBundle{
		Account: owner,
		Tenant:  account.Tenant{Name: account.WorkspaceName("Owner")},
		Setup:   account.Setup{Version: "test"},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	tenant, role, err := svc.CurrentTenant(ctx, bundle.Account.ID)
	if err != nil {
		t.Fatalf("current tenant: %v", err)
	}
	if tenant.Name != "Owner's Workspace" || role != account.RoleOwner {
		t.Fatalf("unexpected membership %q %q", tenant.Name, role)
	}
}

func TestValidation(t *testing.T) {
	valid := Registration{Email: "a@b.co", Name: "Ann", Password: "abcdefg1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid registration: %v", err)
	}

	cases := map[string]Registration{
		"missing email":  {Name: "Ann", Password: "abcdefg1"},
		"bad email":      {Email: "not-an-email", Name: "Ann", Password: "abcdefg1"},
		"display email":  {Email: "Ann <a@b.co>", Name: "Ann", Password: "abcdefg1"},
		"no tld":         {Email: "a@localhost", Name: "Ann", Password: "abcdefg1"},
		"empty name":     {Email: "a@b.co", Name: "  ", Password: "abcdefg1"},
		"long name":      {Email: "a@b.co", Name: "abcdefghijklmnopqrstuvwxyz12345", Password: "abcdefg1"},
		"short password": {Email: "a@b.co", Name: "Ann", Password: "abc1"},
		"letters only":   {Email: "a@b.co", Name: "Ann", Password: "abcdefgh"},
		"digits only":    {Email: "a@b.co", Name: "Ann", Password: "12345678"},
	}
	for name, reg := range cases {
		err := reg.Validate()
		if !errors.Is(err, errors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	if err := ValidateName("abcdefghijklmnopqrstuvwxyz1234"); err != nil {
		t.Fatalf("30 characters should pass: %v", err)
	}
}
