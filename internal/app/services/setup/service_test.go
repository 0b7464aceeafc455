package setup

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/services/accounts"
	"github.com/R3E-Network/marketplace_console/internal/app/storage/memory"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

func newService(t *testing.T, cfg Config) (*Service, *accounts.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	accts := accounts.New(store, store, logging.NewDiscard()).WithHashCost(bcrypt.MinCost)
	return New(store, store, accts, cfg, logging.NewDiscard()), accts, store
}

var owner = accounts.Registration{Email: "Owner@Example.com", Name: "Owner", Password: "passw0rd"}

func statusOf(err error) int {
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		return svcErr.HTTPStatus
	}
	return 0
}

func TestSetup_SucceedsOnce(t *testing.T) {
	ctx := context.Background()
	svc, accts, store := newService(t, Config{SelfHosted: true, Version: "1.0.0"})

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepNotStarted, st.Step)
	assert.Nil(t, st.SetupAt)

	require.NoError(t, svc.Setup(ctx, owner, "192.0.2.1"))

	st, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepFinished, st.Step)
	require.NotNil(t, st.SetupAt)

	acct, err := store.GetAccountByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, acct.Status)
	assert.Equal(t, "en-US", acct.InterfaceLanguage)
	assert.Equal(t, "192.0.2.1", acct.LastLoginIP)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte("passw0rd")))

	tenant, role, err := accts.CurrentTenant(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner's Workspace", tenant.Name)
	assert.Equal(t, account.RoleOwner, role)

	// A second call fails regardless of payload.
	err = svc.Setup(ctx, accounts.Registration{Email: "bad"}, "")
	assert.True(t, errors.Is(err, errors.CodeAlreadySetup))
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestSetup_ConcurrentCallsCreateOneTenant(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newService(t, Config{SelfHosted: true})

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Setup(ctx, owner, "")
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, errors.CodeAlreadySetup), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	count, err := store.CountTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetup_ExistingTenantBlocksSetup(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newService(t, Config{SelfHosted: true})
	_, err := store.CreateTenant(ctx, account.Tenant{Name: "Legacy"})
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Setup(ctx, owner, ""), errors.CodeAlreadySetup))
}

func TestSetup_ValidatesPayload(t *testing.T) {
	svc, _, _ := newService(t, Config{SelfHosted: true})

	err := svc.Setup(context.Background(), accounts.Registration{Email: "owner@example.com", Name: "Owner", Password: "short"}, "")
	assert.True(t, errors.Is(err, errors.CodeValidation))
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestSetup_CloudEdition(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, Config{SelfHosted: false})

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepFinished, st.Step)

	err = svc.Setup(ctx, owner, "")
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestInitValidation_GatesSetup(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t, Config{SelfHosted: true, InitPassword: "open-sesame"})

	status, err := svc.InitStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepNotStarted, status)

	err = svc.Setup(ctx, owner, "")
	assert.True(t, errors.Is(err, errors.CodeNotInitValidated))
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	err = svc.ValidateInit(ctx, "wrong")
	assert.True(t, errors.Is(err, errors.CodeInitValidateFail))

	require.NoError(t, svc.ValidateInit(ctx, "open-sesame"))
	status, err = svc.InitStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepFinished, status)

	require.NoError(t, svc.Setup(ctx, owner, ""))
	assert.True(t, errors.Is(svc.ValidateInit(ctx, "open-sesame"), errors.CodeAlreadySetup))
}

func TestInitStatus_WithoutPassword(t *testing.T) {
	svc, _, _ := newService(t, Config{SelfHosted: true})
	status, err := svc.InitStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepFinished, status)
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	svc, accts, store := newService(t, Config{SelfHosted: true})
	member := accounts.Registration{Email: "member@example.com", Name: "Member", Password: "member123"}

	_, err := svc.Insert(ctx, member, "")
	assert.True(t, errors.Is(err, errors.CodeNoWorkspace))
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	require.NoError(t, svc.Setup(ctx, owner, ""))

	res, err := svc.Insert(ctx, member, "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Email: "member@example.com", Name: "Member", Workspace: "Owner's Workspace"}, res)

	created, err := store.GetAccountByEmail(ctx, "member@example.com")
	require.NoError(t, err)
	tenant, role, err := accts.CurrentTenant(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner's Workspace", tenant.Name)
	assert.Equal(t, account.RoleAdmin, role)
	assert.Equal(t, "en-US", created.InterfaceLanguage)

	_, err = svc.Insert(ctx, member, "")
	assert.True(t, errors.Is(err, errors.CodeAccountExists))
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = svc.Insert(ctx, accounts.Registration{Email: "x@example.com", Name: "X", Password: "nodigits"}, "")
	assert.True(t, errors.Is(err, errors.CodeValidation))
}
