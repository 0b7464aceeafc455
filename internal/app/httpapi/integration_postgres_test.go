//go:build integration && postgres

package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/marketplace_console/internal/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	domainapp "github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/storage/postgres"
	"github.com/R3E-Network/marketplace_console/internal/logging"
	"github.com/R3E-Network/marketplace_console/internal/platform/migrations"
)

// Publish and list against Postgres to cover the migrations, the joins and
// the unique listing index.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	for _, table := range []string{"recommended_apps", "apps", "tenant_account_joins", "setups", "tenants", "accounts"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Accounts:    store,
		Tenants:     store,
		Setups:      store,
		Apps:        store,
		Recommended: store,
	}, app.Options{SelfHosted: true, CuratorEmail: curatorEmail}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	curator, err := store.CreateAccount(ctx, account.Account{Email: curatorEmail, Name: "Curator", Status: account.StatusActive})
	if err != nil {
		t.Fatalf("create curator: %v", err)
	}
	env := &testEnv{
		store:   nil,
		handler: NewHandler(application, Config{APIPrefix: "/console/api", JWTSecret: testSecret}, logging.NewDiscard()),
		curator: curator,
		token:   signToken(t, curator.ID),
	}

	a, err := store.CreateApp(ctx, domainapp.App{Name: "PG App", Mode: domainapp.ModeWorkflow, CreatedBy: curator.ID})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	if resp := env.do(http.MethodPost, "/console/api/explore/apps", marshal(map[string]any{"app_id": a.ID})); resp.Code != http.StatusCreated {
		t.Fatalf("publish status: %d %s", resp.Code, resp.Body.String())
	}
	if resp := env.do(http.MethodPost, "/console/api/explore/apps", marshal(map[string]any{"app_id": a.ID})); resp.Code != http.StatusConflict {
		t.Fatalf("second publish status: %d", resp.Code)
	}

	resp := env.do(http.MethodGet, "/console/api/explore/apps?name=pg", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list status: %d", resp.Code)
	}
	if body := decode(t, resp); body["total"].(float64) != 1 {
		t.Fatalf("expected one listed app, got %v", body)
	}

	if resp := env.do(http.MethodDelete, "/console/api/explore/apps/"+a.ID, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.Code)
	}
}
