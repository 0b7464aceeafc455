package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/platform/migrations"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var listingCols = []string{
	"id", "app_id", "description", "copyright", "privacy_policy", "custom_disclaimer",
	"category", "position", "is_listed", "language", "install_count", "created_at", "updated_at",
	"app_tenant_id", "app_name", "app_mode", "app_icon", "app_icon_type", "app_icon_background",
	"app_is_public", "app_created_by", "app_created_at", "app_updated_at", "owner_email",
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("escapeLike = %q", got)
	}
}

func TestListRecommended_CountThenPage(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recommended_apps r .* WHERE r\.is_listed = TRUE AND a\.is_public = TRUE AND a\.name ILIKE \$1 AND lower\(acc\.email\) = \$2`).
		WithArgs(`%100\%%`, recommend.DefaultCuratorEmail).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`WHERE r\.is_listed = TRUE AND a\.is_public = TRUE .* ORDER BY r.created_at DESC, r.id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(`%100\%%`, recommend.DefaultCuratorEmail, 2, 0).
		WillReturnRows(sqlmock.NewRows(listingCols).
			AddRow("r1", "a1", "d", "Takin.AI", "https://Takin.ai", "", "Writing", 0, true, "en-US", 0, now, now,
				nil, "100% Writer", "chat", "🤖", "emoji", "#fff", true, "u1", now, now, "curator@takin.ai").
			AddRow("r2", "a2", "", "", "", "", "", 0, true, "en-US", 0, now, now,
				"t1", "100% Coder", "workflow", "", "", "", true, "u1", now, now, "curator@takin.ai"))

	items, total, err := store.ListRecommended(context.Background(), recommend.ListFilter{
		Page: 1, PerPage: 2, Name: "100%", Mode: recommend.ModeRecommended,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].App.Name != "100% Writer" || items[0].App.TenantID != "" || items[1].App.TenantID != "t1" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].OwnerEmail != "curator@takin.ai" || items[0].Recommended.AppID != "a1" {
		t.Fatalf("unexpected listing: %+v", items[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecommended_CommunityExcludesCurator(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`lower\(acc.email\) <> \$1`).
		WithArgs("team@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs("team@example.com", 20, 20).
		WillReturnRows(sqlmock.NewRows(listingCols))

	items, total, err := store.ListRecommended(context.Background(), recommend.ListFilter{
		Page: 2, PerPage: 20, Mode: recommend.ModeCommunity, CuratorEmail: "Team@Example.com",
	})
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("items=%v total=%d err=%v", items, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishRecommended_ConflictRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE apps SET is_public = TRUE`).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommended_apps`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "recommended_apps_app_id_key"})
	mock.ExpectRollback()

	_, err := store.PublishRecommended(context.Background(), recommend.RecommendedApp{AppID: "a1", IsListed: true})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishRecommended_MissingApp(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE apps SET is_public = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.PublishRecommended(context.Background(), recommend.RecommendedApp{AppID: "missing"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishRecommended_Commits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE apps SET is_public = TRUE`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO recommended_apps`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.PublishRecommended(context.Background(), recommend.RecommendedApp{AppID: "a1"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("publish did not fill id/timestamps: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnpublishRecommended(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
		commit   bool
	}{
		{name: "deleted", affected: 1, commit: true},
		{name: "missing", affected: 0, wantErr: storage.ErrNotFound},
		{name: "duplicates", affected: 2, wantErr: errors.New("any")},
		{name: "db failure", execErr: errors.New("connection reset"), wantErr: errors.New("any")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectBegin()
			exec := mock.ExpectExec(`DELETE FROM recommended_apps WHERE app_id = \$1`).WithArgs("a1")
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, tt.affected))
			}
			if tt.commit {
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			err := store.UnpublishRecommended(context.Background(), "a1")
			switch {
			case tt.wantErr == nil && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tt.wantErr != nil && err == nil:
				t.Fatal("expected an error")
			case errors.Is(tt.wantErr, storage.ErrNotFound) && !errors.Is(err, storage.ErrNotFound):
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestCompleteSetup_RejectsSecondSetup(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM setups\)`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := store.CompleteSetup(context.Background(), storage.SetupBundle{
		Account: account.Account{Email: "admin@example.com"},
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteSetup_WritesEverythingInOneTx(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tenants`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tenant_account_joins SET current = FALSE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO tenant_account_joins`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "owner", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO setups`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bundle, err := store.CompleteSetup(context.Background(), storage.SetupBundle{
		Account: account.Account{Email: "Admin@Example.com", Name: "admin", Status: account.StatusActive},
		Tenant:  account.Tenant{Name: "admin's Workspace"},
		Setup:   account.Setup{Version: "1.0.0"},
	})
	if err != nil {
		t.Fatalf("complete setup: %v", err)
	}
	if bundle.Account.Email != "admin@example.com" || bundle.Tenant.ID == "" || bundle.Setup.SetupAt.IsZero() {
		t.Fatalf("bundle = %+v", bundle)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJoinFirstTenant_NoTenant(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tenants\s+ORDER BY created_at ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "plan", "status", "created_at"}))
	mock.ExpectRollback()

	_, _, err := store.JoinFirstTenant(context.Background(), account.Account{Email: "x@example.com"}, account.RoleAdmin)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAccountByEmail_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM accounts WHERE lower\(email\) = \$1`).
		WithArgs("bob@example.com").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.GetAccountByEmail(context.Background(), " Bob@Example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAccount_DuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_email_key"})

	if _, err := store.CreateAccount(context.Background(), account.Account{Email: "a@example.com"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)
	owner, err := store.CreateAccount(ctx, account.Account{
		Email: "owner-" + time.Now().Format("150405.000000") + "@example.com", Name: "owner", Status: account.StatusActive,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	a, err := store.CreateApp(ctx, app.App{Name: "Integration App", Mode: app.ModeChat, CreatedBy: owner.ID})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}

	if _, err := store.PublishRecommended(ctx, recommend.RecommendedApp{AppID: a.ID, IsListed: true, Language: "en-US"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := store.PublishRecommended(ctx, recommend.RecommendedApp{AppID: a.ID, IsListed: true}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second publish err = %v, want ErrConflict", err)
	}

	listing, err := store.GetListing(ctx, a.ID)
	if err != nil || listing.OwnerEmail != owner.Email {
		t.Fatalf("listing = %+v, %v", listing, err)
	}

	if err := store.UnpublishRecommended(ctx, a.ID); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if err := store.UnpublishRecommended(ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second unpublish err = %v, want ErrNotFound", err)
	}
}
