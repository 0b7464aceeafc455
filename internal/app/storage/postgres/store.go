package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.TenantStore = (*Store)(nil)
var _ storage.SetupStore = (*Store)(nil)
var _ storage.AppStore = (*Store)(nil)
var _ storage.RecommendedAppStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// mapError converts driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Constraint)
	}
	return err
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- AccountStore -----------------------------------------------------------

type accountRow struct {
	ID                string       `db:"id"`
	Email             string       `db:"email"`
	Name              string       `db:"name"`
	PasswordHash      string       `db:"password_hash"`
	InterfaceLanguage string       `db:"interface_language"`
	Timezone          string       `db:"timezone"`
	Status            string       `db:"status"`
	LastLoginIP       string       `db:"last_login_ip"`
	InitializedAt     sql.NullTime `db:"initialized_at"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (r accountRow) toDomain() account.Account {
	acct := account.Account{
		ID:                r.ID,
		Email:             r.Email,
		Name:              r.Name,
		PasswordHash:      r.PasswordHash,
		InterfaceLanguage: r.InterfaceLanguage,
		Timezone:          r.Timezone,
		Status:            account.Status(r.Status),
		LastLoginIP:       r.LastLoginIP,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.InitializedAt.Valid {
		t := r.InitializedAt.Time
		acct.InitializedAt = &t
	}
	return acct
}

const accountColumns = `id, email, name, password_hash, interface_language, timezone, status,
	last_login_ip, initialized_at, created_at, updated_at`

func prepareAccount(acct account.Account) account.Account {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = account.NormalizeEmail(acct.Email)
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	return acct
}

func insertAccount(ctx context.Context, ext sqlx.ExtContext, acct account.Account) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, acct.ID, acct.Email, acct.Name, acct.PasswordHash, acct.InterfaceLanguage, acct.Timezone,
		string(acct.Status), acct.LastLoginIP, nullTime(acct.InitializedAt), acct.CreatedAt, acct.UpdatedAt)
	return mapError(err)
}

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	acct = prepareAccount(acct)
	if err := insertAccount(ctx, s.db, acct); err != nil {
		return account.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id); err != nil {
		return account.Account{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1`, account.NormalizeEmail(email)); err != nil {
		return account.Account{}, mapError(err)
	}
	return row.toDomain(), nil
}

// --- TenantStore ------------------------------------------------------------

type tenantRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Plan      string    `db:"plan"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (r tenantRow) toDomain() account.Tenant {
	return account.Tenant{ID: r.ID, Name: r.Name, Plan: r.Plan, Status: r.Status, CreatedAt: r.CreatedAt}
}

func prepareTenant(t account.Tenant) account.Tenant {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Plan == "" {
		t.Plan = "basic"
	}
	if t.Status == "" {
		t.Status = "normal"
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t
}

func insertTenant(ctx context.Context, ext sqlx.ExtContext, t account.Tenant) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO tenants (id, name, plan, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Plan, t.Status, t.CreatedAt)
	return mapError(err)
}

func insertMember(ctx context.Context, ext sqlx.ExtContext, m account.TenantMember) error {
	if m.Current {
		if _, err := ext.ExecContext(ctx, `
			UPDATE tenant_account_joins SET current = FALSE WHERE account_id = $1
		`, m.AccountID); err != nil {
			return mapError(err)
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := ext.ExecContext(ctx, `
		INSERT INTO tenant_account_joins (tenant_id, account_id, role, current, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.TenantID, m.AccountID, string(m.Role), m.Current, m.CreatedAt)
	return mapError(err)
}

func (s *Store) GetTenant(ctx context.Context, id string) (account.Tenant, error) {
	var row tenantRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, name, plan, status, created_at FROM tenants WHERE id = $1`, id); err != nil {
		return account.Tenant{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) CountTenants(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tenants`); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) FirstTenant(ctx context.Context) (account.Tenant, error) {
	return firstTenant(ctx, s.db)
}

func firstTenant(ctx context.Context, q sqlx.QueryerContext) (account.Tenant, error) {
	var row tenantRow
	if err := sqlx.GetContext(ctx, q, &row, `
		SELECT id, name, plan, status, created_at FROM tenants
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`); err != nil {
		return account.Tenant{}, mapError(err)
	}
	return row.toDomain(), nil
}

type memberRow struct {
	TenantID  string    `db:"tenant_id"`
	AccountID string    `db:"account_id"`
	Role      string    `db:"role"`
	Current   bool      `db:"current"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) ListMemberships(ctx context.Context, accountID string) ([]account.TenantMember, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT tenant_id, account_id, role, current, created_at
		FROM tenant_account_joins
		WHERE account_id = $1
		ORDER BY created_at
	`, accountID); err != nil {
		return nil, err
	}
	out := make([]account.TenantMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, account.TenantMember{
			TenantID: r.TenantID, AccountID: r.AccountID, Role: account.Role(r.Role),
			Current: r.Current, CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// --- SetupStore -------------------------------------------------------------

func (s *Store) GetSetup(ctx context.Context) (account.Setup, error) {
	var row struct {
		Version string    `db:"version"`
		SetupAt time.Time `db:"setup_at"`
	}
	if err := s.db.GetContext(ctx, &row, `SELECT version, setup_at FROM setups LIMIT 1`); err != nil {
		return account.Setup{}, mapError(err)
	}
	return account.Setup{Version: row.Version, SetupAt: row.SetupAt}, nil
}

func (s *Store) CompleteSetup(ctx context.Context, bundle storage.SetupBundle) (storage.SetupBundle, error) {
	acct := prepareAccount(bundle.Account)
	tenant := prepareTenant(bundle.Tenant)
	setup := bundle.Setup
	if setup.SetupAt.IsZero() {
		setup.SetupAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var taken bool
		if err := tx.GetContext(ctx, &taken, `
			SELECT EXISTS (SELECT 1 FROM setups) OR EXISTS (SELECT 1 FROM tenants)
		`); err != nil {
			return err
		}
		if taken {
			return storage.ErrConflict
		}
		if err := insertAccount(ctx, tx, acct); err != nil {
			return err
		}
		if err := insertTenant(ctx, tx, tenant); err != nil {
			return err
		}
		if err := insertMember(ctx, tx, account.TenantMember{
			TenantID: tenant.ID, AccountID: acct.ID, Role: account.RoleOwner, Current: true,
		}); err != nil {
			return err
		}
		// The singleton primary key turns a concurrent second setup into a unique violation.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO setups (singleton, version, setup_at) VALUES (TRUE, $1, $2)
		`, setup.Version, setup.SetupAt)
		return mapError(err)
	})
	if err != nil {
		return storage.SetupBundle{}, err
	}
	return storage.SetupBundle{Account: acct, Tenant: tenant, Setup: setup}, nil
}

func (s *Store) JoinFirstTenant(ctx context.Context, acct account.Account, role account.Role) (account.Account, account.Tenant, error) {
	acct = prepareAccount(acct)
	var tenant account.Tenant

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if tenant, err = firstTenant(ctx, tx); err != nil {
			return err
		}
		if err := insertAccount(ctx, tx, acct); err != nil {
			return err
		}
		return insertMember(ctx, tx, account.TenantMember{
			TenantID: tenant.ID, AccountID: acct.ID, Role: role, Current: true,
		})
	})
	if err != nil {
		return account.Account{}, account.Tenant{}, err
	}
	return acct, tenant, nil
}

// --- AppStore ---------------------------------------------------------------

func (s *Store) CreateApp(ctx context.Context, a app.App) (app.App, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apps (id, tenant_id, name, mode, icon, icon_type, icon_background, is_public, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, nullString(a.TenantID), a.Name, string(a.Mode), a.Icon, string(a.IconType), a.IconBackground,
		a.IsPublic, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return app.App{}, mapError(err)
	}
	return a, nil
}

type appRow struct {
	ID             string         `db:"id"`
	TenantID       sql.NullString `db:"tenant_id"`
	Name           string         `db:"name"`
	Mode           string         `db:"mode"`
	Icon           string         `db:"icon"`
	IconType       string         `db:"icon_type"`
	IconBackground string         `db:"icon_background"`
	IsPublic       bool           `db:"is_public"`
	CreatedBy      string         `db:"created_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r appRow) toDomain() app.App {
	return app.App{
		ID:             r.ID,
		TenantID:       r.TenantID.String,
		Name:           r.Name,
		Mode:           app.Mode(r.Mode),
		Icon:           r.Icon,
		IconType:       app.IconType(r.IconType),
		IconBackground: r.IconBackground,
		IsPublic:       r.IsPublic,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *Store) GetApp(ctx context.Context, id string) (app.App, error) {
	var row appRow
	if err := s.db.GetContext(ctx, &row, `
		SELECT id, tenant_id, name, mode, icon, icon_type, icon_background, is_public, created_by, created_at, updated_at
		FROM apps WHERE id = $1
	`, id); err != nil {
		return app.App{}, mapError(err)
	}
	return row.toDomain(), nil
}

// --- RecommendedAppStore ----------------------------------------------------

type recommendedRow struct {
	ID               string    `db:"id"`
	AppID            string    `db:"app_id"`
	Description      string    `db:"description"`
	Copyright        string    `db:"copyright"`
	PrivacyPolicy    string    `db:"privacy_policy"`
	CustomDisclaimer string    `db:"custom_disclaimer"`
	Category         string    `db:"category"`
	Position         int       `db:"position"`
	IsListed         bool      `db:"is_listed"`
	Language         string    `db:"language"`
	InstallCount     int       `db:"install_count"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r recommendedRow) toDomain() recommend.RecommendedApp {
	return recommend.RecommendedApp{
		ID:               r.ID,
		AppID:            r.AppID,
		Description:      r.Description,
		Copyright:        r.Copyright,
		PrivacyPolicy:    r.PrivacyPolicy,
		CustomDisclaimer: r.CustomDisclaimer,
		Category:         r.Category,
		Position:         r.Position,
		IsListed:         r.IsListed,
		Language:         r.Language,
		InstallCount:     r.InstallCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type listingRow struct {
	recommendedRow
	AppTenantID       sql.NullString `db:"app_tenant_id"`
	AppName           string         `db:"app_name"`
	AppMode           string         `db:"app_mode"`
	AppIcon           string         `db:"app_icon"`
	AppIconType       string         `db:"app_icon_type"`
	AppIconBackground string         `db:"app_icon_background"`
	AppIsPublic       bool           `db:"app_is_public"`
	AppCreatedBy      string         `db:"app_created_by"`
	AppCreatedAt      time.Time      `db:"app_created_at"`
	AppUpdatedAt      time.Time      `db:"app_updated_at"`
	OwnerEmail        string         `db:"owner_email"`
}

func (r listingRow) toDomain() recommend.Listing {
	return recommend.Listing{
		Recommended: r.recommendedRow.toDomain(),
		App: appRow{
			ID: r.AppID, TenantID: r.AppTenantID, Name: r.AppName, Mode: r.AppMode, Icon: r.AppIcon,
			IconType: r.AppIconType, IconBackground: r.AppIconBackground, IsPublic: r.AppIsPublic,
			CreatedBy: r.AppCreatedBy, CreatedAt: r.AppCreatedAt, UpdatedAt: r.AppUpdatedAt,
		}.toDomain(),
		OwnerEmail: r.OwnerEmail,
	}
}

const recommendedColumns = `id, app_id, description, copyright, privacy_policy, custom_disclaimer,
	category, position, is_listed, language, install_count, created_at, updated_at`

const listingSelect = `
	SELECT r.id, r.app_id, r.description, r.copyright, r.privacy_policy, r.custom_disclaimer,
		r.category, r.position, r.is_listed, r.language, r.install_count, r.created_at, r.updated_at,
		a.tenant_id AS app_tenant_id, a.name AS app_name, a.mode AS app_mode, a.icon AS app_icon,
		a.icon_type AS app_icon_type, a.icon_background AS app_icon_background,
		a.is_public AS app_is_public, a.created_by AS app_created_by,
		a.created_at AS app_created_at, a.updated_at AS app_updated_at,
		acc.email AS owner_email`

const listingFrom = `
	FROM recommended_apps r
	JOIN apps a ON a.id = r.app_id
	JOIN accounts acc ON acc.id = a.created_by
	WHERE r.is_listed = TRUE AND a.is_public = TRUE`

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) ListRecommended(ctx context.Context, filter recommend.ListFilter) ([]recommend.Listing, int, error) {
	filter = filter.Normalize()

	where := listingFrom
	var args []interface{}
	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		where += fmt.Sprintf(" AND a.name ILIKE $%d", len(args))
	}
	args = append(args, account.NormalizeEmail(filter.CuratorEmail))
	if filter.Mode == recommend.ModeCommunity {
		where += fmt.Sprintf(" AND lower(acc.email) <> $%d", len(args))
	} else {
		where += fmt.Sprintf(" AND lower(acc.email) = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*)`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count recommended apps: %w", err)
	}

	pageArgs := append(append([]interface{}(nil), args...), filter.PerPage, filter.Offset())
	query := listingSelect + where + fmt.Sprintf(
		" ORDER BY r.created_at DESC, r.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, query, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("list recommended apps: %w", err)
	}

	out := make([]recommend.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, total, nil
}

func (s *Store) GetRecommendedByAppID(ctx context.Context, appID string) (recommend.RecommendedApp, error) {
	var row recommendedRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+recommendedColumns+` FROM recommended_apps WHERE app_id = $1`, appID); err != nil {
		return recommend.RecommendedApp{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetListing(ctx context.Context, appID string) (recommend.Listing, error) {
	var row listingRow
	if err := s.db.GetContext(ctx, &row, listingSelect+listingFrom+` AND r.app_id = $1`, appID); err != nil {
		return recommend.Listing{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListCatalogue(ctx context.Context, language string) ([]recommend.Listing, error) {
	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, listingSelect+listingFrom+`
		AND r.language = $1
		ORDER BY r.position ASC, r.created_at DESC
	`, language); err != nil {
		return nil, fmt.Errorf("list catalogue: %w", err)
	}
	out := make([]recommend.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) PublishRecommended(ctx context.Context, rec recommend.RecommendedApp) (recommend.RecommendedApp, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE apps SET is_public = TRUE, updated_at = $2 WHERE id = $1
		`, rec.AppID, now)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return storage.ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO recommended_apps (`+recommendedColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, rec.ID, rec.AppID, rec.Description, rec.Copyright, rec.PrivacyPolicy, rec.CustomDisclaimer,
			rec.Category, rec.Position, rec.IsListed, rec.Language, rec.InstallCount, rec.CreatedAt, rec.UpdatedAt)
		return mapError(err)
	})
	if err != nil {
		return recommend.RecommendedApp{}, err
	}
	return rec, nil
}

func (s *Store) UnpublishRecommended(ctx context.Context, appID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM recommended_apps WHERE app_id = $1`, appID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		switch {
		case rows == 0:
			return storage.ErrNotFound
		case rows > 1:
			return fmt.Errorf("unpublish %s: expected one recommended app, found %d", appID, rows)
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
