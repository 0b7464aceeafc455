// Package runtime wires configuration, storage and the HTTP server into a
// running console process.
package runtime

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/lib/pq"

	app "github.com/R3E-Network/marketplace_console/internal/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/httpapi"
	"github.com/R3E-Network/marketplace_console/internal/app/services/directory"
	"github.com/R3E-Network/marketplace_console/internal/app/storage/postgres"
	"github.com/R3E-Network/marketplace_console/internal/config"
	"github.com/R3E-Network/marketplace_console/internal/httputil"
	"github.com/R3E-Network/marketplace_console/internal/logging"
	"github.com/R3E-Network/marketplace_console/internal/platform/migrations"
)

// Version is stamped on the setup record; set with -ldflags at build time.
var Version = "dev"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logging.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	closers    []func() error
}

// NewApplication constructs the process from cfg.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("console", cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, log: log}

	stores, err := a.buildStores(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	opts := app.Options{
		SelfHosted:       cfg.SelfHosted(),
		InitPassword:     cfg.Setup.InitPassword,
		Version:          Version,
		CuratorEmail:     cfg.Recommend.CuratorEmail,
		DirectoryTimeout: cfg.Directory.Timeout,
		Retrieval:        cfg.Recommend.Mode,
	}
	if opts.Builtin, err = loadCatalogue(cfg.Recommend.BuiltinFile); err != nil {
		a.close()
		return nil, err
	}
	if opts.Directory, err = a.buildResolver(); err != nil {
		a.close()
		return nil, err
	}

	a.app, err = app.New(stores, opts, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build application: %w", err)
	}

	secret, err := parseSigningKey(cfg.Auth.JWTSecret)
	if err != nil {
		log.WithError(err).Warn("JWT_SECRET unusable; explore endpoints will reject every token")
	}
	audit, err := a.buildAudit()
	if err != nil {
		a.close()
		return nil, err
	}

	handler := httpapi.NewHandler(a.app, httpapi.Config{
		APIPrefix:      cfg.Server.APIPrefix,
		JWTSecret:      secret,
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		InsertAPIKey:   cfg.Setup.InsertAPIKey,
		FilesURL:       cfg.Server.FilesURL,
		Audit:          audit,
	}, log)

	a.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.log.WithField("addr", a.httpServer.Addr).Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server and releases resources.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.close()
	return nil
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("error releasing resource")
		}
	}
	a.closers = nil
}

// buildStores returns postgres stores when DATABASE_URL is set and the
// in-memory defaults otherwise.
func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	if a.cfg.Database.URL == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil
	}

	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return app.Stores{}, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	switch a.cfg.Database.MigrationsMode {
	case config.MigrationsApply:
		err = migrations.Apply(ctx, db)
	case config.MigrationsVersioned:
		err = migrations.Up(db)
	}
	if err != nil {
		return app.Stores{}, fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Accounts:    store,
		Tenants:     store,
		Setups:      store,
		Apps:        store,
		Recommended: store,
	}, nil
}

// buildResolver returns nil when no directory is configured.
func (a *Application) buildResolver() (directory.Resolver, error) {
	dir := a.cfg.Directory
	if strings.TrimSpace(dir.URL) == "" {
		return nil, nil
	}
	client := httputil.NewClient(httputil.ClientConfig{BaseURL: dir.URL, APIKey: dir.APIKey, Timeout: dir.Timeout})
	resolver, err := directory.NewHTTPResolver(dir.URL, dir.APIKey, client)
	if err != nil {
		return nil, fmt.Errorf("configure directory: %w", err)
	}
	if dir.RedisURL == "" {
		return resolver, nil
	}

	redisClient, err := directory.NewRedisClient(dir.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redisClient.Close)
	return directory.NewCachedResolver(resolver, directory.NewRedisCache(redisClient), dir.CacheTTL, a.log), nil
}

func (a *Application) buildAudit() (*httpapi.AuditLog, error) {
	sink, err := httpapi.NewFileAuditSink(a.cfg.Server.AuditLogFile)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	if sink == nil {
		return httpapi.NewAuditLog(0, nil), nil
	}
	a.closers = append(a.closers, sink.Close)
	return httpapi.NewAuditLog(0, sink), nil
}

func loadCatalogue(path string) (*recommend.BuiltinCatalogue, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadBuiltinCatalogue(path)
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// parseSigningKey accepts a raw secret or a "base64:" / "hex:" encoded one.
// Keys shorter than 16 bytes are rejected.
func parseSigningKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("missing signing key")
	}

	var key []byte
	switch {
	case strings.HasPrefix(value, "base64:"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "base64:"))
		if err != nil {
			return nil, fmt.Errorf("decode base64 key: %w", err)
		}
		key = decoded
	case strings.HasPrefix(value, "hex:"):
		decoded, err := hex.DecodeString(strings.TrimPrefix(value, "hex:"))
		if err != nil {
			return nil, fmt.Errorf("decode hex key: %w", err)
		}
		key = decoded
	default:
		key = []byte(value)
	}

	if len(key) < 16 {
		return nil, errors.New("signing key must be at least 16 bytes")
	}
	return key, nil
}
