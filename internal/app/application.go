package app

import (
	"fmt"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/services/accounts"
	"github.com/R3E-Network/marketplace_console/internal/app/services/directory"
	recommendsvc "github.com/R3E-Network/marketplace_console/internal/app/services/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/services/setup"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/app/storage/memory"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Accounts    storage.AccountStore
	Tenants     storage.TenantStore
	Setups      storage.SetupStore
	Apps        storage.AppStore
	Recommended storage.RecommendedAppStore
}

// Retrieval modes for the catalogue and detail views.
const (
	RetrievalDB      = "db"
	RetrievalBuiltin = "builtin"
)

// Options carries the non-storage settings of the application.
type Options struct {
	SelfHosted   bool
	InitPassword string
	Version      string
	CuratorEmail string

	// Directory resolves display names; nil degrades to email prefixes.
	Directory        directory.Resolver
	DirectoryTimeout time.Duration

	// Retrieval is RetrievalDB (default) or RetrievalBuiltin.
	Retrieval string
	// Builtin is the bundled catalogue; it also backs the en-US fallback.
	Builtin *recommend.BuiltinCatalogue
}

// Application ties domain services together.
type Application struct {
	log *logging.Logger

	Accounts  *accounts.Service
	Directory *directory.Service
	Recommend *recommendsvc.Service
	Setup     *setup.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.NewDefault("app")
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Tenants == nil {
		stores.Tenants = mem
	}
	if stores.Setups == nil {
		stores.Setups = mem
	}
	if stores.Apps == nil {
		stores.Apps = mem
	}
	if stores.Recommended == nil {
		stores.Recommended = mem
	}

	builtin := recommendsvc.NewBuiltinRetrieval(opts.Builtin)
	var retrieval recommendsvc.Retrieval
	switch opts.Retrieval {
	case "", RetrievalDB:
		retrieval = recommendsvc.NewDBRetrieval(stores.Recommended)
	case RetrievalBuiltin:
		if opts.Builtin == nil {
			return nil, fmt.Errorf("builtin retrieval requires a catalogue")
		}
		retrieval = builtin
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", opts.Retrieval)
	}

	if opts.Directory == nil {
		log.Warn("DIRECTORY_URL not set; usernames fall back to email prefixes")
	}
	names := directory.New(opts.Directory, opts.DirectoryTimeout, log)

	acctService := accounts.New(stores.Accounts, stores.Tenants, log)
	recService := recommendsvc.New(stores.Apps, stores.Recommended, recommendsvc.Options{
		Directory:    names,
		Retrieval:    retrieval,
		Builtin:      builtin,
		CuratorEmail: opts.CuratorEmail,
	}, log)
	setupService := setup.New(stores.Setups, stores.Tenants, acctService, setup.Config{
		SelfHosted:   opts.SelfHosted,
		InitPassword: opts.InitPassword,
		Version:      opts.Version,
	}, log)

	return &Application{
		log:       log,
		Accounts:  acctService,
		Directory: names,
		Recommend: recService,
		Setup:     setupService,
	}, nil
}
