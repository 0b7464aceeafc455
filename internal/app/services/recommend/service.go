// Package recommend serves the explore marketplace: the paginated listing,
// publishing, and the catalogue and detail views.
package recommend

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/metrics"
	"github.com/R3E-Network/marketplace_console/internal/app/services/directory"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

// AlreadyPublishedMessage is the message returned for duplicate publishes.
const AlreadyPublishedMessage = "Recommended app already exists"

// Service implements the explore operations.
type Service struct {
	apps      storage.AppStore
	recs      storage.RecommendedAppStore
	names     *directory.Service
	retrieval Retrieval
	builtin   *BuiltinRetrieval
	curator   string
	log       *logging.Logger
}

// Options configures a Service.
type Options struct {
	// Directory resolves owner display names. Nil degrades to email prefixes.
	Directory *directory.Service
	// Retrieval backs Catalogue and Detail. Defaults to DBRetrieval.
	Retrieval Retrieval
	// Builtin is the en-US fallback for empty catalogues.
	Builtin *BuiltinRetrieval
	// CuratorEmail owns the apps shown in recommended mode.
	CuratorEmail string
}

// New constructs the explore service.
func New(apps storage.AppStore, recs storage.RecommendedAppStore, opts Options, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("recommend")
	}
	if opts.Directory == nil {
		opts.Directory = directory.New(nil, 0, log)
	}
	if opts.Retrieval == nil {
		opts.Retrieval = NewDBRetrieval(recs)
	}
	if opts.Builtin == nil {
		opts.Builtin = NewBuiltinRetrieval(nil)
	}
	curator := account.NormalizeEmail(opts.CuratorEmail)
	if curator == "" {
		curator = recommend.DefaultCuratorEmail
	}
	return &Service{
		apps:      apps,
		recs:      recs,
		names:     opts.Directory,
		retrieval: opts.Retrieval,
		builtin:   opts.Builtin,
		curator:   curator,
		log:       log,
	}
}

// List returns one page of listed, public apps with owner display names.
// Directory failures degrade the names and never fail the call.
func (s *Service) List(ctx context.Context, filter recommend.ListFilter) (recommend.Page, error) {
	filter.CuratorEmail = s.curator
	filter = filter.Normalize()

	listings, total, err := s.recs.ListRecommended(ctx, filter)
	if err != nil {
		return recommend.Page{}, fmt.Errorf("list recommended apps: %w", err)
	}

	emails := make([]string, 0, len(listings))
	for _, l := range listings {
		emails = append(emails, l.OwnerEmail)
	}
	lookup := s.names.Lookup(ctx, emails)

	items := make([]recommend.Item, 0, len(listings))
	for _, l := range listings {
		items = append(items, recommend.Item{Listing: l, Username: lookup.Name(l.OwnerEmail)})
	}
	return recommend.Page{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		NameStatus: string(lookup.Status),
	}, nil
}

// PublishRequest lists an App in the marketplace.
type PublishRequest struct {
	AppID       string
	Description string
	Category    string
}

// Publish creates the listing for req.AppID and makes the App public.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (recommend.RecommendedApp, error) {
	rec, err := s.publish(ctx, req)
	metrics.RecordRecommendedChange("publish", outcome(err))
	return rec, err
}

func (s *Service) publish(ctx context.Context, req PublishRequest) (recommend.RecommendedApp, error) {
	appID := strings.TrimSpace(req.AppID)
	if appID == "" {
		return recommend.RecommendedApp{}, errors.Validation("app_id is required")
	}

	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return recommend.RecommendedApp{}, errors.NotFound("App not found")
		}
		return recommend.RecommendedApp{}, fmt.Errorf("get app %s: %w", appID, err)
	}

	switch _, err := s.recs.GetRecommendedByAppID(ctx, appID); {
	case err == nil:
		return recommend.RecommendedApp{}, errors.Conflict(AlreadyPublishedMessage)
	case !stderrors.Is(err, storage.ErrNotFound):
		return recommend.RecommendedApp{}, fmt.Errorf("get recommended app %s: %w", appID, err)
	}

	created, err := s.recs.PublishRecommended(ctx, recommend.RecommendedApp{
		AppID:         appID,
		Description:   req.Description,
		Category:      req.Category,
		Copyright:     recommend.DefaultCopyright,
		PrivacyPolicy: recommend.DefaultPrivacyPolicy,
		IsListed:      true,
		Language:      account.DefaultLanguage(),
	})
	switch {
	case stderrors.Is(err, storage.ErrConflict):
		return recommend.RecommendedApp{}, errors.Conflict(AlreadyPublishedMessage)
	case stderrors.Is(err, storage.ErrNotFound):
		return recommend.RecommendedApp{}, errors.NotFound("App not found")
	case err != nil:
		s.log.WithContext(ctx).WithError(err).WithField("app_id", appID).Error("publish recommended app")
		return recommend.RecommendedApp{}, fmt.Errorf("publish recommended app %s: %w", appID, err)
	}

	s.log.WithContext(ctx).WithField("app_id", appID).WithField("recommended_app_id", created.ID).Info("recommended app published")
	return created, nil
}

// Unpublish removes the listing for appID. Persistence failures are returned.
func (s *Service) Unpublish(ctx context.Context, appID string) error {
	err := s.recs.UnpublishRecommended(ctx, appID)
	metrics.RecordRecommendedChange("unpublish", outcome(err))
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.NotFound("Recommended app not found")
	case err != nil:
		s.log.WithContext(ctx).WithError(err).WithField("app_id", appID).Error("unpublish recommended app rolled back")
		return fmt.Errorf("unpublish recommended app %s: %w", appID, err)
	}
	s.log.WithContext(ctx).WithField("app_id", appID).Info("recommended app unpublished")
	return nil
}

// Detail returns the detail view of appID.
func (s *Service) Detail(ctx context.Context, appID, language string) (recommend.Detail, error) {
	detail, err := s.retrieval.Detail(ctx, appID, language)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return recommend.Detail{}, errors.NotFound("Recommended app not found")
		}
		return recommend.Detail{}, fmt.Errorf("recommended app detail %s: %w", appID, err)
	}
	return detail, nil
}

// Catalogue returns the apps and categories for language, falling back to
// the builtin default-language catalogue when nothing is listed.
func (s *Service) Catalogue(ctx context.Context, language string) (recommend.Catalogue, error) {
	cat, err := s.retrieval.Catalogue(ctx, language)
	if err != nil {
		return recommend.Catalogue{}, err
	}
	if len(cat.Apps) == 0 && language != account.DefaultLanguage() {
		return s.builtin.Catalogue(ctx, account.DefaultLanguage())
	}
	return cat, nil
}

// ResolveLanguage picks the query language when supported, then the
// account's interface language, then the default.
func ResolveLanguage(query string, acct *account.Account) string {
	if account.SupportedLanguage(query) {
		return query
	}
	if acct != nil && account.SupportedLanguage(acct.InterfaceLanguage) {
		return acct.InterfaceLanguage
	}
	return account.DefaultLanguage()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, errors.CodeConflict):
		return "conflict"
	case errors.Is(err, errors.CodeNotFound):
		return "not_found"
	case errors.Is(err, errors.CodeValidation):
		return "invalid"
	case stderrors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
