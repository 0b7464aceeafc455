package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	app "github.com/R3E-Network/marketplace_console/internal/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/metrics"
	"github.com/R3E-Network/marketplace_console/internal/app/services/accounts"
	recommendsvc "github.com/R3E-Network/marketplace_console/internal/app/services/recommend"
	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/httputil"
	"github.com/R3E-Network/marketplace_console/internal/logging"
	"github.com/R3E-Network/marketplace_console/internal/middleware"
)

// DirectoryStatusHeader reports how listing usernames were resolved.
const DirectoryStatusHeader = "X-Directory-Status"

const appIDPattern = "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"

// Config configures the HTTP surface.
type Config struct {
	APIPrefix      string
	JWTSecret      []byte
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	InsertAPIKey   string
	FilesURL       string
	// Audit receives admin actions; nil keeps them in memory only.
	Audit *AuditLog
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	log   *logging.Logger
	dto   serializer
	audit *AuditLog
}

// NewHandler returns the router exposing the console API.
func NewHandler(application *app.Application, cfg Config, log *logging.Logger) http.Handler {
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	if cfg.Audit == nil {
		cfg.Audit = NewAuditLog(0, nil)
	}
	h := &handler{app: application, log: log, dto: serializer{filesURL: cfg.FilesURL}, audit: cfg.Audit}

	r := mux.NewRouter()
	r.Use(
		middleware.LoggingMiddleware(log),
		middleware.MetricsMiddleware(metrics.HTTPRecorder{}),
		middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log).Handler,
	)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix(cfg.APIPrefix).Subrouter()
	if cfg.APIPrefix == "" {
		api = r.NewRoute().Subrouter()
	}

	api.HandleFunc("/setup", h.setupStatus).Methods(http.MethodGet)
	api.HandleFunc("/setup", h.setup).Methods(http.MethodPost)
	api.HandleFunc("/init", h.initStatus).Methods(http.MethodGet)
	api.HandleFunc("/init", h.initValidate).Methods(http.MethodPost)
	api.Handle("/insert", middleware.RequireAPIKey(cfg.InsertAPIKey, log)(http.HandlerFunc(h.insert))).Methods(http.MethodPost)

	explore := api.PathPrefix("/explore/apps").Subrouter()
	explore.Use(
		middleware.NewAuthMiddleware(cfg.JWTSecret, log, nil).Handler,
		middleware.RequireInitializedAccount(application.Accounts, log),
	)
	explore.HandleFunc("", h.listApps).Methods(http.MethodGet)
	explore.HandleFunc("", h.publishApp).Methods(http.MethodPost)
	explore.HandleFunc("/categories", h.catalogue).Methods(http.MethodGet)
	explore.HandleFunc("/{app_id:"+appIDPattern+"}", h.appDetail).Methods(http.MethodGet)
	explore.HandleFunc("/{app_id:"+appIDPattern+"}", h.unpublishApp).Methods(http.MethodDelete)

	// CORS wraps the router so preflight requests never reach route matching.
	return middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(r)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Explore
// =============================================================================

func (h *handler) listApps(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListQuery(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	page, err := h.app.Recommend.List(r.Context(), filter)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("list recommended apps")
		httputil.WriteServiceError(w, r, err)
		return
	}
	if page.NameStatus != "" {
		w.Header().Set(DirectoryStatusHeader, page.NameStatus)
	}
	httputil.WriteJSON(w, http.StatusOK, h.dto.page(page))
}

// parseListQuery validates page, limit and mode before the service sees them.
func parseListQuery(r *http.Request) (recommend.ListFilter, error) {
	q := r.URL.Query()
	page, err := intArg(q.Get("page"), 1, 1, recommend.MaxPage, "page")
	if err != nil {
		return recommend.ListFilter{}, err
	}
	limit, err := intArg(q.Get("limit"), recommend.DefaultPerPage, 1, recommend.MaxPerPage, "limit")
	if err != nil {
		return recommend.ListFilter{}, err
	}
	mode, ok := recommend.ParseMode(q.Get("mode"))
	if !ok {
		return recommend.ListFilter{}, errors.Validation("mode must be one of community, recommended").WithDetails("field", "mode")
	}
	return recommend.ListFilter{Page: page, PerPage: limit, Mode: mode, Name: q.Get("name")}, nil
}

func intArg(raw string, def, min, max int, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, errors.Validation(field+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)).WithDetails("field", field)
	}
	return n, nil
}

func (h *handler) publishApp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AppID       string `json:"app_id"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	if _, err := uuid.Parse(payload.AppID); err != nil {
		httputil.WriteServiceError(w, r, errors.Validation("app_id must be a UUID").WithDetails("field", "app_id"))
		return
	}

	rec, err := h.app.Recommend.Publish(r.Context(), recommendsvc.PublishRequest{
		AppID:       payload.AppID,
		Description: payload.Description,
		Category:    payload.Category,
	})
	h.audit.Record(r, "publish", payload.AppID, err)
	if err != nil {
		if errors.Is(err, errors.CodeConflict) {
			httputil.WriteJSON(w, http.StatusConflict, map[string]string{"message": recommendsvc.AlreadyPublishedMessage})
			return
		}
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
}

func (h *handler) unpublishApp(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]
	err := h.app.Recommend.Unpublish(r.Context(), appID)
	h.audit.Record(r, "unpublish", appID, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) appDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.app.Recommend.Detail(r.Context(), mux.Vars(r)["app_id"], h.language(r))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.dto.detail(detail))
}

func (h *handler) catalogue(w http.ResponseWriter, r *http.Request) {
	cat, err := h.app.Recommend.Catalogue(r.Context(), h.language(r))
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("load catalogue")
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.dto.catalogue(cat))
}

func (h *handler) language(r *http.Request) string {
	if acct, ok := middleware.CurrentAccount(r.Context()); ok {
		return recommendsvc.ResolveLanguage(r.URL.Query().Get("language"), &acct)
	}
	return recommendsvc.ResolveLanguage(r.URL.Query().Get("language"), nil)
}

// =============================================================================
// Setup
// =============================================================================

func (h *handler) setupStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.Setup.Status(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.dto.setupStatus(st))
}

func (h *handler) setup(w http.ResponseWriter, r *http.Request) {
	var reg accounts.Registration
	if !httputil.DecodeJSON(w, r, &reg) {
		return
	}
	err := h.app.Setup.Setup(r.Context(), reg, httputil.ClientIP(r))
	h.audit.Record(r, "setup", reg.Email, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"result": "success"})
}

func (h *handler) initStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Setup.InitStatus(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *handler) initValidate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Password string `json:"password"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	err := h.app.Setup.ValidateInit(r.Context(), payload.Password)
	h.audit.Record(r, "init", "", err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"result": "success"})
}

func (h *handler) insert(w http.ResponseWriter, r *http.Request) {
	var reg accounts.Registration
	if !httputil.DecodeJSON(w, r, &reg) {
		return
	}
	if err := reg.Validate(); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	res, err := h.app.Setup.Insert(r.Context(), reg, httputil.ClientIP(r))
	h.audit.Record(r, "insert", reg.Email, err)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.dto.insert(res))
}
