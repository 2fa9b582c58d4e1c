// Package admin provides the super-admin REST endpoints.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/metrics"
	"github.com/alice21mota/oppia/pkg/platformparam"
	"github.com/alice21mota/oppia/pkg/user"
)

// ParamRegistry manages platform parameters.
type ParamRegistry interface {
	All(ctx context.Context) ([]platformparam.Parameter, error)
	UpdateRules(ctx context.Context, name, committerID, commitMessage string, rules []platformparam.Rule, defaultValue any) error
	History(ctx context.Context, name string, limit int) ([]platformparam.Revision, error)
}

// Mailer sends administrative mail.
type Mailer interface {
	SendDummyMailToAdmin(ctx context.Context) error
}

// Deps holds dependencies for the admin handler.
type Deps struct {
	Users   *user.Service
	Content *content.Service
	Params  ParamRegistry
	Mailer  Mailer
	Audit   audit.Logger
	Metrics *metrics.Metrics

	Authenticator auth.Authenticator
	CSRF          *auth.CSRF

	// DevMode enables demo-data and dummy-data actions.
	DevMode   bool
	RateLimit RateLimitConfig
	Logger    *slog.Logger
}

// Handler provides the admin REST endpoints.
type Handler struct {
	mux     *http.ServeMux
	deps    Deps
	logger  *slog.Logger
	handler http.Handler
}

// NewHandler creates the admin handler with its middleware chain:
// metrics, rate limiting, authentication and CSRF protection.
func NewHandler(deps Deps) *Handler {
	if deps.Audit == nil {
		deps.Audit = audit.NoopLogger{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &Handler{
		mux:    http.NewServeMux(),
		deps:   deps,
		logger: deps.Logger,
	}
	h.registerRoutes()

	var chain http.Handler = h.mux
	chain = requireCSRF(deps.CSRF)(chain)
	chain = requireSuperAdmin(deps.Authenticator, deps.Users, deps.Metrics)(chain)
	if deps.RateLimit.RequestsPerSecond > 0 {
		chain = newCallerLimiter(deps.RateLimit).middleware(chain)
	}
	if deps.Metrics != nil {
		chain = deps.Metrics.Middleware(chain)
	}
	h.handler = chain
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// registerRoutes registers all admin routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /csrfhandler", h.getCSRFToken)

	h.mux.HandleFunc("GET /adminhandler", h.getAdminPage)
	h.mux.HandleFunc("POST /adminhandler", h.postAdminAction)

	h.mux.HandleFunc("PUT /adminsuperadminhandler", h.grantSuperAdmin)
	h.mux.HandleFunc("DELETE /adminsuperadminhandler", h.revokeSuperAdmin)

	h.mux.HandleFunc("GET /adminrolehandler", h.viewRoles)
	h.mux.HandleFunc("PUT /adminrolehandler", h.addRole)
	h.mux.HandleFunc("DELETE /adminrolehandler", h.removeRole)
	h.mux.HandleFunc("PUT /topicmanagerrolehandler", h.updateTopicManager)
	h.mux.HandleFunc("PUT /translationcoordinatorrolehandler", h.updateTranslationCoordinator)
	h.mux.HandleFunc("PUT /bannedusershandler", h.banUser)
	h.mux.HandleFunc("DELETE /bannedusershandler", h.unbanUser)

	h.mux.HandleFunc("PUT /updateusernamehandler", h.updateUsername)
	h.mux.HandleFunc("GET /numberofdeletionrequestshandler", h.countDeletionRequests)
	h.mux.HandleFunc("GET /verifyusermodelsdeletedhandler", h.verifyUserModelsDeleted)
	h.mux.HandleFunc("DELETE /deleteuserhandler", h.deleteUser)

	h.mux.HandleFunc("PUT /regeneratetopicsummarieshandler", h.regenerateTopicSummaries)
	h.mux.HandleFunc("PUT /updateblogpostdatahandler", h.updateBlogPostData)
	h.mux.HandleFunc("GET /explorationdataextractionhandler", h.extractAnswers)
	h.mux.HandleFunc("GET /interactions", h.interactionsByExploration)
	h.mux.HandleFunc("GET /admintopicscsvdownloadhandler", h.downloadTopicSimilarities)
	h.mux.HandleFunc("POST /senddummymailtoadminhandler", h.sendDummyMail)

	h.mux.HandleFunc("GET /adminaudithandler", h.listAuditEvents)
	h.mux.HandleFunc("GET /adminparamhistoryhandler", h.listParamHistory)
}

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// emptyResponse is returned by operations without a result.
type emptyResponse struct{}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, StatusCode: status})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service error to its status and writes it.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("admin request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, apperr.Message(err))
}

// recordAction audits and counts an admin operation.
func (h *Handler) recordAction(ctx context.Context, action, target string, params map[string]any, err error) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordAdminAction(action, err == nil)
	}
	fields := map[string]any{"action": action}
	for k, v := range params {
		fields[k] = v
	}
	h.logAudit(ctx, audit.ActionAdminAction, target, fields, err)
}

// logAudit writes one audit event attributed to the caller.
func (h *Handler) logAudit(ctx context.Context, action, target string, params map[string]any, err error) {
	errMsg := ""
	if err != nil {
		errMsg = apperr.Message(err)
	}
	event := audit.NewEvent(action).
		WithTarget(target).
		WithParameters(params).
		WithResult(err == nil, errMsg, 0)
	if caller := GetUser(ctx); caller != nil {
		event.WithUser(caller.UserID, caller.Email)
	}
	if logErr := h.deps.Audit.Log(ctx, *event); logErr != nil {
		h.logger.Error("audit log failed", "action", action, "error", logErr)
	}
}
