package admin

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/platformparam"
)

const (
	defaultAuditLimit        = 50
	maxAuditLimit            = 500
	defaultParamHistoryLimit = 20
)

// auditEventResponse wraps a paginated list of audit events.
type auditEventResponse struct {
	Data    []audit.Event `json:"data"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
}

// paramHistoryResponse lists the rule-set revisions of a parameter.
type paramHistoryResponse struct {
	Name      string                   `json:"name"`
	Revisions []platformparam.Revision `json:"revisions"`
}

// csrfTokenResponse carries a CSRF token for the session user.
type csrfTokenResponse struct {
	Token string `json:"token"`
}

// getCSRFToken handles GET /csrfhandler.
//
// @Summary      Get a CSRF token
// @Description  Returns a CSRF token bound to the session user. Send it in the X-CSRFToken header of POST and PUT requests.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  csrfTokenResponse
// @Failure      401  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /csrfhandler [get]
func (h *Handler) getCSRFToken(w http.ResponseWriter, r *http.Request) {
	if h.deps.CSRF == nil {
		writeJSON(w, http.StatusOK, csrfTokenResponse{})
		return
	}
	caller := GetUser(r.Context())
	writeJSON(w, http.StatusOK, csrfTokenResponse{Token: h.deps.CSRF.Generate(caller.UserID)})
}

// listAuditEvents handles GET /adminaudithandler.
//
// @Summary      List audit events
// @Description  Returns audit events, newest first, with optional filtering.
// @Tags         Audit
// @Produce      json
// @Param        user_id     query  string   false  "Filter by acting user ID"
// @Param        action      query  string   false  "Filter by action"
// @Param        target      query  string   false  "Filter by target"
// @Param        success     query  boolean  false  "Filter by success/failure"
// @Param        start_time  query  string   false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string   false  "Events before this time (RFC 3339)"
// @Param        limit       query  integer  false  "Page size (default: 50, max: 500)"
// @Param        offset      query  integer  false  "Events to skip"
// @Success      200  {object}  auditEventResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminaudithandler [get]
func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		UserID:    q.Get("user_id"),
		Action:    q.Get("action"),
		Target:    q.Get("target"),
		StartTime: parseTimeParam(q, "start_time"),
		EndTime:   parseTimeParam(q, "end_time"),
		Limit:     parseIntParam(q, "limit", defaultAuditLimit),
		Offset:    parseIntParam(q, "offset", 0),
	}
	if v := q.Get("success"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Success = &b
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	filter.Limit = min(filter.Limit, maxAuditLimit)
	filter.Offset = max(filter.Offset, 0)

	// One extra row tells whether another page exists.
	pageSize := filter.Limit
	filter.Limit++
	events, err := h.deps.Audit.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("querying audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query audit events")
		return
	}

	hasMore := len(events) > pageSize
	if hasMore {
		events = events[:pageSize]
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, auditEventResponse{
		Data:    events,
		Limit:   pageSize,
		Offset:  filter.Offset,
		HasMore: hasMore,
	})
}

// listParamHistory handles GET /adminparamhistoryhandler.
//
// @Summary      List platform parameter history
// @Description  Returns the rule-set revisions of one platform parameter, newest first.
// @Tags         Audit
// @Produce      json
// @Param        name   query  string   true   "Platform parameter name"
// @Param        limit  query  integer  false  "Maximum revisions (default: 20)"
// @Success      200  {object}  paramHistoryResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminparamhistoryhandler [get]
func (h *Handler) listParamHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing key in handler args: name.")
		return
	}
	limit := parseIntParam(q, "limit", defaultParamHistoryLimit)
	if limit <= 0 {
		limit = defaultParamHistoryLimit
	}

	revs, err := h.deps.Params.History(r.Context(), name, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if revs == nil {
		revs = []platformparam.Revision{}
	}
	writeJSON(w, http.StatusOK, paramHistoryResponse{Name: name, Revisions: revs})
}

// parseTimeParam parses an RFC 3339 query parameter, ignoring bad values.
func parseTimeParam(q url.Values, key string) *time.Time {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// parseIntParam parses an integer query parameter, falling back to def.
func parseIntParam(q url.Values, key string, def int) int {
	if v := q.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
