package admin

import (
	"net/http"
	"strconv"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/handlerargs"
	"github.com/alice21mota/oppia/pkg/user"
)

const topicSimilaritiesFilename = "topic_similarities.csv"

var (
	blogPostDataArgs = handlerargs.Spec{
		{Name: "blog_post_id", Kind: handlerargs.String},
		{Name: "author_username", Kind: handlerargs.String},
		{Name: "published_on", Kind: handlerargs.String},
	}
	extractAnswersArgs = handlerargs.Spec{
		{Name: "exp_id", Kind: handlerargs.String},
		{Name: "exp_version", Kind: handlerargs.Int},
		{Name: "state_name", Kind: handlerargs.String},
		{Name: "num_answers", Kind: handlerargs.Int},
	}
	interactionsArgs = handlerargs.Spec{
		{Name: "exp_id", Kind: handlerargs.String},
	}
)

type answersResponse struct {
	Data []content.SubmittedAnswer `json:"data"`
}

type interactionsResponse struct {
	InteractionIDs []string `json:"interaction_ids"`
}

// regenerateTopicSummaries handles PUT /regeneratetopicsummarieshandler.
//
// @Summary      Regenerate topic summaries
// @Description  Recomputes the summary of every topic.
// @Tags         Content
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /regeneratetopicsummarieshandler [put]
func (h *Handler) regenerateTopicSummaries(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Content.RegenerateTopicSummaries(r.Context())
	h.logAudit(r.Context(), audit.ActionTopicSummariesRebuild, "topics", map[string]any{"count": n}, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// updateBlogPostData handles PUT /updateblogpostdatahandler.
//
// @Summary      Update blog post data
// @Description  Reassigns a blog post to another author and sets its publication date (mm/dd/yyyy). The author must hold BLOG_ADMIN or BLOG_POST_EDITOR.
// @Tags         Content
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /updateblogpostdatahandler [put]
func (h *Handler) updateBlogPostData(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, blogPostDataArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	postID := args.String("blog_post_id")

	author, err := h.deps.Users.GetByUsername(ctx, args.String("author_username"))
	if err != nil {
		if apperr.IsNotFound(err) {
			err = apperr.NotFound("Invalid username: %s", args.String("author_username"))
		}
		h.writeServiceError(w, r, err)
		return
	}
	if !author.HasRole(user.RoleBlogAdmin) && !author.HasRole(user.RoleBlogPostEditor) {
		writeError(w, http.StatusUnauthorized, "User does not have enough rights to be blog post author.")
		return
	}

	err = h.deps.Content.UpdateBlogPostData(ctx, postID, author.ID, args.String("published_on"))
	h.logAudit(ctx, audit.ActionBlogPostUpdate, postID, map[string]any{
		"author_id":    author.ID,
		"published_on": args.String("published_on"),
	}, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// extractAnswers handles GET /explorationdataextractionhandler.
//
// @Summary      Extract submitted answers
// @Description  Returns up to num_answers answers submitted to a state of an exploration version. num_answers=0 returns all.
// @Tags         Content
// @Produce      json
// @Param        exp_id       query  string   true  "Exploration ID"
// @Param        exp_version  query  integer  true  "Exploration version"
// @Param        state_name   query  string   true  "State name"
// @Param        num_answers  query  integer  true  "Maximum number of answers"
// @Success      200  {object}  answersResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /explorationdataextractionhandler [get]
func (h *Handler) extractAnswers(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, extractAnswersArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	answers, err := h.deps.Content.ExtractAnswers(r.Context(),
		args.String("exp_id"), args.Int("exp_version"), args.String("state_name"), args.Int("num_answers"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if answers == nil {
		answers = []content.SubmittedAnswer{}
	}
	writeJSON(w, http.StatusOK, answersResponse{Data: answers})
}

// interactionsByExploration handles GET /interactions.
//
// @Summary      List interactions of an exploration
// @Description  Returns the distinct interaction ids used by the states of an exploration.
// @Tags         Content
// @Produce      json
// @Param        exp_id  query  string  true  "Exploration ID"
// @Success      200  {object}  interactionsResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /interactions [get]
func (h *Handler) interactionsByExploration(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, interactionsArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ids, err := h.deps.Content.InteractionIDs(r.Context(), args.String("exp_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, interactionsResponse{InteractionIDs: ids})
}

// downloadTopicSimilarities handles GET /admintopicscsvdownloadhandler.
//
// @Summary      Download topic similarities
// @Description  Returns the topic similarity matrix as a CSV attachment.
// @Tags         Content
// @Produce      text/csv
// @Success      200  {string}  string  "CSV file"
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /admintopicscsvdownloadhandler [get]
func (h *Handler) downloadTopicSimilarities(w http.ResponseWriter, r *http.Request) {
	csv, err := h.deps.Content.TopicSimilaritiesCSV(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+topicSimilaritiesFilename)
	w.Header().Set("Content-Length", strconv.Itoa(len(csv)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csv))
}

// sendDummyMail handles POST /senddummymailtoadminhandler.
//
// @Summary      Send a test mail
// @Description  Sends a test message from the system address to the admin address.
// @Tags         Content
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /senddummymailtoadminhandler [post]
func (h *Handler) sendDummyMail(w http.ResponseWriter, r *http.Request) {
	if h.deps.Mailer == nil {
		writeError(w, http.StatusBadRequest, "This app cannot send emails.")
		return
	}
	if err := h.deps.Mailer.SendDummyMailToAdmin(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}
