package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/handlerargs"
	"github.com/alice21mota/oppia/pkg/platformparam"
	"github.com/alice21mota/oppia/pkg/user"
)

// Actions accepted by POST /adminhandler.
const (
	actionReloadExploration            = "reload_exploration"
	actionReloadCollection             = "reload_collection"
	actionGenerateDummyExplorations    = "generate_dummy_explorations"
	actionClearSearchIndex             = "clear_search_index"
	actionGenerateDummyNewStructures   = "generate_dummy_new_structures_data"
	actionGenerateDummyNewSkillData    = "generate_dummy_new_skill_data"
	actionGenerateDummyClassroom       = "generate_dummy_classroom"
	actionGenerateDummyBlogPost        = "generate_dummy_blog_post"
	actionUploadTopicSimilarities      = "upload_topic_similarities"
	actionRegenerateTopicOpportunities = "regenerate_topic_related_opportunities"
	actionRollbackExplorationToSafe    = "rollback_exploration_to_safe_state"
	actionUpdatePlatformParameterRules = "update_platform_parameter_rules"
)

const (
	msgNotEnoughRightsToGenerateData = "User does not have enough rights to generate data."
	msgMissingActionArgument         = "The '%s' must be provided when the action is %s."
)

var adminActions = []string{
	actionReloadExploration,
	actionReloadCollection,
	actionGenerateDummyExplorations,
	actionClearSearchIndex,
	actionGenerateDummyNewStructures,
	actionGenerateDummyNewSkillData,
	actionGenerateDummyClassroom,
	actionGenerateDummyBlogPost,
	actionUploadTopicSimilarities,
	actionRegenerateTopicOpportunities,
	actionRollbackExplorationToSafe,
	actionUpdatePlatformParameterRules,
}

// adminActionArgs is the argument schema of POST /adminhandler. Arguments
// other than action are checked per action.
var adminActionArgs = handlerargs.Spec{
	{Name: "action", Kind: handlerargs.String, Choices: adminActions},
	{Name: "exploration_id", Kind: handlerargs.String, Optional: true},
	{Name: "collection_id", Kind: handlerargs.String, Optional: true},
	{Name: "num_dummy_exps_to_generate", Kind: handlerargs.Int, Optional: true},
	{Name: "num_dummy_exps_to_publish", Kind: handlerargs.Int, Optional: true},
	{Name: "data", Kind: handlerargs.String, Optional: true},
	{Name: "topic_id", Kind: handlerargs.String, Optional: true},
	{Name: "exp_id", Kind: handlerargs.String, Optional: true},
	{Name: "platform_param_name", Kind: handlerargs.String, Optional: true},
	{Name: "new_rules", Kind: handlerargs.DictList, Optional: true},
	{Name: "commit_message", Kind: handlerargs.String, Optional: true},
	{Name: "default_value", Kind: handlerargs.Dict, Optional: true},
	{Name: "blog_post_title", Kind: handlerargs.String, Optional: true, Choices: content.DummyBlogPostTitles},
}

// devModeGuards holds the refusal message of every development-only action.
var devModeGuards = map[string]string{
	actionReloadExploration:          "Cannot reload an exploration in production.",
	actionReloadCollection:           "Cannot reload a collection in production.",
	actionGenerateDummyExplorations:  "Cannot generate dummy explorations in production.",
	actionGenerateDummyNewStructures: "Cannot load new structures data in production.",
	actionGenerateDummyNewSkillData:  "Cannot generate dummy skills in production.",
	actionGenerateDummyClassroom:     "Cannot generate dummy classroom in production.",
	actionGenerateDummyBlogPost:      "Cannot load new blog post in production mode.",
}

// curriculumAdminActions require the CURRICULUM_ADMIN role.
var curriculumAdminActions = map[string]bool{
	actionGenerateDummyNewStructures: true,
	actionGenerateDummyNewSkillData:  true,
	actionGenerateDummyClassroom:     true,
}

// requiredActionArgs lists, in check order, the arguments each action needs.
var requiredActionArgs = map[string][]string{
	actionReloadExploration:            {"exploration_id"},
	actionReloadCollection:             {"collection_id"},
	actionGenerateDummyExplorations:    {"num_dummy_exps_to_generate", "num_dummy_exps_to_publish"},
	actionGenerateDummyBlogPost:        {"blog_post_title"},
	actionUploadTopicSimilarities:      {"data"},
	actionRegenerateTopicOpportunities: {"topic_id"},
	actionRollbackExplorationToSafe:    {"exp_id"},
	actionUpdatePlatformParameterRules: {"platform_param_name", "new_rules", "commit_message"},
}

// adminPageResponse is returned by GET /adminhandler.
type adminPageResponse struct {
	PlatformParamsDicts []map[string]any `json:"platform_params_dicts"`
}

// getAdminPage handles GET /adminhandler.
//
// @Summary      Get admin page data
// @Description  Returns every registered platform parameter with its current rules, in registration order.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  adminPageResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminhandler [get]
func (h *Handler) getAdminPage(w http.ResponseWriter, r *http.Request) {
	params, err := h.deps.Params.All(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dicts := make([]map[string]any, 0, len(params))
	for _, p := range params {
		dicts = append(dicts, p.ToDict())
	}
	writeJSON(w, http.StatusOK, adminPageResponse{PlatformParamsDicts: dicts})
}

// postAdminAction handles POST /adminhandler.
//
// @Summary      Run an admin action
// @Description  Dispatches one administrative action: demo reloads, dummy data generation, search index clearing, topic similarity upload, opportunity regeneration, exploration rollback and platform parameter updates.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminhandler [post]
func (h *Handler) postAdminAction(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, adminActionArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	action := args.String("action")

	result, err := h.runAction(r.Context(), action, args)
	h.recordAction(r.Context(), action, actionTarget(action, args), actionParams(args), err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result == nil {
		result = emptyResponse{}
	}
	writeJSON(w, http.StatusOK, result)
}

// runAction checks the preconditions of action and runs it.
func (h *Handler) runAction(ctx context.Context, action string, args handlerargs.Args) (any, error) {
	for _, name := range requiredActionArgs[action] {
		if !args.Has(name) {
			return nil, apperr.InvalidInput(msgMissingActionArgument, name, action)
		}
	}
	if msg, ok := devModeGuards[action]; ok && !h.deps.DevMode {
		return nil, apperr.InvalidInput("%s", msg)
	}
	caller := GetUser(ctx)
	if curriculumAdminActions[action] && !callerHasRole(caller, user.RoleCurriculumAdmin) {
		return nil, apperr.Unauthorized(msgNotEnoughRightsToGenerateData)
	}

	switch action {
	case actionReloadExploration:
		id := args.String("exploration_id")
		h.logAdmin(caller, "reloaded exploration %s", id)
		return nil, h.deps.Content.LoadDemoExploration(ctx, caller.UserID, id)

	case actionReloadCollection:
		id := args.String("collection_id")
		h.logAdmin(caller, "reloaded collection %s", id)
		if err := h.deps.Content.LoadDemoCollection(ctx, caller.UserID, id); err != nil {
			return nil, err
		}
		return nil, h.deps.Content.ReleaseCollectionOwnership(ctx, id)

	case actionGenerateDummyExplorations:
		n, p := args.Int("num_dummy_exps_to_generate"), args.Int("num_dummy_exps_to_publish")
		h.logAdmin(caller, "generated %d dummy explorations, publishing %d", n, p)
		return nil, h.deps.Content.GenerateDummyExplorations(ctx, caller.UserID, n, p)

	case actionClearSearchIndex:
		h.deps.Content.ClearSearchIndex(ctx)
		h.logAdmin(caller, "cleared the search index")
		return nil, nil

	case actionGenerateDummyNewStructures:
		h.logAdmin(caller, "generated dummy structures data")
		return nil, h.deps.Content.GenerateDummyNewStructures(ctx, caller.UserID)

	case actionGenerateDummyNewSkillData:
		h.logAdmin(caller, "generated dummy skill data")
		return nil, h.deps.Content.GenerateDummySkillData(ctx)

	case actionGenerateDummyClassroom:
		h.logAdmin(caller, "generated a dummy classroom")
		return nil, h.deps.Content.GenerateDummyClassroom(ctx)

	case actionGenerateDummyBlogPost:
		title := args.String("blog_post_title")
		h.logAdmin(caller, "generated dummy blog post %q", title)
		_, err := h.deps.Content.GenerateDummyBlogPost(ctx, caller.UserID, title)
		return nil, err

	case actionUploadTopicSimilarities:
		h.logAdmin(caller, "uploaded topic similarities")
		return nil, h.deps.Content.UploadTopicSimilarities(ctx, args.String("data"))

	case actionRegenerateTopicOpportunities:
		topicID := args.String("topic_id")
		count, err := h.deps.Content.RegenerateTopicOpportunities(ctx, topicID)
		if err != nil {
			return nil, err
		}
		h.logAdmin(caller, "regenerated %d opportunities of topic %s", count, topicID)
		return map[string]int{"opportunities_count": count}, nil

	case actionRollbackExplorationToSafe:
		expID := args.String("exp_id")
		version, err := h.deps.Content.RollbackExplorationToSafeState(ctx, expID)
		if err != nil {
			return nil, err
		}
		h.logAdmin(caller, "rolled back exploration %s to version %d", expID, version)
		return map[string]int{"version": version}, nil

	case actionUpdatePlatformParameterRules:
		return nil, h.updatePlatformParameterRules(ctx, caller, args)
	}
	return nil, apperr.InvalidInput("Unknown action %s.", action)
}

// updatePlatformParameterRules replaces the rules of one parameter.
func (h *Handler) updatePlatformParameterRules(ctx context.Context, caller *User, args handlerargs.Args) error {
	name := args.String("platform_param_name")
	dicts := make([]map[string]any, 0, len(args.List("new_rules")))
	for _, d := range args.List("new_rules") {
		m, _ := d.(map[string]any)
		dicts = append(dicts, m)
	}
	rules, err := platformparam.RulesFromDicts(dicts)
	if err != nil {
		return apperr.InvalidInput("Invalid rules for %s: %s", name, err.Error())
	}

	var defaultValue any
	if dv := args.Dict("default_value"); dv != nil {
		defaultValue = dv["value"]
	}

	if err := h.deps.Params.UpdateRules(ctx, name, caller.UserID, args.String("commit_message"), rules, defaultValue); err != nil {
		return err
	}
	h.logAdmin(caller, "updated platform parameter %s: %d rules", name, len(rules))
	return nil
}

// logAdmin writes an "[ADMIN] <user_id> ..." line.
func (h *Handler) logAdmin(caller *User, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	h.logger.Info(fmt.Sprintf("[ADMIN] %s %s", caller.UserID, msg), "admin_id", caller.UserID, "event", msg)
}

// callerHasRole reports whether the caller holds role.
func callerHasRole(caller *User, role string) bool {
	if caller == nil {
		return false
	}
	for _, r := range caller.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// actionTarget picks the entity an action operates on, for auditing.
func actionTarget(action string, args handlerargs.Args) string {
	for _, key := range []string{"exploration_id", "collection_id", "topic_id", "exp_id", "platform_param_name", "blog_post_title"} {
		if args.Has(key) {
			return args.String(key)
		}
	}
	return action
}

// actionParams returns the audited arguments of an action.
func actionParams(args handlerargs.Args) map[string]any {
	params := make(map[string]any, len(args))
	for k, v := range args {
		if k == "action" || k == "data" {
			continue
		}
		params[k] = v
	}
	return params
}
