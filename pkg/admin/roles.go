package admin

import (
	"net/http"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/handlerargs"
	"github.com/alice21mota/oppia/pkg/user"
)

const (
	filterByRole     = "role"
	filterByUsername = "username"

	assignAction   = "assign"
	deassignAction = "deassign"
)

var (
	viewRolesArgs = handlerargs.Spec{
		{Name: "filter_criterion", Kind: handlerargs.String, Choices: []string{filterByRole, filterByUsername}},
		{Name: "role", Kind: handlerargs.String, Optional: true},
		{Name: "username", Kind: handlerargs.String, Optional: true},
	}
	roleArgs = handlerargs.Spec{
		{Name: "role", Kind: handlerargs.String},
		{Name: "username", Kind: handlerargs.String},
	}
	topicManagerArgs = handlerargs.Spec{
		{Name: "action", Kind: handlerargs.String, Choices: []string{assignAction, deassignAction}},
		{Name: "username", Kind: handlerargs.String},
		{Name: "topic_id", Kind: handlerargs.String},
	}
	translationCoordinatorArgs = handlerargs.Spec{
		{Name: "action", Kind: handlerargs.String, Choices: []string{assignAction, deassignAction}},
		{Name: "username", Kind: handlerargs.String},
		{Name: "language_id", Kind: handlerargs.String},
	}
	usernameArgs = handlerargs.Spec{
		{Name: "username", Kind: handlerargs.String},
	}
)

// usernamesResponse lists the holders of a role.
type usernamesResponse struct {
	Usernames []string `json:"usernames"`
}

// grantSuperAdmin handles PUT /adminsuperadminhandler.
//
// @Summary      Grant super admin
// @Description  Makes a user a super admin. Only the default system admin may call it.
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminsuperadminhandler [put]
func (h *Handler) grantSuperAdmin(w http.ResponseWriter, r *http.Request) {
	h.updateSuperAdmin(w, r, true)
}

// revokeSuperAdmin handles DELETE /adminsuperadminhandler.
//
// @Summary      Revoke super admin
// @Description  Removes super-admin status from a user. Only the default system admin may call it.
// @Tags         Roles
// @Produce      json
// @Param        username  query  string  true  "Username"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminsuperadminhandler [delete]
func (h *Handler) revokeSuperAdmin(w http.ResponseWriter, r *http.Request) {
	h.updateSuperAdmin(w, r, false)
}

func (h *Handler) updateSuperAdmin(w http.ResponseWriter, r *http.Request, grant bool) {
	caller := GetUser(r.Context())
	if caller.Email != h.deps.Users.DefaultAdminEmail() {
		writeError(w, http.StatusUnauthorized, "Only the default system admin can manage super admins")
		return
	}
	args, err := handlerargs.Parse(r, usernameArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	username := args.String("username")
	if grant {
		err = h.deps.Users.GrantSuperAdmin(r.Context(), caller.Committer(), username)
	} else {
		err = h.deps.Users.RevokeSuperAdmin(r.Context(), caller.Committer(), username)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// viewRoles handles GET /adminrolehandler.
//
// @Summary      View roles
// @Description  With filter_criterion=username returns the role summary of one user; with filter_criterion=role returns the usernames holding a role.
// @Tags         Roles
// @Produce      json
// @Param        filter_criterion  query  string  true   "role or username"
// @Param        role              query  string  false  "Role id"
// @Param        username          query  string  false  "Username"
// @Success      200  {object}  user.RoleInfo
// @Success      200  {object}  usernamesResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminrolehandler [get]
func (h *Handler) viewRoles(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, viewRolesArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if args.String("filter_criterion") == filterByUsername {
		if !args.Has("username") {
			writeError(w, http.StatusBadRequest, "The username must be provided when the filter criterion is 'username'.")
			return
		}
		info, err := h.deps.Users.RoleInfo(r.Context(), args.String("username"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
		return
	}

	if !args.Has("role") {
		writeError(w, http.StatusBadRequest, "The role must be provided when the filter criterion is 'role'.")
		return
	}
	names, err := h.deps.Users.UsernamesWithRole(r.Context(), args.String("role"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usernamesResponse{Usernames: names})
}

// addRole handles PUT /adminrolehandler.
//
// @Summary      Add role
// @Description  Grants a role to a user. TOPIC_MANAGER is managed through /topicmanagerrolehandler.
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminrolehandler [put]
func (h *Handler) addRole(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, roleArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	role := args.String("role")
	if role == user.RoleTopicManager {
		writeError(w, http.StatusBadRequest, "Unsupported role for this handler.")
		return
	}
	if err := h.deps.Users.AddRole(r.Context(), GetUser(r.Context()).Committer(), args.String("username"), role); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// removeRole handles DELETE /adminrolehandler.
//
// @Summary      Remove role
// @Description  Revokes a role from a user.
// @Tags         Roles
// @Produce      json
// @Param        role      query  string  true  "Role id"
// @Param        username  query  string  true  "Username"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /adminrolehandler [delete]
func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, roleArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.deps.Users.RemoveRole(r.Context(), GetUser(r.Context()).Committer(), args.String("username"), args.String("role")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// updateTopicManager handles PUT /topicmanagerrolehandler.
//
// @Summary      Assign or deassign a topic manager
// @Description  Assigning grants TOPIC_MANAGER and adds the topic to the user's managed topics; deassigning removes the topic.
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /topicmanagerrolehandler [put]
func (h *Handler) updateTopicManager(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, topicManagerArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	committer := GetUser(ctx).Committer()
	username, topicID := args.String("username"), args.String("topic_id")

	if args.String("action") == assignAction {
		exists, err := h.deps.Content.TopicExists(ctx, topicID)
		if err == nil && !exists {
			err = apperr.NotFound("Topic with id %s does not exist.", topicID)
		}
		if err == nil {
			err = h.deps.Users.AssignTopic(ctx, committer, username, topicID)
		}
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	} else if err := h.deps.Users.DeassignTopic(ctx, committer, username, topicID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// updateTranslationCoordinator handles PUT /translationcoordinatorrolehandler.
//
// @Summary      Assign or deassign a translation coordinator
// @Description  Assigning grants TRANSLATION_COORDINATOR for a language; deassigning removes the language.
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /translationcoordinatorrolehandler [put]
func (h *Handler) updateTranslationCoordinator(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, translationCoordinatorArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ctx := r.Context()
	committer := GetUser(ctx).Committer()
	username, languageID := args.String("username"), args.String("language_id")

	if args.String("action") == assignAction {
		err = h.deps.Users.AssignLanguage(ctx, committer, username, languageID)
	} else {
		err = h.deps.Users.DeassignLanguage(ctx, committer, username, languageID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// banUser handles PUT /bannedusershandler.
//
// @Summary      Ban user
// @Description  Marks a user as banned and strips their roles.
// @Tags         Roles
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /bannedusershandler [put]
func (h *Handler) banUser(w http.ResponseWriter, r *http.Request) {
	h.updateBan(w, r, true)
}

// unbanUser handles DELETE /bannedusershandler.
//
// @Summary      Unban user
// @Description  Lifts a ban.
// @Tags         Roles
// @Produce      json
// @Param        username  query  string  true  "Username"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /bannedusershandler [delete]
func (h *Handler) unbanUser(w http.ResponseWriter, r *http.Request) {
	h.updateBan(w, r, false)
}

func (h *Handler) updateBan(w http.ResponseWriter, r *http.Request, ban bool) {
	args, err := handlerargs.Parse(r, usernameArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	committer := GetUser(r.Context()).Committer()
	if ban {
		err = h.deps.Users.Ban(r.Context(), committer, args.String("username"))
	} else {
		err = h.deps.Users.Unban(r.Context(), committer, args.String("username"))
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}
