package admin

import (
	"net/http"

	"github.com/alice21mota/oppia/pkg/handlerargs"
)

var deleteUserArgs = handlerargs.Spec{
	{Name: "user_id", Kind: handlerargs.String},
	{Name: "username", Kind: handlerargs.String},
}

var userIDArgs = handlerargs.Spec{
	{Name: "user_id", Kind: handlerargs.String},
}

// updateUsernameArgs bounds new_username by the configured maximum.
func (h *Handler) updateUsernameArgs() handlerargs.Spec {
	return handlerargs.Spec{
		{Name: "old_username", Kind: handlerargs.String},
		{Name: "new_username", Kind: handlerargs.String, MaxLength: h.deps.Users.MaxUsernameLength()},
	}
}

type deletionCountResponse struct {
	NumberOfPendingDeletionModels int `json:"number_of_pending_deletion_models"`
}

type relatedModelsResponse struct {
	RelatedModelsExist bool `json:"related_models_exist"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// updateUsername handles PUT /updateusernamehandler.
//
// @Summary      Change a username
// @Description  Renames a user, moves their profile pictures and records the change in the audit log.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        X-CSRFToken  header  string  true  "CSRF token"
// @Success      200  {object}  emptyResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /updateusernamehandler [put]
func (h *Handler) updateUsername(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, h.updateUsernameArgs())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	caller := GetUser(r.Context())
	if err := h.deps.Users.ChangeUsername(r.Context(), caller.Committer(), args.String("old_username"), args.String("new_username")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyResponse{})
}

// countDeletionRequests handles GET /numberofdeletionrequestshandler.
//
// @Summary      Count pending deletion requests
// @Tags         Users
// @Produce      json
// @Success      200  {object}  deletionCountResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /numberofdeletionrequestshandler [get]
func (h *Handler) countDeletionRequests(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Users.CountPendingDeletions(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletionCountResponse{NumberOfPendingDeletionModels: n})
}

// verifyUserModelsDeleted handles GET /verifyusermodelsdeletedhandler.
//
// @Summary      Verify a user's data is gone
// @Description  Reports whether any record still exists for, or references, the user.
// @Tags         Users
// @Produce      json
// @Param        user_id  query  string  true  "User ID"
// @Success      200  {object}  relatedModelsResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /verifyusermodelsdeletedhandler [get]
func (h *Handler) verifyUserModelsDeleted(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, userIDArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	userID := args.String("user_id")
	exists, err := h.deps.Users.Exists(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !exists {
		exists, err = h.deps.Content.HasUserReferences(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, relatedModelsResponse{RelatedModelsExist: exists})
}

// deleteUser handles DELETE /deleteuserhandler.
//
// @Summary      Request user deletion
// @Description  Marks the user deleted and queues a pending deletion request. user_id and username must belong to the same user.
// @Tags         Users
// @Produce      json
// @Param        user_id   query  string  true  "User ID"
// @Param        username  query  string  true  "Username"
// @Success      200  {object}  successResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Security     SessionAuth
// @Security     ApiKeyAuth
// @Router       /deleteuserhandler [delete]
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	args, err := handlerargs.Parse(r, deleteUserArgs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	caller := GetUser(r.Context())
	if err := h.deps.Users.RequestDeletion(r.Context(), caller.Committer(), args.String("user_id"), args.String("username")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
