package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the admin service.
const (
	ActionUsernameChange        = "username_change"
	ActionRoleUpdate            = "role_update"
	ActionSuperAdminUpdate      = "super_admin_update"
	ActionUserBan               = "user_ban"
	ActionDeletionRequest       = "deletion_request"
	ActionPlatformParamUpdate   = "platform_param_update"
	ActionAdminAction           = "admin_action"
	ActionBlogPostUpdate        = "blog_post_update"
	ActionTopicSummariesRebuild = "topic_summaries_rebuild"
)

// NewEvent creates a new audit event for action.
func NewEvent(action string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   true,
	}
}

// WithID overrides the generated event ID.
func (e *Event) WithID(id string) *Event {
	e.ID = id
	return e
}

// WithTimestamp overrides the event time.
func (e *Event) WithTimestamp(ts time.Time) *Event {
	e.Timestamp = ts.UTC()
	return e
}

// WithUser adds the acting user to the event.
func (e *Event) WithUser(userID, email string) *Event {
	e.UserID = userID
	e.UserEmail = email
	return e
}

// WithTarget adds the affected entity to the event.
func (e *Event) WithTarget(target string) *Event {
	e.Target = target
	return e
}

// WithParameters adds parameters to the event.
func (e *Event) WithParameters(params map[string]any) *Event {
	e.Parameters = params
	return e
}

// WithResult adds result information to the event.
func (e *Event) WithResult(success bool, errorMsg string, durationMS int64) *Event {
	e.Success = success
	e.ErrorMessage = errorMsg
	e.DurationMS = durationMS
	return e
}
