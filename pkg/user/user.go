// Package user manages user identities, role assignments, bans, super-admin
// status, username changes and account deletion requests.
package user

import (
	"context"
	"slices"
	"time"
)

// Role ids.
const (
	RoleFullUser               = "FULL_USER"
	RoleMobileLearner          = "MOBILE_LEARNER"
	RoleModerator              = "MODERATOR"
	RoleCurriculumAdmin        = "CURRICULUM_ADMIN"
	RoleTopicManager           = "TOPIC_MANAGER"
	RoleTranslationCoordinator = "TRANSLATION_COORDINATOR"
	RoleTranslationAdmin       = "TRANSLATION_ADMIN"
	RoleQuestionAdmin          = "QUESTION_ADMIN"
	RoleQuestionCoordinator    = "QUESTION_COORDINATOR"
	RoleVoiceoverAdmin         = "VOICEOVER_ADMIN"
	RoleBlogAdmin              = "BLOG_ADMIN"
	RoleBlogPostEditor         = "BLOG_POST_EDITOR"
	RoleReleaseCoordinator     = "RELEASE_COORDINATOR"
)

// AllRoles lists every assignable role.
var AllRoles = []string{
	RoleFullUser,
	RoleMobileLearner,
	RoleModerator,
	RoleCurriculumAdmin,
	RoleTopicManager,
	RoleTranslationCoordinator,
	RoleTranslationAdmin,
	RoleQuestionAdmin,
	RoleQuestionCoordinator,
	RoleVoiceoverAdmin,
	RoleBlogAdmin,
	RoleBlogPostEditor,
	RoleReleaseCoordinator,
}

// ValidRole reports whether role is a known role id.
func ValidRole(role string) bool {
	return slices.Contains(AllRoles, role)
}

// Committer identifies the admin making a change.
type Committer struct {
	ID    string
	Email string
}

// User is a registered user with role assignments.
type User struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	Username               string    `json:"username"`
	Roles                  []string  `json:"roles"`
	Banned                 bool      `json:"banned"`
	ManagedTopicIDs        []string  `json:"managed_topic_ids"`
	CoordinatedLanguageIDs []string  `json:"coordinated_language_ids"`
	SuperAdmin             bool      `json:"super_admin"`
	Deleted                bool      `json:"deleted"`
	CreatedAt              time.Time `json:"created_at"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// PendingDeletionRequest marks a user whose data awaits wipeout.
type PendingDeletionRequest struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleInfo is the role summary returned for a username.
type RoleInfo struct {
	Roles                  []string `json:"roles"`
	Banned                 bool     `json:"banned"`
	ManagedTopicIDs        []string `json:"managed_topic_ids"`
	CoordinatedLanguageIDs []string `json:"coordinated_language_ids"`
}

// Store persists users and pending deletion requests. Lookups of missing
// records return an apperr NotFound error.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListByRole(ctx context.Context, role string) ([]User, error)

	CreatePendingDeletion(ctx context.Context, req PendingDeletionRequest) error
	GetPendingDeletion(ctx context.Context, userID string) (*PendingDeletionRequest, error)
	CountPendingDeletions(ctx context.Context) (int, error)
}

// clone returns a deep copy of u.
func (u *User) clone() *User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.ManagedTopicIDs = slices.Clone(u.ManagedTopicIDs)
	c.CoordinatedLanguageIDs = slices.Clone(u.CoordinatedLanguageIDs)
	return &c
}

// normalize replaces nil slices with empty ones.
func (u *User) normalize() {
	if u.Roles == nil {
		u.Roles = []string{}
	}
	if u.ManagedTopicIDs == nil {
		u.ManagedTopicIDs = []string{}
	}
	if u.CoordinatedLanguageIDs == nil {
		u.CoordinatedLanguageIDs = []string{}
	}
}
