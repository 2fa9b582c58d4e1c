package user

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/storage"
)

// DefaultMaxUsernameLength is used when Config.MaxUsernameLength is unset.
const DefaultMaxUsernameLength = 30

var (
	//go:embed assets/default_profile_picture.png
	defaultProfilePicturePNG []byte

	//go:embed assets/default_profile_picture.webp
	defaultProfilePictureWebP []byte

	alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)

	reservedUsernames = []string{"admin", "oppia"}

	profilePictures = []string{storage.ProfilePicturePNG, storage.ProfilePictureWebP}
)

// Config configures the user service.
type Config struct {
	DefaultAdminEmail string
	MaxUsernameLength int
}

// Service implements user management operations.
type Service struct {
	store  Store
	files  storage.FileStore
	audit  audit.Logger
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a user service.
func NewService(store Store, files storage.FileStore, auditLog audit.Logger, cfg Config, logger *slog.Logger) *Service {
	if cfg.MaxUsernameLength <= 0 {
		cfg.MaxUsernameLength = DefaultMaxUsernameLength
	}
	if auditLog == nil {
		auditLog = audit.NoopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		files:  files,
		audit:  auditLog,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// MaxUsernameLength returns the configured username length limit.
func (s *Service) MaxUsernameLength() int {
	return s.cfg.MaxUsernameLength
}

// DefaultAdminEmail returns the email of the default super admin.
func (s *Service) DefaultAdminEmail() string {
	return s.cfg.DefaultAdminEmail
}

// ValidateUsername checks the format of a username.
func (s *Service) ValidateUsername(username string) error {
	switch {
	case username == "":
		return apperr.InvalidInput("Empty username supplied.")
	case len(username) > s.cfg.MaxUsernameLength:
		return apperr.InvalidInput("A username can have at most %d characters.", s.cfg.MaxUsernameLength)
	case !alphanumeric.MatchString(username):
		return apperr.InvalidInput("Usernames can only have alphanumeric characters.")
	}
	lower := strings.ToLower(username)
	for _, reserved := range reservedUsernames {
		if strings.Contains(lower, reserved) {
			return apperr.InvalidInput("This username is not available.")
		}
	}
	return nil
}

func (s *Service) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.store.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return apperr.InvalidInput("Username already taken.")
	case apperr.IsNotFound(err):
		return nil
	default:
		return fmt.Errorf("checking username: %w", err)
	}
}

// Signup registers a user with the default roles and profile pictures.
func (s *Service) Signup(ctx context.Context, email, username string) (*User, error) {
	if email == "" {
		return nil, apperr.InvalidInput("No user email specified.")
	}
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, apperr.InvalidInput("User with email %s already exists.", email)
	} else if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if err := s.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, username); err != nil {
		return nil, err
	}

	u := &User{
		ID:                     "uid_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:                  email,
		Username:               username,
		Roles:                  []string{RoleFullUser},
		ManagedTopicIDs:        []string{},
		CoordinatedLanguageIDs: []string{},
		SuperAdmin:             email == s.cfg.DefaultAdminEmail && email != "",
		CreatedAt:              s.now().UTC(),
	}

	if err := s.files.Put(ctx, storage.EntityTypeUser, username, storage.ProfilePicturePNG,
		defaultProfilePicturePNG, storage.ContentType(storage.ProfilePicturePNG)); err != nil {
		return nil, fmt.Errorf("storing profile picture: %w", err)
	}
	if err := s.files.Put(ctx, storage.EntityTypeUser, username, storage.ProfilePictureWebP,
		defaultProfilePictureWebP, storage.ContentType(storage.ProfilePictureWebP)); err != nil {
		return nil, fmt.Errorf("storing profile picture: %w", err)
	}

	if err := s.store.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.logger.Info("user signed up", "user_id", u.ID, "username", username)
	return u, nil
}

// GetByID returns a user by id.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// GetByUsername returns a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.GetByUsername(ctx, username)
}

// GetByEmail returns a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.store.GetByEmail(ctx, email)
}

// RoleInfo returns the role summary of a user.
func (s *Service) RoleInfo(ctx context.Context, username string) (RoleInfo, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return RoleInfo{}, err
	}
	u.normalize()
	return RoleInfo{
		Roles:                  u.Roles,
		Banned:                 u.Banned,
		ManagedTopicIDs:        u.ManagedTopicIDs,
		CoordinatedLanguageIDs: u.CoordinatedLanguageIDs,
	}, nil
}

// UsernamesWithRole returns the usernames of users holding role.
func (s *Service) UsernamesWithRole(ctx context.Context, role string) ([]string, error) {
	if !ValidRole(role) {
		return nil, apperr.InvalidInput("Role %s does not exist.", role)
	}
	users, err := s.store.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("listing users with role %s: %w", role, err)
	}
	return lo.Map(users, func(u User, _ int) string { return u.Username }), nil
}

// mutate loads a user by username, applies fn, persists the result and
// records an audit event.
func (s *Service) mutate(ctx context.Context, committer Committer, username, action string, params map[string]any, fn func(u *User) error) error {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := fn(u); err != nil {
		return err
	}
	if err := s.store.Update(ctx, u); err != nil {
		return fmt.Errorf("updating user %s: %w", u.ID, err)
	}

	if params == nil {
		params = map[string]any{}
	}
	params["username"] = u.Username
	event := audit.NewEvent(action).
		WithTimestamp(s.now()).
		WithUser(committer.ID, committer.Email).
		WithTarget(u.ID).
		WithParameters(params)
	if err := s.audit.Log(ctx, *event); err != nil {
		s.logger.Error("audit log failed", "action", action, "user_id", u.ID, "error", err)
	}
	return nil
}

// AddRole grants role to a user.
func (s *Service) AddRole(ctx context.Context, committer Committer, username, role string) error {
	if !ValidRole(role) {
		return apperr.InvalidInput("Role %s does not exist.", role)
	}
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": role, "change": "add"},
		func(u *User) error {
			if !u.HasRole(role) {
				u.Roles = append(u.Roles, role)
			}
			return nil
		})
}

// RemoveRole revokes role from a user along with any resources scoped to it.
func (s *Service) RemoveRole(ctx context.Context, committer Committer, username, role string) error {
	if !ValidRole(role) {
		return apperr.InvalidInput("Role %s does not exist.", role)
	}
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": role, "change": "remove"},
		func(u *User) error {
			u.Roles = lo.Without(u.Roles, role)
			switch role {
			case RoleTopicManager:
				u.ManagedTopicIDs = []string{}
			case RoleTranslationCoordinator:
				u.CoordinatedLanguageIDs = []string{}
			}
			return nil
		})
}

// AssignTopic makes a user a manager of topicID.
func (s *Service) AssignTopic(ctx context.Context, committer Committer, username, topicID string) error {
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": RoleTopicManager, "change": "assign", "topic_id": topicID},
		func(u *User) error {
			if !u.HasRole(RoleTopicManager) {
				u.Roles = append(u.Roles, RoleTopicManager)
			}
			if !slices.Contains(u.ManagedTopicIDs, topicID) {
				u.ManagedTopicIDs = append(u.ManagedTopicIDs, topicID)
			}
			return nil
		})
}

// DeassignTopic removes topicID from a user's managed topics, dropping the
// role with the last topic.
func (s *Service) DeassignTopic(ctx context.Context, committer Committer, username, topicID string) error {
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": RoleTopicManager, "change": "deassign", "topic_id": topicID},
		func(u *User) error {
			u.ManagedTopicIDs = lo.Without(u.ManagedTopicIDs, topicID)
			if len(u.ManagedTopicIDs) == 0 {
				u.Roles = lo.Without(u.Roles, RoleTopicManager)
			}
			return nil
		})
}

// AssignLanguage makes a user a translation coordinator for languageID.
func (s *Service) AssignLanguage(ctx context.Context, committer Committer, username, languageID string) error {
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": RoleTranslationCoordinator, "change": "assign", "language_id": languageID},
		func(u *User) error {
			if !u.HasRole(RoleTranslationCoordinator) {
				u.Roles = append(u.Roles, RoleTranslationCoordinator)
			}
			if !slices.Contains(u.CoordinatedLanguageIDs, languageID) {
				u.CoordinatedLanguageIDs = append(u.CoordinatedLanguageIDs, languageID)
			}
			return nil
		})
}

// DeassignLanguage removes languageID from a user's coordinated languages,
// dropping the role with the last language.
func (s *Service) DeassignLanguage(ctx context.Context, committer Committer, username, languageID string) error {
	return s.mutate(ctx, committer, username, audit.ActionRoleUpdate,
		map[string]any{"role": RoleTranslationCoordinator, "change": "deassign", "language_id": languageID},
		func(u *User) error {
			u.CoordinatedLanguageIDs = lo.Without(u.CoordinatedLanguageIDs, languageID)
			if len(u.CoordinatedLanguageIDs) == 0 {
				u.Roles = lo.Without(u.Roles, RoleTranslationCoordinator)
			}
			return nil
		})
}

// Ban marks a user as banned and strips all roles and scoped resources.
func (s *Service) Ban(ctx context.Context, committer Committer, username string) error {
	return s.mutate(ctx, committer, username, audit.ActionUserBan,
		map[string]any{"banned": true},
		func(u *User) error {
			u.Banned = true
			u.Roles = []string{}
			u.ManagedTopicIDs = []string{}
			u.CoordinatedLanguageIDs = []string{}
			return nil
		})
}

// Unban lifts a ban and restores the default roles.
func (s *Service) Unban(ctx context.Context, committer Committer, username string) error {
	return s.mutate(ctx, committer, username, audit.ActionUserBan,
		map[string]any{"banned": false},
		func(u *User) error {
			u.Banned = false
			u.Roles = []string{RoleFullUser}
			return nil
		})
}

// GrantSuperAdmin gives a user super-admin privileges.
func (s *Service) GrantSuperAdmin(ctx context.Context, committer Committer, username string) error {
	return s.mutate(ctx, committer, username, audit.ActionSuperAdminUpdate,
		map[string]any{"super_admin": true},
		func(u *User) error {
			u.SuperAdmin = true
			return nil
		})
}

// RevokeSuperAdmin removes super-admin privileges. The default admin keeps
// them.
func (s *Service) RevokeSuperAdmin(ctx context.Context, committer Committer, username string) error {
	return s.mutate(ctx, committer, username, audit.ActionSuperAdminUpdate,
		map[string]any{"super_admin": false},
		func(u *User) error {
			if u.Email == s.cfg.DefaultAdminEmail {
				return apperr.InvalidInput("Cannot revoke privileges from the default super admin account")
			}
			u.SuperAdmin = false
			return nil
		})
}

// ChangeUsername renames a user and moves their profile pictures. The
// change is recorded as a username_change audit event whose id is the
// user id and the change time in milliseconds.
func (s *Service) ChangeUsername(ctx context.Context, committer Committer, oldUsername, newUsername string) error {
	u, err := s.store.GetByUsername(ctx, oldUsername)
	if err != nil {
		return err
	}
	if err := s.ValidateUsername(newUsername); err != nil {
		return err
	}
	if err := s.ensureUsernameFree(ctx, newUsername); err != nil {
		return err
	}

	oldName := u.Username
	if err := storage.Copy(ctx, s.files, storage.EntityTypeUser, oldName, newUsername, profilePictures...); err != nil {
		return err
	}

	u.Username = newUsername
	if err := s.store.Update(ctx, u); err != nil {
		if rmErr := storage.Remove(ctx, s.files, storage.EntityTypeUser, newUsername, profilePictures...); rmErr != nil {
			s.logger.Error("removing copied profile pictures failed", "user_id", u.ID, "username", newUsername, "error", rmErr)
		}
		return fmt.Errorf("updating username: %w", err)
	}
	if err := storage.Remove(ctx, s.files, storage.EntityTypeUser, oldName, profilePictures...); err != nil {
		s.logger.Warn("removing old profile pictures failed", "user_id", u.ID, "username", oldName, "error", err)
	}

	now := s.now()
	event := audit.NewEvent(audit.ActionUsernameChange).
		WithID(fmt.Sprintf("%s.%d", u.ID, now.UnixMilli())).
		WithTimestamp(now).
		WithUser(committer.ID, committer.Email).
		WithTarget(u.ID).
		WithParameters(map[string]any{
			"committer_id": committer.ID,
			"old_username": oldUsername,
			"new_username": newUsername,
		})
	if err := s.audit.Log(ctx, *event); err != nil {
		s.logger.Error("audit log failed", "action", audit.ActionUsernameChange, "user_id", u.ID, "error", err)
	}

	s.logger.Info("username changed", "user_id", u.ID, "old_username", oldUsername, "new_username", newUsername)
	return nil
}

// RequestDeletion marks a user deleted and queues a pending deletion
// request for the wipeout process.
func (s *Service) RequestDeletion(ctx context.Context, committer Committer, userID, username string) error {
	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u.ID != userID {
		return apperr.InvalidInput("The user_id and username do not belong to the same user.")
	}

	u.Deleted = true
	u.Roles = []string{}
	u.ManagedTopicIDs = []string{}
	u.CoordinatedLanguageIDs = []string{}
	if err := s.store.Update(ctx, u); err != nil {
		return fmt.Errorf("marking user deleted: %w", err)
	}

	req := PendingDeletionRequest{UserID: u.ID, Email: u.Email, CreatedAt: s.now().UTC()}
	if err := s.store.CreatePendingDeletion(ctx, req); err != nil {
		return fmt.Errorf("creating deletion request: %w", err)
	}

	event := audit.NewEvent(audit.ActionDeletionRequest).
		WithTimestamp(s.now()).
		WithUser(committer.ID, committer.Email).
		WithTarget(u.ID).
		WithParameters(map[string]any{"username": username})
	if err := s.audit.Log(ctx, *event); err != nil {
		s.logger.Error("audit log failed", "action", audit.ActionDeletionRequest, "user_id", u.ID, "error", err)
	}
	return nil
}

// PendingDeletion returns the deletion request of a user.
func (s *Service) PendingDeletion(ctx context.Context, userID string) (*PendingDeletionRequest, error) {
	return s.store.GetPendingDeletion(ctx, userID)
}

// CountPendingDeletions returns the number of queued deletion requests.
func (s *Service) CountPendingDeletions(ctx context.Context) (int, error) {
	n, err := s.store.CountPendingDeletions(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting deletion requests: %w", err)
	}
	return n, nil
}

// Exists reports whether a user record exists for userID.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.store.GetByID(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case apperr.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("looking up user %s: %w", userID, err)
	}
}
