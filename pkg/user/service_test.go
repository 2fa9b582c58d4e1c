package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/storage"
)

const defaultAdminEmail = "testsuper@example.com"

var testCommitter = Committer{ID: "admin-id", Email: defaultAdminEmail}

type fixture struct {
	svc   *Service
	store *MemoryStore
	files *storage.MemoryStore
	audit *audit.MemoryLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemoryStore(),
		files: storage.NewMemoryStore(),
		audit: audit.NewMemoryLogger(),
	}
	f.svc = NewService(f.store, f.files, f.audit, Config{DefaultAdminEmail: defaultAdminEmail}, nil)
	return f
}

func (f *fixture) signup(t *testing.T, email, username string) *User {
	t.Helper()
	u, err := f.svc.Signup(context.Background(), email, username)
	require.NoError(t, err)
	return u
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.signup(t, "user1@example.com", "user1")
	assert.Equal(t, []string{RoleFullUser}, u.Roles)
	assert.False(t, u.SuperAdmin)
	assert.Regexp(t, `^uid_[0-9a-f]{32}$`, u.ID)

	for _, name := range []string{storage.ProfilePicturePNG, storage.ProfilePictureWebP} {
		ok, err := f.files.Exists(ctx, storage.EntityTypeUser, "user1", name)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	admin := f.signup(t, defaultAdminEmail, "testsuper")
	assert.True(t, admin.SuperAdmin)

	_, err := f.svc.Signup(ctx, "user1@example.com", "another")
	require.Error(t, err)
	_, err = f.svc.Signup(ctx, "user2@example.com", "USER1")
	assert.EqualError(t, err, "Username already taken.")
}

func TestValidateUsername(t *testing.T) {
	svc := newFixture(t).svc
	tests := []struct {
		username string
		want     string
	}{
		{"", "Empty username supplied."},
		{"abcdefghijklmnopqrstuvwxyz012345", "A username can have at most 30 characters."},
		{"bad name", "Usernames can only have alphanumeric characters."},
		{"superAdmin1", "This username is not available."},
		{"oppiaFan", "This username is not available."},
		{"newUsername", ""},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := svc.ValidateUsername(tt.username)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestRoleInfoAndRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	info, err := f.svc.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, RoleInfo{
		Roles:                  []string{RoleFullUser},
		ManagedTopicIDs:        []string{},
		CoordinatedLanguageIDs: []string{},
	}, info)

	require.NoError(t, f.svc.AddRole(ctx, testCommitter, "user1", RoleModerator))
	require.NoError(t, f.svc.AddRole(ctx, testCommitter, "user1", RoleModerator))
	info, err = f.svc.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleFullUser, RoleModerator}, info.Roles)

	names, err := f.svc.UsernamesWithRole(ctx, RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, []string{"user1"}, names)

	require.NoError(t, f.svc.RemoveRole(ctx, testCommitter, "user1", RoleModerator))
	info, err = f.svc.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{RoleFullUser}, info.Roles)

	events, err := f.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionRoleUpdate})
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, "admin-id", events[0].UserID)
}

func TestRoles_UnknownUserAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	_, err := f.svc.RoleInfo(ctx, "myinvaliduser")
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(f.svc.AddRole(ctx, testCommitter, "myinvaliduser", RoleModerator)))
	assert.True(t, apperr.IsNotFound(f.svc.RemoveRole(ctx, testCommitter, "invaliduser", RoleTopicManager)))

	err = f.svc.AddRole(ctx, testCommitter, "user1", "WIZARD")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	_, err = f.svc.UsernamesWithRole(ctx, "WIZARD")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestTopicManagerAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	require.NoError(t, f.svc.AssignTopic(ctx, testCommitter, "user1", "topic1"))
	require.NoError(t, f.svc.AssignTopic(ctx, testCommitter, "user1", "topic2"))
	info, _ := f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser, RoleTopicManager}, info.Roles)
	assert.ElementsMatch(t, []string{"topic1", "topic2"}, info.ManagedTopicIDs)

	require.NoError(t, f.svc.DeassignTopic(ctx, testCommitter, "user1", "topic1"))
	info, _ = f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser, RoleTopicManager}, info.Roles)

	require.NoError(t, f.svc.DeassignTopic(ctx, testCommitter, "user1", "topic2"))
	info, _ = f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser}, info.Roles)
	assert.Empty(t, info.ManagedTopicIDs)
}

func TestRemoveTopicManagerRoleClearsTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	require.NoError(t, f.svc.AssignTopic(ctx, testCommitter, "user1", "topic1"))
	require.NoError(t, f.svc.RemoveRole(ctx, testCommitter, "user1", RoleTopicManager))
	info, _ := f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, RoleInfo{
		Roles:                  []string{RoleFullUser},
		ManagedTopicIDs:        []string{},
		CoordinatedLanguageIDs: []string{},
	}, info)
}

func TestTranslationCoordinatorAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	require.NoError(t, f.svc.AssignLanguage(ctx, testCommitter, "user1", "en"))
	require.NoError(t, f.svc.AssignLanguage(ctx, testCommitter, "user1", "hi"))
	info, _ := f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser, RoleTranslationCoordinator}, info.Roles)
	assert.Equal(t, []string{"en", "hi"}, info.CoordinatedLanguageIDs)

	require.NoError(t, f.svc.DeassignLanguage(ctx, testCommitter, "user1", "en"))
	require.NoError(t, f.svc.RemoveRole(ctx, testCommitter, "user1", RoleTranslationCoordinator))
	info, _ = f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser}, info.Roles)
	assert.Empty(t, info.CoordinatedLanguageIDs)

	assert.True(t, apperr.IsNotFound(f.svc.AssignLanguage(ctx, testCommitter, "invaliduser", "en")))
}

func TestBanAndUnban(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")
	require.NoError(t, f.svc.AssignTopic(ctx, testCommitter, "user1", "topic1"))

	require.NoError(t, f.svc.Ban(ctx, testCommitter, "user1"))
	info, _ := f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, RoleInfo{
		Roles:                  []string{},
		Banned:                 true,
		ManagedTopicIDs:        []string{},
		CoordinatedLanguageIDs: []string{},
	}, info)

	require.NoError(t, f.svc.Unban(ctx, testCommitter, "user1"))
	info, _ = f.svc.RoleInfo(ctx, "user1")
	assert.Equal(t, []string{RoleFullUser}, info.Roles)
	assert.False(t, info.Banned)

	assert.True(t, apperr.IsNotFound(f.svc.Ban(ctx, testCommitter, "invalidUsername")))
	assert.True(t, apperr.IsNotFound(f.svc.Unban(ctx, testCommitter, "invalidUsername")))
}

func TestSuperAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, defaultAdminEmail, "testsuper")
	f.signup(t, "curriculum@example.com", "curriculum")

	require.NoError(t, f.svc.GrantSuperAdmin(ctx, testCommitter, "curriculum"))
	u, _ := f.store.GetByUsername(ctx, "curriculum")
	assert.True(t, u.SuperAdmin)

	require.NoError(t, f.svc.RevokeSuperAdmin(ctx, testCommitter, "curriculum"))
	u, _ = f.store.GetByUsername(ctx, "curriculum")
	assert.False(t, u.SuperAdmin)

	err := f.svc.RevokeSuperAdmin(ctx, testCommitter, "testsuper")
	assert.EqualError(t, err, "Cannot revoke privileges from the default super admin account")
	u, _ = f.store.GetByUsername(ctx, "testsuper")
	assert.True(t, u.SuperAdmin)

	assert.True(t, apperr.IsNotFound(f.svc.GrantSuperAdmin(ctx, testCommitter, "fakeusername")))
}

func TestChangeUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t, "curriculum@example.com", "oldUsername")
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	before, err := f.files.Get(ctx, storage.EntityTypeUser, "oldUsername", storage.ProfilePicturePNG)
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangeUsername(ctx, Committer{ID: u.ID, Email: u.Email}, "oldUsername", "newUsername"))

	got, err := f.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newUsername", got.Username)

	after, err := f.files.Get(ctx, storage.EntityTypeUser, "newUsername", storage.ProfilePicturePNG)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	ok, _ := f.files.Exists(ctx, storage.EntityTypeUser, "oldUsername", storage.ProfilePicturePNG)
	assert.False(t, ok)

	events, err := f.audit.Query(ctx, audit.QueryFilter{ID: u.ID + ".1709294400000"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionUsernameChange, events[0].Action)
	assert.Equal(t, u.ID, events[0].Parameters["committer_id"])
	assert.Equal(t, "curriculum@example.com", events[0].UserEmail)
	assert.Equal(t, "oldUsername", events[0].Parameters["old_username"])
	assert.Equal(t, "newUsername", events[0].Parameters["new_username"])
}

func TestChangeUsername_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "curriculum@example.com", "oldUsername")
	f.signup(t, "editor@example.com", "editor")

	assert.True(t, apperr.IsNotFound(f.svc.ChangeUsername(ctx, testCommitter, "invalid", "newUsername")))
	assert.EqualError(t, f.svc.ChangeUsername(ctx, testCommitter, "oldUsername", "oldUsername"), "Username already taken.")
	assert.EqualError(t, f.svc.ChangeUsername(ctx, testCommitter, "oldUsername", ""), "Empty username supplied.")

	require.NoError(t, f.files.Delete(ctx, storage.EntityTypeUser, "editor", storage.ProfilePicturePNG))
	err := f.svc.ChangeUsername(ctx, testCommitter, "editor", "newUsername")
	assert.True(t, apperr.IsNotFound(err))
	u, _ := f.store.GetByEmail(ctx, "editor@example.com")
	assert.Equal(t, "editor", u.Username)
}

type failingUpdateStore struct{ *MemoryStore }

func (failingUpdateStore) Update(context.Context, *User) error {
	return errors.New("db down")
}

func TestChangeUsername_UpdateFailureKeepsPictures(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStore()
	svc := NewService(failingUpdateStore{NewMemoryStore()}, files, audit.NewMemoryLogger(), Config{}, nil)
	u, err := svc.Signup(ctx, "alpha@example.com", "alpha")
	require.NoError(t, err)

	err = svc.ChangeUsername(ctx, testCommitter, "alpha", "beta")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	got, err := svc.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Username)
	for _, name := range []string{storage.ProfilePicturePNG, storage.ProfilePictureWebP} {
		ok, err := files.Exists(ctx, storage.EntityTypeUser, "alpha", name)
		require.NoError(t, err)
		assert.True(t, ok, name)
		ok, err = files.Exists(ctx, storage.EntityTypeUser, "beta", name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
}

type failingAuditLogger struct{ *audit.MemoryLogger }

func (failingAuditLogger) Log(context.Context, audit.Event) error {
	return errors.New("audit unavailable")
}

func TestChangeUsername_AuditFailureKeepsRename(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, storage.NewMemoryStore(), failingAuditLogger{audit.NewMemoryLogger()}, Config{}, nil)
	u, err := svc.Signup(ctx, "alpha@example.com", "alpha")
	require.NoError(t, err)

	require.NoError(t, svc.ChangeUsername(ctx, testCommitter, "alpha", "beta"))
	got, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Username)
}

func TestRoleChangeAuditsCommitterEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "user1@example.com", "user1")

	require.NoError(t, f.svc.AddRole(ctx, testCommitter, "user1", RoleModerator))
	events, err := f.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionRoleUpdate})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, testCommitter.ID, events[0].UserID)
	assert.Equal(t, defaultAdminEmail, events[0].UserEmail)
}

func TestRequestDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t, "new@example.com", "newuser")
	other := f.signup(t, "system@example.com", "system")

	assert.True(t, apperr.IsNotFound(f.svc.RequestDeletion(ctx, testCommitter, "aa", "someusername")))
	err := f.svc.RequestDeletion(ctx, testCommitter, other.ID, "newuser")
	assert.EqualError(t, err, "The user_id and username do not belong to the same user.")

	n, err := f.svc.CountPendingDeletions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.svc.RequestDeletion(ctx, testCommitter, u.ID, "newuser"))
	req, err := f.svc.PendingDeletion(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", req.Email)

	got, _ := f.store.GetByID(ctx, u.ID)
	assert.True(t, got.Deleted)
	assert.Empty(t, got.Roles)

	n, err = f.svc.CountPendingDeletions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t, "user1@example.com", "user1")

	ok, err := f.svc.Exists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Exists(ctx, "aaa")
	require.NoError(t, err)
	assert.False(t, ok)
}

type brokenStore struct{ *MemoryStore }

func (brokenStore) GetByID(context.Context, string) (*User, error) {
	return nil, errors.New("connection reset")
}

func TestExists_StoreError(t *testing.T) {
	svc := NewService(brokenStore{NewMemoryStore()}, storage.NewMemoryStore(), nil, Config{}, nil)
	_, err := svc.Exists(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, DefaultMaxUsernameLength, svc.MaxUsernameLength())
}
