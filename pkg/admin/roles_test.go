package admin

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/user"
)

func TestViewRoles_ByUsername(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "user1@example.com", "user1")
	require.NoError(t, env.users.AddRole(context.Background(), env.committer(), "user1", user.RoleModerator))

	w := env.get(t, "/adminrolehandler", url.Values{"filter_criterion": {"username"}, "username": {"user1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"roles": ["FULL_USER", "MODERATOR"],
		"banned": false,
		"managed_topic_ids": [],
		"coordinated_language_ids": []
	}`, w.Body.String())
}

func TestViewRoles_ByRole(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "user1@example.com", "user1")
	require.NoError(t, env.users.AddRole(context.Background(), env.committer(), "user1", user.RoleModerator))

	w := env.get(t, "/adminrolehandler", url.Values{"filter_criterion": {"role"}, "role": {user.RoleModerator}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"usernames": ["user1"]}`, w.Body.String())
}

func TestViewRoles_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		query  url.Values
		status int
		want   string
	}{
		{
			name:   "invalid criterion",
			query:  url.Values{"filter_criterion": {"invalid"}, "username": {"user1"}},
			status: http.StatusBadRequest,
			want:   "Received invalid which is not in the allowed range of choices: ['role', 'username']",
		},
		{
			name:   "username missing",
			query:  url.Values{"filter_criterion": {"username"}},
			status: http.StatusBadRequest,
			want:   "The username must be provided when the filter criterion is 'username'.",
		},
		{
			name:   "role missing",
			query:  url.Values{"filter_criterion": {"role"}},
			status: http.StatusBadRequest,
			want:   "The role must be provided when the filter criterion is 'role'.",
		},
		{
			name:   "unknown user",
			query:  url.Values{"filter_criterion": {"username"}, "username": {"nobody"}},
			status: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.get(t, "/adminrolehandler", tt.query)
			assert.Equal(t, tt.status, w.Code)
			if tt.want != "" {
				assert.Contains(t, errorMessage(t, w), tt.want)
			}
		})
	}
}

func TestAddAndRemoveRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "user1@example.com", "user1")

	w := env.put(t, "/adminrolehandler", map[string]any{"role": user.RoleModerator, "username": "user1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())

	info, err := env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Contains(t, info.Roles, user.RoleModerator)

	w = env.delete(t, "/adminrolehandler", url.Values{"role": {user.RoleModerator}, "username": {"user1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err = env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.NotContains(t, info.Roles, user.RoleModerator)

	events, err := env.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionRoleUpdate})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, env.admin.ID, e.UserID)
		assert.Equal(t, testAdminEmail, e.UserEmail)
	}
}

func TestAddRole_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "user1@example.com", "user1")

	w := env.put(t, "/adminrolehandler", map[string]any{"role": user.RoleTopicManager, "username": "user1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported role for this handler.", errorMessage(t, w))

	w = env.put(t, "/adminrolehandler", map[string]any{"role": user.RoleModerator, "username": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.put(t, "/adminrolehandler", map[string]any{"role": "NOT_A_ROLE", "username": "user1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTopicManager(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "user1@example.com", "user1")
	topic, err := env.content.SaveTopic(ctx, content.Topic{Name: "Topic"})
	require.NoError(t, err)

	w := env.put(t, "/topicmanagerrolehandler", map[string]any{"action": "assign", "username": "user1", "topic_id": topic.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err := env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Contains(t, info.Roles, user.RoleTopicManager)
	assert.Equal(t, []string{topic.ID}, info.ManagedTopicIDs)

	w = env.put(t, "/topicmanagerrolehandler", map[string]any{"action": "deassign", "username": "user1", "topic_id": topic.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err = env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Empty(t, info.ManagedTopicIDs)
}

func TestUpdateTopicManager_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "user1@example.com", "user1")
	topic, err := env.content.SaveTopic(context.Background(), content.Topic{Name: "Topic"})
	require.NoError(t, err)

	w := env.put(t, "/topicmanagerrolehandler", map[string]any{"action": "assign", "username": "nobody", "topic_id": topic.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.put(t, "/topicmanagerrolehandler", map[string]any{"action": "assign", "username": "user1", "topic_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.put(t, "/topicmanagerrolehandler", map[string]any{"action": "promote", "username": "user1", "topic_id": topic.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTranslationCoordinator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "user1@example.com", "user1")

	w := env.put(t, "/translationcoordinatorrolehandler", map[string]any{"action": "assign", "username": "user1", "language_id": "en"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err := env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Contains(t, info.Roles, user.RoleTranslationCoordinator)
	assert.Equal(t, []string{"en"}, info.CoordinatedLanguageIDs)

	w = env.put(t, "/translationcoordinatorrolehandler", map[string]any{"action": "deassign", "username": "user1", "language_id": "en"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err = env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.Empty(t, info.CoordinatedLanguageIDs)

	w = env.put(t, "/translationcoordinatorrolehandler", map[string]any{"action": "assign", "username": "nobody", "language_id": "en"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBanAndUnbanUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "user1@example.com", "user1")

	w := env.put(t, "/bannedusershandler", map[string]any{"username": "user1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())
	info, err := env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, info.Banned)
	assert.Empty(t, info.Roles)

	w = env.delete(t, "/bannedusershandler", url.Values{"username": {"user1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info, err = env.users.RoleInfo(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, info.Banned)
	assert.Equal(t, []string{user.RoleFullUser}, info.Roles)

	w = env.put(t, "/bannedusershandler", map[string]any{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuperAdmin_GrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "user1@example.com", "user1")

	w := env.put(t, "/adminsuperadminhandler", map[string]any{"username": "user1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	u, err := env.users.GetByUsername(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, u.SuperAdmin)

	w = env.delete(t, "/adminsuperadminhandler", url.Values{"username": {"user1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	u, err = env.users.GetByUsername(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, u.SuperAdmin)
}

func TestSuperAdmin_OnlyDefaultAdmin(t *testing.T) {
	env := newTestEnv(t)
	other := env.signup(t, "other@example.com", "other")
	require.NoError(t, env.users.GrantSuperAdmin(context.Background(), env.committer(), "other"))

	w := env.do(t, request{method: http.MethodPut, path: "/adminsuperadminhandler", body: map[string]any{"username": "other"}, as: other})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Only the default system admin can manage super admins", errorMessage(t, w))
}

func TestSuperAdmin_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.put(t, "/adminsuperadminhandler", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "Missing key in handler args: username.")

	w = env.put(t, "/adminsuperadminhandler", map[string]any{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.delete(t, "/adminsuperadminhandler", url.Values{"username": {testAdminUsername}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot revoke privileges from the default super admin account", errorMessage(t, w))
}
