package admin

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/audit"
	"github.com/alice21mota/oppia/pkg/content"
	"github.com/alice21mota/oppia/pkg/user"
)

func TestRegenerateTopicSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.content.SaveTopic(ctx, content.Topic{Name: "One"})
	require.NoError(t, err)

	w := env.put(t, "/regeneratetopicsummarieshandler", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())

	events, err := env.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionTopicSummariesRebuild})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.EqualValues(t, 1, events[0].Parameters["count"])
}

func TestUpdateBlogPostData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	editor := env.signup(t, "editor@example.com", "blogEditor")
	require.NoError(t, env.users.AddRole(ctx, env.committer(), "blogEditor", user.RoleBlogPostEditor))
	post, err := env.content.CreateBlogPost(ctx, env.admin.ID, "Sample Title", "<p>body</p>")
	require.NoError(t, err)

	w := env.put(t, "/updateblogpostdatahandler", map[string]any{
		"blog_post_id":    post.ID,
		"author_username": "blogEditor",
		"published_on":    "05/09/2000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := env.content.BlogPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, editor.ID, got.AuthorID)
	require.NotNil(t, got.PublishedOn)
	assert.Equal(t, 2000, got.PublishedOn.Year())

	events, err := env.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionBlogPostUpdate, Target: post.ID})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestUpdateBlogPostData_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "plain@example.com", "plainUser")
	env.signup(t, "editor@example.com", "blogEditor")
	require.NoError(t, env.users.AddRole(ctx, env.committer(), "blogEditor", user.RoleBlogAdmin))
	post, err := env.content.CreateBlogPost(ctx, env.admin.ID, "Sample Title", "")
	require.NoError(t, err)

	w := env.put(t, "/updateblogpostdatahandler", map[string]any{
		"blog_post_id": post.ID, "author_username": "nobody", "published_on": "05/09/2000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid username: nobody", errorMessage(t, w))

	w = env.put(t, "/updateblogpostdatahandler", map[string]any{
		"blog_post_id": post.ID, "author_username": "plainUser", "published_on": "05/09/2000",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User does not have enough rights to be blog post author.", errorMessage(t, w))

	w = env.put(t, "/updateblogpostdatahandler", map[string]any{
		"blog_post_id": post.ID, "author_username": "blogEditor", "published_on": "05/09/20000",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "time data '05/09/20000, 00:00:00:00' does not match format '%m/%d/%Y, %H:%M:%S:%f'", errorMessage(t, w))

	w = env.put(t, "/updateblogpostdatahandler", map[string]any{
		"blog_post_id": "missing", "author_username": "blogEditor", "published_on": "05/09/2000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractAnswers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.content.SaveExploration(ctx, env.admin.ID, content.Exploration{
		ID: "exp",
		States: map[string]content.State{
			content.DefaultInitStateName: {InteractionID: content.InteractionTextInput},
		},
	})
	require.NoError(t, err)
	require.NoError(t, env.content.RecordAnswer(ctx, "exp", 1, content.DefaultInitStateName, content.SubmittedAnswer{Answer: "first answer"}))
	require.NoError(t, env.content.RecordAnswer(ctx, "exp", 1, content.DefaultInitStateName, content.SubmittedAnswer{Answer: "second answer"}))

	query := func(n string) url.Values {
		return url.Values{
			"exp_id":      {"exp"},
			"exp_version": {"1"},
			"state_name":  {content.DefaultInitStateName},
			"num_answers": {n},
		}
	}

	w := env.get(t, "/explorationdataextractionhandler", query("0"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[answersResponse](t, w)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "first answer", resp.Data[0].Answer)

	w = env.get(t, "/explorationdataextractionhandler", query("1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = decode[answersResponse](t, w)
	require.Len(t, resp.Data, 1)
}

func TestExtractAnswers_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.content.SaveExploration(ctx, env.admin.ID, content.Exploration{
		ID:     "exp",
		States: map[string]content.State{content.DefaultInitStateName: {InteractionID: content.InteractionTextInput}},
	})
	require.NoError(t, err)

	w := env.get(t, "/explorationdataextractionhandler", url.Values{
		"exp_id": {"invalid_exp_id"}, "exp_version": {"1"}, "state_name": {content.DefaultInitStateName}, "num_answers": {"0"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.get(t, "/explorationdataextractionhandler", url.Values{
		"exp_id": {"exp"}, "exp_version": {"1"}, "state_name": {"state name"}, "num_answers": {"0"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Exploration 'exp' does not have 'state name' state.", errorMessage(t, w))

	w = env.get(t, "/explorationdataextractionhandler", url.Values{
		"exp_id": {"exp"}, "exp_version": {"one"}, "state_name": {content.DefaultInitStateName}, "num_answers": {"0"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInteractionsByExploration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.content.SaveExploration(ctx, env.admin.ID, content.Exploration{
		ID: "exp",
		States: map[string]content.State{
			content.DefaultInitStateName: {InteractionID: content.InteractionTextInput},
			"End":                        {InteractionID: content.InteractionEndExploration},
		},
	})
	require.NoError(t, err)

	w := env.get(t, "/interactions", url.Values{"exp_id": {"exp"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"interaction_ids": ["EndExploration", "TextInput"]}`, w.Body.String())

	w = env.get(t, "/interactions", url.Values{"exp_id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadTopicSimilarities(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/admintopicscsvdownloadhandler", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=topic_similarities.csv", w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, len(content.Categories)+1)
	assert.True(t, strings.HasPrefix(lines[0], "Architecture,Art,Biology"))
}

func TestSendDummyMail(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/senddummymailtoadminhandler", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, "admin@example.com", env.mail.sent[0].To)
}

func TestSendDummyMail_CannotSend(t *testing.T) {
	env := newTestEnv(t, withoutMailer())

	w := env.post(t, "/senddummymailtoadminhandler", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This app cannot send emails.", errorMessage(t, w))
}
