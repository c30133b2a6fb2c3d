package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/store"
	"github.com/postpilot/postpilot/internal/testutil"
)

type fakeEnqueuer struct {
	postID int64
	runAt  time.Time
	err    error
}

func (f *fakeEnqueuer) EnqueuePublish(ctx context.Context, postID int64, runAt time.Time) (string, error) {
	f.postID = postID
	f.runAt = runAt
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func newTestCatalogue(t *testing.T, deps Deps) *Registry {
	t.Helper()
	if deps.Store == nil {
		s, err := store.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		deps.Store = s
	}
	if deps.Enqueuer == nil {
		deps.Enqueuer = &fakeEnqueuer{}
	}
	reg, err := NewCatalogue(deps)
	require.NoError(t, err)
	return reg
}

func invoke(t *testing.T, reg *Registry, name string, input map[string]any) any {
	t.Helper()
	tl, err := reg.Get(name)
	require.NoError(t, err)
	validated, err := tl.Schema().Validate(input)
	require.NoError(t, err)
	result, err := tl.Invoke(context.Background(), validated)
	require.NoError(t, err)
	return result
}

func TestCatalogueNames(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	assert.Equal(t, []string{
		"create_account",
		"create_post",
		"create_project",
		"draft_caption",
		"link_post_accounts",
		"list_accounts",
		"schedule_post",
	}, reg.Names())
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	_, err := reg.Get("delete_everything")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDefsCarrySchemas(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	defs := reg.Defs()
	require.Len(t, defs, 7)
	for _, def := range defs {
		assert.Equal(t, "object", def.InputSchema["type"], def.Name)
		assert.NotEmpty(t, def.Description, def.Name)
	}
}

func TestCreateProjectAndPost(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	project := invoke(t, reg, "create_project", map[string]any{"name": "launch"}).(*domain.Project)
	assert.NotZero(t, project.ID)

	post := invoke(t, reg, "create_post", map[string]any{
		"caption":   "hello world",
		"projectId": float64(project.ID),
	}).(*domain.Post)
	assert.Equal(t, domain.PostDraft, post.Status)
	assert.Equal(t, project.ID, post.ProjectID)
}

func TestCreateAccountRejectsUnknownPlatform(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})
	tl, err := reg.Get("create_account")
	require.NoError(t, err)

	_, err = tl.Schema().Validate(map[string]any{
		"handle":   "@brand",
		"platform": "MYSPACE",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform")
}

func TestListAccountsEmptyIsNotNil(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	accounts := invoke(t, reg, "list_accounts", nil).([]domain.Account)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
}

func TestLinkPostAccountsModes(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	project := invoke(t, reg, "create_project", map[string]any{"name": "p"}).(*domain.Project)
	post := invoke(t, reg, "create_post", map[string]any{
		"caption": "c", "projectId": float64(project.ID),
	}).(*domain.Post)

	a1 := invoke(t, reg, "create_account", map[string]any{
		"handle": "@a1", "platform": "INSTAGRAM",
	}).(*domain.Account)
	a2 := invoke(t, reg, "create_account", map[string]any{
		"handle": "@a2", "platform": "TIKTOK",
	}).(*domain.Account)
	a3 := invoke(t, reg, "create_account", map[string]any{
		"handle": "@a3", "platform": "YOUTUBE",
	}).(*domain.Account)

	// replace [1,2] then [3] leaves exactly {3}
	invoke(t, reg, "link_post_accounts", map[string]any{
		"postId": float64(post.ID), "accountIds": []any{float64(a1.ID), float64(a2.ID)}, "mode": "replace",
	})
	linked := invoke(t, reg, "link_post_accounts", map[string]any{
		"postId": float64(post.ID), "accountIds": []any{float64(a3.ID)}, "mode": "replace",
	}).(*domain.Post)
	require.Len(t, linked.Accounts, 1)
	assert.Equal(t, a3.ID, linked.Accounts[0].ID)

	// append defaults: [1] then [2] leaves {1,2} plus the earlier 3
	invoke(t, reg, "link_post_accounts", map[string]any{
		"postId": float64(post.ID), "accountIds": []any{float64(a1.ID)},
	})
	linked = invoke(t, reg, "link_post_accounts", map[string]any{
		"postId": float64(post.ID), "accountIds": []any{float64(a2.ID)},
	}).(*domain.Post)
	assert.Len(t, linked.Accounts, 3)
}

func TestDraftCaptionMockFallback(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})

	result := invoke(t, reg, "draft_caption", map[string]any{
		"topic": "summer sale", "maxChars": float64(20),
	}).(map[string]any)

	caption := result["caption"].(string)
	assert.LessOrEqual(t, len(caption), 20)
	assert.Contains(t, caption, "summer sale")
}

func TestDraftCaptionUsesProvider(t *testing.T) {
	provider := testutil.NewScriptedProvider(testutil.TextResponse("Sun's out, deals out."))
	reg := newTestCatalogue(t, Deps{Provider: provider, Model: "m"})

	result := invoke(t, reg, "draft_caption", map[string]any{
		"topic": "summer sale",
	}).(map[string]any)

	assert.Equal(t, "Sun's out, deals out.", result["caption"])
	assert.Equal(t, 1, provider.CallCount())
}

func TestDraftCaptionProviderFailureFallsBack(t *testing.T) {
	provider := testutil.NewScriptedProvider().Failing(errors.New("boom"))
	reg := newTestCatalogue(t, Deps{Provider: provider, Model: "m"})

	result := invoke(t, reg, "draft_caption", map[string]any{
		"topic": "summer sale",
	}).(map[string]any)

	assert.Contains(t, result["caption"].(string), "summer sale")
}

func TestSchedulePostEnqueuesPublish(t *testing.T) {
	enq := &fakeEnqueuer{}
	reg := newTestCatalogue(t, Deps{MockMode: true, Enqueuer: enq})

	project := invoke(t, reg, "create_project", map[string]any{"name": "p"}).(*domain.Project)
	post := invoke(t, reg, "create_post", map[string]any{
		"caption": "c", "projectId": float64(project.ID),
	}).(*domain.Post)

	runAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	result := invoke(t, reg, "schedule_post", map[string]any{
		"postId": float64(post.ID), "runAt": runAt.Format(time.RFC3339),
	}).(map[string]any)

	assert.Equal(t, "job-1", result["jobId"])
	assert.Equal(t, post.ID, enq.postID)
	assert.True(t, enq.runAt.Equal(runAt))
}

func TestSchedulePostBadTimestamp(t *testing.T) {
	reg := newTestCatalogue(t, Deps{MockMode: true})
	tl, err := reg.Get("schedule_post")
	require.NoError(t, err)

	validated, err := tl.Schema().Validate(map[string]any{
		"postId": float64(1), "runAt": "tomorrow-ish",
	})
	require.NoError(t, err)

	_, err = tl.Invoke(context.Background(), validated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runAt")
}
