package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/schema"
	"github.com/postpilot/postpilot/internal/store"
	"github.com/postpilot/postpilot/pkg/llm"
)

// DefaultUserID scopes all records in single-user CLI operation.
const DefaultUserID int64 = 1

// PublishEnqueuer schedules the durable publish job for a post.
// Implemented by the queue; declared here so tools stay decoupled from
// queue internals.
type PublishEnqueuer interface {
	EnqueuePublish(ctx context.Context, postID int64, runAt time.Time) (string, error)
}

// Deps carries the collaborators the catalogue tools act on.
type Deps struct {
	Store    *store.Store
	Provider llm.Provider
	Enqueuer PublishEnqueuer
	Model    string
	MockMode bool
}

// NewCatalogue builds the full registered tool set.
func NewCatalogue(deps Deps) (*Registry, error) {
	return NewRegistry(
		&createProject{deps},
		&createAccount{deps},
		&listAccounts{deps},
		&createPost{deps},
		&linkPostAccounts{deps},
		&draftCaption{deps},
		&schedulePost{deps},
	)
}

// create_project

type createProject struct{ deps Deps }

func (t *createProject) Name() string { return "create_project" }
func (t *createProject) Description() string { return "Create a new project to group posts under." }

func (t *createProject) Schema() schema.Shape {
	return schema.Shape{
		"name": {Type: schema.String, Required: true},
	}
}

func (t *createProject) Invoke(ctx context.Context, input map[string]any) (any, error) {
	return t.deps.Store.CreateProject(ctx, input["name"].(string), DefaultUserID)
}

// create_account

type createAccount struct{ deps Deps }

func (t *createAccount) Name() string { return "create_account" }
func (t *createAccount) Description() string {
	return "Register a social account the user can publish through."
}

func (t *createAccount) Schema() schema.Shape {
	return schema.Shape{
		"handle":   {Type: schema.String, Required: true},
		"platform": {Type: schema.String, Required: true, Enum: platformEnum()},
	}
}

func (t *createAccount) Invoke(ctx context.Context, input map[string]any) (any, error) {
	platform := domain.Platform(input["platform"].(string))
	return t.deps.Store.CreateAccount(ctx, input["handle"].(string), platform, DefaultUserID)
}

func platformEnum() []string {
	return []string{
		string(domain.PlatformInstagram),
		string(domain.PlatformTikTok),
		string(domain.PlatformYouTube),
	}
}

// list_accounts

type listAccounts struct{ deps Deps }

func (t *listAccounts) Name() string { return "list_accounts" }
func (t *listAccounts) Description() string { return "List the user's registered social accounts." }
func (t *listAccounts) Schema() schema.Shape { return schema.Shape{} }

func (t *listAccounts) Invoke(ctx context.Context, input map[string]any) (any, error) {
	accounts, err := t.deps.Store.ListAccounts(ctx, DefaultUserID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// create_post

type createPost struct{ deps Deps }

func (t *createPost) Name() string { return "create_post" }
func (t *createPost) Description() string { return "Create a draft post inside a project." }

func (t *createPost) Schema() schema.Shape {
	return schema.Shape{
		"caption":   {Type: schema.String, Required: true},
		"projectId": {Type: schema.Number, Required: true},
	}
}

func (t *createPost) Invoke(ctx context.Context, input map[string]any) (any, error) {
	projectID := int64(input["projectId"].(float64))
	return t.deps.Store.CreatePost(ctx, input["caption"].(string), projectID)
}

// link_post_accounts

type linkPostAccounts struct{ deps Deps }

func (t *linkPostAccounts) Name() string { return "link_post_accounts" }
func (t *linkPostAccounts) Description() string {
	return "Attach accounts to a post. Mode append adds to existing links; replace swaps the full set."
}

func (t *linkPostAccounts) Schema() schema.Shape {
	return schema.Shape{
		"postId":     {Type: schema.Number, Required: true},
		"accountIds": {Type: schema.NumberArray, Required: true},
		"mode": {
			Type:    schema.String,
			Enum:    []string{string(store.LinkAppend), string(store.LinkReplace)},
			Default: string(store.LinkAppend),
		},
	}
}

func (t *linkPostAccounts) Invoke(ctx context.Context, input map[string]any) (any, error) {
	postID := int64(input["postId"].(float64))
	rawIDs := input["accountIds"].([]float64)
	ids := make([]int64, len(rawIDs))
	for i, id := range rawIDs {
		ids[i] = int64(id)
	}
	mode := store.LinkMode(input["mode"].(string))
	return t.deps.Store.LinkPostAccounts(ctx, postID, ids, mode)
}

// draft_caption

type draftCaption struct{ deps Deps }

func (t *draftCaption) Name() string { return "draft_caption" }
func (t *draftCaption) Description() string {
	return "Draft a short social caption for a topic in a given tone."
}

func (t *draftCaption) Schema() schema.Shape {
	return schema.Shape{
		"topic":    {Type: schema.String, Required: true},
		"tone":     {Type: schema.String, Enum: []string{"playful", "professional", "bold", "neutral"}, Default: "neutral"},
		"maxChars": {Type: schema.Number, Default: float64(200)},
	}
}

func (t *draftCaption) Invoke(ctx context.Context, input map[string]any) (any, error) {
	topic := input["topic"].(string)
	tone := input["tone"].(string)
	maxChars := int(input["maxChars"].(float64))

	caption := t.generate(ctx, topic, tone, maxChars)
	return map[string]any{"caption": caption}, nil
}

// generate asks the model for a caption; any failure falls back to a
// deterministic caption so the tool never errors mid-conversation.
func (t *draftCaption) generate(ctx context.Context, topic, tone string, maxChars int) string {
	if !t.deps.MockMode && t.deps.Provider != nil {
		resp, err := t.deps.Provider.Complete(ctx, &llm.Request{
			Model: t.deps.Model,
			System: "You write social media captions. Reply with the caption text only, " +
				"no quotes and no commentary.",
			Messages: []domain.Message{domain.TextMessage(domain.RoleUser,
				fmt.Sprintf("Write a %s caption about: %s. At most %d characters.", tone, topic, maxChars))},
			MaxTokens: 300,
		})
		if err == nil {
			if caption := strings.TrimSpace(resp.Text()); caption != "" {
				return truncate(caption, maxChars)
			}
		}
	}
	return truncate(fmt.Sprintf("%s: fresh update coming soon", topic), maxChars)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// schedule_post

type schedulePost struct{ deps Deps }

func (t *schedulePost) Name() string { return "schedule_post" }
func (t *schedulePost) Description() string {
	return "Schedule a post for publishing at an RFC 3339 instant."
}

func (t *schedulePost) Schema() schema.Shape {
	return schema.Shape{
		"postId": {Type: schema.Number, Required: true},
		"runAt":  {Type: schema.String, Required: true},
	}
}

func (t *schedulePost) Invoke(ctx context.Context, input map[string]any) (any, error) {
	postID := int64(input["postId"].(float64))
	runAt, err := time.Parse(time.RFC3339, input["runAt"].(string))
	if err != nil {
		return nil, fmt.Errorf("runAt: %w", err)
	}

	if err := t.deps.Store.SchedulePost(ctx, postID, runAt); err != nil {
		return nil, err
	}

	jobID, err := t.deps.Enqueuer.EnqueuePublish(ctx, postID, runAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue publish: %w", err)
	}

	return map[string]any{
		"postId": postID,
		"runAt":  runAt.UTC().Format(time.RFC3339),
		"jobId":  jobID,
	}, nil
}
