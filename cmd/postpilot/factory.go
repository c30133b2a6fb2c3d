// Package main collaborator wiring for the CLI commands.
package main

import (
	"fmt"
	"os"

	"github.com/postpilot/postpilot/internal/agent"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/render"
	"github.com/postpilot/postpilot/internal/store"
	"github.com/postpilot/postpilot/internal/tool"
	"github.com/postpilot/postpilot/pkg/llm"
)

// appContext holds the explicitly constructed collaborators shared by
// the commands. Built lazily on first use, closed after the command.
type appContext struct {
	cfg        *config.Env
	store      *store.Store
	queue      *queue.Queue
	provider   llm.Provider
	generator  *agent.Generator
	planner    *agent.Planner
	dispatcher *queue.Dispatcher
	catalogue  *tool.Registry
	out        *render.Renderer
}

var app *appContext

// getApp builds the collaborator graph once per process.
func getApp() *appContext {
	if app != nil {
		return app
	}

	cfg := config.Get()

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		fatalError(err)
	}
	q, err := queue.Open(cfg.DataDir)
	if err != nil {
		fatalError(err)
	}

	provider := llm.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicBaseURL)
	generator := agent.NewGenerator(provider, cfg.ProjectRoot, cfg.Model, cfg.MockMode)
	planner := agent.NewPlanner(provider, cfg.Model, cfg.MockMode)
	dispatcher := queue.NewDispatcher(q, s, generator, planner)

	catalogue, err := tool.NewCatalogue(tool.Deps{
		Store:    s,
		Provider: provider,
		Enqueuer: dispatcher,
		Model:    cfg.Model,
		MockMode: cfg.MockMode,
	})
	if err != nil {
		fatalError(err)
	}

	app = &appContext{
		cfg:        cfg,
		store:      s,
		queue:      q,
		provider:   provider,
		generator:  generator,
		planner:    planner,
		dispatcher: dispatcher,
		catalogue:  catalogue,
		out:        render.New(pretty),
	}
	return app
}

func closeApp() {
	if app == nil {
		return
	}
	app.store.Close()
	app.queue.Close()
	app = nil
}

// fatalError prints the error and exits.
func fatalError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
