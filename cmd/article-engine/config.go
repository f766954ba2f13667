// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/article-engine/internal/broadcast"
	"github.com/pdiddy/article-engine/internal/docstore"
	"github.com/pdiddy/article-engine/internal/orchestrate"
	"github.com/pdiddy/article-engine/internal/provider"
	"github.com/pdiddy/article-engine/internal/secrets"
	"github.com/pdiddy/article-engine/internal/session"
	"github.com/pdiddy/article-engine/pkg/types"
)

// envKeyReplacer maps nested keys to env names: ai.model -> ARTICLE_ENGINE_AI_MODEL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// defaultModels is used when ai.model is unset.
var defaultModels = map[types.ProviderName]string{
	types.ProviderClaude: "claude-sonnet-4-5-20250929",
	types.ProviderOpenAI: "gpt-4o",
	types.ProviderVertex: "gemini-2.0-flash",
}

func setDefaults() {
	viper.SetDefault("ai.provider", string(types.ProviderClaude))
	viper.SetDefault("ai.max_tokens", 8192)
	viper.SetDefault("ai.max_retries", 1)
	viper.SetDefault("store.path", "data/sessions.db")
	viper.SetDefault("orchestration.max_sections", 40)
	viper.SetDefault("orchestration.min_sections", 5)
	viper.SetDefault("orchestration.check_ratio", 0.6)
	viper.SetDefault("documents.backend", string(types.DocumentsFile))
	viper.SetDefault("documents.dir", "output/articles")
	viper.SetDefault("documents.collection", "articles")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("secrets_dir", ".secrets/")
}

// engineConfig assembles the configuration from viper and loaded secrets.
func engineConfig() types.EngineConfig {
	name := types.ProviderName(viper.GetString("ai.provider"))
	model := viper.GetString("ai.model")
	if model == "" {
		model = defaultModels[name]
	}
	apiKey := viper.GetString("ai.api_key")
	if apiKey == "" {
		apiKey = secrets.APIKey(loadedSecrets, name)
	}

	return types.EngineConfig{
		AI: types.AIConfig{
			Provider:       name,
			Model:          model,
			EvaluatorModel: viper.GetString("ai.evaluator_model"),
			APIKey:         apiKey,
			BaseURL:        viper.GetString("ai.base_url"),
			ProjectID:      viper.GetString("ai.project_id"),
			Region:         viper.GetString("ai.region"),
			MaxTokens:      viper.GetInt("ai.max_tokens"),
			ThinkingBudget: viper.GetInt("ai.thinking_budget"),
			MaxRetries:     viper.GetInt("ai.max_retries"),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
		Orchestration: types.OrchestrationConfig{
			MaxSections: viper.GetInt("orchestration.max_sections"),
			MinSections: viper.GetInt("orchestration.min_sections"),
			CheckRatio:  viper.GetFloat64("orchestration.check_ratio"),
		},
		Documents: types.DocumentStoreConfig{
			Backend:    types.DocumentBackend(viper.GetString("documents.backend")),
			Dir:        viper.GetString("documents.dir"),
			ProjectID:  viper.GetString("documents.project_id"),
			Collection: viper.GetString("documents.collection"),
			Bucket:     viper.GetString("documents.bucket"),
		},
		Webhook: types.WebhookConfig{
			URL: viper.GetString("webhook.url"),
		},
		LogLevel: viper.GetString("log.level"),
	}
}

// engine holds everything a generating command needs.
type engine struct {
	cfg     types.EngineConfig
	store   *session.Store
	model   provider.Client
	docs    docstore.Backend
	events  *broadcast.Broadcaster
	webhook broadcast.Sink
	svc     *orchestrate.Service
}

// openStore opens the session store for read-only commands.
func openStore() (*session.Store, error) {
	return session.NewStore(engineConfig().Store)
}

// openService wires a Service over the store with no model attached. It
// serves progress queries and recovery.
func openService(store *session.Store) *orchestrate.Service {
	return orchestrate.NewService(store, orchestrate.Deps{Logger: logger})
}

// openEngine wires the store, model provider, document store, and event
// fan-out into a Service.
func openEngine(ctx context.Context) (*engine, error) {
	cfg := engineConfig()

	store, err := session.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	e := &engine{cfg: cfg, store: store}

	e.model, err = provider.New(ctx, cfg.AI)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.docs, err = docstore.New(ctx, cfg.Documents)
	if err != nil {
		e.Close()
		return nil, err
	}
	if cfg.Webhook.URL != "" {
		sink, err := broadcast.NewCloudEventSink(cfg.Webhook.URL)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.webhook = sink
	}

	e.events = broadcast.New(logger)
	e.svc = orchestrate.NewService(store, orchestrate.Deps{
		Provider:         e.model,
		Documents:        e.docs,
		Events:           e.events,
		Logger:           logger,
		Config:           cfg.Orchestration,
		EvaluatorRetries: cfg.AI.MaxRetries,
	})
	return e, nil
}

// watch attaches sink, plus the webhook when configured, to a session.
func (e *engine) watch(sessionID string, sink broadcast.Sink) {
	if sink == nil && e.webhook == nil {
		return
	}
	e.svc.Register(sessionID, broadcast.NewTee(sink, e.webhook))
}

// Close releases every resource opened by openEngine.
func (e *engine) Close() error {
	var errs []error
	if e.docs != nil {
		errs = append(errs, e.docs.Close())
	}
	if e.model != nil {
		errs = append(errs, e.model.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}
