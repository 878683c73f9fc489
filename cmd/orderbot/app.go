package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/orderbot/internal/config"
	"github.com/user/orderbot/internal/conversation"
	"github.com/user/orderbot/internal/delivery"
	"github.com/user/orderbot/internal/gateway"
	"github.com/user/orderbot/internal/menu"
	"github.com/user/orderbot/internal/prompt"
	"github.com/user/orderbot/internal/scheduler"
	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
	"github.com/user/orderbot/pkg/llm"
	"github.com/user/orderbot/pkg/llm/openai"
)

// app holds the components shared by every channel.
type app struct {
	cfg       *config.Config
	store     state.Store
	orders    state.OrderLog
	menu      *menu.Source
	delivery  *delivery.Registry
	manager   *conversation.Manager
	gateway   *gateway.Gateway
	scheduler *scheduler.Scheduler
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "openai":
		return openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.CallTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// newApp wires the store, menu, prompt, completion and conversation layers.
// Channels register their delivery handlers on app.delivery afterwards.
func newApp(ctx context.Context, cfg *config.Config, provider llm.Provider) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := state.Open(cfg.Storage.Backend, cfg.DataDir, cfg.Storage.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("ping store: %w", err)
		}
	}

	src := menu.NewSource(cfg.Store.MenuPath, cfg.Store.MenuURL)
	if src.Configured() {
		if err := src.Refresh(ctx); err != nil {
			slog.Warn("initial menu load failed, starting without menu", "error", err)
		}
	}

	prompts, err := prompt.LoadBuilder(cfg.Store.PromptPath, src)
	if err != nil {
		store.Close()
		return nil, err
	}

	engine := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	completer := conversation.NewLLMCompleter(provider, engine)

	orders := state.OpenOrderLog(store, cfg.DataDir)
	registry := delivery.NewRegistry()
	manager := conversation.NewManager(store, completer, registry, prompts, cfg.Store.Name,
		conversation.WithCallTimeout(cfg.CallTimeout()),
		conversation.WithOrderLog(orders))

	gw := gateway.New(func(ctx context.Context, msg *types.InboundMessage) {
		manager.HandleInbound(ctx, msg)
	}, int64(cfg.MaxConcurrent))

	sched := scheduler.New()
	if src.Configured() && cfg.Store.MenuRefresh != "" {
		err := sched.Add(scheduler.Job{
			Name:     "menu_refresh",
			Schedule: cfg.Store.MenuRefresh,
			Run:      src.Refresh,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &app{
		cfg:       cfg,
		store:     store,
		orders:    orders,
		menu:      src,
		delivery:  registry,
		manager:   manager,
		gateway:   gw,
		scheduler: sched,
	}, nil
}

func (a *app) start(ctx context.Context) {
	a.gateway.Start(ctx)
	a.scheduler.Start()
}

// shutdown stops accepting messages, lets in-flight ones finish, drains
// pending sends and closes the store.
func (a *app) shutdown() {
	a.scheduler.Stop()
	a.gateway.Stop()
	a.manager.Wait()
	if err := a.store.Close(); err != nil {
		slog.Warn("close store failed", "error", err)
	}
}
