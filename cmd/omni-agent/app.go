package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"omni-agent/internal/agent"
	"omni-agent/internal/cache"
	"omni-agent/internal/config"
	"omni-agent/internal/llm"
	"omni-agent/internal/logger"
	"omni-agent/internal/session"
	"omni-agent/internal/tools"
)

// app 两个子命令共用的组件
type app struct {
	cfg        *config.Config
	client     *llm.Client
	registry   *tools.Registry
	agent      *agent.Agent
	cache      cache.Cache
	transcript *logger.Transcript
	closers    []io.Closer
}

func loadConfig(path string, explicit, needTelegram bool) (*config.Config, error) {
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(needTelegram); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp 按配置组装日志、缓存、工具、模型客户端与编排器
func newApp(ctx context.Context, cfg *config.Config, opts ...llm.ClientOption) (*app, error) {
	a := &app{cfg: cfg}

	_, logCloser, err := logger.Setup(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	a.closers = append(a.closers, logCloser)

	a.transcript, err = logger.NewTranscript(cfg.Logging.TranscriptDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.transcript)

	a.cache, err = cache.New(ctx, cache.Options{
		Driver:     cfg.Cache.Driver,
		MaxEntries: cfg.Cache.MaxEntries,
		MaxTTL:     max(cfg.Cache.PriceTTL.Std(), cfg.Cache.NewsTTL.Std()),
		Redis: cache.RedisConfig{
			Address:  cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			Prefix:   cfg.Cache.Prefix,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.cache)

	a.registry, err = tools.NewDefaultRegistry(tools.SetConfig{
		RelayerURL:  cfg.Tools.RelayerURL,
		PriceAPIURL: cfg.Tools.PriceAPIURL,
		NewsURL:     cfg.Tools.NewsURL,
		SearchURL:   cfg.Tools.SearchURL,
		BraveAPIKey: cfg.Tools.BraveAPIKey,
		Timeout:     cfg.Tools.Timeout.Std(),
		TokenCap:    cfg.Tools.TokenListCap,
		NewsLimit:   cfg.Tools.NewsLimit,
		Cache:       a.cache,
		PriceTTL:    cfg.Cache.PriceTTL.Std(),
		NewsTTL:     cfg.Cache.NewsTTL.Std(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	prompt, err := agent.LoadPrompt(cfg.Agent.SystemPromptPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	if r := cfg.LLM.Retry; r.Enabled {
		opts = append([]llm.ClientOption{llm.WithRetryConfig(
			llm.RetryConfig(r.MaxRetries, r.InitialDelay.Std(), r.MaxDelay.Std(), r.ExponentialBase),
		)}, opts...)
	}
	a.client = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Model, opts...)
	a.agent = agent.New(a.client, a.registry,
		session.NewStore(cfg.Session.MaxUsers, cfg.Session.IdleTTL.Std(), cfg.Agent.MaxTurns),
		agent.Options{
			SystemPrompt: prompt,
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			LLMTimeout:   cfg.LLM.Timeout.Std(),
			ToolTimeout:  cfg.Tools.Timeout.Std(),
			MaxToolHops:  cfg.Agent.MaxToolHops,
			TokenLimit:   cfg.Agent.TokenLimit,
			Transcript:   a.transcript,
		})

	slog.Info("Agent ready",
		slog.String("model", cfg.LLM.Model),
		slog.Int("tools", len(a.registry.List())),
		slog.String("cache", cfg.Cache.Driver),
		slog.Bool("llm_retry", cfg.LLM.Retry.Enabled),
		slog.String("transcript", a.transcript.Path()),
	)
	return a, nil
}

// Close 逆序关闭资源
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("Close failed", slog.String("err", err.Error()))
		}
	}
	a.closers = nil
}
