package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/api"
	"github.com/LagoAI/LiebExplorer/pkg/config"
	"github.com/LagoAI/LiebExplorer/pkg/engine"
	"github.com/LagoAI/LiebExplorer/pkg/events"
	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
	"github.com/LagoAI/LiebExplorer/pkg/logging"
	"github.com/LagoAI/LiebExplorer/pkg/orchestrator"
	"github.com/LagoAI/LiebExplorer/pkg/profile"
	"github.com/LagoAI/LiebExplorer/pkg/security/navguard"
	"github.com/LagoAI/LiebExplorer/pkg/stats"
)

const shutdownTimeout = 30 * time.Second

// settings is the snapshot of every config section used at startup.
type settings struct {
	browser      config.BrowserSettings
	layout       config.LayoutSettings
	orchestrator config.OrchestratorSettings
	storage      config.StorageSettings
}

func snapshot(m *config.Manager) settings {
	return settings{
		browser:      m.Browser().Settings(),
		layout:       m.Layout().Settings(),
		orchestrator: m.Orchestrator().Settings(),
		storage:      m.Storage().Settings(),
	}
}

func newLayoutEngine(s config.LayoutSettings) *layout.Engine {
	return layout.NewEngine(layout.Options{
		Screen: layout.Screen{
			Width:      s.ScreenWidth,
			Height:     s.ScreenHeight,
			TopMargin:  s.TopMargin,
			CellMargin: s.CellMargin,
		},
		Jitter:    s.Jitter,
		MaxOffset: s.JitterOffset,
		MaxResize: s.JitterResize,
		Source:    rand.NewSource(time.Now().UnixNano()),
	})
}

func profileConfig(s config.StorageSettings) profile.Config {
	return profile.Config{
		Backend:   s.Backend,
		Path:      s.Path,
		RedisURL:  s.RedisURL,
		KeyPrefix: s.KeyPrefix,
	}
}

func retryPolicy(s config.OrchestratorSettings) orchestrator.RetryPolicy {
	return orchestrator.RetryPolicy{
		MaxAttempts: s.MaxAttempts,
		BaseDelay:   s.BaseDelay,
		Multiplier:  s.Multiplier,
		MaxDelay:    s.MaxDelay,
	}
}

func hostRules(s config.OrchestratorSettings) navguard.Rules {
	return navguard.Rules{Allowed: s.AllowedHosts, Denied: s.DeniedHosts}
}

// runServe wires every component and serves the API until ctx is done.
func runServe(ctx context.Context, cfg *serveConfig, logger *logging.Logger) error {
	configPath := cfg.ConfigPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	manager, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	s := snapshot(manager)
	if cfg.Headless != nil {
		s.browser.Headless = *cfg.Headless
	}
	logger.Infof("Configuration loaded from %s", configPath)

	store, err := profile.Open(ctx, profileConfig(s.storage))
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	defer store.Close()

	eng := engine.NewPlaywrightEngine(engine.Options{
		Headless:       s.browser.Headless,
		ExecutablePath: s.browser.ExecutablePath,
		ProfilesDir:    s.browser.ProfilesDir,
		Proxies:        s.browser.ProxyServers,
		LaunchTimeout:  s.browser.LaunchTimeout,
		MaxMemoryMB:    s.browser.MaxMemoryMB,
		Logger:         logger.With("engine"),
	})
	if err := eng.Initialize(); err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	defer func() {
		if err := eng.Shutdown(); err != nil {
			logger.Errorf("Engine shutdown failed: %v", err)
		}
	}()

	guard, err := navguard.New(hostRules(s.orchestrator))
	if err != nil {
		return fmt.Errorf("invalid host rules: %w", err)
	}

	bus := events.NewBus[events.InstanceEvent](ctx, events.BusOptions{
		Name:        "instances",
		HistorySize: 100,
		Logger:      logger.With("events"),
	})
	defer bus.Close()

	orch, err := orchestrator.New(orchestrator.Options{
		Engine:           eng,
		Synthesizer:      identity.NewRandomSynthesizer(),
		Layout:           newLayoutEngine(s.layout),
		Profiles:         store,
		Guard:            guard,
		Events:           bus,
		Retry:            retryPolicy(s.orchestrator),
		ProfilesDir:      s.browser.ProfilesDir,
		MaxInstances:     s.browser.MaxInstances,
		DefaultZoom:      s.browser.DefaultZoom,
		BatchConcurrency: s.orchestrator.BatchConcurrency,
		Logger:           logger.With("orchestrator"),
	})
	if err != nil {
		return err
	}

	err = config.Watch(ctx, manager, configPath, logger.With("config"), func(m *config.Manager) {
		if err := guard.Update(hostRules(m.Orchestrator().Settings())); err != nil {
			logger.Warnf("Ignoring reloaded host rules: %v", err)
			return
		}
		logger.Infof("Navigation host rules updated")
	})
	if err != nil {
		logger.Warnf("Config hot reload disabled: %v", err)
	}

	srv := api.NewServer(api.Options{
		Orchestrator:   orch,
		Stats:          stats.NewSampler(),
		Events:         bus,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBatchCreate: s.browser.MaxInstances,
		Version:        version,
		Logger:         logger.With("api"),
	})
	e := api.NewEcho(srv)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting HTTP server on %s", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitSpawn := startSpawn(ctx, orch, cfg.Instances, logger)

	select {
	case <-ctx.Done():
		logger.Infof("Shutting down")
	case err, ok := <-serveErr:
		if ok && err != nil {
			logger.Errorf("HTTP server error: %v", err)
			waitSpawn()
			shutdown(orch, logger)
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown failed: %v", err)
	}
	waitSpawn()
	shutdown(orch, logger)
	return nil
}

// startSpawn creates n startup instances in the background. The returned
// function blocks until those creations have finished.
func startSpawn(ctx context.Context, orch *orchestrator.Orchestrator, n int, logger logging.Interface) func() {
	done := make(chan struct{})
	if n <= 0 {
		close(done)
		return func() { <-done }
	}
	go func() {
		defer close(done)
		spawn(ctx, orch, n, logger)
	}()
	return func() { <-done }
}

func spawn(ctx context.Context, orch *orchestrator.Orchestrator, n int, logger logging.Interface) {
	created := 0
	for _, r := range orch.CreateInstances(ctx, n) {
		if r.Success {
			created++
			continue
		}
		logger.Errorf("Startup instance %s failed: %v", r.ID, r.Err)
	}
	logger.Infof("Created %d of %d startup instance(s)", created, n)
}

// shutdown checkpoints and closes every instance.
func shutdown(orch *orchestrator.Orchestrator, logger logging.Interface) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := orch.SaveLayout(ctx); err != nil {
		logger.Warnf("Failed to save layout: %v", err)
	}
	orch.Cleanup(ctx)
}
