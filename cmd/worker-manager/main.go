// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"support-drafts/internal/api"
	"support-drafts/internal/app"
	"support-drafts/internal/common/camunda"
	"support-drafts/internal/common/config"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/observability"
	"support-drafts/internal/common/validation"
	"support-drafts/pkg/registry"

	gd "support-drafts/internal/workers/drafting/generate-draft"
	si "support-drafts/internal/workers/drafting/screen-input"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		zapLog = logger.New(cfg.Logging.Level, "console")
	}
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	})
	log.Info("starting support drafts service", map[string]interface{}{
		"environment":   cfg.App.Environment,
		"vectorBackend": cfg.Vector.Backend,
		"camunda":       cfg.Camunda.Enabled,
	})

	obs := observability.NewWithOptions(observability.Options{
		ServiceName:    cfg.Tracing.ServiceName,
		TracingEnabled: cfg.Tracing.Enabled,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drafts, err := app.Build(ctx, cfg, app.Options{}, obs, log)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer drafts.Close()

	validator, err := validation.NewValidator()
	if err != nil {
		zapLog.Fatal("schema compilation failed", zap.Error(err))
	}

	// --- Zeebe workers ---
	workers := camunda.NewWorkers(log)
	if cfg.Camunda.Enabled {
		zb, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		drafts.OnClose(zb.Close)
		drafts.Checks["zeebe"] = zb.HealthCheck

		generateCfg := config.GetWorkerConfig(cfg, gd.TaskType)
		workers.Start(zb.GetClient(), gd.TaskType, generateCfg,
			gd.NewHandler(gd.LoadConfig(generateCfg), drafts.Service, validator, log))

		workers.Start(zb.GetClient(), si.TaskType, config.GetWorkerConfig(cfg, si.TaskType),
			si.NewHandler(si.LoadConfig(), drafts.Service, validator, log))

		log.Info("workers registered", map[string]interface{}{"count": workers.Count()})
		checkActivityRegistry(log, gd.TaskType, si.TaskType)
	}

	// --- HTTP API ---
	handler := api.NewHandler(drafts.Service, validator, drafts.Checks, config.GetDuration(cfg.Server.RequestTimeout), log)
	e := api.NewServer(handler, cfg.Server, log)
	e.Server.ReadTimeout = config.GetDuration(cfg.Server.ReadTimeout)
	e.Server.WriteTimeout = config.GetDuration(cfg.Server.WriteTimeout)

	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	workers.Close()

	log.Info("shutdown complete", nil)
}

// checkActivityRegistry warns about task types the process models cannot discover.
func checkActivityRegistry(log logger.Logger, taskTypes ...string) {
	path := os.Getenv("ACTIVITY_REGISTRY_PATH")
	if path == "" {
		path = "configs/activity-registry.json"
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	for _, tt := range taskTypes {
		if _, ok := reg.Find(tt); !ok {
			log.Warn("task type missing from activity registry", map[string]interface{}{"taskType": tt, "registryVersion": reg.Version})
		}
	}
}
