package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tenantplane/internal/audit"
	"tenantplane/internal/events"
	"tenantplane/internal/module"
	"tenantplane/internal/modules/billing"
	"tenantplane/internal/modules/crm"
	"tenantplane/internal/modules/hotel"
	"tenantplane/internal/platform/config"
	"tenantplane/internal/platform/health"
	"tenantplane/internal/platform/logger"
	"tenantplane/internal/platform/metrics"
	"tenantplane/internal/tenancy/resolver"
	"tenantplane/internal/tenant/handler"
	tenantmetrics "tenantplane/internal/tenant/metrics"
	"tenantplane/internal/tenant/service"
	"tenantplane/internal/tenant/store"
	httptransport "tenantplane/internal/transport/http"
	"tenantplane/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 15 * time.Second
	poolStatsInterval = 15 * time.Second
	auditBuffer       = 256
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service and module packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("initializing tenantplane",
		"addr", cfg.Server.Addr,
		"mode", cfg.Mode,
		"environment", cfg.Server.Environment,
		"event_transport", cfg.Transport,
	)
	if cfg.IsSilo() {
		log.Info("dedicated instance", "tenant", cfg.Silo.TenantID, "modules", cfg.Silo.SubscribedModules)
	}

	reg := metrics.NewRegistry()
	checks := health.New(cfg.Server.Environment, string(cfg.Mode))

	infra, err := connect(ctx, cfg, reg, checks, log)
	if err != nil {
		return err
	}
	defer infra.close(log)

	trail := audit.NewPublisher(infra.auditStore(),
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithPublisherLogger(log),
	)
	defer trail.Close()

	tenantStore := infra.tenantStore()
	bus := events.New(infra.transport,
		events.WithLogger(log),
		events.WithMetrics(events.NewMetrics(reg)),
		events.WithTenantLookup(store.NewLookup(tenantStore)),
	)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	data := infra.dataStore(cfg, reg, checks, log)
	registry := module.Load([]module.Module{
		hotel.New(data, bus, log),
		billing.New(data, log),
		crm.New(data, bus, log),
	}, log)
	if err := bus.Bind(registry); err != nil {
		return fmt.Errorf("bind event bus: %w", err)
	}
	if err := registry.Subscribe(ctx, bus); err != nil {
		return fmt.Errorf("subscribe modules: %w", err)
	}
	if err := trail.Subscribe(ctx, bus); err != nil {
		return err
	}
	log.Info("modules loaded", "modules", registry.Slugs())

	tenants := service.New(tenantStore, registry,
		service.WithLogger(log),
		service.WithMetrics(tenantmetrics.New(reg)),
		service.WithPublisher(bus),
	)
	res := resolver.New(cfg, tenants, registry,
		resolver.WithLogger(log),
		resolver.WithMetrics(resolver.NewMetrics(reg)),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Registry:       registry,
		Resolver:       res.Middleware,
		Tenants:        handler.New(tenants, log, !cfg.IsSilo()),
		Audit:          audit.NewHandler(trail, log),
		Health:         checks,
		Metrics:        reg,
		RequestMetrics: request.NewMetrics(reg),
		AdminToken:     cfg.Server.AdminToken,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if cfg.Server.AdminToken == "" {
		log.Warn("ADMIN_API_TOKEN is empty; admin routes are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	if infra.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					infra.redis.RecordPoolStats()
				}
			}
		})
	}
	return g.Wait()
}
