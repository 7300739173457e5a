package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/ttv-relay/internal/audit"
	"github.com/weiawesome/ttv-relay/internal/config"
	"github.com/weiawesome/ttv-relay/internal/export"
	"github.com/weiawesome/ttv-relay/internal/handler"
	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/mailbox"
	"github.com/weiawesome/ttv-relay/internal/poll"
	"github.com/weiawesome/ttv-relay/internal/registry"
	"github.com/weiawesome/ttv-relay/internal/reward"
	"github.com/weiawesome/ttv-relay/internal/room"
	"github.com/weiawesome/ttv-relay/internal/service"
	pkglog "github.com/weiawesome/ttv-relay/pkg/log"
	"github.com/weiawesome/ttv-relay/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	if cfg.Registry.InstanceID == "" {
		cfg.Registry.InstanceID = uuid.NewString()
	}

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("instance", cfg.Registry.InstanceID).
		Msg("starting ttv-relay")

	var promReg *prometheus.Registry
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	// A nil *Registry stored in the interface would not read as nil.
	var reg prometheus.Registerer
	if promReg != nil {
		reg = promReg
	}

	clock := clockwork.NewRealClock()

	// Delivery and room state
	mb := mailbox.New(mailbox.Config{TTL: cfg.Mailbox.TTL, Clock: clock, PromRegistry: reg})
	rooms := room.NewDirectory(mb, reg)
	mb.SetEvictFunc(rooms.RemoveClient)

	polls := poll.NewAggregator(rooms, poll.Config{
		Grace:        cfg.Poll.Grace,
		Retention:    cfg.Poll.Retention,
		Clock:        clock,
		PromRegistry: reg,
	})
	rewards := reward.NewCatalog(rooms, cfg.Rewards.MaxCatalogSize, reg)

	// Room registry for multi-instance routing
	var roomRegistry registry.Registry = registry.Noop{}
	if cfg.Registry.Enabled {
		rr, err := registry.NewRedisRegistry(cfg.Registry, cfg.Registry.InstanceID)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create room registry")
		}
		roomRegistry = rr
	}

	h := hub.NewHub(mb, reg)
	h.AddListener(rooms)
	h.AddListener(rewards)
	registryListener := registry.NewListener(roomRegistry, cfg.Registry.RegisterTimeout)
	h.AddListener(registryListener)
	h.AddListener(audit.ConnectionListener{})

	// Event export
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	exporter := export.New(publisher, export.Config{Clock: clock, PromRegistry: reg})

	svc := service.NewRelayService(h, mb, rooms, polls, rewards, exporter, roomRegistry)
	polls.SetFinalizedFunc(svc.OnPollFinalized)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start relay service")
	}

	// Create handlers
	wsHandler := handler.NewWSHandler(h, svc, cfg.WebSocket, reg)
	httpHandler := handler.NewHTTPHandler(svc)

	var metricsHandler http.Handler
	if promReg != nil {
		metricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg})
	}
	router := handler.NewRouter(wsHandler, httpHandler, cfg.Metrics.Path, metricsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     pkglog.HTTPMiddleware(logger, "/health", cfg.Metrics.Path)(router),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("ttv-relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return exporter.Run(gctx)
	})

	g.Go(func() error {
		registryListener.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down ttv-relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Error().Err(runErr).Msg("relay exited with error")
	}

	// Hub and exporter are stopped by now; timers go last.
	if err := svc.Stop(); err != nil {
		logger.Error().Err(err).Msg("relay service stop error")
	}

	logger.Info().Msg("ttv-relay stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
