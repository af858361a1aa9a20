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

	"streamctl/internal/core/domain"
	"streamctl/internal/core/ports"
	"streamctl/internal/core/services"
	handlers "streamctl/internal/handlers/http"
	"streamctl/internal/infrastructure/encoder"
	"streamctl/internal/infrastructure/middleware"
	"streamctl/internal/infrastructure/monitoring"
	"streamctl/internal/infrastructure/netif"
	"streamctl/internal/infrastructure/pipelines"
	"streamctl/internal/infrastructure/process"
	"streamctl/internal/infrastructure/repositories"
	"streamctl/internal/infrastructure/resolver"
	ws "streamctl/internal/infrastructure/signal"
	"streamctl/pkg/config"
	"streamctl/pkg/logger"
	"streamctl/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("streamctl", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("streamctl %s\n", version)
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer zl.Sync()
	log := zl.Sugar()

	tcfg := tracing.DefaultConfig()
	tcfg.Enabled = cfg.Tracing.Enabled
	tcfg.JaegerURL = cfg.Tracing.JaegerURL
	tcfg.Environment = cfg.Tracing.Environment
	tcfg.SampleRate = cfg.Tracing.SampleRate
	tcfg.Version = version
	tp, err := tracing.Init(tcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return err
	}
	defer factory.Close()

	var setup domain.Setup
	found, err := factory.CreateSetupStore().Load(ctx, ports.DocumentSetup, &setup)
	if err != nil {
		return fmt.Errorf("failed to read the setup document: %w", err)
	}
	if !found {
		log.Warnw("setup document not found, using defaults", "file", cfg.Storage.SetupFile)
	}
	setup = setup.WithDefaults()
	log.Infow("setup loaded", "hw", setup.Hardware, "pipelines_dir", setup.PipelinesDir)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewPrometheusCollector(registry)

	state := factory.CreateStateStore()
	scanner := pipelines.NewScanner(setup.PipelinesDir, setup.Hardware, log.Named("pipelines"))
	procs := process.NewController(cfg.Streaming.ProcRoot, log.Named("process"))
	monitor := services.NewNetworkMonitor(
		netif.NewPoller(cfg.Streaming.ProcRoot, log.Named("netif")),
		metrics,
		cfg.Network.PollInterval,
		log.Named("netif"),
	)
	commands := encoder.NewCommands(setup, monitor, log.Named("encoder"))

	configStore := services.NewConfigStore(
		state,
		scanner,
		resolver.New(cfg.Resolver.Timeout),
		encoder.NewControl(setup, procs),
		metrics,
		log.Named("config"),
	)
	if err := configStore.Load(ctx); err != nil {
		return err
	}
	tokens := services.NewTokenRegistry(state, metrics, log.Named("tokens"))
	if err := tokens.Load(ctx); err != nil {
		return err
	}
	credentials := services.NewCredentialStore(configStore, log.Named("credentials"))
	supervisor := services.NewStreamSupervisor(
		configStore,
		scanner,
		procs,
		commands,
		metrics,
		cfg.Streaming.StatusInterval,
		log.Named("supervisor"),
	)

	health := monitoring.NewHealthChecker()
	health.AddDocumentStoreCheck(state, 2*time.Second)
	health.AddPipelinesCheck(scanner, 2*time.Second)
	health.AddPathCheck("proc", cfg.Streaming.ProcRoot)

	hub := ws.NewHub(ws.OptionsFromConfig(cfg), ws.Services{
		Credentials: credentials,
		Tokens:      tokens,
		Config:      configStore,
		Streams:     supervisor,
		Pipelines:   scanner,
		Network:     monitor,
		System:      process.NewSystemCommander(log.Named("system")),
		Metrics:     metrics,
	}, middleware.NewAuthAttemptLimiter(cfg), zl.Named("signal"))
	supervisor.SetStateListener(hub.PublishStatus)
	monitor.SetUpdateListener(hub.PublishNetif)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log.Named("http")))
	router.Use(middleware.ErrorHandlerMiddleware(log.Named("http")))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(cfg.Signal.Path))
	}
	if cfg.RateLimiting.Enabled {
		router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	}

	router.GET(cfg.Signal.Path, hub.HandleWebSocket)
	handlers.NewSystemHandler(health, version).SetupRoutes(router)

	requireToken := middleware.TokenAuthMiddleware(tokens)
	if cfg.Monitoring.PrometheusEnabled {
		metricsHandler := gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if cfg.Monitoring.MetricsAuth {
			router.GET("/metrics", requireToken, metricsHandler)
		} else {
			router.GET("/metrics", metricsHandler)
		}
	}

	api := router.Group("/api/v1", requireToken)
	handlers.NewStreamHandler(supervisor, configStore, scanner, monitor).SetupRoutes(api)

	if cfg.Server.StaticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("listening", "address", cfg.Server.Address, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return supervisor.Run(gctx) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http shutdown failed", "error", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warnw("tracer shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorw("streamctl stopped with error", "error", err)
		return err
	}
	log.Infow("streamctl stopped")
	return nil
}

