package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	approvalhandler "purchasegate/internal/approval/handler"
	"purchasegate/internal/approval/workers/sweep"
	"purchasegate/internal/audit"
	audithandler "purchasegate/internal/audit/handler"
	"purchasegate/internal/catalog"
	consenthandler "purchasegate/internal/consent/handler"
	enthandler "purchasegate/internal/entitlement/handler"
	jwttoken "purchasegate/internal/jwt_token"
	ledgerhandler "purchasegate/internal/ledger/handler"
	"purchasegate/internal/notification"
	"purchasegate/internal/platform/config"
	"purchasegate/internal/platform/database"
	"purchasegate/internal/platform/health"
	"purchasegate/internal/platform/kafka/producer"
	"purchasegate/internal/platform/logger"
	"purchasegate/internal/platform/redis"
	purchasehandler "purchasegate/internal/purchase/handler"
	"purchasegate/internal/seeder"
	httptransport "purchasegate/internal/transport/http"
	"purchasegate/migrations"
	"purchasegate/pkg/requestcontext"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	migrate := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrate, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, migrate bool, log *slog.Logger) error {
	log.Info("initializing purchasegate",
		"env", cfg.Env,
		"addr", cfg.Server.Addr,
		"approval_store", cfg.ApprovalStore,
		"database", cfg.Database.URL != "",
	)

	pool, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close() //nolint:errcheck // shutdown path

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck // shutdown path
	}

	var kafka *producer.Producer
	if cfg.Kafka.Brokers != "" {
		if kafka, err = producer.New(cfg.Kafka, log); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer kafka.Close() //nolint:errcheck // shutdown path
	}

	healthHandler := health.New(cfg.Env)
	var db *sql.DB
	if pool != nil {
		db = pool.DB()
		if migrate {
			if err := migrations.Up(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}
		healthHandler.RegisterCheck("postgres", pool.Health)
		if err := prometheus.Register(pool.Collector()); err != nil {
			return fmt.Errorf("database metrics: %w", err)
		}
	}
	if rdb != nil {
		healthHandler.RegisterCheck("redis", rdb.Health)
		if err := prometheus.Register(rdb.Collector()); err != nil {
			return fmt.Errorf("redis metrics: %w", err)
		}
	}
	if kafka != nil {
		healthHandler.RegisterOptional("kafka", kafka.Health)
	}

	st := newStores(db)
	approvalStore, err := newApprovalStore(cfg, db, rdb)
	if err != nil {
		return err
	}

	packs, err := catalog.NewFileCatalog(cfg.Catalog.Path,
		catalog.WithCacheTTL(cfg.Catalog.CacheTTL),
		catalog.WithDefaultCurrency(cfg.Purchase.DefaultCurrency),
		catalog.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	log.Info("catalog loaded", "path", cfg.Catalog.Path, "version", packs.Version())

	sink, err := newSink(ctx, cfg, kafka, st.family, log)
	if err != nil {
		return fmt.Errorf("notifications: %w", err)
	}
	notifier := notification.NewDispatcher(sink,
		notification.WithBuffer(cfg.Notify.Buffer),
		notification.WithSendTimeout(cfg.Notify.Timeout),
		notification.WithLogger(log),
	)
	defer notifier.Close()

	auditor := audit.NewPublisher(st.trail,
		audit.WithAsyncBuffer(cfg.Notify.Buffer),
		audit.WithPublisherLogger(log),
	)
	defer auditor.Close()

	svcs, err := newServices(serviceDeps{
		cfg:       cfg,
		stores:    st,
		approvals: approvalStore,
		catalog:   packs,
		notifier:  notifier,
		auditor:   auditor,
		logger:    log,
	})
	if err != nil {
		return err
	}

	healthHandler.RegisterOptional("payment_circuit", svcs.payments.Health)

	if cfg.Env == "dev" {
		seedCtx := requestcontext.WithTime(ctx, time.Now())
		if err := seeder.New(st.family, svcs.consent, log).SeedAll(seedCtx); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	sessions, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	sessions.SetEnv(cfg.Env)

	purchases := purchasehandler.New(svcs.purchases, svcs.signer, log)
	router := httptransport.NewRouter(httptransport.Config{
		Sessions:       jwttoken.NewJWTServiceAdapter(sessions),
		RequestTimeout: cfg.Server.WriteTimeout,
		MetricsPath:    cfg.Server.MetricsPath,
	}, httptransport.Handlers{
		API: []httptransport.Registrar{
			consenthandler.New(svcs.consent, log),
			ledgerhandler.New(svcs.ledger, svcs.consent, log),
			enthandler.New(svcs.entitlements, svcs.consent, log),
			approvalhandler.New(svcs.approvals, log),
			audithandler.New(st.trail, svcs.consent, log),
			purchases,
		},
		Public: []httptransport.PublicRegistrar{purchases},
		Health: healthHandler,
	}, log)

	sweeper, err := sweep.New(svcs.approvals,
		sweep.WithInterval(cfg.Sweep.Interval),
		sweep.WithListener(svcs.purchases),
		sweep.WithLogger(log),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Sweep.Enabled {
		g.Go(func() error { return ignoreCancel(sweeper.Start(gctx)) })
	}

	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
