package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reacher-incidents/api"
	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/checks"
	"reacher-incidents/api/v1/executions"
	"reacher-incidents/api/v1/health"
	"reacher-incidents/api/v1/owners"
	"reacher-incidents/api/v1/probe"
	"reacher-incidents/api/v1/timelines"
	"reacher-incidents/client"
	"reacher-incidents/config"
	"reacher-incidents/events"
	"reacher-incidents/logging"
	"reacher-incidents/repository"
	"reacher-incidents/repository/postgres"
	"reacher-incidents/services/v1/criteria"
	"reacher-incidents/services/v1/escalation"
	"reacher-incidents/services/v1/incident"
	"reacher-incidents/services/v1/metrics"
	"reacher-incidents/services/v1/monitor"
	"reacher-incidents/services/v1/retention"
	"reacher-incidents/services/v1/timeline"
)

// publisher é o que o feed e o escalonamento precisam de quem publica.
type publisher interface {
	events.FeedPublisher
	escalation.RuleExecutor
}

func main() {
	issueToken := flag.String("issue-token", "", "print a JWT for the given project id and exit")
	tokenUser := flag.String("token-user", "", "user id carried by -issue-token")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "validity of -issue-token")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if *issueToken != "" {
		token, err := middleware.IssueToken([]byte(cfg.JWTSecret), *issueToken, *tokenUser, *tokenTTL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(token)
		return
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("shutting down with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]health.Check{}

	// Storage: postgres quando configurado, memória em desenvolvimento.
	var store repository.Store
	if cfg.PostgresURI != "" {
		db, err := client.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := postgres.NewStore(db)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
		healthChecks["postgres"] = func(ctx context.Context) error { return pingDB(ctx, db) }
	} else {
		logger.Warn("POSTGRES_URI not set, using in-memory store")
		mem := repository.NewMemory()
		mem.SeedDefaults("default")
		store = mem
	}

	var rdb *redis.Client
	if cfg.RedisURI != "" {
		var err error
		rdb, err = client.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			return err
		}
		defer rdb.Close()
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var pub publisher = events.LogPublisher{Log: logging.Component(logger, "events")}
	if cfg.NatsURL != "" {
		nc, err := client.ConnectNATS(cfg.NatsURL, logging.Component(logger, "nats"))
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer nc.Drain()
		pub = events.NewNATSPublisher(nc)
		healthChecks["nats"] = func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		}
	}

	dispatcher := events.NewDispatcher(events.DispatcherConfig{Workers: cfg.DispatcherWorkers}, logging.Component(logger, "dispatcher"))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Núcleo
	recorder := metrics.NewRecorder(store, logger)
	tlOpts := []timeline.Option{timeline.WithFeed(pub), timeline.WithMetrics(recorder)}
	var locker timeline.Locker = timeline.NewKeyedMutex()
	if rdb != nil {
		redisLocker := timeline.NewRedisLocker(rdb)
		if cfg.LockTTL > 0 {
			redisLocker.TTL = cfg.LockTTL
		}
		locker = redisLocker
	}
	tlOpts = append(tlOpts, timeline.WithLocker(locker))
	tl := timeline.NewManager(store, dispatcher, logger, tlOpts...)

	states := incident.NewOwnerStates(store, tl)
	scheduler := escalation.NewScheduler(store, states, pub, logger).WithWorkers(cfg.EscalationWorkers)
	controller := incident.NewController(store, tl, scheduler, logger).WithLocker(locker)

	sandbox := criteria.GojaSandbox{Timeout: cfg.SandboxTimeout}
	evaluator := criteria.NewEvaluator(criteria.NewPredicates(sandbox, logger), logging.Component(logger, "criteria"))

	resOpts := []monitor.Option{monitor.WithCheckRecorder(recorder)}
	var checkHandler *checks.Handler
	if rdb != nil {
		checkLog := monitor.NewRedisCheckLog(rdb)
		resOpts = append(resOpts, monitor.WithCheckLog(checkLog))
		checkHandler = &checks.Handler{Log: checkLog, Monitors: store}
	}
	resource := monitor.NewResource(store, evaluator, controller, logger, resOpts...)

	router := api.NewRouter(api.Handlers{
		Health:    &health.Handler{Checks: healthChecks},
		Probe:     &probe.Handler{Pipeline: resource, Monitors: store},
		Timelines: &timelines.Handler{Timeline: tl, Entries: store},
		Owners: &owners.Handler{
			States:      states,
			Lookup:      store,
			Alerts:      incident.NewAlerts(store, tl, scheduler, logger),
			Maintenance: incident.NewMaintenance(store, tl),
		},
		Executions: &executions.Handler{Logs: store},
		Checks:     checkHandler,
	}, api.Options{
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		Log:         logging.Component(logger, "http"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(ctx, escalation.NewCronTicker(cfg.EscalationCron, logger))
	})
	g.Go(func() error {
		return retention.NewService(store, cfg.RetentionDays, logger).Schedule(ctx, cfg.RetentionCron)
	})
	if cfg.EnableProbes {
		// Checks HTTP embutidos e sweep de heartbeats
		g.Go(func() error {
			return monitor.NewProbeScheduler(resource, monitor.NewHTTPChecker(), logger).Run(ctx)
		})
	}
	g.Go(func() error {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		return api.StartServer(ctx, cfg.Port, router)
	})

	return g.Wait()
}

func pingDB(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}
