package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/application"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus/deadletter"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus/kafkabus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus/membus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/bus/redisbus"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/config"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/flow"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/grpcserver"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/httpapi"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/lock"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/ot"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository/cache"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository/memory"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/repository/postgres"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/server"
	"github.com/SARVESHVARADKAR123/CollabEdit/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// closer releases one backing resource at shutdown, in reverse acquisition
// order.
type closer struct {
	name string
	fn   func() error
}

func main() {
	cfg := config.Load()

	// Observability
	observability.InitLogger(cfg.ServiceName)
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	instanceID := getOrGenerateInstanceID(cfg.InstanceID)
	log.Info("starting node",
		zap.String("instance_id", instanceID),
		zap.String("repository", cfg.RepositoryDriver),
		zap.String("bus", cfg.BusDriver),
	)

	var closers []closer

	var redisClient *redis.Client
	if cfg.BusDriver == "redis" || cfg.SnapshotCacheEnabled {
		redisClient = initRedis(ctx, cfg, log)
		closers = append(closers, closer{"redis", redisClient.Close})
	}

	repo, checks := initRepository(ctx, cfg, redisClient, &closers, log)
	b := initBus(ctx, cfg, instanceID, redisClient, &closers, log)
	if p, ok := b.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, observability.ReadyCheck{Name: "bus", Check: p.Ping})
	}

	// Application
	writer := application.NewSessionWriter(repo, application.NewBusDispatcher(b, repo))
	svc := application.New(repo, writer, lock.NewSessions(), ot.NewPositional())

	// Real-time gateway
	reg := websocket.NewRegistry()
	subs, err := flow.New(reg).Subscribe(ctx, b)
	if err != nil {
		log.Fatal("failed to subscribe to bus", zap.Error(err))
	}
	wsHandler := websocket.NewHandler(reg, websocket.NewMessageHandler(svc, reg), cfg.ServiceName)

	// Servers
	mainSrv := server.New("main", cfg.ReqHTTPAddr, httpapi.NewRouter(
		httpapi.NewSessionHandler(svc, cfg.IsDevelopment()),
		wsHandler,
		httpapi.RouterConfig{
			ServiceName:       cfg.ServiceName,
			Development:       cfg.IsDevelopment(),
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
		},
	))
	obsSrv := server.New("observability", cfg.ObsHTTPAddr, initObservabilityRouter(cfg, checks))
	grpcSrv := grpcserver.New(cfg.ServiceName)

	startServers(cfg, mainSrv, obsSrv, grpcSrv, cancel, log)

	<-ctx.Done()
	performGracefulShutdown(mainSrv, obsSrv, grpcSrv, reg, subs, closers, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func getOrGenerateInstanceID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func initRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: cfg.RedisPoolSize})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return client
}

func initRepository(ctx context.Context, cfg *config.Config, redisClient *redis.Client, closers *[]closer, log *zap.Logger) (repository.Repository, []observability.ReadyCheck) {
	var (
		repo   repository.Repository
		checks []observability.ReadyCheck
	)

	switch cfg.RepositoryDriver {
	case "postgres":
		db := initPostgres(ctx, cfg.DatabaseURL, log)
		*closers = append(*closers, closer{"postgres", db.Close})
		pg := postgres.New(db)
		checks = append(checks, observability.ReadyCheck{Name: "postgres", Check: pg.Ping})
		repo = pg
	case "memory":
		repo = memory.New()
	default:
		log.Fatal("unknown repository driver", zap.String("driver", cfg.RepositoryDriver))
	}

	if cfg.SnapshotCacheEnabled {
		repo = cache.New(repo, redisClient, cfg.SnapshotCacheTTL)
		checks = append(checks, observability.ReadyCheck{Name: "snapshot-cache", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return repo, checks
}

func initPostgres(ctx context.Context, url string, log *zap.Logger) *sql.DB {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := postgres.NewDB(connectCtx, url)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if err := postgres.Migrate(connectCtx, db); err != nil {
		log.Fatal("failed to migrate schema", zap.Error(err))
	}
	return db
}

func initBus(ctx context.Context, cfg *config.Config, instanceID string, redisClient *redis.Client, closers *[]closer, log *zap.Logger) bus.Bus {
	var dl bus.DeadLetterSink
	if cfg.DeadLetterTopic != "" {
		sink := deadletter.New(cfg.KafkaBrokers, cfg.DeadLetterTopic)
		*closers = append(*closers, closer{"dead-letter", sink.Close})
		dl = sink
	}

	var b bus.Bus
	switch cfg.BusDriver {
	case "redis":
		var opts []redisbus.Option
		if dl != nil {
			opts = append(opts, redisbus.WithDeadLetter(dl))
		}
		b = redisbus.New(redisClient, cfg.BusExchange, opts...)
	case "kafka":
		var opts []kafkabus.Option
		if dl != nil {
			opts = append(opts, kafkabus.WithDeadLetter(dl))
		}
		kb, err := kafkabus.New(ctx, kafkabus.Config{
			Brokers:        cfg.KafkaBrokers,
			Exchange:       cfg.BusExchange,
			InstanceID:     instanceID,
			ConnectTimeout: cfg.BusConnectTimeout,
		}, opts...)
		if err != nil {
			log.Fatal("failed to connect to kafka", zap.Error(err))
		}
		b = kb
	case "memory":
		var opts []membus.Option
		if dl != nil {
			opts = append(opts, membus.WithDeadLetter(dl))
		}
		b = membus.New(opts...)
	default:
		log.Fatal("unknown bus driver", zap.String("driver", cfg.BusDriver))
	}

	*closers = append(*closers, closer{"bus", b.Close})
	return b
}

func initObservabilityRouter(cfg *config.Config, checks []observability.ReadyCheck) http.Handler {
	mux := chi.NewRouter()
	mux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(checks...))
	return mux
}

func startServers(cfg *config.Config, mainSrv, obsSrv *server.Server, grpcSrv *grpcserver.Server, cancel context.CancelFunc, log *zap.Logger) {
	go func() {
		if err := obsSrv.Start(); err != nil {
			log.Error("observability server error", zap.Error(err))
		}
	}()
	go func() {
		if err := mainSrv.Start(); err != nil {
			log.Error("main server error", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		if err := grpcSrv.Start(cfg.GRPCAddr); err != nil {
			log.Error("grpc server error", zap.Error(err))
		}
	}()
}

func performGracefulShutdown(mainSrv, obsSrv *server.Server, grpcSrv *grpcserver.Server, reg *websocket.Registry, subs []bus.Subscription, closers []closer, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.SetServing(false)

	if err := mainSrv.Shutdown(ctx); err != nil {
		log.Error("error during main server shutdown", zap.Error(err))
	}
	for _, s := range subs {
		if err := s.Close(); err != nil {
			log.Warn("error closing subscription", zap.Error(err))
		}
	}
	reg.CloseAll()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			log.Error("error closing resource", zap.String("resource", closers[i].name), zap.Error(err))
		}
	}

	if err := obsSrv.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	grpcSrv.Stop()
	log.Info("shutdown complete, exiting")
}
