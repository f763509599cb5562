package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"attackwatch/internal/attacks"
	"attackwatch/internal/audit"
	"attackwatch/internal/auth"
	"attackwatch/internal/broadcast"
	"attackwatch/internal/classifier"
	"attackwatch/internal/config"
	"attackwatch/internal/db"
	"attackwatch/internal/generator"
	"attackwatch/internal/httpserver"
	"attackwatch/internal/logging"
	"attackwatch/internal/relay"
)

func main() {
	configPath := flag.String("config", "config/attackwatch.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("attackwatch exited", zap.Error(err))
	}
}

// storage is the set of backends selected by storage.driver.
type storage struct {
	users     auth.Repository
	audit     audit.Sink
	attacks   attacks.Store
	allocator attacks.Allocator
	close     func() error
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storage, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory storage; data is lost on exit")
		mem := attacks.NewMemoryStore()
		return &storage{
			users:     auth.NewMemoryStore(),
			audit:     audit.NewMemorySink(),
			attacks:   mem,
			allocator: mem,
			close:     func() error { return nil },
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DSN, time.Minute, logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.RunMigrations(ctx, conn, cfg.SchemaPath); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &storage{
		users:     auth.NewStore(conn),
		audit:     audit.NewPostgresSink(conn),
		attacks:   attacks.NewPostgresStore(conn),
		allocator: attacks.NewPostgresAllocator(conn, logger),
		close:     conn.Close,
	}, nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	authSvc := auth.NewService(st.users, st.audit, cfg.Auth.JWTSecret, logger, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err := authSvc.SeedFromFile(ctx, cfg.Auth.UsersPath); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The distributor must exist before anything that broadcasts.
	var sinks []broadcast.Sink
	if cfg.Relay.Redis.Enabled {
		r, err := relay.NewRedis(ctx, relay.RedisConfig{
			Addr:          cfg.Relay.Redis.Addr,
			Password:      cfg.Relay.Redis.Password,
			DB:            cfg.Relay.Redis.DB,
			ChannelPrefix: cfg.Relay.Redis.ChannelPrefix,
		}, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, r)
		g.Go(func() error { return r.Run(gctx) })
	}
	if cfg.Relay.Kafka.Enabled {
		k, err := relay.NewKafka(relay.KafkaConfig{Brokers: cfg.Relay.Kafka.Brokers, Topic: cfg.Relay.Kafka.Topic}, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, k)
		g.Go(func() error { return k.Run(gctx) })
	}
	dist := broadcast.NewDistributor(logger, sinks...)
	defer dist.Close()

	attackSvc := attacks.NewService(st.attacks, authSvc, dist, logger)

	if cfg.Generator.Enabled {
		cls, err := classifier.New(cfg.Generator.SamplePool, nil)
		if err != nil {
			return err
		}
		gen := generator.New(cls, st.allocator, st.attacks, attackSvc, dist, cfg.Generator.Interval, logger)
		g.Go(func() error { return gen.Run(gctx) })
	} else {
		logger.Info("attack generator disabled")
	}

	server := httpserver.New(cfg.HTTP.Addr, httpserver.NewRouter(httpserver.Deps{
		Auth:           authSvc,
		Attacks:        attackSvc,
		Distributor:    dist,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	}), logger)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Streams only end when their subscription closes.
		dist.Close()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
