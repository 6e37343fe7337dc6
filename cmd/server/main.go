package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"flagledger/internal/auth"
	"flagledger/internal/category"
	"flagledger/internal/events"
	"flagledger/internal/flag"
	flaghandler "flagledger/internal/flag/handler"
	flagservice "flagledger/internal/flag/service"
	"flagledger/internal/flagcrypto"
	"flagledger/internal/platform/config"
	"flagledger/internal/platform/httpserver"
	"flagledger/internal/platform/logger"
	"flagledger/internal/platform/metrics"
	platformredis "flagledger/internal/platform/redis"
	"flagledger/internal/rating"
	ratinghandler "flagledger/internal/rating/handler"
	"flagledger/internal/registry"
	registryhandler "flagledger/internal/registry/handler"
	httptransport "flagledger/internal/transport/http"
)

const (
	tokenTTL        = 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		userStore registry.UserStore
		flagStore flag.FlagStore
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		pgUsers := registry.NewPostgresUserStore(db)
		if err := pgUsers.Migrate(ctx); err != nil {
			return err
		}
		pgFlags := flag.NewPostgresFlagStore(db)
		if err := pgFlags.Migrate(ctx); err != nil {
			return err
		}
		userStore, flagStore = pgUsers, pgFlags
		log.Info("using postgres stores")
	} else {
		userStore, flagStore = registry.NewInMemoryUserStore(), flag.NewInMemoryFlagStore()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := events.NewPublisher(log)
	var eventStore events.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := events.NewKafkaStore(cfg.KafkaBrokers, cfg.EventTopic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		eventStore = kafkaStore
		log.Info("publishing events to kafka", "topic", cfg.EventTopic)
	} else {
		eventStore = events.NewMemoryStore()
	}
	worker := events.NewWorker(eventStore, publisher.Outbox(), log)

	catalog := category.NewCatalog()
	users := registry.NewService(userStore, catalog, publisher, m, log)

	sealer, err := flagcrypto.NewSealer(cfg.SealKey)
	if err != nil {
		return err
	}

	var ratingCache *rating.Cache
	var flagCache flagservice.RatingCache
	if redisClient != nil {
		ratingCache = rating.NewCache(redisClient.Client, cfg.RatingCacheTTL, log)
		flagCache = ratingCache
	}

	flags := flagservice.NewService(flagStore, users, catalog, sealer, flagCache, publisher, m, log, flagservice.Limits{
		ReviewMaxLen:    cfg.ReviewMaxLen,
		PayloadMaxBytes: cfg.PayloadMaxBytes,
	})
	ratings := rating.NewService(flagStore, catalog, ratingCache, m, log)

	jwtService := auth.NewJWTService(cfg.JWTSigningKey, tokenTTL)

	router := httptransport.NewRouter(log, m,
		registryhandler.New(users, log, jwtService),
		flaghandler.New(flags, log, jwtService),
		ratinghandler.New(ratings),
	)
	server := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("flag ledger listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
