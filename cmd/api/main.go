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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/auth"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior"
	behaviorrepo "github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/repo"
	catalogrepo "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/config"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/nlp"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference"
	profilerepo "github.com/ovaphlow/pitchfork/service-recommend/internal/preference/repo"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/recommend"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/router"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/database"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

func main() {
	// load .env file if present so the environment picks values from it
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.InitLogger(utilities.LogConfig{
		Level:  cfg.Log.Level,
		Dev:    cfg.Log.Dev,
		File:   cfg.Log.File,
		MaxAge: cfg.Log.MaxAge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-recommend", "environment", cfg.Environment, "addr", cfg.Server.Addr)

	db, err := database.Connect(database.Config{
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		Timeout:  cfg.Database.Timeout,
		TimeZone: cfg.Database.TimeZone,
	})
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	profiles := profilerepo.NewProfileRepo(db)
	events := catalogrepo.NewEventRepo(db)
	behaviors := behaviorrepo.NewBehaviorRepo(db)

	if cfg.Database.EnsureSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		for name, ensure := range map[string]func(context.Context) error{
			"user_preference_profiles": profiles.EnsureTable,
			"events":                   events.EnsureTable,
			"user_behavior_events":     behaviors.EnsureTable,
		} {
			if err := ensure(ctx); err != nil {
				cancel()
				sugar.Fatalf("ensure table %s: %v", name, err)
			}
		}
		cancel()
	}

	var store preference.Store = profiles
	rdb, err := database.ConnectRedis(database.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		sugar.Warnw("redis unavailable, profile cache disabled", "addr", cfg.Redis.Addr, "err", err)
	} else if rdb != nil {
		defer rdb.Close()
		store = preference.NewCachedStore(profiles, rdb, cfg.Redis.ProfileTTL, sugar)
		sugar.Infow("profile cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.ProfileTTL)
	}

	var completer nlp.Completer
	if cfg.OpenAI.APIKey != "" {
		completer = nlp.NewOpenAICompleter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	} else {
		sugar.Warn("openai.api_key not set, natural search uses the fallback intent")
	}
	parser := nlp.NewParser(completer, nlp.Options{
		Timeout:       cfg.OpenAI.Timeout,
		RatePerSecond: cfg.OpenAI.RatePerSecond,
		Burst:         cfg.OpenAI.Burst,
		CacheSize:     cfg.OpenAI.CacheSize,
		CacheTTL:      cfg.OpenAI.CacheTTL,
	}, sugar)

	updater := preference.NewUpdater(store, sugar)
	recommender := recommend.NewService(store, events, recommend.NewSelector(cfg.Recommend.Seed), parser, recommend.Options{
		Epsilon:            cfg.Recommend.Epsilon,
		FeedCandidateLimit: cfg.Recommend.FeedCandidateLimit,
		HighlightsMinScore: cfg.Recommend.HighlightsMinScore,
		HighlightsLimit:    cfg.Recommend.HighlightsLimit,
		NaturalQueryLimit:  cfg.Recommend.NaturalQueryLimit,
		NaturalResultLimit: cfg.Recommend.NaturalResultLimit,
	}, sugar)

	handler := router.RegisterRoutes(router.Handlers{
		Behavior:   behavior.NewHandler(behavior.NewService(behaviors, events, updater, cfg.Server.NodeID, sugar), sugar),
		Recommend:  recommend.NewHandler(recommender, sugar),
		Preference: preference.NewHandler(preference.NewService(store, updater), sugar),
	}, resolver(cfg.Auth, sugar), sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}

func resolver(cfg config.AuthConfig, logger *zap.SugaredLogger) auth.Resolver {
	if cfg.Mode == "static" {
		logger.Warnw("static identity mode: every request resolves to one user", "user_id", cfg.StaticUserID)
		return auth.StaticResolver{UserID: cfg.StaticUserID}
	}
	return auth.NewJWTResolver(cfg.SecretKey)
}
