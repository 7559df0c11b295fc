package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nipun22325/secret-sharing/config"
	"github.com/nipun22325/secret-sharing/internal/api"
	"github.com/nipun22325/secret-sharing/internal/crypto"
	"github.com/nipun22325/secret-sharing/internal/reaper"
	"github.com/nipun22325/secret-sharing/internal/secrets"
	"github.com/nipun22325/secret-sharing/internal/stats"
	"github.com/nipun22325/secret-sharing/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	setupLogging(cfg.Logging.Level)

	key := loadKey(cfg)
	engine, err := crypto.NewEngine(key)
	if err != nil {
		log.Fatal().Err(err).Msg("crypto engine setup failed")
	}

	st := initStore(cfg)
	defer st.Close()

	tracker := stats.NewTracker(st)
	manager := secrets.NewManager(st, engine, tracker, secrets.Config{
		MaxContentLength: cfg.Secrets.MaxContentLength,
		StoreTimeout:     cfg.Store.Timeout,
	})

	rp := reaper.New(st, cfg.Reaper.Interval)
	if err := rp.Start(); err != nil {
		log.Fatal().Err(err).Msg("reaper start failed")
	}
	defer rp.Stop()

	router := api.SetupRouter(manager, cfg)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Str("base_url", cfg.Server.BaseURL).
		Str("store", cfg.Store.Type).
		Msg("server starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// loadKey parses the configured encryption key, or generates one for this
// process when none is set. A generated key is printed once so it can be
// moved into configuration; without that, secrets do not survive a restart.
func loadKey(cfg *config.Config) []byte {
	if cfg.Crypto.Key != "" {
		key, err := crypto.ParseKey(cfg.Crypto.Key)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid encryption key")
		}
		return key
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal().Err(err).Msg("key generation failed")
	}
	log.Warn().
		Str("key", crypto.EncodeKey(key)).
		Msg("generated encryption key (store this securely!)")
	return key
}

func initStore(cfg *config.Config) store.Store {
	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		return st
	case "sqlite":
		st, err := store.NewSQLiteStore(&store.SQLiteConfig{
			Path:        cfg.Store.SQLite.Path,
			BusyTimeout: cfg.Store.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("sqlite setup failed")
		}
		return st
	default:
		return store.NewMemoryStore()
	}
}
