// ssohub es el servidor HTTP del SSO: sesiones de usuario, registro de
// servicios y delegación OAuth.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/ssohub/internal/cache"
	"github.com/dropDatabas3/ssohub/internal/config"
	httpserver "github.com/dropDatabas3/ssohub/internal/http"
	"github.com/dropDatabas3/ssohub/internal/oauth"
	"github.com/dropDatabas3/ssohub/internal/observability/logger"
	"github.com/dropDatabas3/ssohub/internal/rate"
	"github.com/dropDatabas3/ssohub/internal/store/core"
	"github.com/dropDatabas3/ssohub/internal/store/memory"
	"github.com/dropDatabas3/ssohub/internal/store/pg"
	"github.com/dropDatabas3/ssohub/internal/token"
	migrations "github.com/dropDatabas3/ssohub/migrations/postgres"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ssohub:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "ruta del archivo de configuración")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "ssohub",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	codec := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Issuer)
	issuer := token.NewIssuer(codec)
	resolver := token.NewResolver(codec, store)
	oauthSvc := oauth.New(store, issuer, resolver, cacheClient)

	router := httpserver.NewRouter(httpserver.Deps{
		Store:        store,
		Issuer:       issuer,
		Resolver:     resolver,
		OAuth:        oauthSvc,
		LoginLimiter: buildLimiter(cfg),
	})
	server := httpserver.NewServer(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("apagando")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("ssohub arriba",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver))
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(), nil
	default:
		lifetime, _ := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		store, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
			MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: lifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, migrations.Files); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if cfg.Cache.Kind == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, "rl:login:", cfg.Rate.Login.Limit, cfg.LoginWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.LoginWindow())
}
