package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/cerego/persistent-enum/config"
	"github.com/cerego/persistent-enum/enum"
	"github.com/cerego/persistent-enum/enumhttp"
	"github.com/cerego/persistent-enum/logger"
	"github.com/cerego/persistent-enum/notify"
	"github.com/cerego/persistent-enum/pgstore"
)

// enum-admin initializes a set of enumerations against Postgres and serves
// the inspection/reload API over them. The definitions below are the demo
// set; an embedding application supplies its own.

func main() {
	ctx := context.Background()

	cfg, err := config.Load("enum-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	store, err := setupStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database, continuing with ephemeral enums", "error", err)
	}

	if err := defineEnums(ctx, store, log); err != nil {
		log.Error("failed to initialize enums", "error", err)
		os.Exit(1)
	}

	if cfg.Redis.Enabled {
		startReloader(ctx, cfg, log)
	}

	e := setupEcho()
	enumhttp.RegisterRoutes(e, enum.DefaultRegistry, log)

	log.Info("starting enum-admin", "port", cfg.Service.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Service.Port)); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupStore connects to Postgres; a nil store makes every enum degrade to
// ephemeral members with a warning
func setupStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (enum.Store, error) {
	pool, err := pgstore.Connect(ctx, cfg.DatabaseURL(), log)
	if err != nil {
		return nil, err
	}
	return pgstore.New(pool, log), nil
}

// defineEnums declares the demo enumerations and reconciles them
func defineEnums(ctx context.Context, store enum.Store, log *logger.Logger) error {
	statuses, err := enum.NewDefinition("record_statuses",
		enum.WithMembers(
			enum.Declaration{Name: "DRAFT"},
			enum.Declaration{Name: "PUBLISHED"},
			enum.Declaration{Name: "ARCHIVED", Attrs: map[string]enum.Value{
				"description": enum.String("hidden from listings"),
			}},
		),
	)
	if err != nil {
		return err
	}

	visibility, err := enum.NewDefinition("visibility_levels",
		enum.WithNames("PUBLIC", "UNLISTED", "PRIVATE"),
	)
	if err != nil {
		return err
	}

	for _, def := range []*enum.Definition{statuses, visibility} {
		if _, err := enum.New(ctx, def, store, enum.WithLogger(log), enum.WithFallback()); err != nil {
			return err
		}
	}
	return nil
}

// startReloader subscribes to the reload channel in the background
func startReloader(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	reloader := notify.NewReloader(client, enum.DefaultRegistry, cfg.Redis.Channel, log)
	go func() {
		if err := reloader.Listen(ctx); err != nil && ctx.Err() == nil {
			log.Error("reload listener exited", "error", err)
		}
	}()
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "enum-admin",
		})
	})
	return e
}
