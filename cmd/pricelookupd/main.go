package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/RLAlpha49/shelfarc/lib/configutil"
	"github.com/RLAlpha49/shelfarc/lib/ratelimit"
	"github.com/RLAlpha49/shelfarc/lib/serviceutil"
	"github.com/RLAlpha49/shelfarc/lib/telemetry"
	"github.com/RLAlpha49/shelfarc/services/pricelookup"
	"github.com/RLAlpha49/shelfarc/services/pricelookup/server"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

type Config struct {
	Port int    `json:"port"`
	Host string `json:"host"`
	// StateDb is a sqlite path shared between instances; empty keeps
	// rate-limit and breaker state in process memory.
	StateDb string `json:"state_db"`

	ClientLimit        int `json:"client_limit_per_minute"`
	Concurrency        int `json:"concurrency"`
	MaxQueue           int `json:"max_queue"`
	BreakerMaxFailures int `json:"breaker_max_failures"`
}

func main() {
	telemetry.InitSlog(true)
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadOrDefault("config.json5", Config{Port: 9330})
	if err != nil {
		serviceutil.Fatal("failed to load configuration", err)
	}

	tel, err := telemetry.SetupFromEnv(ctx, "pricelookupd")
	if err != nil {
		slog.Warn("telemetry disabled", "err", err)
	} else {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	var store ratelimit.Store
	if config.StateDb != "" {
		db, err := sql.Open("sqlite", config.StateDb)
		if err != nil {
			serviceutil.Fatal("failed to open state db", err)
		}
		defer db.Close()
		store, err = ratelimit.NewSqlite(db, time.Hour)
		if err != nil {
			serviceutil.Fatal("failed to initialize state db", err)
		}
	}

	service := pricelookup.NewService(pricelookup.Options{
		Host:               config.Host,
		Store:              store,
		ClientLimit:        config.ClientLimit,
		Concurrency:        config.Concurrency,
		MaxQueue:           config.MaxQueue,
		BreakerMaxFailures: config.BreakerMaxFailures,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	server.NewHandler(service).RegisterRoutes(router.Group("/api/v1"))

	go serviceutil.StartHttpServer(config.Port, router)

	<-ctx.Done()
}
