// Command server runs the non-conformance record service. main wires the
// backends picked by configuration (memory by default, Postgres/Redis/Kafka
// when configured), bootstraps the tables, and keeps the server lifecycle
// small; business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"ncrtrack/internal/audit"
	"ncrtrack/internal/cache"
	"ncrtrack/internal/identifier"
	"ncrtrack/internal/notify"
	"ncrtrack/internal/permission"
	"ncrtrack/internal/platform/config"
	"ncrtrack/internal/platform/httpserver"
	"ncrtrack/internal/platform/lock"
	"ncrtrack/internal/platform/logger"
	platformredis "ncrtrack/internal/platform/redis"
	"ncrtrack/internal/schema"
	"ncrtrack/internal/store"
	httptransport "ncrtrack/internal/transport/http"
	"ncrtrack/internal/workflow"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var locks lock.Manager
	if redisClient != nil {
		locks = lock.NewRedisManager(redisClient.Client, cfg.WriteLockTimeout, cfg.LockLease)
	} else {
		locks = lock.NewMemoryManager(cfg.WriteLockTimeout)
	}

	var (
		tables     store.TableStore
		auditStore audit.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}

		pg := store.NewPostgres(db, locks)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("store migration failed", "error", err)
			os.Exit(1)
		}
		pgAudit := audit.NewPostgresStore(db)
		if err := pgAudit.Migrate(ctx); err != nil {
			log.Error("audit migration failed", "error", err)
			os.Exit(1)
		}
		tables, auditStore = pg, pgAudit
		log.Info("using postgres store")
	} else {
		tables, auditStore = store.NewMemory(locks), audit.NewMemoryStore()
		log.Warn("no postgres configured, records are held in memory only")
	}

	var configCache cache.Cache
	if redisClient != nil {
		configCache = cache.NewRedis(redisClient.Client, cfg.CacheTTL)
	} else {
		configCache = cache.NewMemory(cfg.CacheTTL)
	}

	schemaManager := schema.NewManager(tables, configCache, log)
	if err := schemaManager.Bootstrap(ctx); err != nil {
		log.Error("schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	perms := permission.NewResolver(tables, log)
	if err := perms.Bootstrap(ctx, cfg.AdminEmails...); err != nil {
		log.Error("permission bootstrap failed", "error", err)
		os.Exit(1)
	}

	var publisher notify.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
	} else {
		publisher = notify.NewLog(log)
	}
	defer publisher.Close()

	trail := audit.NewRecorder(auditStore, log, audit.WithAsyncBuffer(cfg.BatchSize))
	defer trail.Close()

	engine := workflow.NewEngine(tables, schemaManager, perms,
		identifier.NewGenerator(tables), trail, publisher, log)

	handler := httptransport.NewHandler(engine, schemaManager, perms, trail, log)
	router := httptransport.NewRouter(handler,
		httptransport.NewHMACVerifier([]byte(cfg.JWTSigningKey)))

	srv := httpserver.New(cfg.Addr, router)

	// The listener goroutine reports failure instead of exiting so the
	// deferred publisher and audit-buffer Close calls still run.
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		log.Error("server error", "error", err)
		return
	case <-quit:
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
