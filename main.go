package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"feedmill/cmd"
	"feedmill/internal/cache"
	"feedmill/internal/core/logger"
	"feedmill/internal/database"
	"feedmill/internal/ledger"
	"feedmill/internal/lots"
	"feedmill/internal/middleware"
	"feedmill/internal/notify"
	"feedmill/internal/requisitions"
	"feedmill/internal/store"
	"feedmill/internal/syncer"
	"feedmill/pkg/auditlog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, falling back to system environment variables.")
	}

	// Execute migration CMD
	cmd.Execute(ctx)
}

func main() {
	zlog := logger.NewLogger()
	defer zlog.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		zlog.Fatal("DATABASE_URL is not set")
	}

	db, err := database.NewPostgresConnection(dbURL)
	if err != nil {
		zlog.Fatal("could not connect to the database", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("Connected to the database successfully!")

	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "feedmill-cache.db"
	}
	localCache, err := cache.Open(cachePath)
	if err != nil {
		zlog.Fatal("could not open local cache", zap.Error(err))
	}
	defer localCache.Close()

	remote := store.NewPostgresStore(db)
	notifier := store.NewNotifier()
	sync := syncer.New(remote, localCache, notifier, zlog)
	audit := auditlog.NewAuditLog(sync, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stockLedger := ledger.New(sync, audit, zlog)
	if err := bootstrap(ctx, sync, stockLedger); err != nil {
		zlog.Fatal("could not load storage locations", zap.Error(err))
	}

	lotService := lots.NewService(remote, stockLedger, sync, audit, zlog)
	lotRecords, err := sync.Load(ctx, store.CollectionLots)
	if err != nil {
		zlog.Fatal("could not load production lots", zap.Error(err))
	}
	if err := lotService.Load(lotRecords); err != nil {
		zlog.Fatal("could not index production lots", zap.Error(err))
	}

	requisitionService := requisitions.NewService(stockLedger, remote, sync, audit, zlog)
	reqRecords, err := sync.Load(ctx, store.CollectionRequisitions)
	if err != nil {
		zlog.Fatal("could not load requisitions", zap.Error(err))
	}
	if err := requisitionService.Load(reqRecords); err != nil {
		zlog.Fatal("could not index requisitions", zap.Error(err))
	}

	// Startup repair passes: exactly once, never from a mutation path.
	repaired := stockLedger.RepairUnits(ctx)
	if repaired > 0 {
		zlog.Warn("unit-of-measure repair pass corrected locations", zap.Int("count", repaired))
	}
	if err := lotService.HealCounters(ctx); err != nil {
		zlog.Error("sequence counter healing failed", zap.Error(err))
	}

	go sync.Run(ctx)

	hub := notify.NewHub(zlog)
	hub.Attach(notifier)

	router := gin.New()
	router.Use(gin.Logger(), middleware.Recovery(zlog))

	ledger.RegisterRoutes(router, stockLedger)
	requisitions.RegisterRoutes(router, requisitionService)
	lots.RegisterRoutes(router, lotService)
	notify.RegisterRoutes(router, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sync_online": sync.Online()})
	})

	if err := router.Run(os.Getenv("APP_HOST")); err != nil {
		panic(err)
	}
}

func bootstrap(ctx context.Context, sync *syncer.Syncer, stockLedger *ledger.Ledger) error {
	records, err := sync.Load(ctx, store.CollectionLocations)
	if err != nil {
		return err
	}
	return stockLedger.Load(records)
}
