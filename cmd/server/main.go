package main

import (
	"log"

	"go.uber.org/zap"

	"sukpos/config"
	"sukpos/internal/auth"
	"sukpos/internal/catalog"
	"sukpos/internal/database"
	"sukpos/internal/httpapi"
	"sukpos/internal/paylog"
	"sukpos/internal/payment"
	"sukpos/internal/sale"
	"sukpos/internal/stock"
	"sukpos/internal/store/gormstore"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := newLogger(cfg.App.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}
	if cfg.App.Debug {
		if err := database.Seed(db); err != nil {
			logger.Fatal("database seed failed", zap.Error(err))
		}
	}

	redisClient, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, summary caching disabled", zap.Error(err))
		redisClient = nil
	}

	st := gormstore.New(db)
	adapter := payment.NewAdapter(
		payment.NewTelebirr(cfg.Telebirr, cfg.App.BaseURL),
		payment.NewCBEBirr(cfg.CBEBirr, cfg.App.BaseURL),
		payment.NewChapa(cfg.Chapa, cfg.App.BaseURL),
	)
	reader := catalog.NewReader(st)
	coordinator := sale.NewCoordinator(st, reader, stock.NewLedger(), adapter, paylog.NewLogStore(st), logger)
	tokens := auth.NewTokenMaker(cfg.App.JWTSecret, cfg.App.JWTTTL)

	handler := httpapi.NewHandler(
		coordinator,
		reader,
		st,
		adapter,
		tokens,
		redisClient,
		logger,
		cfg.App.Debug,
	)

	router := httpapi.NewRouter(handler, logger, cfg.App.Debug)

	logger.Info("starting server", zap.String("port", cfg.App.Port))
	if err := router.Run(":" + cfg.App.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
