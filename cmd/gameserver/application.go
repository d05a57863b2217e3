package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/config"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/httpapi"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/security"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store/gormstore"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store/migrations"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/telemetry"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var offlineSigningKey = randomKey()

type application struct {
	services httpapi.Services
	close    func()
}

// openApplication opens the database, prepares the schema and wires every
// service onto one gormstore.Store.
func openApplication(cfg *config.Config, logger *zap.Logger, registerer prometheus.Registerer) (*application, error) {
	db, driver, err := gormstore.Open(cfg.DatabaseURL, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	closeDB := func() { _ = sqlDB.Close() }

	if err := prepareSchema(db, driver, cfg.DatabaseURL); err != nil {
		closeDB()
		return nil, err
	}

	units := gormstore.New(db,
		gormstore.WithRetryPolicy(gormstore.RetryPolicy{Attempts: cfg.CommitRetryAttempts, Backoff: cfg.CommitRetryBackoff}),
		gormstore.WithLogger(logger.Named("store")),
	)
	services, err := buildServices(cfg, units, logger, registerer)
	if err != nil {
		closeDB()
		return nil, err
	}
	logger.Info("database ready", zap.String("driver", string(driver)))
	return &application{services: services, close: closeDB}, nil
}

func prepareSchema(db *gorm.DB, driver gormstore.Driver, databaseURL string) error {
	if driver == gormstore.DriverPostgres {
		if err := migrations.Up(databaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	}
	return gormstore.PrepareSchema(db, driver)
}

func buildServices(cfg *config.Config, units *gormstore.Store, logger *zap.Logger, registerer prometheus.Registerer) (httpapi.Services, error) {
	now := func() time.Time { return time.Now().UTC() }
	hasher, err := security.NewBcryptHasher(cfg.PINHashCost)
	if err != nil {
		return httpapi.Services{}, err
	}
	metrics, err := telemetry.NewMetrics(registerer)
	if err != nil {
		return httpapi.Services{}, fmt.Errorf("metrics: %w", err)
	}
	ledgerService, err := ledger.NewService(units, hasher, now,
		ledger.WithOperationLogger(telemetry.Fanout{telemetry.NewZapOperationLogger(logger), metrics}),
		ledger.WithAccountNumberAttempts(cfg.AccountNumberAttempts),
		ledger.WithDefaultHistoryLimit(cfg.HistoryDefaultLimit),
	)
	if err != nil {
		return httpapi.Services{}, fmt.Errorf("ledger service init: %w", err)
	}
	tokens, err := game.NewTokenIssuer(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTTTL, now)
	if err != nil {
		return httpapi.Services{}, err
	}
	players, err := game.NewPlayerService(units, hasher, tokens, now,
		game.WithStartingCash(cfg.StartingCash),
		game.WithPlayerLogger(logger.Named("players")),
	)
	if err != nil {
		return httpapi.Services{}, err
	}
	jobs, err := game.NewJobService(units, now)
	if err != nil {
		return httpapi.Services{}, err
	}
	vehicles, err := game.NewVehicleService(units, now)
	if err != nil {
		return httpapi.Services{}, err
	}
	properties, err := game.NewPropertyService(units, now, logger.Named("properties"))
	if err != nil {
		return httpapi.Services{}, err
	}
	teller, err := game.NewTeller(ledgerService, logger.Named("teller"))
	if err != nil {
		return httpapi.Services{}, err
	}
	return httpapi.Services{
		Ledger:     ledgerService,
		Players:    players,
		Jobs:       jobs,
		Vehicles:   vehicles,
		Properties: properties,
		Tokens:     tokens,
		Teller:     teller,
	}, nil
}

func randomKey() string {
	buffer := make([]byte, 32)
	_, _ = rand.Read(buffer)
	return hex.EncodeToString(buffer)
}
