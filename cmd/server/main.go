package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"
	"flightboard-service/internal/infrastructure/broadcast"
	"flightboard-service/internal/infrastructure/config"
	"flightboard-service/internal/infrastructure/persistence"
	"flightboard-service/internal/infrastructure/router"
	"flightboard-service/internal/interface/httpapi"
	sqlRepo "flightboard-service/internal/interface/repository"
	flightUsecase "flightboard-service/internal/usecase"
	"flightboard-service/pkg/logger"
	"flightboard-service/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLoggerWithOptions(logger.Options{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	defer log.Sync()
	log.Info("Starting Flightboard Service", "version", cfg.AppVersion, "driver", cfg.DBDriver)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.MetricsNamespace, reg)

	// Set up the relational store
	db, dialect, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", "driver", cfg.DBDriver, "error", err)
	}
	connector := persistence.NewConnector(db, dialect, log.With("component", "store"), m)
	defer connector.Close()

	registry, err := sqlRepo.NewRegistry()
	if err != nil {
		log.Fatal("Failed to build descriptor registry", "error", err)
	}

	// Set up repositories
	flightRepo := sqlRepo.NewSQLFlightRecordRepository(connector, registry, log)
	airportRepo := sqlRepo.NewSQLAirportRepository(connector, registry, log)

	// Push channel
	broadcaster := broadcast.New(broadcast.Options{
		QueueSize:        cfg.BroadcastQueueSize,
		SubscriberBuffer: cfg.SubscriberBuffer,
	}, log.With("component", "broadcast"), m)
	broadcaster.Start()

	// Update history is optional
	var historyRepo repository.FlightHistoryRepository
	var mongoClient *mongo.Client
	updateRouter := router.NewUpdateRouter(log)
	if cfg.HistoryEnabled() {
		log.Info("Connecting to MongoDB")
		mongoClient, err = persistence.NewMongoClient(ctx, persistence.MongoOptions{
			URI:      cfg.MongoURI,
			Username: cfg.MongoUser,
			Password: cfg.MongoPassword,
		})
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", "error", err)
		}
		historyRepo, err = sqlRepo.NewMongoFlightHistoryRepository(ctx, persistence.GetDatabase(mongoClient, cfg.MongoDB))
		if err != nil {
			log.Fatal("Failed to prepare history collection", "error", err)
		}
		updateRouter.Register(flightUsecase.NewHistoryRecorder(historyRepo, log))
	} else {
		log.Info("MONGODB_DSN not set, flight history disabled")
	}

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		updateRouter.Run(ctx, broadcaster.Subscribe("update-router"))
	}()

	flightService := flightUsecase.NewFlightService(flightRepo, airportRepo, historyRepo, broadcaster, log)

	// Seed airports
	seeds := cfg.Airports
	if len(seeds) == 0 {
		seeds = config.DefaultAirports
	}
	airports := make([]entity.Airport, 0, len(seeds))
	for _, a := range seeds {
		airports = append(airports, entity.Airport{AirportCode: a.Code, AirportName: a.Name})
	}
	if _, err := flightUsecase.NewAirportSeeder(airportRepo, log).Seed(ctx, airports); err != nil {
		log.Error("Failed to seed airports", "error", err)
	}

	// Seed demo flights on an empty board
	if cfg.SeedFlights {
		flightSeeds := cfg.Flights
		if len(flightSeeds) == 0 {
			flightSeeds = config.DefaultFlights
		}
		if _, err := flightUsecase.NewFlightSeeder(flightRepo, log).Seed(ctx, demoFlights(flightSeeds, time.Now())); err != nil {
			log.Error("Failed to seed flights", "error", err)
		}
	}

	// Start the flight mutator in a goroutine
	mutatorDone := make(chan struct{})
	if cfg.Mutator.Enabled {
		mutator := flightUsecase.NewFlightMutator(flightService, flightUsecase.MutatorOptions{
			Interval: cfg.Mutator.Interval,
			Statuses: cfg.Mutator.Statuses,
		}, log.With("component", "mutator"), m)
		go func() {
			defer close(mutatorDone)
			if err := mutator.Run(ctx); err != nil {
				log.Error("Flight mutator stopped", "error", err)
			}
		}()
	} else {
		close(mutatorDone)
	}

	handler := httpapi.NewRouter(flightService, broadcaster, httpapi.Options{
		AllowedOrigin: cfg.CORSAllowedOrigin,
		Gatherer:      reg,
		WriteTimeout:  cfg.WSWriteTimeout,
		PingInterval:  cfg.WSPingInterval,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel() // stop the mutator before closing the channel it feeds
	<-mutatorDone

	// Closing the broadcaster ends every /flightHub stream, so Shutdown
	// is not left waiting on them.
	broadcaster.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	<-routerDone

	// Disconnect from MongoDB
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			log.Error("MongoDB disconnect error", "error", err)
		}
	}

	log.Info("Flightboard Service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*sql.DB, persistence.Dialect, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		log.Info("Connecting to PostgreSQL")
		db, err := persistence.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DBMigrate {
			log.Info("Migrating PostgreSQL schema")
			if err := persistence.MigratePostgres(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return db, persistence.NewPostgresDialect(persistence.DefaultProcedures), nil
	default:
		log.Info("Opening SQLite database", "path", cfg.SQLitePath)
		db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, persistence.NewSQLiteDialect(), nil
	}
}

func demoFlights(seeds []config.FlightConfig, now time.Time) []entity.FlightRecord {
	now = now.UTC().Truncate(time.Minute)
	flights := make([]entity.FlightRecord, 0, len(seeds))
	for _, f := range seeds {
		takeoff := now.Add(f.TakeoffIn)
		flights = append(flights, entity.FlightRecord{
			FlightNumber:   f.Number,
			TakeoffAirport: f.From,
			LandingAirport: f.To,
			Status:         f.Status,
			TakeoffTime:    takeoff,
			LandingTime:    takeoff.Add(f.Duration),
			DelayMinutes:   f.Delay,
		})
	}
	return flights
}
