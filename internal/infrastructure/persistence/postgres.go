package persistence

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultPostgresDSN = "postgres://localhost/flightboard?sslmode=disable"

//go:embed sql/postgres_functions.sql
var postgresFunctions string

// OpenPostgres opens a pgx-backed database/sql handle
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// FlightRow GORM model for the flights table
type FlightRow struct {
	FlightNumber   string     `gorm:"column:flightnumber;type:text;primaryKey"`
	TakeoffAirport string     `gorm:"column:takeoffairport;type:text;not null;default:'';index"`
	LandingAirport string     `gorm:"column:landingairport;type:text;not null;default:'';index"`
	Status         string     `gorm:"column:status;type:text;not null;default:''"`
	TakeoffTime    *time.Time `gorm:"column:takeofftime;type:timestamptz"`
	LandingTime    *time.Time `gorm:"column:landingtime;type:timestamptz"`
	DelayMinutes   int32      `gorm:"column:delayminutes;type:integer;not null;default:0"`
}

// TableName overrides the default table name
func (FlightRow) TableName() string {
	return "flights"
}

// AirportRow GORM model for the airports table
type AirportRow struct {
	AirportCode string `gorm:"column:airportcode;type:text;primaryKey"`
	AirportName string `gorm:"column:airportname;type:text;not null;default:''"`
}

// TableName overrides the default table name
func (AirportRow) TableName() string {
	return "airports"
}

// MigratePostgres creates the tables and the stored functions the
// repositories call. It reuses db's connection pool.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}
	gormDB = gormDB.WithContext(ctx)

	if err := gormDB.AutoMigrate(&AirportRow{}, &FlightRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := gormDB.Exec(postgresFunctions).Error; err != nil {
		return fmt.Errorf("create functions: %w", err)
	}
	return nil
}
