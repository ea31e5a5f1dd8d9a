// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion     string `yaml:"app_version"`
	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	// Server
	Port              string        `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	CORSAllowedOrigin string        `yaml:"cors_allowed_origin"`
	MetricsNamespace  string        `yaml:"metrics_namespace"`

	// Relational store
	DBDriver    string `yaml:"db_driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	DBMigrate   bool   `yaml:"db_migrate"`

	// MongoDB (update history, optional)
	MongoURI      string `yaml:"mongodb_dsn"`
	MongoDB       string `yaml:"mongo_db"`
	MongoUser     string `yaml:"mongo_user"`
	MongoPassword string `yaml:"mongo_password"`

	// Push channel
	BroadcastQueueSize int           `yaml:"broadcast_queue_size"`
	SubscriberBuffer   int           `yaml:"subscriber_buffer"`
	WSWriteTimeout     time.Duration `yaml:"ws_write_timeout"`
	WSPingInterval     time.Duration `yaml:"ws_ping_interval"`

	Mutator     MutatorConfig   `yaml:"mutator"`
	Airports    []AirportConfig `yaml:"airports"`
	SeedFlights bool            `yaml:"seed_flights"`
	Flights     []FlightConfig  `yaml:"flights"`
}

// MutatorConfig drives the random flight mutator
type MutatorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Statuses []string      `yaml:"statuses"`
}

// AirportConfig is one entry of the airport seed list
type AirportConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// FlightConfig is one entry of the demo flight list. Times are relative to
// startup.
type FlightConfig struct {
	Number    string        `yaml:"number"`
	From      string        `yaml:"from"`
	To        string        `yaml:"to"`
	Status    string        `yaml:"status"`
	TakeoffIn time.Duration `yaml:"takeoff_in"`
	Duration  time.Duration `yaml:"duration"`
	Delay     int32         `yaml:"delay"`
}

// DefaultFlights is put on an empty board when the config file lists none
var DefaultFlights = []FlightConfig{
	{From: "JFK", To: "TLV", Status: "hangar", TakeoffIn: 2 * time.Hour, Duration: 10*time.Hour + 45*time.Minute},
	{From: "LAX", To: "ORD", Status: "airborne", TakeoffIn: -time.Hour, Duration: 4 * time.Hour},
	{From: "LHR", To: "CDG", Status: "hangar", TakeoffIn: 45 * time.Minute, Duration: 75 * time.Minute, Delay: 15},
	{From: "ATL", To: "LAX", Status: "airborne", TakeoffIn: -30 * time.Minute, Duration: 5 * time.Hour},
	{From: "TLV", To: "LHR", Status: "malfunction", TakeoffIn: 3 * time.Hour, Duration: 5*time.Hour + 30*time.Minute, Delay: 40},
}

// DefaultAirports is seeded when the config file lists none
var DefaultAirports = []AirportConfig{
	{Code: "ATL", Name: "Hartsfield-Jackson Atlanta"},
	{Code: "CDG", Name: "Paris Charles de Gaulle"},
	{Code: "JFK", Name: "New York John F. Kennedy"},
	{Code: "LAX", Name: "Los Angeles International"},
	{Code: "LHR", Name: "London Heathrow"},
	{Code: "ORD", Name: "Chicago O'Hare"},
	{Code: "TLV", Name: "Tel Aviv Ben Gurion"},
}

// LoadConfig loads configuration from CONFIG_FILE (if set) and environment
// variables, in that order.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	return Load(os.Getenv("CONFIG_FILE"))
}

// Load builds the configuration from defaults, the YAML file at path (when
// not empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	config := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func defaults() *Config {
	return &Config{
		AppVersion:        "1.0.0",
		LogLevel:          "info",
		Port:              "5000",
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		CORSAllowedOrigin: "http://localhost:4200",
		MetricsNamespace:  "flightboard",

		DBDriver:   DriverSQLite,
		SQLitePath: "flightboard.db",

		MongoDB: "flightboard",

		BroadcastQueueSize: 256,
		SubscriberBuffer:   64,
		WSWriteTimeout:     10 * time.Second,
		WSPingInterval:     30 * time.Second,

		Mutator: MutatorConfig{
			Enabled:  true,
			Interval: 300 * time.Millisecond,
		},
		SeedFlights: true,
	}
}

func (c *Config) loadFromEnv() {
	c.AppVersion = getEnv("APP_VERSION", c.AppVersion)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogDevelopment = getEnvAsBool("LOG_DEVELOPMENT", c.LogDevelopment)

	c.Port = getEnv("PORT", c.Port)
	c.ReadTimeout = getEnvAsSeconds("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvAsSeconds("WRITE_TIMEOUT", c.WriteTimeout)
	c.CORSAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", c.CORSAllowedOrigin)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)

	c.DBDriver = strings.ToLower(getEnv("DB_DRIVER", c.DBDriver))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.DBMigrate = getEnvAsBool("DB_MIGRATE", c.DBMigrate)

	c.MongoURI = getEnv("MONGODB_DSN", c.MongoURI)
	c.MongoDB = getEnv("MONGO_DB", c.MongoDB)
	c.MongoUser = getEnv("MONGO_USER", c.MongoUser)
	c.MongoPassword = getEnv("MONGO_PASSWORD", c.MongoPassword)

	c.BroadcastQueueSize = getEnvAsInt("BROADCAST_QUEUE_SIZE", c.BroadcastQueueSize)
	c.SubscriberBuffer = getEnvAsInt("SUBSCRIBER_BUFFER", c.SubscriberBuffer)
	c.WSWriteTimeout = getEnvAsSeconds("WS_WRITE_TIMEOUT", c.WSWriteTimeout)
	c.WSPingInterval = getEnvAsSeconds("WS_PING_INTERVAL", c.WSPingInterval)

	c.Mutator.Enabled = getEnvAsBool("MUTATOR_ENABLED", c.Mutator.Enabled)
	if ms := getEnvAsInt("MUTATOR_INTERVAL_MS", 0); ms > 0 {
		c.Mutator.Interval = time.Duration(ms) * time.Millisecond
	}
	c.SeedFlights = getEnvAsBool("SEED_FLIGHTS", c.SeedFlights)
}

func (c *Config) validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %q", c.Port)
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN cannot be empty when DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("db driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}

	if c.BroadcastQueueSize < 1 {
		return fmt.Errorf("broadcast queue size must be at least 1")
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1")
	}
	if c.Mutator.Interval <= 0 {
		return fmt.Errorf("mutator interval must be positive")
	}

	for i, a := range c.Airports {
		if strings.TrimSpace(a.Code) == "" {
			return fmt.Errorf("airport %d has no code", i)
		}
	}
	for i, f := range c.Flights {
		if strings.TrimSpace(f.From) == "" || strings.TrimSpace(f.To) == "" {
			return fmt.Errorf("flight %d needs both from and to", i)
		}
		if f.Duration < 0 {
			return fmt.Errorf("flight %d has a negative duration", i)
		}
	}
	return nil
}

// HistoryEnabled reports whether a MongoDB history store is configured
func (c *Config) HistoryEnabled() bool {
	return c.MongoURI != ""
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := getEnvAsInt(key, -1); value >= 0 {
		return time.Duration(value) * time.Second
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
