package config

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// LockWaitTimeout bounds how long a statement waits for a row lock.
	LockWaitTimeout time.Duration
}

type Config struct {
	Port              string
	StorageDriver     string
	ApprovalThreshold decimal.Decimal
	LockTimeout       time.Duration
	WorkerCount       int
	QueueSize         int
	DefaultCurrency   string
	RedisAddr         string
	RabbitMQURL       string
	RabbitMQExchange  string
	RunMigrations     bool
	DB                *DBConfig
}

func init() {
	// .env is optional; production relies on real environment variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not parse .env file", "error", err)
	}
}

func Load() (*Config, error) {
	threshold, err := decimal.NewFromString(getEnv("APPROVAL_THRESHOLD", "100000"))
	if err != nil {
		return nil, fmt.Errorf("invalid APPROVAL_THRESHOLD: %w", err)
	}
	if threshold.IsNegative() {
		return nil, fmt.Errorf("APPROVAL_THRESHOLD must not be negative")
	}

	lockTimeout, err := time.ParseDuration(getEnv("LOCK_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT: %w", err)
	}
	if lockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive")
	}

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", DriverMySQL))
	if driver != DriverMySQL && driver != DriverMemory {
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", driver)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		StorageDriver:     driver,
		ApprovalThreshold: threshold,
		LockTimeout:       lockTimeout,
		WorkerCount:       getInt("WORKER_COUNT", 10),
		QueueSize:         getInt("QUEUE_SIZE", 100),
		DefaultCurrency:   strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:  getEnv("RABBITMQ_EXCHANGE", "ledger.events"),
		RunMigrations:     getBool("RUN_MIGRATIONS", true),
	}

	if driver == DriverMySQL {
		dbCfg, err := LoadDBConfig()
		if err != nil {
			return nil, err
		}
		dbCfg.LockWaitTimeout = lockTimeout
		cfg.DB = dbCfg
	}

	return cfg, nil
}

func LoadDBConfig() (*DBConfig, error) {
	cfg := &DBConfig{
		User:            getEnv("DB_USER", "root"),
		Password:        getEnv("DB_PASSWORD", ""),
		Host:            getEnv("DB_HOST", "127.0.0.1"),
		Port:            getEnv("DB_PORT", "3306"),
		Name:            getEnv("DB_NAME", "corebank"),
		LockWaitTimeout: 5 * time.Second,
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	return cfg, nil
}

// DSN renders the driver connection string. innodb_lock_wait_timeout is
// whole seconds, so sub-second timeouts round up to 1.
func (c *DBConfig) DSN() string {
	lockWait := int((c.LockWaitTimeout + time.Second - 1) / time.Second)
	if lockWait < 1 {
		lockWait = 1
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + c.Port
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{
		"innodb_lock_wait_timeout": strconv.Itoa(lockWait),
		"transaction_isolation":    "'READ-COMMITTED'",
	}
	return mc.FormatDSN()
}

func ConnectDB(cfg *DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return db, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
