package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/inkbook/studio-admin/internal/appointments"
	appconfig "github.com/inkbook/studio-admin/internal/config"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildHoursStore returns the business hours store when Redis is available.
func BuildHoursStore(redisClient *redis.Client) *hours.Store {
	if redisClient == nil {
		return nil
	}
	return hours.NewStore(redisClient)
}

// BuildPostgresPool opens and pings the appointments database. It returns
// nil without error when DATABASE_URL is unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// BuildSQLDB opens the database/sql handle used by the staff directory.
func BuildSQLDB(cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open sql db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Storage is the appointment storage selected for this process.
type Storage struct {
	Appointments appointments.Repository
	Staff        appointments.StaffDirectory
	// Postgres is set when appointments live in Postgres; it writes bookings
	// and their outbox events in one transaction.
	Postgres *appointments.PostgresRepository
}

// BuildStorage picks Postgres when both handles exist and falls back to
// in-memory storage for local development.
func BuildStorage(pool *pgxpool.Pool, db *sql.DB, logger *logging.Logger) Storage {
	if logger == nil {
		logger = logging.Default()
	}
	if pool == nil || db == nil {
		logger.Warn("DATABASE_URL not set; using in-memory appointment storage")
		return Storage{
			Appointments: appointments.NewInMemoryRepository(),
			Staff:        appointments.NewInMemoryStaffDirectory(),
		}
	}
	repo := appointments.NewPostgresRepository(pool)
	return Storage{
		Appointments: repo,
		Staff:        appointments.NewSQLStaffDirectory(db),
		Postgres:     repo,
	}
}
