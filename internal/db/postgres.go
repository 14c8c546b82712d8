package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/utils"
)

// PostgresService owns the gorm handle backing the document store. The
// database hosts a single schemaless table, so there is no per-entity
// schema management here beyond AutoMigrateAll.
type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

type postgresSettings struct {
	host     string
	port     string
	user     string
	password string
	name     string
	sslmode  string
}

func postgresSettingsFromEnv(log *logger.Logger) postgresSettings {
	return postgresSettings{
		host:     utils.GetEnv("POSTGRES_HOST", "localhost", log),
		port:     utils.GetEnv("POSTGRES_PORT", "5432", log),
		user:     utils.GetEnv("POSTGRES_USER", "postgres", log),
		password: utils.GetEnv("POSTGRES_PASSWORD", "", log),
		name:     utils.GetEnv("POSTGRES_NAME", "skillquest", log),
		sslmode:  utils.GetEnv("POSTGRES_SSLMODE", "disable", log),
	}
}

func (s postgresSettings) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		s.user, s.password, s.host, s.port, s.name, s.sslmode)
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	settings := postgresSettingsFromEnv(logg)

	// ErrRecordNotFound is an expected outcome for document reads, not
	// noise worth a warning line.
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormDB, err := gorm.Open(postgres.Open(settings.dsn()), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	// Document rows mint their primary keys with uuid_generate_v4.
	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gormDB, log: logg.With("service", "PostgresService")}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }
