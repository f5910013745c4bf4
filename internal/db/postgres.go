package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/types"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "adaptive_engine", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }

  return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Question{},
    &types.InterviewSession{},
    &types.Response{},
    &types.EffectivenessLogEntry{},
    &types.BiasDetectionResult{},
    &types.CalibrationRun{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
