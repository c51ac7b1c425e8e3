package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/pkg/database"
	"github.com/yourusername/homepage-api/pkg/logger"
)

const usage = "usage: migrate up | down | force <version> | version"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.Log.Dir, true)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer appLog.Sync()

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		appLog.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		appLog.Fatal("Database is unreachable", zap.Error(err))
	}

	m, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		appLog.Fatal("Failed to init migrator", zap.Error(err))
	}

	if err := run(m, os.Args[1:], appLog); err != nil {
		appLog.Fatal("Migration failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func run(m *migrate.Migrate, args []string, log *zap.Logger) error {
	switch args[0] {
	case "up":
		return ignoreNoChange(m.Up(), log)
	case "down":
		return ignoreNoChange(m.Steps(-1), log)
	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		// Снимает флаг dirty после упавшей миграции
		if err := m.Force(version); err != nil {
			return err
		}
		log.Info("Migration version forced", zap.Int("version", version))
		return nil
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return errors.New(usage)
	}
}

func ignoreNoChange(err error, log *zap.Logger) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No change")
		return nil
	}
	if err == nil {
		log.Info("Done")
	}
	return err
}
