package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/vibelog/backend/internal/config"
	"github.com/vibelog/backend/internal/logger"
	"github.com/vibelog/backend/migrations"
)

func main() {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "vibelog-migrate"
	envCfg.Environment = "local"
	appLogger := logger.New(envCfg)
	logger.SetDefault(appLogger)

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	dsn := flag.String("dsn", "", "Postgres DSN; defaults to database.url")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-config path] [-dsn url] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		os.Exit(1)
	}

	if *dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to load config")
		}
		*dsn = cfg.Database.URL
	}
	if *dsn == "" {
		appLogger.Fatal("A Postgres DSN is required (database.url or -dsn)")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open database")
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		appLogger.WithError(err).Fatal("Failed to set dialect")
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = migrations.Run(db)
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	default:
		appLogger.Fatalf("Unknown command: %s", cmd)
	}

	if err != nil {
		appLogger.WithError(err).Fatalf("%s failed", cmd)
	}
	appLogger.Infof("%s completed", cmd)
}
