package main

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"

	"github.com/samirrijal/shopradar/internal/pkg/config"
	"github.com/samirrijal/shopradar/internal/pkg/logging"
	"github.com/samirrijal/shopradar/migrations"
)

// Usage: migrate <up|down|version|force N>
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|version|force N>")
	}

	cfg, err := config.Load("shopradar-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("shopradar-migrate", cfg.Log.Level, "text")

	src, err := migrations.Source()
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL(cfg.Database.DSN()))
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer m.Close()

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		v, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			slog.Info("no migrations applied")
			return
		}
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		slog.Info("schema version", "version", v, "dirty", dirty)
		return
	case "force":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate force N")
		}
		v, perr := strconv.Atoi(os.Args[2])
		if perr != nil {
			log.Fatalf("force: bad version %q", os.Args[2])
		}
		err = m.Force(v)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("schema already up to date", "command", os.Args[1])
		return
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
	slog.Info("migrations applied", "command", os.Args[1])
}

// databaseURL rewrites a postgres:// DSN to the pgx5:// scheme the
// golang-migrate pgx driver registers.
func databaseURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}
