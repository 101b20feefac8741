package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/shopradar/internal/adapters/postgres"
	"github.com/samirrijal/shopradar/internal/core/usecases"
	"github.com/samirrijal/shopradar/internal/pkg/config"
	"github.com/samirrijal/shopradar/internal/pkg/logging"
)

const batchSize = 500

// Usage: seed [path-or-url]   (default shops.csv)
func main() {
	cfg, err := config.Load("shopradar-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("shopradar-seed", cfg.Log.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	source := "shops.csv"
	if len(os.Args) > 1 {
		source = os.Args[1]
	}

	r, err := open(source)
	if err != nil {
		log.Fatalf("open %s: %v", source, err)
	}
	candidates, err := parseShopsCSV(r)
	if err != nil {
		log.Fatalf("parse %s: %v", source, err)
	}
	slog.Info("ShopRadar seeder", "source", source, "rows", len(candidates))

	svc := usecases.NewShopService(postgres.NewShopRepo(db), nil)

	stored := 0
	rejected := make(map[string]int)
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		n, reasons, err := svc.Import(ctx, candidates[start:end])
		if err != nil {
			log.Fatalf("import rows %d-%d: %v", start, end, err)
		}
		stored += n
		for reason, count := range reasons {
			rejected[reason] += count
		}
	}

	for reason, count := range rejected {
		slog.Warn("rows rejected", "reason", reason, "count", count)
	}
	slog.Info("seeding complete", "stored", stored, "rejected", len(candidates)-stored)
}

// open reads a local file, or downloads http(s) sources.
func open(source string) (io.Reader, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.Open(source)
	}

	status, body, err := fasthttp.GetTimeout(nil, source, 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", status, source)
	}
	return bytes.NewReader(body), nil
}
