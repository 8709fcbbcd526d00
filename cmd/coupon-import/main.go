// Command coupon-import loads coupon campaign files into the database. Codes
// that more than one campaign defines are reported and skipped.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/internal/couponimport"
	"github.com/xenking/rig-checkout/internal/storage/postgres"
)

const batchSize = 1000

func main() {
	var (
		dataDir     string
		databaseURL string
		capacity    uint
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz campaign files; ignored when files are given as arguments")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected number of codes per file")
	flag.BoolVar(&dryRun, "dry-run", false, "scan and report without writing")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files := flag.Args()
	if len(files) == 0 {
		if files, err = filepath.Glob(filepath.Join(dataDir, "*.gz")); err != nil {
			lg.Fatal("List campaign files", zap.Error(err))
		}
	}

	if err := run(ctx, lg, files, databaseURL, capacity, dryRun); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
	lg.Info("Coupon import completed")
}

func run(ctx context.Context, lg *zap.Logger, files []string, databaseURL string, capacity uint, dryRun bool) error {
	if len(files) == 0 {
		return errors.New("no campaign files")
	}

	res, err := couponimport.Scan(ctx, couponimport.Config{Capacity: capacity, Logger: lg}, files)
	if err != nil {
		return err
	}
	lg.Info("Scan complete",
		zap.Int("files", len(files)),
		zap.Int("coupons", len(res.Rules)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("invalid_lines", res.Invalid),
	)
	for _, code := range res.Conflicts {
		lg.Warn("Skipping code defined in more than one campaign", zap.String("code", code))
	}
	if dryRun || len(res.Rules) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCouponRepository(pool)
	for start := 0; start < len(res.Rules); start += batchSize {
		end := min(start+batchSize, len(res.Rules))
		if err := repo.UpsertBatch(ctx, res.Rules[start:end]); err != nil {
			return errors.Wrap(err, "write coupons")
		}
		lg.Info("Write progress", zap.Int("written", end), zap.Int("total", len(res.Rules)))
	}
	return nil
}
