// Command seed-db creates the schema, the default coupons and an operator API
// key allowed to verify bank transfers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/db"
	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		couponsFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponsFile, "coupons-file", "", "coupons JSON file (defaults to the built-in catalogue)")
	flag.StringVar(&apiKey, "api-key", "", "operator API key to seed (or RIG_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or RIG_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("RIG_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("RIG_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, couponsFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, couponsFile, apiKey, pepper string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool), couponsFile); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if apiKey == "" {
		lg.Warn("No API key given, skipping operator key")
		return nil
	}
	if err := seedAPIKey(ctx, lg, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository, path string) error {
	data := db.SeedCoupons
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return errors.Wrap(err, "read coupons file")
		}
	}

	rules, err := coupon.DecodeRules(data)
	if err != nil {
		return err
	}
	if err := repo.UpsertBatch(ctx, rules); err != nil {
		return err
	}
	for _, r := range rules {
		lg.Info("Upserted coupon", zap.String("code", r.Code), zap.String("percentage", r.Percentage.String()))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, repo *postgres.APIKeyRepository, key, pepper string) error {
	info := auth.APIKeyInfo{
		ID:      ulid.Make().String(),
		KeyHash: auth.HashKey([]byte(pepper), key),
		Name:    "operator",
		Scopes:  []string{auth.ScopeOrdersVerify},
	}
	if err := repo.Create(ctx, info); err != nil {
		return err
	}
	lg.Info("Seeded API key", zap.String("name", info.Name), zap.Strings("scopes", info.Scopes))
	return nil
}
