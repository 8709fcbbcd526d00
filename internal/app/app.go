package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v78"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/rig-checkout/db"
	"github.com/xenking/rig-checkout/internal/account"
	"github.com/xenking/rig-checkout/internal/checkout"
	"github.com/xenking/rig-checkout/internal/domain/auth"
	"github.com/xenking/rig-checkout/internal/domain/coupon"
	"github.com/xenking/rig-checkout/internal/domain/order"
	"github.com/xenking/rig-checkout/internal/handler"
	"github.com/xenking/rig-checkout/internal/payment"
	"github.com/xenking/rig-checkout/internal/storage/memory"
	"github.com/xenking/rig-checkout/internal/storage/postgres"
	"github.com/xenking/rig-checkout/pkg/health"
	"github.com/xenking/rig-checkout/pkg/httpmiddleware"
)

const stripeTimeout = 30 * time.Second

// repositories are the storage-backed collaborators of the service.
type repositories struct {
	state   checkout.StateStore
	coupons coupon.Repository
	orders  order.Repository
	apikeys auth.Repository
	// ping checks the backing store; nil for in-memory storage.
	ping    health.Pinger
	close   func()
}

func openRepositories(ctx context.Context, lg *zap.Logger, cfg *Config) (*repositories, error) {
	if cfg.Storage == StorageMemory {
		rules, err := coupon.DecodeRules(db.SeedCoupons)
		if err != nil {
			return nil, errors.Wrap(err, "load seed coupons")
		}
		lg.Warn("Using in-memory storage, orders are lost on restart", zap.Int("coupons", len(rules)))

		coupons := memory.NewCouponRepository(rules...)
		return &repositories{
			state:   memory.NewStateStore(),
			coupons: coupons,
			orders:  memory.NewOrderRepository(coupons),
			apikeys: memory.NewAPIKeyRepository(),
			close:   func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &repositories{
		state:   postgres.NewStateStore(pool),
		coupons: postgres.NewCouponRepository(pool),
		orders:  postgres.NewOrderRepository(pool),
		apikeys: postgres.NewAPIKeyRepository(pool),
		ping:    pool,
		close:   pool.Close,
	}, nil
}

// strategies builds the payment strategies that are configured. Bank transfer
// needs no credentials and is always available.
func strategies(ctx context.Context, lg *zap.Logger, cfg *Config, repos *repositories) ([]payment.Strategy, *payment.BankTransfer, error) {
	ledger := payment.NewLedger(repos.orders)
	bank := payment.NewBankTransfer(ledger, repos.orders)
	out := []payment.Strategy{bank}

	if cfg.Stripe.SecretKey != "" {
		backends := stripe.NewBackends(&http.Client{
			Timeout:   stripeTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
		card, err := payment.NewCard(cfg.Stripe.SecretKey, backends, ledger, repos.orders)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create card strategy")
		}
		out = append(out, card)
	} else {
		lg.Info("Card payments disabled: no Stripe secret key")
	}

	if cfg.PayPal.Enabled() {
		wallet, err := payment.NewWallet(ctx, payment.WalletConfig{
			BaseURL:      cfg.PayPal.BaseURL,
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			ReturnURL:    cfg.PayPal.ReturnURL,
			CancelURL:    cfg.PayPal.CancelURL,
			BrandName:    cfg.PayPal.BrandName,
		}, ledger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create wallet strategy")
		}
		out = append(out, wallet)
	} else {
		lg.Info("Wallet payments disabled: no PayPal credentials")
	}

	return out, bank, nil
}

func accounts(ctx context.Context, lg *zap.Logger, cfg *Config) (account.Creator, error) {
	if cfg.Firebase.ProjectID == "" {
		lg.Info("Account creation disabled: no Firebase project")
		return account.Disabled{}, nil
	}
	fb, err := account.NewFirebase(ctx, account.FirebaseConfig{
		ProjectID:       cfg.Firebase.ProjectID,
		CredentialsFile: cfg.Firebase.CredentialsFile,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create firebase accounts")
	}
	return fb, nil
}

// wire builds the checkout service and the HTTP handler on top of repos.
func wire(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	repos *repositories,
	meter metric.Meter,
	tracer trace.Tracer,
) (*handler.Handler, *checkout.Service, error) {
	payments, bank, err := strategies(ctx, lg, cfg, repos)
	if err != nil {
		return nil, nil, err
	}
	creator, err := accounts(ctx, lg, cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := checkout.New(checkout.Deps{
		Store:      repos.state,
		Coupons:    coupon.NewRepoValidator(repos.coupons),
		Strategies: payments,
		Accounts:   creator,
		Logger:     lg.Named("checkout"),
		Meter:      meter,
		Tracer:     tracer,
		SessionTTL: cfg.Session.TTL,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "create checkout service")
	}

	keys := auth.NewAuthenticator(repos.apikeys, []byte(cfg.APIKeyPepper))
	return handler.NewHandler(handler.Config{}, svc, bank, keys), svc, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))

	repos, err := openRepositories(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer repos.close()

	h, svc, err := wire(ctx, lg, cfg, repos,
		m.MeterProvider().Meter("checkout"),
		m.TracerProvider().Tracer("checkout"),
	)
	if err != nil {
		return err
	}
	go svc.Run(ctx)

	// Health check service.
	healthSvc := health.New()
	if repos.ping != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(repos.ping))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	router := h.Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(router, "rig-checkout",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
