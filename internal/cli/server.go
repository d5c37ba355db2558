package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"raven-iq-service/internal/app"
	"raven-iq-service/internal/cert"
	"raven-iq-service/internal/config"
	"raven-iq-service/internal/domain"
	"raven-iq-service/internal/infra/bunstore"
	"raven-iq-service/internal/infra/memory"
	redissession "raven-iq-service/internal/infra/redis"
	"raven-iq-service/internal/payment"
	transport "raven-iq-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the IQ test server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := applyMigrations(ctx, db); err != nil {
		return err
	}
	store := bunstore.New(db)

	sessionTTL := config.TTLDuration(cfg.Admin.SessionTTL, 12*time.Hour)
	var sessions app.AdminSessions
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		sessions = redissession.NewSessionStore(client, sessionTTL, logger)
	} else {
		memStore := memory.NewSessionStore(sessionTTL)
		go memStore.Janitor(ctx, 24*time.Hour)
		sessions = memStore
	}

	var verifier app.PaymentVerifier = unconfiguredVerifier{}
	if cfg.Payments.StripeAPIKey != "" {
		verifier = payment.NewStripeVerifier(cfg.Payments.StripeAPIKey)
	}

	renderer, err := cert.NewRenderer(cfg.Cert.TemplatePath)
	if err != nil {
		return err
	}

	feed := app.NewFeed()
	results := app.NewResultService(store, store, verifier, feed, logger, app.ResultServiceOptions{
		TierLinks:     tierLinks(cfg),
		Tier1Lifetime: cfg.Tier1Lifetime(),
	})
	campaigns := app.NewCampaignService(store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewPublicHandler(results, campaigns, renderer, logger,
		cfg.Server.Domain, cfg.Server.WebrootDir, cfg.Server.AdminContact).Register(mux)
	admin := transport.NewAdminHandler(results, campaigns, sessions, logger,
		cfg.Admin.Login, cfg.Admin.PasswordHash, sessionTTL)
	admin.Register(mux)
	transport.NewFeedHandler(feed, admin.IsAdmin, logger).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting iq test service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openDatabase(cfg config.Config) (*bun.DB, error) {
	if cfg.Database.PostgresURL != "" {
		return bunstore.OpenPostgres(cfg.Database.PostgresURL)
	}
	return bunstore.OpenSQLite(cfg.Database.SQLitePath)
}

func tierLinks(cfg config.Config) map[string]domain.ResultTier {
	links := make(map[string]domain.ResultTier, 3)
	if id := cfg.Payments.TierLinks.Tier1; id != "" {
		links[id] = domain.TierTemporary
	}
	if id := cfg.Payments.TierLinks.Tier2; id != "" {
		links[id] = domain.TierPlain
	}
	if id := cfg.Payments.TierLinks.Tier3; id != "" {
		links[id] = domain.TierCertificate
	}
	return links
}

// unconfiguredVerifier rejects every paid submission when no Stripe key
// is set; direct submissions keep working.
type unconfiguredVerifier struct{}

func (unconfiguredVerifier) Retrieve(context.Context, string) (app.VerifiedPayment, error) {
	return app.VerifiedPayment{}, domain.ErrPaymentNotCompleted
}
