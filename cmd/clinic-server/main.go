package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abroroo/medicPro-sub000/internal/config"
	"github.com/abroroo/medicPro-sub000/internal/domain/clinic"
	"github.com/abroroo/medicPro-sub000/internal/domain/identity"
	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/domain/queue"
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/internal/platform/events"
	"github.com/abroroo/medicPro-sub000/internal/platform/logging"
	"github.com/abroroo/medicPro-sub000/internal/platform/metrics"
	"github.com/abroroo/medicPro-sub000/internal/platform/middleware"
	"github.com/abroroo/medicPro-sub000/internal/platform/websocket"
	"github.com/abroroo/medicPro-sub000/migrations"
)

const requestTimeout = 30 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Multi-clinic patient queue and visit API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(clinicCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer done()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer done()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	// MIGRATIONS_DIR overrides the embedded files, mainly for local schema work.
	if cfg.MigrationsDir != "" {
		return db.NewMigrator(pool, os.DirFS(cfg.MigrationsDir)), pool.Close, nil
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			tz, _ := cmd.Flags().GetString("timezone")
			phone, _ := cmd.Flags().GetString("phone")
			email, _ := cmd.Flags().GetString("email")
			address, _ := cmd.Flags().GetString("address")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := clinic.NewService(clinic.NewRepo(pool), zerolog.Nop())
			c := &clinic.Clinic{Name: name, Timezone: tz, Phone: phone, Email: email, Address: address}
			if err := svc.CreateClinic(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clinic %q created with id %s\n", c.Name, c.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic name (required)")
	createCmd.Flags().String("timezone", "UTC", "IANA timezone of the clinic")
	createCmd.Flags().String("phone", "", "Contact phone")
	createCmd.Flags().String("email", "", "Contact email")
	createCmd.Flags().String("address", "", "Street address")
	_ = createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, Dev: cfg.IsDev()})

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Queue events
	checks := []db.Check{}
	var bus events.Bus
	if cfg.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		rb := events.NewRedisBus(client, logger)
		checks = append(checks, db.Check{Name: "redis", Ping: rb.Ping})
		bus = rb
		logger.Info().Msg("queue events fan out through redis")
	} else {
		bus = events.NewLocalBus()
		logger.Info().Msg("queue events are process-local; set REDIS_URL when running several replicas")
	}
	defer bus.Close()

	authMW, err := authMiddleware(cfg)
	if err != nil {
		return err
	}

	// Services
	tx := db.NewTxRunner(pool, cfg.TxMaxRetries, logger)
	validator := isolation.NewValidator(pool)
	clinicSvc := clinic.NewService(clinic.NewRepo(pool), logger)
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewStaffRepo(pool), logger)
	visitSvc := visit.NewService(visit.NewRepo(pool), visit.NewNoteRepo(pool), validator, tx, identitySvc, logger)
	queueRepo := queue.NewRepo(pool)
	queueSvc := queue.NewService(queueRepo, visitSvc, validator, tx, queue.NewAllocator(queueRepo, loc), logger).
		WithPublisher(bus).
		WithMetrics(m)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout))

	// Infrastructure endpoints, outside auth
	e.GET("/health", db.HealthHandler(pool, checks...))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", authMW, db.TenantMiddleware(), middleware.RateLimit(rateLimitCfg))

	clinic.NewHandler(clinicSvc).RegisterRoutes(apiV1)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc, bus).RegisterRoutes(apiV1)
	websocket.NewBoardHandler(bus, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("queue_timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// authMiddleware picks the token verifier for cfg. In development, requests
// without a token act as admin of DEFAULT_CLINIC_ID and tokens are still
// verified when a verifier is configured.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	var verify echo.MiddlewareFunc
	if cfg.AuthSigningKey != "" || cfg.AuthJWKSURL != "" || cfg.AuthIssuer != "" {
		verify = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	}
	if cfg.IsDev() {
		clinicID, err := cfg.DefaultClinicID()
		if err != nil {
			return nil, err
		}
		return auth.DevAuthMiddleware(clinicID, verify), nil
	}
	if verify == nil {
		return nil, errors.New("no token verifier configured")
	}
	return verify, nil
}
