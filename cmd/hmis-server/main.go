package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DBEST-EZRA/HMIS/internal/config"
	"github.com/DBEST-EZRA/HMIS/internal/domain/billing"
	"github.com/DBEST-EZRA/HMIS/internal/domain/patient"
	"github.com/DBEST-EZRA/HMIS/internal/domain/pharmacy"
	"github.com/DBEST-EZRA/HMIS/internal/domain/registry"
	"github.com/DBEST-EZRA/HMIS/internal/domain/staff"
	"github.com/DBEST-EZRA/HMIS/internal/domain/ward"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/db"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
	"github.com/DBEST-EZRA/HMIS/internal/platform/filter"
	"github.com/DBEST-EZRA/HMIS/internal/platform/middleware"
	"github.com/DBEST-EZRA/HMIS/internal/platform/sandbox"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
	"github.com/DBEST-EZRA/HMIS/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hmis-server",
		Short:         "Hospital management records API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// backend is an opened record store with its health probe.
type backend struct {
	store store.Store
	probe db.Probe
	close func()
}

// openBackend connects the configured store and wraps it with the
// collection schemas.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			store: store.Validated(store.NewPostgresStore(pool), store.Schemas),
			probe: db.PoolProbe{Pool: pool},
			close: pool.Close,
		}, nil
	case config.BackendMongo:
		ms, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: store.Validated(ms, store.Schemas),
			probe: ms,
			close: func() { _ = ms.Close(context.Background()) },
		}, nil
	default:
		mem := store.NewMemoryStore()
		return &backend{
			store: store.Validated(mem, store.Schemas),
			probe: mem,
			close: func() {},
		}, nil
	}
}

func newIdentity(cfg *config.Config, s store.Store, logger zerolog.Logger) *auth.Identity {
	return auth.NewIdentity(s, auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: cfg.SigningKey(),
		TTL:        cfg.SessionTTL,
	}, logger)
}

// newServer wires the middleware chain and every dashboard's routes.
func newServer(cfg *config.Config, be *backend, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(cfg.StoreBackend, be.probe))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.RateLimit(rateLimitCfg)

	identity := newIdentity(cfg, be.store, logger)
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: cfg.SigningKey(),
		TTL:        cfg.SessionTTL,
		Skipper:    auth.AuthSkipper,
	}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg)
	}

	api := e.Group("/api/v1", limiter, authMW,
		middleware.Audit(logger, middleware.StoreAuditRecorder(be.store)))

	authHandler := auth.NewHandler(identity, cfg.ExposeResetToken)
	authHandler.RegisterPublicRoutes(api)
	authHandler.RegisterRoutes(api)
	patient.NewHandler(patient.NewService(be.store, logger), cfg.PageSize).RegisterRoutes(api)
	billing.NewHandler(billing.NewService(be.store, logger), cfg.PageSize).RegisterRoutes(api)
	ward.NewHandler(ward.NewService(be.store, logger, cfg.WardLockOnDischarge), cfg.PageSize).RegisterRoutes(api)
	pharmacy.NewHandler(pharmacy.NewService(be.store, logger), cfg.PageSize).RegisterRoutes(api)
	staff.NewHandler(staff.NewService(be.store, identity, cfg.DefaultPassword, logger), cfg.PageSize).RegisterRoutes(api)
	registry.NewHandler(registry.NewService(be.store, logger), cfg.PageSize).RegisterRoutes(api)

	return e
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

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	be, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open record store")
	}
	defer be.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("record store ready")
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn().Msg("memory backend: records are lost when the server stops")
	}

	e := newServer(cfg, be, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema of the record store",
	}

	withMigrator := func(run func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for migrations")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		return run(ctx, db.NewMigrator(pool, migrations.FS))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatuses(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func exportCmd() *cobra.Command {
	var spec filter.Spec
	var out string
	cmd := &cobra.Command{
		Use:   "export <collection>",
		Short: "Write a filtered collection to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			be, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer be.close()

			n, path, err := exportCollection(ctx, be.store, args[0], spec, out, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d record(s) to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&spec.Search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&spec.Date, "date", "", "createdAt date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&spec.Month, "month", "", "createdAt month (01-12)")
	cmd.Flags().StringVar(&spec.Year, "year", "", "createdAt year (YYYY)")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default <collection>_<date>.xlsx)")
	return cmd
}

// exportCollection writes the records of collection matching spec to out.
func exportCollection(ctx context.Context, s store.Store, collection string, spec filter.Spec, out string, now time.Time) (int, string, error) {
	if err := spec.Validate(); err != nil {
		return 0, "", err
	}
	recs, err := s.GetAll(ctx, collection)
	if err != nil {
		return 0, "", err
	}
	matched := filter.Apply(recs, spec)
	if len(matched) == 0 {
		return 0, "", fmt.Errorf("no data to export")
	}
	if out == "" {
		out = export.FileName(collection, now)
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := export.Write(f, collection, export.Records(matched)); err != nil {
		return 0, "", err
	}
	return len(matched), out, f.Close()
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage sign-in accounts",
	}

	var in auth.NewAccount
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			be, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer be.close()

			id, err := newIdentity(cfg, be.store, newLogger(cfg)).CreateAccount(ctx, in)
			if err != nil {
				return err
			}
			dash, err := auth.Route(in.Role)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s; role %q has no dashboard, sign-in will be refused.\n", id, in.Role)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (dashboard %s).\n", id, dash)
			return nil
		},
	}
	createCmd.Flags().StringVar(&in.Email, "email", "", "Sign-in email")
	createCmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	createCmd.Flags().StringVar(&in.Role, "role", "", "Role, e.g. reception or accounts")
	createCmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("role")
	_ = createCmd.MarkFlagRequired("password")
	cmd.AddCommand(createCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	seedCfg := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reproducible demo data for every dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to load demo data in production")
			}
			ctx := context.Background()
			be, err := openBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer be.close()

			res, err := sandbox.NewSeeder(seedCfg, time.Now()).Load(ctx, be.store)
			if err != nil {
				return err
			}
			for _, name := range res.Collections() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", name, res.Counts[name])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d record(s) in %s.\n", res.Total, res.Duration)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seedCfg.Seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().IntVar(&seedCfg.Patients, "patients", seedCfg.Patients, "Outpatient visits")
	cmd.Flags().IntVar(&seedCfg.WardStays, "ward-stays", seedCfg.WardStays, "Inpatient stays")
	cmd.Flags().IntVar(&seedCfg.Sales, "sales", seedCfg.Sales, "Pharmacy sales")
	return cmd
}
