package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/clinscore/internal/config"
	"github.com/ehr/clinscore/internal/domain/assessment"
	"github.com/ehr/clinscore/internal/instrument"
	"github.com/ehr/clinscore/internal/norms"
	"github.com/ehr/clinscore/internal/platform/db"
	"github.com/ehr/clinscore/internal/platform/middleware"
	"github.com/ehr/clinscore/internal/scoring"
	"github.com/ehr/clinscore/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinscore",
		Short:        "Clinical assessment scoring service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(prefillCmd())
	rootCmd.AddCommand(normsCmd())
	return rootCmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// loadCatalog reads instrument definitions from dir, or the embedded set when
// dir is empty.
func loadCatalog(dir string) (*instrument.Catalog, error) {
	if dir == "" {
		return instrument.DefaultCatalog()
	}
	cat, err := instrument.Load(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load definitions from %s: %w", dir, err)
	}
	return cat, nil
}

func loadNorms(dir string) (*norms.Store, error) {
	if dir == "" {
		return norms.DefaultStore()
	}
	store, err := norms.Load(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("load norm tables from %s: %w", dir, err)
	}
	return store, nil
}

// dirFlag returns the named directory flag when given on the command line,
// else the directory from the loaded configuration.
func dirFlag(cmd *cobra.Command, name string, fromConfig func(*config.Config) string) (string, error) {
	if cmd.Flags().Changed(name) {
		return cmd.Flags().GetString(name)
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return fromConfig(cfg), nil
}

func normsDirOf(cfg *config.Config) string { return cfg.NormsDir }

func definitionsDirOf(cfg *config.Config) string { return cfg.DefinitionsDir }

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Stateless() {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsFS(cfg.MigrationsDir)).Up(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to schema %s.\n", count, cfg.DBSchema)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(cfg.MigrationsDir)).Status(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, cfg.DBSchema, statuses)
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, schema string, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(out, "%-8s %-36s %-8s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format(time.DateTime)
			}
		}
		fmt.Fprintf(out, "%-8d %-36s %-8s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	catalog, err := loadCatalog(cfg.DefinitionsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load instrument definitions")
	}
	store, err := loadNorms(cfg.NormsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load norm tables")
	}
	engine := scoring.NewEngine(norms.NewEngine(store))
	logger.Info().
		Int("instruments", len(catalog.List())).
		Int("norm_tables", len(store.Tables())).
		Msg("scoring engine ready")

	ctx := context.Background()
	var (
		results assessment.ResultRepository
		answers assessment.AnswerRepository
		pinger  db.Pinger
		pool    *pgxpool.Pool
	)
	if cfg.Stateless() {
		logger.Warn().Msg("DATABASE_URL not set: results will not be stored")
	} else {
		pool, err = openPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

		if migrate {
			n, err := db.NewMigrator(pool, migrationsFS(cfg.MigrationsDir)).Up(ctx, cfg.DBSchema)
			if err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
			logger.Info().Int("applied", n).Msg("migrations up to date")
		}
		results = assessment.NewResultRepoPG(pool)
		answers = assessment.NewAnswerRepoPG(pool)
		pinger = pool
	}

	svc := assessment.NewService(engine, catalog, results, answers, logger)
	if pool != nil {
		svc.SetTx(func(ctx context.Context, fn func(context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		})
	}

	e := newEcho(cfg, logger)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"instruments": len(catalog.List()),
			"norm_tables": len(store.Tables()),
			"stateless":   cfg.Stateless(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	apiV1 := e.Group("/api/v1")
	assessment.NewHandler(svc).RegisterRoutes(apiV1)

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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("256K"))
	e.Use(middleware.RequestTimeout(15 * time.Second))
	return e
}
