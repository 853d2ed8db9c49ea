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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ccdstore/ccdstore/internal/config"
	"github.com/ccdstore/ccdstore/internal/dashboard"
	"github.com/ccdstore/ccdstore/internal/domain/allergy"
	"github.com/ccdstore/ccdstore/internal/domain/condition"
	"github.com/ccdstore/ccdstore/internal/domain/encounter"
	"github.com/ccdstore/ccdstore/internal/domain/immunization"
	"github.com/ccdstore/ccdstore/internal/domain/insurance"
	"github.com/ccdstore/ccdstore/internal/domain/labresult"
	"github.com/ccdstore/ccdstore/internal/domain/medication"
	"github.com/ccdstore/ccdstore/internal/domain/patient"
	"github.com/ccdstore/ccdstore/internal/domain/procedure"
	"github.com/ccdstore/ccdstore/internal/domain/progressnote"
	"github.com/ccdstore/ccdstore/internal/domain/provenance"
	"github.com/ccdstore/ccdstore/internal/domain/provider"
	"github.com/ccdstore/ccdstore/internal/domain/vital"
	"github.com/ccdstore/ccdstore/internal/ingest"
	"github.com/ccdstore/ccdstore/internal/platform/db"
	"github.com/ccdstore/ccdstore/internal/platform/middleware"
)

// Persistent flag overrides applied on top of the loaded config.
var (
	logLevelFlag string
	logFileFlag  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ccdstore",
		Short: "CCD ingestion pipeline and dashboard API",
	}
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Append JSON logs to this file as well as stdout")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logFileFlag != "" {
		cfg.LogFile = logFileFlag
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			out = io.MultiWriter(out, f)
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// domainServices wires every repository and service on top of one pool.
type domainServices struct {
	providers     *provider.Service
	patients      *patient.Service
	encounters    *encounter.Service
	conditions    *condition.Service
	procedures    *procedure.Service
	medications   *medication.Service
	labs          *labresult.Service
	vitals        *vital.Service
	immunizations *immunization.Service
	allergies     *allergy.Service
	insurance     *insurance.Service
	notes         *progressnote.Service
	provenance    *provenance.Service
}

func buildServices(pool *pgxpool.Pool) *domainServices {
	providers := provider.NewService(provider.NewRepoPG(pool))
	encounters := encounter.NewService(encounter.NewRepoPG(pool), providers)
	return &domainServices{
		providers:     providers,
		patients:      patient.NewService(patient.NewRepoPG(pool)),
		encounters:    encounters,
		conditions:    condition.NewService(condition.NewRepoPG(pool), providers, encounters),
		procedures:    procedure.NewService(procedure.NewRepoPG(pool), providers, encounters),
		medications:   medication.NewService(medication.NewRepoPG(pool), encounters),
		labs:          labresult.NewService(labresult.NewRepoPG(pool), providers, encounters),
		vitals:        vital.NewService(vital.NewRepoPG(pool), encounters),
		immunizations: immunization.NewService(immunization.NewRepoPG(pool)),
		allergies:     allergy.NewService(allergy.NewRepoPG(pool), providers, encounters),
		insurance:     insurance.NewService(insurance.NewRepoPG(pool)),
		notes:         progressnote.NewService(progressnote.NewRepoPG(pool), providers, encounters),
		provenance:    provenance.NewService(provenance.NewRepoPG(pool)),
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract and ingest CCD archives from the raw directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawDir, _ := cmd.Flags().GetString("raw-dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if rawDir != "" {
				cfg.RawDir = rawDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			svc := buildServices(pool)
			pipeline := ingest.New(pool, ingest.Services{
				Provenance:    svc.provenance,
				Patients:      svc.patients,
				Encounters:    svc.encounters,
				Conditions:    svc.conditions,
				Procedures:    svc.procedures,
				Medications:   svc.medications,
				Labs:          svc.labs,
				Vitals:        svc.vitals,
				Immunizations: svc.immunizations,
				Allergies:     svc.allergies,
				Insurance:     svc.insurance,
				Notes:         svc.notes,
			}, ingest.Options{
				RawDir:        cfg.RawDir,
				ParsedDir:     cfg.ParsedDir,
				AttachmentDir: cfg.AttachmentDir,
			}, logger)

			summary, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Processed %d archive(s), %d document(s): %d inserted, %d updated, %d duplicates, %d skipped, %d failed.\n",
				summary.Archives, summary.Documents, summary.Inserted, summary.Updated,
				summary.Duplicates, summary.Skipped, summary.Failed)
			return nil
		},
	}
	cmd.Flags().String("raw-dir", "", "Override the raw archive directory")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	e.GET("/health", db.HealthHandler(pool))

	svc := buildServices(pool)
	handler := dashboard.NewHandler(dashboard.Services{
		Patients:      svc.patients,
		Encounters:    svc.encounters,
		Providers:     svc.providers,
		Conditions:    svc.conditions,
		Procedures:    svc.procedures,
		Medications:   svc.medications,
		Labs:          svc.labs,
		Vitals:        svc.vitals,
		Immunizations: svc.immunizations,
		Allergies:     svc.allergies,
		Insurance:     svc.insurance,
		Notes:         svc.notes,
	})
	handler.RegisterRoutes(e.Group("/api"))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("dashboard API listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped cleanly")
	return nil
}
