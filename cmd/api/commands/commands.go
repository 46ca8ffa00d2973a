package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/infrastructure/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the API server. Without DATABASE_URL all data is kept in memory and lost on exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), runMigrations)
		},
	}
	cmd.Flags().BoolVar(&runMigrations, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version). Requires DATABASE_URL.",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				changed, err := m.Up()
				if err != nil {
					return err
				}
				printMigrationResult(cmd, "up", changed)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				changed, err := m.Down()
				if err != nil {
					return err
				}
				printMigrationResult(cmd, "down", changed)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", dirty)
				return nil
			})
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users directly in the configured database",
	}

	var email, password, name string
	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			return createUser(cmd, email, password, name)
		},
	}
	createUserCmd.Flags().StringVar(&email, "email", "", "User email (required)")
	createUserCmd.Flags().StringVar(&password, "password", "", "User password, at least 6 characters (required)")
	createUserCmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the email local part)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// Version is overridden at build time with -ldflags
var Version = "dev"

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tracker version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tracker %s\n", Version)
		},
	}
}

func runServer(ctx context.Context, runMigrations bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.JWT.RequireSecret(); err != nil {
		return err
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	if runMigrations {
		if cfg.Database.InMemory() {
			appLogger.Warnw("Ignoring --migrate, no DATABASE_URL configured")
		} else if err := migrateUp(cfg, appLogger); err != nil {
			return err
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := server.NewBackend(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	defer backend.Close()

	srv, err := server.New(cfg, backend, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	appLogger.Infow("Starting Progress Tracker API",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"storage", backend.Storage,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.GetAddr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		appLogger.Infow("Received signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrateUp(cfg *config.Config, log *logger.Logger) error {
	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := db.NewMigrator()
	if err != nil {
		return err
	}
	changed, err := m.Up()
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Infow("Migrations applied", "changed", changed)
	return nil
}

func withMigrator(fn func(m *database.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.InMemory() {
		return errors.New("DATABASE_URL must be set to run migrations")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := db.NewMigrator()
	if err != nil {
		return err
	}
	return fn(m)
}

func printMigrationResult(cmd *cobra.Command, direction string, changed bool) {
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
}

func createUser(cmd *cobra.Command, email, password, name string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Database.InMemory() {
		return errors.New("DATABASE_URL must be set; in-memory users do not outlive this command")
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := server.NewBackend(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer backend.Close()

	user, err := services.NewUserService(backend.Users, appLogger).Create(ctx, email, password, name)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "User created successfully:")
	fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", user.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Email: %s\n", user.Email)
	fmt.Fprintf(cmd.OutOrStdout(), "  Name: %s\n", user.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  Role: %s\n", user.Role)
	return nil
}
