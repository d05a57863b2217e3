package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/config"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/httpapi"
	"github.com/20XMAS24/RAGEMP-NewServer/internal/store/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagUsername   = "username"
	flagAdminLevel = "level"
	flagSteps      = "steps"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gameserver: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	settings := config.New()
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "gameserver",
		Short:         "Game economy server with a persistent bank ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, settings, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(cfg),
		newMigrateCommand(cfg),
		newSeedJobsCommand(cfg),
		newPromoteCommand(cfg),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command, settings *viper.Viper, cfg *config.Config) error {
	if err := config.BindFlags(settings, cmd.Flags()); err != nil {
		return err
	}
	loaded, err := config.Load(settings)
	if err != nil {
		return err
	}
	*cfg = loaded
	return cfg.ValidateStorage()
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app, err := openApplication(cfg, logger, registry)
	if err != nil {
		return err
	}
	defer app.close()

	if _, err := app.services.Jobs.SeedDefaultJobs(ctx); err != nil {
		return fmt.Errorf("seed jobs: %w", err)
	}
	return httpapi.Run(ctx, httpapi.Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, app.services, logger, registry)
}

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrations.Up(cfg.DatabaseURL); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := cmd.Flags().GetInt(flagSteps)
			if err != nil {
				return err
			}
			return migrations.Down(cfg.DatabaseURL, steps)
		},
	}
	down.Flags().Int(flagSteps, 1, "Number of migrations to roll back")
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, dirty, err := migrations.Version(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			cmd.Printf("version %d dirty=%t\n", current, dirty)
			return nil
		},
	}
	cmd.AddCommand(up, down, version)
	return cmd
}

func newSeedJobsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-jobs",
		Short: "Create the default job catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cfg, func(app *application) error {
				created, err := app.services.Jobs.SeedDefaultJobs(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("created %d jobs\n", created)
				return nil
			})
		},
	}
}

func newPromoteCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Set a player's admin level",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := cmd.Flags().GetString(flagUsername)
			if err != nil {
				return err
			}
			level, err := cmd.Flags().GetInt(flagAdminLevel)
			if err != nil {
				return err
			}
			return withApplication(cfg, func(app *application) error {
				player, err := app.services.Players.PlayerByUsername(cmd.Context(), username)
				if err != nil {
					return err
				}
				player, err = app.services.Players.SetAdminLevel(cmd.Context(), player.ID, level)
				if err != nil {
					return err
				}
				cmd.Printf("player %s admin level %d\n", player.Username, player.AdminLevel)
				return nil
			})
		},
	}
	cmd.Flags().String(flagUsername, "", "Username of the player")
	cmd.Flags().Int(flagAdminLevel, 1, "Admin level; 0 revokes")
	_ = cmd.MarkFlagRequired(flagUsername)
	return cmd
}

// withApplication runs fn against a fully wired application that serves no
// HTTP traffic. Tokens are not issued here, so a signing key is optional.
func withApplication(cfg *config.Config, fn func(app *application) error) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	offline := *cfg
	if offline.JWTSigningKey == "" {
		offline.JWTSigningKey = offlineSigningKey
	}
	app, err := openApplication(&offline, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer app.close()
	return fn(app)
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = parsed
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return logger, nil
}
