package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"blogd/auth"
	"blogd/crud"
	"blogd/http"
)

var (
	configPath string
	prod       bool
)

// rootCmd serves the app when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "blogd [command] [flags]",
	Short:         "blogd: a small blog backend with token auth and likes",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and serve the http api",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(config Config, logger zerolog.Logger, b *backend) error {
			if err := b.migrate(); err != nil {
				return err
			}
			logger.Info().Str("driver", config.Database.Driver).Msg("database migrated")
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all tables and rebuild them (development only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if prod {
			return errors.New("reset refuses to run in production")
		}
		return withBackend(cmd.Context(), func(config Config, logger zerolog.Logger, b *backend) error {
			if config.IsProd() {
				return errors.New("reset refuses to run in production")
			}
			if err := b.reset(); err != nil {
				return err
			}
			logger.Warn().Str("driver", config.Database.Driver).Msg("database reset")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".config.json", "path of the json config file")
	rootCmd.PersistentFlags().BoolVar(&prod, "prod", false, "Provide this flag in production to ensure that a config file is provided and valid before the application starts.")
	rootCmd.AddCommand(serveCmd, migrateCmd, resetCmd)
}

// main is the app's entry point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// runServe opens the configured store, migrates it, wires the services and
// serves until the process is interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	return withBackend(cmd.Context(), func(config Config, logger zerolog.Logger, b *backend) error {
		if err := b.migrate(); err != nil {
			return err
		}

		tokens, err := auth.NewJWT(config.TokenKey, config.TokenTTL.Duration)
		if err != nil {
			return err
		}

		// Start the crud services.
		services, err := crud.NewServices(
			b.Store,
			crud.WithUser(auth.NewBcrypt(config.Pepper, config.BcryptCost), tokens),
			crud.WithPost(),
			crud.WithLike(),
		)
		if err != nil {
			return err
		}

		// Set up a webserver and serve the app.
		server := http.NewServer(logger, auth.NewGuard(tokens), services)
		return server.Run(cmd.Context(), ":"+strconv.Itoa(config.Port))
	})
}

// withBackend loads the config, builds the logger and opens the configured
// store for the duration of fn.
func withBackend(ctx context.Context, fn func(Config, zerolog.Logger, *backend) error) error {
	// Load configuration from the config file if present, otherwise use the default dev setup.
	// In production the file is required and validated.
	config, err := LoadConfig(configPath, prod)
	if err != nil {
		return err
	}
	logger, err := newLogger(config)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, config.Database, config.IsProd())
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}()
	return fn(config, logger, b)
}

// newLogger logs json in production and human readable lines otherwise.
func newLogger(config Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if config.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			return zerolog.Logger{}, errors.Wrap(err, "invalid log_level")
		}
		level = parsed
	}
	if config.IsProd() {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger(), nil
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
