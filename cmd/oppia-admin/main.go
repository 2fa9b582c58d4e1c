// Package main provides the entry point for the oppia-admin server.
//
// @title                       Oppia Admin API
// @version                     1.0
// @description                 Super-admin endpoints for demo data, roles, users, platform parameters and maintenance jobs.
// @BasePath                    /
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
// @description                 Static API key for automation.
// @securityDefinitions.apikey  SessionAuth
// @in                          header
// @name                        Authorization
// @description                 Session token as "Bearer <token>". Browser clients send the session cookie instead.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/alice21mota/oppia/internal/server"
	"github.com/alice21mota/oppia/pkg/auth"
	"github.com/alice21mota/oppia/pkg/config"
	"github.com/alice21mota/oppia/pkg/database/migrate"
)

func main() {
	// Load environment variables from .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "oppia-admin",
		Usage:   "super-admin API server",
		Version: server.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serveAction,
			},
			{
				Name:  "migrate",
				Usage: "manage database migrations",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateUpAction},
					{Name: "down", Usage: "roll back every migration", Action: migrateDownAction},
					{Name: "version", Usage: "print the current migration version", Action: migrateVersionAction},
					{Name: "steps", Usage: "apply n migrations, negative to roll back", ArgsUsage: "<n>", Action: migrateStepsAction},
				},
			},
			{
				Name:  "signup",
				Usage: "register a user account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
				},
				Action: signupAction,
			},
			{
				Name:  "token",
				Usage: "issue a session token for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
				},
				Action: tokenAction,
			},
			{
				Name:      "hash-key",
				Usage:     "print the bcrypt hash of an API key for auth.api_keys",
				ArgsUsage: "<key>",
				Action:    hashKeyAction,
			},
			{
				Name:  "params",
				Usage: "inspect platform parameters",
				Subcommands: []*cli.Command{
					{Name: "export", Usage: "print every parameter as YAML", Action: paramsExportAction},
				},
			},
		},
		DefaultCommand: "serve",
	}
}

// loadConfig reads the configuration file, or the environment alone when no
// file is given, and validates it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadConfig(path)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newServer loads the configuration and builds the server from it.
func newServer(c *cli.Context) (*server.Server, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	srv, err := server.New(c.Context, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	return srv, nil
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(c)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	return srv.Run(ctx)
}

func signupAction(c *cli.Context) error {
	srv, err := newServer(c)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	u, err := srv.Users().Signup(c.Context, c.String("email"), c.String("username"))
	if err != nil {
		return fmt.Errorf("signing up: %w", err)
	}
	_, _ = fmt.Fprintf(c.App.Writer, "created user %s (%s)\n", u.Username, u.ID)
	return nil
}

func tokenAction(c *cli.Context) error {
	srv, err := newServer(c)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	u, err := srv.Users().GetByUsername(c.Context, c.String("username"))
	if err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	token, err := srv.Sessions().Issue(u.ID, u.Email)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, _ = fmt.Fprintln(c.App.Writer, token)
	return nil
}

func hashKeyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("hash-key takes exactly one argument")
	}
	hash, err := auth.HashKey(c.Args().First())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.App.Writer, hash)
	return nil
}

func paramsExportAction(c *cli.Context) error {
	srv, err := newServer(c)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	data, err := srv.Params().ExportYAML(c.Context)
	if err != nil {
		return fmt.Errorf("exporting parameters: %w", err)
	}
	_, err = c.App.Writer.Write(data)
	return err
}

// withDB runs fn against the configured database.
func withDB(c *cli.Context, fn func(db *sql.DB) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required for migrations")
	}
	slog.SetDefault(newLogger(cfg.Log))

	db, err := server.OpenDB(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func migrateUpAction(c *cli.Context) error {
	return withDB(c, migrate.Run)
}

func migrateDownAction(c *cli.Context) error {
	return withDB(c, migrate.Down)
}

func migrateVersionAction(c *cli.Context) error {
	return withDB(c, func(db *sql.DB) error {
		version, dirty, err := migrate.Version(db)
		if err != nil {
			return fmt.Errorf("reading migration version: %w", err)
		}
		_, _ = fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", version, dirty)
		return nil
	})
}

func migrateStepsAction(c *cli.Context) error {
	n, err := strconv.Atoi(c.Args().First())
	if err != nil || n == 0 {
		return fmt.Errorf("invalid step count %q", c.Args().First())
	}
	return withDB(c, func(db *sql.DB) error {
		return migrate.Steps(db, n)
	})
}
