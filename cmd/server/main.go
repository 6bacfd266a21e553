package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"

	"access-portal/internal/api"
	"access-portal/internal/database"
	"access-portal/internal/database/repositories"
	"access-portal/pkg/config"
	"access-portal/pkg/logger"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "portal-server",
		Usage:   "Access portal API server",
		Version: fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"PORTAL_CONFIG"},
				Value:   "configs/server.yaml",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create missing tables and seed the Guests group",
				Action: migrate,
			},
			{
				Name:  "people",
				Usage: "Manage people",
				Subcommands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add a person who can log in",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "password", EnvVars: []string{"PORTAL_PASSWORD"}, Required: true},
							&cli.StringFlag{Name: "first-name"},
							&cli.StringFlag{Name: "last-name"},
							&cli.StringSliceFlag{Name: "group", Aliases: []string{"g"}, Usage: "Group to join, repeatable"},
						},
						Action: addPerson,
					},
				},
			},
			{
				Name:  "groups",
				Usage: "Manage groups and capabilities",
				Subcommands: []*cli.Command{
					{
						Name:      "grant",
						Usage:     "Grant capabilities to a group, creating both when missing",
						ArgsUsage: "GROUP CAPABILITY...",
						Action:    grantCapabilities,
					},
					{
						Name:      "add-member",
						Usage:     "Add a person to a group",
						ArgsUsage: "GROUP EMAIL",
						Action:    addMember,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	return cfg, l, nil
}

// openDatabase connects and, when requested, migrates the schema.
func openDatabase(cfg *config.Config, l *logger.Logger, migrate bool) (*sql.DB, error) {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.RunMigrations(db, cfg.Database.Type); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		l.Info("Database migrations applied", "type", cfg.Database.Type)
	}
	return db, nil
}

func serve(c *cli.Context) error {
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	l.Info("Configuration loaded", "config", fmt.Sprintf("%+v", *cfg.SanitizeForLogging()))

	db, err := openDatabase(cfg, l, cfg.Database.Migrate)
	if err != nil {
		return err
	}
	defer db.Close()

	services, err := api.NewServices(db, l, cfg)
	if err != nil {
		return err
	}
	services.Start()
	defer services.Stop()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	api.SetupRoutes(router, services)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting portal server on %s", srv.Addr)
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		l.Info("Shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	l.Info("Server stopped")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, l, true)
	if err != nil {
		return err
	}
	return db.Close()
}

func addPerson(c *cli.Context) error {
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, l, cfg.Database.Migrate)
	if err != nil {
		return err
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(c.String("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	person := &database.Person{
		Email:        c.String("email"),
		PasswordHash: string(hash),
		FirstName:    c.String("first-name"),
		LastName:     c.String("last-name"),
	}
	if err := repositories.NewPersonRepository(db).Create(c.Context, person); err != nil {
		return err
	}

	groups := repositories.NewGroupRepository(db)
	for _, name := range c.StringSlice("group") {
		id, err := groups.Ensure(c.Context, name)
		if err != nil {
			return err
		}
		if err := groups.AddMember(c.Context, id, person.ID); err != nil {
			return err
		}
	}

	l.Info("Person added", "id", person.ID, "email", person.Email)
	return nil
}

func grantCapabilities(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: groups grant GROUP CAPABILITY...", 2)
	}
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, l, cfg.Database.Migrate)
	if err != nil {
		return err
	}
	defer db.Close()

	groups := repositories.NewGroupRepository(db)
	name := c.Args().First()
	id, err := groups.Ensure(c.Context, name)
	if err != nil {
		return err
	}
	for _, capability := range c.Args().Tail() {
		if err := groups.Grant(c.Context, id, capability); err != nil {
			return err
		}
		l.Info("Capability granted", "group", name, "capability", capability)
	}
	return nil
}

func addMember(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: groups add-member GROUP EMAIL", 2)
	}
	cfg, l, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg, l, cfg.Database.Migrate)
	if err != nil {
		return err
	}
	defer db.Close()

	person, err := repositories.NewPersonRepository(db).GetByEmail(c.Context, c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", c.Args().Get(1), err)
	}

	groups := repositories.NewGroupRepository(db)
	id, err := groups.Ensure(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if err := groups.AddMember(c.Context, id, person.ID); err != nil {
		return err
	}

	l.Info("Member added", "group", c.Args().First(), "email", person.Email)
	return nil
}
