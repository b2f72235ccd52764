package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/robalyx/roprofile/internal/rest"
	"github.com/robalyx/roprofile/internal/rest/convert"
	"github.com/robalyx/roprofile/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// ServeLogDir specifies where server log files are stored.
	ServeLogDir = "logs/server_logs"

	// LookupLogDir specifies where one-off lookup log files are stored.
	LookupLogDir = "logs/lookup_logs"
)

// Version is set at build time.
var Version = "dev"

// ErrUsernameRequired is returned when lookup is run without a username.
var ErrUsernameRequired = errors.New("USERNAME argument required")

// errLookupFailed signals a failed lookup whose error was already printed.
var errLookupFailed = errors.New("lookup failed")

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, errLookupFailed) {
			log.Printf("Error: %v", err)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "roprofile",
		Usage:   "Roblox profile aggregation service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.toml (searched in the usual directories when empty)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the REST API server",
				Action: serve,
			},
			{
				Name:      "lookup",
				Usage:     "Look up a single profile and print it as JSON",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Indent the JSON output",
					},
				},
				Action: lookup,
			},
		},
	}

	return app.Run(ctx, os.Args)
}

// serve runs the REST server until an interrupt signal arrives.
func serve(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, c.String("config"), ServeLogDir, "server", Version)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.WithoutCancel(ctx))

	server := rest.NewServer(app.Service, &app.Config.Server, Version, app.Logger)
	if err := server.Run(ctx); err != nil {
		app.Logger.Error("REST server stopped with error", zap.Error(err))
		return err
	}

	return nil
}

// lookup aggregates one profile and prints the response envelope.
func lookup(ctx context.Context, c *cli.Command) error {
	username := c.Args().First()
	if username == "" {
		return ErrUsernameRequired
	}

	app, err := setup.InitializeApp(ctx, c.String("config"), LookupLogDir, "lookup", Version)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.WithoutCancel(ctx))

	profile, cached, lookupErr := app.Service.GetProfile(ctx, username)

	var output any = convert.Profile(profile, cached)
	if lookupErr != nil {
		_, body, _ := convert.Error(lookupErr)
		output = body
	}

	var data []byte
	if c.Bool("pretty") {
		data, err = sonic.ConfigStd.MarshalIndent(output, "", "  ")
	} else {
		data, err = sonic.Marshal(output)
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	fmt.Println(string(data))

	if lookupErr != nil {
		app.Logger.Info("Lookup failed", zap.String("username", username), zap.Error(lookupErr))
		return errLookupFailed
	}
	return nil
}
