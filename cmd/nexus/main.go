// The nexus command runs the central online services for the game: login,
// config, matching, serverdb, and transaction, multiplexed over a single
// listener, plus a handful of account management tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/nexus-vr/nexus/internal"
	"github.com/nexus-vr/nexus/internal/core"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Printf("nexus error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:  "nexus",
		Usage: "central online services for the game",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./",
				Usage:   "path to the directory containing the server config file",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			accountCommand(),
		},
		// Running with no subcommand starts the server.
		Action: serve,
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the server",
		Action: serve,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "override the configured listener port"},
			&cli.StringFlag{Name: "apikey", Usage: "override the serverdb API key"},
			&cli.StringFlag{Name: "outputconfig", Usage: "write the generated client service config to this path"},
			&cli.BoolFlag{Name: "forcematching", Usage: "place players into any available session before failing a request"},
			&cli.BoolFlag{Name: "lowpingmatching", Usage: "prefer low ping over high population when matching"},
			&cli.BoolFlag{Name: "noservervalidation", Usage: "skip the raw ping probe when game servers register"},
			&cli.IntFlag{Name: "servervalidationtimeout", Usage: "game server probe timeout in milliseconds"},
			&cli.IntFlag{Name: "statsinterval", Usage: "seconds between peer stats reports, 0 disables them"},
		},
	}
}

func serve(c *cli.Context) error {
	configPath := c.String("config")
	config := core.LoadConfig(configPath)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("error changing to config directory: %w", err)
	}
	applyOverrides(c, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-C shuts the services down gracefully; a second signal hard exits.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("waiting to shut down gracefully...")
		cancel()
		<-sig
		fmt.Println("hard exiting (killed)")
		os.Exit(1)
	}()

	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("shut down")
	return nil
}

func applyOverrides(c *cli.Context, config *core.Config) {
	if c.IsSet("port") {
		config.Port = c.Int("port")
	}
	if c.IsSet("apikey") {
		config.ServerDB.APIKey = c.String("apikey")
	}
	if c.IsSet("outputconfig") {
		config.ServiceConfigPath = c.String("outputconfig")
	}
	if c.IsSet("forcematching") {
		config.Matching.ForceAnySession = c.Bool("forcematching")
	}
	if c.IsSet("lowpingmatching") {
		config.Matching.LowPingPreference = c.Bool("lowpingmatching")
	}
	if c.IsSet("noservervalidation") {
		config.ServerDB.ValidateEndpoints = !c.Bool("noservervalidation")
	}
	if c.IsSet("servervalidationtimeout") {
		config.ServerDB.ValidationTimeout = c.Int("servervalidationtimeout")
	}
	if c.IsSet("statsinterval") {
		config.StatsInterval = c.Int("statsinterval")
	}
}
