package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/lblanes25/smartlookup/internal/config"
	"github.com/lblanes25/smartlookup/internal/engine"
	"github.com/lblanes25/smartlookup/internal/loader"
	"github.com/lblanes25/smartlookup/internal/registry"
	"github.com/lblanes25/smartlookup/internal/types"
	"github.com/lblanes25/smartlookup/internal/watch"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:                   "smartlookup",
		Usage:                  "Column-name lookups across auxiliary CSV/TSV files",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".smartlookup.toml",
			},
			&cli.StringSliceFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Data file to register (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "lookup",
				Usage:     "Resolve one value against the registered files",
				ArgsUsage: "VALUE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Search column"},
					&cli.StringFlag{Name: "return", Aliases: []string{"r"}, Usage: "Return column", Required: true},
					&cli.StringFlag{Name: "source", Usage: "Source hint (alias or filename fragment)"},
				},
				Action: runLookup,
			},
			{
				Name:      "validate",
				Usage:     "Validate the LOOKUP calls in a formula",
				ArgsUsage: "FORMULA",
				Action:    runValidate,
			},
			{
				Name:   "stats",
				Usage:  "Register the data files and print engine statistics",
				Action: runStats,
			},
			{
				Name:   "watch",
				Usage:  "Keep registered files fresh as they change on disk",
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, builds the engine and registers every --data file.
func setup(c *cli.Context) (*engine.Engine, *config.Config, zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, log, err
	}

	eng := engine.New(cfg, loader.NewCSVLoader(log), log)
	for _, path := range c.StringSlice("data") {
		if err := eng.AddFile(path, registry.AddOptions{}); err != nil {
			return nil, nil, log, fmt.Errorf("registering %s: %w", path, err)
		}
	}
	return eng, cfg, log, nil
}

func runLookup(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("lookup needs exactly one VALUE argument")
	}
	eng, _, _, err := setup(c)
	if err != nil {
		return err
	}

	value := types.ParseValue(c.Args().First())
	result := eng.SmartLookup(value, c.String("search"), c.String("return"), c.String("source"))
	if result.IsNull() {
		fmt.Println("not found")
		return nil
	}
	fmt.Println(result.String())
	return nil
}

func runValidate(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("validate needs exactly one FORMULA argument")
	}
	eng, _, _, err := setup(c)
	if err != nil {
		return err
	}

	result := eng.ValidateLookupFormula(c.Args().First())
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if result.HasErrors {
		return cli.Exit("", 2)
	}
	return nil
}

func runStats(c *cli.Context) error {
	eng, _, _, err := setup(c)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(eng.Statistics(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runWatch(c *cli.Context) error {
	eng, cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	paths := c.StringSlice("data")
	if len(paths) == 0 {
		return errors.New("watch needs at least one --data file")
	}

	// Re-registration goes through the engine, whose mutex serializes it
	// against any other caller.
	w, err := watch.New(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, func(path string) {
		if err := eng.AddFile(path, registry.AddOptions{}); err != nil {
			log.Warn().Str("path", path).Err(err).Msg("reload failed")
			return
		}
		log.Info().Str("path", path).Msg("reloaded after change")
	}, log)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, path := range paths {
		if err := w.Watch(path); err != nil {
			return err
		}
	}
	log.Info().Int("files", len(paths)).Msg("watching for changes")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
