// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/termbridge/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "termbridge",
		Usage: "Map and search concepts across NAMASTE, ICD-11, SNOMED CT and LOINC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file (YAML, JSON or TOML)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the vector index and mapping store",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "refresh",
				Usage:  "Fetch concept feeds and rebuild the index and mappings",
				Action: refreshCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "seed",
						Usage: "Include the built-in demonstration concepts",
					},
					&cli.StringFlag{
						Name:  "feed-dir",
						Usage: "Directory of CodeSystem and records files",
					},
					&cli.BoolFlag{
						Name:  "snowstorm",
						Usage: "Fetch SNOMED CT concepts from a Snowstorm server",
					},
				},
			},
			{
				Name:      "map",
				Usage:     "Find mappings for one concept",
				ArgsUsage: "CODE",
				Action:    mapCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source system",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "target",
						Aliases: []string{"t"},
						Usage:   "Target system (repeatable, default every other system)",
					},
				},
			},
			{
				Name:      "batch-map",
				Usage:     "Map several codes from one system to another",
				ArgsUsage: "CODE...",
				Action:    batchMapCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source system",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target system",
						Required: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search concepts by free text",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of hits",
						Value:   10,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print statistics of the published mapping generation",
				Action: statsCommand,
			},
			{
				Name:   "feedback",
				Usage:  "Record reviewer feedback on a mapping",
				Action: feedbackCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mapping-id",
						Usage: "Mapping identity SRC:code->TGT:code",
					},
					&cli.StringFlag{
						Name:  "source-code",
						Usage: "Source concept code",
					},
					&cli.StringFlag{
						Name:  "target-code",
						Usage: "Target concept code",
					},
					&cli.StringFlag{
						Name:     "type",
						Usage:    "Feedback type (CORRECT, INCORRECT, PARTIAL)",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "adjustment",
						Usage: "Confidence adjustment in [-1, 1]",
					},
					&cli.StringFlag{
						Name:  "comments",
						Usage: "Free-text comments",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "Reviewer id",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Refresh whenever files in the feed directory change",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "feed-dir",
						Usage: "Directory of CodeSystem and records files",
					},
					&cli.BoolFlag{
						Name:  "seed",
						Usage: "Include the built-in demonstration concepts",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a refresh",
						Value: 2 * time.Second,
					},
				},
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and installs
// the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]interface{})
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(levelStr string) error {
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}
