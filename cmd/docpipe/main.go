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
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/docpipe/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	ownerFlag := &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"u"},
		Usage:    "Owner (user) id the documents belong to",
		Required: true,
	}

	return &cli.App{
		Name:  "docpipe",
		Usage: "Document ingestion and retrieval pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file loaded before the config",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return loadEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the worker group until interrupted",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of workers (defaults to worker.count from the config)",
					},
					&cli.StringFlag{
						Name:  "watch",
						Usage: "Upload files created or modified in this directory",
					},
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"u"},
						Usage:   "Owner for watched uploads; also prints that owner's notifications",
					},
					&cli.BoolFlag{
						Name:  "reaper",
						Usage: "Fail jobs stuck in processing (overrides reaper.enabled)",
					},
				},
			},
			{
				Name:      "enqueue",
				Usage:     "Upload files and enqueue them for processing",
				ArgsUsage: "FILE...",
				Action:    enqueueCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.StringFlag{
						Name:  "mime",
						Usage: "Mime type (guessed from the extension when empty)",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Process the files in this process and wait for the outcome",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show a job, or a document with --doc",
				ArgsUsage: "ID",
				Action:    statusCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "doc",
						Usage: "Treat ID as a document id",
					},
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"u"},
						Usage:   "Owner of the document (required with --doc)",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List an owner's documents",
				Action: listCommand,
				Flags:  []cli.Flag{ownerFlag},
			},
			{
				Name:      "search",
				Usage:     "Retrieve context and references for a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.BoolFlag{
						Name:  "context",
						Usage: "Also print the document context",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a document with its vectors",
				ArgsUsage: "DOCUMENT_ID",
				Action:    deleteCommand,
				Flags:     []cli.Flag{ownerFlag},
			},
			{
				Name:      "reprocess",
				Usage:     "Enqueue an existing document again",
				ArgsUsage: "DOCUMENT_ID",
				Action:    reprocessCommand,
				Flags:     []cli.Flag{ownerFlag},
			},
			{
				Name:   "init-config",
				Usage:  "Write the default configuration to --config",
				Action: initConfigCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
		},
	}
}

// loadEnv loads a dotenv file if it exists.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
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
