// aicli - A streaming chat client for OpenAI-compatible servers, with local
// tool calling.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/aicli/internal/cli"
	"github.com/jeranaias/aicli/internal/cloud"
	"github.com/jeranaias/aicli/internal/config"
	"github.com/jeranaias/aicli/internal/logging"
	"github.com/jeranaias/aicli/internal/storage"
	"github.com/jeranaias/aicli/internal/tools"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// flagValues holds the command-line overrides.
type flagValues struct {
	configPath    string
	baseURL       string
	model         string
	apiKey        string
	logLevel      string
	maxToolRounds int
	noMarkdown    bool
	noStats       bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		cli.DisplayError(os.Stderr, err)
		os.Exit(cli.ExitGeneralError)
	}
}

func newRootCommand() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "aicli",
		Short: "Chat with an OpenAI-compatible model that can use local tools",
		Long: `aicli streams answers from an OpenAI-compatible chat completion server.
The model may read and write files, list and search directories and run
shell commands on this machine; each call is shown as it runs.

Settings come from ~/.aicli/config.toml, .env files and AI_CLI_* or
OPENAI_* environment variables. Flags override all of them.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(fv.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, &fv)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fv.configPath, "config", "", "config file (default ~/.aicli/config.toml)")
	flags.StringVar(&fv.baseURL, "base_url", "", "server base URL")
	flags.StringVar(&fv.model, "model", "", "model name")
	flags.StringVar(&fv.apiKey, "api_key", "", "API key sent as a bearer token")
	flags.StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.IntVar(&fv.maxToolRounds, "max-tool-rounds", 0, "stop a turn after this many tool rounds (0 = unlimited)")
	flags.BoolVar(&fv.noMarkdown, "no-markdown", false, "do not re-render answers as markdown")
	flags.BoolVar(&fv.noStats, "no-stats", false, "do not print timing after answers")

	return cmd
}

// applyFlags copies the flags the user actually set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, fv *flagValues) {
	flags := cmd.Flags()
	if flags.Changed("base_url") {
		cfg.Endpoint.BaseURL = fv.baseURL
	}
	if flags.Changed("model") {
		cfg.Endpoint.Model = fv.model
	}
	if flags.Changed("api_key") {
		cfg.Endpoint.APIKey = fv.apiKey
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = fv.logLevel
	}
	if flags.Changed("max-tool-rounds") {
		cfg.Agent.MaxToolRounds = fv.maxToolRounds
	}
	if flags.Changed("no-markdown") {
		cfg.UI.RenderMarkdown = !fv.noMarkdown
	}
	if flags.Changed("no-stats") {
		cfg.UI.ShowStats = !fv.noStats
	}
}

// runChat wires the components and runs the interactive session.
func runChat(ctx context.Context, cfg *config.Config) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var console io.Writer
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil && level == slog.LevelDebug {
		console = os.Stderr
	}
	logger, logCloser, err := logging.New(cfg.Log, console)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("starting", "version", Version, "config", cfg.String())

	renderer := cli.NewRenderer(os.Stdout, cli.RenderOptions{
		ShowStats: cfg.UI.ShowStats,
		Markdown:  cfg.UI.RenderMarkdown,
	})

	registry := tools.NewRegistry(tools.Options{ExecTimeout: cfg.Tools.ExecTimeout.Duration})
	registry.Disable(cfg.Tools.Disabled...)
	executor := tools.NewExecutor(registry)
	executor.SetLogger(logger)
	executor.SetObserver(renderer)

	var audit cli.AuditReader
	if cfg.Audit.Enabled {
		store, err := storage.OpenAuditStore(cfg.Audit.Path)
		if err != nil {
			logger.Warn("audit store unavailable", "path", cfg.Audit.Path, "error", err)
			renderer.Warning(fmt.Sprintf("Audit store unavailable: %v", err))
		} else {
			defer store.Close()
			if pruned, err := store.Prune(ctx, cfg.Audit.MaxEntries); err != nil {
				logger.Warn("audit prune failed", "error", err)
			} else if pruned > 0 {
				logger.Info("pruned audit entries", "removed", pruned, "kept", cfg.Audit.MaxEntries)
			}
			executor.SetRecorder(store)
			audit = store
		}
	}

	client := cloud.NewClient(cfg.Endpoint.BaseURL, cfg.Endpoint.Model, cfg.Endpoint.APIKey,
		cloud.WithUserAgent("aicli/"+Version),
		cloud.WithConnectTimeout(cfg.Endpoint.ConnectTimeout.Duration),
		cloud.WithLogger(logger),
	)

	engine := tools.NewStepEngine(cli.StreamingChat(client, renderer), executor)
	engine.SetMaxRounds(cfg.Agent.MaxToolRounds)
	engine.SetRequestsPerSecond(cfg.Agent.RequestsPerSecond)
	engine.SetLogger(logger)

	editor := cli.NewLineEditor(cfg.UI.HistoryFile, cfg.UI.HistoryLimit)
	if err := editor.LoadHistory(); err != nil {
		logger.Warn("could not load input history", "error", err)
	}
	defer func() {
		if err := editor.Close(); err != nil {
			logger.Warn("could not save input history", "error", err)
		}
	}()

	renderer.Banner(Version, client.Endpoint(), client.Model(), registry.Names())

	session := cli.NewSession(cli.SessionOptions{
		Version:      Version,
		Endpoint:     client.Endpoint(),
		Model:        client.Model(),
		SystemPrompt: cfg.Agent.SystemPrompt,
		Engine:       engine,
		Executor:     executor,
		Input:        editor,
		Renderer:     renderer,
		Audit:        audit,
		Logger:       logger,
	})
	err = session.Run(ctx)
	logger.Info("session ended", "tools", executor.Stats().String())
	return err
}
