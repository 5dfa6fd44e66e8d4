// Copyright 2025 Kadir Pekel
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

// Command loom runs the tool orchestration service for conversational
// assistants.
//
// Usage:
//
//	loom serve --config loom.yaml
//	loom run --config loom.yaml --assistant grader "Grade this essay"
//	loom tools --config loom.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/loom/pkg/config"
	"github.com/kadirpekel/loom/pkg/logger"
	"github.com/kadirpekel/loom/pkg/pipeline"
	"github.com/kadirpekel/loom/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Run     RunCmd     `cmd:"" help:"Run a single assistant turn."`
	Tools   ToolsCmd   `cmd:"" help:"List registered tools."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("loom version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli, config.LoaderOptions{Path: cli.Config, Watch: c.Watch})
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := buildRuntime(cfg, logStatusSink{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.KB.IndexDirectory(ctx); err != nil {
		return fmt.Errorf("failed to index knowledge base: %w", err)
	}
	go func() {
		if err := rt.KB.Watch(ctx); err != nil && ctx.Err() == nil {
			slog.Error("knowledge base watch failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, rt.Pipeline, rt.Registry, slog.Default())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// RunCmd executes one assistant turn from the command line.
type RunCmd struct {
	Assistant string   `short:"a" required:"" help:"Assistant ID."`
	Query     []string `arg:"" help:"The user's message."`
	JSON      bool     `help:"Print the full response as JSON."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cli, config.LoaderOptions{Path: cli.Config})
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, stderrStatusSink{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.KB.IndexDirectory(ctx); err != nil {
		return fmt.Errorf("failed to index knowledge base: %w", err)
	}

	resp, err := rt.Pipeline.Run(ctx, pipeline.Request{
		AssistantID: c.Assistant,
		Query:       strings.Join(c.Query, " "),
	})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Reply)
	if resp.Trace != nil {
		fmt.Fprintln(os.Stderr, "---")
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.Trace); err != nil {
			return err
		}
	}
	return nil
}

// ToolsCmd lists the registered tools.
type ToolsCmd struct {
	JSON bool `help:"Print the catalog as JSON."`
}

func (c *ToolsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli, config.LoaderOptions{Path: cli.Config})
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, logStatusSink{})
	if err != nil {
		return err
	}
	defer rt.Close()

	defs := rt.Registry.Definitions()
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	for _, d := range defs {
		fmt.Printf("%-14s {%s}  %s\n", d.Name, d.Placeholder, d.Description)
	}
	return nil
}

// loadConfig loads the configuration and initializes logging from the
// combined CLI and file settings.
func loadConfig(cli *CLI, opts config.LoaderOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(opts).Load()
	if err != nil {
		return nil, err
	}

	levelStr := cfg.Logger.Level
	if cli.LogLevel != "" && cli.LogLevel != "info" {
		levelStr = cli.LogLevel
	}
	format := cfg.Logger.Format
	if cli.LogFormat != "" && cli.LogFormat != "simple" {
		format = cli.LogFormat
	}
	logFile := cfg.Logger.File
	if cli.LogFile != "" {
		logFile = cli.LogFile
	}

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	if logFile != "" {
		file, _, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	}
	logger.Init(level, output, format)

	return cfg, nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("loom"),
		kong.Description("Tool orchestration for conversational assistants."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
