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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/loom/pkg/config"
	"github.com/kadirpekel/loom/pkg/observability"
	"github.com/kadirpekel/loom/pkg/orchestrator"
	"github.com/kadirpekel/loom/pkg/pipeline"
	"github.com/kadirpekel/loom/pkg/profile"
	"github.com/kadirpekel/loom/pkg/profile/sqlstore"
	"github.com/kadirpekel/loom/pkg/tool"
	"github.com/kadirpekel/loom/pkg/tool/filetool"
	"github.com/kadirpekel/loom/pkg/tool/kbtool"
	"github.com/kadirpekel/loom/pkg/tool/rubrictool"
)

const shutdownTimeout = 15 * time.Second

// Legacy processor names still found in version-1 assistant records.
var legacyAliases = map[string]string{
	"simple_rag":       kbtool.ToolName,
	"rubric_processor": rubrictool.ToolName,
}

// Runtime bundles the wired components behind a command.
type Runtime struct {
	Pipeline *pipeline.Pipeline
	Registry *tool.Registry
	KB       *kbtool.KBTool

	closers []func() error
}

// Close releases the runtime's resources in reverse construction order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("failed to close component", "error", err)
		}
	}
}

// buildRuntime wires the registry, store, emitter and pipeline from the
// configuration.
func buildRuntime(cfg *config.Config, status observability.StatusSink) (*Runtime, error) {
	rt := &Runtime{Registry: tool.NewRegistry()}

	kb, err := kbtool.New(cfg.Tools.KnowledgeBase, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base tool: %w", err)
	}
	rt.KB = kb
	if err := rt.Registry.Register(kb); err != nil {
		return nil, err
	}

	if cfg.Tools.RubricDB != "" {
		rubric, err := rubrictool.Open(cfg.Tools.RubricDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open rubric store: %w", err)
		}
		rt.closers = append(rt.closers, rubric.Close)
		if err := rt.Registry.Register(rubric); err != nil {
			return nil, err
		}
	}

	if cfg.Tools.FileRoot != "" {
		ft, err := filetool.New(cfg.Tools.FileRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to create file tool: %w", err)
		}
		if err := rt.Registry.Register(ft); err != nil {
			return nil, err
		}
	}

	for alias, target := range legacyAliases {
		if _, err := rt.Registry.Resolve(target); err != nil {
			continue
		}
		if err := rt.Registry.RegisterLegacyAlias(alias, target); err != nil {
			return nil, err
		}
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, closer.Close)
	}

	metrics, err := buildMetrics()
	if err != nil {
		return nil, err
	}

	emitter := observability.NewEmitter(observability.Config{
		Logger:  slog.Default(),
		Status:  status,
		Metrics: metrics,
	})

	orch := orchestrator.New(rt.Registry, emitter, cfg.Orchestrator)

	resolver := func(name string) (string, bool) {
		t, err := rt.Registry.ResolveLegacy(name)
		if err != nil {
			return "", false
		}
		return t.Placeholder(), true
	}
	migrator := profile.NewMigrator(store, slog.Default(), resolver)

	rt.Pipeline = pipeline.New(store, migrator, orch, pipeline.EchoModel{}, slog.Default())
	return rt, nil
}

func buildStore(cfg *config.Config) (profile.Store, error) {
	var seed *profile.MemoryStore
	if cfg.Store.AssistantsFile != "" {
		loaded, err := profile.LoadFile(cfg.Store.AssistantsFile)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}

	switch cfg.Store.Type {
	case config.StoreTypeSQLite:
		store, err := sqlstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if seed != nil {
			ctx := context.Background()
			for id, p := range seed.All() {
				if err := store.Put(ctx, id, p); err != nil {
					store.Close()
					return nil, fmt.Errorf("failed to seed assistant %s: %w", id, err)
				}
			}
		}
		return store, nil
	default:
		if seed != nil {
			return seed, nil
		}
		return profile.NewMemoryStore(), nil
	}
}

// buildMetrics exposes tool execution metrics through the Prometheus
// registry served at /metrics.
func buildMetrics() (observability.Metrics, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return observability.NewOTelMetrics(provider.Meter("loom"))
}

// logStatusSink routes progress lines to the structured log. Used by the
// server, where no terminal is attached.
type logStatusSink struct{}

func (logStatusSink) WriteStatus(line string) {
	slog.Debug("status", "line", line)
}

// stderrStatusSink streams progress lines to the terminal during one-shot
// runs.
type stderrStatusSink struct{}

func (stderrStatusSink) WriteStatus(line string) {
	fmt.Fprintf(os.Stderr, "... %s\n", line)
}
