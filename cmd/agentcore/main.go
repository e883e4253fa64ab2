// Command agentcore runs a single agent turn against a configured provider
// roster: build the registry (spec.md §4.10), wrap the primary and its
// failover-eligible fallbacks in a chain (spec.md §4.7), optionally load MCP
// tools (spec.md §12 supplemented scope) as external tools, then run one
// turn of the agent loop against stdin.
//
// This is a minimal wiring example, not a product CLI — the CLI/TUI surface
// itself is an explicit Non-goal (spec.md §1), so there is no flag/command
// framework here, just enough glue to exercise the runtime end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/failover"
	"github.com/haasonsaas/agentcore/internal/mcp"
	"github.com/haasonsaas/agentcore/internal/providers"
	"github.com/haasonsaas/agentcore/internal/registry"
	"github.com/haasonsaas/agentcore/pkg/models"
)

func main() {
	configPath := flag.String("config", "agentcore.yaml", "registry config path")
	mcpConfigPath := flag.String("mcp-config", "", "optional MCP server config path (JSON)")
	system := flag.String("system", "", "optional system prompt")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if err := run(context.Background(), *configPath, *mcpConfigPath, *system, logger); err != nil {
		logger.Error("agentcore: run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, mcpConfigPath, system string, logger *slog.Logger) error {
	cfg, err := registry.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	reg, err := registry.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}

	primary, ok := reg.FirstWithTools()
	if !ok {
		return fmt.Errorf("no tool-capable provider configured")
	}

	chainProviders := append([]providers.Provider{primary}, reg.FallbackProvidersFor(primary.ID(), primary.Name())...)
	chain, err := failover.New(chainProviders...)
	if err != nil {
		return fmt.Errorf("building failover chain: %w", err)
	}

	tools := agent.NewToolRegistry()
	if mcpConfigPath != "" {
		if err := loadMCPTools(ctx, mcpConfigPath, tools, logger); err != nil {
			logger.Warn("agentcore: MCP tools not loaded", "error", err)
		}
	}

	loop := agent.NewLoop(providers.AsAgentProvider(chain), tools)

	prompt, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	history := make([]models.ChatMessage, 0, 2)
	if system != "" {
		history = append(history, models.NewSystemMessage(system))
	}
	history = append(history, models.NewUserMessage(string(prompt)))

	result, err := loop.RunCompacting(ctx, history)
	if err != nil {
		return fmt.Errorf("running turn: %w", err)
	}

	fmt.Println(result.Text)
	return nil
}

// loadMCPTools starts every auto_start MCP server and registers their
// tools/resources/prompts as external tools on registry.
func loadMCPTools(ctx context.Context, path string, registry *agent.ToolRegistry, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading MCP config: %w", err)
	}
	cfg, err := mcp.ParseConfig(data)
	if err != nil {
		return fmt.Errorf("parsing MCP config: %w", err)
	}

	mgr := mcp.NewManager(cfg, logger)
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mgr.Start(startCtx); err != nil {
		return fmt.Errorf("starting MCP servers: %w", err)
	}

	names, err := mcp.RegisterTools(registry, mgr)
	if err != nil {
		return fmt.Errorf("registering MCP tools: %w", err)
	}
	logger.Info("agentcore: MCP tools registered", "count", len(names))
	return nil
}
