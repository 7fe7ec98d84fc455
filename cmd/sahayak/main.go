package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/sahayak/internal/agent"
	"github.com/rahul/sahayak/internal/gateway"
	"github.com/rahul/sahayak/internal/governance"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/store"
	"github.com/rahul/sahayak/internal/tools"
	"github.com/rahul/sahayak/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.json")

	registry := tools.NewRegistry()
	mustRegister(registry, tools.NewFilesystemTool(cfg.App.Workspace))
	mustRegister(registry, tools.NewShellTool(cfg.App.Workspace))
	mustRegister(registry, tools.NewGitTool(cfg.App.Workspace))
	mustRegister(registry, tools.NewScraperTool())
	mustRegister(registry, tools.NewBrowserTool())
	mustRegister(registry, tools.NewProcessTool())

	searchTool, err := tools.NewSearchTool(5)
	if err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		mustRegister(registry, searchTool)
	}

	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}
	mustRegister(registry, tools.NewCronTool(history))

	promptDir := cfg.Prompts.Directory
	if promptDir == "" {
		promptDir = "./prompts"
	}
	prompts := agent.NewPromptManager(promptDir)

	gov := loadPolicy(cfg.Policy.RulesFile)
	logger := observability.NewLogger()

	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	planStore := agent.NewPlanStore()
	planning := agent.DefaultPlanningConfig()
	if cfg.Planning.MaxTasks > 0 {
		planning.MaxTasks = cfg.Planning.MaxTasks
	}
	if cfg.Planning.MaxStepsPerTask > 0 {
		planning.MaxStepsPerTask = cfg.Planning.MaxStepsPerTask
	}
	if cfg.Planning.MaxReplans > 0 {
		planning.MaxReplans = cfg.Planning.MaxReplans
	}

	controller := agent.NewPlanController(llm, registry, planStore, prompts, history, gov, logger, planning)

	term := gateway.NewTerminalGateway(controller, planStore)
	controller.Display = term

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := agent.NewScheduler(controller, history, term)
	go scheduler.Start(ctx)

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, controller)
		if err != nil {
			log.Printf("Warning: Telegram gateway failed to start: %v", err)
		} else {
			go func() {
				if err := tg.Start(); err != nil {
					log.Printf("Telegram gateway stopped: %v", err)
				}
			}()
			defer tg.Stop()
		}
	}

	// Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
			}
		}
	}()

	// The terminal REPL is the foreground loop; a shutdown signal or EOF
	// ends the session.
	go func() {
		if err := term.Start(); err != nil {
			log.Printf("Terminal gateway error: %v", err)
		}
		stop()
	}()

	<-ctx.Done()
	term.Stop()

	observability.CleanupTerminal()

	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] SESSION CLOSED. GOODBYE.\033[0m")
}

func mustRegister(registry *tools.Registry, t tools.Tool) {
	if err := registry.Register(t); err != nil {
		log.Fatalf("failed to register tool: %v", err)
	}
}

// loadPolicy reads the configured rules file, falling back to the built-in
// destructive-command deny list.
func loadPolicy(rulesFile string) governance.PolicyEngine {
	if rulesFile != "" {
		engine, err := governance.LoadRules(rulesFile)
		if err != nil {
			log.Fatalf("failed to load policy rules: %v", err)
		}
		return engine
	}

	gov := governance.NewDefaultPolicyEngine()
	_ = gov.DenyArguments(`rm\s+-rf`)
	_ = gov.DenyArguments(`mkfs`)
	_ = gov.DenyArguments(`shutdown`)
	_ = gov.DenyArguments(`reboot`)
	return gov
}
