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

	"github.com/lulo-labs/lulo/internal/agent"
	"github.com/lulo-labs/lulo/internal/browser"
	"github.com/lulo-labs/lulo/internal/dispatch"
	"github.com/lulo-labs/lulo/internal/dom"
	"github.com/lulo-labs/lulo/internal/feedback"
	"github.com/lulo-labs/lulo/internal/gateway"
	"github.com/lulo-labs/lulo/internal/governance"
	"github.com/lulo-labs/lulo/internal/observability"
	"github.com/lulo-labs/lulo/internal/planner"
	"github.com/lulo-labs/lulo/internal/store"
	"github.com/lulo-labs/lulo/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig(config.DefaultPath("."))

	logger := observability.NewLogger()

	// Browser driver and feedback surfaces
	driver := browser.NewDriver(browser.Options{
		Headless:      cfg.Browser.Headless,
		NavTimeout:    time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		ScreenshotDir: cfg.Browser.ScreenshotDir,
	})

	overlay := feedback.NewPageOverlay(driver)
	sync := feedback.NewSynchronizer(overlay, feedback.NewTerminalStatus(), feedback.NewEventLog(logger))
	driver.SetStatusFunc(func(text string) {
		sync.UpdateStatus(context.Background(), text)
	})

	domExec := dom.NewExecutor(sync)

	// Step policy: config-driven deny rules, allow by default
	policy := governance.NewDefaultPolicyEngine()
	for _, action := range cfg.Policy.DeniedActions {
		policy.DenyAction(action)
	}
	for _, pattern := range cfg.Policy.DeniedURLs {
		if err := policy.DenyURL(pattern); err != nil {
			log.Printf("Warning: invalid denied_urls pattern %q: %v", pattern, err)
		}
	}

	dispatcher := dispatch.New(dispatch.NewDriverSession(driver), domExec, sync, overlay, policy, logger)

	history, err := store.NewStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}

	// Initialize LLM (using default enabled provider)
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

	promptsDir := cfg.App.PromptsDir
	if promptsDir == "" {
		promptsDir = "./prompts"
	}
	prompts := planner.NewPromptManager(promptsDir)
	pl := planner.New(llm, prompts, logger)

	ag := agent.New(pl, dispatcher, driver, history, logger)

	var gw gateway.Messenger
	if tgCfg, enabled := cfg.GetGateway("telegram"); enabled {
		gw, err = gateway.NewTelegramGateway(tgCfg.Token, ag)
	} else if dcCfg, enabled := cfg.GetGateway("discord"); enabled {
		gw, err = gateway.NewDiscordGateway(dcCfg.Token, ag)
	} else {
		log.Println("No chat gateway enabled, starting local console loop")
		gw = gateway.NewConsoleGateway(ag)
	}
	if err != nil {
		log.Fatal(err)
	}

	// Start Background Scheduler with a cancelable context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := agent.NewScheduler(ag, history, gw)
	go scheduler.Start(ctx)

	// Start Live Resource Dashboard (1-second updates)
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

	// Start Gateway in a goroutine so we can wait for context in the main loop
	go func() {
		if err := gw.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop() // stop caller if gateway dies
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Let in-flight feedback settle, then drop the overlay before the
	// browser so no orphaned overlay outlives the process.
	sync.Drain()
	sync.End(context.Background())
	driver.Close()

	// Reset terminal aesthetics
	observability.CleanupTerminal()

	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] AGENT DE-INITIALIZED. GOODBYE.\033[0m")
}
