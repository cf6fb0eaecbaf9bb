// Command forge runs a line-oriented harness around the agent orchestrator:
// it reads one user message per line from stdin, drives it through a
// single-agent workflow, and prints streamed text to stdout. It is not a
// product UI — a real frontend drives orchestrator.App directly (§10).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	forge "github.com/asr2003/forge"
	ingestpdf "github.com/asr2003/forge/ingest/pdf"
	"github.com/asr2003/forge/observer"
	"github.com/asr2003/forge/orchestrator"
	"github.com/asr2003/forge/provider/gemini"
	"github.com/asr2003/forge/provider/openaicompat"
)

func buildProvider(cfg orchestrator.Config) forge.Provider {
	var base forge.Provider
	switch cfg.Provider.Name {
	case "gemini":
		base = gemini.New(cfg.Provider.APIKey, cfg.Provider.LargeModelID)
	default:
		base = openaicompat.NewProvider(cfg.Provider.APIKey, cfg.Provider.LargeModelID, cfg.Provider.BaseURL)
	}
	withRetry := forge.WithRetry(base)
	return forge.WithRateLimit(withRetry, forge.RPM(60))
}

// buildShellTool wires a Docker-backed sandbox into ShellTool when
// FORGE_SHELL_SANDBOX=docker is set and a daemon is reachable, falling back
// to direct host execution otherwise (§11).
func buildShellTool() *orchestrator.ShellTool {
	tool := orchestrator.NewShellTool()
	if os.Getenv("FORGE_SHELL_SANDBOX") != "docker" {
		return tool
	}
	sandbox, err := orchestrator.NewDockerSandbox(os.Getenv("FORGE_SANDBOX_IMAGE"))
	if err != nil {
		log.Printf("forge: docker sandbox unavailable, falling back to host shell: %v", err)
		return tool
	}
	tool.Sandbox = sandbox.Run
	return tool
}

func buildTools(store *orchestrator.ConversationStore, scheduleStore orchestrator.ScheduleStore, tz int) *orchestrator.ToolRegistry {
	reg := orchestrator.NewToolRegistry()
	fsRead := orchestrator.NewFsReadTool()
	pdfExtractor := ingestpdf.NewExtractor()
	fsRead.PDFExtract = pdfExtractor.Extract
	reg.MustRegister(fsRead)
	reg.MustRegister(orchestrator.NewFsWriteTool())
	reg.MustRegister(orchestrator.NewFsRemoveTool())
	reg.MustRegister(orchestrator.NewFsListTool())
	reg.MustRegister(orchestrator.NewFsFileInfoTool())
	reg.MustRegister(orchestrator.NewFsSearchTool())
	reg.MustRegister(orchestrator.NewFsPatchTool())
	reg.MustRegister(buildShellTool())
	reg.MustRegister(orchestrator.NewThinkTool())
	reg.MustRegister(orchestrator.NewFetchTool())
	reg.MustRegister(orchestrator.NewEventDispatchTool(store))
	reg.MustRegister(&orchestrator.ScheduleTool{Store: scheduleStore, TZOffset: tz})
	return reg
}

func defaultWorkflow(cfg orchestrator.Config, reg *orchestrator.ToolRegistry) orchestrator.Workflow {
	var toolNames []string
	for _, d := range reg.Definitions() {
		toolNames = append(toolNames, d.Name)
	}
	return orchestrator.Workflow{
		Model: cfg.Provider.LargeModelID,
		Agents: []orchestrator.Agent{
			{
				ID:                   "assistant",
				Model:                cfg.Provider.LargeModelID,
				Description:          "General-purpose coding and operations assistant.",
				SystemPromptTemplate: "You are Forge, an interactive coding agent running in {{.Cwd}} on {{.OS}}. Use the available tools to read, write, and patch files, run shell commands, and fetch URLs.",
				UserPromptTemplate:   `{{printf "%s" .Event.Value}}`,
				Tools:                toolNames,
				Entry:                true,
			},
		},
	}
}

func main() {
	cfg := orchestrator.LoadConfig(os.Getenv("FORGE_CONFIG"))
	if cfg.Provider.APIKey == "" {
		log.Fatal("forge: FORGE_PROVIDER_API_KEY (or a provider.api_key in the config file) is required")
	}

	var tracer forge.Tracer
	if cfg.Observer.Enabled {
		tracer = observer.NewTracer()
	}

	var dumpStore *orchestrator.DumpStore
	var err error
	if dsn := os.Getenv("FORGE_DUMP_DSN"); dsn != "" {
		dumpStore, err = orchestrator.NewPostgresDumpStore(dsn)
		if err != nil {
			log.Fatalf("forge: open postgres dump store: %v", err)
		}
	} else {
		dumpStore, err = orchestrator.NewDumpStore(cfg.Database.DumpPath)
		if err != nil {
			log.Fatalf("forge: open dump store: %v", err)
		}
	}
	defer dumpStore.Close()

	convStore := orchestrator.NewConversationStore()
	scheduleStore := orchestrator.NewMemScheduleStore()
	tools := buildTools(convStore, scheduleStore, cfg.Brain.TimezoneOffset)

	adapter := orchestrator.NewProviderAdapter(buildProvider(cfg), func() []orchestrator.Model {
		return []orchestrator.Model{
			{ID: cfg.Provider.LargeModelID, Description: "large model"},
			{ID: cfg.Provider.SmallModelID, Description: "small model"},
		}
	})

	orch := &orchestrator.Orchestrator{
		Store:    convStore,
		Tools:    tools,
		Renderer: orchestrator.NewRenderer(),
		Provider: adapter,
		Tracer:   tracer,
		Logger:   slog.Default(),
		Cost:      orchestrator.NewCostCalculator(nil),
		Guardrail: orchestrator.NewGuardrail(forge.NewInjectionGuard(), forge.NewContentGuard(forge.MaxInputLength(200_000))),
		Environment: func() (string, string, string) {
			cwd, _ := os.Getwd()
			shell := os.Getenv("SHELL")
			if runtime.GOOS == "windows" {
				shell = os.Getenv("COMSPEC")
			}
			return runtime.GOOS, cwd, shell
		},
	}
	if cfg.Brain.MaxIterations > 0 {
		orch.MaxIterations = cfg.Brain.MaxIterations
	}

	app := &orchestrator.App{
		Store:        convStore,
		Tools:        tools,
		Orchestrator: orch,
		BasePath:     cfg.Brain.WorkspacePath,
		ProviderKey:  cfg.Provider.APIKey,
		ProviderURL:  cfg.Provider.BaseURL,
		LargeModelID: cfg.Provider.LargeModelID,
		SmallModelID: cfg.Provider.SmallModelID,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sched := &orchestrator.Scheduler{Store: scheduleStore, Conv: convStore, TZOffset: cfg.Brain.TimezoneOffset}
	go sched.Run(ctx)

	wf := defaultWorkflow(cfg, tools)
	convID, err := app.InitConversation(wf)
	if err != nil {
		log.Fatalf("forge: init conversation: %v", err)
	}
	fmt.Printf("forge: conversation %s ready, model %s\n", convID, cfg.Provider.LargeModelID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		_, stream := app.Chat(orchestrator.ChatRequest{Content: line, ConversationID: convID}, wf, "cli")
		drain(stream)
	}

	if snap, ok := app.Conversation(convID); ok {
		if body, err := orchestrator.DumpJSON(snap); err == nil {
			_ = dumpStore.Save(ctx, convID, "json", body)
		}
	}
}

func drain(stream *orchestrator.EventStream) {
	for msg := range stream.C() {
		switch msg.Payload.Kind {
		case orchestrator.RespText:
			if msg.Payload.IsComplete {
				fmt.Println()
			} else {
				fmt.Print(msg.Payload.Text)
			}
		case orchestrator.RespToolCallStart:
			fmt.Printf("\n[tool: %s]\n", msg.Payload.ToolName)
		case orchestrator.RespError:
			fmt.Fprintf(os.Stderr, "forge: error: %v\n", msg.Payload.Err)
		}
	}
}
