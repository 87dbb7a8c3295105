package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/model8cli/m8cli/engine"
	"github.com/model8cli/m8cli/provider"
	"github.com/model8cli/m8cli/safety"
	"github.com/model8cli/m8cli/tools"
)

// App wires the configuration, provider client, tool registry, safety gate
// and engine together for one invocation.
type App struct {
	cfg       Config
	configDir string
	workDir   string

	providers []provider.Provider
	provider  *provider.Provider

	completer *engine.StreamCompleter
	registry  *engine.Registry
	engine    *engine.Engine

	memory   *MemoryStore
	sessions *SessionStore
	history  *HistoryStore
	mcp      *MCPManager
}

type appOptions struct {
	model   string
	apiKey  string
	quiet   bool
	verbose bool
	yes     bool

	// withTools false skips tool registration entirely, for commands that
	// only need configuration and provider plumbing.
	withTools bool

	// optionalKey tolerates a missing credential, for commands that never
	// reach the provider.
	optionalKey bool
}

func newApp(opts appOptions) (*App, error) {
	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("locating config dir: %w", err)
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:       cfg,
		configDir: dir,
		workDir:   workDir,
	}

	app.providers, err = provider.LoadExtra(dir)
	if err != nil {
		return nil, fmt.Errorf("loading providers: %w", err)
	}

	modelFlag := opts.model
	if modelFlag == "" {
		modelFlag = os.Getenv("M8CLI_MODEL")
	}
	if modelFlag == "" {
		modelFlag = cfg.DefaultModel
	}

	providerName, modelName, _ := strings.Cut(modelFlag, "/")
	app.provider = provider.Find(providerName, app.providers)
	if app.provider == nil {
		return nil, fmt.Errorf("unknown provider %q (see 'm8cli models')", providerName)
	}
	if modelName != "" {
		app.provider.Model = modelName
	}

	apiKey, err := resolveAPIKey(app.provider, opts.apiKey)
	if err != nil {
		if !opts.optionalKey {
			return nil, err
		}
		apiKey = ""
	}

	client := provider.NewClient(app.provider, apiKey)
	app.completer = engine.NewStreamCompleter(client, app.provider.Model)
	if !opts.quiet {
		app.completer.OnDelta = func(text string) { fmt.Print(text) }
	}

	app.registry = engine.NewRegistry()
	if opts.withTools {
		if err := app.registerTools(opts.verbose); err != nil {
			return nil, err
		}
	}

	gate := safety.NewGate(
		safety.WithWorkDir(workDir),
		safety.WithPatterns(cfg.Security.BlockedPatterns),
	)

	records, err := loadApprovalRecords(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		records = ApprovalRecords{}
	}

	app.sessions = NewSessionStore(dir)
	app.history, err = OpenHistory(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history unavailable: %v\n", err)
	}

	app.engine = engine.New(engine.Config{
		Completer:     app.completer,
		Registry:      app.registry,
		Gate:          gate,
		Approver:      NewTerminalApprover(dir, workDir, records, opts.yes),
		SystemMessage: app.systemMessage,
		MaxRetries:    cfg.MaxRetries,
	})
	return app, nil
}

func (a *App) registerTools(verbose bool) error {
	tools.RegisterFileOps(a.registry)
	tools.RegisterSystem(a.registry)
	tools.RegisterGit(a.registry)
	tools.RegisterWeb(a.registry)
	tools.RegisterNostr(a.registry)

	var err error
	a.memory, err = OpenMemory(a.configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: memory unavailable: %v\n", err)
	} else {
		a.memory.RegisterTools(a.registry)
	}

	if err := loadPlugins(filepath.Join(a.configDir, "tools"), a.registry, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load plugins: %v\n", err)
	}

	a.mcp = &MCPManager{}
	if err := a.mcp.Load(a.configDir, a.registry, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load MCP config: %v\n", err)
	}

	a.cfg.applyDisabledTools(a.registry)
	return nil
}

func (a *App) Close() {
	if a.mcp != nil {
		a.mcp.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
}

func (a *App) systemMessage() string {
	var sb strings.Builder
	sb.WriteString("You are a helpful command-line assistant with access to tools. ")
	sb.WriteString("Use them to read and edit files, run commands, and fetch information ")
	sb.WriteString("when the request needs it; answer directly when it does not. ")
	sb.WriteString("Keep answers concise.\n\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", a.workDir)
	fmt.Fprintf(&sb, "Operating system: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if a.memory != nil {
		sb.WriteString(a.memory.Markdown())
	}
	return sb.String()
}

// record indexes a finished session in history. Failures are non-fatal.
func (a *App) record(s *engine.Session, title string) {
	if a.history == nil {
		return
	}
	err := a.history.Record(rootCtx, HistoryEntry{
		SessionID: s.ID,
		Title:     title,
		Model:     a.completer.Model(),
		Steps:     s.Steps,
		State:     s.State.String(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
	}
}
