package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/model8cli/m8cli/engine"
	"github.com/model8cli/m8cli/provider"
)

// runHooks reports tool activity on stderr so streamed model output on
// stdout stays clean.
func runHooks() engine.Options {
	if flags.quiet {
		return engine.Options{}
	}
	return engine.Options{
		OnToolCall: func(name, args string) {
			fmt.Fprintf(os.Stderr, "[tool: %s(%s)]\n", name, args)
		},
		OnToolResult: func(res engine.ToolResult) {
			if !res.OK {
				fmt.Fprintf(os.Stderr, "[tool %s failed: %s]\n", res.Name, res.Output)
			}
		},
	}
}

func readStdinInput() string {
	if fi, _ := os.Stdin.Stat(); fi != nil && fi.Mode()&os.ModeCharDevice == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}

func oneshotRequest(args []string) (string, error) {
	request := strings.TrimSpace(strings.Join(args, " "))
	if piped := readStdinInput(); piped != "" {
		if request == "" {
			request = piped
		} else {
			request = request + "\n\n" + piped
		}
	}
	if request == "" {
		return "", fmt.Errorf("nothing to ask: pass a prompt or pipe input")
	}
	return request, nil
}

// runOneshot drives a single request to completion with the given budget.
// An interrupt cancels the in-flight gateway call rather than killing the
// process, so the transcript still reaches the history store.
func runOneshot(app *App, request string, maxSteps int) error {
	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt)
	defer stop()

	s := engine.NewSession(request, maxSteps)
	answer, err := app.engine.Run(ctx, s, runHooks())
	stop()
	app.record(s, request)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBudgetExceeded):
			return fmt.Errorf("stopped after %d steps without a final answer", s.MaxSteps)
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("interrupted")
		}
		return err
	}
	if flags.quiet {
		fmt.Println(answer)
	} else {
		fmt.Println()
	}
	return nil
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a one-shot question (reads stdin when piped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := oneshotRequest(args)
			if err != nil {
				return err
			}
			app, err := newApp(appOptions{
				model: flags.model, apiKey: flags.apiKey,
				quiet: flags.quiet, verbose: flags.verbose, yes: flags.yes,
				withTools: true,
			})
			if err != nil {
				return err
			}
			defer app.Close()
			return runOneshot(app, request, app.cfg.MaxSteps)
		},
	}
}

func newAgentCmd() *cobra.Command {
	var maxSteps int
	cmd := &cobra.Command{
		Use:   "agent [task]",
		Short: "Run a longer autonomous task with a larger step budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := oneshotRequest(args)
			if err != nil {
				return err
			}
			app, err := newApp(appOptions{
				model: flags.model, apiKey: flags.apiKey,
				quiet: flags.quiet, verbose: flags.verbose, yes: flags.yes,
				withTools: true,
			})
			if err != nil {
				return err
			}
			defer app.Close()

			budget := maxSteps
			if budget <= 0 {
				budget = app.cfg.AgentMaxSteps
			}
			return runOneshot(app, request, budget)
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Step budget for this task (default from config)")
	return cmd
}

func newChatCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session (Ctrl-C cancels a reply, twice quits)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(appOptions{
				model: flags.model, apiKey: flags.apiKey,
				quiet: flags.quiet, verbose: flags.verbose, yes: flags.yes,
				withTools: true,
			})
			if err != nil {
				return err
			}
			defer app.Close()
			return runInteractive(app, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the previous session for this directory")
	return cmd
}

func runInteractive(app *App, resume bool) error {
	if !flags.quiet {
		fmt.Fprintf(os.Stderr, "%s chat [%s/%s] (type 'exit' to quit)\n\n",
			appName, app.provider.Name, app.completer.Model())
	}

	var s *engine.Session
	if resume {
		restored, err := app.sessions.Load(app.workDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load session: %v\n", err)
		} else if len(restored) > 0 {
			s = engine.ResumeSession(restored, app.cfg.MaxSteps)
			if !flags.quiet {
				fmt.Fprintf(os.Stderr, "[resumed %d messages from previous session]\n\n", len(restored))
			}
		}
	}

	var (
		mu         sync.Mutex
		runCancel  context.CancelFunc
		lastSignal time.Time
	)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	quitCh := make(chan struct{})

	go func() {
		for range sigCh {
			now := time.Now()
			mu.Lock()
			cancel := runCancel
			mu.Unlock()
			if cancel != nil {
				cancel()
			}
			if now.Sub(lastSignal) < 500*time.Millisecond {
				fmt.Fprintln(os.Stderr)
				close(quitCh)
				return
			}
			lastSignal = now
		}
	}()

	in := bufio.NewReader(os.Stdin)
	var title string
	for {
		select {
		case <-quitCh:
			return nil
		default:
		}

		fmt.Fprint(os.Stderr, app.cfg.Prompt)
		line, err := in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" {
			return nil
		}

		if s == nil {
			s = engine.NewSession(input, app.cfg.MaxSteps)
			title = input
		} else {
			s.Append(input)
		}
		// Each turn gets a fresh budget.
		s.Steps = 0

		ctx, cancel := context.WithCancel(rootCtx)
		mu.Lock()
		runCancel = cancel
		mu.Unlock()

		_, err = app.engine.Run(ctx, s, runHooks())

		mu.Lock()
		runCancel = nil
		mu.Unlock()
		cancel()

		switch {
		case err == nil:
			fmt.Println()
		case errors.Is(err, context.Canceled):
			fmt.Fprintln(os.Stderr, "\n[interrupted]")
		case errors.Is(err, engine.ErrBudgetExceeded):
			fmt.Fprintf(os.Stderr, "\n[stopped after %d steps without a final answer]\n", s.MaxSteps)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		if err := app.sessions.Save(app.workDir, s.ID, s.Messages); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
		}
		app.record(s, title)
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available providers and their default models",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			providers, err := provider.LoadExtra(dir)
			if err != nil {
				return err
			}
			fmt.Println("Available providers:")
			for _, p := range providers {
				env := p.EnvKey
				if p.Local {
					env = "(local, no key)"
				}
				fmt.Printf("  %-12s model=%-45s %s\n", p.Name, p.Model, env)
			}
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools and their safety class",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(appOptions{
				model: flags.model, apiKey: flags.apiKey,
				quiet: true, verbose: flags.verbose,
				withTools: true, optionalKey: true,
			})
			if err != nil {
				return err
			}
			defer app.Close()

			for _, spec := range app.registry.Specs() {
				fmt.Printf("  %-20s %-8s %s\n", spec.Name, spec.Safety, spec.Description)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetKeyCmd(), newConfigDeleteKeyCmd(), newConfigSetModelCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			fmt.Printf("config dir:      %s\n", dir)
			fmt.Printf("default model:   %s\n", cfg.DefaultModel)
			fmt.Printf("max steps:       %d (agent: %d)\n", cfg.MaxSteps, cfg.AgentMaxSteps)
			fmt.Printf("max retries:     %d\n", cfg.MaxRetries)
			if len(cfg.Tools.Disabled) > 0 {
				fmt.Printf("disabled tools:  %s\n", strings.Join(cfg.Tools.Disabled, ", "))
			}
			if len(cfg.Security.BlockedPatterns) > 0 {
				fmt.Printf("extra blocked patterns: %d\n", len(cfg.Security.BlockedPatterns))
			}
			return nil
		},
	}
}

func lookupProvider(name string) (*provider.Provider, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	providers, err := provider.LoadExtra(dir)
	if err != nil {
		return nil, err
	}
	p := provider.Find(name, providers)
	if p == nil {
		return nil, fmt.Errorf("unknown provider %q (see 'm8cli models')", name)
	}
	return p, nil
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <provider>",
		Short: "Store a provider API key in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProvider(args[0])
			if err != nil {
				return err
			}
			if p.Local {
				return fmt.Errorf("provider %s is local and needs no key", p.Name)
			}

			fmt.Fprintf(os.Stderr, "API key for %s: ", p.Name)
			key, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			if err := storeAPIKey(p, string(key)); err != nil {
				return err
			}
			fmt.Printf("Stored key for %s in the system keyring.\n", p.Name)
			return nil
		},
	}
}

func newConfigDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key <provider>",
		Short: "Remove a provider API key from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProvider(args[0])
			if err != nil {
				return err
			}
			if err := deleteAPIKey(p); err != nil {
				return err
			}
			fmt.Printf("Removed key for %s.\n", p.Name)
			return nil
		},
	}
}

func newConfigSetModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-model <provider[/model]>",
		Short: "Set the default provider and model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _, _ := strings.Cut(args[0], "/")
			if _, err := lookupProvider(name); err != nil {
				return err
			}
			dir, err := configDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			cfg.DefaultModel = args[0]
			if err := saveConfig(dir, cfg); err != nil {
				return err
			}
			fmt.Printf("Default model set to %s.\n", args[0])
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			store, err := OpenHistory(dir)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(rootCtx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No history.")
				return nil
			}
			for _, e := range entries {
				when := time.Unix(e.CreatedAt, 0).Format("2006-01-02 15:04")
				fmt.Printf("  %s  %-8s %2d steps  %-30s %s\n", when, e.State, e.Steps, e.Model, e.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all history and the saved session for this directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := configDir()
			if err != nil {
				return err
			}
			store, err := OpenHistory(dir)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(rootCtx); err != nil {
				return err
			}
			workDir, err := os.Getwd()
			if err == nil {
				if err := NewSessionStore(dir).Clear(workDir); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to clear session: %v\n", err)
				}
			}
			fmt.Println("History cleared.")
			return nil
		},
	})
	return cmd
}
