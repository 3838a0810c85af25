package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mlindqvist/groundwork/internal/api"
	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/dispatch"
	"github.com/mlindqvist/groundwork/internal/doctor"
	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/lock"
	"github.com/mlindqvist/groundwork/internal/log"
	"github.com/mlindqvist/groundwork/internal/probe"
	"github.com/mlindqvist/groundwork/internal/provision"
	"github.com/mlindqvist/groundwork/internal/runner"
	"github.com/mlindqvist/groundwork/internal/state"
	"github.com/mlindqvist/groundwork/internal/storage"
	"github.com/mlindqvist/groundwork/internal/tui/panel"
	"github.com/mlindqvist/groundwork/internal/view"
	"github.com/mlindqvist/groundwork/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const defaultConfigPath = "groundwork.yaml"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "workspace":
		return runWorkspaceNoun(args)
	case "panel":
		if hasHelpFlag(args) {
			printPanelHelp()
			return 0
		}
		return runPanel(args)
	case "doctor":
		if hasHelpFlag(args) {
			printDoctorHelp()
			return 0
		}
		return runDoctor(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "help":
		printSystemNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runWorkspaceNoun(args []string) int {
	if len(args) < 1 {
		printWorkspaceNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printWorkspaceNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "inspect":
		if hasHelpFlag(actionArgs) {
			printWorkspaceInspectHelp()
			return 0
		}
		return runWorkspaceInspect(actionArgs)
	case "help":
		printWorkspaceNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown workspace action: %s\n", action)
		return 1
	}
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("groundwork starting", "version", version, "config", *configPath)

	pidLock, err := lock.ForWorkspaces(cfg.Workspaces.Dir)
	if err != nil {
		logger.Error("failed to acquire instance lock (another instance may be running)", "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired instance lock", "path", pidLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		logger.Error("failed to bootstrap database", "error", err)
		return 1
	}
	logger.Info("database opened", "path", cfg.State.Path)

	hub := events.NewHub(256)
	records := state.NewRecordStore(db)
	runs := state.NewRunLog(db)
	exec := runner.New()

	disp := dispatch.New(func() *provision.Controller {
		return provision.NewController(provision.Deps{
			Exec:           exec,
			Hub:            hub,
			Records:        records,
			Runs:           runs,
			Render:         view.Render,
			WorkspacesDir:  cfg.Workspaces.Dir,
			Commands:       cfg.Commands,
			ToolingPackage: cfg.Tooling.Package,
			Timeouts:       cfg.Timeouts,
		})
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, disp, hub, view.Render)
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("panel API enabled", "listen", cfg.API.Listen)
	} else {
		logger.Warn("panel API disabled; no display surface can connect")
	}

	logger.Info("groundwork running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("groundwork stopped")
	return 0
}

func runPanel(args []string) int {
	fs := flag.NewFlagSet("panel", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8791", "Panel API URL")
	apiKey := fs.String("api-key", os.Getenv("GROUNDWORK_API_KEY"), "API bearer token")
	project := fs.String("project", "", "Workspace to attach to")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or GROUNDWORK_API_KEY env var.")
		return 1
	}
	if *project != "" {
		if err := workspace.ValidateProjectName(*project); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid project name: %v\n", err)
			return 1
		}
	}

	m := panel.New(*apiURL, *apiKey, *project)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	result := doctor.New(cfg, runner.New()).Validate(ctx)

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}
	fmt.Println("Configuration valid.")
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if err := config.Lock(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}
	fmt.Printf("Updated integrity hash for %s\n", *configPath)
	return 0
}

func runWorkspaceInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: groundwork workspace inspect <project> [--config PATH] [--json]")
		return 1
	}
	project := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	layout, err := workspace.NewLayout(cfg.Workspaces.Dir, project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid project: %v\n", err)
		return 1
	}

	markers := probe.Inspect(layout.Root)
	stage := probe.Probe(layout.Root)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var runEntries []state.RunEntry
	if db, err := storage.OpenSQLite(ctx, cfg.State.Path); err == nil {
		defer db.Close()
		if err := storage.BootstrapSQLite(ctx, db); err == nil {
			runEntries, _ = state.NewRunLog(db).Recent(ctx, project, 10)
		}
	}

	if *jsonOut {
		out := struct {
			Project string          `json:"project"`
			Root    string          `json:"root"`
			Stage   string          `json:"stage"`
			Markers probe.Markers   `json:"markers"`
			Runs    []state.RunEntry `json:"runs,omitempty"`
		}{project, layout.Root, stage.String(), markers, runEntries}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Workspace %s (%s)\n", project, layout.Root)
	fmt.Printf("  stage: %s\n", stage)
	mark := func(label string, ok bool) {
		box := " "
		if ok {
			box = "x"
		}
		fmt.Printf("  [%s] %s\n", box, label)
	}
	mark("repository cloned", markers.Cloned)
	mark("python runtime", markers.Runtime)
	mark("tracing library", markers.Tooling)
	mark("lean toolchain", markers.Toolchain)
	mark("project built", markers.Built)
	mark("trace complete", markers.Completed)

	if len(runEntries) > 0 {
		fmt.Println("  recent runs:")
		for _, r := range runEntries {
			fmt.Printf("    %-18s %-10s %s\n", r.Step, r.Status, r.StartedAt.Format(time.RFC3339))
		}
	}
	return 0
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: groundwork version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("groundwork %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- HELP ---

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`groundwork - Panel-driven provisioning for theorem-proving toolchains

Usage:
  groundwork <noun> <action> [flags]

System Commands:
  system start        Start the provisioning service in foreground
  panel               Launch the interactive terminal panel

Config Commands:
  config check        Validate configuration syntax and integrity
  config lock         Authorize current config (update integrity hash)

Workspace Commands:
  workspace inspect   Show markers, stage, and recent runs for a workspace

Diagnostics:
  doctor              Validate config and probe external tools

General:
  --version           Show version information
  version             Show version information
  help                Show this help message
`)
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: groundwork system <action>")
	fmt.Fprintln(w, "Actions: start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: groundwork config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func printWorkspaceNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: groundwork workspace <action>")
	fmt.Fprintln(w, "Actions: inspect")
}

func printSystemStartHelp() {
	fmt.Println("Usage: groundwork system start [--config PATH]")
	fmt.Println("Start the provisioning service in the foreground.")
}

func printPanelHelp() {
	fmt.Println("Usage: groundwork panel [flags]")
	fmt.Println()
	fmt.Println("Interactive terminal panel for one workspace.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Panel API URL (default: http://127.0.0.1:8791)")
	fmt.Println("  --api-key KEY    API bearer token (or GROUNDWORK_API_KEY env var)")
	fmt.Println("  --project NAME   Workspace to attach to")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  enter            Run the next provisioning step")
	fmt.Println("  n                New project form")
	fmt.Println("  d                Toggle build dependencies")
	fmt.Println("  c                Cancel a running trace")
}

func printDoctorHelp() {
	fmt.Println("Usage: groundwork doctor [--config PATH] [--json]")
	fmt.Println("Validate configuration and probe git, python, elan, and lake candidates.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: groundwork config check [--config PATH]")
	fmt.Println("Validate configuration syntax, values, and integrity hash.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: groundwork config lock [--config PATH]")
	fmt.Println("Authorize the current configuration by regenerating its integrity hash.")
}

func printWorkspaceInspectHelp() {
	fmt.Println("Usage: groundwork workspace inspect <project> [--config PATH] [--json]")
	fmt.Println("Show filesystem markers, the derived stage, and recent step runs.")
}
