// cmd/gauntlet/main.go
//
// Entry point for the Gauntlet CLI. It runs the verification pipeline once
// for the configured source and either monitors the run in a TUI or, with
// --no-tui, prints a summary and exits non-zero on failure.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gauntlet-ci/gauntlet/internal/checkout"
	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/pipeline/engine"
	"github.com/gauntlet-ci/gauntlet/internal/runlog"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/stages"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
	"github.com/gauntlet-ci/gauntlet/internal/tui"
	"github.com/gauntlet-ci/gauntlet/plugins"
)

func main() {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	revision := flag.String("revision", "", "commit to verify (defaults to the source's current tree)")
	ref := flag.String("ref", "", "symbolic ref to verify when no revision is given")
	kind := flag.String("event", "push", "trigger event kind to simulate (push or pull_request)")
	noTUI := flag.Bool("no-tui", false, "run headless and exit non-zero when the run fails")
	flag.Parse()

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	project, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitGauntletDir(project); err != nil {
		die("init .gauntlet: %v", err)
	}
	cfg, err := config.NewConfig(project)
	if err != nil {
		die("load config: %v", err)
	}
	logger, err := logging.New(project)
	if err != nil {
		die("open log: %v", err)
	}
	defer logger.Close()

	def, err := pipeline.LoadDefinitionFile(cfg.PipelinePath())
	if err != nil {
		die("load pipeline: %v", err)
	}
	reg := stage.NewRegistry()
	stages.RegisterBuiltins(reg)
	if err := plugins.RegisterCustomStages(reg, cfg); err != nil {
		die("load plugins: %v", err)
	}

	store := engine.NewRepository(cfg.RunsDir())
	eng, err := engine.New(store)
	if err != nil {
		die("build engine: %v", err)
	}
	dispatcher, err := engine.NewDispatcher(eng, reg,
		engine.WithRunLogs(runlog.NewStore(cfg.LogsDir())),
		engine.WithWorkspaces(cfg.WorkspacesDir()),
		engine.WithSource(sourceFromConfig(cfg)),
		engine.WithChannel(cfg.ToolchainChannel()),
		engine.WithDispatchLogger(logger),
	)
	if err != nil {
		die("build dispatcher: %v", err)
	}

	evt := buildEvent(*kind, *revision, *ref, cfg)
	if err := evt.Validate(); err != nil {
		die("event: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *noTUI {
		state, err := dispatcher.Dispatch(ctx, def, evt)
		if err != nil {
			die("run pipeline: %v", err)
		}
		printSummary(state)
		if state.Status != engine.RunStatusPassed {
			os.Exit(1)
		}
		return
	}

	started, err := eng.Start(def, evt)
	if err != nil {
		die("start run: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := dispatcher.Resume(ctx, started.RunID)
		done <- err
	}()
	state, err := tui.Run(store, started.RunID)
	if err != nil {
		die("run monitor: %v", err)
	}
	if err := <-done; err != nil {
		die("run pipeline: %v", err)
	}
	if state.Status != engine.RunStatusPassed {
		os.Exit(1)
	}
}

// buildEvent fabricates the trigger event for a local run. Local-path sources
// default to HEAD since the checkout just copies whatever is on disk.
func buildEvent(kind, revision, ref string, cfg *config.Config) trigger.Event {
	evt := trigger.Event{
		Kind:     trigger.Kind(strings.TrimSpace(kind)),
		Revision: revision,
		Ref:      ref,
	}
	if evt.Revision == "" && evt.Ref == "" {
		evt.Ref = "HEAD"
	}
	evt.Repository = cfg.Source().Repository
	evt.Normalize()
	return evt
}

func sourceFromConfig(cfg *config.Config) checkout.Source {
	src := cfg.Source()
	path := src.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectDir, path)
	}
	return checkout.Source{Repository: src.Repository, Path: path}
}

func printSummary(state engine.State) {
	fmt.Printf("Run %s: %s\n", state.RunID, state.Status)
	for _, status := range state.Stages {
		line := fmt.Sprintf("  %-12s %s", status.Name, status.State)
		if status.State == engine.StageStateFailure {
			if status.Class != "" {
				line += fmt.Sprintf(" (%s)", status.Class)
			}
			if status.Message != "" {
				line += ": " + status.Message
			}
		}
		fmt.Println(line)
		if status.LogPath != "" {
			fmt.Printf("    log: %s\n", status.LogPath)
		}
	}
	if state.StatusReason != "" {
		fmt.Println(state.StatusReason)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
