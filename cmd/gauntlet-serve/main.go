// cmd/gauntlet-serve/main.go
//
// Webhook daemon for Gauntlet. It listens for push and pull_request events
// and runs the verification pipeline once per accepted delivery.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/checkout"
	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/logging"
	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/pipeline/engine"
	"github.com/gauntlet-ci/gauntlet/internal/runlog"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/stages"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
	"github.com/gauntlet-ci/gauntlet/plugins"
)

const shutdownTimeout = 10 * time.Second

func main() {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
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

	settings := trigger.SettingsFromConfig(cfg)
	if !settings.Enabled {
		die("trigger server disabled in .gauntlet/config.yaml")
	}

	def, err := pipeline.LoadDefinitionFile(cfg.PipelinePath())
	if err != nil {
		die("load pipeline: %v", err)
	}
	reg := stage.NewRegistry()
	stages.RegisterBuiltins(reg)
	if err := plugins.RegisterCustomStages(reg, cfg); err != nil {
		die("load plugins: %v", err)
	}

	eng, err := engine.New(engine.NewRepository(cfg.RunsDir()))
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := trigger.NewRouter(trigger.RouterWithLogger(logger))
	server := trigger.NewServer(settings,
		trigger.WithProcessor(router),
		trigger.WithLogger(logger),
	)
	if err := server.Start(ctx); err != nil {
		die("start trigger server: %v", err)
	}
	fmt.Printf("gauntlet-serve listening on %s\n", server.BaseURL())

	sub := router.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Printf("serve: shutdown: %v", err)
			}
			return
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			state, err := dispatcher.Dispatch(ctx, def, evt)
			if err != nil {
				logger.Printf("serve: delivery %s: %v", evt.DeliveryID, err)
				continue
			}
			logger.Printf("serve: delivery %s: run %s %s", evt.DeliveryID, state.RunID, state.Status)
		}
	}
}

func sourceFromConfig(cfg *config.Config) checkout.Source {
	src := cfg.Source()
	path := src.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectDir, path)
	}
	return checkout.Source{Repository: src.Repository, Path: path}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
