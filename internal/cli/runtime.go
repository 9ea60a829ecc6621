package cli

import (
	"io"
	"log/slog"

	"github.com/pyx-industries/julee/internal/config"
	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/knowledge"
)

// runtime bundles the pieces a pipeline-running command needs: validated
// config, an open journal, and an engine with the knowledge activities and
// pipelines registered.
type runtime struct {
	Config  config.Config
	Journal *journal.Journal
	Engine  *engine.Engine
}

// openRuntime loads the config, opens the journal it names, and wires the
// engine. Diagnostic logs go to errW at debug level when verbose.
func openRuntime(opts *RootOptions, configPath string, errW io.Writer) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open journal", err)
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: logLevel}))

	e := engine.New(j, append(cfg.EngineOptions(), engine.WithLogger(logger))...)

	repo := knowledge.NewMemoryAssetRepository()
	knowledge.RegisterActivities(e, repo, knowledge.KeywordExtractionService{},
		knowledge.LoggingCuratorNotifier{Logger: logger, Curators: cfg.Curators})

	var wiring knowledge.OrphanWiring
	switch cfg.OrphanHandling {
	case "log":
		wiring = knowledge.LoggingOrphanWiring(logger)
	case "notify":
		wiring = knowledge.NotifyOrphanWiring(logger)
	}
	knowledge.RegisterPipelines(e, wiring)

	return &runtime{Config: cfg, Journal: j, Engine: e}, nil
}

// Close releases the engine and journal.
func (r *runtime) Close() {
	r.Engine.Close()
	if err := r.Journal.Close(); err != nil {
		slog.Warn("closing journal", "error", err)
	}
}

// openJournal loads the config and opens the journal for read-only commands.
func openJournal(configPath string) (*journal.Journal, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open journal", err)
	}
	return j, nil
}
