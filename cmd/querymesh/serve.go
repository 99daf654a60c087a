package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"querymesh/internal/adapter"
	"querymesh/internal/auth"
	"querymesh/internal/bus"
	"querymesh/internal/config"
	"querymesh/internal/crawler"
	"querymesh/internal/front"
	"querymesh/internal/metrics"
	"querymesh/internal/planner"
	"querymesh/internal/records"
	"querymesh/internal/registry"
	"querymesh/internal/rpc"
	"querymesh/internal/sink"
	"querymesh/internal/synth"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mesh: all agents on one listener",
		Long: `Starts the agent registry, sink catalogue, query planner, records
agent, auth agents, candidate agents and the chat front door on one
HTTP listener. Press Ctrl+C to stop.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config (run 'querymesh init' first?): %w", err)
	}

	log, err := buildLogger(cfg.General)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.NewEventBus(log)
	collector := metrics.NewCollector()
	collector.Attach(events)

	regStore, err := registry.NewStore(cfg.Registry.DBPath, log)
	if err != nil {
		return fmt.Errorf("registry store: %w", err)
	}
	defer regStore.Close()

	// The internal base is where agents in this process reach each
	// other; the external base is what cards advertise to the outside.
	internalBase := "http://" + cfg.Server.Bind
	externalBase := cfg.Server.BaseURL
	if externalBase == "" {
		externalBase = internalBase
	}
	if err := registry.Seed(regStore, registry.DefaultCards(internalBase, externalBase), log); err != nil {
		return err
	}
	manifestCards, err := registry.LoadManifest(cfg.Registry.SeedManifest, log)
	if err != nil {
		return err
	}
	if len(manifestCards) > 0 {
		if err := registry.Seed(regStore, manifestCards, log); err != nil {
			return err
		}
	}

	sinkStore, err := sink.NewFileStore(cfg.Sinks.CataloguePath, log)
	if err != nil {
		return fmt.Errorf("sink catalogue: %w", err)
	}

	synthesizer, err := synth.NewFromConfig(cfg.Synthesizer, log)
	if err != nil {
		return fmt.Errorf("synthesizer: %w", err)
	}

	plan := planner.New(planner.Config{
		Sinks:   sinkStore,
		Factory: adapter.NewFactory(log),
		Synth:   synthesizer,
		Logger:  log,
		Events:  events,
	})

	recStore, err := records.NewStore(cfg.Records.DatabaseFilePath, log)
	if err != nil {
		return fmt.Errorf("records store: %w", err)
	}
	defer recStore.Close()

	history, err := front.NewHistory(filepath.Join(cfg.General.DataDir, "history.db"), log)
	if err != nil {
		return fmt.Errorf("session history: %w", err)
	}
	defer history.Close()

	requestTimeout := time.Duration(cfg.Server.RequestTimeoutS) * time.Second
	caller := rpc.NewCaller(regStore, rpc.NewClient(requestTimeout, log))

	tokens := auth.NewTokenSet(time.Duration(cfg.Auth.TokenTTLS)*time.Second, log)
	creds := auth.NewCredentials(cfg.Auth.Accounts, log)
	// The auth agent validates through the mesh, not in process, so a
	// remote credential service can replace the local one by card.
	authAgent := auth.NewAgent(tokens, auth.NewMeshCredentials(caller), log)

	frontAgent := front.New(front.Config{
		History:  history,
		Caller:   caller,
		Registry: regStore,
		Sinks:    sinkStore,
		Timeout:  requestTimeout,
		Logger:   log,
	})

	crawlerAgent := crawler.New(crawler.Config{
		SourceURL: cfg.Crawler.SourceURL,
		Fetcher:   crawler.NewBrowser(cfg.Crawler.BrowserTimeoutS, log),
		Logger:    log,
	})

	srv := rpc.NewServer(rpc.ServerConfig{
		Bind:            cfg.Server.Bind,
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutS) * time.Second,
		Logger:          log,
		Metrics:         collector,
	})
	srv.Mount(registry.NewAgent(regStore, log).Dispatcher(events))
	srv.Mount(sink.NewAgent(sinkStore, log).Dispatcher(events))
	srv.Mount(planner.NewAgent(plan, log).Dispatcher(events))
	srv.Mount(records.NewAgent(recStore, log).Dispatcher(events))
	srv.Mount(authAgent.Dispatcher(events))
	srv.Mount(creds.Dispatcher(events))
	srv.Mount(frontAgent.Dispatcher(events))
	srv.Mount(crawlerAgent.Dispatcher(events))
	srv.Mount(crawler.NewSearch(caller, log).Dispatcher(events))

	go sweepTokens(ctx, tokens)

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		tg := front.NewTelegram(front.TelegramConfig{
			Token:     cfg.Telegram.Token,
			AllowFrom: cfg.Telegram.AllowFrom,
			Agent:     frontAgent,
			Logger:    log,
		})
		go func() {
			if err := tg.Start(ctx); err != nil {
				log.Error("telegram transport stopped", "error", err)
			}
		}()
	}

	log.Info("mesh starting", "bind", cfg.Server.Bind, "agents", srv.AgentNames())
	return srv.Start(ctx)
}

// sweepTokens drops expired tokens so the set does not grow with every
// login for the life of the process.
func sweepTokens(ctx context.Context, tokens *auth.TokenSet) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens.CleanExpired()
		}
	}
}

// buildLogger honors general.logLevel and general.logFile. With a log
// file configured the output goes to both the file and stderr.
func buildLogger(general config.GeneralConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch general.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if general.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(general.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(general.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
