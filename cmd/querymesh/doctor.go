package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"querymesh/internal/adapter"
	"querymesh/internal/config"
	"querymesh/internal/domain"
	"querymesh/internal/sink"
	"querymesh/internal/synth"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on a QueryMesh installation",
		Long: `Verifies that the configuration, databases, sink catalogue and
synthesizer are correctly set up. Reports pass/fail for each check.`,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	fmt.Printf("QueryMesh Doctor v%s\n", version)
	fmt.Println(strings.Repeat("━", 40))
	fmt.Println()

	passed, warned, failed := 0, 0, 0

	if _, err := os.Stat(cfgPath); err != nil {
		printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
		fmt.Println("\nRun 'querymesh init' to create a default configuration.")
		return nil
	}
	printPass("Config file", cfgPath)
	passed++

	cfg, err := config.Load(cfgPath)
	if err != nil {
		printFail("Config validation", err.Error())
		failed++
		fmt.Printf("\n%d passed, %d failed\n", passed, failed)
		return fmt.Errorf("%d check(s) failed", failed)
	}
	printPass("Config validation", "valid")
	passed++

	if info, err := os.Stat(cfg.General.DataDir); err != nil {
		printWarn("Data dir", fmt.Sprintf("missing, serve will create it: %s", cfg.General.DataDir))
		warned++
	} else if !info.IsDir() {
		printFail("Data dir", fmt.Sprintf("not a directory: %s", cfg.General.DataDir))
		failed++
	} else {
		printPass("Data dir", cfg.General.DataDir)
		passed++
	}

	for _, db := range []struct{ name, path string }{
		{"Registry DB", cfg.Registry.DBPath},
		{"Records DB", cfg.Records.DatabaseFilePath},
	} {
		if err := checkDatabase(db.path); err != nil {
			printFail(db.name, err.Error())
			failed++
		} else {
			printPass(db.name, db.path)
			passed++
		}
	}

	store, err := sink.NewFileStore(cfg.Sinks.CataloguePath, logger)
	var sinks []domain.SinkDescriptor
	if err == nil {
		sinks, err = store.List()
	}
	if err != nil {
		printFail("Sink catalogue", err.Error())
		failed++
	} else {
		printPass("Sink catalogue", fmt.Sprintf("%d sink(s) at %s", len(sinks), cfg.Sinks.CataloguePath))
		passed++
		factory := adapter.NewFactory(logger)
		for _, s := range sinks {
			if err := probeSink(factory, s); err != nil {
				printWarn("Sink: "+s.SinkID, err.Error())
				warned++
			} else {
				printPass("Sink: "+s.SinkID, s.SinkType+" reachable")
				passed++
			}
		}
	}

	if _, err := synth.NewFromConfig(cfg.Synthesizer, logger); err != nil {
		printFail("Synthesizer", err.Error())
		failed++
	} else {
		detail := cfg.Synthesizer.Default
		if len(cfg.Synthesizer.FailoverChain) > 0 {
			detail = strings.Join(cfg.Synthesizer.FailoverChain, " -> ")
		}
		printPass("Synthesizer", detail)
		passed++
	}

	if err := checkPort(cfg.Server.Bind); err != nil {
		printWarn("Server bind", fmt.Sprintf("%s not bindable (mesh already running?): %v", cfg.Server.Bind, err))
		warned++
	} else {
		printPass("Server bind", cfg.Server.Bind+" available")
		passed++
	}

	if cfg.Crawler.SourceURL != "" {
		if chromeAvailable() {
			printPass("Crawler", "live source configured: "+cfg.Crawler.SourceURL)
			passed++
		} else {
			printWarn("Crawler", "source URL set but no Chrome/Chromium found on PATH")
			warned++
		}
	}

	if cfg.Telegram.Enabled {
		printPass("Telegram", "enabled")
		passed++
	}

	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			printFail("Log file", fmt.Sprintf("directory not creatable: %v", err))
			failed++
		} else {
			printPass("Log file", cfg.General.LogFile)
			passed++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("━", 40))
	if failed == 0 && warned == 0 {
		fmt.Printf("All %d checks passed. The mesh is ready: querymesh serve\n", passed)
	} else {
		fmt.Printf("%d passed, %d warnings, %d failed\n", passed, warned, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printPass(name, detail string) {
	fmt.Printf("[PASS] %-20s %s\n", name, detail)
}

func printWarn(name, detail string) {
	fmt.Printf("[WARN] %-20s %s\n", name, detail)
}

func printFail(name, detail string) {
	fmt.Printf("[FAIL] %-20s %s\n", name, detail)
}

// checkDatabase opens the SQLite file the same way the stores do and
// round-trips a throwaway table.
func checkDatabase(path string) error {
	if path == "" {
		return fmt.Errorf("no path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("directory not creatable: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER)"); err != nil {
		return fmt.Errorf("cannot write: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE _doctor_test"); err != nil {
		return fmt.Errorf("cannot drop test table: %w", err)
	}
	return nil
}

// probeSink makes a best-effort connect/disconnect against one sink.
func probeSink(factory *adapter.Factory, s domain.SinkDescriptor) error {
	backend, err := factory.New(s.SinkType)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Connect(ctx, s.ConnectionRef); err != nil {
		return err
	}
	return backend.Disconnect()
}

func checkPort(bind string) error {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ln.Close()
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
