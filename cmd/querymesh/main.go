package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"querymesh/internal/config"
	"querymesh/internal/domain"
	"querymesh/internal/sink"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "querymesh",
		Short: "QueryMesh: an agent mesh that plans and serves data queries",
		Long:  "QueryMesh hosts a mesh of envelope-speaking agents: an agent registry, a sink catalogue, a query planner, a records agent and the chat front door over them.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: $QUERYMESH_CONFIG or ~/.querymesh/config.json)")

	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from the --config flag, the
// QUERYMESH_CONFIG environment variable, or the default location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("QUERYMESH_CONFIG"); env != "" {
		return env
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, data directory and starter catalogues",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s; delete it or point --config elsewhere", cfgPath)
			}

			cfg := config.Defaults()
			cfg.General.DataDir = config.ExpandPath(cfg.General.DataDir)
			dataDir := cfg.General.DataDir
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			cfg.Registry.DBPath = filepath.Join(dataDir, "registry.db")
			cfg.Registry.SeedManifest = filepath.Join(dataDir, "agents.yaml")
			cfg.Sinks.CataloguePath = filepath.Join(dataDir, "sinks.json")
			cfg.Records.DatabaseFilePath = filepath.Join(dataDir, "records.db")

			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := writeStarterManifest(cfg.Registry.SeedManifest); err != nil {
				return err
			}
			if err := writeStarterCatalogue(cfg.Sinks.CataloguePath, cfg.Records.DatabaseFilePath); err != nil {
				return err
			}

			logger.Info("initialized", "config", cfgPath, "data", dataDir)
			logger.Info("next", "serve", "querymesh serve", "chat", "querymesh chat")
			return nil
		},
	}
}

const starterManifest = `# Seed manifest for extra agent cards registered at startup.
# The agents this process hosts are registered automatically; list
# agents living on other hosts here so local callers can discover them.
#
# agents:
#   - name: remote_warehouse
#     description: Warehouse query agent on another host
#     internal_address: ${WAREHOUSE_BASE:-http://10.0.0.5:8700}/agents/remote_warehouse/a2a
agents: []
`

func writeStarterManifest(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(starterManifest), 0o644)
}

// writeStarterCatalogue registers the demo sink over the records
// database, through the FileStore so the file shape always matches.
func writeStarterCatalogue(path, recordsDB string) error {
	store, err := sink.NewFileStore(path, logger)
	if err != nil {
		return err
	}
	return store.Register(domain.SinkDescriptor{
		SinkID:      "records",
		Name:        "Candidate records",
		Description: "Local candidate database owned by the records agent",
		SinkType:    "sqlite",
		ConnectionRef: map[string]any{
			"database_file_path": recordsDB,
		},
		QueryCapabilityRef:  "records_agent.execute_query",
		SchemaCapabilityRef: "records_agent.get_schema",
	})
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.bind)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. synthesizer.default rule)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values, secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, paths[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
