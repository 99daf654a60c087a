package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for QueryMesh.
type Config struct {
	General     GeneralConfig     `json:"general"`
	Server      ServerConfig      `json:"server"`
	Registry    RegistryConfig    `json:"registry"`
	Sinks       SinksConfig       `json:"sinks"`
	Synthesizer SynthesizerConfig `json:"synthesizer"`
	Auth        AuthConfig        `json:"auth"`
	Crawler     CrawlerConfig     `json:"crawler"`
	Telegram    TelegramConfig    `json:"telegram"`
	Records     RecordsConfig     `json:"records"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"`
}

type ServerConfig struct {
	Bind             string `json:"bind"`
	BaseURL          string `json:"baseUrl,omitempty"` // externally reachable base, defaults to http://<bind>
	RequestTimeoutS  int    `json:"requestTimeoutSeconds"`
	ShutdownTimeoutS int    `json:"shutdownTimeoutSeconds"`
}

type RegistryConfig struct {
	DBPath       string `json:"dbPath"`
	SeedManifest string `json:"seedManifest,omitempty"`
}

type SinksConfig struct {
	CataloguePath string `json:"cataloguePath"`
}

// SynthesizerConfig selects the query-synthesis providers. FailoverChain
// is tried in order; empty means just the default provider.
type SynthesizerConfig struct {
	Default       string                    `json:"default"`
	FailoverChain []string                  `json:"failoverChain,omitempty"`
	Providers     map[string]ProviderConfig `json:"providers"`
}

type ProviderConfig struct {
	Kind     string `json:"kind"` // "rule" | "openai" | "anthropic"
	BaseURL  string `json:"baseUrl,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model,omitempty"`
	TimeoutS int    `json:"timeoutSeconds,omitempty"`
}

type AuthConfig struct {
	TokenTTLS int       `json:"tokenTtlSeconds"`
	Accounts  []Account `json:"accounts"`
}

type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CrawlerConfig struct {
	SourceURL       string `json:"sourceUrl,omitempty"` // when set, live page fetch is available
	BrowserTimeoutS int    `json:"browserTimeoutSeconds,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token,omitempty"`
	AllowFrom FlexStringList `json:"allowFrom,omitempty"`
}

type RecordsConfig struct {
	DatabaseFilePath string `json:"databaseFilePath"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.querymesh).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".querymesh"
	}
	return filepath.Join(home, ".querymesh")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Registry.DBPath = ExpandPath(cfg.Registry.DBPath)
	cfg.Registry.SeedManifest = ExpandPath(cfg.Registry.SeedManifest)
	cfg.Sinks.CataloguePath = ExpandPath(cfg.Sinks.CataloguePath)
	cfg.Records.DatabaseFilePath = ExpandPath(cfg.Records.DatabaseFilePath)

	applyDataDir(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDataDir fills path fields that were left empty with their
// conventional location under general.dataDir.
func applyDataDir(cfg *Config) {
	dd := cfg.General.DataDir
	if dd == "" {
		return
	}
	if cfg.Registry.DBPath == "" {
		cfg.Registry.DBPath = filepath.Join(dd, "registry.db")
	}
	if cfg.Sinks.CataloguePath == "" {
		cfg.Sinks.CataloguePath = filepath.Join(dd, "sinks.json")
	}
	if cfg.Records.DatabaseFilePath == "" {
		cfg.Records.DatabaseFilePath = filepath.Join(dd, "records.db")
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.DataDir == "" {
		errs = append(errs, "general.dataDir must be set")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Bind == "" {
		errs = append(errs, "server.bind must be set (host:port)")
	} else if _, port, ok := strings.Cut(cfg.Server.Bind, ":"); !ok {
		errs = append(errs, "server.bind must be host:port")
	} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		errs = append(errs, "server.bind port must be between 0 and 65535")
	}
	if cfg.Server.RequestTimeoutS < 1 {
		errs = append(errs, "server.requestTimeoutSeconds must be >= 1")
	}
	if cfg.Server.ShutdownTimeoutS < 1 {
		errs = append(errs, "server.shutdownTimeoutSeconds must be >= 1")
	}

	if cfg.Synthesizer.Default != "" {
		if _, ok := cfg.Synthesizer.Providers[cfg.Synthesizer.Default]; !ok {
			errs = append(errs, fmt.Sprintf("synthesizer.default references unknown provider: %s", cfg.Synthesizer.Default))
		}
	}
	for _, name := range cfg.Synthesizer.FailoverChain {
		if _, ok := cfg.Synthesizer.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("synthesizer.failoverChain references unknown provider: %s", name))
		}
	}
	for name, pc := range cfg.Synthesizer.Providers {
		switch pc.Kind {
		case "rule":
			// no endpoint needed
		case "openai", "anthropic":
			if pc.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("synthesizer.providers.%s: baseUrl is required for kind %s", name, pc.Kind))
			}
		default:
			errs = append(errs, fmt.Sprintf("synthesizer.providers.%s: unknown kind %q", name, pc.Kind))
		}
	}

	if cfg.Auth.TokenTTLS < 1 {
		errs = append(errs, "auth.tokenTtlSeconds must be >= 1")
	}
	for i, acct := range cfg.Auth.Accounts {
		if acct.Username == "" || acct.Password == "" {
			errs = append(errs, fmt.Sprintf("auth.accounts[%d]: username and password must be set", i))
		}
	}

	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required when telegram.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
