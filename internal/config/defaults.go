package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.querymesh",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Bind:             "127.0.0.1:8700",
			RequestTimeoutS:  10,
			ShutdownTimeoutS: 10,
		},
		Sinks: SinksConfig{
			CataloguePath: "", // filled from dataDir
		},
		Synthesizer: SynthesizerConfig{
			Default: "rule",
			Providers: map[string]ProviderConfig{
				"rule": {Kind: "rule"},
			},
		},
		Auth: AuthConfig{
			TokenTTLS: 3600,
			Accounts: []Account{
				{Username: "admin", Password: "secret"},
				{Username: "user", Password: "pass"},
			},
		},
		Crawler: CrawlerConfig{
			BrowserTimeoutS: 20,
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
	}
}
