package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultFolder = "INBOX"

	// defaultSnippetBytes is enough of most bodies to derive a snippet.
	defaultSnippetBytes = 256
)

type Config struct {
	SyncInterval    time.Duration   `yaml:"sync_interval"`     // Interval between folder synchronizations.
	SyncTaskTimeout time.Duration   `yaml:"sync_task_timeout"` // Timeout for a single synchronization run.
	LogLevel        int             `yaml:"log_level"`         // Logging level (e.g., -4: debug, 0: info, etc.).
	Accounts        []AccountConfig `yaml:"accounts"`          // Accounts to synchronize.
}

type AccountConfig struct {
	Address        string   `yaml:"address"`         // IMAP server address (host:port), TLS only.
	Login          string   `yaml:"login"`           // Account username.
	Password       string   `yaml:"password"`        // Account password.
	Folders        []string `yaml:"folders"`         // Folders to synchronize, INBOX by default.
	SnippetBytes   ByteSize `yaml:"snippet_bytes"`   // Bytes fetched per message to build snippets.
	DownloadBodies bool     `yaml:"download_bodies"` // Whether to download complete bodies right after sync.
	MaxBodyBytes   ByteSize `yaml:"max_body_bytes"`  // Per message limit for body downloads, 0 for none.
}

// ByteSize is a byte count written in human form in the config, e.g. "32kB".
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode byte size: %w", err)
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("line %d: parse byte size %q: %w", node.Line, raw, err)
	}

	*b = ByteSize(n)
	return nil
}

func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}

func LoadConfig(cfgFilepath, envFilepath string) (Config, error) {
	var cfg Config

	if envFilepath != "" {
		if _, err := os.Stat(envFilepath); err == nil {
			if err = godotenv.Load(envFilepath); err != nil {
				return cfg, fmt.Errorf("unable to load environment variables from file: %w", err)
			}
		}
	}

	//nolint:gosec
	fileBytes, err := os.ReadFile(cfgFilepath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("configuration file at this cfgFilepath doesn't exist: %w", err)
		case errors.Is(err, os.ErrPermission):
			return cfg, fmt.Errorf("permission denied for accessing configuration file: %w", err)
		default:
			return cfg, fmt.Errorf("unexpected error during reading configuration file: %w", err)
		}
	}

	cfg, err = Parse(fileBytes)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Parse decodes configuration content, expanding ${VAR} references from the
// environment, applies defaults and validates the result.
func Parse(content []byte) (Config, error) {
	var cfg Config

	envExpanded := os.ExpandEnv(string(content))
	if err := yaml.Unmarshal([]byte(envExpanded), &cfg); err != nil {
		return cfg, fmt.Errorf("unable to unmarshal configuration file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if len(acc.Folders) == 0 {
			acc.Folders = []string{defaultFolder}
		}
		if acc.SnippetBytes == 0 {
			acc.SnippetBytes = defaultSnippetBytes
		}
	}
}

func (c *Config) validate() error {
	if c.SyncInterval <= 0 {
		return errors.New("sync_interval must be larger than 0")
	}
	if len(c.Accounts) == 0 {
		return errors.New("no accounts configured")
	}

	for i, acc := range c.Accounts {
		if acc.Address == "" {
			return fmt.Errorf("account %d: address is required", i)
		}
		if acc.Login == "" {
			return fmt.Errorf("account %d: login is required", i)
		}
	}

	return nil
}
