package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Backup  BackupConfig      `yaml:"backup"`
	Vault   VaultConfig       `yaml:"vault"`
	Catalog CatalogConfig     `yaml:"catalog"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	return c.Catalog.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the listen settings of the serve mode.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BackupConfig holds the backup root and packaging settings.
//
// Recipients are the public keys every archive is encrypted for. They are
// always passed explicitly into the archive build; nothing reads them from
// process-wide state.
type BackupConfig struct {
	Root                 string   `yaml:"root"`
	ScratchDir           string   `yaml:"scratch_dir"`
	Recipients           []string `yaml:"recipients"`
	EncryptCmd           string   `yaml:"encrypt_cmd"`
	WatchDebounceSeconds int      `yaml:"watch_debounce_seconds"`
}

// WatchDebounce returns the settle window of the watch mode.
func (c *BackupConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceSeconds) * time.Second
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Recipients, validation.Required, validation.Length(1, 0)),
		validation.Field(&c.WatchDebounceSeconds, validation.Min(1)),
	)
}

// VaultConfig holds the remote cold-storage vault settings.
type VaultConfig struct {
	Region              string `yaml:"region"`
	Name                string `yaml:"name"`
	AccountID           string `yaml:"account_id"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	PollMaxAttempts     int    `yaml:"poll_max_attempts"`
}

// PollInterval returns the delay between job-status polls.
func (c *VaultConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.PollIntervalSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.PollMaxAttempts, validation.Required, validation.Min(1)),
	)
}

// CatalogConfig holds the local inventory catalog settings.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Backup: BackupConfig{
			Root:                 "./backup",
			ScratchDir:           "",
			EncryptCmd:           "",
			WatchDebounceSeconds: 30,
		},
		Vault: VaultConfig{
			Region:              "eu-west-1",
			PollIntervalSeconds: 900,
			PollMaxAttempts:     32,
		},
		Catalog: CatalogConfig{
			Path: "./isaz.db",
		},
	}
}
