// Package config provides configuration management for the structctl CLI.
//
// It extends the shared codec settings from internal/config with
// CLI-specific fields: logging, output mode and the catalog location.
package config

import sharedcfg "github.com/leapstack-labs/structkit/internal/config"

// CodecConfig is an alias for the shared codec configuration.
type CodecConfig = sharedcfg.CodecConfig

// Config holds all CLI configuration options.
type Config struct {
	Codec        CodecConfig `koanf:"codec"`
	Schemas      []string    `koanf:"schemas"`
	LogLevel     string      `koanf:"log_level"`
	Verbose      bool        `koanf:"verbose"`
	OutputFormat string      `koanf:"output"`
	CatalogPath  string      `koanf:"catalog_path"`

	// ProjectRoot is where relative paths resolve from. Not loaded from
	// the config file.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultLogLevel    = "warn"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultCatalogPath = ".structkit/catalog.db"
)

// Output modes.
var outputModes = []string{"auto", "text", "markdown", "json"}

// Log levels accepted by log_level.
var logLevels = []string{"debug", "info", "warn", "error"}
