package config

import "github.com/leapstack-labs/structkit/pkg/container"

// Default configuration values.
const (
	DefaultMagic     = container.DefaultMagic
	DefaultByteOrder = ByteOrderLittle
	DefaultMajor     = 1
)

// Byte order names.
const (
	ByteOrderLittle = "little"
	ByteOrderBig    = "big"
)

// Defaults returns the flattened default values of a CodecConfig, keyed
// the way koanf loads them under prefix.
func Defaults(prefix string) map[string]any {
	return map[string]any{
		prefix + "magic":            DefaultMagic,
		prefix + "version.major":    DefaultMajor,
		prefix + "version.minor":    0,
		prefix + "version.micro":    0,
		prefix + "byte_order":       DefaultByteOrder,
		prefix + "strict_iterators": true,
		prefix + "expressions":      true,
	}
}

// DefaultCodecConfig returns a CodecConfig holding the defaults.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		Magic:           DefaultMagic,
		Version:         VersionConfig{Major: DefaultMajor},
		ByteOrder:       DefaultByteOrder,
		StrictIterators: true,
		Expressions:     true,
	}
}

// ApplyDefaults fills empty values of c.
func (c *CodecConfig) ApplyDefaults() {
	if c.Magic == "" {
		c.Magic = DefaultMagic
	}
	if c.ByteOrder == "" {
		c.ByteOrder = DefaultByteOrder
	}
	if c.Version == (VersionConfig{}) {
		c.Version.Major = DefaultMajor
	}
}
