// Package config provides shared configuration types for structkit.
// It is decoupled from CLI concerns so library callers can load the same
// project file the CLI reads.
package config

// ProjectConfig is the part of structkit.yaml shared by every tool.
type ProjectConfig struct {
	Codec   CodecConfig `koanf:"codec"`
	Schemas []string    `koanf:"schemas"` // schema files describing the project's structs
}

// CodecConfig controls how registries and containers encode data.
type CodecConfig struct {
	Magic           string        `koanf:"magic"`
	Version         VersionConfig `koanf:"version"`
	ByteOrder       string        `koanf:"byte_order"` // little or big
	StrictIterators bool          `koanf:"strict_iterators"`
	Expressions     bool          `koanf:"expressions"`
	BlockTypes      []string      `koanf:"block_types"`
}

// VersionConfig is the file format version written into headers.
type VersionConfig struct {
	Major uint16 `koanf:"major"`
	Minor uint8  `koanf:"minor"`
	Micro uint8  `koanf:"micro"`
}
