package config

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/structkit/pkg/container"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
)

// ParseByteOrder maps a byte order name to its binary.ByteOrder.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case ByteOrderLittle, "le", "":
		return binary.LittleEndian, nil
	case ByteOrderBig, "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q (want %s or %s)", name, ByteOrderLittle, ByteOrderBig)
}

// Validate checks the codec settings.
func (c *CodecConfig) Validate() error {
	if len(c.Magic) != 4 {
		return fmt.Errorf("magic %q must be 4 bytes", c.Magic)
	}
	for i := 0; i < len(c.Magic); i++ {
		if c.Magic[i] >= 0x80 {
			return fmt.Errorf("magic %q must be ASCII", c.Magic)
		}
	}
	for _, t := range c.BlockTypes {
		if len(t) != 4 {
			return fmt.Errorf("block type %q must be 4 bytes", t)
		}
	}
	_, err := ParseByteOrder(c.ByteOrder)
	return err
}

// RegistryOptions returns the nstruct options c describes.
func (c *CodecConfig) RegistryOptions(logger *slog.Logger) ([]nstruct.Option, error) {
	order, err := ParseByteOrder(c.ByteOrder)
	if err != nil {
		return nil, err
	}
	return []nstruct.Option{
		nstruct.WithLogger(logger),
		nstruct.WithByteOrder(order),
		nstruct.WithStrictIterators(c.StrictIterators),
		nstruct.WithExpressions(c.Expressions),
	}, nil
}

// ContainerOptions returns the container options c describes.
func (c *CodecConfig) ContainerOptions() []container.Option {
	opts := []container.Option{
		container.WithMagic(c.Magic),
		container.WithVersion(container.Version{
			Major: c.Version.Major,
			Minor: c.Version.Minor,
			Micro: c.Version.Micro,
		}),
	}
	if len(c.BlockTypes) > 0 {
		opts = append(opts, container.WithBlockTypes(c.BlockTypes...))
	}
	return opts
}
