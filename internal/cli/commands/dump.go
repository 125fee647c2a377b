package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/leapstack-labs/structkit/pkg/container"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Dump formats.
const (
	DumpJSON = "json"
	DumpYAML = "yaml"
)

// NewDumpCommand creates the dump command.
func NewDumpCommand() *cobra.Command {
	var (
		format    string
		blockType string
	)

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the decoded blocks of a container file",
		Long: `Decode every block of a container file and print its contents.

Struct payloads are printed field by field in schema order, with abstract
fields tagged by their concrete struct under "_type". Raw payloads are
printed as text. Helper expressions are not evaluated, so the values shown
are the decoded ones.`,
		Example: `  # Dump all blocks as JSON
  structctl dump scene.bin

  # Dump only DATA blocks as YAML
  structctl dump scene.bin --format yaml --type DATA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, args[0], format, blockType)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", DumpJSON, "Output format (json|yaml)")
	cmd.Flags().StringVarP(&blockType, "type", "t", "", "Only dump blocks of this type")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{DumpJSON, DumpYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runDump(cmd *cobra.Command, path, format, blockType string) error {
	if format != DumpJSON && format != DumpYAML {
		return fmt.Errorf("invalid format %q (want %s or %s)", format, DumpJSON, DumpYAML)
	}
	cmdCtx := NewCommandContext(cmd)

	reg, err := cmdCtx.Registry(nstruct.WithExpressions(false))
	if err != nil {
		return err
	}
	f, _, err := cmdCtx.readContainer(reg, path)
	if err != nil {
		return err
	}

	blocks := f.Blocks
	if blockType != "" {
		blocks = f.BlocksOfType(blockType)
	}
	entries := make([]*nstruct.OrderedMap, 0, len(blocks))
	for i, b := range blocks {
		entry, err := dumpBlock(f, b)
		if err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Type, err)
		}
		entries = append(entries, entry)
	}

	if format == DumpYAML {
		return writeYAML(cmd.OutOrStdout(), entries)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func dumpBlock(f *container.File, b container.Block) (*nstruct.OrderedMap, error) {
	entry := nstruct.NewOrderedMap()
	entry.Set("type", b.Type)
	switch p := b.Payload.(type) {
	case container.RawPayload:
		entry.Set("raw", p.Text())
	case container.StructPayload:
		entry.Set("struct", blockStruct(f, b))
		v, err := f.Registry.ToValue(p.Object)
		if err != nil {
			return nil, err
		}
		entry.Set("value", v)
	}
	return entry, nil
}

// writeYAML encodes entries keeping the field order of ordered maps.
func writeYAML(w io.Writer, entries []*nstruct.OrderedMap) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range entries {
		seq.Content = append(seq.Content, yamlNode(e))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

func yamlNode(v any) *yaml.Node {
	switch v := v.(type) {
	case *nstruct.OrderedMap:
		if v == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range v.Keys {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: k},
				yamlNode(v.Values[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range v {
			n.Content = append(n.Content, yamlNode(e))
		}
		return n
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(v)}
	}
	return n
}
