package gatewire

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader merges one or more YAML configuration documents into a single
// tree before decoding, following the overlay rules of pandora's
// configuration crate: later files win for scalars and Option-style
// fields, composite (mapping) fields merge recursively, sequence fields
// append, and map-keyed collections merge entry-by-entry by key. Unknown
// fields in the final decode are a hard error.
type Loader struct {
	merged *yaml.Node
}

// NewLoader creates an empty Loader.
func NewLoader() *Loader { return &Loader{} }

// LoadFile reads path and merges it into the accumulated document.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return l.LoadBytes(path, data)
}

// LoadBytes parses data as YAML and merges it into the accumulated
// document. name is used only for error messages.
func (l *Loader) LoadBytes(name string, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config %s: %w", name, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]

	if l.merged == nil {
		l.merged = root
		return nil
	}

	merged, err := mergeNodes(l.merged, root)
	if err != nil {
		return fmt.Errorf("merging config %s: %w", name, err)
	}
	l.merged = merged
	return nil
}

// Decode strictly unmarshals the merged document into v, rejecting
// unknown fields the way a Rust serde(deny_unknown_fields) struct would.
func (l *Loader) Decode(v any) error {
	if l.merged == nil {
		return nil
	}
	dec := nodeDecoder(l.merged)
	dec.KnownFields(true)
	return dec.Decode(v)
}

func nodeDecoder(n *yaml.Node) *yaml.Decoder {
	data, err := yaml.Marshal(n)
	if err != nil {
		// A node produced by yaml.Unmarshal always re-marshals; treat failure
		// as impossible in practice, but don't panic in a library.
		data = []byte{}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	return dec
}

// mergeNodes merges incoming "over" base per field kind:
//   - mapping over mapping: recursive per-key merge (new keys appended,
//     existing keys merged/overwritten in place)
//   - sequence over sequence: base's items followed by incoming's
//     (append, not replace)
//   - anything else: incoming replaces base (scalars and type mismatches)
func mergeNodes(base, incoming *yaml.Node) (*yaml.Node, error) {
	if base.Kind == yaml.MappingNode && incoming.Kind == yaml.MappingNode {
		return mergeMappings(base, incoming)
	}
	if base.Kind == yaml.SequenceNode && incoming.Kind == yaml.SequenceNode {
		out := *base
		out.Content = append(append([]*yaml.Node(nil), base.Content...), incoming.Content...)
		return &out, nil
	}
	return incoming, nil
}

func mergeMappings(base, incoming *yaml.Node) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: base.Tag}
	index := make(map[string]int)

	for i := 0; i+1 < len(base.Content); i += 2 {
		key := base.Content[i]
		out.Content = append(out.Content, key, base.Content[i+1])
		index[key.Value] = len(out.Content) - 2
	}

	for i := 0; i+1 < len(incoming.Content); i += 2 {
		key := incoming.Content[i]
		val := incoming.Content[i+1]
		if pos, ok := index[key.Value]; ok {
			merged, err := mergeNodes(out.Content[pos+1], val)
			if err != nil {
				return nil, err
			}
			out.Content[pos+1] = merged
			continue
		}
		out.Content = append(out.Content, key, val)
		index[key.Value] = len(out.Content) - 2
	}

	return out, nil
}
