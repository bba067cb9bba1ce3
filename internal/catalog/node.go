package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type nodeKind int

const (
	kindNull nodeKind = iota
	kindScalar
	kindString
	kindList
	kindMap
)

func (k nodeKind) String() string {
	switch k {
	case kindScalar:
		return "scalar"
	case kindString:
		return "string"
	case kindList:
		return "list"
	case kindMap:
		return "mapping"
	default:
		return "null"
	}
}

// node is a decoded document that keeps mapping key order. Both the JSON and
// the YAML front ends produce it.
type node struct {
	kind  nodeKind
	value any // scalars and strings
	items []*node
	keys  []string
	vals  []*node
}

func (n *node) get(key string) *node {
	if n == nil || n.kind != kindMap {
		return nil
	}
	for i, k := range n.keys {
		if k == key {
			return n.vals[i]
		}
	}
	return nil
}

func (n *node) str() (string, bool) {
	if n == nil || n.kind != kindString {
		return "", false
	}
	s, ok := n.value.(string)
	return s, ok
}

// toAny converts the node into plain Go values for schema validation.
func (n *node) toAny() any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case kindList:
		out := make([]any, len(n.items))
		for i, it := range n.items {
			out[i] = it.toAny()
		}
		return out
	case kindMap:
		out := make(map[string]any, len(n.keys))
		for i, k := range n.keys {
			out[k] = n.vals[i].toAny()
		}
		return out
	default:
		return n.value
	}
}

func decodeJSON(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return n, nil
}

func decodeJSONValue(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			n := &node{kind: kindList}
			for dec.More() {
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, child)
			}
			_, err := dec.Token()
			return n, err
		case '{':
			n := &node{kind: kindMap}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				child, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.vals = append(n.vals, child)
			}
			_, err := dec.Token()
			return n, err
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return &node{kind: kindString, value: t}, nil
	case nil:
		return &node{kind: kindNull}, nil
	default:
		return &node{kind: kindScalar, value: t}, nil
	}
}

func decodeYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return &node{kind: kindNull}, nil
	}
	return fromYAML(&doc)
}

func fromYAML(y *yaml.Node) (*node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &node{kind: kindNull}, nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.SequenceNode:
		n := &node{kind: kindList}
		for _, c := range y.Content {
			child, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
		return n, nil
	case yaml.MappingNode:
		n := &node{kind: kindMap}
		for i := 0; i+1 < len(y.Content); i += 2 {
			child, err := fromYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			n.keys = append(n.keys, y.Content[i].Value)
			n.vals = append(n.vals, child)
		}
		return n, nil
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!str":
			return &node{kind: kindString, value: y.Value}, nil
		case "!!null":
			return &node{kind: kindNull}, nil
		}
		var v any
		if err := y.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", y.Line, err)
		}
		return &node{kind: kindScalar, value: v}, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", y.Line, y.Kind)
}
