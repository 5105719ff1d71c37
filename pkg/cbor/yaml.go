package cbor

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// undefinedTag marks an Undefined value in YAML documents.
const undefinedTag = "!undefined"

var _ yaml.Marshaler = Value{}

// ParseYAML builds a Value from a YAML (or JSON) document. Mapping key order
// is preserved, !!binary scalars become byte strings and the !undefined tag
// produces Undefined.
func ParseYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode converts a parsed YAML node into a Value.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := FromYAMLNode(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: map keys must be scalars", k.Line)
			}
			v, err := FromYAMLNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, Pair{Key: k.Value, Value: v})
		}
		return Map(pairs...), nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func scalarFromYAML(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case undefinedTag:
		return Undefined(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return Value{}, fmt.Errorf("line %d: invalid !!binary: %w", n.Line, err)
		}
		return Bytes(b), nil
	default:
		return Text(n.Value), nil
	}
}

// MarshalYAML implements yaml.Marshaler. Maps become ordered mapping nodes.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.yamlNode(), nil
}

func (v Value) yamlNode() *yaml.Node {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}
	switch v.kind {
	case KindUndefined:
		return scalar(undefinedTag, "")
	case KindBool:
		return scalar("!!bool", strconv.FormatBool(v.b))
	case KindInt:
		return scalar("!!int", strconv.FormatInt(v.i, 10))
	case KindFloat:
		switch {
		case math.IsNaN(v.f):
			return scalar("!!float", ".nan")
		case math.IsInf(v.f, 1):
			return scalar("!!float", ".inf")
		case math.IsInf(v.f, -1):
			return scalar("!!float", "-.inf")
		}
		return scalar("!!float", formatFloat(v.f))
	case KindBytes:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(v.raw))
	case KindText:
		return scalar("!!str", v.s)
	case KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.items {
			n.Content = append(n.Content, item.yamlNode())
		}
		return n
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, p := range v.pairs {
			n.Content = append(n.Content, scalar("!!str", p.Key), p.Value.yamlNode())
		}
		return n
	default:
		return scalar("!!null", "null")
	}
}
