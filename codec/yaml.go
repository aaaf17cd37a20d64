package codec

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	dynamap "github.com/reoring/dynamap"
	"github.com/reoring/dynamap/pmap"
)

// The YAML codec works on yaml.Node trees so that local tags (!name) survive
// both directions; they carry the schema tag the same way ~# wrappers do in
// JSON.

// DecodeYAML decodes a YAML document into the map domain.
func DecodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: err.Error(), Cause: err}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return fromYAMLNode(doc.Content[0])
}

// DecodeYAMLMap decodes a YAML document whose top level must be a mapping and
// returns its backing map.
func DecodeYAMLMap(data []byte) (pmap.Map, error) {
	v, err := DecodeYAML(data)
	if err != nil {
		return pmap.Empty(), err
	}
	switch t := v.(type) {
	case pmap.Map:
		return t, nil
	case backed:
		return t.Map(), nil
	default:
		return pmap.Empty(), dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: "expected a top-level mapping"}}
	}
}

func fromYAMLNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	case yaml.MappingNode:
		m := pmap.Empty()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m = m.Assoc(n.Content[i].Value, v)
		}
		if tag := localTag(n.Tag); tag != "" {
			m = m.WithMeta(dynamap.MetaTagKey, tag)
			if inst, registered := dynamap.WrapTagged(tag, m); registered {
				return inst, nil
			}
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n), nil
	default:
		return nil, dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: fmt.Sprintf("unsupported yaml node kind %d", n.Kind)}}
	}
}

func localTag(tag string) string {
	if strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!") {
		return strings.TrimPrefix(tag, "!")
	}
	return ""
}

func scalarFromYAML(n *yaml.Node) any {
	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return b
		}
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i
		}
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return f
		}
	}
	return n.Value
}

// EncodeYAML encodes a map-domain value as YAML, emitting a local tag for
// tagged maps.
func EncodeYAML(v any) ([]byte, error) {
	node, err := toYAMLNode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func toYAMLNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case pmap.Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var nerr error
		t.Range(func(k string, val any) bool {
			vn, err := toYAMLNode(val)
			if err != nil {
				nerr = err
				return false
			}
			kn := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			node.Content = append(node.Content, kn, vn)
			return true
		})
		if nerr != nil {
			return nil, nerr
		}
		if tag, ok := t.MetaValue(dynamap.MetaTagKey); ok {
			if ts, isStr := tag.(string); isStr {
				node.Tag = "!" + ts
			}
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			en, err := toYAMLNode(e)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, en)
		}
		return node, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(t, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(t, 'g', -1, 64)}, nil
	default:
		if b, ok := v.(backed); ok {
			return toYAMLNode(b.Map())
		}
		return nil, dynamap.Issues{dynamap.Issue{Path: "/", Code: dynamap.CodeParseError, Message: fmt.Sprintf("cannot encode %T as yaml", v)}}
	}
}
