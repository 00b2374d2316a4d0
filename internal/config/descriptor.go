package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Descriptor is the user-facing form of the configuration as it appears in a
// project descriptor. Pointer fields distinguish "absent" from zero values so
// that Resolve only overrides what the user actually set.
type Descriptor struct {
	URLs                 []string       `yaml:"urls,omitempty" json:"urls,omitempty"`
	Overall              *float64       `yaml:"overall,omitempty" json:"overall,omitempty"`
	Budget               RawBudget      `yaml:"budget,omitempty" json:"budget,omitempty"`
	Verbose              *bool          `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	ShowAvailableMetrics *bool          `yaml:"showAvailableMetrics,omitempty" json:"showAvailableMetrics,omitempty"`
	TimeoutOverallMs     *int64         `yaml:"timeoutOverallMs,omitempty" json:"timeoutOverallMs,omitempty"`
	TimeoutPerSiteMs     *int64         `yaml:"timeoutPerSiteMs,omitempty" json:"timeoutPerSiteMs,omitempty"`
	Concurrency          *int           `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Engine               *string        `yaml:"engine,omitempty" json:"engine,omitempty"`
	NotApplicable        *string        `yaml:"notApplicable,omitempty" json:"notApplicable,omitempty"`
	Launcher             map[string]any `yaml:"launcher,omitempty" json:"launcher,omitempty"`
	Auditor              map[string]any `yaml:"auditor,omitempty" json:"auditor,omitempty"`
}

// RawEntry is an unvalidated budget line.
type RawEntry struct {
	Key   string
	Value any
}

// RawBudget keeps budget entries in descriptor order. A nil RawBudget means
// the descriptor had no budget key; an empty non-nil one means "no metrics".
type RawBudget []RawEntry

// UnmarshalYAML decodes a mapping node without losing key order.
func (b *RawBudget) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.AliasNode {
		value = value.Alias
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("budget: expected a mapping, got %s", nodeKind(value))
	}
	out := make(RawBudget, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		var decoded any
		if err := v.Decode(&decoded); err != nil {
			return fmt.Errorf("budget.%s: %w", k.Value, err)
		}
		out = append(out, RawEntry{Key: k.Value, Value: decoded})
	}
	*b = out
	return nil
}

// MarshalYAML writes the budget back as an ordered mapping.
func (b RawBudget) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range b {
		var v yaml.Node
		if err := v.Encode(e.Value); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Key}, &v)
	}
	return n, nil
}

// UnmarshalJSON decodes a JSON object token by token to keep key order.
func (b *RawBudget) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("budget: expected an object, got %v", tok)
	}
	out := RawBudget{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("budget.%s: %w", key, err)
		}
		out = append(out, RawEntry{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	*b = out
	return nil
}

// MarshalJSON writes the budget as an object in entry order.
func (b RawBudget) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar " + n.Value
	case yaml.DocumentNode:
		return "document"
	}
	return "unknown node"
}
