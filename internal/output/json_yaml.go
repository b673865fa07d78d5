package output

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// JSONFormatter writes the report as indented JSON.
type JSONFormatter struct{}

func (JSONFormatter) Name() string { return "json" }

func (JSONFormatter) Format(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// YAMLFormatter writes the report as YAML. The document goes through the
// JSON encoding first, so year indexes and decimals keep their JSON shape and
// field order.
type YAMLFormatter struct{}

func (YAMLFormatter) Name() string { return "yaml" }

func (YAMLFormatter) Format(report *Report) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return out, nil
}

// clearStyle drops the flow and quoting styles inherited from JSON.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
