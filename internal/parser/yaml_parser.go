package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/studiowebux/orderstress/internal/types"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParseScenario parses a YAML, JSON or JSONC file containing order cases.
//
// Two shapes are accepted:
//
//	name: checkout-mix
//	orders:
//	  - name: single
//	    items: [{id: 1, quantity: 1}]
//
// or a bare list of order payloads, [[{"id":1,"quantity":1}], []].
// A list of {name, items} cases without the wrapping object also works.
func ParseScenario(filePath string) (*types.Scenario, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var scenario *types.Scenario
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jsonc":
		scenario, err = parseJSON(jsonc.ToJSON(data))
	case ".json":
		scenario, err = parseJSON(data)
	default:
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if scenario.Name == "" {
		base := filepath.Base(filePath)
		scenario.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := normalize(scenario); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return scenario, nil
}

// parseJSON parses JSON format
func parseJSON(data []byte) (*types.Scenario, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty scenario file")
	}

	if trimmed[0] == '{' {
		var scenario types.Scenario
		if err := json.Unmarshal(trimmed, &scenario); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return &scenario, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	scenario := &types.Scenario{}
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '{' {
			var c types.OrderCase
			if err := json.Unmarshal(elem, &c); err != nil {
				return nil, fmt.Errorf("failed to parse order %d: %w", i+1, err)
			}
			scenario.Orders = append(scenario.Orders, c)
			continue
		}
		var items types.Order
		if err := json.Unmarshal(elem, &items); err != nil {
			return nil, fmt.Errorf("failed to parse order %d: %w", i+1, err)
		}
		scenario.Orders = append(scenario.Orders, types.OrderCase{Items: items})
	}
	return scenario, nil
}

// parseYAML parses YAML format (which also handles JSON)
func parseYAML(data []byte) (*types.Scenario, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("empty scenario file")
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		var scenario types.Scenario
		if err := doc.Decode(&scenario); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return &scenario, nil

	case yaml.SequenceNode:
		scenario := &types.Scenario{}
		for i, elem := range doc.Content {
			if elem.Kind == yaml.MappingNode {
				var c types.OrderCase
				if err := elem.Decode(&c); err != nil {
					return nil, fmt.Errorf("failed to parse order %d: %w", i+1, err)
				}
				scenario.Orders = append(scenario.Orders, c)
				continue
			}
			var items types.Order
			if err := elem.Decode(&items); err != nil {
				return nil, fmt.Errorf("failed to parse order %d: %w", i+1, err)
			}
			scenario.Orders = append(scenario.Orders, types.OrderCase{Items: items})
		}
		return scenario, nil

	default:
		return nil, fmt.Errorf("scenario must be a mapping or a list, got %s", kindName(doc.Kind))
	}
}

// normalize names unnamed cases and rejects scenarios without orders
func normalize(s *types.Scenario) error {
	if len(s.Orders) == 0 {
		return fmt.Errorf("scenario %q has no orders", s.Name)
	}
	for i := range s.Orders {
		if s.Orders[i].Name == "" {
			s.Orders[i].Name = fmt.Sprintf("order-%d", i+1)
		}
	}
	return nil
}

// MarshalScenario renders a scenario as yaml or json
func MarshalScenario(s *types.Scenario, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(s, "", "  ")
	case "yaml", "":
		return yaml.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (yaml/json)", format)
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("kind %d", k)
	}
}
