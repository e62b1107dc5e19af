package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/studiowebux/orderstress/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseScenario_YAMLObject(t *testing.T) {
	path := writeFile(t, "mix.yaml", `
name: checkout-mix
orders:
  - name: single
    items:
      - {id: 1, quantity: 1}
  - name: empty
    items: []
  - items:
      - {id: 2, quantity: 3}
      - {id: 3, quantity: 2}
`)

	s, err := ParseScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "checkout-mix", s.Name)
	require.Len(t, s.Orders, 3)
	assert.Equal(t, "single", s.Orders[0].Name)
	assert.Equal(t, types.Order{{ID: 1, Quantity: 1}}, s.Orders[0].Items)
	assert.Empty(t, s.Orders[1].Items)
	assert.Equal(t, "order-3", s.Orders[2].Name)
	assert.Len(t, s.Orders[2].Items, 2)
}

func TestParseScenario_YAMLBarePayloads(t *testing.T) {
	path := writeFile(t, "payloads.yml", `
- [{id: 1, quantity: 1}]
- []
- [{id: 1, quantity: -1}]
`)

	s, err := ParseScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "payloads", s.Name)
	require.Len(t, s.Orders, 3)
	assert.Equal(t, "order-2", s.Orders[1].Name)
	assert.Empty(t, s.Orders[1].Items)
	assert.Equal(t, -1, s.Orders[2].Items[0].Quantity)
}

func TestParseScenario_JSONBarePayloads(t *testing.T) {
	path := writeFile(t, "orders.json", `[
		[{"id": 1, "quantity": 1}],
		[{"id": 2, "quantity": 3}, {"id": 3, "quantity": 2}],
		[]
	]`)

	s, err := ParseScenario(path)
	require.NoError(t, err)
	require.Len(t, s.Orders, 3)
	assert.Equal(t, `[{"id":2,"quantity":3},{"id":3,"quantity":2}]`, s.Orders[1].Items.String())
	assert.Equal(t, "[]", s.Orders[2].Items.String())
}

func TestParseScenario_JSONCases(t *testing.T) {
	path := writeFile(t, "cases.json", `[{"name":"unknown","items":[{"id":99,"quantity":1}]}]`)

	s, err := ParseScenario(path)
	require.NoError(t, err)
	require.Len(t, s.Orders, 1)
	assert.Equal(t, "unknown", s.Orders[0].Name)
}

func TestParseScenario_JSONCWithComments(t *testing.T) {
	path := writeFile(t, "orders.jsonc", `{
		// valid orders first
		"name": "commented",
		"orders": [
			{"name": "one", "items": [{"id": 1, "quantity": 1}]}, // trailing
			/* invalid */
			{"name": "bad-qty", "items": [{"id": 1, "quantity": 0}]},
		]
	}`)

	s, err := ParseScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "commented", s.Name)
	require.Len(t, s.Orders, 2)
	assert.Equal(t, 0, s.Orders[1].Items[0].Quantity)
}

func TestParseScenario_NonIntegerQuantities(t *testing.T) {
	for _, tt := range []struct {
		file, content string
	}{
		{"odd.yaml", "- [{id: 1, quantity: 1.5}]\n- [{id: 1, quantity: abc}]\n"},
		{"odd.json", `[[{"id": 1, "quantity": 1.5}], [{"id": 1, "quantity": "abc"}]]`},
	} {
		t.Run(tt.file, func(t *testing.T) {
			s, err := ParseScenario(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, s.Orders, 2)
			assert.Equal(t, `[{"id":1,"quantity":1.5}]`, s.Orders[0].Items.String())
			assert.Equal(t, `[{"id":1,"quantity":"abc"}]`, s.Orders[1].Items.String())
		})
	}
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"no orders", "empty.yaml", "name: nothing\norders: []\n"},
		{"empty list", "empty.json", "[]"},
		{"scalar", "scalar.yaml", "hello"},
		{"empty file", "blank.yaml", ""},
		{"broken json", "broken.json", `[{"id":1`},
		{"wrong item type", "wrong.yaml", "- [{id: one, quantity: 1}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := ParseScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalScenario(t *testing.T) {
	s := types.DefaultScenario()

	data, err := MarshalScenario(s, "yaml")
	require.NoError(t, err)
	var fromYAML types.Scenario
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Len(t, fromYAML.Orders, 6)

	data, err = MarshalScenario(s, "json")
	require.NoError(t, err)
	var fromJSON types.Scenario
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, "empty-order", fromJSON.Orders[3].Name)
	assert.Contains(t, string(data), `"items": []`)

	_, err = MarshalScenario(s, "toml")
	assert.Error(t, err)
}

func TestMarshalScenario_ParsesBack(t *testing.T) {
	data, err := MarshalScenario(types.DefaultScenario(), "yaml")
	require.NoError(t, err)

	s, err := ParseScenario(writeFile(t, "default.yaml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultScenario().Orders[1].Items, s.Orders[1].Items)
}
