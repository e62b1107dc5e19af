package filter

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Query is a compiled JMESPath expression applied to response bodies
type Query struct {
	expression string
	jp         *jmespath.JMESPath
}

// Compile parses a JMESPath expression. An empty expression yields a nil Query,
// which leaves bodies untouched.
func Compile(expression string) (*Query, error) {
	if expression == "" {
		return nil, nil
	}
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}
	return &Query{expression: expression, jp: jp}, nil
}

// String returns the source expression
func (q *Query) String() string {
	if q == nil {
		return ""
	}
	return q.expression
}

// Apply projects a JSON body through the query and returns compact JSON.
// A nil Query returns the body unchanged.
func (q *Query) Apply(body string) (string, error) {
	if q == nil {
		return body, nil
	}

	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	result, err := q.jp.Search(data)
	if err != nil {
		return "", fmt.Errorf("JMESPath search failed: %w", err)
	}

	if result == nil {
		return "null", nil
	}

	output, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(output), nil
}
