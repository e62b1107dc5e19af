package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Apply(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		expression string
		want       string
		wantErr    bool
	}{
		{
			name:       "empty expression passes body through",
			body:       "not json",
			expression: "",
			want:       "not json",
		},
		{
			name:       "scalar field",
			body:       `{"success":true,"orderId":1700000000000,"total":29.99}`,
			expression: "orderId",
			want:       "1700000000000",
		},
		{
			name:       "multi-select",
			body:       `{"success":false,"error":"Unknown product id 99"}`,
			expression: "[success, error]",
			want:       `[false,"Unknown product id 99"]`,
		},
		{
			name:       "missing field is null",
			body:       `{"success":true}`,
			expression: "orderId",
			want:       "null",
		},
		{
			name:       "projection over orders",
			body:       `{"orders":[{"id":1,"total":2},{"id":2,"total":3}]}`,
			expression: "orders[].id",
			want:       "[1,2]",
		},
		{
			name:       "non-json body",
			body:       "Not Found",
			expression: "orderId",
			wantErr:    true,
		},
		{
			name:       "invalid expression",
			body:       `{}`,
			expression: "orders[",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := apply(tt.body, tt.expression)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func apply(body, expression string) (string, error) {
	q, err := Compile(expression)
	if err != nil {
		return "", err
	}
	return q.Apply(body)
}

func TestCompile_NilQueryIsPassthrough(t *testing.T) {
	q, err := Compile("")
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Equal(t, "", q.String())

	out, err := q.Apply("anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", out)
}
