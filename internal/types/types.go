package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// HttpRequest represents a single HTTP request to send
type HttpRequest struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// RequestResult contains the HTTP response data
type RequestResult struct {
	Status       int               `json:"status" yaml:"status"`
	StatusText   string            `json:"statusText" yaml:"statusText"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         string            `json:"body" yaml:"body"`
	Duration     int64             `json:"duration" yaml:"duration"`         // milliseconds
	RequestSize  int               `json:"requestSize" yaml:"requestSize"`   // bytes
	ResponseSize int               `json:"responseSize" yaml:"responseSize"` // bytes
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// OrderItem is one line of an order payload
type OrderItem struct {
	ID       int `json:"id" yaml:"id"`
	Quantity int `json:"quantity" yaml:"quantity"`
	// RawQuantity is sent in place of Quantity when set. It holds quantities
	// that are not integers, such as 1.5 or "abc".
	RawQuantity json.RawMessage `json:"-" yaml:"-"`
}

type orderItemJSON struct {
	ID       int             `json:"id"`
	Quantity json.RawMessage `json:"quantity"`
}

// MarshalJSON writes RawQuantity verbatim when set
func (i OrderItem) MarshalJSON() ([]byte, error) {
	qty := i.RawQuantity
	if len(qty) == 0 {
		qty = json.RawMessage(strconv.Itoa(i.Quantity))
	}
	return json.Marshal(orderItemJSON{ID: i.ID, Quantity: qty})
}

// UnmarshalJSON keeps a quantity that is not an integer in RawQuantity
func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var aux orderItemJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	i.ID = aux.ID
	i.Quantity, i.RawQuantity = 0, nil

	raw := bytes.TrimSpace(aux.Quantity)
	if len(raw) == 0 {
		return nil
	}
	if n, err := strconv.Atoi(string(raw)); err == nil {
		i.Quantity = n
		return nil
	}
	i.RawQuantity = append(json.RawMessage(nil), raw...)
	return nil
}

type orderItemYAML struct {
	ID       int       `yaml:"id"`
	Quantity yaml.Node `yaml:"quantity"`
}

// UnmarshalYAML keeps a quantity that is not an integer in RawQuantity
func (i *OrderItem) UnmarshalYAML(node *yaml.Node) error {
	var aux orderItemYAML
	if err := node.Decode(&aux); err != nil {
		return err
	}
	i.ID = aux.ID
	i.Quantity, i.RawQuantity = 0, nil

	q := &aux.Quantity
	if q.Kind == 0 {
		return nil
	}
	// yaml.v3 truncates floats into ints, so only !!int scalars become Quantity
	if q.Kind == yaml.ScalarNode && q.ShortTag() == "!!int" {
		return q.Decode(&i.Quantity)
	}

	var v interface{}
	if err := q.Decode(&v); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: quantity: %w", q.Line, err)
	}
	i.RawQuantity = raw
	return nil
}

// MarshalYAML writes RawQuantity as its YAML equivalent when set
func (i OrderItem) MarshalYAML() (interface{}, error) {
	out := struct {
		ID       int         `yaml:"id"`
		Quantity interface{} `yaml:"quantity"`
	}{ID: i.ID, Quantity: i.Quantity}

	if len(i.RawQuantity) > 0 {
		var v interface{}
		if err := json.Unmarshal(i.RawQuantity, &v); err != nil {
			return nil, fmt.Errorf("quantity: %w", err)
		}
		out.Quantity = v
	}
	return out, nil
}

// Order is the payload posted to the order endpoint
type Order []OrderItem

// MarshalJSON encodes an empty or nil order as [] so the server sees an empty array
func (o Order) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]OrderItem(o))
}

// String renders the order as compact JSON
func (o Order) String() string {
	data, err := o.MarshalJSON()
	if err != nil {
		return "[]"
	}
	return string(data)
}

// OrderCase is one literal test case of a scenario
type OrderCase struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Items Order  `json:"items" yaml:"items"`
}

// Scenario is an ordered list of order cases dispatched in one run
type Scenario struct {
	Name   string      `json:"name,omitempty" yaml:"name,omitempty"`
	Orders []OrderCase `json:"orders" yaml:"orders"`
}

// DefaultScenarioName is the name of the built-in scenario
const DefaultScenarioName = "default"

// DefaultScenario returns the built-in mix of valid and invalid orders
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: DefaultScenarioName,
		Orders: []OrderCase{
			// Valid orders
			{Name: "single-item", Items: Order{{ID: 1, Quantity: 1}}},
			{Name: "multi-item", Items: Order{{ID: 2, Quantity: 3}, {ID: 3, Quantity: 2}}},
			{Name: "two-products", Items: Order{{ID: 4, Quantity: 1}, {ID: 5, Quantity: 1}}},
			// Invalid orders
			{Name: "empty-order", Items: Order{}},
			{Name: "unknown-product", Items: Order{{ID: 99, Quantity: 1}}},
			{Name: "invalid-quantity", Items: Order{{ID: 1, Quantity: -1}}},
		},
	}
}

// OrderResponse is the body returned by the order endpoint
type OrderResponse struct {
	Success bool    `json:"success"`
	OrderID int64   `json:"orderId,omitempty"`
	Total   float64 `json:"total,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// APIError is the error body returned by the account endpoints
type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Credentials identify the throwaway account used by a session run
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"-"`
}

// User is the account returned by the session endpoints
type User struct {
	ID       ID     `json:"id,omitempty" yaml:"id,omitempty"`
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
}

// Product is a catalogue entry
type Product struct {
	ID          int     `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
	Image       string  `json:"image,omitempty" yaml:"image,omitempty"`
}

// StoredOrder is an order persisted by the server for the signed-in account
type StoredOrder struct {
	ID        ID      `json:"id" yaml:"id"`
	Items     Order   `json:"items" yaml:"items"`
	Total     float64 `json:"total" yaml:"total"`
	CreatedAt string  `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// ID is a server-assigned identifier that may arrive as a JSON number or string
type ID string

// UnmarshalJSON accepts both 42 and "42"
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// JoinURL appends path to base without doubling slashes
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
