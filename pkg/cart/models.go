package cart

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString decodes JSON values the store API emits inconsistently as either
// strings or numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// ErrorList decodes the store envelope's "error" field, which may be an array
// of messages, a single string, or a falsy scalar when there is no error.
type ErrorList []string

func (e *ErrorList) UnmarshalJSON(data []byte) error {
	switch {
	case len(data) == 0, string(data) == "null", string(data) == "false",
		string(data) == "0", string(data) == `""`, string(data) == "[]":
		*e = nil
		return nil
	case data[0] == '[':
		var msgs []string
		if err := json.Unmarshal(data, &msgs); err != nil {
			return err
		}
		*e = msgs
		return nil
	case data[0] == '"':
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		*e = []string{msg}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil && i == 0 {
			*e = nil
			return nil
		}
		*e = []string{n.String()}
		return nil
	}
}

// First returns the first error message, or "" when there is none.
func (e ErrorList) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0]
}

// envelope is the store API's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error ErrorList       `json:"error"`
}

// Product is the slice of an order line the sync cares about.
type Product struct {
	ProductID FlexString `json:"product_id"`
	Name      string     `json:"name,omitempty"`
	Model     string     `json:"model,omitempty"`
	Quantity  FlexString `json:"quantity,omitempty"`
}

// productData is the product detail payload, fetched for its manufacturer.
type productData struct {
	Manufacturer string `json:"manufacturer"`
}

// Order is a store order as returned by the REST admin API.
type Order struct {
	OrderID       FlexString `json:"order_id"`
	CustomerID    FlexString `json:"customer_id"`
	FirstName     string     `json:"firstname"`
	LastName      string     `json:"lastname"`
	Email         string     `json:"email"`
	Telephone     string     `json:"telephone"`
	Total         FlexString `json:"total"`
	DateAdded     string     `json:"date_added"`
	OrderStatus   string     `json:"order_status,omitempty"`
	OrderStatusID FlexString `json:"order_status_id,omitempty"`
	Products      []Product  `json:"products,omitempty"`
}

// Status returns the order's status label, falling back to the numeric status
// id. Orders missing both are treated as pending (status id 1).
func (o Order) Status() string {
	if o.OrderStatus != "" {
		return o.OrderStatus
	}
	if o.OrderStatusID != "" {
		return o.OrderStatusID.String()
	}
	return strconv.Itoa(1)
}

// CustomerName returns the customer's full name.
func (o Order) CustomerName() string {
	return o.FirstName + " " + o.LastName
}
