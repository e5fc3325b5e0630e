package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
)

// OrderCreatedEvent is the subset of the Shopify orders/create webhook body
// the notifier reads. Every field is optional and type-tolerant.
type OrderCreatedEvent struct {
	ID          FlexString `json:"id"`
	OrderNumber FlexString `json:"order_number"`
	Name        FlexString `json:"name"`
	Customer    *Customer  `json:"customer"`
	TotalPrice  FlexString `json:"total_price"`
	Currency    FlexString `json:"currency"`
	CreatedAt   FlexString `json:"created_at"`
	LineItems   LineItems  `json:"line_items"`
}

type Customer struct {
	FirstName FlexString `json:"first_name"`
	LastName  FlexString `json:"last_name"`
}

type LineItem struct {
	Title    FlexString `json:"title"`
	Quantity FlexInt    `json:"quantity"`
	Price    FlexString `json:"price"`
}

// DecodeOrderCreated parses a webhook body. Only a body that is not a JSON
// object is rejected; everything inside the object degrades instead.
func DecodeOrderCreated(body []byte) (*OrderCreatedEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrValidation)
	}
	var evt OrderCreatedEvent
	if err := json.Unmarshal(trimmed, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return &evt, nil
}

// UnmarshalJSON leaves the customer empty when the value is not an object.
func (c *Customer) UnmarshalJSON(data []byte) error {
	type plain Customer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*c = Customer{}
		return nil
	}
	*c = Customer(p)
	return nil
}

type LineItems []LineItem

// UnmarshalJSON yields no items when the value is not an array and skips
// elements that are not objects.
func (items *LineItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*items = nil
		return nil
	}
	out := make(LineItems, 0, len(raw))
	for _, r := range raw {
		var item LineItem
		if err := json.Unmarshal(r, &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	*items = out
	return nil
}
