package notifications

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain/event"
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize builds an OrderNotice from a webhook payload. It never fails:
// missing or malformed fields are replaced with defaults.
func Normalize(evt *event.OrderCreatedEvent) domain.OrderNotice {
	if evt == nil {
		evt = &event.OrderCreatedEvent{}
	}

	notice := domain.OrderNotice{
		OrderID:      orderID(evt),
		CustomerName: customerName(evt.Customer),
		Total: domain.Money{
			Amount:   orDefault(evt.TotalPrice.String(), domain.DefaultAmount),
			Currency: orDefault(evt.Currency.String(), domain.DefaultCurrency),
		},
		CreatedAt: parseCreatedAt(evt.CreatedAt.String()),
		Items:     make([]domain.LineItem, 0, len(evt.LineItems)),
	}

	for _, item := range evt.LineItems {
		qty := int(item.Quantity)
		if qty < 1 {
			qty = 1
		}
		notice.Items = append(notice.Items, domain.LineItem{
			Title:     orDefault(item.Title.String(), domain.DefaultItemTitle),
			Quantity:  qty,
			UnitPrice: orDefault(item.Price.String(), domain.DefaultAmount),
		})
	}
	return notice
}

// JobID derives the dispatch job id for an order. Orders without any usable
// identifier fall back to a digest of the raw body so that byte-identical
// redeliveries still collapse onto one job.
func JobID(notice domain.OrderNotice, rawBody []byte) string {
	if notice.OrderID != domain.UnknownOrderID {
		return "order-" + notice.OrderID
	}
	sum := sha256.Sum256(rawBody)
	return "order-sha256:" + hex.EncodeToString(sum[:])
}

func orderID(evt *event.OrderCreatedEvent) string {
	if id := evt.OrderNumber.String(); id != "" {
		return id
	}
	if name := strings.TrimSpace(strings.TrimPrefix(evt.Name.String(), "#")); name != "" {
		return name
	}
	if id := evt.ID.String(); id != "" {
		return id
	}
	return domain.UnknownOrderID
}

func customerName(c *event.Customer) string {
	if c == nil {
		return domain.GuestCustomerName
	}
	first, last := c.FirstName.String(), c.LastName.String()
	if first == "" || last == "" {
		return domain.GuestCustomerName
	}
	return first + " " + last
}

func parseCreatedAt(raw string) domain.Timestamp {
	if raw == "" {
		return domain.Timestamp{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.Timestamp{Time: inPayloadOffset(t), Valid: true}
		}
	}
	return domain.Timestamp{}
}

// inPayloadOffset detaches t from the process Local zone so it renders with
// the payload's numeric offset regardless of TZ.
func inPayloadOffset(t time.Time) time.Time {
	_, offset := t.Zone()
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
