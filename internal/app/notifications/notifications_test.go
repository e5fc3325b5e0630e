package notifications

import (
	"strings"
	"testing"
	"time"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain/event"
)

func decode(t *testing.T, body string) *event.OrderCreatedEvent {
	t.Helper()
	evt, err := event.DecodeOrderCreated([]byte(body))
	if err != nil {
		t.Fatalf("DecodeOrderCreated failed: %v", err)
	}
	return evt
}

func TestNormalizeFullOrder(t *testing.T) {
	evt := decode(t, `{
		"order_number": "1001",
		"customer": {"first_name": "A", "last_name": "B"},
		"total_price": "20.00",
		"currency": "USD",
		"created_at": "2024-01-01T00:00:00Z",
		"line_items": [{"title": "Shirt", "quantity": 2, "price": "10.00"}]
	}`)

	n := Normalize(evt)

	if n.OrderID != "1001" {
		t.Errorf("expected order id 1001, got %q", n.OrderID)
	}
	if n.CustomerName != "A B" {
		t.Errorf("expected customer A B, got %q", n.CustomerName)
	}
	if n.Total.Amount != "20.00" || n.Total.Currency != "USD" {
		t.Errorf("unexpected total %+v", n.Total)
	}
	if !n.CreatedAt.Valid || n.CreatedAt.Time.Year() != 2024 {
		t.Errorf("unexpected created at %+v", n.CreatedAt)
	}
	want := []domain.LineItem{{Title: "Shirt", Quantity: 2, UnitPrice: "10.00"}}
	if len(n.Items) != 1 || n.Items[0] != want[0] {
		t.Errorf("expected items %+v, got %+v", want, n.Items)
	}
}

func TestNormalizeCustomerName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing customer", `{}`, domain.GuestCustomerName},
		{"null customer", `{"customer": null}`, domain.GuestCustomerName},
		{"customer not an object", `{"customer": 42}`, domain.GuestCustomerName},
		{"first name only", `{"customer": {"first_name": "A"}}`, domain.GuestCustomerName},
		{"blank last name", `{"customer": {"first_name": "A", "last_name": "  "}}`, domain.GuestCustomerName},
		{"both names", `{"customer": {"first_name": "Ada", "last_name": "Lovelace"}}`, "Ada Lovelace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(decode(t, tt.body)).CustomerName
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := Normalize(nil)

	if n.OrderID != domain.UnknownOrderID {
		t.Errorf("expected unknown order id, got %q", n.OrderID)
	}
	if n.Total.Amount != domain.DefaultAmount || n.Total.Currency != domain.DefaultCurrency {
		t.Errorf("unexpected default total %+v", n.Total)
	}
	if n.CreatedAt.Valid {
		t.Error("expected missing date to be marked invalid")
	}
	if n.Items == nil || len(n.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %#v", n.Items)
	}
}

func TestNormalizeOrderIDFallbacks(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"order_number": 1001, "name": "#9999"}`, "1001"},
		{`{"name": "#1002"}`, "1002"},
		{`{"id": 820982911946154508}`, "820982911946154508"},
		{`{"name": "#"}`, domain.UnknownOrderID},
	}

	for _, tt := range tests {
		got := Normalize(decode(t, tt.body)).OrderID
		if got != tt.want {
			t.Errorf("body %s: expected %q, got %q", tt.body, tt.want, got)
		}
	}
}

func TestNormalizeItemDefaults(t *testing.T) {
	n := Normalize(decode(t, `{"line_items": [{"quantity": 0}, {"title": "Hat", "quantity": -3, "price": "5.00"}]}`))

	want := []domain.LineItem{
		{Title: domain.DefaultItemTitle, Quantity: 1, UnitPrice: domain.DefaultAmount},
		{Title: "Hat", Quantity: 1, UnitPrice: "5.00"},
	}
	if len(n.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(n.Items))
	}
	for i := range want {
		if n.Items[i] != want[i] {
			t.Errorf("item %d: expected %+v, got %+v", i, want[i], n.Items[i])
		}
	}
}

func TestNormalizeMalformedDate(t *testing.T) {
	n := Normalize(decode(t, `{"created_at": "yesterday-ish"}`))
	if n.CreatedAt.Valid {
		t.Errorf("expected invalid timestamp, got %+v", n.CreatedAt)
	}
	if !strings.Contains(Format(n), "Date: "+UnknownDate) {
		t.Errorf("expected placeholder date in message:\n%s", Format(n))
	}
}

func TestFormatScenarioOrder(t *testing.T) {
	n := Normalize(decode(t, `{
		"order_number": "1001",
		"customer": {"first_name": "A", "last_name": "B"},
		"total_price": "20.00",
		"currency": "USD",
		"created_at": "2024-01-01T00:00:00Z",
		"line_items": [{"title": "Shirt", "quantity": 2, "price": "10.00"}]
	}`))

	want := "🛍️ *NEW ORDER RECEIVED!*\n\n" +
		"📝 Order: #1001\n" +
		"👤 Customer: A B\n" +
		"💰 Total: USD 20.00\n" +
		"📅 Date: 2024-01-01 00:00:00 UTC\n\n" +
		"*Items:*\n" +
		"• Shirt (Qty: 2) - USD 10.00\n" +
		"\n---\n" +
		"Shopify Notification System"

	got := Format(n)
	if got != want {
		t.Errorf("unexpected message:\n got: %q\nwant: %q", got, want)
	}
	for _, fragment := range []string{"Order: #1001", "A B", "USD 20.00", "Shirt (Qty: 2)"} {
		if !strings.Contains(got, fragment) {
			t.Errorf("expected message to contain %q", fragment)
		}
	}
}

func TestFormatDateKeepsPayloadOffset(t *testing.T) {
	// A Local zone sharing the payload's offset must not leak its name.
	prevLocal := time.Local
	time.Local = time.FixedZone("EST", -5*60*60)
	defer func() { time.Local = prevLocal }()

	tests := []struct {
		createdAt string
		want      string
	}{
		{"2024-01-01T00:00:00-05:00", "Date: 2024-01-01 00:00:00 -0500\n"},
		{"2024-06-30T18:30:00+05:30", "Date: 2024-06-30 18:30:00 +0530\n"},
		{"2024-01-01T00:00:00+00:00", "Date: 2024-01-01 00:00:00 UTC\n"},
	}

	for _, tt := range tests {
		msg := Format(Normalize(decode(t, `{"created_at": "`+tt.createdAt+`"}`)))
		if !strings.Contains(msg, tt.want) {
			t.Errorf("created_at %s: expected %q in message:\n%s", tt.createdAt, tt.want, msg)
		}
	}
}

func TestFormatEmptyItems(t *testing.T) {
	for _, body := range []string{`{"line_items": []}`, `{}`} {
		msg := Format(Normalize(decode(t, body)))
		if !strings.Contains(msg, "*Items:*\n\n---\n") {
			t.Errorf("body %s: expected an empty items section:\n%s", body, msg)
		}
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	n := Normalize(decode(t, `{"order_number": "7", "line_items": [{"title": "A"}, {"title": "B"}]}`))
	first := Format(n)
	for i := 0; i < 5; i++ {
		if got := Format(n); got != first {
			t.Fatalf("format output changed between calls:\n%q\n%q", first, got)
		}
	}
	if strings.Index(first, "• A") > strings.Index(first, "• B") {
		t.Error("expected items in payload order")
	}
}

func TestJobID(t *testing.T) {
	n := Normalize(decode(t, `{"order_number": "1001"}`))
	if got := JobID(n, nil); got != "order-1001" {
		t.Errorf("expected order-1001, got %q", got)
	}

	body := []byte(`{"total_price": "1.00"}`)
	unknown := Normalize(decode(t, string(body)))
	a, b := JobID(unknown, body), JobID(unknown, body)
	if a != b || !strings.HasPrefix(a, "order-sha256:") {
		t.Errorf("expected stable digest ids, got %q and %q", a, b)
	}
	if JobID(unknown, []byte(`{"total_price": "2.00"}`)) == a {
		t.Error("expected different bodies to produce different ids")
	}
}
