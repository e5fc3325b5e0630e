package domain

import "time"

const (
	GuestCustomerName = "Guest Customer"
	UnknownOrderID    = "unknown"
	DefaultAmount     = "0.00"
	// ISO 4217 code for "no currency involved".
	DefaultCurrency  = "XXX"
	DefaultItemTitle = "Untitled item"
)

// OrderNotice is the canonical, fully populated view of a created order.
// Build it with notifications.Normalize; it is treated as immutable after that.
type OrderNotice struct {
	OrderID      string
	CustomerName string
	Total        Money
	CreatedAt    Timestamp
	Items        []LineItem
}

type Money struct {
	Amount   string
	Currency string
}

type LineItem struct {
	Title     string
	Quantity  int
	UnitPrice string
}

// Timestamp is a time that may have failed to parse. Valid=false marks an
// unparsable or missing upstream date.
type Timestamp struct {
	Time  time.Time
	Valid bool
}
