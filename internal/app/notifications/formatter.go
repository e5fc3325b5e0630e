package notifications

import (
	"strconv"
	"strings"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
)

const (
	UnknownDate = "Unknown date"
	Footer      = "Shopify Notification System"
	TestMessage = "🧪 Test message from Shopify notification system"

	dateLayout = "2006-01-02 15:04:05 MST"
)

// Format renders the notice as WhatsApp message text. The output depends only
// on the notice, so the same notice always yields the same bytes.
func Format(n domain.OrderNotice) string {
	var b strings.Builder

	b.WriteString("🛍️ *NEW ORDER RECEIVED!*\n\n")
	b.WriteString("📝 Order: #" + n.OrderID + "\n")
	b.WriteString("👤 Customer: " + n.CustomerName + "\n")
	b.WriteString("💰 Total: " + n.Total.Currency + " " + n.Total.Amount + "\n")
	b.WriteString("📅 Date: " + formatDate(n.CreatedAt) + "\n\n")

	b.WriteString("*Items:*\n")
	for _, item := range n.Items {
		b.WriteString("• " + item.Title +
			" (Qty: " + strconv.Itoa(item.Quantity) + ") - " +
			n.Total.Currency + " " + item.UnitPrice + "\n")
	}

	b.WriteString("\n---\n")
	b.WriteString(Footer)
	return b.String()
}

func formatDate(ts domain.Timestamp) string {
	if !ts.Valid {
		return UnknownDate
	}
	return ts.Time.Format(dateLayout)
}
