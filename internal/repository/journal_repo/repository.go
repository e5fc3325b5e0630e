package journal_repo

import (
	"context"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
)

// JournalRepository stores delivery attempt outcomes for operator audit.
type JournalRepository interface {
	Append(ctx context.Context, entry *domain.JournalEntry) error
	ListByJob(ctx context.Context, jobID string) ([]domain.JournalEntry, error)
}
