package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/domain"
	"github.com/Joshina1995/shopify-whatsapp-notifications/internal/repository/journal_repo"
)

var _ journal_repo.JournalRepository = (*JournalRepository)(nil)

type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Append(ctx context.Context, entry *domain.JournalEntry) error {
	query := `
		INSERT INTO delivery_journal (id, job_id, outcome, attempt, message_id, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.JobID,
		string(entry.Outcome),
		entry.Attempt,
		nullString(entry.MessageID),
		nullString(entry.Error),
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry for job %s: %w", entry.JobID, err)
	}
	return nil
}

func (r *JournalRepository) ListByJob(ctx context.Context, jobID string) ([]domain.JournalEntry, error) {
	query := `
		SELECT id, job_id, outcome, attempt, message_id, error, recorded_at
		FROM delivery_journal
		WHERE job_id = $1
		ORDER BY recorded_at ASC, attempt ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			entry     domain.JournalEntry
			outcome   string
			messageID sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.JobID,
			&outcome,
			&entry.Attempt,
			&messageID,
			&errText,
			&entry.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entry.Outcome = domain.AttemptOutcome(outcome)
		entry.MessageID = messageID.String
		entry.Error = errText.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
