package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sungwon/notify-dispatch/internal/storage"
)

// PostgresStore reads consent records from the consent_records table.
type PostgresStore struct {
	queries storage.Querier
}

// NewPostgresStore creates a PostgresStore over the given queries.
func NewPostgresStore(queries storage.Querier) *PostgresStore {
	return &PostgresStore{queries: queries}
}

// LoadRecipient implements Store.
func (s *PostgresStore) LoadRecipient(ctx context.Context, tenantID, phone string) (*Record, error) {
	row, err := s.queries.GetConsentRecord(ctx, storage.GetConsentRecordParams{
		TenantID: tenantID,
		Phone:    normalizePhone(phone),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consent: load recipient: %w", err)
	}
	return fromRow(row), nil
}

// UpsertRecipient implements Store.
func (s *PostgresStore) UpsertRecipient(ctx context.Context, rec Record) (*Record, error) {
	row, err := s.queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: rec.TenantID,
		Phone:    normalizePhone(rec.Phone),
		Consent:  rec.Consent,
		Disabled: rec.Disabled,
	})
	if err != nil {
		return nil, fmt.Errorf("consent: upsert recipient: %w", err)
	}
	return fromRow(row), nil
}

func fromRow(row storage.ConsentRecord) *Record {
	return &Record{
		TenantID:  row.TenantID,
		Phone:     row.Phone,
		Consent:   row.Consent,
		Disabled:  row.Disabled,
		UpdatedAt: row.UpdatedAt.Time,
	}
}
