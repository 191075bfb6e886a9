//go:build integration

package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sungwon/notify-dispatch/internal/storage"
)

func uniqueTenant() string {
	return "tenant-" + uuid.New().String()[:8]
}

func TestUpsertConsentRecord_Insert(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	tenant := uniqueTenant()

	rec, err := queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: tenant,
		Phone:    "+15551234567",
		Consent:  false,
		Disabled: false,
	})
	if err != nil {
		t.Fatalf("UpsertConsentRecord failed: %v", err)
	}

	if rec.TenantID != tenant {
		t.Errorf("expected tenant %s, got %s", tenant, rec.TenantID)
	}
	if rec.Consent {
		t.Error("expected consent false")
	}
	if !rec.UpdatedAt.Valid {
		t.Error("expected updated_at to be set")
	}
}

func TestUpsertConsentRecord_Update(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	tenant := uniqueTenant()

	first, err := queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: tenant, Phone: "+15551234567", Consent: true,
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, err := queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: tenant, Phone: "+15551234567", Consent: true, Disabled: true,
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if !second.Disabled {
		t.Error("expected disabled true after update")
	}
	if second.UpdatedAt.Time.Before(first.UpdatedAt.Time) {
		t.Errorf("updated_at went backwards: %v -> %v", first.UpdatedAt.Time, second.UpdatedAt.Time)
	}
}

func TestGetConsentRecord_NotFound(t *testing.T) {
	_, queries := setupTestDB(t)

	_, err := queries.GetConsentRecord(context.Background(), storage.GetConsentRecordParams{
		TenantID: uniqueTenant(),
		Phone:    "+15550000000",
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestGetConsentRecord_IsTenantScoped(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	tenantA, tenantB := uniqueTenant(), uniqueTenant()

	if _, err := queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: tenantA, Phone: "+15551234567", Consent: false,
	}); err != nil {
		t.Fatalf("UpsertConsentRecord failed: %v", err)
	}

	_, err := queries.GetConsentRecord(ctx, storage.GetConsentRecordParams{
		TenantID: tenantB, Phone: "+15551234567",
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected no record for other tenant, got %v", err)
	}
}

func TestListSuppressedByTenant(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	tenant := uniqueTenant()

	params := []storage.UpsertConsentRecordParams{
		{TenantID: tenant, Phone: "+15550000001", Consent: true},
		{TenantID: tenant, Phone: "+15550000002", Consent: false},
		{TenantID: tenant, Phone: "+15550000003", Consent: true, Disabled: true},
	}
	for _, p := range params {
		if _, err := queries.UpsertConsentRecord(ctx, p); err != nil {
			t.Fatalf("UpsertConsentRecord failed: %v", err)
		}
	}

	recs, err := queries.ListSuppressedByTenant(ctx, tenant)
	if err != nil {
		t.Fatalf("ListSuppressedByTenant failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 suppressed records, got %d", len(recs))
	}
	if recs[0].Phone != "+15550000002" || recs[1].Phone != "+15550000003" {
		t.Errorf("unexpected phones: %s, %s", recs[0].Phone, recs[1].Phone)
	}
}

func TestDeleteConsentRecord(t *testing.T) {
	_, queries := setupTestDB(t)
	ctx := context.Background()
	tenant := uniqueTenant()

	if _, err := queries.UpsertConsentRecord(ctx, storage.UpsertConsentRecordParams{
		TenantID: tenant, Phone: "+15551234567",
	}); err != nil {
		t.Fatalf("UpsertConsentRecord failed: %v", err)
	}

	if err := queries.DeleteConsentRecord(ctx, storage.DeleteConsentRecordParams{
		TenantID: tenant, Phone: "+15551234567",
	}); err != nil {
		t.Fatalf("DeleteConsentRecord failed: %v", err)
	}

	_, err := queries.GetConsentRecord(ctx, storage.GetConsentRecordParams{
		TenantID: tenant, Phone: "+15551234567",
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows after delete, got %v", err)
	}
}
