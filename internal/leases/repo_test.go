package leases

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMemoryRepo_ListByUserFiltersAndOrders(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pages := 12
	docs := map[string]DocumentInfo{
		"doc-old":   {UserID: "user-1", Filename: "old.pdf", CreatedAt: base},
		"doc-new":   {UserID: "user-1", Filename: "new.pdf", PageCount: &pages, CreatedAt: base.Add(time.Hour)},
		"doc-other": {UserID: "user-2", Filename: "other.pdf", CreatedAt: base.Add(2 * time.Hour)},
	}
	repo := NewMemoryRepo(func(_ context.Context, id string) (DocumentInfo, bool) {
		info, ok := docs[id]
		return info, ok
	})
	ctx := context.Background()
	for id := range docs {
		require.NoError(t, repo.Create(ctx, LeaseTerms{ID: "t-" + id, DocumentID: id, TenantName: strPtr("T " + id)}))
	}
	require.NoError(t, repo.Create(ctx, LeaseTerms{ID: "t-orphan", DocumentID: "doc-missing"}))

	entries, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "doc-new", entries[0].DocumentID)
	assert.Equal(t, "new.pdf", entries[0].Filename)
	require.NotNil(t, entries[0].PageCount)
	assert.Equal(t, 12, *entries[0].PageCount)
	assert.Equal(t, "doc-old", entries[1].DocumentID)

	require.NoError(t, repo.DeleteByDocument(ctx, "doc-new"))
	_, err = repo.GetByDocument(ctx, "doc-new")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryRepo_CanceledContext(t *testing.T) {
	repo := NewMemoryRepo(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := repo.Create(ctx, LeaseTerms{DocumentID: "d"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPGRepo_CreateWritesNullsAndJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rent := 4500.0
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	terms := LeaseTerms{
		ID:                     "terms-1",
		DocumentID:             "doc-1",
		SchemaVersion:          SchemaVersion,
		TenantName:             strPtr("Acme"),
		LeaseStart:             &start,
		MonthlyRent:            &rent,
		MaintenanceObligations: &Obligations{Tenant: []string{"HVAC"}},
		KeyProvisions:          []string{"Exclusive use"},
		CreatedAt:              created,
	}

	mock.ExpectExec("INSERT INTO lease_terms").
		WithArgs(
			"terms-1", "doc-1", int64(SchemaVersion),
			nil, "Acme", nil,
			start, nil, 4500.0, nil, nil, nil,
			nil, nil, nil,
			`{"tenant":["HVAC"],"landlord":null}`,
			nil, nil, nil, nil,
			`["Exclusive use"]`,
			nil, created,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Create(context.Background(), terms); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepo_GetByDocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM lease_terms lt").WithArgs("doc-x").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = (&PGRepo{DB: db}).GetByDocument(context.Background(), "doc-x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepo_ListByUserScansEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2029, 12, 31, 0, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "document_id", "schema_version", "property_address", "tenant_name",
		"landlord_name", "lease_start", "lease_end", "monthly_rent", "security_deposit",
		"lease_type", "square_footage", "permitted_use", "renewal_options",
		"termination_clauses", "maintenance_obligations", "insurance_requirements",
		"tax_obligations", "cam_charges", "escalation_clauses", "key_provisions",
		"summary", "created_at", "file_name", "page_count",
	}
	rows := sqlmock.NewRows(cols).AddRow(
		"terms-1", "doc-1", 1, "1 Harbor Way", "Acme",
		nil, nil, end, 4500.5, nil,
		"NNN", 2400.0, nil, nil,
		nil, nil, []byte(`{"types":["GL"],"minimumCoverage":"$1M"}`),
		nil, "Pro rata", nil, []byte(`["Exclusive use","No sublet"]`),
		nil, created, "harbor.pdf", int64(9),
	)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN documents d ON d.id = lt.document_id")).
		WithArgs("user-1").
		WillReturnRows(rows)

	entries, err := (&PGRepo{DB: db}).ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "doc-1", e.DocumentID)
	assert.Equal(t, "harbor.pdf", e.Filename)
	require.NotNil(t, e.PageCount)
	assert.Equal(t, 9, *e.PageCount)
	require.NotNil(t, e.Terms.PropertyAddress)
	assert.Equal(t, "1 Harbor Way", *e.Terms.PropertyAddress)
	assert.Nil(t, e.Terms.LandlordName)
	require.NotNil(t, e.Terms.LeaseEnd)
	assert.True(t, e.Terms.LeaseEnd.Equal(end))
	require.NotNil(t, e.Terms.MonthlyRent)
	assert.Equal(t, 4500.5, *e.Terms.MonthlyRent)
	require.NotNil(t, e.Terms.InsuranceRequirements)
	assert.Equal(t, "$1M", e.Terms.InsuranceRequirements.MinimumCoverage)
	assert.Nil(t, e.Terms.MaintenanceObligations)
	assert.Equal(t, []string{"Exclusive use", "No sublet"}, e.Terms.KeyProvisions)
	require.NoError(t, mock.ExpectationsWereMet())
}
