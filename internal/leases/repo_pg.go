package leases

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const termColumns = `lt.id, lt.document_id, lt.schema_version, lt.property_address, lt.tenant_name,
       lt.landlord_name, lt.lease_start, lt.lease_end, lt.monthly_rent, lt.security_deposit,
       lt.lease_type, lt.square_footage, lt.permitted_use, lt.renewal_options,
       lt.termination_clauses, lt.maintenance_obligations, lt.insurance_requirements,
       lt.tax_obligations, lt.cam_charges, lt.escalation_clauses, lt.key_provisions,
       lt.summary, lt.created_at`

// Create inserts terms for a document.
func (r *PGRepo) Create(ctx context.Context, terms LeaseTerms) error {
	const query = `
INSERT INTO lease_terms (
	id, document_id, schema_version, property_address, tenant_name, landlord_name,
	lease_start, lease_end, monthly_rent, security_deposit, lease_type, square_footage,
	permitted_use, renewal_options, termination_clauses, maintenance_obligations,
	insurance_requirements, tax_obligations, cam_charges, escalation_clauses,
	key_provisions, summary, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	maintenance, err := marshalJSONB(terms.MaintenanceObligations)
	if err != nil {
		return err
	}
	insurance, err := marshalJSONB(terms.InsuranceRequirements)
	if err != nil {
		return err
	}
	var provisions any
	if len(terms.KeyProvisions) > 0 {
		payload, err := json.Marshal(terms.KeyProvisions)
		if err != nil {
			return err
		}
		provisions = string(payload)
	}

	_, err = r.DB.ExecContext(ctx, query,
		terms.ID,
		terms.DocumentID,
		terms.SchemaVersion,
		nullString(terms.PropertyAddress),
		nullString(terms.TenantName),
		nullString(terms.LandlordName),
		nullTime(terms.LeaseStart),
		nullTime(terms.LeaseEnd),
		nullFloat(terms.MonthlyRent),
		nullFloat(terms.SecurityDeposit),
		nullString(terms.LeaseType),
		nullFloat(terms.SquareFootage),
		nullString(terms.PermittedUse),
		nullString(terms.RenewalOptions),
		nullString(terms.TerminationClauses),
		maintenance,
		insurance,
		nullString(terms.TaxObligations),
		nullString(terms.CAMCharges),
		nullString(terms.EscalationClauses),
		provisions,
		nullString(terms.Summary),
		terms.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lease terms: %w", err)
	}
	return nil
}

// GetByDocument returns the terms stored for a document.
func (r *PGRepo) GetByDocument(ctx context.Context, documentID string) (LeaseTerms, error) {
	query := `SELECT ` + termColumns + `
FROM lease_terms lt
WHERE lt.document_id = $1
LIMIT 1`
	terms, err := scanTerms(r.DB.QueryRowContext(ctx, query, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return LeaseTerms{}, ErrNotFound
	}
	return terms, err
}

// ListByUser returns every lease-bearing document owned by userID, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	query := `SELECT ` + termColumns + `, d.file_name, d.page_count
FROM lease_terms lt
JOIN documents d ON d.id = lt.document_id
WHERE d.user_id = $1
ORDER BY d.created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list lease terms: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			filename  string
			pageCount sql.NullInt64
		)
		terms, err := scanTerms(rows, &filename, &pageCount)
		if err != nil {
			return nil, err
		}
		entry := Entry{DocumentID: terms.DocumentID, Filename: filename, Terms: terms}
		if pageCount.Valid {
			n := int(pageCount.Int64)
			entry.PageCount = &n
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteByDocument removes the terms for a document.
func (r *PGRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM lease_terms WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete lease terms: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTerms(row scanner, extra ...any) (LeaseTerms, error) {
	var (
		t                                   LeaseTerms
		address, tenant, landlord           sql.NullString
		leaseType, permitted, renewal       sql.NullString
		termination, tax, cam               sql.NullString
		escalation, summary                 sql.NullString
		start, end                          sql.NullTime
		rent, deposit, sqft                 sql.NullFloat64
		maintenance, insurance, provisions []byte
	)
	dest := []any{
		&t.ID, &t.DocumentID, &t.SchemaVersion, &address, &tenant,
		&landlord, &start, &end, &rent, &deposit,
		&leaseType, &sqft, &permitted, &renewal,
		&termination, &maintenance, &insurance,
		&tax, &cam, &escalation, &provisions,
		&summary, &t.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return LeaseTerms{}, err
	}

	t.PropertyAddress = stringPtr(address)
	t.TenantName = stringPtr(tenant)
	t.LandlordName = stringPtr(landlord)
	t.LeaseStart = timePtr(start)
	t.LeaseEnd = timePtr(end)
	t.MonthlyRent = floatPtr(rent)
	t.SecurityDeposit = floatPtr(deposit)
	t.LeaseType = stringPtr(leaseType)
	t.SquareFootage = floatPtr(sqft)
	t.PermittedUse = stringPtr(permitted)
	t.RenewalOptions = stringPtr(renewal)
	t.TerminationClauses = stringPtr(termination)
	t.TaxObligations = stringPtr(tax)
	t.CAMCharges = stringPtr(cam)
	t.EscalationClauses = stringPtr(escalation)
	t.Summary = stringPtr(summary)

	if len(maintenance) > 0 {
		var o Obligations
		if err := json.Unmarshal(maintenance, &o); err != nil {
			return LeaseTerms{}, fmt.Errorf("decode maintenance_obligations: %w", err)
		}
		t.MaintenanceObligations = &o
	}
	if len(insurance) > 0 {
		var ins Insurance
		if err := json.Unmarshal(insurance, &ins); err != nil {
			return LeaseTerms{}, fmt.Errorf("decode insurance_requirements: %w", err)
		}
		t.InsuranceRequirements = &ins
	}
	if len(provisions) > 0 {
		if err := json.Unmarshal(provisions, &t.KeyProvisions); err != nil {
			return LeaseTerms{}, fmt.Errorf("decode key_provisions: %w", err)
		}
	}
	return t, nil
}

func marshalJSONB[T any](value *T) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}

var _ Repo = (*PGRepo)(nil)
