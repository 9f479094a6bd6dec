// Package leases defines the structured lease-terms contract produced by the
// term extractor and the coercion rules applied to raw model output.
package leases

import (
	"errors"
	"time"
)

// SchemaVersion identifies the field set stored with each LeaseTerms row.
const SchemaVersion = 1

// ErrInvalidTerms means the extractor output could not be read as a terms object.
var ErrInvalidTerms = errors.New("invalid lease terms")

// Obligations splits maintenance duties between the parties.
type Obligations struct {
	Tenant   []string `json:"tenant"`
	Landlord []string `json:"landlord"`
}

// Insurance lists required policy types and the minimum coverage.
type Insurance struct {
	Types           []string `json:"types"`
	MinimumCoverage string   `json:"minimumCoverage"`
}

// LeaseTerms is the structured summary of one lease document.
type LeaseTerms struct {
	ID                     string       `json:"id"`
	DocumentID             string       `json:"documentId"`
	SchemaVersion          int          `json:"schemaVersion"`
	PropertyAddress        *string      `json:"propertyAddress"`
	TenantName             *string      `json:"tenantName"`
	LandlordName           *string      `json:"landlordName"`
	LeaseStart             *time.Time   `json:"leaseStart"`
	LeaseEnd               *time.Time   `json:"leaseEnd"`
	MonthlyRent            *float64     `json:"monthlyRent"`
	SecurityDeposit        *float64     `json:"securityDeposit"`
	LeaseType              *string      `json:"leaseType"`
	SquareFootage          *float64     `json:"squareFootage"`
	PermittedUse           *string      `json:"permittedUse"`
	RenewalOptions         *string      `json:"renewalOptions"`
	TerminationClauses     *string      `json:"terminationClauses"`
	MaintenanceObligations *Obligations `json:"maintenanceObligations"`
	InsuranceRequirements  *Insurance   `json:"insuranceRequirements"`
	TaxObligations         *string      `json:"taxObligations"`
	CAMCharges             *string      `json:"camCharges"`
	EscalationClauses      *string      `json:"escalationClauses"`
	KeyProvisions          []string     `json:"keyProvisions"`
	Summary                *string      `json:"summary"`
	CreatedAt              time.Time    `json:"createdAt"`

	// Warnings records fields dropped during coercion.
	Warnings []string `json:"-"`
}

// Entry is a lease-bearing document as seen by the portfolio views.
type Entry struct {
	DocumentID string
	Filename   string
	PageCount  *int
	Terms      LeaseTerms
}
