package leases

import (
	"math"
	"strconv"
	"strings"
)

// Field is one populated, human-labelled attribute of a LeaseTerms value.
type Field struct {
	Label string
	Value string
}

// Fields lists every non-null attribute in a stable order.
func (t LeaseTerms) Fields() []Field {
	var out []Field
	addStr := func(label string, v *string) {
		if v != nil {
			out = append(out, Field{label, *v})
		}
	}
	addList := func(label string, v []string) {
		if len(v) > 0 {
			out = append(out, Field{label, strings.Join(v, "; ")})
		}
	}

	addStr("Property", t.PropertyAddress)
	addStr("Tenant", t.TenantName)
	addStr("Landlord", t.LandlordName)
	if t.LeaseStart != nil {
		out = append(out, Field{"Lease Start", t.LeaseStart.Format("2006-01-02")})
	}
	if t.LeaseEnd != nil {
		out = append(out, Field{"Lease End", t.LeaseEnd.Format("2006-01-02")})
	}
	if t.MonthlyRent != nil {
		out = append(out, Field{"Monthly Rent", "$" + FormatAmount(*t.MonthlyRent)})
	}
	if t.SecurityDeposit != nil {
		out = append(out, Field{"Security Deposit", "$" + FormatAmount(*t.SecurityDeposit)})
	}
	addStr("Lease Type", t.LeaseType)
	if t.SquareFootage != nil {
		out = append(out, Field{"Square Footage", FormatAmount(*t.SquareFootage) + " sq ft"})
	}
	addStr("Permitted Use", t.PermittedUse)
	addStr("Renewal Options", t.RenewalOptions)
	addStr("Termination", t.TerminationClauses)
	addStr("Tax Obligations", t.TaxObligations)
	addStr("CAM Charges", t.CAMCharges)
	addStr("Escalation", t.EscalationClauses)
	if m := t.MaintenanceObligations; m != nil {
		addList("Tenant Maintenance", m.Tenant)
		addList("Landlord Maintenance", m.Landlord)
	}
	if ins := t.InsuranceRequirements; ins != nil {
		addList("Insurance Types", ins.Types)
		if ins.MinimumCoverage != "" {
			out = append(out, Field{"Minimum Coverage", ins.MinimumCoverage})
		}
	}
	addList("Key Provisions", t.KeyProvisions)
	addStr("Summary", t.Summary)
	return out
}

// FormatAmount renders v with thousands separators and at most two decimals.
func FormatAmount(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimSuffix(s, ".00")
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
