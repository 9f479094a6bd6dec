package chunking

import "regexp"

type sectionPattern struct {
	re    *regexp.Regexp
	label string
}

// Patterns are evaluated in order; the first match wins.
var sectionPatterns = []sectionPattern{
	{regexp.MustCompile(`(?i)\b(rent|base rent|monthly rent|rental)\b`), "Rent"},
	{regexp.MustCompile(`(?i)\b(security deposit|deposit)\b`), "Security Deposit"},
	{regexp.MustCompile(`(?i)\b(term|lease term|commencement|expiration)\b`), "Lease Term"},
	{regexp.MustCompile(`(?i)\b(maintenance|repair|upkeep)\b`), "Maintenance"},
	{regexp.MustCompile(`(?i)\b(insurance|liability|coverage|indemnif)`), "Insurance"},
	{regexp.MustCompile(`(?i)\b(tax|taxes|property tax|real estate tax)\b`), "Taxes"},
	{regexp.MustCompile(`(?i)\b(cam|common area|operating expense)\b`), "CAM Charges"},
	{regexp.MustCompile(`(?i)\b(renewal|option to renew|extension)\b`), "Renewal"},
	{regexp.MustCompile(`(?i)\b(terminat|early termination|default)\b`), "Termination"},
	{regexp.MustCompile(`(?i)\b(permitted use|use clause|exclusive use)\b`), "Permitted Use"},
	{regexp.MustCompile(`(?i)\b(assignment|subletting|sublet|sublease)\b`), "Assignment & Subletting"},
	{regexp.MustCompile(`(?i)\b(escalat|increase|adjustment|cpi)\b`), "Escalation"},
	{regexp.MustCompile(`(?i)\b(sign|signage|exterior sign)\b`), "Signage"},
	{regexp.MustCompile(`(?i)\b(parking|vehicle|garage)\b`), "Parking"},
	{regexp.MustCompile(`(?i)\b(hazard|environmental|asbestos|mold)\b`), "Environmental"},
	{regexp.MustCompile(`(?i)\b(force majeure|act of god)\b`), "Force Majeure"},
	{regexp.MustCompile(`(?i)\b(arbitrat|mediat|dispute|litigation)\b`), "Dispute Resolution"},
}

// Labels returns every section label in priority order.
func Labels() []string {
	out := make([]string, 0, len(sectionPatterns))
	for _, p := range sectionPatterns {
		out = append(out, p.label)
	}
	return out
}

// ClassifySection returns the label of the first matching pattern, or nil.
func ClassifySection(text string) *string {
	for _, p := range sectionPatterns {
		if p.re.MatchString(text) {
			label := p.label
			return &label
		}
	}
	return nil
}
