package leases

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseTerms reads extractor output into LeaseTerms. It accepts a bare JSON object
// or text that embeds one, taking the first balanced {...} block. Fields with
// unexpected shapes are dropped and listed in Warnings.
func ParseTerms(raw string) (LeaseTerms, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return LeaseTerms{}, err
	}

	var t LeaseTerms
	t.SchemaVersion = SchemaVersion
	c := coercer{fields: fields}

	t.PropertyAddress = c.str("propertyAddress")
	t.TenantName = c.str("tenantName")
	t.LandlordName = c.str("landlordName")
	t.LeaseStart = c.date("leaseStart")
	t.LeaseEnd = c.date("leaseEnd")
	t.MonthlyRent = c.number("monthlyRent")
	t.SecurityDeposit = c.number("securityDeposit")
	t.LeaseType = c.str("leaseType")
	t.SquareFootage = c.number("squareFootage")
	t.PermittedUse = c.str("permittedUse")
	t.RenewalOptions = c.str("renewalOptions")
	t.TerminationClauses = c.str("terminationClauses")
	t.MaintenanceObligations = c.obligations("maintenanceObligations")
	t.InsuranceRequirements = c.insurance("insuranceRequirements")
	t.TaxObligations = c.str("taxObligations")
	t.CAMCharges = c.str("camCharges")
	t.EscalationClauses = c.str("escalationClauses")
	t.KeyProvisions = c.list("keyProvisions")
	t.Summary = c.str("summary")
	t.Warnings = c.warnings

	return t, nil
}

func decodeObject(raw string) (map[string]json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("%w: top-level value is not an object", ErrInvalidTerms)
		}
		return fields, nil
	}

	block, ok := FirstObject(trimmed)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrInvalidTerms)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}
	return fields, nil
}

// FirstObject returns the first balanced {...} block in text, ignoring
// braces inside JSON strings.
func FirstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

type coercer struct {
	fields   map[string]json.RawMessage
	warnings []string
}

func (c *coercer) value(key string) (any, bool) {
	raw, ok := c.fields[key]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func (c *coercer) warn(key string, v any) {
	c.warnings = append(c.warnings, fmt.Sprintf("%s: unexpected %T", key, v))
}

func (c *coercer) str(key string) *string {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case string:
		return nonEmpty(x)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return &s
	default:
		c.warn(key, v)
		return nil
	}
}

func (c *coercer) number(key string) *float64 {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if !finite(x) {
			c.warn(key, v)
			return nil
		}
		return &x
	case string:
		if f, ok := parseAmount(x); ok {
			return &f
		}
		if strings.TrimSpace(x) != "" {
			c.warn(key, v)
		}
		return nil
	default:
		c.warn(key, v)
		return nil
	}
}

func (c *coercer) date(key string) *time.Time {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	s, isString := v.(string)
	if !isString {
		c.warn(key, v)
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	c.warnings = append(c.warnings, fmt.Sprintf("%s: unparseable date %q", key, s))
	return nil
}

func (c *coercer) list(key string) []string {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	out := stringList(v)
	if out == nil {
		if _, isList := v.([]any); !isList {
			c.warn(key, v)
		}
	}
	return out
}

func (c *coercer) obligations(key string) *Obligations {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		c.warn(key, v)
		return nil
	}
	o := Obligations{
		Tenant:   stringList(obj["tenant"]),
		Landlord: stringList(obj["landlord"]),
	}
	if len(o.Tenant) == 0 && len(o.Landlord) == 0 {
		return nil
	}
	return &o
}

func (c *coercer) insurance(key string) *Insurance {
	v, ok := c.value(key)
	if !ok {
		return nil
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		c.warn(key, v)
		return nil
	}
	ins := Insurance{Types: stringList(obj["types"])}
	switch cov := obj["minimumCoverage"].(type) {
	case string:
		ins.MinimumCoverage = strings.TrimSpace(cov)
	case float64:
		ins.MinimumCoverage = strconv.FormatFloat(cov, 'f', -1, 64)
	}
	if len(ins.Types) == 0 && ins.MinimumCoverage == "" {
		return nil
	}
	return &ins
}

func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		if s := nonEmpty(x); s != nil {
			return []string{*s}
		}
	case []any:
		var out []string
		for _, item := range x {
			if s, ok := item.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	}
	return nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func parseAmount(s string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", "USD", "", "usd", "").Replace(strings.TrimSpace(s))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
