// Package portfolio summarises a user's lease documents for the dashboard.
package portfolio

import (
	"context"
	"errors"
	"strings"
	"time"

	"leaselens-backend/internal/documents"
)

// ExpiryWindow is how far ahead a lease end counts as expiring soon.
const ExpiryWindow = 90 * 24 * time.Hour

const unknownLeaseType = "Unknown"

// ErrInvalidInput is returned when no user is given.
var ErrInvalidInput = errors.New("invalid input")

// DocumentLister lists a user's documents with their extracted terms.
type DocumentLister interface {
	List(ctx context.Context, userID string) ([]documents.Listed, error)
}

// Stats are the portfolio totals. Lease figures count ready documents only.
type Stats struct {
	TotalDocuments       int            `json:"totalDocuments"`
	DocumentsByStatus    map[string]int `json:"documentsByStatus"`
	TotalLeases          int            `json:"totalLeases"`
	TotalMonthlyRent     float64        `json:"totalMonthlyRent"`
	TotalSquareFootage   float64        `json:"totalSquareFootage"`
	ExpiringWithin90Days int            `json:"expiringWithin90Days"`
	LeaseTypes           map[string]int `json:"leaseTypes"`
}

// Service computes portfolio stats.
type Service struct {
	Docs DocumentLister
	Now  func() time.Time
}

// NewService constructs a Service using the wall clock.
func NewService(docs DocumentLister) *Service {
	return &Service{Docs: docs, Now: time.Now}
}

// Overview returns the stats for userID.
func (s *Service) Overview(ctx context.Context, userID string) (Stats, error) {
	if strings.TrimSpace(userID) == "" {
		return Stats{}, ErrInvalidInput
	}
	docs, err := s.Docs.List(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return Summarize(docs, now), nil
}

// Summarize folds listed documents into Stats as of now.
func Summarize(docs []documents.Listed, now time.Time) Stats {
	stats := Stats{
		TotalDocuments:    len(docs),
		DocumentsByStatus: map[string]int{},
		LeaseTypes:        map[string]int{},
	}
	for _, d := range docs {
		stats.DocumentsByStatus[d.Status]++
		if d.Status != documents.StatusReady {
			continue
		}
		stats.TotalLeases++

		leaseType := unknownLeaseType
		if t := d.Terms; t != nil {
			if t.MonthlyRent != nil {
				stats.TotalMonthlyRent += *t.MonthlyRent
			}
			if t.SquareFootage != nil {
				stats.TotalSquareFootage += *t.SquareFootage
			}
			if t.LeaseEnd != nil {
				if left := t.LeaseEnd.Sub(now); left > 0 && left < ExpiryWindow {
					stats.ExpiringWithin90Days++
				}
			}
			if t.LeaseType != nil && strings.TrimSpace(*t.LeaseType) != "" {
				leaseType = *t.LeaseType
			}
		}
		stats.LeaseTypes[leaseType]++
	}
	return stats
}
