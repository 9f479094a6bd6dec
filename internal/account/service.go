// Package account moves a guest's data to the signed-in user who claims it.
package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"leaselens-backend/internal/search"
	"leaselens-backend/internal/shared/storage/db"
	"leaselens-backend/internal/shared/telemetry"
)

// Claimer reassigns everything a guest owns in one store.
type Claimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

type Service struct {
	// DB, when set, claims documents and conversations in one transaction.
	DB            *sql.DB
	Documents     Claimer
	Conversations Claimer
	// Index, when set, rewrites ownership on externally indexed chunks.
	Index search.OwnerReassigner
}

// ClaimResult counts what moved. SearchReindexPending is set when the rows
// moved but the search index still names the guest; ranked search then
// misses those chunks until the claim is repeated.
type ClaimResult struct {
	MigratedDocuments     int  `json:"migratedDocuments"`
	MigratedConversations int  `json:"migratedConversations"`
	SearchReindexPending  bool `json:"searchReindexPending,omitempty"`
}

func NewService(documents, conversations Claimer) *Service {
	return &Service{Documents: documents, Conversations: conversations}
}

// ClaimGuest moves documents and conversations owned by guestUserID to
// authedUserID. An index failure after the rows moved is reported in the
// result, not as an error, because the rows cannot be moved back.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	var (
		result ClaimResult
		err    error
	)
	if s.DB != nil {
		result, err = claimWithTx(ctx, s.DB, guestUserID, authedUserID)
	} else {
		result, err = s.claimEach(ctx, guestUserID, authedUserID)
	}
	if err != nil {
		return ClaimResult{}, err
	}

	if s.Index != nil && result.MigratedDocuments > 0 {
		if err := s.Index.ReassignOwner(ctx, guestUserID, authedUserID); err != nil {
			telemetry.Error("account.reindex_failed", map[string]any{
				"user_id": authedUserID,
				"error":   err.Error(),
			})
			result.SearchReindexPending = true
		}
	}
	return result, nil
}

func claimWithTx(ctx context.Context, database *sql.DB, guestUserID, authedUserID string) (ClaimResult, error) {
	var result ClaimResult
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		docRes, err := tx.ExecContext(ctx, `UPDATE documents SET user_id = $1, updated_at = now() WHERE user_id = $2`, authedUserID, guestUserID)
		if err != nil {
			return err
		}
		docCount, _ := docRes.RowsAffected()

		convRes, err := tx.ExecContext(ctx, `UPDATE conversations SET user_id = $1 WHERE user_id = $2`, authedUserID, guestUserID)
		if err != nil {
			return err
		}
		convCount, _ := convRes.RowsAffected()

		result = ClaimResult{MigratedDocuments: int(docCount), MigratedConversations: int(convCount)}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	return result, nil
}

func (s *Service) claimEach(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if s.Documents == nil || s.Conversations == nil {
		return ClaimResult{}, errors.New("claim stores not configured")
	}
	docCount, err := s.Documents.ClaimGuest(ctx, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	convCount, err := s.Conversations.ClaimGuest(ctx, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedDocuments: docCount, MigratedConversations: convCount}, nil
}
