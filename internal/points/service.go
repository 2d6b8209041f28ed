package points

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	apperrors "github.com/themelab-io/themeboard-backend/pkg/errors"
)

// Service defines the point ledger operations used by the slot scheduler.
type Service interface {
	Charge(ctx context.Context, tx *gorm.DB, input ChargeInput) (int64, error)
	Refund(ctx context.Context, tx *gorm.DB, input RefundInput) (int64, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ChargeInput captures a debit against a user's account for a placement.
type ChargeInput struct {
	UserID      uuid.UUID
	AdRequestID uuid.UUID
	Amount      int64
	Metadata    json.RawMessage
}

// RefundInput captures points returned when a queued request is withdrawn.
type RefundInput struct {
	UserID      uuid.UUID
	AdRequestID uuid.UUID
	Amount      int64
	Metadata    json.RawMessage
}

type service struct {
	repo Repository
}

// NewService wires a points service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("points repository required")
	}
	return &service{repo: repo}, nil
}

// Charge debits the account inside the caller's transaction and records the
// ledger entry. The conditional debit rejects without ever letting the
// balance go negative.
func (s *service) Charge(ctx context.Context, tx *gorm.DB, input ChargeInput) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if input.UserID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	if input.Amount <= 0 {
		return 0, fmt.Errorf("charge amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	ok, err := repo.DebitIfSufficient(ctx, input.UserID, input.Amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		balance, balErr := repo.Balance(ctx, input.UserID)
		if balErr != nil && !errors.Is(balErr, gorm.ErrRecordNotFound) {
			return 0, balErr
		}
		return 0, apperrors.New(apperrors.CodeInsufficientBalance, "point balance does not cover the placement price").
			WithDetails(map[string]any{
				"required":  input.Amount,
				"available": balance,
			})
	}

	entry := &models.PointEntry{
		UserID:      input.UserID,
		AdRequestID: &input.AdRequestID,
		Type:        enums.PointEntryTypeDebit,
		Amount:      input.Amount,
		Metadata:    input.Metadata,
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return 0, err
	}

	return repo.Balance(ctx, input.UserID)
}

// Refund credits back the amount inside the caller's transaction.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, input RefundInput) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if input.UserID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	if input.Amount <= 0 {
		return 0, fmt.Errorf("refund amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	if err := repo.Credit(ctx, input.UserID, input.Amount); err != nil {
		return 0, err
	}

	entry := &models.PointEntry{
		UserID:      input.UserID,
		AdRequestID: &input.AdRequestID,
		Type:        enums.PointEntryTypeRefund,
		Amount:      input.Amount,
		Metadata:    input.Metadata,
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return 0, err
	}

	return repo.Balance(ctx, input.UserID)
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}
	return s.repo.Balance(ctx, userID)
}
