package points

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/db/models"
)

// Repository manages persistence for point accounts and entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.PointAccount, error)
	CreateAccount(ctx context.Context, account *models.PointAccount) error
	DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64) error
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	InsertEntry(ctx context.Context, entry *models.PointEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a points repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, userID uuid.UUID) (*models.PointAccount, error) {
	var account models.PointAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.PointAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// DebitIfSufficient decrements the balance only when it covers the amount.
// The conditional update makes the check-and-debit a single atomic statement.
func (r *repository) DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.PointAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amount int64) error {
	return r.db.WithContext(ctx).Model(&models.PointAccount{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	account, err := r.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.PointEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.PointEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
