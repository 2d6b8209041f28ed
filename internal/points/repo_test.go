package points

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

func setupPointsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	pointAccounts := `
CREATE TABLE IF NOT EXISTS point_accounts (
  user_id TEXT PRIMARY KEY,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	pointEntries := `
CREATE TABLE IF NOT EXISTS point_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  ad_request_id TEXT,
  type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(pointAccounts).Error)
	require.NoError(t, db.Exec(pointEntries).Error)
	return db
}

func seedAccount(t *testing.T, repo Repository, balance int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, repo.CreateAccount(context.Background(), &models.PointAccount{
		UserID:  userID,
		Balance: balance,
	}))
	return userID
}

func TestRepositoryCreateAndGetAccount(t *testing.T) {
	repo := NewRepository(setupPointsTestDB(t))
	ctx := context.Background()

	userID := seedAccount(t, repo, 500)

	account, err := repo.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, account.UserID)
	assert.Equal(t, int64(500), account.Balance)

	balance, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	_, err = repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryDebitIfSufficient(t *testing.T) {
	repo := NewRepository(setupPointsTestDB(t))
	ctx := context.Background()

	userID := seedAccount(t, repo, 500)

	ok, err := repo.DebitIfSufficient(ctx, userID, 300)
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	// 300 > 200 remaining: the conditional update must not touch the row.
	ok, err = repo.DebitIfSufficient(ctx, userID, 300)
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err = repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	require.NoError(t, repo.Credit(ctx, userID, 100))
	balance, err = repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)
}

func TestRepositoryListEntriesNewestFirst(t *testing.T) {
	repo := NewRepository(setupPointsTestDB(t))
	ctx := context.Background()

	userID := seedAccount(t, repo, 0)
	base := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	adRequestID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		entry := &models.PointEntry{
			ID:          uuid.New(),
			UserID:      userID,
			AdRequestID: &adRequestID,
			Type:        enums.PointEntryTypeDebit,
			Amount:      100,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.InsertEntry(ctx, entry))
		ids = append(ids, entry.ID)
	}

	entries, err := repo.ListEntries(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ids[2], entries[0].ID)
	assert.Equal(t, ids[1], entries[1].ID)

	all, err := repo.ListEntries(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListEntries(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
