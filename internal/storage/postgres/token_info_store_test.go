package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
	"circles-flow/internal/storage/postgres"
)

func TestTokenInfoStore_UpsertAndGetBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTokenInfoStore(pool)

	human := domain.MustAddress("0x1111111111111111111111111111111111111111")
	wrapper := domain.MustAddress("0x2222222222222222222222222222222222222222")
	avatar := domain.MustAddress("0x3333333333333333333333333333333333333333")

	rows := []domain.TokenInfoRow{
		{Token: human, Type: domain.TokenTypeV2Human, Owner: human, Version: 2},
		{Token: wrapper, Type: domain.TokenTypeWrapperInflationary, Owner: avatar, Version: 2},
	}
	for _, row := range rows {
		require.NoError(t, store.Upsert(ctx, row))
	}

	got, err := store.GetBatch(ctx, []domain.Address{human, wrapper})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, rows[0], got[human])
	assert.Equal(t, rows[1], got[wrapper])
}

func TestTokenInfoStore_GetBatchMissingTokens(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTokenInfoStore(pool)

	known := domain.MustAddress("0x1111111111111111111111111111111111111111")
	unknown := domain.MustAddress("0x4444444444444444444444444444444444444444")

	require.NoError(t, store.Upsert(ctx, domain.TokenInfoRow{
		Token: known, Type: domain.TokenTypeV2Human, Owner: known, Version: 2,
	}))

	got, err := store.GetBatch(ctx, []domain.Address{known, unknown})
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Contains(t, got, known)
	assert.NotContains(t, got, unknown)
}

func TestTokenInfoStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewTokenInfoStore(pool)

	token := domain.MustAddress("0x1111111111111111111111111111111111111111")
	oldOwner := domain.MustAddress("0x2222222222222222222222222222222222222222")
	newOwner := domain.MustAddress("0x3333333333333333333333333333333333333333")

	require.NoError(t, store.Upsert(ctx, domain.TokenInfoRow{
		Token: token, Type: domain.TokenTypeWrapperDemurraged, Owner: oldOwner, Version: 2,
	}))
	require.NoError(t, store.Upsert(ctx, domain.TokenInfoRow{
		Token: token, Type: domain.TokenTypeWrapperInflationary, Owner: newOwner, Version: 2,
	}))

	got, err := store.GetBatch(ctx, []domain.Address{token})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, domain.TokenTypeWrapperInflationary, got[token].Type)
	assert.Equal(t, newOwner, got[token].Owner)
}

func TestTokenInfoStore_GetBatchEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenInfoStore(pool)

	got, err := store.GetBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenInfoStore_UpsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenInfoStore(pool)

	err := store.Upsert(context.Background(), domain.TokenInfoRow{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
