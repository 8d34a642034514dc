package memory

import (
	"context"
	"errors"
	"testing"

	"circles-flow/internal/domain"
	"circles-flow/internal/storage"
)

func TestTokenInfoStore_UpsertAndGetBatch(t *testing.T) {
	store := NewTokenInfoStore()
	ctx := context.Background()

	wrapper := domain.MustAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	avatar := domain.MustAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	human := domain.MustAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	rows := []domain.TokenInfoRow{
		{Token: wrapper, Type: domain.TokenTypeWrapperInflationary, Owner: avatar, Version: 2},
		{Token: human, Type: domain.TokenTypeV2Human, Owner: human, Version: 2},
	}
	for _, row := range rows {
		if err := store.Upsert(ctx, row); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	unknown := domain.MustAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	got, err := store.GetBatch(ctx, []domain.Address{wrapper, human, unknown})
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}

	if got[wrapper].Owner != avatar {
		t.Errorf("Owner mismatch: got %s, want %s", got[wrapper].Owner, avatar)
	}

	if _, exists := got[unknown]; exists {
		t.Error("expected unknown token to be absent from result")
	}
}

func TestTokenInfoStore_UpsertReplaces(t *testing.T) {
	store := NewTokenInfoStore()
	ctx := context.Background()

	token := domain.MustAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := domain.MustAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	if err := store.Upsert(ctx, domain.TokenInfoRow{Token: token, Type: domain.TokenTypeV1Signup, Owner: token, Version: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, domain.TokenInfoRow{Token: token, Type: domain.TokenTypeWrapperDemurraged, Owner: owner, Version: 2}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBatch(ctx, []domain.Address{token})
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}

	if got[token].Type != domain.TokenTypeWrapperDemurraged {
		t.Errorf("expected replaced type, got %s", got[token].Type)
	}
}

func TestTokenInfoStore_UpsertInvalidInput(t *testing.T) {
	store := NewTokenInfoStore()
	ctx := context.Background()

	err := store.Upsert(ctx, domain.TokenInfoRow{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
