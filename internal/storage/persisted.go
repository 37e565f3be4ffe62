package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/storefront/domain"
)

// ShippingDraftSchemaVersion is written with every draft. Drafts without a version
// predate versioning and are read as version 0.
const ShippingDraftSchemaVersion = 1

type persistedDraft struct {
	SchemaVersion int `json:"schemaVersion"`
	d.ShippingDraft
}

// LoadToken returns the persisted token, or "" when none is stored.
func LoadToken(ctx context.Context, s Store) (string, error) {
	token, err := s.Get(ctx, TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func SaveToken(ctx context.Context, s Store, token string) error {
	if err := s.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func ClearToken(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// LoadShippingDraft returns nil without error when no draft was saved yet.
func LoadShippingDraft(ctx context.Context, s Store) (*d.ShippingDraft, error) {
	raw, err := s.Get(ctx, ShippingDraftKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping draft: %w", err)
	}

	var p persistedDraft
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping draft: %w", err)
	}
	if p.SchemaVersion > ShippingDraftSchemaVersion {
		return nil, fmt.Errorf("shipping draft version %d: %w", p.SchemaVersion, ErrUnsupportedSchema)
	}
	return &p.ShippingDraft, nil
}

func SaveShippingDraft(ctx context.Context, s Store, draft d.ShippingDraft) error {
	raw, err := json.Marshal(persistedDraft{
		SchemaVersion: ShippingDraftSchemaVersion,
		ShippingDraft: draft,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal shipping draft: %w", err)
	}
	if err := s.Set(ctx, ShippingDraftKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save shipping draft: %w", err)
	}
	return nil
}
