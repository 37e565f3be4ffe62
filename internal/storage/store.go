package storage

import (
	"context"
	"errors"
)

// Fixed keys of the persisted layout. Their values are shared by every handle
// opened on the same backend.
const (
	TokenKey         = "token"
	ShippingDraftKey = "shippingInfo"
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrClosed            = errors.New("store is closed")
	ErrUnsupportedSchema = errors.New("unsupported schema version")
)

// ChangeEvent describes a write made through another handle of the same store.
type ChangeEvent struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin"`
}

// Store is an origin-scoped key-value store that survives restarts of a single
// handle and reports writes made by other handles.
//
// Subscribe never delivers events caused by the subscribing handle itself. The
// returned channel is closed when ctx is done or the store is closed.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
	Origin() string
	Close() error
}
