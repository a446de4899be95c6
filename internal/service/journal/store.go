package journal

import "context"

// Store persists entries. List returns entries newest first.
type Store interface {
	Create(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Update(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id string) error
	Close() error
}
