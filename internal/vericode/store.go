package vericode

import (
	"context"

	"secureid/internal/domain"
)

// BindingStore keeps the latest issued binding per holder so the holder-side
// service can enforce expiry and discard superseded codes. Saving a new
// binding replaces the previous one; the ledger never reads this store.
type BindingStore interface {
	Save(ctx context.Context, binding Binding) error
	Find(ctx context.Context, holder domain.Address) (Binding, error)
	Delete(ctx context.Context, holder domain.Address) error
}
