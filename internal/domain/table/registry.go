package table

import (
	"context"

	"github.com/go-faster/errors"
)

// Registry is the single gatekeeper for table occupancy transitions. No other
// component writes table status directly; routing every transition through
// Occupy and Release preserves the occupancy invariant.
type Registry struct {
	repo Repository
}

// NewRegistry creates a Registry backed by the given Repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Occupy binds orderID to the table. Returns ErrNotAvailable when the table
// is not free; callers are expected to retry against a different table.
func (r *Registry) Occupy(ctx context.Context, id, orderID string) error {
	if err := r.repo.Occupy(ctx, id, orderID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAvailable) {
			return err
		}
		return errors.Wrapf(err, "occupy table %s", id)
	}
	return nil
}

// Release frees the table when orderID is the bound order. Idempotent:
// releasing an available table, or a table another order has since claimed,
// succeeds without effect.
func (r *Registry) Release(ctx context.Context, id, orderID string) error {
	if err := r.repo.Release(ctx, id, orderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrapf(err, "release table %s", id)
	}
	return nil
}

// ForceRelease frees the table no matter which order holds it. Only manual
// cleanup goes through here; the order flow always releases conditionally.
func (r *Registry) ForceRelease(ctx context.Context, id string) error {
	if err := r.repo.ForceRelease(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrapf(err, "force release table %s", id)
	}
	return nil
}

// Get returns the table with the given id.
func (r *Registry) Get(ctx context.Context, id string) (*Table, error) {
	return r.repo.Get(ctx, id)
}

// List returns all tables.
func (r *Registry) List(ctx context.Context) ([]Table, error) {
	return r.repo.List(ctx)
}
