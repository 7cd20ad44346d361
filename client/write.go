package client

import (
	"context"

	"github.com/rvohealth/dream-sub006/persist"
	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/txn"
)

// Writes take an optional transaction. When tx is nil the transaction
// carried by ctx is used, and without one each write runs in its own
// transaction.

// New returns an unsaved record of the named entity type.
func (c *Client) New(entity string, attrs map[string]any) (*schema.Record, error) {
	e, err := c.reg.Entity(entity)
	if err != nil {
		return nil, err
	}
	return e.New(attrs), nil
}

// Create builds a record of the named entity type and saves it.
func (c *Client) Create(ctx context.Context, entity string, attrs map[string]any, tx *txn.Context, opts ...persist.Option) (*schema.Record, error) {
	rec, err := c.New(entity, attrs)
	if err != nil {
		return nil, err
	}
	if err := c.Save(ctx, rec, tx, opts...); err != nil {
		return rec, err
	}
	return rec, nil
}

// Update assigns attrs to rec and saves it.
func (c *Client) Update(ctx context.Context, rec *schema.Record, attrs map[string]any, tx *txn.Context, opts ...persist.Option) error {
	rec.SetAll(attrs)
	return c.Save(ctx, rec, tx, opts...)
}

// Save inserts or updates rec.
func (c *Client) Save(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...persist.Option) error {
	return c.persist.Save(ctx, rec, transaction(ctx, tx), opts...)
}

// Destroy destroys rec and, unless persist.Cascade(false) is given, its
// dependents. Soft-deleting entity types are marked as deleted.
func (c *Client) Destroy(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...persist.Option) error {
	return c.persist.Destroy(ctx, rec, transaction(ctx, tx), opts...)
}

// ReallyDestroy deletes rec and its dependents even when they soft
// delete.
func (c *Client) ReallyDestroy(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...persist.Option) error {
	return c.persist.Destroy(ctx, rec, transaction(ctx, tx), append(opts, persist.ReallyDestroy())...)
}

// Undestroy restores a soft-deleted rec and its soft-deleted dependents.
func (c *Client) Undestroy(ctx context.Context, rec *schema.Record, tx *txn.Context, opts ...persist.Option) error {
	return c.persist.Undestroy(ctx, rec, transaction(ctx, tx), opts...)
}
