// Package dataloader provides generic helpers for stitching batch-loaded
// rows back onto the rows that requested them.
//
// The preloader issues one IN query per association step and uses these
// helpers to collect the keys of a level and to map the fetched rows back:
//
//	keys := dataloader.UniqueKeys(parents, func(p *schema.Record) any { return schema.Key(p.ID()) })
//	for _, batch := range dataloader.Chunk(keys, 500) {
//		// SELECT ... WHERE pet_id IN (batch...)
//	}
//	byPet := dataloader.GroupByKey(collars, func(c *schema.Record) any { return schema.Key(c.Get("pet_id")) })
package dataloader

import (
	"errors"
)

// ErrNotFound is returned when a key has no value in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// OrderByKeys reorders values to match the order of keys. Missing values
// are zero values with ErrNotFound at the same index.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := IndexByKey(values, keyFn)
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// IndexByKey maps each key to the first value carrying it.
func IndexByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K]V {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		k := keyFn(v)
		if _, ok := lookup[k]; !ok {
			lookup[k] = v
		}
	}
	return lookup
}

// GroupByKey groups values by key, keeping their relative order.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys returns the groups of keys in key order.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// UniqueKeys returns the distinct keys of values in first-seen order.
// Values whose key is the zero value are skipped.
func UniqueKeys[K comparable, V any](values []V, keyFn KeyFunc[K, V]) []K {
	var zero K
	seen := make(map[K]struct{}, len(values))
	keys := make([]K, 0, len(values))
	for _, v := range values {
		k := keyFn(v)
		if k == zero {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Chunk splits keys into batches of at most size keys. A size of zero or
// less returns a single batch.
func Chunk[K any](keys []K, size int) [][]K {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 || len(keys) <= size {
		return [][]K{keys}
	}
	batches := make([][]K, 0, (len(keys)+size-1)/size)
	for size < len(keys) {
		keys, batches = keys[size:], append(batches, keys[:size:size])
	}
	return append(batches, keys)
}
