// Package xiter has small iterator helpers for deterministic traversal.
package xiter

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Slice exposes a slice as an iterator sequence.
func Slice[T any](items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

// Collect gathers all values from a sequence.
func Collect[T any](seq iter.Seq[T]) []T {
	return slices.Collect(seq)
}

// SortedKeys yields map keys in sorted order. Map iteration order is
// randomized; resolved output must not be.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) iter.Seq[K] {
	return Slice(slices.Sorted(maps.Keys(m)))
}
