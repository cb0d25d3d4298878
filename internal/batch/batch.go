// Package batch partitions article lists into groups no larger than the
// Siera request limit.
package batch

import (
	"fmt"
	"iter"
)

// Make yields consecutive groups of at most size items from items, in order.
// The final group holds the remainder. Nothing is yielded for an empty input.
// Groups alias the backing array of items and are capacity-clipped, so
// appending to a group never overwrites the next one.
func Make[T any](items []T, size int) iter.Seq[[]T] {
	if size < 1 {
		panic(fmt.Sprintf("batch: size must be positive, got %d", size))
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end:end]) {
				return
			}
		}
	}
}

// FromSeq groups a single-pass sequence. Items are pulled only as groups are
// consumed and every yielded group is a freshly allocated slice.
func FromSeq[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		panic(fmt.Sprintf("batch: size must be positive, got %d", size))
	}
	return func(yield func([]T) bool) {
		group := make([]T, 0, size)
		for item := range seq {
			group = append(group, item)
			if len(group) < size {
				continue
			}
			if !yield(group) {
				return
			}
			group = make([]T, 0, size)
		}
		if len(group) > 0 {
			yield(group)
		}
	}
}

// Count returns the number of groups Make would yield.
func Count(n, size int) int {
	if size < 1 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
