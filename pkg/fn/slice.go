package fn

import (
	"cmp"
	"slices"
)

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter returns elements where pred is true.
func Filter[T any](items []T, pred func(T) bool) []T {
	var out []T
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// FilterMap applies f and keeps results where ok is true.
func FilterMap[T, U any](items []T, f func(T) (U, bool)) []U {
	var out []U
	for _, v := range items {
		if u, ok := f(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// GroupBy groups items by a key function, preserving input order per group.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, v := range items {
		k := key(v)
		out[k] = append(out[k], v)
	}
	return out
}

// Unique returns unique elements preserving order.
func Unique[T comparable](items []T) []T {
	seen := make(map[T]struct{})
	var out []T
	for _, v := range items {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// UniqueBy returns elements with unique keys. The last element seen for a key
// wins but keeps the position of the first.
func UniqueBy[T any, K comparable](items []T, key func(T) K) []T {
	pos := make(map[K]int)
	var out []T
	for _, v := range items {
		k := key(v)
		if i, ok := pos[k]; ok {
			out[i] = v
			continue
		}
		pos[k] = len(out)
		out = append(out, v)
	}
	return out
}

// Set builds a membership set.
func Set[T comparable](items []T) map[T]bool {
	out := make(map[T]bool, len(items))
	for _, v := range items {
		out[v] = true
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SortedUnique returns the distinct values of items in ascending order.
func SortedUnique[T cmp.Ordered](items []T) []T {
	out := Unique(items)
	slices.Sort(out)
	return out
}

// Mean is the arithmetic mean; zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
