package common

import (
	"sort"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	set := make(Set[T])
	return set
}

func (set Set[T]) Add(item T) Set[T] {
	set[item] = struct{}{}
	return set
}

func (set Set[T]) AddAll(items []T) Set[T] {
	for _, item := range items {
		set.Add(item)
	}
	return set
}

func (set Set[T]) Contains(item T) bool {
	_, ok := set[item]
	return ok
}

func (set Set[T]) Values() []T {
	values := make([]T, 0, len(set))
	for val := range set {
		values = append(values, val)
	}

	return values
}

// Works for a Set[string] as well as any other map keyed by string
func SortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
