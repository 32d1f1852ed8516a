package protocol

import "reflect"

// TagPolicy decides whether an echoed tag matches the stored one. It must be
// deterministic and free of side effects.
type TagPolicy[T any] func(stored, echoed T) bool

// Equal is the default policy: plain equality.
func Equal[T comparable]() TagPolicy[T] {
	return func(stored, echoed T) bool {
		return stored == echoed
	}
}

// DeepEqual compares tags structurally, for tag types that are not comparable.
func DeepEqual[T any]() TagPolicy[T] {
	return func(stored, echoed T) bool {
		return reflect.DeepEqual(stored, echoed)
	}
}
