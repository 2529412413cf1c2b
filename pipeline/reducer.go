package pipeline

// Reducer defines how a patch value is merged onto the current value of a
// state field.
type Reducer[T any] func(current T, update T) T

// LastValue returns the most recent value. This is the default merge
// policy for every state field except append-only ones.
func LastValue[T any]() Reducer[T] {
	return func(_, update T) T {
		return update
	}
}

// Append concatenates slices. Used for append-only fields such as the
// per-conversation run history, where a patch must never replace what
// earlier runs accumulated.
func Append[T any]() Reducer[[]T] {
	return func(current, update []T) []T {
		if len(update) == 0 {
			return current
		}
		result := make([]T, 0, len(current)+len(update))
		result = append(result, current...)
		result = append(result, update...)
		return result
	}
}

// MergeMap merges maps with update values taking precedence.
func MergeMap[K comparable, V any]() Reducer[map[K]V] {
	return func(current, update map[K]V) map[K]V {
		result := make(map[K]V, len(current)+len(update))
		for k, v := range current {
			result[k] = v
		}
		for k, v := range update {
			result[k] = v
		}
		return result
	}
}
