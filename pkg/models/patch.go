package models

// Patch carries an optional field override for a mutation. The zero
// value means "keep the current value"; Set marks an explicit new
// value, so empty strings and zeros are legitimate overrides and are
// never confused with absence.
type Patch[T any] struct {
	value T
	set   bool
}

func Set[T any](v T) Patch[T] {
	return Patch[T]{value: v, set: true}
}

func Keep[T any]() Patch[T] {
	return Patch[T]{}
}

func (p Patch[T]) IsSet() bool {
	return p.set
}

// Get returns the override value when set, otherwise current.
func (p Patch[T]) Get(current T) T {
	if p.set {
		return p.value
	}
	return current
}

func (p Patch[T]) Value() (T, bool) {
	return p.value, p.set
}
