package plugin

import (
	"maps"
	"slices"
)

// StageContext is an immutable bag of string attributes threaded through a
// plugin stage. With returns a new value; the receiver is never modified.
type StageContext struct {
	attrs map[string]string
}

// NewStageContext copies attrs into a new StageContext.
func NewStageContext(attrs map[string]string) StageContext {
	return StageContext{attrs: maps.Clone(attrs)}
}

// With returns a copy of s with key set to value.
func (s StageContext) With(key, value string) StageContext {
	next := make(map[string]string, len(s.attrs)+1)
	maps.Copy(next, s.attrs)
	next[key] = value
	return StageContext{attrs: next}
}

// Get returns the value stored under key.
func (s StageContext) Get(key string) (string, bool) {
	v, ok := s.attrs[key]
	return v, ok
}

// Attributes returns a copy of all attributes.
func (s StageContext) Attributes() map[string]string {
	out := make(map[string]string, len(s.attrs))
	maps.Copy(out, s.attrs)
	return out
}

// Keys returns the attribute keys in sorted order.
func (s StageContext) Keys() []string {
	return slices.Sorted(maps.Keys(s.attrs))
}

func (s StageContext) Len() int { return len(s.attrs) }

// Equal reports whether both contexts hold the same attributes.
func (s StageContext) Equal(other StageContext) bool {
	return maps.Equal(s.attrs, other.attrs)
}
