package ilp

import (
	"sort"
	"strings"
)

type configEntry[V Var] struct {
	v   V
	val float64
}

// ConfigData holds per-variable solution values keyed by canonical
// variable key.
type ConfigData[V Var] struct {
	values map[string]configEntry[V]
}

// NewConfigData returns an empty configuration.
func NewConfigData[V Var]() *ConfigData[V] {
	return &ConfigData[V]{values: map[string]configEntry[V]{}}
}

// Set records a value for v and returns the configuration for chaining.
func (c *ConfigData[V]) Set(v V, val float64) *ConfigData[V] {
	c.values[v.Key()] = configEntry[V]{v: v, val: val}
	return c
}

// Get returns the recorded value for v.
func (c *ConfigData[V]) Get(v V) (float64, bool) {
	e, ok := c.values[v.Key()]
	return e.val, ok
}

// Len returns the number of recorded values.
func (c *ConfigData[V]) Len() int {
	return len(c.values)
}

// Entry is one (variable, value) pair of a configuration.
type Entry[V Var] struct {
	Var   V
	Value float64
}

// Entries returns all recorded values sorted by canonical key.
func (c *ConfigData[V]) Entries() []Entry[V] {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry[V], 0, len(keys))
	for _, k := range keys {
		e := c.values[k]
		out = append(out, Entry[V]{Var: e.v, Value: e.val})
	}
	return out
}

func (c *ConfigData[V]) String() string {
	entries := c.Entries()
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Var.String() + " = " + formatCoef(e.Value)
	}
	return strings.Join(parts, "\n")
}
