package env

import (
	"sort"

	"github.com/faisalraja/testhttp/packages/value"
)

// Vars is a variable map that remembers insertion order. Resolution walks
// keys in that order, so the first matching variable wins.
type Vars struct {
	keys   []string
	values map[string]value.Value
}

func NewVars() *Vars {
	return &Vars{values: make(map[string]value.Value)}
}

// FromStrings builds Vars from a plain map, keys sorted.
func FromStrings(m map[string]string) *Vars {
	v := NewVars()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, value.String(m[k]))
	}
	return v
}

func (v *Vars) Set(name string, val value.Value) {
	if _, ok := v.values[name]; !ok {
		v.keys = append(v.keys, name)
	}
	v.values[name] = val
}

func (v *Vars) Get(name string) (value.Value, bool) {
	val, ok := v.values[name]
	return val, ok
}

func (v *Vars) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

func (v *Vars) Keys() []string {
	return v.keys
}

func (v *Vars) Len() int {
	return len(v.keys)
}

// Merge copies every variable of other into v, overwriting existing ones.
func (v *Vars) Merge(other *Vars) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		v.Set(k, other.values[k])
	}
}

// Clone returns an independent copy.
func (v *Vars) Clone() *Vars {
	c := NewVars()
	c.Merge(v)
	return c
}

// Native returns the variables as plain Go values, for dumps and reports.
func (v *Vars) Native() map[string]any {
	out := make(map[string]any, len(v.keys))
	for _, k := range v.keys {
		out[k] = v.values[k].Native()
	}
	return out
}
