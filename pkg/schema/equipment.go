package schema

import (
	"bytes"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StatePair is one entry of an EquipmentStates map.
type StatePair struct {
	Name  string
	State OperatingState
}

// EquipmentStates maps equipment names to operating states in an explicit
// insertion order. The order survives JSON encoding in both directions.
// The zero value is an empty map ready to use.
type EquipmentStates struct {
	m *orderedmap.OrderedMap[string, OperatingState]
}

// NewEquipmentStates builds a map from pairs, keeping their order.
// A repeated name keeps its first position and takes the last state.
func NewEquipmentStates(pairs ...StatePair) *EquipmentStates {
	es := &EquipmentStates{m: orderedmap.New[string, OperatingState]()}
	for _, p := range pairs {
		es.Set(p.Name, p.State)
	}
	return es
}

func (es *EquipmentStates) init() {
	if es.m == nil {
		es.m = orderedmap.New[string, OperatingState]()
	}
}

// Set stores the state of name. Existing names keep their position.
func (es *EquipmentStates) Set(name string, state OperatingState) {
	es.init()
	es.m.Set(name, state)
}

// Get returns the state of name.
func (es *EquipmentStates) Get(name string) (OperatingState, bool) {
	if es == nil || es.m == nil {
		return "", false
	}
	return es.m.Get(name)
}

// Delete removes name and reports whether it was present.
func (es *EquipmentStates) Delete(name string) bool {
	if es == nil || es.m == nil {
		return false
	}
	_, ok := es.m.Delete(name)
	return ok
}

// Len returns the number of entries.
func (es *EquipmentStates) Len() int {
	if es == nil || es.m == nil {
		return 0
	}
	return es.m.Len()
}

// Names returns the equipment names in order.
func (es *EquipmentStates) Names() []string {
	out := make([]string, 0, es.Len())
	for _, p := range es.Pairs() {
		out = append(out, p.Name)
	}
	return out
}

// Pairs returns the entries in order.
func (es *EquipmentStates) Pairs() []StatePair {
	if es == nil || es.m == nil {
		return nil
	}
	out := make([]StatePair, 0, es.m.Len())
	for p := es.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, StatePair{Name: p.Key, State: p.Value})
	}
	return out
}

// Clone returns an independent copy.
func (es *EquipmentStates) Clone() *EquipmentStates {
	return NewEquipmentStates(es.Pairs()...)
}

// Equal reports whether both maps hold the same entries in the same order.
func (es *EquipmentStates) Equal(other *EquipmentStates) bool {
	a, b := es.Pairs(), other.Pairs()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SameEntries reports whether both maps hold the same name/state entries,
// ignoring order.
func (es *EquipmentStates) SameEntries(other *EquipmentStates) bool {
	if es.Len() != other.Len() {
		return false
	}
	for _, p := range es.Pairs() {
		if s, ok := other.Get(p.Name); !ok || s != p.State {
			return false
		}
	}
	return true
}

func (es *EquipmentStates) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, p := range es.Pairs() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, p.State)
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON writes the entries as a JSON object in order.
func (es *EquipmentStates) MarshalJSON() ([]byte, error) {
	if es == nil || es.m == nil {
		return []byte("{}"), nil
	}
	return es.m.MarshalJSON()
}

// UnmarshalJSON reads a JSON object keeping its key order.
func (es *EquipmentStates) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, OperatingState]()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	es.m = m
	return nil
}
