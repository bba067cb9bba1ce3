package store

import (
	"slices"

	"github.com/rendis/stationflow/pkg/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Histories maps station ids to their snapshots, keeping file order.
type Histories struct {
	m *orderedmap.OrderedMap[string, []schema.Snapshot]
}

func newHistories() *Histories {
	return &Histories{m: orderedmap.New[string, []schema.Snapshot]()}
}

// StationIDs returns the station ids in file order.
func (h *Histories) StationIDs() []string {
	out := make([]string, 0, h.m.Len())
	for p := h.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Get returns the snapshots of id in stored order.
func (h *Histories) Get(id string) []schema.Snapshot {
	snaps, _ := h.m.Get(id)
	return slices.Clone(snaps)
}

// Len returns the number of stations with a history entry.
func (h *Histories) Len() int { return h.m.Len() }

// Count returns the total number of snapshots.
func (h *Histories) Count() int {
	n := 0
	for p := h.m.Oldest(); p != nil; p = p.Next() {
		n += len(p.Value)
	}
	return n
}

func (h *Histories) set(id string, snaps []schema.Snapshot) {
	h.m.Set(id, snaps)
}

func (h *Histories) delete(id string) bool {
	_, ok := h.m.Delete(id)
	return ok
}

// MarshalJSON writes the canonical layout: station id -> [snapshot, ...].
func (h *Histories) MarshalJSON() ([]byte, error) {
	return h.m.MarshalJSON()
}
