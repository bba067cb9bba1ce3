// Package ordering derives the canonical display order of a station's
// equipment from its process type and keeps state maps aligned with it.
package ordering

import (
	"log/slog"
	"strings"

	"github.com/rendis/stationflow/internal/catalog"
	"github.com/rendis/stationflow/pkg/schema"
)

// CanonicalOrder returns the equipment of process type id: stages in
// catalog.StageOrder, declared order inside a stage, first occurrence wins.
// An unknown id yields (nil, false); callers treat that as "no data".
func CanonicalOrder(id string, cat *catalog.Catalog) ([]string, bool) {
	pt, ok := cat.Lookup(id)
	if !ok {
		return nil, false
	}
	return Order(pt), true
}

// Order flattens the stages of pt.
func Order(pt catalog.ProcessType) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range catalog.StageOrder {
		for _, name := range pt.StageNames(s) {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// InitialState maps every name to the default state, keeping order.
func InitialState(names []string) *schema.EquipmentStates {
	es := schema.NewEquipmentStates()
	for _, n := range names {
		es.Set(n, schema.DefaultState)
	}
	return es
}

// Reconcile aligns states with order: canonical names first (state from
// states, else the default), then names only present in states, in their
// original relative order. The input is not modified.
func Reconcile(states *schema.EquipmentStates, order []string) *schema.EquipmentStates {
	out := schema.NewEquipmentStates()
	for _, name := range order {
		if s, ok := states.Get(name); ok {
			out.Set(name, s)
		} else {
			out.Set(name, schema.DefaultState)
		}
	}
	for _, p := range states.Pairs() {
		if _, ok := out.Get(p.Name); !ok {
			out.Set(p.Name, p.State)
		}
	}
	return out
}

// Orphans returns the names of states that are not part of order.
func Orphans(states *schema.EquipmentStates, order []string) []string {
	known := make(map[string]struct{}, len(order))
	for _, n := range order {
		known[n] = struct{}{}
	}
	var out []string
	for _, n := range states.Names() {
		if _, ok := known[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// MissHook is called on every catalog miss.
type MissHook func(processType string)

// Engine resolves process types against one catalog.
type Engine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	onMiss  MissHook
}

// NewEngine returns an Engine over cat. logger and onMiss may be nil.
func NewEngine(cat *catalog.Catalog, logger *slog.Logger, onMiss MissHook) *Engine {
	return &Engine{catalog: cat, logger: logger, onMiss: onMiss}
}

// Catalog returns the catalog the engine reads.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Order returns the canonical order of processType, logging catalog misses.
func (e *Engine) Order(processType string) ([]string, bool) {
	order, ok := CanonicalOrder(processType, e.catalog)
	if !ok {
		if e.logger != nil {
			e.logger.Warn("process type not in catalog", "process_type", processType)
		}
		if e.onMiss != nil {
			e.onMiss(processType)
		}
	}
	return order, ok
}

// ProcessType returns the catalog entry of processType.
func (e *Engine) ProcessType(processType string) (catalog.ProcessType, bool) {
	return e.catalog.Lookup(processType)
}
