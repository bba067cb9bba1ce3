// Package query evaluates operator expressions over stations and their
// history: expr-lang predicates for listing and jq programs for history
// projections.
package query

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/stationflow/pkg/schema"
)

// Row is a station with its latest snapshot, the input of a filter.
type Row struct {
	Station schema.Station
	Latest  *schema.Snapshot
}

// Env builds the variables a filter sees. Names follow the JSON fields of
// the data files:
//
//	id, nom, localisation, debit_nominal, type_procede, destination,
//	categorie, date_creation, date_maj, etats (name -> state),
//	ouvrages (count), en_service (count), hors_service (count of every
//	other state except inexistant).
func Env(r Row) map[string]any {
	env := map[string]any{
		"id":            r.Station.ID,
		"nom":           r.Station.Name,
		"localisation":  r.Station.Location,
		"debit_nominal": r.Station.NominalFlow,
		"type_procede":  r.Station.ProcessType,
		"destination":   string(r.Station.Destination),
		"categorie":     string(r.Station.Destination.Category()),
		"date_creation": r.Station.CreatedAt,
		"date_maj":      "",
		"etats":         map[string]string{},
		"ouvrages":      0,
		"en_service":    0,
		"hors_service":  0,
	}
	if r.Latest == nil {
		return env
	}
	etats := make(map[string]string, r.Latest.States.Len())
	var inService, down int
	for _, p := range r.Latest.States.Pairs() {
		etats[p.Name] = string(p.State)
		switch p.State {
		case schema.StateInService:
			inService++
		case schema.StateNotBuilt:
		default:
			down++
		}
	}
	env["date_maj"] = r.Latest.UpdatedAt
	env["etats"] = etats
	env["ouvrages"] = len(etats)
	env["en_service"] = inService
	env["hors_service"] = down
	return env
}

// Filter evaluates boolean expr-lang predicates against station rows.
// Compiled programs are cached and reused.
type Filter struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewFilter creates an empty filter cache.
func NewFilter() *Filter {
	return &Filter{cache: make(map[string]*vm.Program)}
}

// Match reports whether r satisfies expression.
func (f *Filter) Match(expression string, r Row) (bool, error) {
	prg, err := f.getOrCompile(expression)
	if err != nil {
		return false, err
	}
	out, err := vm.Run(prg, Env(r))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"filter evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithStation(r.Station.ID)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply keeps the rows matching expression, in order. An empty expression
// keeps everything.
func (f *Filter) Apply(expression string, rows []Row) ([]Row, error) {
	if strings.TrimSpace(expression) == "" {
		return rows, nil
	}
	var out []Row
	for _, r := range rows {
		ok, err := f.Match(expression, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *Filter) getOrCompile(expression string) (*vm.Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty filter expression")
	}
	f.mu.RLock()
	if prg, ok := f.cache[expression]; ok {
		f.mu.RUnlock()
		return prg, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if prg, ok := f.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(Env(Row{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"filter compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	f.cache[expression] = prg
	return prg, nil
}
