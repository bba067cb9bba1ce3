// Package catalog reads the process-type catalog: for each process type, the
// treatment stages and the equipment each stage contains, in declared order.
package catalog

import (
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Stage identifies a treatment stage of a process type.
type Stage string

const (
	StagePretreatment Stage = "pretraitement"
	StagePrimary      Stage = "traitement_primaire"
	StageSecondary    Stage = "traitement_secondaire"
	StageTertiary     Stage = "traitement_tertiaire"
	StageSludge       Stage = "filiere_boue"
)

// StageOrder is the fixed priority of stages, whatever the catalog key order.
var StageOrder = []Stage{StagePretreatment, StagePrimary, StageSecondary, StageTertiary, StageSludge}

// StageList is the content of one stage: either OrderedNames or NamedDefaults.
type StageList interface {
	// Names returns the equipment names in declared order.
	Names() []string
	stageList()
}

// OrderedNames is the current stage shape: a list of equipment names.
type OrderedNames []string

func (o OrderedNames) Names() []string { return slices.Clone(o) }
func (OrderedNames) stageList()        {}

// NamedDefaults is the legacy stage shape: equipment name to default state,
// in document order.
type NamedDefaults struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewNamedDefaults builds a legacy stage from name/default pairs.
func NewNamedDefaults(pairs ...[2]string) NamedDefaults {
	d := NamedDefaults{m: orderedmap.New[string, string]()}
	for _, p := range pairs {
		d.m.Set(p[0], p[1])
	}
	return d
}

func (d NamedDefaults) Names() []string {
	if d.m == nil {
		return nil
	}
	out := make([]string, 0, d.m.Len())
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

func (NamedDefaults) stageList() {}

// SludgeBranch is a cross-stage sludge extraction arrow.
type SludgeBranch struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	Label       string `json:"etiquette" yaml:"etiquette"`
}

// ProcessType is one catalog entry.
type ProcessType struct {
	ID          string
	Name        string
	Description string

	// Water holds the stages declared under filiere_eau.
	Water map[Stage]StageList
	// TopLevel holds stages declared directly on the entry
	// (filiere_boue and the top-level traitement_tertiaire).
	TopLevel map[Stage]StageList

	PrimarySludge   *SludgeBranch
	SecondarySludge *SludgeBranch
}

// StageNames returns the names of stage s: the filiere_eau list first, then
// the top-level list. Duplicates are kept; callers decide precedence.
func (pt ProcessType) StageNames(s Stage) []string {
	var out []string
	if l, ok := pt.Water[s]; ok && l != nil {
		out = append(out, l.Names()...)
	}
	if l, ok := pt.TopLevel[s]; ok && l != nil {
		out = append(out, l.Names()...)
	}
	return out
}

// SludgeBranches returns the configured sludge branches, primary first.
func (pt ProcessType) SludgeBranches() []SludgeBranch {
	var out []SludgeBranch
	if pt.PrimarySludge != nil {
		out = append(out, *pt.PrimarySludge)
	}
	if pt.SecondarySludge != nil {
		out = append(out, *pt.SecondarySludge)
	}
	return out
}

// SludgeLine returns the filiere_boue equipment in declared order.
func (pt ProcessType) SludgeLine() []string {
	return pt.StageNames(StageSludge)
}

// DisplayName returns the configured name or the formatted identifier.
func (pt ProcessType) DisplayName() string {
	if pt.Name != "" {
		return pt.Name
	}
	return FormatProcessName(pt.ID)
}

// Catalog is the read-only set of process types.
type Catalog struct {
	types []ProcessType
	index map[string]int
}

// New builds a catalog. Later entries whose normalized ID collides with an
// earlier one are ignored.
func New(types ...ProcessType) *Catalog {
	c := &Catalog{index: make(map[string]int, len(types))}
	for _, pt := range types {
		key := NormalizeKey(pt.ID)
		if _, dup := c.index[key]; dup {
			continue
		}
		c.index[key] = len(c.types)
		c.types = append(c.types, pt)
	}
	return c
}

// Lookup finds a process type ignoring case and accents.
func (c *Catalog) Lookup(id string) (ProcessType, bool) {
	if c == nil {
		return ProcessType{}, false
	}
	i, ok := c.index[NormalizeKey(id)]
	if !ok {
		return ProcessType{}, false
	}
	return c.types[i], true
}

// IDs returns the process type identifiers, sorted.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.types))
	for i, pt := range c.types {
		out[i] = pt.ID
	}
	slices.Sort(out)
	return out
}

// Len returns the number of process types.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.types)
}

// FormatProcessName turns an identifier into an upper-case display name:
// "boues_activees" becomes "BOUES ACTIVEES".
func FormatProcessName(id string) string {
	parts := strings.Split(id, "_")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
