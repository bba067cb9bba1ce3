package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/stationflow/pkg/schema"
)

// Format is the encoding of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension; JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DocValidator checks a decoded catalog document and reports data-quality issues.
type DocValidator interface {
	ValidateCatalog(doc any) *schema.Report
}

// Loader reads catalog files. Malformed parts are skipped and reported as
// warnings; only unreadable or undecodable files are errors.
type Loader struct {
	Validator DocValidator
	Logger    *slog.Logger
}

// Load reads and parses the catalog at path.
func (l *Loader) Load(path string) (*Catalog, *schema.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, res, err := l.Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return cat, res, nil
}

// Parse decodes a catalog document.
func (l *Loader) Parse(data []byte, format Format) (*Catalog, *schema.Report, error) {
	var (
		root *node
		err  error
	)
	if format == FormatYAML {
		root, err = decodeYAML(data)
	} else {
		root, err = decodeJSON(data)
	}
	if err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeDataShape, "catalog is not a valid document").WithCause(err)
	}

	res := &schema.Report{}
	if l.Validator != nil {
		res.Merge(l.Validator.ValidateCatalog(root.toAny()))
	}

	if root.kind != kindMap {
		res.Addf("/", "catalog must be a mapping of process types, got %s", root.kind)
		l.report(res)
		return New(), res, nil
	}

	types := make([]ProcessType, 0, len(root.keys))
	for i, id := range root.keys {
		entry := root.vals[i]
		if entry.kind != kindMap {
			res.Add("/"+id, "process type is not a mapping, skipped")
			continue
		}
		types = append(types, buildProcessType(id, entry, res))
	}
	l.report(res)
	return New(types...), res, nil
}

func (l *Loader) report(res *schema.Report) {
	res.Log(context.Background(), l.Logger, "catalog data quality")
}

func buildProcessType(id string, entry *node, res *schema.Report) ProcessType {
	pt := ProcessType{
		ID:       id,
		Water:    make(map[Stage]StageList),
		TopLevel: make(map[Stage]StageList),
	}
	pt.Name, _ = entry.get("nom").str()
	pt.Description, _ = entry.get("description").str()

	water := entry.get("filiere_eau")
	if water != nil && water.kind != kindMap {
		res.Add("/"+id+"/filiere_eau", "filiere_eau is not a mapping, skipped")
		water = nil
	}

	for _, s := range StageOrder {
		if l, ok := buildStage(fmt.Sprintf("/%s/filiere_eau/%s", id, s), water.get(string(s)), res); ok {
			pt.Water[s] = l
		}
		if l, ok := buildStage(fmt.Sprintf("/%s/%s", id, s), entry.get(string(s)), res); ok {
			pt.TopLevel[s] = l
		}
	}

	pt.PrimarySludge = buildBranch("/"+id+"/filiere_eau/boues_primaires", water.get("boues_primaires"), res)
	pt.SecondarySludge = buildBranch("/"+id+"/filiere_eau/boues_secondaires", water.get("boues_secondaires"), res)
	return pt
}

// buildStage converts a stage node into its StageList variant. Absent stages
// report ok=false without a warning.
func buildStage(path string, n *node, res *schema.Report) (StageList, bool) {
	if n == nil || n.kind == kindNull {
		return nil, false
	}
	switch n.kind {
	case kindList:
		names := make(OrderedNames, 0, len(n.items))
		for i, it := range n.items {
			s, ok := it.str()
			if !ok {
				res.Add(fmt.Sprintf("%s/%d", path, i), "equipment name is not a string, skipped")
				continue
			}
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			names = append(names, s)
		}
		return names, true
	case kindMap:
		pairs := make([][2]string, 0, len(n.keys))
		for i, k := range n.keys {
			name := strings.TrimSpace(k)
			if name == "" {
				continue
			}
			def, _ := n.vals[i].str()
			pairs = append(pairs, [2]string{name, def})
		}
		return NewNamedDefaults(pairs...), true
	}
	res.Addf(path, "stage is a %s, expected a list or a mapping; skipped", n.kind)
	return nil, false
}

func buildBranch(path string, n *node, res *schema.Report) *SludgeBranch {
	if n == nil || n.kind == kindNull {
		return nil
	}
	if n.kind != kindMap {
		res.Add(path, "sludge branch is not a mapping, skipped")
		return nil
	}
	b := &SludgeBranch{}
	b.Source, _ = n.get("source").str()
	b.Destination, _ = n.get("destination").str()
	b.Label, _ = n.get("etiquette").str()
	b.Source = strings.TrimSpace(b.Source)
	b.Destination = strings.TrimSpace(b.Destination)
	if b.Source == "" || b.Destination == "" {
		res.Add(path, "sludge branch needs source and destination, skipped")
		return nil
	}
	return b
}
