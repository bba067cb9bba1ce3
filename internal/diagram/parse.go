package diagram

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/rendis/stationflow/pkg/schema"
)

// Parse turns equipment entries into records. An entry may be a
// map[string]any with nom/name and etat/state keys, a Record, a
// schema.StatePair, or a legacy "<n>. <name> - <state>" string. Entries
// without a usable name or state are dropped, as are inexistant ones.
func Parse(items []any, logger *slog.Logger) []Record {
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, ok := parseItem(item, i)
		if !ok {
			if logger != nil {
				logger.Debug("equipment entry skipped", "index", i, "entry", fmt.Sprint(item))
			}
			continue
		}
		if rec.State == schema.StateNotBuilt {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// RecordsFromStates converts an ordered state map into records numbered from 1.
func RecordsFromStates(states *schema.EquipmentStates) []any {
	pairs := states.Pairs()
	items := make([]any, len(pairs))
	for i, p := range pairs {
		items[i] = Record{ID: i + 1, Name: p.Name, State: p.State}
	}
	return items
}

func parseItem(item any, index int) (Record, bool) {
	switch v := item.(type) {
	case Record:
		if v.ID == 0 {
			v.ID = index + 1
		}
		return v, strings.TrimSpace(v.Name) != "" && v.State != ""
	case *Record:
		if v == nil {
			return Record{}, false
		}
		return parseItem(*v, index)
	case schema.StatePair:
		return parseItem(Record{Name: v.Name, State: v.State}, index)
	case map[string]any:
		return parseMap(v, index)
	case string:
		return parseLegacy(v, index)
	default:
		return Record{}, false
	}
}

func parseMap(m map[string]any, index int) (Record, bool) {
	name, ok := firstString(m, "nom", "name")
	if !ok {
		return Record{}, false
	}
	state, ok := firstString(m, "etat", "state")
	if !ok {
		return Record{}, false
	}
	rec := Record{ID: index + 1, Name: name}
	rec.State, _ = schema.ParseOperatingState(state)
	if id, ok := asInt(m["id"]); ok {
		rec.ID = id
	}
	for k, v := range m {
		switch k {
		case "id", "nom", "name", "etat", "state":
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	return rec, true
}

func parseLegacy(line string, index int) (Record, bool) {
	if !strings.Contains(line, " - ") {
		return Record{}, false
	}
	if line != "" && unicode.IsDigit(rune(line[0])) {
		if _, rest, ok := strings.Cut(line, ". "); ok {
			line = rest
		}
	}
	name, state, _ := strings.Cut(line, " - ")
	name, state = strings.TrimSpace(name), strings.TrimSpace(state)
	if name == "" || state == "" {
		return Record{}, false
	}
	st, _ := schema.ParseOperatingState(state)
	return Record{ID: index + 1, Name: name, State: st}, true
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
