package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rendis/stationflow/pkg/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// stateShape tags the layout found in etat_station.json.
type stateShape int

const (
	shapeEmpty     stateShape = iota
	shapeCanonical            // station id -> [snapshot, ...]
	shapeSingle               // station id -> snapshot (at least one entry)
	shapeFlat                 // [snapshot, ...] each carrying station_id
	shapeUnknown
)

func (s stateShape) String() string {
	switch s {
	case shapeCanonical:
		return "canonical"
	case shapeSingle:
		return "single-object"
	case shapeFlat:
		return "flat-list"
	case shapeUnknown:
		return "unknown"
	default:
		return "empty"
	}
}

// rawSnapshot accepts every field name any version has written.
type rawSnapshot struct {
	StationID    any                     `json:"station_id"`
	StationName  string                  `json:"station_nom"`
	Date         string                  `json:"date"`
	UpdatedAt    string                  `json:"date_maj"`
	States       *schema.EquipmentStates `json:"etat_ouvrages"`
	LegacyStates *schema.EquipmentStates `json:"etat"`
}

// parseResult is the canonical in-memory form plus what had to be repaired.
type parseResult struct {
	histories *Histories
	shape     stateShape
	repaired  int // snapshots whose fields were aliased or synthesized
	issues    []string
}

// needsRewrite reports whether saving would change the on-disk layout.
func (p *parseResult) needsRewrite() bool {
	return p.shape == shapeSingle || p.shape == shapeFlat || p.repaired > 0
}

func (p *parseResult) warn(format string, args ...any) {
	p.issues = append(p.issues, fmt.Sprintf(format, args...))
}

// parseStates normalizes any recognized layout into Histories. now fills in
// missing timestamps. It only fails on undecodable JSON.
func parseStates(data []byte, now time.Time) (*parseResult, error) {
	res := &parseResult{histories: newHistories()}
	switch firstByte(data) {
	case 0:
		res.shape = shapeEmpty
		return res, nil
	case '{':
		top := orderedmap.New[string, json.RawMessage]()
		if err := top.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		res.shape = shapeEmpty
		for p := top.Oldest(); p != nil; p = p.Next() {
			id, value := p.Key, p.Value
			switch firstByte(value) {
			case '[':
				var raws []json.RawMessage
				if err := json.Unmarshal(value, &raws); err != nil {
					res.warn("station %s: history is not a list: %v", id, err)
					continue
				}
				if res.shape == shapeEmpty {
					res.shape = shapeCanonical
				}
				snaps := make([]schema.Snapshot, 0, len(raws))
				for i, raw := range raws {
					if snap, ok := res.snapshot(raw, id, now, fmt.Sprintf("%s[%d]", id, i)); ok {
						snaps = append(snaps, snap)
					}
				}
				res.histories.set(id, snaps)
			case '{':
				res.shape = shapeSingle
				if snap, ok := res.snapshot(value, id, now, id); ok {
					res.histories.set(id, []schema.Snapshot{snap})
				}
			default:
				res.warn("station %s: history is neither a list nor an object, skipped", id)
			}
		}
		return res, nil
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, err
		}
		res.shape = shapeFlat
		for i, raw := range raws {
			snap, ok := res.snapshot(raw, "", now, fmt.Sprintf("[%d]", i))
			if !ok {
				continue
			}
			if snap.StationID == "" {
				res.warn("[%d]: snapshot without station_id, skipped", i)
				continue
			}
			res.histories.set(snap.StationID, append(res.histories.Get(snap.StationID), snap))
		}
		return res, nil
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		res.shape = shapeUnknown
		res.warn("top-level value is neither an object nor a list, ignored")
		return res, nil
	}
}

// snapshot decodes one raw snapshot and resolves field aliases. owner is the
// station id the snapshot is filed under, empty for the flat layout.
func (p *parseResult) snapshot(data json.RawMessage, owner string, now time.Time, where string) (schema.Snapshot, bool) {
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		p.warn("%s: unreadable snapshot: %v", where, err)
		return schema.Snapshot{}, false
	}

	snap := schema.Snapshot{
		StationID:   owner,
		StationName: raw.StationName,
		Date:        strings.TrimSpace(raw.Date),
		UpdatedAt:   strings.TrimSpace(raw.UpdatedAt),
		States:      raw.States,
	}
	if snap.StationID == "" && raw.StationID != nil {
		snap.StationID = strings.TrimSpace(fmt.Sprint(raw.StationID))
	}

	repaired := false
	if snap.States == nil {
		snap.States = raw.LegacyStates
		repaired = raw.LegacyStates != nil
	} else if raw.LegacyStates != nil {
		repaired = true
	}
	if snap.States == nil {
		snap.States = schema.NewEquipmentStates()
	}

	if snap.UpdatedAt == "" {
		repaired = true
		switch {
		case len(snap.Date) > len(schema.DateLayout):
			snap.UpdatedAt = snap.Date
		case snap.Date != "":
			snap.UpdatedAt = snap.Date + " 00:00:00"
		default:
			snap.UpdatedAt = now.Format(schema.TimestampLayout)
		}
	}
	if snap.Date == "" {
		repaired = true
		snap.Date, _, _ = strings.Cut(snap.UpdatedAt, " ")
	}
	if raw.StationID == nil && owner != "" {
		repaired = true
	}
	if repaired {
		p.repaired++
	}
	return snap, true
}
