// Package export writes stations and their state history to spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/pkg/schema"
)

// Sheet names.
const (
	StationsSheet = "stations"
	HistorySheet  = "historique"
)

var stationHeader = []any{
	"id", "nom", "localisation", "debit_nominal", "type_procede",
	"destination", "date_creation", "date_maj", "ouvrages", "en_service",
}

var historyHeader = []any{"station_id", "station_nom", "date", "date_maj", "ouvrage", "etat", "libelle"}

// HistoryFunc returns the stored history of a station.
type HistoryFunc func(stationID string) []schema.Snapshot

// BuildXLSX renders one row per station and one history row per equipment
// unit per snapshot. State cells are filled with the diagram colors.
func BuildXLSX(stations []schema.Station, history HistoryFunc) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StationsSheet); err != nil {
		return nil, exportErr(err)
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		return nil, exportErr(err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, exportErr(err)
	}
	if err := writeRow(f, StationsSheet, 1, stationHeader); err != nil {
		return nil, exportErr(err)
	}
	if err := writeRow(f, HistorySheet, 1, historyHeader); err != nil {
		return nil, exportErr(err)
	}
	_ = f.SetRowStyle(StationsSheet, 1, 1, bold)
	_ = f.SetRowStyle(HistorySheet, 1, 1, bold)

	styles := make(map[schema.OperatingState]int)
	stateStyle := func(s schema.OperatingState) int {
		if id, ok := styles[s]; ok {
			return id
		}
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{diagram.StateColor(s)}},
		})
		if err != nil {
			id = 0
		}
		styles[s] = id
		return id
	}

	hrow := 2
	for i, st := range stations {
		var snaps []schema.Snapshot
		if history != nil {
			snaps = history(st.ID)
		}
		latest, inService, count := "", 0, 0
		if n := len(snaps); n > 0 {
			last := latestOf(snaps)
			latest = last.UpdatedAt
			count = last.States.Len()
			for _, p := range last.States.Pairs() {
				if p.State == schema.StateInService {
					inService++
				}
			}
		}
		err := writeRow(f, StationsSheet, i+2, []any{
			st.ID, st.Name, st.Location, st.NominalFlow, st.ProcessType,
			string(st.Destination), st.CreatedAt, latest, count, inService,
		})
		if err != nil {
			return nil, exportErr(err)
		}

		for _, snap := range snaps {
			for _, p := range snap.States.Pairs() {
				err := writeRow(f, HistorySheet, hrow, []any{
					st.ID, st.Name, snap.Date, snap.UpdatedAt, p.Name, string(p.State), p.State.Label(),
				})
				if err != nil {
					return nil, exportErr(err)
				}
				cell, _ := excelize.CoordinatesToCellName(6, hrow)
				_ = f.SetCellStyle(HistorySheet, cell, cell, stateStyle(p.State))
				hrow++
			}
		}
	}

	_ = f.SetColWidth(StationsSheet, "A", "A", 38)
	_ = f.SetColWidth(StationsSheet, "B", "C", 24)
	_ = f.SetColWidth(HistorySheet, "A", "A", 38)
	_ = f.SetColWidth(HistorySheet, "E", "E", 32)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, exportErr(err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// latestOf picks the greatest date_maj, the last one on ties.
func latestOf(snaps []schema.Snapshot) schema.Snapshot {
	best := snaps[0]
	for _, s := range snaps[1:] {
		if s.UpdatedAt >= best.UpdatedAt {
			best = s
		}
	}
	return best
}

func exportErr(err error) error {
	return schema.NewError(schema.ErrCodeExport, fmt.Sprintf("xlsx export: %s", err)).WithCause(err)
}
