package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/query"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/schema"
)

// stationSummary is one stations.list entry.
type stationSummary struct {
	schema.Station
	UpdatedAt    string `json:"date_maj,omitempty"`
	InService    int    `json:"en_service"`
	OutOfService int    `json:"hors_service"`
}

// handleList returns the stations matching an optional filter expression.
func (s *StationServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stations, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	rows := make([]query.Row, 0, len(stations))
	for _, st := range stations {
		r := query.Row{Station: st}
		snap, ok, err := s.svc.Latest(ctx, st.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history lookup failed: %v", err)), nil
		}
		if ok {
			r.Latest = &snap
		}
		rows = append(rows, r)
	}

	rows, err = s.filter.Apply(req.GetString("where", ""), rows)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid filter: %v", err)), nil
	}

	out := make([]stationSummary, 0, len(rows))
	for _, r := range rows {
		env := query.Env(r)
		sum := stationSummary{
			Station:      r.Station,
			InService:    env["en_service"].(int),
			OutOfService: env["hors_service"].(int),
		}
		sum.LegacyEquipment = nil
		if r.Latest != nil {
			sum.UpdatedAt = r.Latest.UpdatedAt
		}
		out = append(out, sum)
	}
	return marshalResult(out)
}

// handleShow renders a station diagram in the requested format.
func (s *StationServer) handleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("station")
	if err != nil {
		return mcp.NewToolResultError("station is required"), nil
	}
	format, err := diagram.ParseFormat(req.GetString("format", "ascii"))
	if err != nil || format == diagram.FormatPDF {
		return mcp.NewToolResultError("format must be ascii, mermaid, svg, or png"), nil
	}

	st, err := s.svc.Find(ctx, ref)
	if err != nil {
		return lookupFailure(ref, err), nil
	}
	l, err := s.svc.Diagram(ctx, station.DiagramRequest{StationID: st.ID, At: req.GetString("at", "")})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram failed: %v", err)), nil
	}
	data, err := diagram.Render(ctx, l, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}

	if format == diagram.FormatPNG {
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleHistory returns the snapshots of a station, optionally projected with jq.
func (s *StationServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("station")
	if err != nil {
		return mcp.NewToolResultError("station is required"), nil
	}
	st, err := s.svc.Find(ctx, ref)
	if err != nil {
		return lookupFailure(ref, err), nil
	}
	history, err := s.svc.History(ctx, st.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
	}

	program := req.GetString("jq", "")
	if program == "" {
		return marshalResult(history)
	}
	results, err := s.projector.Project(ctx, program, history)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("jq failed: %v", err)), nil
	}
	return marshalResult(results)
}

// handleUpdate records new equipment states. Names are applied in sorted
// order since JSON objects carry none.
func (s *StationServer) handleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("station")
	if err != nil {
		return mcp.NewToolResultError("station is required"), nil
	}
	raw := mcp.ParseStringMap(req, "states", nil)
	if len(raw) == 0 {
		return mcp.NewToolResultError("states is required"), nil
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	changes := schema.NewEquipmentStates()
	for _, name := range names {
		v, ok := raw[name].(string)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("state of %q must be a string", name)), nil
		}
		state, ok := schema.ParseOperatingState(v)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown state %q for %s", v, name)), nil
		}
		changes.Set(name, state)
	}

	st, err := s.svc.Find(ctx, ref)
	if err != nil {
		return lookupFailure(ref, err), nil
	}
	snap, err := s.svc.UpdateStates(ctx, st.ID, changes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", err)), nil
	}
	s.logger.Info("states updated over mcp", "station_id", st.ID, "changes", changes.Len())
	return marshalResult(snap)
}

// lookupFailure keeps an unknown station apart from a repository failure.
func lookupFailure(ref string, err error) *mcp.CallToolResult {
	if schema.HasCode(err, schema.ErrCodeNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("station %q not found", ref))
	}
	return mcp.NewToolResultError(fmt.Sprintf("station lookup failed: %v", err))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
