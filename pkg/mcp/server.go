package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/stationflow/internal/diagram"
	"github.com/rendis/stationflow/internal/query"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/pkg/schema"
)

// StationService is the part of station.Service the tools call.
type StationService interface {
	List(ctx context.Context) ([]schema.Station, error)
	Find(ctx context.Context, ref string) (schema.Station, error)
	Latest(ctx context.Context, stationID string) (schema.Snapshot, bool, error)
	History(ctx context.Context, stationID string) ([]schema.Snapshot, error)
	UpdateStates(ctx context.Context, stationID string, changes *schema.EquipmentStates) (schema.Snapshot, error)
	Diagram(ctx context.Context, req station.DiagramRequest) (*diagram.Layout, error)
}

// StationServerDeps holds the dependencies for creating a StationServer.
type StationServerDeps struct {
	Service StationService
	Logger  *slog.Logger
}

// StationServer wraps an MCP server with station tool handlers.
type StationServer struct {
	svc       StationService
	filter    *query.Filter
	projector *query.Projector
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewStationServer creates a new StationServer with all 4 tools registered.
func NewStationServer(deps StationServerDeps, version string) *StationServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &StationServer{
		svc:       deps.Service,
		filter:    query.NewFilter(),
		projector: query.NewProjector(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"stationflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("stationflow keeps wastewater treatment stations and the state history of their equipment. Use stations.list to find stations, stations.show for a flow diagram, stations.history for past snapshots and stations.update to record new equipment states."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *StationServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *StationServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *StationServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listTool(), Handler: s.handleList},
		{Tool: showTool(), Handler: s.handleShow},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: updateTool(), Handler: s.handleUpdate},
	}
}

// --- Tool definitions ---

func listTool() mcp.Tool {
	return mcp.NewTool("stations.list",
		mcp.WithDescription("List stations with their latest equipment counts"),
		mcp.WithString("where", mcp.Description("Filter expression over nom, localisation, debit_nominal, type_procede, destination, en_service, hors_service, etats")),
	)
}

func showTool() mcp.Tool {
	return mcp.NewTool("stations.show",
		mcp.WithDescription("Render the flow diagram of a station. Returns ASCII art, Mermaid flowchart syntax, SVG or base64-encoded PNG"),
		mcp.WithString("station", mcp.Required(), mcp.Description("Station ID or name")),
		mcp.WithString("format",
			mcp.Enum("ascii", "mermaid", "svg", "png"),
			mcp.Description("Output format (default: ascii)"),
		),
		mcp.WithString("at", mcp.Description("Snapshot date_maj or date to show instead of the latest")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("stations.history",
		mcp.WithDescription("Get the state history of a station, oldest first"),
		mcp.WithString("station", mcp.Required(), mcp.Description("Station ID or name")),
		mcp.WithString("jq", mcp.Description("jq program applied to the history array")),
	)
}

func updateTool() mcp.Tool {
	return mcp.NewTool("stations.update",
		mcp.WithDescription("Record new equipment states for a station"),
		mcp.WithString("station", mcp.Required(), mcp.Description("Station ID or name")),
		mcp.WithObject("states", mcp.Required(), mcp.Description("Equipment name to state (en_service, en_panne, en_maintenance, hors_service, ...)")),
	)
}
