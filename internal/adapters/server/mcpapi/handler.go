// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the
// custody audit surface.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/ewtrail/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter. Audit tools are always
// registered; custody lookup tools are added when audit also implements
// common.CustodyService.
func NewHandler(cfg Config, audit common.AuditReader) (*Handler, error) {
	if audit == nil {
		return nil, fmt.Errorf("audit reader is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerAuditTools(mcpSrv, audit)
	if custody, ok := audit.(common.CustodyService); ok {
		registerCustodyTools(mcpSrv, custody)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "ewtrail"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = "/" + strings.Trim(strings.TrimSpace(cfg.EndpointPath), "/")
	if cfg.EndpointPath == "/" {
		cfg.EndpointPath = "/mcp"
	}
	return cfg
}

// registerAuditTools registers chain verification, audit listing, anomaly and
// lot lookups.
func registerAuditTools(srv *mcpserver.MCPServer, audit common.AuditReader) {
	srv.AddTool(
		mcp.NewTool(
			"ewtrail.verify_chain",
			mcp.WithDescription("Recompute the audit hash chain of one entity and report the first broken entry."),
			mcp.WithString("entity_type", mcp.Required(), mcp.Description("Entity type"), mcp.Enum("pickup", "lot")),
			mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entityType, entityID, errResult := requireEntity(req)
			if errResult != nil {
				return errResult, nil
			}
			out, err := audit.VerifyChain(ctx, entityType, entityID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("verify_chain", out)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.list_audit_entries",
			mcp.WithDescription("List the audit entries of one entity in chain order."),
			mcp.WithString("entity_type", mcp.Required(), mcp.Description("Entity type"), mcp.Enum("pickup", "lot")),
			mcp.WithString("entity_id", mcp.Required(), mcp.Description("Entity identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entityType, entityID, errResult := requireEntity(req)
			if errResult != nil {
				return errResult, nil
			}
			entries, err := audit.ListAuditEntries(ctx, entityType, entityID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_audit_entries", map[string]any{"entries": entries})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.list_anomalies",
			mcp.WithDescription("List flagged custody anomalies, newest first."),
			mcp.WithString("entity_type", mcp.Description("Filter by entity type")),
			mcp.WithString("entity_id", mcp.Description("Filter by entity identifier")),
			mcp.WithString("severity", mcp.Description("Filter by severity"), mcp.Enum("LOW", "MEDIUM", "HIGH")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := audit.ListAnomalies(ctx, common.ListAnomaliesRequest{
				EntityType: req.GetString("entity_type", ""),
				EntityID:   req.GetString("entity_id", ""),
				Severity:   req.GetString("severity", ""),
				Limit:      req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_anomalies", map[string]any{"anomalies": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.get_lot",
			mcp.WithDescription("Return one lot with its pickups, dispatch and recycler intake."),
			mcp.WithString("lot_id", mcp.Required(), mcp.Description("Lot identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			lotID, err := req.RequireString("lot_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			lot, err := audit.GetLot(ctx, lotID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_lot", lot)
		},
	)
}

// registerCustodyTools registers read-only pickup, lot and EPR credit lookups.
func registerCustodyTools(srv *mcpserver.MCPServer, custody common.CustodyService) {
	srv.AddTool(
		mcp.NewTool(
			"ewtrail.get_pickup",
			mcp.WithDescription("Return one pickup by id."),
			mcp.WithString("pickup_id", mcp.Required(), mcp.Description("Pickup identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			pickupID, err := req.RequireString("pickup_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			pickup, err := custody.GetPickup(ctx, pickupID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_pickup", pickup)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.list_lots",
			mcp.WithDescription("List lots, newest first."),
			mcp.WithString("hub_id", mcp.Description("Filter by hub")),
			mcp.WithString("recycler_id", mcp.Description("Filter by recycler")),
			mcp.WithString("status", mcp.Description("Filter by lot status")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := custody.ListLots(ctx, common.ListLotsRequest{
				HubID:      req.GetString("hub_id", ""),
				RecyclerID: req.GetString("recycler_id", ""),
				Status:     req.GetString("status", ""),
				Limit:      req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_lots", map[string]any{"lots": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.list_available_hub_intakes",
			mcp.WithDescription("List weighed hub intakes not yet assigned to a lot."),
			mcp.WithString("hub_id", mcp.Required(), mcp.Description("Hub identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			hubID, err := req.RequireString("hub_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			rows, err := custody.ListAvailableHubIntakes(ctx, hubID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_available_hub_intakes", map[string]any{"intakes": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"ewtrail.list_epr_credits",
			mcp.WithDescription("List EPR credits, newest first."),
			mcp.WithString("brand_id", mcp.Description("Filter by brand")),
			mcp.WithString("lot_id", mcp.Description("Filter by lot")),
			mcp.WithString("reporting_period", mcp.Description("Filter by reporting period, e.g. 2026-Q1")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := custody.ListEprCredits(ctx, common.ListEprCreditsRequest{
				BrandID:         req.GetString("brand_id", ""),
				LotID:           req.GetString("lot_id", ""),
				ReportingPeriod: req.GetString("reporting_period", ""),
				Limit:           req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_epr_credits", map[string]any{"credits": rows})
		},
	)
}

// requireEntity reads the entity_type and entity_id arguments.
func requireEntity(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	entityType, err := req.RequireString("entity_type")
	if err != nil {
		return "", "", invalidRequestToolResult(err)
	}
	entityID, err := req.RequireString("entity_id")
	if err != nil {
		return "", "", invalidRequestToolResult(err)
	}
	return entityType, entityID, nil
}

func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// invalidRequestToolResult reports malformed tool arguments.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors using
// the same classification as the HTTP envelope.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("internal: unknown error")
	}
	info := common.DescribeError(err)
	msg := info.Code + ": " + info.Message
	if reason, ok := info.Details["reason"].(string); ok && reason != "" {
		msg += " (" + reason + ")"
	}
	return mcp.NewToolResultError(msg)
}
