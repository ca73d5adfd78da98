package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/hylla/ewtrail/internal/adapters/server/common"
	"github.com/hylla/ewtrail/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubAuditReader provides deterministic audit responses for MCP tool tests.
type stubAuditReader struct {
	verification common.ChainVerification
	entries      []common.AuditEntry
	anomalies    []common.Anomaly
	lot          common.LotDetail
	err          error

	lastEntity    [2]string
	lastAnomalies common.ListAnomaliesRequest
	lastLotID     string
}

func (s *stubAuditReader) GetLot(_ context.Context, id string) (common.LotDetail, error) {
	s.lastLotID = id
	return s.lot, s.err
}

func (s *stubAuditReader) ListAnomalies(_ context.Context, req common.ListAnomaliesRequest) ([]common.Anomaly, error) {
	s.lastAnomalies = req
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.Anomaly(nil), s.anomalies...), nil
}

func (s *stubAuditReader) ListAuditEntries(_ context.Context, entityType, entityID string) ([]common.AuditEntry, error) {
	s.lastEntity = [2]string{entityType, entityID}
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.AuditEntry(nil), s.entries...), nil
}

func (s *stubAuditReader) VerifyChain(_ context.Context, entityType, entityID string) (common.ChainVerification, error) {
	s.lastEntity = [2]string{entityType, entityID}
	return s.verification, s.err
}

// stubCustodyService extends the audit stub with the lookups custody tools use.
type stubCustodyService struct {
	common.CustodyService
	*stubAuditReader

	lots        []common.Lot
	lastLots    common.ListLotsRequest
	credits     []common.EprCredit
	lastCredits common.ListEprCreditsRequest
}

func (s *stubCustodyService) GetLot(ctx context.Context, id string) (common.LotDetail, error) {
	return s.stubAuditReader.GetLot(ctx, id)
}

func (s *stubCustodyService) ListAnomalies(ctx context.Context, req common.ListAnomaliesRequest) ([]common.Anomaly, error) {
	return s.stubAuditReader.ListAnomalies(ctx, req)
}

func (s *stubCustodyService) ListAuditEntries(ctx context.Context, entityType, entityID string) ([]common.AuditEntry, error) {
	return s.stubAuditReader.ListAuditEntries(ctx, entityType, entityID)
}

func (s *stubCustodyService) VerifyChain(ctx context.Context, entityType, entityID string) (common.ChainVerification, error) {
	return s.stubAuditReader.VerifyChain(ctx, entityType, entityID)
}

func (s *stubCustodyService) ListLots(_ context.Context, req common.ListLotsRequest) ([]common.Lot, error) {
	s.lastLots = req
	return append([]common.Lot(nil), s.lots...), nil
}

func (s *stubCustodyService) ListEprCredits(_ context.Context, req common.ListEprCreditsRequest) ([]common.EprCredit, error) {
	s.lastCredits = req
	return append([]common.EprCredit(nil), s.credits...), nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     int            `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "ewtrail-test",
				"version": "1.0.0",
			},
		},
	}
}

func startServer(t *testing.T, audit common.AuditReader) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, audit)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

func listToolNames(t *testing.T, server *httptest.Server) []string {
	t.Helper()
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	names := make([]string, 0, len(toolsRaw))
	for _, raw := range toolsRaw {
		if tool, ok := raw.(map[string]any); ok {
			name, _ := tool["name"].(string)
			names = append(names, name)
		}
	}
	return names
}

func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubAuditReader{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

func TestHandlerRegistersAuditTools(t *testing.T) {
	names := listToolNames(t, startServer(t, &stubAuditReader{}))
	for _, want := range []string{"ewtrail.verify_chain", "ewtrail.list_audit_entries", "ewtrail.list_anomalies", "ewtrail.get_lot"} {
		if !slices.Contains(names, want) {
			t.Fatalf("tool list missing %s: %#v", want, names)
		}
	}
	if slices.Contains(names, "ewtrail.list_lots") {
		t.Fatalf("unexpected custody tool without custody service: %#v", names)
	}
}

func TestHandlerRegistersCustodyToolsWhenAvailable(t *testing.T) {
	custody := &stubCustodyService{
		stubAuditReader: &stubAuditReader{},
		lots:            []common.Lot{{ID: "lot-1", Status: "CREATED"}},
	}
	server := startServer(t, custody)
	names := listToolNames(t, server)
	for _, want := range []string{"ewtrail.get_pickup", "ewtrail.list_lots", "ewtrail.list_available_hub_intakes", "ewtrail.list_epr_credits"} {
		if !slices.Contains(names, want) {
			t.Fatalf("tool list missing %s: %#v", want, names)
		}
	}

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "ewtrail.list_lots", map[string]any{
		"hub_id": "h1",
		"limit":  10,
	}))
	structured := toolResultStructured(t, callResp.Result)
	lots, ok := structured["lots"].([]any)
	if !ok || len(lots) != 1 {
		t.Fatalf("lots = %#v, want one row", structured["lots"])
	}
	if custody.lastLots.HubID != "h1" || custody.lastLots.Limit != 10 {
		t.Fatalf("unexpected list request %#v", custody.lastLots)
	}
}

func TestHandlerListEprCreditsToolCall(t *testing.T) {
	custody := &stubCustodyService{
		stubAuditReader: &stubAuditReader{},
		credits:         []common.EprCredit{{ID: "credit-1", BrandID: "brand-1", WeightKg: "9.750", ReportingPeriod: "2026-Q1"}},
	}
	server := startServer(t, custody)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "ewtrail.list_epr_credits", map[string]any{
		"brand_id":         "brand-1",
		"reporting_period": "2026-Q1",
	}))
	structured := toolResultStructured(t, callResp.Result)
	rows, ok := structured["credits"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("credits = %#v, want one row", structured["credits"])
	}
	if custody.lastCredits.BrandID != "brand-1" || custody.lastCredits.ReportingPeriod != "2026-Q1" {
		t.Fatalf("unexpected list request %#v", custody.lastCredits)
	}
}

func TestHandlerVerifyChainToolCall(t *testing.T) {
	audit := &stubAuditReader{
		verification: common.ChainVerification{EntityType: "lot", EntityID: "l1", OK: false, Entries: 4, BrokenAtEntryID: "a3"},
	}
	server := startServer(t, audit)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "ewtrail.verify_chain", map[string]any{
		"entity_type": "lot",
		"entity_id":   "l1",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["ok"] != false || structured["broken_at_entry_id"] != "a3" {
		t.Fatalf("unexpected verification payload %#v", structured)
	}
	if audit.lastEntity != [2]string{"lot", "l1"} {
		t.Fatalf("unexpected entity args %v", audit.lastEntity)
	}
}

func TestHandlerListAnomaliesToolCall(t *testing.T) {
	audit := &stubAuditReader{anomalies: []common.Anomaly{{ID: "an1", Severity: "HIGH"}}}
	server := startServer(t, audit)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "ewtrail.list_anomalies", map[string]any{
		"severity": "HIGH",
	}))
	structured := toolResultStructured(t, callResp.Result)
	rows, ok := structured["anomalies"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("anomalies = %#v, want one row", structured["anomalies"])
	}
	if audit.lastAnomalies.Severity != "HIGH" {
		t.Fatalf("severity = %q, want HIGH", audit.lastAnomalies.Severity)
	}
}

func TestHandlerToolCallErrorPaths(t *testing.T) {
	audit := &stubAuditReader{
		err: &app.Error{Kind: app.ErrNotFound, Code: "LOT_NOT_FOUND", Message: "lot not found"},
	}
	server := startServer(t, audit)

	_, missingArgResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "ewtrail.get_lot", map[string]any{}))
	if isError, _ := missingArgResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missingArgResp.Result["isError"])
	}
	if got := toolResultText(t, missingArgResp.Result); !strings.HasPrefix(got, "invalid_request:") {
		t.Fatalf("error text = %q, want prefix invalid_request:", got)
	}

	_, mappedErrResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "ewtrail.get_lot", map[string]any{
		"lot_id": "missing",
	}))
	if isError, _ := mappedErrResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", mappedErrResp.Result["isError"])
	}
	if got := toolResultText(t, mappedErrResp.Result); got != "not_found: lot not found (LOT_NOT_FOUND)" {
		t.Fatalf("error text = %q", got)
	}
}

func TestNewHandlerRequiresAuditReader(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "ewtrail", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trimmed values and slash prefix",
			in:   Config{ServerName: " ewtrail-hub ", ServerVersion: " v1.2.3 ", EndpointPath: "custom/path"},
			want: Config{ServerName: "ewtrail-hub", ServerVersion: "v1.2.3", EndpointPath: "/custom/path"},
		},
		{
			name: "endpoint trim of repeated slashes",
			in:   Config{EndpointPath: "///mcp///"},
			want: Config{ServerName: "ewtrail", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver"},
		{name: "missing inner http handler", handler: &Handler{}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", wantPrefix: "internal:"},
		{name: "invalid request", err: errors.Join(common.ErrInvalidRequest, errors.New("bad weight")), wantPrefix: "invalid_request:"},
		{name: "integrity", err: &app.Error{Kind: app.ErrIntegrityViolation, Code: "CHAIN_BROKEN", Message: "chain broken"}, wantPrefix: "integrity_violation:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal:"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			text, ok := result.Content[0].(mcp.TextContent)
			if !ok {
				t.Fatalf("content[0] has unexpected type %T", result.Content[0])
			}
			if !strings.HasPrefix(text.Text, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", text.Text, tt.wantPrefix)
			}
		})
	}
}
