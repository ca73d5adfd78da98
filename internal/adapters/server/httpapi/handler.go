// Package httpapi provides the REST HTTP adapter for the custody service.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/ewtrail/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.CustodyService
	mux     *http.ServeMux
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error common.ErrorInfo `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the custody service.
func NewHandler(service common.CustodyService) *Handler {
	h := &Handler{service: service, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /hubs", h.handleCreateHub)
	h.mux.HandleFunc("GET /hubs/{id}/available-intakes", h.handleAvailableIntakes)
	h.mux.HandleFunc("POST /recyclers", h.handleCreateRecycler)
	h.mux.HandleFunc("POST /material-categories", h.handleCreateMaterialCategory)
	h.mux.HandleFunc("POST /users", h.handleCreateUser)
	h.mux.HandleFunc("POST /brands", h.handleCreateBrand)

	h.mux.HandleFunc("POST /sell-requests", h.handleOpenSellRequest)
	h.mux.HandleFunc("POST /sell-requests/{id}/pickup", h.handleSchedulePickup)
	h.mux.HandleFunc("POST /pickups", h.handleCreatePickup)
	h.mux.HandleFunc("GET /pickups", h.handleListPickups)
	h.mux.HandleFunc("GET /pickups/{id}", h.handleGetPickup)
	h.mux.HandleFunc("POST /pickups/{id}/status", h.handleUpdatePickupStatus)
	h.mux.HandleFunc("POST /hub-intakes", h.handleRecordHubIntake)

	h.mux.HandleFunc("POST /lots", h.handleCreateLot)
	h.mux.HandleFunc("GET /lots", h.handleListLots)
	h.mux.HandleFunc("GET /lots/{id}", h.handleGetLot)
	h.mux.HandleFunc("POST /lots/{id}/dispatch", h.handleDispatchLot)
	h.mux.HandleFunc("POST /lots/{id}/recycler-intake", h.handleConfirmRecyclerIntake)
	h.mux.HandleFunc("POST /epr-credits", h.handleGenerateEprCredits)
	h.mux.HandleFunc("GET /epr-credits", h.handleListEprCredits)

	h.mux.HandleFunc("GET /anomalies", h.handleListAnomalies)
	h.mux.HandleFunc("GET /audit/{entityType}/{entityId}", h.handleListAuditEntries)
	h.mux.HandleFunc("GET /audit/{entityType}/{entityId}/verify", h.handleVerifyChain)
	h.mux.HandleFunc("/", h.handleUnmatched)
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, common.ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    "service_unavailable",
			Message: "custody service is not configured",
		})
		return
	}
	r.URL.Path = "/" + strings.Trim(r.URL.Path, "/")
	h.mux.ServeHTTP(w, r)
}

// handleUnmatched answers 405 when the path exists under another method and
// 404 otherwise.
func (h *Handler) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	var allowed []string
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		if method == r.Method {
			continue
		}
		alt := r.Clone(r.Context())
		alt.Method = method
		if _, pattern := h.mux.Handler(alt); pattern != "/" {
			allowed = append(allowed, method)
		}
	}
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeJSONError(w, common.ErrorInfo{Status: http.StatusMethodNotAllowed, Code: "method_not_allowed", Message: "method not allowed"})
		return
	}
	writeJSONError(w, common.ErrorInfo{Status: http.StatusNotFound, Code: "not_found", Message: "endpoint not found"})
}

func (h *Handler) handleCreateHub(w http.ResponseWriter, r *http.Request) {
	var req common.CreateHubRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	hub, err := h.service.CreateHub(r.Context(), req)
	respond(w, http.StatusCreated, hub, err)
}

func (h *Handler) handleCreateRecycler(w http.ResponseWriter, r *http.Request) {
	var req common.CreateRecyclerRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	recycler, err := h.service.CreateRecycler(r.Context(), req)
	respond(w, http.StatusCreated, recycler, err)
}

func (h *Handler) handleCreateMaterialCategory(w http.ResponseWriter, r *http.Request) {
	var req common.CreateMaterialCategoryRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	category, err := h.service.CreateMaterialCategory(r.Context(), req)
	respond(w, http.StatusCreated, category, err)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req common.CreateUserRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	respond(w, http.StatusCreated, user, err)
}

func (h *Handler) handleCreateBrand(w http.ResponseWriter, r *http.Request) {
	var req common.CreateBrandRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	brand, err := h.service.CreateBrand(r.Context(), req)
	respond(w, http.StatusCreated, brand, err)
}

func (h *Handler) handleOpenSellRequest(w http.ResponseWriter, r *http.Request) {
	var req common.OpenSellRequestRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	sr, err := h.service.OpenSellRequest(r.Context(), req)
	respond(w, http.StatusCreated, sr, err)
}

func (h *Handler) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	var req common.SchedulePickupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.SellRequestID = r.PathValue("id")
	pickup, err := h.service.SchedulePickup(r.Context(), req)
	respond(w, http.StatusCreated, pickup, err)
}

func (h *Handler) handleCreatePickup(w http.ResponseWriter, r *http.Request) {
	var req common.CreatePickupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	pickup, err := h.service.CreatePickup(r.Context(), req)
	respond(w, http.StatusCreated, pickup, err)
}

func (h *Handler) handleListPickups(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	pickups, err := h.service.ListPickups(r.Context(), common.ListPickupsRequest{
		HubID:  q.Get("hub_id"),
		Status: q.Get("status"),
		Limit:  limit,
	})
	respond(w, http.StatusOK, map[string]any{"pickups": pickups}, err)
}

func (h *Handler) handleGetPickup(w http.ResponseWriter, r *http.Request) {
	pickup, err := h.service.GetPickup(r.Context(), r.PathValue("id"))
	respond(w, http.StatusOK, pickup, err)
}

func (h *Handler) handleUpdatePickupStatus(w http.ResponseWriter, r *http.Request) {
	var req common.UpdatePickupStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.PickupID = r.PathValue("id")
	pickup, err := h.service.UpdatePickupStatus(r.Context(), req)
	respond(w, http.StatusOK, pickup, err)
}

func (h *Handler) handleRecordHubIntake(w http.ResponseWriter, r *http.Request) {
	var req common.RecordHubIntakeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	intake, err := h.service.RecordHubIntake(r.Context(), req)
	respond(w, http.StatusCreated, intake, err)
}

func (h *Handler) handleAvailableIntakes(w http.ResponseWriter, r *http.Request) {
	intakes, err := h.service.ListAvailableHubIntakes(r.Context(), r.PathValue("id"))
	respond(w, http.StatusOK, map[string]any{"intakes": intakes}, err)
}

func (h *Handler) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	var req common.CreateLotRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	lot, err := h.service.CreateLot(r.Context(), req)
	respond(w, http.StatusCreated, lot, err)
}

func (h *Handler) handleListLots(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	lots, err := h.service.ListLots(r.Context(), common.ListLotsRequest{
		HubID:      q.Get("hub_id"),
		RecyclerID: q.Get("recycler_id"),
		Status:     q.Get("status"),
		Limit:      limit,
	})
	respond(w, http.StatusOK, map[string]any{"lots": lots}, err)
}

func (h *Handler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	lot, err := h.service.GetLot(r.Context(), r.PathValue("id"))
	respond(w, http.StatusOK, lot, err)
}

func (h *Handler) handleDispatchLot(w http.ResponseWriter, r *http.Request) {
	var req common.DispatchLotRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.LotID = r.PathValue("id")
	lot, err := h.service.DispatchLot(r.Context(), req)
	respond(w, http.StatusOK, lot, err)
}

func (h *Handler) handleConfirmRecyclerIntake(w http.ResponseWriter, r *http.Request) {
	var req common.ConfirmRecyclerIntakeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	req.LotID = r.PathValue("id")
	res, err := h.service.ConfirmRecyclerIntake(r.Context(), req)
	respond(w, http.StatusOK, res, err)
}

func (h *Handler) handleGenerateEprCredits(w http.ResponseWriter, r *http.Request) {
	var req common.GenerateEprCreditRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	credit, err := h.service.GenerateEprCredits(r.Context(), req)
	respond(w, http.StatusCreated, credit, err)
}

func (h *Handler) handleListEprCredits(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	credits, err := h.service.ListEprCredits(r.Context(), common.ListEprCreditsRequest{
		BrandID:         q.Get("brand_id"),
		LotID:           q.Get("lot_id"),
		ReportingPeriod: q.Get("reporting_period"),
		Limit:           limit,
	})
	respond(w, http.StatusOK, map[string]any{"credits": credits}, err)
}

func (h *Handler) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	anomalies, err := h.service.ListAnomalies(r.Context(), common.ListAnomaliesRequest{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Severity:   q.Get("severity"),
		Limit:      limit,
	})
	respond(w, http.StatusOK, map[string]any{"anomalies": anomalies}, err)
}

func (h *Handler) handleListAuditEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListAuditEntries(r.Context(), r.PathValue("entityType"), r.PathValue("entityId"))
	respond(w, http.StatusOK, map[string]any{"entries": entries}, err)
}

// handleVerifyChain answers 200 for intact chains and 409 with the
// verification body for broken ones.
func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	check, err := h.service.VerifyChain(r.Context(), r.PathValue("entityType"), r.PathValue("entityId"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	status := http.StatusOK
	if !check.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, check)
}

// respond writes payload on success or the mapped error envelope.
func respond(w http.ResponseWriter, status int, payload any, err error) {
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, status, payload)
}

// queryLimit parses the optional limit query parameter.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeErrorFrom(w, fmt.Errorf("limit must be an integer: %w", common.ErrInvalidRequest))
		return 0, false
	}
	return limit, true
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	writeJSONError(w, common.DescribeError(err))
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, info common.ErrorInfo) {
	writeJSON(w, info.Status, ErrorEnvelope{Error: info})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":%q}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape
// checks and writes the error response itself on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) bool {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeErrorFrom(w, fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err)))
		return false
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeErrorFrom(w, fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest))
		return false
	}
	if err := r.Context().Err(); err != nil {
		writeErrorFrom(w, fmt.Errorf("request canceled: %w", err))
		return false
	}
	return true
}
