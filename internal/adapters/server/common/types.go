// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"time"
)

// CreateHubRequest registers one hub.
type CreateHubRequest struct {
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// CreateRecyclerRequest registers one recycler.
type CreateRecyclerRequest struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"license_number,omitempty"`
}

// CreateMaterialCategoryRequest registers one material category.
type CreateMaterialCategoryRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateUserRequest registers one operator.
type CreateUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreatePickupRequest captures transport input for pickup creation.
type CreatePickupRequest struct {
	CitizenID         string `json:"citizen_id,omitempty"`
	HubID             string `json:"hub_id"`
	PrimaryCategoryID string `json:"primary_category_id"`
	SourceChannel     string `json:"source_channel,omitempty"`
	Notes             string `json:"notes,omitempty"`
	ActorID           string `json:"actor_id,omitempty"`
}

// ListPickupsRequest captures pickup list filters.
type ListPickupsRequest struct {
	HubID  string
	Status string
	Limit  int
}

// UpdatePickupStatusRequest moves one pickup to a manually managed status.
type UpdatePickupStatusRequest struct {
	PickupID string `json:"-"`
	Status   string `json:"status"`
	ActorID  string `json:"actor_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// OpenSellRequestRequest opens one citizen sell request.
type OpenSellRequestRequest struct {
	CitizenID string `json:"citizen_id"`
	Notes     string `json:"notes,omitempty"`
}

// SchedulePickupRequest turns an open sell request into a scheduled pickup.
type SchedulePickupRequest struct {
	SellRequestID     string `json:"-"`
	HubID             string `json:"hub_id"`
	PrimaryCategoryID string `json:"primary_category_id"`
	ActorID           string `json:"actor_id,omitempty"`
}

// RecordHubIntakeRequest captures one hub weigh-in. Weights are decimal strings.
type RecordHubIntakeRequest struct {
	PickupID           string     `json:"pickup_id"`
	HubID              string     `json:"hub_id"`
	FieldCaptainID     string     `json:"field_captain_id"`
	MaterialCategoryID string     `json:"material_category_id"`
	KabadiID           string     `json:"kabadi_id,omitempty"`
	WeightKg           string     `json:"weight_kg"`
	PhotoRef           string     `json:"photo_ref"`
	GeoPoint           string     `json:"geo_point,omitempty"`
	Remarks            string     `json:"remarks,omitempty"`
	WeighedAt          *time.Time `json:"weighed_at,omitempty"`
}

// CreateLotRequest aggregates weighed intake records into a lot.
type CreateLotRequest struct {
	HubID              string   `json:"hub_id"`
	RecyclerID         string   `json:"recycler_id"`
	MaterialCategoryID string   `json:"material_category_id"`
	HubIntakeRecordIDs []string `json:"hub_intake_record_ids"`
	ActorID            string   `json:"actor_id,omitempty"`
}

// ListLotsRequest captures lot list filters.
type ListLotsRequest struct {
	HubID      string
	RecyclerID string
	Status     string
	Limit      int
}

// DispatchLotRequest records a lot leaving its hub.
type DispatchLotRequest struct {
	LotID            string     `json:"-"`
	VehicleNumber    string     `json:"vehicle_number"`
	DriverName       string     `json:"driver_name"`
	DispatchWeightKg string     `json:"dispatch_weight_kg"`
	DispatchedAt     *time.Time `json:"dispatched_at,omitempty"`
	DocsRef          string     `json:"docs_ref,omitempty"`
	ActorID          string     `json:"actor_id,omitempty"`
}

// ConfirmRecyclerIntakeRequest records arrival at the recycler.
type ConfirmRecyclerIntakeRequest struct {
	LotID            string     `json:"-"`
	RecyclerID       string     `json:"recycler_id"`
	ReceivedWeightKg string     `json:"received_weight_kg"`
	ReceivedAt       *time.Time `json:"received_at,omitempty"`
	VarianceReason   string     `json:"variance_reason,omitempty"`
	ConfirmedBy      string     `json:"confirmed_by"`
	AssayRef         string     `json:"assay_ref,omitempty"`
}

// CreateBrandRequest registers one brand.
type CreateBrandRequest struct {
	Name                  string `json:"name"`
	EprRegistrationNumber string `json:"epr_registration_number,omitempty"`
}

// GenerateEprCreditRequest credits a brand with a recycled lot's weight.
type GenerateEprCreditRequest struct {
	LotID           string `json:"lot_id"`
	BrandID         string `json:"brand_id"`
	ReportingPeriod string `json:"reporting_period"`
	ActorID         string `json:"actor_id,omitempty"`
}

// ListEprCreditsRequest captures EPR credit list filters.
type ListEprCreditsRequest struct {
	BrandID         string
	LotID           string
	ReportingPeriod string
	Limit           int
}

// ListAnomaliesRequest captures anomaly list filters.
type ListAnomaliesRequest struct {
	EntityType string
	EntityID   string
	Severity   string
	Limit      int
}

// Hub is the transport view of a hub.
type Hub struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recycler is the transport view of a recycler.
type Recycler struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	LicenseNumber string    `json:"license_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Brand is the transport view of a brand.
type Brand struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	EprRegistrationNumber string    `json:"epr_registration_number,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// EprCredit is the transport view of one EPR credit.
type EprCredit struct {
	ID                 string    `json:"id"`
	BrandID            string    `json:"brand_id"`
	LotID              string    `json:"lot_id"`
	MaterialCategoryID string    `json:"material_category_id"`
	WeightKg           string    `json:"weight_kg"`
	ReportingPeriod    string    `json:"reporting_period"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// MaterialCategory is the transport view of a material category.
type MaterialCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the transport view of an operator.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Pickup is the transport view of a pickup.
type Pickup struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	CitizenID         string    `json:"citizen_id,omitempty"`
	HubID             string    `json:"hub_id"`
	PrimaryCategoryID string    `json:"primary_category_id"`
	SourceChannel     string    `json:"source_channel"`
	Status            string    `json:"status"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SellRequest is the transport view of a sell request.
type SellRequest struct {
	ID        string    `json:"id"`
	CitizenID string    `json:"citizen_id"`
	PickupID  string    `json:"pickup_id,omitempty"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HubIntake is the transport view of a hub intake record.
type HubIntake struct {
	ID                 string    `json:"id"`
	PickupID           string    `json:"pickup_id"`
	HubID              string    `json:"hub_id"`
	FieldCaptainID     string    `json:"field_captain_id"`
	MaterialCategoryID string    `json:"material_category_id"`
	KabadiID           string    `json:"kabadi_id,omitempty"`
	WeightKg           string    `json:"weight_kg"`
	PhotoRef           string    `json:"photo_ref"`
	GeoPoint           string    `json:"geo_point,omitempty"`
	Remarks            string    `json:"remarks,omitempty"`
	WeighedAt          time.Time `json:"weighed_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Lot is the transport view of a lot.
type Lot struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	HubID              string    `json:"hub_id"`
	RecyclerID         string    `json:"recycler_id"`
	MaterialCategoryID string    `json:"material_category_id"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LotPickup links one intake record to a lot.
type LotPickup struct {
	ID                string    `json:"id"`
	HubIntakeRecordID string    `json:"hub_intake_record_id"`
	PickupID          string    `json:"pickup_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// LotDispatch is the transport view of a dispatch record.
type LotDispatch struct {
	ID            string    `json:"id"`
	VehicleNumber string    `json:"vehicle_number"`
	DriverName    string    `json:"driver_name"`
	WeightKg      string    `json:"weight_kg"`
	DispatchedAt  time.Time `json:"dispatched_at"`
	DocsRef       string    `json:"docs_ref,omitempty"`
	DispatchedBy  string    `json:"dispatched_by,omitempty"`
}

// RecyclerIntake is the transport view of a recycler confirmation.
type RecyclerIntake struct {
	ID               string    `json:"id"`
	RecyclerID       string    `json:"recycler_id"`
	ReceivedWeightKg string    `json:"received_weight_kg"`
	ReceivedAt       time.Time `json:"received_at"`
	VarianceKg       string    `json:"variance_kg"`
	VarianceReason   string    `json:"variance_reason"`
	AssayRef         string    `json:"assay_ref,omitempty"`
	ConfirmedBy      string    `json:"confirmed_by"`
}

// LotDetail bundles a lot with its links and transport facts.
type LotDetail struct {
	Lot            Lot             `json:"lot"`
	Pickups        []LotPickup     `json:"pickups"`
	Dispatch       *LotDispatch    `json:"dispatch,omitempty"`
	RecyclerIntake *RecyclerIntake `json:"recycler_intake,omitempty"`
}

// VarianceAssessment reports the dispatch/receipt comparison.
type VarianceAssessment struct {
	DispatchedKg string `json:"dispatched_kg"`
	ReceivedKg   string `json:"received_kg"`
	VarianceKg   string `json:"variance_kg"`
	VariancePct  string `json:"variance_pct"`
	ThresholdPct string `json:"threshold_pct"`
	Severity     string `json:"severity,omitempty"`
}

// RecyclerIntakeResult reports a confirmed arrival.
type RecyclerIntakeResult struct {
	Lot      Lot                `json:"lot"`
	Intake   RecyclerIntake     `json:"intake"`
	Variance VarianceAssessment `json:"variance"`
	Anomaly  *Anomaly           `json:"anomaly,omitempty"`
}

// Anomaly is the transport view of a flagged anomaly.
type Anomaly struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditEntry is the transport view of one chain link.
type AuditEntry struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
	Payload    map[string]any `json:"payload"`
	ActorID    string         `json:"actor_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ChainVerification reports one chain re-derivation.
type ChainVerification struct {
	EntityType       string `json:"entity_type"`
	EntityID         string `json:"entity_id"`
	OK               bool   `json:"ok"`
	Entries          int    `json:"entries"`
	BrokenAtEntryID  string `json:"broken_at_entry_id,omitempty"`
	ExpectedHash     string `json:"expected_hash,omitempty"`
	ActualHash       string `json:"actual_hash,omitempty"`
	ExpectedPrevHash string `json:"expected_prev_hash,omitempty"`
	ActualPrevHash   string `json:"actual_prev_hash,omitempty"`
}

// ReferenceService registers the master data custody operations refer to.
type ReferenceService interface {
	CreateHub(context.Context, CreateHubRequest) (Hub, error)
	CreateRecycler(context.Context, CreateRecyclerRequest) (Recycler, error)
	CreateMaterialCategory(context.Context, CreateMaterialCategoryRequest) (MaterialCategory, error)
	CreateUser(context.Context, CreateUserRequest) (User, error)
	CreateBrand(context.Context, CreateBrandRequest) (Brand, error)
}

// AuditReader exposes the read-only integrity surface.
type AuditReader interface {
	GetLot(context.Context, string) (LotDetail, error)
	ListAnomalies(context.Context, ListAnomaliesRequest) ([]Anomaly, error)
	ListAuditEntries(ctx context.Context, entityType, entityID string) ([]AuditEntry, error)
	VerifyChain(ctx context.Context, entityType, entityID string) (ChainVerification, error)
}

// CustodyService is the full transport-facing custody surface.
type CustodyService interface {
	ReferenceService
	AuditReader

	CreatePickup(context.Context, CreatePickupRequest) (Pickup, error)
	GetPickup(context.Context, string) (Pickup, error)
	ListPickups(context.Context, ListPickupsRequest) ([]Pickup, error)
	UpdatePickupStatus(context.Context, UpdatePickupStatusRequest) (Pickup, error)
	OpenSellRequest(context.Context, OpenSellRequestRequest) (SellRequest, error)
	SchedulePickup(context.Context, SchedulePickupRequest) (Pickup, error)

	RecordHubIntake(context.Context, RecordHubIntakeRequest) (HubIntake, error)
	ListAvailableHubIntakes(context.Context, string) ([]HubIntake, error)

	CreateLot(context.Context, CreateLotRequest) (LotDetail, error)
	ListLots(context.Context, ListLotsRequest) ([]Lot, error)
	DispatchLot(context.Context, DispatchLotRequest) (LotDetail, error)
	ConfirmRecyclerIntake(context.Context, ConfirmRecyclerIntakeRequest) (RecyclerIntakeResult, error)

	GenerateEprCredits(context.Context, GenerateEprCreditRequest) (EprCredit, error)
	ListEprCredits(context.Context, ListEprCreditsRequest) ([]EprCredit, error)
}
