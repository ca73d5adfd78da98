package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

var _ CustodyService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// CreateHub registers a hub.
func (a *AppServiceAdapter) CreateHub(ctx context.Context, in CreateHubRequest) (Hub, error) {
	if err := a.ready(); err != nil {
		return Hub{}, err
	}
	hub, err := a.service.CreateHub(ctx, in.Name, in.City)
	if err != nil {
		return Hub{}, err
	}
	return mapHub(hub), nil
}

// CreateRecycler registers a recycler.
func (a *AppServiceAdapter) CreateRecycler(ctx context.Context, in CreateRecyclerRequest) (Recycler, error) {
	if err := a.ready(); err != nil {
		return Recycler{}, err
	}
	recycler, err := a.service.CreateRecycler(ctx, in.Name, in.LicenseNumber)
	if err != nil {
		return Recycler{}, err
	}
	return mapRecycler(recycler), nil
}

// CreateMaterialCategory registers a material category.
func (a *AppServiceAdapter) CreateMaterialCategory(ctx context.Context, in CreateMaterialCategoryRequest) (MaterialCategory, error) {
	if err := a.ready(); err != nil {
		return MaterialCategory{}, err
	}
	c, err := a.service.CreateMaterialCategory(ctx, in.ID, in.Name)
	if err != nil {
		return MaterialCategory{}, err
	}
	return MaterialCategory{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}, nil
}

// CreateUser registers an operator.
func (a *AppServiceAdapter) CreateUser(ctx context.Context, in CreateUserRequest) (User, error) {
	if err := a.ready(); err != nil {
		return User{}, err
	}
	u, err := a.service.CreateUser(ctx, in.Name, domain.UserRole(upper(in.Role)))
	if err != nil {
		return User{}, err
	}
	return User{ID: u.ID, Name: u.Name, Role: string(u.Role), CreatedAt: u.CreatedAt}, nil
}

// CreatePickup registers a NEW pickup.
func (a *AppServiceAdapter) CreatePickup(ctx context.Context, in CreatePickupRequest) (Pickup, error) {
	if err := a.ready(); err != nil {
		return Pickup{}, err
	}
	p, err := a.service.CreatePickup(ctx, app.CreatePickupInput{
		CitizenID:         in.CitizenID,
		HubID:             in.HubID,
		PrimaryCategoryID: in.PrimaryCategoryID,
		SourceChannel:     domain.SourceChannel(upper(in.SourceChannel)),
		Notes:             in.Notes,
		ActorID:           in.ActorID,
	})
	if err != nil {
		return Pickup{}, err
	}
	return mapPickup(p), nil
}

// GetPickup returns one pickup.
func (a *AppServiceAdapter) GetPickup(ctx context.Context, id string) (Pickup, error) {
	if err := a.ready(); err != nil {
		return Pickup{}, err
	}
	p, err := a.service.GetPickup(ctx, id)
	if err != nil {
		return Pickup{}, err
	}
	return mapPickup(p), nil
}

// ListPickups lists pickups newest first.
func (a *AppServiceAdapter) ListPickups(ctx context.Context, in ListPickupsRequest) ([]Pickup, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	pickups, err := a.service.ListPickups(ctx, app.PickupFilter{
		HubID:  strings.TrimSpace(in.HubID),
		Status: domain.PickupStatus(upper(in.Status)),
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return mapPickups(pickups), nil
}

// UpdatePickupStatus moves a pickup to a manually managed status.
func (a *AppServiceAdapter) UpdatePickupStatus(ctx context.Context, in UpdatePickupStatusRequest) (Pickup, error) {
	if err := a.ready(); err != nil {
		return Pickup{}, err
	}
	p, err := a.service.UpdatePickupStatus(ctx, app.UpdatePickupStatusInput{
		PickupID: in.PickupID,
		Status:   domain.PickupStatus(upper(in.Status)),
		ActorID:  in.ActorID,
		Reason:   in.Reason,
	})
	if err != nil {
		return Pickup{}, err
	}
	return mapPickup(p), nil
}

// OpenSellRequest opens a citizen sell request.
func (a *AppServiceAdapter) OpenSellRequest(ctx context.Context, in OpenSellRequestRequest) (SellRequest, error) {
	if err := a.ready(); err != nil {
		return SellRequest{}, err
	}
	req, err := a.service.OpenSellRequest(ctx, app.OpenSellRequestInput{CitizenID: in.CitizenID, Notes: in.Notes})
	if err != nil {
		return SellRequest{}, err
	}
	return mapSellRequest(req), nil
}

// SchedulePickup creates a SCHEDULED pickup for an open sell request.
func (a *AppServiceAdapter) SchedulePickup(ctx context.Context, in SchedulePickupRequest) (Pickup, error) {
	if err := a.ready(); err != nil {
		return Pickup{}, err
	}
	p, err := a.service.CreatePickupFromSellRequest(ctx, app.CreatePickupFromSellRequestInput{
		SellRequestID:     in.SellRequestID,
		HubID:             in.HubID,
		PrimaryCategoryID: in.PrimaryCategoryID,
		ActorID:           in.ActorID,
	})
	if err != nil {
		return Pickup{}, err
	}
	return mapPickup(p), nil
}

// RecordHubIntake weighs a pickup at its hub.
func (a *AppServiceAdapter) RecordHubIntake(ctx context.Context, in RecordHubIntakeRequest) (HubIntake, error) {
	if err := a.ready(); err != nil {
		return HubIntake{}, err
	}
	weight, err := parseWeight("weight_kg", in.WeightKg)
	if err != nil {
		return HubIntake{}, err
	}
	rec, err := a.service.RecordHubIntake(ctx, app.RecordHubIntakeInput{
		PickupID:           in.PickupID,
		HubID:              in.HubID,
		FieldCaptainID:     in.FieldCaptainID,
		MaterialCategoryID: in.MaterialCategoryID,
		KabadiID:           in.KabadiID,
		WeightKg:           weight,
		PhotoRef:           in.PhotoRef,
		GeoPoint:           in.GeoPoint,
		Remarks:            in.Remarks,
		WeighedAt:          deref(in.WeighedAt),
	})
	if err != nil {
		return HubIntake{}, err
	}
	return mapHubIntake(rec), nil
}

// ListAvailableHubIntakes lists a hub's unlinked intake records.
func (a *AppServiceAdapter) ListAvailableHubIntakes(ctx context.Context, hubID string) ([]HubIntake, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	records, err := a.service.ListAvailableHubIntakes(ctx, hubID)
	if err != nil {
		return nil, err
	}
	return mapHubIntakes(records), nil
}

// CreateLot aggregates intake records into a lot.
func (a *AppServiceAdapter) CreateLot(ctx context.Context, in CreateLotRequest) (LotDetail, error) {
	if err := a.ready(); err != nil {
		return LotDetail{}, err
	}
	detail, err := a.service.CreateLot(ctx, app.CreateLotInput{
		HubID:              in.HubID,
		RecyclerID:         in.RecyclerID,
		MaterialCategoryID: in.MaterialCategoryID,
		HubIntakeRecordIDs: in.HubIntakeRecordIDs,
		ActorID:            in.ActorID,
	})
	if err != nil {
		return LotDetail{}, err
	}
	return mapLotDetail(detail), nil
}

// GetLot returns a lot with its links and transport facts.
func (a *AppServiceAdapter) GetLot(ctx context.Context, id string) (LotDetail, error) {
	if err := a.ready(); err != nil {
		return LotDetail{}, err
	}
	detail, err := a.service.GetLot(ctx, id)
	if err != nil {
		return LotDetail{}, err
	}
	return mapLotDetail(detail), nil
}

// ListLots lists lots newest first.
func (a *AppServiceAdapter) ListLots(ctx context.Context, in ListLotsRequest) ([]Lot, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	lots, err := a.service.ListLots(ctx, app.LotFilter{
		HubID:      strings.TrimSpace(in.HubID),
		RecyclerID: strings.TrimSpace(in.RecyclerID),
		Status:     domain.LotStatus(upper(in.Status)),
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Lot, 0, len(lots))
	for _, l := range lots {
		out = append(out, mapLot(l))
	}
	return out, nil
}

// DispatchLot puts a lot in transit.
func (a *AppServiceAdapter) DispatchLot(ctx context.Context, in DispatchLotRequest) (LotDetail, error) {
	if err := a.ready(); err != nil {
		return LotDetail{}, err
	}
	weight, err := parseWeight("dispatch_weight_kg", in.DispatchWeightKg)
	if err != nil {
		return LotDetail{}, err
	}
	detail, err := a.service.DispatchLot(ctx, app.DispatchLotInput{
		LotID:            in.LotID,
		VehicleNumber:    in.VehicleNumber,
		DriverName:       in.DriverName,
		DispatchWeightKg: weight,
		DispatchedAt:     deref(in.DispatchedAt),
		DocsRef:          in.DocsRef,
		ActorID:          in.ActorID,
	})
	if err != nil {
		return LotDetail{}, err
	}
	return mapLotDetail(detail), nil
}

// ConfirmRecyclerIntake records arrival at the recycler.
func (a *AppServiceAdapter) ConfirmRecyclerIntake(ctx context.Context, in ConfirmRecyclerIntakeRequest) (RecyclerIntakeResult, error) {
	if err := a.ready(); err != nil {
		return RecyclerIntakeResult{}, err
	}
	weight, err := parseWeight("received_weight_kg", in.ReceivedWeightKg)
	if err != nil {
		return RecyclerIntakeResult{}, err
	}
	res, err := a.service.ConfirmRecyclerIntake(ctx, app.ConfirmRecyclerIntakeInput{
		LotID:            in.LotID,
		RecyclerID:       in.RecyclerID,
		ReceivedWeightKg: weight,
		ReceivedAt:       deref(in.ReceivedAt),
		VarianceReason:   domain.VarianceReason(in.VarianceReason),
		ConfirmedBy:      in.ConfirmedBy,
		AssayRef:         in.AssayRef,
	})
	if err != nil {
		return RecyclerIntakeResult{}, err
	}
	out := RecyclerIntakeResult{
		Lot:      mapLot(res.Lot),
		Intake:   mapRecyclerIntake(res.Intake),
		Variance: mapVariance(res.Variance),
	}
	if res.Anomaly != nil {
		anomaly := mapAnomaly(*res.Anomaly)
		out.Anomaly = &anomaly
	}
	return out, nil
}

// CreateBrand registers a brand.
func (a *AppServiceAdapter) CreateBrand(ctx context.Context, in CreateBrandRequest) (Brand, error) {
	if err := a.ready(); err != nil {
		return Brand{}, err
	}
	brand, err := a.service.CreateBrand(ctx, in.Name, in.EprRegistrationNumber)
	if err != nil {
		return Brand{}, err
	}
	return mapBrand(brand), nil
}

// GenerateEprCredits credits a brand with a recycled lot's received weight.
func (a *AppServiceAdapter) GenerateEprCredits(ctx context.Context, in GenerateEprCreditRequest) (EprCredit, error) {
	if err := a.ready(); err != nil {
		return EprCredit{}, err
	}
	credit, err := a.service.GenerateEprCredits(ctx, app.GenerateEprCreditInput{
		LotID:           in.LotID,
		BrandID:         in.BrandID,
		ReportingPeriod: in.ReportingPeriod,
		ActorID:         in.ActorID,
	})
	if err != nil {
		return EprCredit{}, err
	}
	return mapEprCredit(credit), nil
}

// ListEprCredits lists credits newest first.
func (a *AppServiceAdapter) ListEprCredits(ctx context.Context, in ListEprCreditsRequest) ([]EprCredit, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	credits, err := a.service.ListEprCredits(ctx, app.EprCreditFilter{
		BrandID:         in.BrandID,
		LotID:           in.LotID,
		ReportingPeriod: strings.TrimSpace(in.ReportingPeriod),
		Limit:           in.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]EprCredit, 0, len(credits))
	for _, c := range credits {
		out = append(out, mapEprCredit(c))
	}
	return out, nil
}

// ListAnomalies lists anomalies newest first.
func (a *AppServiceAdapter) ListAnomalies(ctx context.Context, in ListAnomaliesRequest) ([]Anomaly, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	anomalies, err := a.service.ListAnomalies(ctx, app.AnomalyFilter{
		EntityType: domain.EntityType(strings.TrimSpace(in.EntityType)),
		EntityID:   strings.TrimSpace(in.EntityID),
		Severity:   domain.AnomalySeverity(upper(in.Severity)),
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Anomaly, 0, len(anomalies))
	for _, an := range anomalies {
		out = append(out, mapAnomaly(an))
	}
	return out, nil
}

// ListAuditEntries returns an entity's chain oldest first.
func (a *AppServiceAdapter) ListAuditEntries(ctx context.Context, entityType, entityID string) ([]AuditEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	entries, err := a.service.ListAuditEntries(ctx, domain.EntityType(strings.TrimSpace(entityType)), entityID)
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, mapAuditEntry(e))
	}
	return out, nil
}

// VerifyChain re-derives an entity's chain.
func (a *AppServiceAdapter) VerifyChain(ctx context.Context, entityType, entityID string) (ChainVerification, error) {
	if err := a.ready(); err != nil {
		return ChainVerification{}, err
	}
	v, err := a.service.VerifyChain(ctx, domain.EntityType(strings.TrimSpace(entityType)), entityID)
	if err != nil {
		return ChainVerification{}, err
	}
	return mapVerification(v), nil
}

// parseWeight parses a required decimal weight field.
func parseWeight(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required: %w", field, ErrInvalidRequest)
	}
	w, err := domain.ParseWeightKg(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, errors.Join(ErrInvalidRequest, err))
	}
	return w, nil
}

func upper(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
