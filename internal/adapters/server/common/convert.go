package common

import (
	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
)

func mapHub(h domain.Hub) Hub {
	return Hub{ID: h.ID, Name: h.Name, City: h.City, CreatedAt: h.CreatedAt}
}

func mapRecycler(r domain.Recycler) Recycler {
	return Recycler{ID: r.ID, Name: r.Name, LicenseNumber: r.LicenseNumber, CreatedAt: r.CreatedAt}
}

func mapBrand(b domain.Brand) Brand {
	return Brand{ID: b.ID, Name: b.Name, EprRegistrationNumber: b.EprRegistrationNumber, CreatedAt: b.CreatedAt}
}

func mapEprCredit(c domain.EprCredit) EprCredit {
	return EprCredit{
		ID:                 c.ID,
		BrandID:            c.BrandID,
		LotID:              c.LotID,
		MaterialCategoryID: c.MaterialCategoryID,
		WeightKg:           domain.FormatWeightKg(c.WeightKg),
		ReportingPeriod:    c.ReportingPeriod,
		GeneratedAt:        c.GeneratedAt,
	}
}

func mapPickup(p domain.Pickup) Pickup {
	return Pickup{
		ID:                p.ID,
		Code:              p.Code,
		CitizenID:         p.CitizenID,
		HubID:             p.HubID,
		PrimaryCategoryID: p.PrimaryCategoryID,
		SourceChannel:     string(p.SourceChannel),
		Status:            string(p.Status),
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func mapPickups(in []domain.Pickup) []Pickup {
	out := make([]Pickup, 0, len(in))
	for _, p := range in {
		out = append(out, mapPickup(p))
	}
	return out
}

func mapSellRequest(s domain.SellRequest) SellRequest {
	return SellRequest{
		ID:        s.ID,
		CitizenID: s.CitizenID,
		PickupID:  s.PickupID,
		Status:    string(s.Status),
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func mapHubIntake(h domain.HubIntakeRecord) HubIntake {
	return HubIntake{
		ID:                 h.ID,
		PickupID:           h.PickupID,
		HubID:              h.HubID,
		FieldCaptainID:     h.FieldCaptainID,
		MaterialCategoryID: h.MaterialCategoryID,
		KabadiID:           h.KabadiID,
		WeightKg:           domain.FormatWeightKg(h.WeightKg),
		PhotoRef:           h.PhotoRef,
		GeoPoint:           h.GeoPoint,
		Remarks:            h.Remarks,
		WeighedAt:          h.WeighedAt,
		CreatedAt:          h.CreatedAt,
	}
}

func mapHubIntakes(in []domain.HubIntakeRecord) []HubIntake {
	out := make([]HubIntake, 0, len(in))
	for _, h := range in {
		out = append(out, mapHubIntake(h))
	}
	return out
}

func mapLot(l domain.Lot) Lot {
	return Lot{
		ID:                 l.ID,
		Code:               l.Code,
		HubID:              l.HubID,
		RecyclerID:         l.RecyclerID,
		MaterialCategoryID: l.MaterialCategoryID,
		Status:             string(l.Status),
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func mapDispatch(d domain.LotDispatch) LotDispatch {
	return LotDispatch{
		ID:            d.ID,
		VehicleNumber: d.VehicleNumber,
		DriverName:    d.DriverName,
		WeightKg:      domain.FormatWeightKg(d.WeightKg),
		DispatchedAt:  d.DispatchedAt,
		DocsRef:       d.DocsRef,
		DispatchedBy:  d.DispatchedBy,
	}
}

func mapRecyclerIntake(r domain.RecyclerIntake) RecyclerIntake {
	return RecyclerIntake{
		ID:               r.ID,
		RecyclerID:       r.RecyclerID,
		ReceivedWeightKg: domain.FormatWeightKg(r.ReceivedWeightKg),
		ReceivedAt:       r.ReceivedAt,
		VarianceKg:       domain.FormatWeightKg(r.VarianceKg),
		VarianceReason:   string(r.VarianceReason),
		AssayRef:         r.AssayRef,
		ConfirmedBy:      r.ConfirmedBy,
	}
}

func mapLotDetail(d app.LotDetail) LotDetail {
	out := LotDetail{Lot: mapLot(d.Lot), Pickups: make([]LotPickup, 0, len(d.Pickups))}
	for _, lp := range d.Pickups {
		out.Pickups = append(out.Pickups, LotPickup{
			ID:                lp.ID,
			HubIntakeRecordID: lp.HubIntakeRecordID,
			PickupID:          lp.PickupID,
			CreatedAt:         lp.CreatedAt,
		})
	}
	if d.Dispatch != nil {
		dispatch := mapDispatch(*d.Dispatch)
		out.Dispatch = &dispatch
	}
	if d.RecyclerIntake != nil {
		intake := mapRecyclerIntake(*d.RecyclerIntake)
		out.RecyclerIntake = &intake
	}
	return out
}

func mapVariance(v domain.VarianceAssessment) VarianceAssessment {
	return VarianceAssessment{
		DispatchedKg: domain.FormatWeightKg(v.DispatchedKg),
		ReceivedKg:   domain.FormatWeightKg(v.ReceivedKg),
		VarianceKg:   domain.FormatWeightKg(v.VarianceKg),
		VariancePct:  v.VariancePercent().String(),
		ThresholdPct: v.ThresholdPct.Mul(hundred).Round(2).String(),
		Severity:     string(v.Severity),
	}
}

func mapAnomaly(a domain.Anomaly) Anomaly {
	return Anomaly{
		ID:         a.ID,
		EntityType: string(a.EntityType),
		EntityID:   a.EntityID,
		Type:       string(a.Type),
		Severity:   string(a.Severity),
		Payload:    a.Payload,
		CreatedAt:  a.CreatedAt,
	}
}

func mapAuditEntry(e domain.AuditEntry) AuditEntry {
	return AuditEntry{
		ID:         e.ID,
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		PrevHash:   e.PrevHash,
		Hash:       e.Hash,
		Payload:    e.Payload,
		ActorID:    e.ActorID,
		CreatedAt:  e.CreatedAt,
	}
}

func mapVerification(v app.ChainVerification) ChainVerification {
	return ChainVerification{
		EntityType:       string(v.EntityType),
		EntityID:         v.EntityID,
		OK:               v.OK,
		Entries:          v.Entries,
		BrokenAtEntryID:  v.BrokenAtEntryID,
		ExpectedHash:     v.ExpectedHash,
		ActualHash:       v.ActualHash,
		ExpectedPrevHash: v.ExpectedPrevHash,
		ActualPrevHash:   v.ActualPrevHash,
	}
}
