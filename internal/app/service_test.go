package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/ewtrail/internal/domain"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	repo     *fakeRepo
	observer *fakeObserver
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	repo := newFakeRepo()
	observer := newFakeObserver()
	idCounter := 0
	svc := NewService(repo, func() string {
		idCounter++
		return fmt.Sprintf("id-%d", idCounter)
	}, func() time.Time {
		return testNow
	}, ServiceConfig{
		Codes:    func(digits int) string { return fmt.Sprintf("%0*d", digits, 42) },
		Observer: observer,
	})

	repo.state.hubs["hub-a"] = domain.Hub{ID: "hub-a", Name: "Andheri"}
	repo.state.hubs["hub-b"] = domain.Hub{ID: "hub-b", Name: "Bandra"}
	repo.state.recyclers["rec-1"] = domain.Recycler{ID: "rec-1", Name: "GreenLoop"}
	repo.state.recyclers["rec-2"] = domain.Recycler{ID: "rec-2", Name: "Other"}
	repo.state.categories["laptops"] = domain.MaterialCategory{ID: "laptops", Name: "Laptops"}
	repo.state.categories["phones"] = domain.MaterialCategory{ID: "phones", Name: "Phones"}
	repo.state.users["captain"] = domain.User{ID: "captain", Name: "Asha", Role: domain.UserRoleFieldCaptain}
	repo.state.users["recycler-op"] = domain.User{ID: "recycler-op", Name: "Ravi", Role: domain.UserRoleRecyclerOperator}
	return testEnv{svc: svc, repo: repo, observer: observer}
}

// pickupAtHub creates a pickup and walks it to AT_HUB.
func (e testEnv) pickupAtHub(t *testing.T, hubID string) domain.Pickup {
	t.Helper()
	ctx := context.Background()
	pickup, err := e.svc.CreatePickup(ctx, CreatePickupInput{CitizenID: "cit-1", HubID: hubID, PrimaryCategoryID: "laptops"})
	if err != nil {
		t.Fatalf("CreatePickup() error = %v", err)
	}
	for _, status := range []domain.PickupStatus{
		domain.PickupStatusScheduled,
		domain.PickupStatusAssigned,
		domain.PickupStatusInCollection,
		domain.PickupStatusAtHub,
	} {
		pickup, err = e.svc.UpdatePickupStatus(ctx, UpdatePickupStatusInput{PickupID: pickup.ID, Status: status, ActorID: "captain"})
		if err != nil {
			t.Fatalf("UpdatePickupStatus(%s) error = %v", status, err)
		}
	}
	return pickup
}

// weighedIntake returns a hub intake for a fresh pickup at hubID.
func (e testEnv) weighedIntake(t *testing.T, hubID, weight string) domain.HubIntakeRecord {
	t.Helper()
	pickup := e.pickupAtHub(t, hubID)
	rec, err := e.svc.RecordHubIntake(context.Background(), RecordHubIntakeInput{
		PickupID:           pickup.ID,
		HubID:              hubID,
		FieldCaptainID:     "captain",
		MaterialCategoryID: "laptops",
		WeightKg:           decimal.RequireFromString(weight),
		PhotoRef:           "photo://" + pickup.ID,
	})
	if err != nil {
		t.Fatalf("RecordHubIntake() error = %v", err)
	}
	return rec
}

func requireKind(t *testing.T, err, kind error, code string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if code != "" && appErr.Code != code {
		t.Fatalf("expected code %q, got %q", code, appErr.Code)
	}
}

func TestCreatePickupAppendsGenesisEntry(t *testing.T) {
	env := newTestEnv(t)
	pickup, err := env.svc.CreatePickup(context.Background(), CreatePickupInput{HubID: "hub-a", PrimaryCategoryID: "laptops"})
	if err != nil {
		t.Fatalf("CreatePickup() error = %v", err)
	}
	if pickup.Code != "EW-2026-000042" || pickup.Status != domain.PickupStatusNew {
		t.Fatalf("unexpected pickup %#v", pickup)
	}
	entries, _ := env.repo.ListAuditEntries(context.Background(), domain.EntityTypePickup, pickup.ID)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].PrevHash != "GENESIS:pickup" || entries[0].ActorID != "" {
		t.Fatalf("unexpected genesis entry %#v", entries[0])
	}
	if entries[0].Payload["action"] != string(domain.AuditActionPickupCreated) {
		t.Fatalf("unexpected payload %#v", entries[0].Payload)
	}
}

func TestCreatePickupUnknownHub(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreatePickup(context.Background(), CreatePickupInput{HubID: "nowhere", PrimaryCategoryID: "laptops"})
	requireKind(t, err, ErrNotFound, "HUB_NOT_FOUND")
	if len(env.repo.state.pickups) != 0 || len(env.repo.state.audit) != 0 {
		t.Fatal("failed create must not persist anything")
	}
}

func TestUpdatePickupStatusRejectsWorkflowOwnedStatus(t *testing.T) {
	env := newTestEnv(t)
	pickup := env.pickupAtHub(t, "hub-a")
	_, err := env.svc.UpdatePickupStatus(context.Background(), UpdatePickupStatusInput{PickupID: pickup.ID, Status: domain.PickupStatusWeighed})
	requireKind(t, err, ErrPreconditionFailed, "PICKUP_STATUS_WORKFLOW_OWNED")
	_, err = env.svc.UpdatePickupStatus(context.Background(), UpdatePickupStatusInput{PickupID: pickup.ID, Status: domain.PickupStatusCancelled})
	requireKind(t, err, ErrInvalidTransition, "INVALID_PICKUP_TRANSITION")
	_, err = env.svc.UpdatePickupStatus(context.Background(), UpdatePickupStatusInput{PickupID: pickup.ID, Status: "LOST"})
	requireKind(t, err, ErrInvalidInput, "")
}

func TestRecordHubIntakeWeighsPickup(t *testing.T) {
	env := newTestEnv(t)
	pickup := env.pickupAtHub(t, "hub-a")
	rec, err := env.svc.RecordHubIntake(context.Background(), RecordHubIntakeInput{
		PickupID:           pickup.ID,
		HubID:              "hub-a",
		FieldCaptainID:     "captain",
		MaterialCategoryID: "laptops",
		WeightKg:           decimal.RequireFromString("10.000"),
		PhotoRef:           "photo://1",
	})
	if err != nil {
		t.Fatalf("RecordHubIntake() error = %v", err)
	}
	if got := env.repo.state.pickups[pickup.ID].Status; got != domain.PickupStatusWeighed {
		t.Fatalf("expected WEIGHED, got %q", got)
	}
	if _, ok := env.repo.state.intakes[rec.ID]; !ok {
		t.Fatal("expected hub intake to be stored")
	}
	last, err := env.repo.LatestAuditEntry(context.Background(), domain.EntityTypePickup, pickup.ID)
	if err != nil {
		t.Fatalf("LatestAuditEntry() error = %v", err)
	}
	if last.Payload["action"] != string(domain.AuditActionHubIntakeRecorded) || last.Payload["weightKg"] != "10.000" || last.ActorID != "captain" {
		t.Fatalf("unexpected intake audit entry %#v", last)
	}
}

func TestRecordHubIntakeFailures(t *testing.T) {
	env := newTestEnv(t)
	atHub := env.pickupAtHub(t, "hub-a")
	fresh, err := env.svc.CreatePickup(context.Background(), CreatePickupInput{HubID: "hub-a", PrimaryCategoryID: "laptops"})
	if err != nil {
		t.Fatalf("CreatePickup() error = %v", err)
	}
	base := RecordHubIntakeInput{
		PickupID:           atHub.ID,
		HubID:              "hub-a",
		FieldCaptainID:     "captain",
		MaterialCategoryID: "laptops",
		WeightKg:           decimal.RequireFromString("4.2"),
		PhotoRef:           "photo://1",
	}
	tests := []struct {
		name   string
		mutate func(*RecordHubIntakeInput)
		kind   error
		code   string
	}{
		{name: "missing pickup", mutate: func(in *RecordHubIntakeInput) { in.PickupID = "ghost" }, kind: ErrNotFound, code: "PICKUP_NOT_FOUND"},
		{name: "missing hub", mutate: func(in *RecordHubIntakeInput) { in.HubID = "ghost" }, kind: ErrNotFound, code: "HUB_NOT_FOUND"},
		{name: "missing category", mutate: func(in *RecordHubIntakeInput) { in.MaterialCategoryID = "ghost" }, kind: ErrNotFound, code: "MATERIAL_CATEGORY_NOT_FOUND"},
		{name: "hub mismatch", mutate: func(in *RecordHubIntakeInput) { in.HubID = "hub-b" }, kind: ErrMismatch, code: "PICKUP_HUB_MISMATCH"},
		{name: "not at hub", mutate: func(in *RecordHubIntakeInput) { in.PickupID = fresh.ID }, kind: ErrInvalidTransition, code: "INVALID_PICKUP_TRANSITION"},
		{name: "zero weight", mutate: func(in *RecordHubIntakeInput) { in.WeightKg = decimal.Zero }, kind: ErrInvalidInput, code: "INVALID_INPUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			auditBefore := len(env.repo.state.audit)
			_, err := env.svc.RecordHubIntake(context.Background(), in)
			requireKind(t, err, tc.kind, tc.code)
			if len(env.repo.state.intakes) != 0 || len(env.repo.state.audit) != auditBefore {
				t.Fatal("failed intake must not write records or audit entries")
			}
		})
	}
	if got := env.repo.state.pickups[atHub.ID].Status; got != domain.PickupStatusAtHub {
		t.Fatalf("pickup status changed after failures: %q", got)
	}
}

func TestCreateLotLinksIntakes(t *testing.T) {
	env := newTestEnv(t)
	first := env.weighedIntake(t, "hub-a", "3.000")
	second := env.weighedIntake(t, "hub-a", "7.500")

	detail, err := env.svc.CreateLot(context.Background(), CreateLotInput{
		HubID:              "hub-a",
		RecyclerID:         "rec-1",
		MaterialCategoryID: "laptops",
		HubIntakeRecordIDs: []string{first.ID, second.ID},
		ActorID:            "captain",
	})
	if err != nil {
		t.Fatalf("CreateLot() error = %v", err)
	}
	if detail.Lot.Code != "LOT-LAPT-2026-00042" || detail.Lot.Status != domain.LotStatusCreated {
		t.Fatalf("unexpected lot %#v", detail.Lot)
	}
	if len(detail.Pickups) != 2 {
		t.Fatalf("expected 2 lot links, got %d", len(detail.Pickups))
	}
	for _, rec := range []domain.HubIntakeRecord{first, second} {
		if got := env.repo.state.pickups[rec.PickupID].Status; got != domain.PickupStatusInLot {
			t.Fatalf("expected IN_LOT for %s, got %q", rec.PickupID, got)
		}
	}
	lotEntries, _ := env.repo.ListAuditEntries(context.Background(), domain.EntityTypeLot, detail.Lot.ID)
	if len(lotEntries) != 1 || lotEntries[0].Payload["action"] != string(domain.AuditActionLotCreated) {
		t.Fatalf("unexpected lot audit entries %#v", lotEntries)
	}
	available, err := env.svc.ListAvailableHubIntakes(context.Background(), "hub-a")
	if err != nil {
		t.Fatalf("ListAvailableHubIntakes() error = %v", err)
	}
	if len(available) != 0 {
		t.Fatalf("expected no available intakes, got %d", len(available))
	}
}

func TestCreateLotHubMismatchWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	own := env.weighedIntake(t, "hub-a", "3.000")
	foreign := env.weighedIntake(t, "hub-b", "3.000")
	auditBefore := len(env.repo.state.audit)

	_, err := env.svc.CreateLot(context.Background(), CreateLotInput{
		HubID:              "hub-a",
		RecyclerID:         "rec-1",
		MaterialCategoryID: "laptops",
		HubIntakeRecordIDs: []string{own.ID, foreign.ID},
	})
	requireKind(t, err, ErrMismatch, "HUB_INTAKE_HUB_MISMATCH")
	if len(env.repo.state.lots) != 0 {
		t.Fatal("expected no lot to be created")
	}
	if len(env.repo.state.audit) != auditBefore {
		t.Fatalf("expected no audit entries, got %d new", len(env.repo.state.audit)-auditBefore)
	}
	if got := env.repo.state.pickups[own.PickupID].Status; got != domain.PickupStatusWeighed {
		t.Fatalf("expected own pickup to stay WEIGHED, got %q", got)
	}
}

func TestCreateLotRejectsLinkedAndDuplicateIntakes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.weighedIntake(t, "hub-a", "3.000")
	in := CreateLotInput{HubID: "hub-a", RecyclerID: "rec-1", MaterialCategoryID: "laptops", HubIntakeRecordIDs: []string{rec.ID}}
	if _, err := env.svc.CreateLot(context.Background(), in); err != nil {
		t.Fatalf("CreateLot() error = %v", err)
	}
	_, err := env.svc.CreateLot(context.Background(), in)
	requireKind(t, err, ErrPreconditionFailed, "HUB_INTAKE_ALREADY_IN_LOT")

	in.HubIntakeRecordIDs = []string{rec.ID, " " + rec.ID}
	_, err = env.svc.CreateLot(context.Background(), in)
	requireKind(t, err, ErrInvalidInput, "INVALID_INPUT")

	in.HubIntakeRecordIDs = []string{rec.ID}
	in.MaterialCategoryID = "phones"
	_, err = env.svc.CreateLot(context.Background(), in)
	requireKind(t, err, ErrMismatch, "HUB_INTAKE_CATEGORY_MISMATCH")
}

func TestCreateLotRollsBackWhenLotAuditFails(t *testing.T) {
	env := newTestEnv(t)
	rec := env.weighedIntake(t, "hub-a", "3.000")
	auditBefore := len(env.repo.state.audit)
	boom := errors.New("disk full")
	env.repo.failOn["CreateAuditEntry:lot"] = boom

	_, err := env.svc.CreateLot(context.Background(), CreateLotInput{HubID: "hub-a", RecyclerID: "rec-1", MaterialCategoryID: "laptops", HubIntakeRecordIDs: []string{rec.ID}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected audit failure to propagate, got %v", err)
	}
	if got := env.repo.state.pickups[rec.PickupID].Status; got != domain.PickupStatusWeighed {
		t.Fatalf("expected pickup to stay WEIGHED after rollback, got %q", got)
	}
	if len(env.repo.state.lots) != 0 || len(env.repo.state.lotPickups) != 0 || len(env.repo.state.audit) != auditBefore {
		t.Fatal("expected rollback of lot, links and per-pickup audit entries")
	}
	if env.observer.failures[OpCreateLot] != 1 {
		t.Fatalf("expected one failed create_lot observation, got %d", env.observer.failures[OpCreateLot])
	}
}

func newDispatchedLot(t *testing.T, env testEnv, weight string) (LotDetail, domain.HubIntakeRecord) {
	t.Helper()
	rec := env.weighedIntake(t, "hub-a", weight)
	detail, err := env.svc.CreateLot(context.Background(), CreateLotInput{HubID: "hub-a", RecyclerID: "rec-1", MaterialCategoryID: "laptops", HubIntakeRecordIDs: []string{rec.ID}})
	if err != nil {
		t.Fatalf("CreateLot() error = %v", err)
	}
	detail, err = env.svc.DispatchLot(context.Background(), DispatchLotInput{
		LotID:            detail.Lot.ID,
		VehicleNumber:    "MH-02-AB-1234",
		DriverName:       "Vijay",
		DispatchWeightKg: decimal.RequireFromString(weight),
	})
	if err != nil {
		t.Fatalf("DispatchLot() error = %v", err)
	}
	return detail, rec
}

func TestDispatchLot(t *testing.T) {
	env := newTestEnv(t)
	detail, rec := newDispatchedLot(t, env, "10.000")
	if detail.Lot.Status != domain.LotStatusInTransit || detail.Dispatch == nil {
		t.Fatalf("unexpected dispatched lot %#v", detail)
	}
	if got := env.repo.state.pickups[rec.PickupID].Status; got != domain.PickupStatusLotDispatched {
		t.Fatalf("expected LOT_DISPATCHED, got %q", got)
	}
	_, err := env.svc.DispatchLot(context.Background(), DispatchLotInput{
		LotID:            detail.Lot.ID,
		VehicleNumber:    "MH-02-AB-1234",
		DriverName:       "Vijay",
		DispatchWeightKg: decimal.RequireFromString("10"),
	})
	requireKind(t, err, ErrPreconditionFailed, "LOT_NOT_DISPATCHABLE")
	if len(env.repo.state.dispatches) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(env.repo.state.dispatches))
	}
}

func TestConfirmRecyclerIntakeFlagsMediumAnomaly(t *testing.T) {
	env := newTestEnv(t)
	detail, rec := newDispatchedLot(t, env, "10.000")

	result, err := env.svc.ConfirmRecyclerIntake(context.Background(), ConfirmRecyclerIntakeInput{
		LotID:            detail.Lot.ID,
		RecyclerID:       "rec-1",
		ReceivedWeightKg: decimal.RequireFromString("9.000"),
		ConfirmedBy:      "recycler-op",
	})
	if err != nil {
		t.Fatalf("ConfirmRecyclerIntake() error = %v", err)
	}
	if domain.FormatWeightKg(result.Intake.VarianceKg) != "-1.000" {
		t.Fatalf("unexpected variance %s", domain.FormatWeightKg(result.Intake.VarianceKg))
	}
	if result.Anomaly == nil || result.Anomaly.Severity != domain.AnomalySeverityMedium {
		t.Fatalf("expected MEDIUM anomaly, got %#v", result.Anomaly)
	}
	if result.Lot.Status != domain.LotStatusReceivedAtRecycler {
		t.Fatalf("unexpected lot status %q", result.Lot.Status)
	}
	if got := env.repo.state.pickups[rec.PickupID].Status; got != domain.PickupStatusRecycled {
		t.Fatalf("expected RECYCLED, got %q", got)
	}

	pickupChain, err := env.svc.VerifyChain(context.Background(), domain.EntityTypePickup, rec.PickupID)
	if err != nil {
		t.Fatalf("VerifyChain(pickup) error = %v", err)
	}
	if !pickupChain.OK || pickupChain.Entries < 4 {
		t.Fatalf("unexpected pickup chain %#v", pickupChain)
	}
	lotChain, err := env.svc.VerifyChain(context.Background(), domain.EntityTypeLot, detail.Lot.ID)
	if err != nil {
		t.Fatalf("VerifyChain(lot) error = %v", err)
	}
	if !lotChain.OK || lotChain.Entries != 4 {
		t.Fatalf("expected 4 intact lot entries, got %#v", lotChain)
	}
	entries, _ := env.repo.ListAuditEntries(context.Background(), domain.EntityTypeLot, detail.Lot.ID)
	confirmed := entries[2].Payload
	if confirmed["action"] != string(domain.AuditActionRecyclerIntakeConfirmed) || confirmed["weightVarianceKg"] != "-1.000" {
		t.Fatalf("unexpected confirmation payload %#v", confirmed)
	}
	if fmt.Sprint(confirmed["weightVariancePct"]) != "10" {
		t.Fatalf("unexpected variance pct %v", confirmed["weightVariancePct"])
	}
	if entries[3].Payload["action"] != string(domain.AuditActionWeightAnomalyFlagged) {
		t.Fatalf("expected anomaly audit entry last, got %#v", entries[3].Payload)
	}
	if len(env.observer.anomalies) != 1 || len(env.observer.verifications) != 2 {
		t.Fatalf("unexpected observer state %#v", env.observer)
	}
}

func TestConfirmRecyclerIntakeWithinToleranceRaisesNoAnomaly(t *testing.T) {
	env := newTestEnv(t)
	detail, _ := newDispatchedLot(t, env, "100")
	result, err := env.svc.ConfirmRecyclerIntake(context.Background(), ConfirmRecyclerIntakeInput{
		LotID:            detail.Lot.ID,
		RecyclerID:       "rec-1",
		ReceivedWeightKg: decimal.RequireFromString("104"),
		VarianceReason:   domain.VarianceReasonScaleDiff,
		ConfirmedBy:      "recycler-op",
	})
	if err != nil {
		t.Fatalf("ConfirmRecyclerIntake() error = %v", err)
	}
	if result.Anomaly != nil || len(env.repo.state.anomalies) != 0 {
		t.Fatal("expected no anomaly within tolerance")
	}
}

func TestConfirmRecyclerIntakeWithoutDispatch(t *testing.T) {
	env := newTestEnv(t)
	rec := env.weighedIntake(t, "hub-a", "10.000")
	detail, err := env.svc.CreateLot(context.Background(), CreateLotInput{HubID: "hub-a", RecyclerID: "rec-1", MaterialCategoryID: "laptops", HubIntakeRecordIDs: []string{rec.ID}})
	if err != nil {
		t.Fatalf("CreateLot() error = %v", err)
	}
	auditBefore := len(env.repo.state.audit)

	_, err = env.svc.ConfirmRecyclerIntake(context.Background(), ConfirmRecyclerIntakeInput{
		LotID:            detail.Lot.ID,
		RecyclerID:       "rec-1",
		ReceivedWeightKg: decimal.RequireFromString("9"),
		ConfirmedBy:      "recycler-op",
	})
	requireKind(t, err, ErrPreconditionFailed, "LOT_NOT_DISPATCHED")
	if len(env.repo.state.recyclerIntakes) != 0 || len(env.repo.state.anomalies) != 0 || len(env.repo.state.audit) != auditBefore {
		t.Fatal("expected no side effects")
	}
	if got := env.repo.state.lots[detail.Lot.ID].Status; got != domain.LotStatusCreated {
		t.Fatalf("expected lot to stay CREATED, got %q", got)
	}
}

func TestConfirmRecyclerIntakeRecyclerMismatch(t *testing.T) {
	env := newTestEnv(t)
	detail, _ := newDispatchedLot(t, env, "10")
	_, err := env.svc.ConfirmRecyclerIntake(context.Background(), ConfirmRecyclerIntakeInput{
		LotID:            detail.Lot.ID,
		RecyclerID:       "rec-2",
		ReceivedWeightKg: decimal.RequireFromString("10"),
		ConfirmedBy:      "recycler-op",
	})
	requireKind(t, err, ErrMismatch, "LOT_RECYCLER_MISMATCH")
	_, err = env.svc.ConfirmRecyclerIntake(context.Background(), ConfirmRecyclerIntakeInput{
		LotID:            detail.Lot.ID,
		RecyclerID:       "rec-1",
		ReceivedWeightKg: decimal.RequireFromString("10"),
		VarianceReason:   "LOST_AT_SEA",
		ConfirmedBy:      "recycler-op",
	})
	requireKind(t, err, ErrInvalidInput, "INVALID_INPUT")
}

func TestSellRequestMirror(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req, err := env.svc.OpenSellRequest(ctx, OpenSellRequestInput{CitizenID: "cit-9", Notes: "old phones"})
	if err != nil {
		t.Fatalf("OpenSellRequest() error = %v", err)
	}
	pickup, err := env.svc.CreatePickupFromSellRequest(ctx, CreatePickupFromSellRequestInput{SellRequestID: req.ID, HubID: "hub-a", PrimaryCategoryID: "phones"})
	if err != nil {
		t.Fatalf("CreatePickupFromSellRequest() error = %v", err)
	}
	if pickup.Status != domain.PickupStatusScheduled || pickup.CitizenID != "cit-9" {
		t.Fatalf("unexpected pickup %#v", pickup)
	}
	if got := env.repo.state.sellRequests[req.ID]; got.Status != domain.SellRequestStatusPickupScheduled || got.PickupID != pickup.ID {
		t.Fatalf("unexpected sell request %#v", got)
	}
	_, err = env.svc.CreatePickupFromSellRequest(ctx, CreatePickupFromSellRequestInput{SellRequestID: req.ID, HubID: "hub-a", PrimaryCategoryID: "phones"})
	requireKind(t, err, ErrPreconditionFailed, "SELL_REQUEST_NOT_OPEN")

	if _, err := env.svc.UpdatePickupStatus(ctx, UpdatePickupStatusInput{PickupID: pickup.ID, Status: domain.PickupStatusAssigned}); err != nil {
		t.Fatalf("UpdatePickupStatus(ASSIGNED) error = %v", err)
	}
	if _, err := env.svc.UpdatePickupStatus(ctx, UpdatePickupStatusInput{PickupID: pickup.ID, Status: domain.PickupStatusInCollection}); err != nil {
		t.Fatalf("UpdatePickupStatus(IN_COLLECTION) error = %v", err)
	}
	if got := env.repo.state.sellRequests[req.ID].Status; got != domain.SellRequestStatusCollected {
		t.Fatalf("expected COLLECTED mirror, got %q", got)
	}

	env.repo.failOn["UpdateSellRequest"] = errors.New("mirror down")
	updated, err := env.svc.UpdatePickupStatus(ctx, UpdatePickupStatusInput{PickupID: pickup.ID, Status: domain.PickupStatusAtHub})
	if err != nil {
		t.Fatalf("mirror failure must not fail the operation: %v", err)
	}
	if updated.Status != domain.PickupStatusAtHub {
		t.Fatalf("unexpected status %q", updated.Status)
	}
	if len(env.observer.mirrorFails) != 1 || env.observer.mirrorFails[0] != OpUpdatePickupStatus {
		t.Fatalf("expected one mirror failure, got %v", env.observer.mirrorFails)
	}
}

func TestListAnomaliesClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, tc := range []struct{ in, want int }{{0, 50}, {-3, 50}, {1, 1}, {500, 200}} {
		if _, err := env.svc.ListAnomalies(ctx, AnomalyFilter{Limit: tc.in}); err != nil {
			t.Fatalf("ListAnomalies() error = %v", err)
		}
		if env.repo.lastAnomalies.Limit != tc.want {
			t.Fatalf("limit %d clamped to %d, want %d", tc.in, env.repo.lastAnomalies.Limit, tc.want)
		}
	}
	_, err := env.svc.ListAnomalies(ctx, AnomalyFilter{Severity: "CRITICAL"})
	requireKind(t, err, ErrInvalidInput, "")
}

func TestGetLotDetail(t *testing.T) {
	env := newTestEnv(t)
	detail, _ := newDispatchedLot(t, env, "10")
	got, err := env.svc.GetLot(context.Background(), detail.Lot.ID)
	if err != nil {
		t.Fatalf("GetLot() error = %v", err)
	}
	if got.Dispatch == nil || got.RecyclerIntake != nil || len(got.Pickups) != 1 {
		t.Fatalf("unexpected lot detail %#v", got)
	}
	_, err = env.svc.GetLot(context.Background(), "ghost")
	requireKind(t, err, ErrNotFound, "LOT_NOT_FOUND")
}
