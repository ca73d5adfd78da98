package app

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/hylla/ewtrail/internal/domain"
)

// fakeState is the snapshot-able content of fakeRepo.
type fakeState struct {
	hubs            map[string]domain.Hub
	recyclers       map[string]domain.Recycler
	categories      map[string]domain.MaterialCategory
	users           map[string]domain.User
	pickups         map[string]domain.Pickup
	intakes         map[string]domain.HubIntakeRecord
	lots            map[string]domain.Lot
	lotPickups      []domain.LotPickup
	dispatches      []domain.LotDispatch
	recyclerIntakes map[string]domain.RecyclerIntake
	audit           []domain.AuditEntry
	anomalies       []domain.Anomaly
	sellRequests    map[string]domain.SellRequest
	brands          map[string]domain.Brand
	eprCredits      []domain.EprCredit
}

func (s fakeState) clone() fakeState {
	return fakeState{
		hubs:            maps.Clone(s.hubs),
		recyclers:       maps.Clone(s.recyclers),
		categories:      maps.Clone(s.categories),
		users:           maps.Clone(s.users),
		pickups:         maps.Clone(s.pickups),
		intakes:         maps.Clone(s.intakes),
		lots:            maps.Clone(s.lots),
		lotPickups:      slices.Clone(s.lotPickups),
		dispatches:      slices.Clone(s.dispatches),
		recyclerIntakes: maps.Clone(s.recyclerIntakes),
		audit:           slices.Clone(s.audit),
		anomalies:       slices.Clone(s.anomalies),
		sellRequests:    maps.Clone(s.sellRequests),
		brands:          maps.Clone(s.brands),
		eprCredits:      slices.Clone(s.eprCredits),
	}
}

// fakeRepo is an in-memory Store whose WithinTx restores a snapshot on error.
type fakeRepo struct {
	state         fakeState
	seq           int64
	failOn        map[string]error
	lastAnomalies AnomalyFilter
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		state: fakeState{
			hubs:            map[string]domain.Hub{},
			recyclers:       map[string]domain.Recycler{},
			categories:      map[string]domain.MaterialCategory{},
			users:           map[string]domain.User{},
			pickups:         map[string]domain.Pickup{},
			intakes:         map[string]domain.HubIntakeRecord{},
			lots:            map[string]domain.Lot{},
			recyclerIntakes: map[string]domain.RecyclerIntake{},
			sellRequests:    map[string]domain.SellRequest{},
			brands:          map[string]domain.Brand{},
		},
		failOn: map[string]error{},
	}
}

func (f *fakeRepo) WithinTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snapshot := f.state.clone()
	seq := f.seq
	if err := fn(ctx, f); err != nil {
		f.state = snapshot
		f.seq = seq
		return err
	}
	return nil
}

func (f *fakeRepo) CreateHub(_ context.Context, h domain.Hub) error {
	f.state.hubs[h.ID] = h
	return nil
}

func (f *fakeRepo) GetHub(_ context.Context, id string) (domain.Hub, error) {
	h, ok := f.state.hubs[id]
	if !ok {
		return domain.Hub{}, ErrNotFound
	}
	return h, nil
}

func (f *fakeRepo) CreateRecycler(_ context.Context, r domain.Recycler) error {
	f.state.recyclers[r.ID] = r
	return nil
}

func (f *fakeRepo) GetRecycler(_ context.Context, id string) (domain.Recycler, error) {
	r, ok := f.state.recyclers[id]
	if !ok {
		return domain.Recycler{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) CreateMaterialCategory(_ context.Context, c domain.MaterialCategory) error {
	f.state.categories[c.ID] = c
	return nil
}

func (f *fakeRepo) GetMaterialCategory(_ context.Context, id string) (domain.MaterialCategory, error) {
	c, ok := f.state.categories[id]
	if !ok {
		return domain.MaterialCategory{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) CreateUser(_ context.Context, u domain.User) error {
	f.state.users[u.ID] = u
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (domain.User, error) {
	u, ok := f.state.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreatePickup(_ context.Context, p domain.Pickup) error {
	f.state.pickups[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdatePickup(_ context.Context, p domain.Pickup) error {
	if err := f.failOn["UpdatePickup"]; err != nil {
		return err
	}
	if _, ok := f.state.pickups[p.ID]; !ok {
		return ErrNotFound
	}
	f.state.pickups[p.ID] = p
	return nil
}

func (f *fakeRepo) GetPickup(_ context.Context, id string) (domain.Pickup, error) {
	p, ok := f.state.pickups[id]
	if !ok {
		return domain.Pickup{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListPickups(_ context.Context, filter PickupFilter) ([]domain.Pickup, error) {
	out := make([]domain.Pickup, 0, len(f.state.pickups))
	for _, p := range f.state.pickups {
		if filter.HubID != "" && p.HubID != filter.HubID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Pickup) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeRepo) CreateHubIntake(_ context.Context, r domain.HubIntakeRecord) error {
	f.state.intakes[r.ID] = r
	return nil
}

func (f *fakeRepo) GetHubIntake(_ context.Context, id string) (domain.HubIntakeRecord, error) {
	r, ok := f.state.intakes[id]
	if !ok {
		return domain.HubIntakeRecord{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) ListAvailableHubIntakes(_ context.Context, hubID string) ([]domain.HubIntakeRecord, error) {
	linked := map[string]bool{}
	for _, l := range f.state.lotPickups {
		linked[l.HubIntakeRecordID] = true
	}
	out := []domain.HubIntakeRecord{}
	for _, r := range f.state.intakes {
		if r.HubID == hubID && !linked[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateLot(_ context.Context, l domain.Lot) error {
	f.state.lots[l.ID] = l
	return nil
}

func (f *fakeRepo) UpdateLot(_ context.Context, l domain.Lot) error {
	if _, ok := f.state.lots[l.ID]; !ok {
		return ErrNotFound
	}
	f.state.lots[l.ID] = l
	return nil
}

func (f *fakeRepo) GetLot(_ context.Context, id string) (domain.Lot, error) {
	l, ok := f.state.lots[id]
	if !ok {
		return domain.Lot{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) ListLots(_ context.Context, filter LotFilter) ([]domain.Lot, error) {
	out := []domain.Lot{}
	for _, l := range f.state.lots {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRepo) CreateLotPickup(_ context.Context, l domain.LotPickup) error {
	f.state.lotPickups = append(f.state.lotPickups, l)
	return nil
}

func (f *fakeRepo) ListLotPickups(_ context.Context, lotID string) ([]domain.LotPickup, error) {
	out := []domain.LotPickup{}
	for _, l := range f.state.lotPickups {
		if l.LotID == lotID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetLotPickupByIntake(_ context.Context, intakeID string) (domain.LotPickup, error) {
	for _, l := range f.state.lotPickups {
		if l.HubIntakeRecordID == intakeID {
			return l, nil
		}
	}
	return domain.LotPickup{}, ErrNotFound
}

func (f *fakeRepo) CreateLotDispatch(_ context.Context, d domain.LotDispatch) error {
	f.state.dispatches = append(f.state.dispatches, d)
	return nil
}

func (f *fakeRepo) LatestLotDispatch(_ context.Context, lotID string) (domain.LotDispatch, error) {
	var (
		latest domain.LotDispatch
		found  bool
	)
	for _, d := range f.state.dispatches {
		if d.LotID != lotID {
			continue
		}
		if !found || !d.DispatchedAt.Before(latest.DispatchedAt) {
			latest, found = d, true
		}
	}
	if !found {
		return domain.LotDispatch{}, ErrNotFound
	}
	return latest, nil
}

func (f *fakeRepo) CreateRecyclerIntake(_ context.Context, r domain.RecyclerIntake) error {
	f.state.recyclerIntakes[r.LotID] = r
	return nil
}

func (f *fakeRepo) GetRecyclerIntakeByLot(_ context.Context, lotID string) (domain.RecyclerIntake, error) {
	r, ok := f.state.recyclerIntakes[lotID]
	if !ok {
		return domain.RecyclerIntake{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) CreateAuditEntry(_ context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	if err := f.failOn["CreateAuditEntry:"+string(e.EntityType)]; err != nil {
		return domain.AuditEntry{}, err
	}
	f.seq++
	e.Seq = f.seq
	f.state.audit = append(f.state.audit, e)
	return e, nil
}

func (f *fakeRepo) LatestAuditEntry(ctx context.Context, entityType domain.EntityType, entityID string) (domain.AuditEntry, error) {
	entries, _ := f.ListAuditEntries(ctx, entityType, entityID)
	if len(entries) == 0 {
		return domain.AuditEntry{}, ErrNotFound
	}
	return entries[len(entries)-1], nil
}

func (f *fakeRepo) ListAuditEntries(_ context.Context, entityType domain.EntityType, entityID string) ([]domain.AuditEntry, error) {
	out := []domain.AuditEntry{}
	for _, e := range f.state.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.AuditEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

func (f *fakeRepo) CreateAnomaly(_ context.Context, a domain.Anomaly) error {
	f.state.anomalies = append(f.state.anomalies, a)
	return nil
}

func (f *fakeRepo) ListAnomalies(_ context.Context, filter AnomalyFilter) ([]domain.Anomaly, error) {
	f.lastAnomalies = filter
	out := []domain.Anomaly{}
	for _, a := range f.state.anomalies {
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		out = append(out, a)
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) CreateSellRequest(_ context.Context, r domain.SellRequest) error {
	f.state.sellRequests[r.ID] = r
	return nil
}

func (f *fakeRepo) UpdateSellRequest(_ context.Context, r domain.SellRequest) error {
	if err := f.failOn["UpdateSellRequest"]; err != nil {
		return err
	}
	f.state.sellRequests[r.ID] = r
	return nil
}

func (f *fakeRepo) GetSellRequest(_ context.Context, id string) (domain.SellRequest, error) {
	r, ok := f.state.sellRequests[id]
	if !ok {
		return domain.SellRequest{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) GetSellRequestByPickup(_ context.Context, pickupID string) (domain.SellRequest, error) {
	for _, r := range f.state.sellRequests {
		if r.PickupID == pickupID {
			return r, nil
		}
	}
	return domain.SellRequest{}, ErrNotFound
}

func (f *fakeRepo) CreateBrand(_ context.Context, b domain.Brand) error {
	f.state.brands[b.ID] = b
	return nil
}

func (f *fakeRepo) GetBrand(_ context.Context, id string) (domain.Brand, error) {
	b, ok := f.state.brands[id]
	if !ok {
		return domain.Brand{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) CreateEprCredit(_ context.Context, c domain.EprCredit) error {
	if err := f.failOn["CreateEprCredit"]; err != nil {
		return err
	}
	f.state.eprCredits = append(f.state.eprCredits, c)
	return nil
}

func (f *fakeRepo) ListEprCredits(_ context.Context, filter EprCreditFilter) ([]domain.EprCredit, error) {
	out := []domain.EprCredit{}
	for _, c := range slices.Backward(f.state.eprCredits) {
		if filter.BrandID != "" && c.BrandID != filter.BrandID {
			continue
		}
		if filter.LotID != "" && c.LotID != filter.LotID {
			continue
		}
		if filter.ReportingPeriod != "" && c.ReportingPeriod != filter.ReportingPeriod {
			continue
		}
		out = append(out, c)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// fakeObserver records observer callbacks.
type fakeObserver struct {
	mu            sync.Mutex
	operations    map[string]int
	failures      map[string]int
	anomalies     []domain.AnomalySeverity
	verifications []bool
	mirrorFails   []string
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{operations: map[string]int{}, failures: map[string]int{}}
}

func (o *fakeObserver) OperationCompleted(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures[op]++
		return
	}
	o.operations[op]++
}

func (o *fakeObserver) AnomalyFlagged(s domain.AnomalySeverity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.anomalies = append(o.anomalies, s)
}

func (o *fakeObserver) ChainVerified(_ domain.EntityType, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verifications = append(o.verifications, ok)
}

func (o *fakeObserver) MirrorSyncFailed(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mirrorFails = append(o.mirrorFails, op)
}
