package app

import (
	"context"

	"github.com/hylla/ewtrail/internal/domain"
)

// Repository is the persistence port used by the custody service.
type Repository interface {
	ReferenceStore
	PickupStore
	LotStore
	AuditStore
	AnomalyStore
	SellRequestStore
	EprStore
}

// UnitOfWork runs fn against a transactional view of the repository. Either
// every write made through repo commits or none do.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Store combines direct reads with transactional writes.
type Store interface {
	Repository
	UnitOfWork
}

// ReferenceStore persists hubs, recyclers, categories and users.
type ReferenceStore interface {
	CreateHub(context.Context, domain.Hub) error
	GetHub(context.Context, string) (domain.Hub, error)
	CreateRecycler(context.Context, domain.Recycler) error
	GetRecycler(context.Context, string) (domain.Recycler, error)
	CreateMaterialCategory(context.Context, domain.MaterialCategory) error
	GetMaterialCategory(context.Context, string) (domain.MaterialCategory, error)
	CreateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
}

// PickupStore persists pickups and hub intake records.
type PickupStore interface {
	CreatePickup(context.Context, domain.Pickup) error
	UpdatePickup(context.Context, domain.Pickup) error
	GetPickup(context.Context, string) (domain.Pickup, error)
	ListPickups(context.Context, PickupFilter) ([]domain.Pickup, error)

	CreateHubIntake(context.Context, domain.HubIntakeRecord) error
	GetHubIntake(context.Context, string) (domain.HubIntakeRecord, error)
	ListAvailableHubIntakes(context.Context, string) ([]domain.HubIntakeRecord, error)
}

// LotStore persists lots, link rows, dispatches and recycler intakes.
type LotStore interface {
	CreateLot(context.Context, domain.Lot) error
	UpdateLot(context.Context, domain.Lot) error
	GetLot(context.Context, string) (domain.Lot, error)
	ListLots(context.Context, LotFilter) ([]domain.Lot, error)

	CreateLotPickup(context.Context, domain.LotPickup) error
	ListLotPickups(context.Context, string) ([]domain.LotPickup, error)
	GetLotPickupByIntake(context.Context, string) (domain.LotPickup, error)

	CreateLotDispatch(context.Context, domain.LotDispatch) error
	LatestLotDispatch(context.Context, string) (domain.LotDispatch, error)

	CreateRecyclerIntake(context.Context, domain.RecyclerIntake) error
	GetRecyclerIntakeByLot(context.Context, string) (domain.RecyclerIntake, error)
}

// AuditStore persists audit entries. Entries for one entity are returned in
// (created_at, seq) order; the store assigns seq on insert.
type AuditStore interface {
	CreateAuditEntry(context.Context, domain.AuditEntry) (domain.AuditEntry, error)
	LatestAuditEntry(context.Context, domain.EntityType, string) (domain.AuditEntry, error)
	ListAuditEntries(context.Context, domain.EntityType, string) ([]domain.AuditEntry, error)
}

// AnomalyStore persists flagged anomalies.
type AnomalyStore interface {
	CreateAnomaly(context.Context, domain.Anomaly) error
	ListAnomalies(context.Context, AnomalyFilter) ([]domain.Anomaly, error)
}

// SellRequestStore persists the citizen-facing mirror.
type SellRequestStore interface {
	CreateSellRequest(context.Context, domain.SellRequest) error
	UpdateSellRequest(context.Context, domain.SellRequest) error
	GetSellRequest(context.Context, string) (domain.SellRequest, error)
	GetSellRequestByPickup(context.Context, string) (domain.SellRequest, error)
}

// EprStore persists brands and the EPR credits attributed to them.
type EprStore interface {
	CreateBrand(context.Context, domain.Brand) error
	GetBrand(context.Context, string) (domain.Brand, error)
	CreateEprCredit(context.Context, domain.EprCredit) error
	ListEprCredits(context.Context, EprCreditFilter) ([]domain.EprCredit, error)
}

// PickupFilter narrows ListPickups.
type PickupFilter struct {
	HubID  string
	Status domain.PickupStatus
	Limit  int
}

// LotFilter narrows ListLots.
type LotFilter struct {
	HubID      string
	RecyclerID string
	Status     domain.LotStatus
	Limit      int
}

// AnomalyFilter narrows ListAnomalies. Results are newest first.
type AnomalyFilter struct {
	EntityType domain.EntityType
	EntityID   string
	Severity   domain.AnomalySeverity
	Limit      int
}

// EprCreditFilter narrows ListEprCredits. Results are newest first.
type EprCreditFilter struct {
	BrandID         string
	LotID           string
	ReportingPeriod string
	Limit           int
}

// Observer receives operational signals. Implementations must be safe for
// concurrent use.
type Observer interface {
	OperationCompleted(operation string, err error)
	AnomalyFlagged(severity domain.AnomalySeverity)
	ChainVerified(entityType domain.EntityType, ok bool)
	MirrorSyncFailed(operation string)
}

// Logger is the subset of the runtime logger the service writes to.
type Logger interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

type noopObserver struct{}

func (noopObserver) OperationCompleted(string, error)      {}
func (noopObserver) AnomalyFlagged(domain.AnomalySeverity) {}
func (noopObserver) ChainVerified(domain.EntityType, bool) {}
func (noopObserver) MirrorSyncFailed(string)               {}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}
