package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error)
	MovementsFor(ctx context.Context, productIDs []int64) (map[int64][]Movement, error)
}

// ProductPort exposes the product master facts the ledger needs.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service derives balances from the movement ledger and admits new movements.
type Service struct {
	repo        RepositoryPort
	products    ProductPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	alerts      AlertPort
	allowNeg    bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, productPort ProductPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig, alerts AlertPort) *Service {
	return &Service{repo: repo, products: productPort, audit: audit, idempotency: idem, alerts: alerts, allowNeg: cfg.AllowNegativeStock}
}

func thresholdsOf(p products.Product) StockThresholds {
	return StockThresholds{MinStock: p.MinStock, MaxStock: p.MaxStock, SafetyStock: p.SafetyStock}
}

// Balance replays the product's movement history into the current on-hand
// quantity and classifies it. An empty history yields quantity zero; an
// inconsistent history may yield a negative quantity, which is reported as
// computed rather than hidden.
func (s *Service) Balance(ctx context.Context, productID int64) (Balance, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return Balance{}, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		return Balance{}, err
	}
	movements, err := s.repo.ListMovements(ctx, productID, MovementFilter{})
	if err != nil {
		return Balance{}, err
	}
	qty := FoldMovements(movements)
	return Balance{ProductID: productID, Quantity: qty, Status: ClassifyStatus(qty, thresholdsOf(product))}, nil
}

// BalancesFor derives balances for a set of products with a single movement
// fetch. The result is total: every requested ID is present, with quantity
// zero when no movements exist. An unknown ID fails the whole call.
func (s *Service) BalancesFor(ctx context.Context, productIDs []int64) (map[int64]Balance, error) {
	prods, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if _, ok := prods[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
		}
	}
	histories, err := s.repo.MovementsFor(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	balances := make(map[int64]Balance, len(productIDs))
	for _, id := range productIDs {
		qty := FoldMovements(histories[id])
		balances[id] = Balance{ProductID: id, Quantity: qty, Status: ClassifyStatus(qty, thresholdsOf(prods[id]))}
	}
	return balances, nil
}

// Movements lists the movement history for a product.
func (s *Service) Movements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		return nil, err
	}
	return s.repo.ListMovements(ctx, productID, filter)
}

// MovementInput describes a movement to append.
type MovementInput struct {
	ProductID     int64
	Quantity      decimal.Decimal
	Reference     string
	ReferenceKind ReferenceKind
	OccurredAt    time.Time
	ActorID       int64
}

// PostEntry appends an inbound movement (goods receipt, production yield).
func (s *Service) PostEntry(ctx context.Context, input MovementInput) (Movement, error) {
	return s.post(ctx, MovementIn, input)
}

// PostExit appends an outbound movement (consumption, shipment). Admission is
// serialised per product so concurrent exits cannot both observe the same
// uncommitted stock.
func (s *Service) PostExit(ctx context.Context, input MovementInput) (Movement, error) {
	return s.post(ctx, MovementOut, input)
}

// PostAdjustment appends a positive correction. Downward corrections are OUT
// movements carrying a correction reference kind, keeping quantities positive.
func (s *Service) PostAdjustment(ctx context.Context, input MovementInput) (Movement, error) {
	return s.post(ctx, MovementAdjustment, input)
}

func (s *Service) post(ctx context.Context, kind MovementKind, input MovementInput) (Movement, error) {
	if input.ProductID <= 0 {
		return Movement{}, fmt.Errorf("%w: %d", ErrProductNotFound, input.ProductID)
	}
	if !input.Quantity.IsPositive() {
		return Movement{}, ErrInvalidQuantity
	}
	product, err := s.products.Get(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return Movement{}, fmt.Errorf("%w: %d", ErrProductNotFound, input.ProductID)
		}
		return Movement{}, err
	}

	now := time.Now().UTC()
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	reference := input.Reference
	if reference == "" {
		reference = fmt.Sprintf("MV-%s", uuid.NewString())
	}
	refKind := input.ReferenceKind
	if refKind == "" {
		refKind = RefManual
	}

	key := fmt.Sprintf("%s:%s:%d", kind, reference, input.ProductID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, shared.IdempotencyLedger); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	movement := Movement{
		ProductID:     input.ProductID,
		Kind:          kind,
		Quantity:      input.Quantity,
		OccurredAt:    occurredAt,
		Reference:     reference,
		ReferenceKind: refKind,
		CreatedBy:     input.ActorID,
	}

	var prevQty decimal.Decimal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockProduct(ctx, input.ProductID); err != nil {
			return err
		}
		prev, err := tx.SumMovements(ctx, input.ProductID)
		if err != nil {
			return err
		}
		prevQty = prev
		if kind == MovementOut && !s.allowNeg && prev.Sub(input.Quantity).IsNegative() {
			return ErrNegativeStock
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Movement{}, err
	}

	newQty := prevQty.Add(movement.SignedQuantity())
	thresholds := thresholdsOf(product)
	prevStatus := ClassifyStatus(prevQty, thresholds)
	newStatus := ClassifyStatus(newQty, thresholds)
	if prevStatus != newStatus && s.alerts != nil {
		_ = s.alerts.Notify(ctx, StockStatusChangedEvent{
			ProductID:  input.ProductID,
			Previous:   prevStatus,
			Current:    newStatus,
			Quantity:   newQty,
			OccurredAt: occurredAt,
		})
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("ledger:%s", kind),
			Entity:   shared.EntityStockMovement,
			EntityID: fmt.Sprintf("%s:%d", kind, input.ProductID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"qty":        input.Quantity.String(),
				"reference":  reference,
			},
		})
	}

	return movement, nil
}
