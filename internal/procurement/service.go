package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, poID int64) (PurchaseOrder, error)
	List(ctx context.Context, status POStatus, limit int) ([]PurchaseOrder, error)
	SumOutstanding(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error)
}

// ProductPort exposes the product master lookups procurement needs.
type ProductPort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// LedgerPort posts inbound stock movements for goods receipts.
type LedgerPort interface {
	PostEntry(ctx context.Context, input ledger.MovementInput) (ledger.Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the purchase order lifecycle and answers open-commitment
// queries for planning.
type Service struct {
	repo     RepositoryPort
	products ProductPort
	ledger   LedgerPort
	audit    AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, productPort ProductPort, ledgerPort LedgerPort, audit AuditPort) *Service {
	return &Service{repo: repo, products: productPort, ledger: ledgerPort, audit: audit}
}

// OnOrderQuantities sums the still-undelivered quantities on approved and
// confirmed purchase orders for a set of products in one query. The result is
// total: every requested ID is present, zero when nothing is on order.
func (s *Service) OnOrderQuantities(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	sums, err := s.repo.SumOutstanding(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		result[id] = sums[id]
	}
	return result, nil
}

// OnOrder returns the open commitment for one product. It delegates to the
// batch path so both entry points share one code path.
func (s *Service) OnOrder(ctx context.Context, productID int64) (decimal.Decimal, error) {
	sums, err := s.OnOrderQuantities(ctx, []int64{productID})
	if err != nil {
		return decimal.Zero, err
	}
	return sums[productID], nil
}

// Get fetches one purchase order with lines.
func (s *Service) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, poID)
}

// List lists purchase orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status POStatus, limit int) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, status, limit)
}

// LineInput describes one position of a new purchase order.
type LineInput struct {
	ProductID  int64
	OrderedQty decimal.Decimal
	UnitPrice  decimal.Decimal
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	Number       string
	SupplierName string
	ExpectedDate time.Time
	Lines        []LineInput
	ActorID      int64
}

// Create stores a new draft purchase order.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line required", ErrInvalidLine)
	}
	productIDs := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		if !line.OrderedQty.IsPositive() {
			return PurchaseOrder{}, fmt.Errorf("%w: ordered quantity must be positive (product %d)", ErrInvalidLine, line.ProductID)
		}
		productIDs = append(productIDs, line.ProductID)
	}
	known, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return PurchaseOrder{}, err
	}
	for _, id := range productIDs {
		if _, ok := known[id]; !ok {
			return PurchaseOrder{}, fmt.Errorf("%w: unknown product %d", ErrInvalidLine, id)
		}
	}

	number := input.Number
	if number == "" {
		number = fmt.Sprintf("PO-%s", uuid.NewString())
	}
	created := PurchaseOrder{
		Number:       number,
		SupplierName: input.SupplierName,
		Status:       StatusDraft,
		ExpectedDate: input.ExpectedDate,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPO(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		for _, input := range input.Lines {
			line := POLine{
				POID:       id,
				ProductID:  input.ProductID,
				OrderedQty: input.OrderedQty,
				UnitPrice:  input.UnitPrice,
			}
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			created.Lines = append(created.Lines, line)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordAudit(ctx, input.ActorID, "procurement:create", created.ID, map[string]any{"number": number})
	return created, nil
}

// Submit moves a draft order into approval.
func (s *Service) Submit(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	return s.advance(ctx, poID, actorID, StatusApproval)
}

// Approve approves a submitted order. Approved quantities count as open
// commitments for planning.
func (s *Service) Approve(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	return s.advance(ctx, poID, actorID, StatusApproved)
}

// Confirm records supplier confirmation of an approved order.
func (s *Service) Confirm(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	return s.advance(ctx, poID, actorID, StatusConfirmed)
}

// Cancel cancels any non-terminal order, releasing its open commitment.
func (s *Service) Cancel(ctx context.Context, poID, actorID int64) (PurchaseOrder, error) {
	var cancelled PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, StatusCancelled)
		}
		if err := tx.UpdateStatus(ctx, poID, StatusCancelled); err != nil {
			return err
		}
		po.Status = StatusCancelled
		cancelled = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "procurement:cancel", poID, map[string]any{"number": cancelled.Number})
	return cancelled, nil
}

func (s *Service) advance(ctx context.Context, poID, actorID int64, next POStatus) (PurchaseOrder, error) {
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if !po.Status.CanAdvance(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, next)
		}
		if err := tx.UpdateStatus(ctx, poID, next); err != nil {
			return err
		}
		po.Status = next
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, fmt.Sprintf("procurement:%s", next), poID, map[string]any{"number": updated.Number})
	return updated, nil
}

// ReceiptLine describes one received position.
type ReceiptLine struct {
	LineID   int64
	Quantity decimal.Decimal
}

// ReceiptInput describes a goods receipt against a confirmed order.
type ReceiptInput struct {
	POID    int64
	Lines   []ReceiptLine
	ActorID int64
}

// ReceiveGoods books delivered quantities against a confirmed order and posts
// matching inbound stock movements. A receipt that would exceed a line's
// ordered quantity is rejected. A fully received order closes. The movement
// posts run after the order commit; the ledger's idempotent reference keys
// make a retried receipt safe.
func (s *Service) ReceiveGoods(ctx context.Context, input ReceiptInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one receipt line required", ErrInvalidLine)
	}
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return PurchaseOrder{}, fmt.Errorf("%w: receipt quantity must be positive (line %d)", ErrInvalidLine, line.LineID)
		}
	}

	type posted struct {
		lineID     int64
		productID  int64
		qty        decimal.Decimal
		cumulative decimal.Decimal
	}
	var (
		updated  PurchaseOrder
		received []posted
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		received = received[:0]
		po, err := tx.GetForUpdate(ctx, input.POID)
		if err != nil {
			return err
		}
		if po.Status != StatusConfirmed {
			return fmt.Errorf("%w: receipts require status %s, got %s", ErrInvalidTransition, StatusConfirmed, po.Status)
		}

		byID := make(map[int64]*POLine, len(po.Lines))
		for i := range po.Lines {
			byID[po.Lines[i].ID] = &po.Lines[i]
		}
		for _, receipt := range input.Lines {
			line, ok := byID[receipt.LineID]
			if !ok {
				return fmt.Errorf("%w: %d", ErrLineNotFound, receipt.LineID)
			}
			newReceived := line.ReceivedQty.Add(receipt.Quantity)
			if newReceived.GreaterThan(line.OrderedQty) {
				return fmt.Errorf("%w: line %d", ErrReceiptExceedsOrdered, receipt.LineID)
			}
			if err := tx.UpdateReceivedQty(ctx, receipt.LineID, newReceived); err != nil {
				return err
			}
			line.ReceivedQty = newReceived
			received = append(received, posted{lineID: line.ID, productID: line.ProductID, qty: receipt.Quantity, cumulative: newReceived})
		}

		if po.FullyReceived() {
			if err := tx.UpdateStatus(ctx, po.ID, StatusClosed); err != nil {
				return err
			}
			po.Status = StatusClosed
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	for _, line := range received {
		_, err := s.ledger.PostEntry(ctx, ledger.MovementInput{
			ProductID:     line.productID,
			Quantity:      line.qty,
			Reference:     fmt.Sprintf("%s/%d/%s", updated.Number, line.lineID, line.cumulative),
			ReferenceKind: ledger.RefReceipt,
			ActorID:       input.ActorID,
		})
		if err != nil {
			return PurchaseOrder{}, fmt.Errorf("procurement: posting receipt movement: %w", err)
		}
	}

	s.recordAudit(ctx, input.ActorID, "procurement:receive", updated.ID, map[string]any{
		"number": updated.Number,
		"lines":  len(received),
		"status": updated.Status,
	})
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   shared.EntityPurchaseOrder,
		EntityID: fmt.Sprintf("%d", poID),
		Meta:     meta,
	})
}
