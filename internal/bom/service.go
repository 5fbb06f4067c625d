package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, bomID int64) (BillOfMaterials, error)
	ActiveBOM(ctx context.Context, productID int64) (BillOfMaterials, error)
	ListVersions(ctx context.Context, productID int64) ([]BillOfMaterials, error)
}

// ProductPort exposes the product master lookups the BOM service needs.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages versioned bills of materials.
type Service struct {
	repo     RepositoryPort
	products ProductPort
	audit    AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, productPort ProductPort, audit AuditPort) *Service {
	return &Service{repo: repo, products: productPort, audit: audit}
}

// ItemInput describes one component line of a new BOM version.
type ItemInput struct {
	ComponentID     int64
	QuantityPerUnit decimal.Decimal
	ScrapFactor     decimal.Decimal
	Sequence        int
	Unit            string
}

// CreateInput describes a new BOM version.
type CreateInput struct {
	ProductID int64
	Items     []ItemInput
	ActorID   int64
}

// Get fetches one BOM with items.
func (s *Service) Get(ctx context.Context, bomID int64) (BillOfMaterials, error) {
	return s.repo.Get(ctx, bomID)
}

// ActiveBOM returns the single active bill of materials for a product, or
// ErrNoActiveBOM when none is active.
func (s *Service) ActiveBOM(ctx context.Context, productID int64) (BillOfMaterials, error) {
	return s.repo.ActiveBOM(ctx, productID)
}

// ListVersions lists the BOM versions of a product.
func (s *Service) ListVersions(ctx context.Context, productID int64) ([]BillOfMaterials, error) {
	return s.repo.ListVersions(ctx, productID)
}

// Create stores a new inactive BOM version. The version number continues the
// product's sequence; a concurrent insert of the same version surfaces as
// ErrDuplicateVersion via the unique constraint.
func (s *Service) Create(ctx context.Context, input CreateInput) (BillOfMaterials, error) {
	if len(input.Items) == 0 {
		return BillOfMaterials{}, fmt.Errorf("%w: at least one item required", ErrInvalidItem)
	}
	if _, err := s.products.Get(ctx, input.ProductID); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return BillOfMaterials{}, fmt.Errorf("%w: product %d", ErrNotFound, input.ProductID)
		}
		return BillOfMaterials{}, err
	}

	componentIDs := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		if !item.QuantityPerUnit.IsPositive() {
			return BillOfMaterials{}, fmt.Errorf("%w: quantity per unit must be positive (component %d)", ErrInvalidItem, item.ComponentID)
		}
		if item.ScrapFactor.IsNegative() {
			return BillOfMaterials{}, fmt.Errorf("%w: scrap factor must not be negative (component %d)", ErrInvalidItem, item.ComponentID)
		}
		componentIDs = append(componentIDs, item.ComponentID)
	}
	known, err := s.products.GetMany(ctx, componentIDs)
	if err != nil {
		return BillOfMaterials{}, err
	}
	for _, id := range componentIDs {
		if _, ok := known[id]; !ok {
			return BillOfMaterials{}, fmt.Errorf("%w: unknown component %d", ErrInvalidItem, id)
		}
	}

	versions, err := s.repo.ListVersions(ctx, input.ProductID)
	if err != nil {
		return BillOfMaterials{}, err
	}
	next := 1
	for _, v := range versions {
		if v.Version >= next {
			next = v.Version + 1
		}
	}

	created := BillOfMaterials{ProductID: input.ProductID, Version: next}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertBOM(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		for _, item := range input.Items {
			line := BOMItem{
				BOMID:           id,
				ComponentID:     item.ComponentID,
				QuantityPerUnit: item.QuantityPerUnit,
				ScrapFactor:     item.ScrapFactor,
				Sequence:        item.Sequence,
				Unit:            item.Unit,
			}
			lineID, err := tx.InsertItem(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			created.Items = append(created.Items, line)
		}
		return nil
	})
	if err != nil {
		return BillOfMaterials{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "bom:create",
			Entity:   shared.EntityBillOfMaterials,
			EntityID: fmt.Sprintf("%d", created.ID),
			Meta:     map[string]any{"product_id": input.ProductID, "version": next},
		})
	}
	return created, nil
}

// Activate marks one BOM version active and deactivates the product's other
// versions inside the same transaction, so readers never observe two active
// versions for one product.
func (s *Service) Activate(ctx context.Context, bomID int64, actorID int64) (BillOfMaterials, error) {
	var activated BillOfMaterials
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetBOM(ctx, bomID)
		if err != nil {
			return err
		}
		if err := tx.DeactivateForProduct(ctx, b.ProductID); err != nil {
			return err
		}
		if err := tx.SetActive(ctx, bomID); err != nil {
			return err
		}
		b.IsActive = true
		activated = b
		return nil
	})
	if err != nil {
		return BillOfMaterials{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "bom:activate",
			Entity:   shared.EntityBillOfMaterials,
			EntityID: fmt.Sprintf("%d", bomID),
			Meta:     map[string]any{"product_id": activated.ProductID, "version": activated.Version},
		})
	}
	return activated, nil
}
