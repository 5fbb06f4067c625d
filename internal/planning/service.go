package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/foundry-erp/foundry-erp/internal/bom"
	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// OrdersPort abstracts production order persistence.
type OrdersPort interface {
	Get(ctx context.Context, orderID int64) (ProductionOrder, error)
	GetMany(ctx context.Context, orderIDs []int64) (map[int64]ProductionOrder, error)
	ListByStatus(ctx context.Context, statuses []OrderStatus) ([]ProductionOrder, error)
	Insert(ctx context.Context, o ProductionOrder) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error
}

// BOMPort resolves the active bill of materials for a product.
type BOMPort interface {
	ActiveBOM(ctx context.Context, productID int64) (bom.BillOfMaterials, error)
}

// StockPort answers batched balance queries.
type StockPort interface {
	BalancesFor(ctx context.Context, productIDs []int64) (map[int64]ledger.Balance, error)
}

// CommitmentPort answers batched open-commitment queries.
type CommitmentPort interface {
	OnOrderQuantities(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error)
}

// ComponentPort resolves component facts from the product master.
type ComponentPort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// MetricsPort records planner activity.
type MetricsPort interface {
	RecordPlanningRun()
	RecordSuggestions(action, priority string, n int)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service computes component requirements for production orders and turns
// shortfalls into procurement and production suggestions.
type Service struct {
	orders      OrdersPort
	boms        BOMPort
	stock       StockPort
	commitments CommitmentPort
	components  ComponentPort
	defaults    Defaults
	cache       *Cache
	metrics     MetricsPort
	audit       AuditPort
	now         func() time.Time
}

// NewService builds Service.
func NewService(orders OrdersPort, boms BOMPort, stock StockPort, commitments CommitmentPort, components ComponentPort, defaults Defaults, cache *Cache, metrics MetricsPort, audit AuditPort) *Service {
	return &Service{
		orders:      orders,
		boms:        boms,
		stock:       stock,
		commitments: commitments,
		components:  components,
		defaults:    defaults,
		cache:       cache,
		metrics:     metrics,
		audit:       audit,
		now:         time.Now,
	}
}

// WithClock overrides the planner's clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// OrderInput describes a new production order.
type OrderInput struct {
	Number         string
	ProductID      int64
	Quantity       decimal.Decimal
	ScheduledStart time.Time
	ActorID        int64
}

// CreateOrder stores a new planned production order.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (ProductionOrder, error) {
	if !input.Quantity.IsPositive() {
		return ProductionOrder{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if input.ScheduledStart.IsZero() {
		return ProductionOrder{}, fmt.Errorf("%w: scheduled start required", ErrInvalidOrder)
	}
	known, err := s.components.GetMany(ctx, []int64{input.ProductID})
	if err != nil {
		return ProductionOrder{}, err
	}
	if _, ok := known[input.ProductID]; !ok {
		return ProductionOrder{}, fmt.Errorf("%w: unknown product %d", ErrInvalidOrder, input.ProductID)
	}

	number := input.Number
	if number == "" {
		number = fmt.Sprintf("MO-%s", uuid.NewString())
	}
	order := ProductionOrder{
		Number:         number,
		ProductID:      input.ProductID,
		Quantity:       input.Quantity,
		ScheduledStart: input.ScheduledStart,
		Status:         OrderPlanned,
	}
	id, err := s.orders.Insert(ctx, order)
	if err != nil {
		return ProductionOrder{}, err
	}
	order.ID = id

	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "planning:create",
			Entity:   shared.EntityProductionOrder,
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"number": number, "product_id": input.ProductID},
		})
	}
	return order, nil
}

// GetOrder fetches one production order.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (ProductionOrder, error) {
	return s.orders.Get(ctx, orderID)
}

// ListOpenOrders lists the orders eligible for planning.
func (s *Service) ListOpenOrders(ctx context.Context) ([]ProductionOrder, error) {
	return s.orders.ListByStatus(ctx, OpenStatuses)
}

// UpdateOrderStatus moves an order along its lifecycle.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, next OrderStatus, actorID int64) (ProductionOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return ProductionOrder{}, err
	}
	if !order.Status.CanTransition(next) {
		return ProductionOrder{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, next); err != nil {
		return ProductionOrder{}, err
	}
	order.Status = next

	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("planning:%s", next),
			Entity:   shared.EntityProductionOrder,
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"number": order.Number},
		})
	}
	return order, nil
}

// planFacts holds the batched reads one planning run needs. Balances,
// commitments and component facts are each fetched exactly once per run,
// regardless of how many orders or components are involved.
type planFacts struct {
	balances   map[int64]ledger.Balance
	onOrder    map[int64]decimal.Decimal
	components map[int64]products.Product
}

func (s *Service) gatherFacts(ctx context.Context, componentIDs []int64) (planFacts, error) {
	var facts planFacts
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		facts.balances, err = s.stock.BalancesFor(ctx, componentIDs)
		return err
	})
	g.Go(func() error {
		var err error
		facts.onOrder, err = s.commitments.OnOrderQuantities(ctx, componentIDs)
		return err
	})
	g.Go(func() error {
		var err error
		facts.components, err = s.components.GetMany(ctx, componentIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return planFacts{}, err
	}
	return facts, nil
}

func (s *Service) requirementsFor(order ProductionOrder, doc bom.BillOfMaterials, facts planFacts) ([]Requirement, error) {
	requirements := make([]Requirement, 0, len(doc.Items))
	for _, item := range doc.Items {
		comp, ok := facts.components[item.ComponentID]
		if !ok {
			return nil, fmt.Errorf("%w: component %d", ErrComponentMissing, item.ComponentID)
		}
		required := item.RequiredFor(order.Quantity)
		available := facts.balances[item.ComponentID].Quantity
		onOrder := facts.onOrder[item.ComponentID]
		net := required.Sub(available).Sub(onOrder)
		if net.IsNegative() {
			net = decimal.Zero
		}
		lead := s.defaults.LeadTimeFor(comp)
		requirements = append(requirements, Requirement{
			ComponentID:   item.ComponentID,
			ComponentCode: comp.Code,
			ComponentName: comp.Name,
			Kind:          comp.Kind,
			Unit:          comp.Unit,
			RequiredQty:   required,
			AvailableQty:  available,
			OnOrderQty:    onOrder,
			NetQty:        net,
			Action:        ActionFor(comp.Kind, net),
			LeadTimeDays:  lead,
			SuggestedDate: order.ScheduledStart.AddDate(0, 0, -lead),
		})
	}
	return requirements, nil
}

func planTotals(requirements []Requirement) PlanTotals {
	totals := PlanTotals{Components: len(requirements)}
	for _, req := range requirements {
		if req.NetQty.IsPositive() {
			totals.Short++
		}
		switch req.Action {
		case ActionBuy:
			totals.Buy++
		case ActionProduce:
			totals.Produce++
		}
	}
	return totals
}

// PlanForOrder computes the component requirements of one production order.
// An order whose product has no active BOM yields an empty plan rather than
// an error.
func (s *Service) PlanForOrder(ctx context.Context, orderID int64) (OrderPlan, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return OrderPlan{}, err
	}
	plan := OrderPlan{OrderID: order.ID, ProductID: order.ProductID, Quantity: order.Quantity}

	doc, err := s.boms.ActiveBOM(ctx, order.ProductID)
	if errors.Is(err, bom.ErrNoActiveBOM) {
		return plan, nil
	}
	if err != nil {
		return OrderPlan{}, err
	}

	facts, err := s.gatherFacts(ctx, componentIDs(doc))
	if err != nil {
		return OrderPlan{}, err
	}
	plan.Requirements, err = s.requirementsFor(order, doc, facts)
	if err != nil {
		return OrderPlan{}, err
	}
	plan.Totals = planTotals(plan.Requirements)

	if s.metrics != nil {
		s.metrics.RecordPlanningRun()
	}
	return plan, nil
}

// Consolidate merges the requirements of several production orders into one
// list per component: quantities sum, the earliest suggested date wins, and
// descriptive fields come from the first occurrence. With no explicit order
// IDs the run covers all open orders. The output is ordered by component ID,
// so merging is independent of order sequence.
func (s *Service) Consolidate(ctx context.Context, orderIDs []int64) ([]Requirement, error) {
	orders, err := s.resolveOrders(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	type orderDoc struct {
		order ProductionOrder
		doc   bom.BillOfMaterials
	}
	docs := make([]orderDoc, 0, len(orders))
	idSet := make(map[int64]bool)
	var allComponents []int64
	for _, order := range orders {
		doc, err := s.boms.ActiveBOM(ctx, order.ProductID)
		if errors.Is(err, bom.ErrNoActiveBOM) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, orderDoc{order: order, doc: doc})
		for _, id := range componentIDs(doc) {
			if !idSet[id] {
				idSet[id] = true
				allComponents = append(allComponents, id)
			}
		}
	}
	if len(docs) == 0 {
		return []Requirement{}, nil
	}

	facts, err := s.gatherFacts(ctx, allComponents)
	if err != nil {
		return nil, err
	}

	merged := make(map[int64]Requirement)
	var ids []int64
	for _, od := range docs {
		requirements, err := s.requirementsFor(od.order, od.doc, facts)
		if err != nil {
			return nil, err
		}
		for _, req := range requirements {
			existing, ok := merged[req.ComponentID]
			if !ok {
				merged[req.ComponentID] = req
				ids = append(ids, req.ComponentID)
				continue
			}
			existing.RequiredQty = existing.RequiredQty.Add(req.RequiredQty)
			existing.NetQty = existing.NetQty.Add(req.NetQty)
			if req.SuggestedDate.Before(existing.SuggestedDate) {
				existing.SuggestedDate = req.SuggestedDate
			}
			// action follows the merged net, so a covered first
			// occurrence cannot mask a combined shortfall
			existing.Action = ActionFor(existing.Kind, existing.NetQty)
			merged[req.ComponentID] = existing
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]Requirement, 0, len(ids))
	for _, id := range ids {
		result = append(result, merged[id])
	}

	if s.metrics != nil {
		s.metrics.RecordPlanningRun()
	}
	return result, nil
}

// PurchaseSuggestions lists BUY shortfalls across the given orders, ranked by
// urgency. With no order IDs it covers all open orders and serves from cache.
func (s *Service) PurchaseSuggestions(ctx context.Context, orderIDs []int64) ([]Suggestion, error) {
	return s.suggestions(ctx, ActionBuy, orderIDs)
}

// ProductionSuggestions lists PRODUCE shortfalls across the given orders,
// ranked by urgency. With no order IDs it covers all open orders and serves
// from cache.
func (s *Service) ProductionSuggestions(ctx context.Context, orderIDs []int64) ([]Suggestion, error) {
	return s.suggestions(ctx, ActionProduce, orderIDs)
}

func (s *Service) suggestions(ctx context.Context, action Action, orderIDs []int64) ([]Suggestion, error) {
	if len(orderIDs) > 0 {
		return s.buildSuggestions(ctx, action, orderIDs)
	}
	key, err := s.cache.BuildKey(ctx, keySuggestions(action))
	if err != nil {
		return nil, err
	}
	var cached []Suggestion
	err = s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (interface{}, error) {
		return s.buildSuggestions(ctx, action, nil)
	})
	return cached, err
}

func (s *Service) buildSuggestions(ctx context.Context, action Action, orderIDs []int64) ([]Suggestion, error) {
	requirements, err := s.Consolidate(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	now := s.now()
	suggestions := make([]Suggestion, 0, len(requirements))
	for _, req := range requirements {
		if req.Action != action || !req.NetQty.IsPositive() {
			continue
		}
		priority, days := PriorityFor(now, req.SuggestedDate)
		suggestions = append(suggestions, Suggestion{Requirement: req, Priority: priority, DaysUntil: days})
		if s.metrics != nil {
			s.metrics.RecordSuggestions(string(action), string(priority), 1)
		}
	}
	return suggestions, nil
}

func (s *Service) resolveOrders(ctx context.Context, orderIDs []int64) ([]ProductionOrder, error) {
	if len(orderIDs) == 0 {
		return s.orders.ListByStatus(ctx, OpenStatuses)
	}
	found, err := s.orders.GetMany(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	orders := make([]ProductionOrder, 0, len(orderIDs))
	for _, id := range orderIDs {
		order, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func componentIDs(doc bom.BillOfMaterials) []int64 {
	seen := make(map[int64]bool, len(doc.Items))
	ids := make([]int64, 0, len(doc.Items))
	for _, item := range doc.Items {
		if !seen[item.ComponentID] {
			seen[item.ComponentID] = true
			ids = append(ids, item.ComponentID)
		}
	}
	return ids
}
