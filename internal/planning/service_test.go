package planning

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/bom"
	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
)

type memoryOrders struct {
	orders map[int64]ProductionOrder
	nextID int64
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[int64]ProductionOrder)}
}

func (r *memoryOrders) Get(ctx context.Context, orderID int64) (ProductionOrder, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return ProductionOrder{}, ErrOrderNotFound
	}
	return order, nil
}

func (r *memoryOrders) GetMany(ctx context.Context, orderIDs []int64) (map[int64]ProductionOrder, error) {
	result := make(map[int64]ProductionOrder, len(orderIDs))
	for _, id := range orderIDs {
		if order, ok := r.orders[id]; ok {
			result[id] = order
		}
	}
	return result, nil
}

func (r *memoryOrders) ListByStatus(ctx context.Context, statuses []OrderStatus) ([]ProductionOrder, error) {
	var orders []ProductionOrder
	for _, order := range r.orders {
		for _, status := range statuses {
			if order.Status == status {
				orders = append(orders, order)
				break
			}
		}
	}
	return orders, nil
}

func (r *memoryOrders) Insert(ctx context.Context, o ProductionOrder) (int64, error) {
	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = o
	return o.ID, nil
}

func (r *memoryOrders) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	r.orders[orderID] = order
	return nil
}

type fakeBOMs struct {
	active map[int64]bom.BillOfMaterials
}

func (f *fakeBOMs) ActiveBOM(ctx context.Context, productID int64) (bom.BillOfMaterials, error) {
	doc, ok := f.active[productID]
	if !ok {
		return bom.BillOfMaterials{}, bom.ErrNoActiveBOM
	}
	return doc, nil
}

type fakeStock struct {
	balances map[int64]decimal.Decimal
	calls    int
}

func (f *fakeStock) BalancesFor(ctx context.Context, productIDs []int64) (map[int64]ledger.Balance, error) {
	f.calls++
	result := make(map[int64]ledger.Balance, len(productIDs))
	for _, id := range productIDs {
		result[id] = ledger.Balance{ProductID: id, Quantity: f.balances[id]}
	}
	return result, nil
}

type fakeCommitments struct {
	onOrder map[int64]decimal.Decimal
	calls   int
}

func (f *fakeCommitments) OnOrderQuantities(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	f.calls++
	result := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		result[id] = f.onOrder[id]
	}
	return result, nil
}

type fakeComponents struct {
	items map[int64]products.Product
}

func (f *fakeComponents) GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error) {
	result := make(map[int64]products.Product, len(ids))
	for _, id := range ids {
		if product, ok := f.items[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc         *Service
	orders      *memoryOrders
	boms        *fakeBOMs
	stock       *fakeStock
	commitments *fakeCommitments
	components  *fakeComponents
}

func newFixture() *fixture {
	f := &fixture{
		orders:      newMemoryOrders(),
		boms:        &fakeBOMs{active: make(map[int64]bom.BillOfMaterials)},
		stock:       &fakeStock{balances: make(map[int64]decimal.Decimal)},
		commitments: &fakeCommitments{onOrder: make(map[int64]decimal.Decimal)},
		components: &fakeComponents{items: map[int64]products.Product{
			10: {ID: 10, Code: "FG-10", Name: "Cabinet", Kind: products.KindFinishedGood},
			1:  {ID: 1, Code: "RM-1", Name: "Steel Sheet", Kind: products.KindRawMaterial, Unit: "kg"},
			2:  {ID: 2, Code: "PK-2", Name: "Carton", Kind: products.KindPackaging, Unit: "pcs"},
			3:  {ID: 3, Code: "SF-3", Name: "Door Panel", Kind: products.KindSemiFinished, Unit: "pcs", LeadTimeDays: 5},
		}},
	}
	defaults := Defaults{RawMaterialLeadTimeDays: 7, DefaultLeadTimeDays: 3}
	f.svc = NewService(f.orders, f.boms, f.stock, f.commitments, f.components, defaults, nil, nil, nil).
		WithClock(func() time.Time { return testNow })
	return f
}

func (f *fixture) addOrder(t *testing.T, productID int64, qty string, start time.Time) ProductionOrder {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), OrderInput{
		ProductID:      productID,
		Quantity:       dec(qty),
		ScheduledStart: start,
	})
	require.NoError(t, err)
	return order
}

func TestPlanForOrderComputesRequirements(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("2"), ScrapFactor: dec("0.1")},
		{ComponentID: 2, QuantityPerUnit: dec("1")},
		{ComponentID: 3, QuantityPerUnit: dec("1")},
	}}
	f.stock.balances[1] = dec("50")
	start := testNow.AddDate(0, 0, 30)
	order := f.addOrder(t, 10, "100", start)

	plan, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, plan.Requirements, 3)
	require.Equal(t, PlanTotals{Components: 3, Short: 3, Buy: 2, Produce: 1}, plan.Totals)

	steel := plan.Requirements[0]
	require.Equal(t, int64(1), steel.ComponentID)
	// scrap-adjusted demand stays exact: 2 * 100 * 1.1 = 220
	require.True(t, steel.RequiredQty.Equal(dec("220")))
	require.True(t, steel.NetQty.Equal(dec("170")))
	require.Equal(t, ActionBuy, steel.Action)
	require.Equal(t, 7, steel.LeadTimeDays)
	require.Equal(t, start.AddDate(0, 0, -7), steel.SuggestedDate)

	carton := plan.Requirements[1]
	require.True(t, carton.RequiredQty.Equal(dec("100")))
	require.Equal(t, ActionBuy, carton.Action)
	require.Equal(t, 3, carton.LeadTimeDays)

	panel := plan.Requirements[2]
	require.True(t, panel.RequiredQty.Equal(dec("100")))
	require.Equal(t, ActionProduce, panel.Action)
	require.Equal(t, 5, panel.LeadTimeDays)
}

func TestPlanForOrderNetShortfall(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("0.8")},
	}}
	f.stock.balances[1] = dec("50")
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	plan, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	req := plan.Requirements[0]
	require.True(t, req.RequiredQty.Equal(dec("80")))
	require.True(t, req.NetQty.Equal(dec("30")))
	require.Equal(t, ActionBuy, req.Action)
}

func TestPlanForOrderClampsSurplus(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("1")},
	}}
	f.stock.balances[1] = dec("500")
	f.commitments.onOrder[1] = dec("100")
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	plan, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	req := plan.Requirements[0]
	require.True(t, req.NetQty.IsZero())
	require.Equal(t, ActionNone, req.Action)
	require.Equal(t, PlanTotals{Components: 1, Short: 0}, plan.Totals)
}

func TestPlanForOrderOnOrderReducesNet(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("1")},
	}}
	f.stock.balances[1] = dec("20")
	f.commitments.onOrder[1] = dec("30")
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	plan, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, plan.Requirements[0].NetQty.Equal(dec("50")))
}

func TestPlanForOrderMissingBOMYieldsEmptyPlan(t *testing.T) {
	f := newFixture()
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	plan, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, plan.Requirements)
	require.Equal(t, PlanTotals{}, plan.Totals)
}

func TestPlanForOrderMissingComponentFails(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 999, QuantityPerUnit: dec("1")},
	}}
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	_, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, ErrComponentMissing)
}

func TestPlanForOrderBatchesLookups(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("2")},
		{ComponentID: 2, QuantityPerUnit: dec("1")},
		{ComponentID: 3, QuantityPerUnit: dec("4")},
	}}
	order := f.addOrder(t, 10, "100", testNow.AddDate(0, 0, 20))

	_, err := f.svc.PlanForOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.stock.calls)
	require.Equal(t, 1, f.commitments.calls)
}

func TestConsolidateMergesAcrossOrders(t *testing.T) {
	f := newFixture()
	f.components.items[11] = products.Product{ID: 11, Code: "FG-11", Name: "Shelf", Kind: products.KindFinishedGood}
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("2")},
		{ComponentID: 2, QuantityPerUnit: dec("1")},
	}}
	f.boms.active[11] = bom.BillOfMaterials{ProductID: 11, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("3")},
	}}
	early := testNow.AddDate(0, 0, 10)
	late := testNow.AddDate(0, 0, 40)
	a := f.addOrder(t, 10, "10", late)
	b := f.addOrder(t, 11, "10", early)

	forward, err := f.svc.Consolidate(context.Background(), []int64{a.ID, b.ID})
	require.NoError(t, err)
	backward, err := f.svc.Consolidate(context.Background(), []int64{b.ID, a.ID})
	require.NoError(t, err)
	require.Equal(t, forward, backward)

	require.Len(t, forward, 2)
	// sorted by component id regardless of input order
	require.Equal(t, int64(1), forward[0].ComponentID)
	require.Equal(t, int64(2), forward[1].ComponentID)
	// 2*10 + 3*10 = 50, earliest suggested date wins
	require.True(t, forward[0].RequiredQty.Equal(dec("50")))
	require.Equal(t, early.AddDate(0, 0, -7), forward[0].SuggestedDate)
}

func TestConsolidateUnknownOrder(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Consolidate(context.Background(), []int64{42})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestConsolidateDefaultsToOpenOrders(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("1")},
	}}
	open := f.addOrder(t, 10, "10", testNow.AddDate(0, 0, 20))
	done := f.addOrder(t, 10, "99", testNow.AddDate(0, 0, 20))
	_, err := f.svc.UpdateOrderStatus(context.Background(), done.ID, OrderCancelled, 0)
	require.NoError(t, err)

	requirements, err := f.svc.Consolidate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, requirements, 1)
	require.True(t, requirements[0].RequiredQty.Equal(open.Quantity))
}

func TestConsolidateBatchesLookupsOnce(t *testing.T) {
	f := newFixture()
	f.components.items[11] = products.Product{ID: 11, Code: "FG-11", Kind: products.KindFinishedGood}
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("2")},
	}}
	f.boms.active[11] = bom.BillOfMaterials{ProductID: 11, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("3")},
		{ComponentID: 2, QuantityPerUnit: dec("1")},
	}}
	a := f.addOrder(t, 10, "10", testNow.AddDate(0, 0, 20))
	b := f.addOrder(t, 11, "10", testNow.AddDate(0, 0, 25))

	_, err := f.svc.Consolidate(context.Background(), []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock.calls)
	require.Equal(t, 1, f.commitments.calls)
}

func TestPriorityBoundaries(t *testing.T) {
	cases := []struct {
		daysAhead int
		priority  Priority
	}{
		{-1, PriorityHigh},
		{0, PriorityHigh},
		{7, PriorityHigh},
		{8, PriorityMedium},
		{14, PriorityMedium},
		{15, PriorityLow},
	}
	for _, tc := range cases {
		priority, days := PriorityFor(testNow, testNow.AddDate(0, 0, tc.daysAhead))
		require.Equal(t, tc.priority, priority, "days ahead %d", tc.daysAhead)
		require.Equal(t, tc.daysAhead, days)
	}
}

func TestSuggestionsSplitByAction(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("1")}, // raw material -> BUY
		{ComponentID: 3, QuantityPerUnit: dec("1")}, // semi-finished -> PRODUCE
		{ComponentID: 2, QuantityPerUnit: dec("1")}, // packaging, fully covered
	}}
	f.stock.balances[2] = dec("1000")
	order := f.addOrder(t, 10, "10", testNow.AddDate(0, 0, 9))

	purchases, err := f.svc.PurchaseSuggestions(context.Background(), []int64{order.ID})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.Equal(t, int64(1), purchases[0].ComponentID)
	// scheduled in 9 days, lead 7 -> suggested in 2 days
	require.Equal(t, PriorityHigh, purchases[0].Priority)
	require.Equal(t, 2, purchases[0].DaysUntil)

	productions, err := f.svc.ProductionSuggestions(context.Background(), []int64{order.ID})
	require.NoError(t, err)
	require.Len(t, productions, 1)
	require.Equal(t, int64(3), productions[0].ComponentID)
	// explicit 5 day lead time on the component wins over the default
	require.Equal(t, 5, productions[0].LeadTimeDays)
	require.Equal(t, 4, productions[0].DaysUntil)
}

func TestSuggestionsDefaultUniverse(t *testing.T) {
	f := newFixture()
	f.boms.active[10] = bom.BillOfMaterials{ProductID: 10, Items: []bom.BOMItem{
		{ComponentID: 1, QuantityPerUnit: dec("1")},
	}}
	f.addOrder(t, 10, "10", testNow.AddDate(0, 0, 30))

	suggestions, err := f.svc.PurchaseSuggestions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	require.Equal(t, PriorityLow, suggestions[0].Priority)
	require.Equal(t, 23, suggestions[0].DaysUntil)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, OrderInput{ProductID: 10, Quantity: dec("0"), ScheduledStart: testNow})
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = f.svc.CreateOrder(ctx, OrderInput{ProductID: 10, Quantity: dec("5")})
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = f.svc.CreateOrder(ctx, OrderInput{ProductID: 404, Quantity: dec("5"), ScheduledStart: testNow})
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := f.addOrder(t, 10, "5", testNow.AddDate(0, 0, 10))

	_, err := f.svc.UpdateOrderStatus(ctx, order.ID, OrderCompleted, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	order, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderReleased, 0)
	require.NoError(t, err)
	order, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderInProgress, 0)
	require.NoError(t, err)
	order, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderCompleted, 0)
	require.NoError(t, err)
	require.Equal(t, OrderCompleted, order.Status)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderCancelled, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
