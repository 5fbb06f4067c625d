package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
)

type memoryRepo struct {
	movements map[int64][]Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{movements: make(map[int64][]Movement)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListMovements(ctx context.Context, productID int64, filter MovementFilter) ([]Movement, error) {
	return append([]Movement(nil), r.movements[productID]...), nil
}

func (r *memoryRepo) MovementsFor(ctx context.Context, productIDs []int64) (map[int64][]Movement, error) {
	result := make(map[int64][]Movement, len(productIDs))
	for _, id := range productIDs {
		if history, ok := r.movements[id]; ok {
			result[id] = append([]Movement(nil), history...)
		}
	}
	return result, nil
}

func (tx *memoryTx) LockProduct(ctx context.Context, productID int64) error {
	return nil
}

func (tx *memoryTx) SumMovements(ctx context.Context, productID int64) (decimal.Decimal, error) {
	return FoldMovements(tx.repo.movements[productID]), nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements[m.ProductID] = append(tx.repo.movements[m.ProductID], m)
	return m.ID, nil
}

type memoryProducts struct {
	items map[int64]products.Product
}

func (p *memoryProducts) Get(ctx context.Context, id int64) (products.Product, error) {
	product, ok := p.items[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return product, nil
}

func (p *memoryProducts) GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error) {
	result := make(map[int64]products.Product, len(ids))
	for _, id := range ids {
		if product, ok := p.items[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

type captureAlerts struct {
	events []StockStatusChangedEvent
}

func (c *captureAlerts) Notify(ctx context.Context, evt StockStatusChangedEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testProduct(id int64, min, max, safety string) products.Product {
	return products.Product{
		ID:          id,
		Code:        "P-1",
		Name:        "Widget",
		Kind:        products.KindRawMaterial,
		MinStock:    dec(min),
		MaxStock:    dec(max),
		SafetyStock: dec(safety),
	}
}

func TestFoldMovementsOrderIndependent(t *testing.T) {
	history := []Movement{
		{Kind: MovementIn, Quantity: dec("10")},
		{Kind: MovementOut, Quantity: dec("4")},
		{Kind: MovementAdjustment, Quantity: dec("2.5")},
		{Kind: MovementOut, Quantity: dec("1.5")},
	}
	forward := FoldMovements(history)

	reversed := make([]Movement, len(history))
	for i, m := range history {
		reversed[len(history)-1-i] = m
	}
	require.True(t, forward.Equal(FoldMovements(reversed)))
	require.True(t, forward.Equal(dec("7")))

	require.True(t, FoldMovements(nil).IsZero())
}

func TestClassifyStatus(t *testing.T) {
	thresholds := StockThresholds{MinStock: dec("10"), MaxStock: dec("100"), SafetyStock: dec("5")}

	require.Equal(t, StatusCritical, ClassifyStatus(dec("4"), thresholds))
	require.Equal(t, StatusLow, ClassifyStatus(dec("7"), thresholds))
	require.Equal(t, StatusOK, ClassifyStatus(dec("10"), thresholds))
	require.Equal(t, StatusOK, ClassifyStatus(dec("100"), thresholds))
	require.Equal(t, StatusExcess, ClassifyStatus(dec("100.01"), thresholds))
}

func TestClassifyStatusCriticalPrecedesLow(t *testing.T) {
	// safetyStock >= minStock: the CRITICAL band swallows the LOW band.
	thresholds := StockThresholds{MinStock: dec("5"), MaxStock: dec("100"), SafetyStock: dec("10")}

	require.Equal(t, StatusCritical, ClassifyStatus(dec("7"), thresholds))
	require.Equal(t, StatusOK, ClassifyStatus(dec("10"), thresholds))
}

func TestBalanceEmptyHistory(t *testing.T) {
	repo := newMemoryRepo()
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "10", "100", "5")}}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, nil)

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, balance.Quantity.IsZero())
	require.Equal(t, StatusCritical, balance.Status)
}

func TestBalanceUnknownProduct(t *testing.T) {
	svc := NewService(newMemoryRepo(), &memoryProducts{items: map[int64]products.Product{}}, nil, nil, ServiceConfig{}, nil)

	_, err := svc.Balance(context.Background(), 99)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestBalanceNegativeReportedAsComputed(t *testing.T) {
	repo := newMemoryRepo()
	repo.movements[1] = []Movement{
		{ProductID: 1, Kind: MovementIn, Quantity: dec("5")},
		{ProductID: 1, Kind: MovementOut, Quantity: dec("8")},
	}
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "0", "100", "0")}}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, nil)

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, balance.Quantity.Equal(dec("-3")))
	require.Equal(t, StatusCritical, balance.Status)
}

func TestBalancesForIsTotal(t *testing.T) {
	repo := newMemoryRepo()
	repo.movements[1] = []Movement{{ProductID: 1, Kind: MovementIn, Quantity: dec("50")}}
	prods := &memoryProducts{items: map[int64]products.Product{
		1: testProduct(1, "10", "100", "5"),
		2: testProduct(2, "10", "100", "5"),
	}}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, nil)

	balances, err := svc.BalancesFor(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.True(t, balances[1].Quantity.Equal(dec("50")))
	require.True(t, balances[2].Quantity.IsZero())

	_, err = svc.BalancesFor(context.Background(), []int64{1, 3})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestPostExitGuardsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "0", "100", "0")}}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, nil)
	ctx := context.Background()

	_, err := svc.PostEntry(ctx, MovementInput{ProductID: 1, Quantity: dec("10")})
	require.NoError(t, err)

	_, err = svc.PostExit(ctx, MovementInput{ProductID: 1, Quantity: dec("15")})
	require.ErrorIs(t, err, ErrNegativeStock)

	allowNeg := NewService(repo, prods, nil, nil, ServiceConfig{AllowNegativeStock: true}, nil)
	_, err = allowNeg.PostExit(ctx, MovementInput{ProductID: 1, Quantity: dec("15")})
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	require.True(t, balance.Quantity.Equal(dec("-5")))
}

func TestPostRejectsInvalidQuantity(t *testing.T) {
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "0", "100", "0")}}
	svc := NewService(newMemoryRepo(), prods, nil, nil, ServiceConfig{}, nil)

	_, err := svc.PostEntry(context.Background(), MovementInput{ProductID: 1, Quantity: dec("0")})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.PostAdjustment(context.Background(), MovementInput{ProductID: 1, Quantity: dec("-2")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestStatusTransitionEmitsAlert(t *testing.T) {
	repo := newMemoryRepo()
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "10", "100", "5")}}
	alerts := &captureAlerts{}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, alerts)
	ctx := context.Background()

	// empty history starts CRITICAL; entry of 20 lands in OK
	_, err := svc.PostEntry(ctx, MovementInput{ProductID: 1, Quantity: dec("20"), OccurredAt: time.Now()})
	require.NoError(t, err)
	require.Len(t, alerts.events, 1)
	require.Equal(t, StatusCritical, alerts.events[0].Previous)
	require.Equal(t, StatusOK, alerts.events[0].Current)

	// exit of 12 crosses into CRITICAL
	_, err = svc.PostExit(ctx, MovementInput{ProductID: 1, Quantity: dec("16")})
	require.NoError(t, err)
	require.Len(t, alerts.events, 2)
	require.Equal(t, StatusOK, alerts.events[1].Previous)
	require.Equal(t, StatusCritical, alerts.events[1].Current)

	// entry within the same band stays silent
	_, err = svc.PostEntry(ctx, MovementInput{ProductID: 1, Quantity: dec("0.5")})
	require.NoError(t, err)
	require.Len(t, alerts.events, 2)
}

func TestAdjustmentAddsToBalance(t *testing.T) {
	repo := newMemoryRepo()
	prods := &memoryProducts{items: map[int64]products.Product{1: testProduct(1, "0", "100", "0")}}
	svc := NewService(repo, prods, nil, nil, ServiceConfig{}, nil)
	ctx := context.Background()

	_, err := svc.PostAdjustment(ctx, MovementInput{ProductID: 1, Quantity: dec("3.25")})
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	require.True(t, balance.Quantity.Equal(dec("3.25")))
}
