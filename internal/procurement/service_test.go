package procurement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/ledger"
	"github.com/foundry-erp/foundry-erp/internal/masterdata/products"
)

type memoryRepo struct {
	orders map[int64]*PurchaseOrder
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]*PurchaseOrder)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	po, ok := r.orders[poID]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	copied := *po
	copied.Lines = append([]POLine(nil), po.Lines...)
	return copied, nil
}

func (r *memoryRepo) List(ctx context.Context, status POStatus, limit int) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	for _, po := range r.orders {
		if status == "" || po.Status == status {
			orders = append(orders, *po)
		}
	}
	return orders, nil
}

func (r *memoryRepo) SumOutstanding(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	wanted := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	result := make(map[int64]decimal.Decimal)
	for _, po := range r.orders {
		if po.Status != StatusApproved && po.Status != StatusConfirmed {
			continue
		}
		for _, line := range po.Lines {
			if !wanted[line.ProductID] {
				continue
			}
			result[line.ProductID] = result[line.ProductID].Add(line.Outstanding())
		}
	}
	return result, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return tx.repo.Get(ctx, poID)
}

func (tx *memoryTx) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.repo.orders[po.ID] = &po
	return po.ID, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line POLine) (int64, error) {
	po, ok := tx.repo.orders[line.POID]
	if !ok {
		return 0, ErrNotFound
	}
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	po.Lines = append(po.Lines, line)
	return line.ID, nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, poID int64, status POStatus) error {
	po, ok := tx.repo.orders[poID]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	return nil
}

func (tx *memoryTx) UpdateReceivedQty(ctx context.Context, lineID int64, received decimal.Decimal) error {
	for _, po := range tx.repo.orders {
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].ReceivedQty = received
				return nil
			}
		}
	}
	return ErrLineNotFound
}

type memoryProducts struct {
	items map[int64]products.Product
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

type captureLedger struct {
	entries []ledger.MovementInput
}

func (c *captureLedger) PostEntry(ctx context.Context, input ledger.MovementInput) (ledger.Movement, error) {
	c.entries = append(c.entries, input)
	return ledger.Movement{ID: int64(len(c.entries))}, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixtureService() (*Service, *memoryRepo, *captureLedger) {
	repo := newMemoryRepo()
	prods := &memoryProducts{items: map[int64]products.Product{
		1: {ID: 1, Code: "RM-1", Kind: products.KindRawMaterial},
		2: {ID: 2, Code: "RM-2", Kind: products.KindRawMaterial},
	}}
	led := &captureLedger{}
	return NewService(repo, prods, led, nil), repo, led
}

func confirmedPO(t *testing.T, svc *Service, lines []LineInput) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: lines})
	require.NoError(t, err)
	po, err = svc.Submit(ctx, po.ID, 0)
	require.NoError(t, err)
	po, err = svc.Approve(ctx, po.ID, 0)
	require.NoError(t, err)
	po, err = svc.Confirm(ctx, po.ID, 0)
	require.NoError(t, err)
	return po
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _, _ := fixtureService()
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: []LineInput{{ProductID: 1, OrderedQty: dec("10")}}})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)
	require.NotEmpty(t, po.Number)

	_, err = svc.Approve(ctx, po.ID, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)

	po, err = svc.Submit(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusApproval, po.Status)

	po, err = svc.Approve(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, po.Status)

	po, err = svc.Confirm(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, po.Status)

	po, err = svc.Cancel(ctx, po.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, po.Status)

	_, err = svc.Cancel(ctx, po.ID, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreateValidatesLines(t *testing.T) {
	svc, _, _ := fixtureService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SupplierName: "Acme Metals"})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: []LineInput{{ProductID: 1, OrderedQty: dec("0")}}})
	require.ErrorIs(t, err, ErrInvalidLine)

	_, err = svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: []LineInput{{ProductID: 99, OrderedQty: dec("5")}}})
	require.ErrorIs(t, err, ErrInvalidLine)
}

func TestOnOrderQuantitiesIsTotal(t *testing.T) {
	svc, _, _ := fixtureService()
	ctx := context.Background()

	// draft orders never count
	_, err := svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: []LineInput{{ProductID: 1, OrderedQty: dec("100")}}})
	require.NoError(t, err)

	confirmedPO(t, svc, []LineInput{{ProductID: 1, OrderedQty: dec("40")}, {ProductID: 2, OrderedQty: dec("7.5")}})

	sums, err := svc.OnOrderQuantities(ctx, []int64{1, 2, 99})
	require.NoError(t, err)
	require.Len(t, sums, 3)
	require.True(t, sums[1].Equal(dec("40")))
	require.True(t, sums[2].Equal(dec("7.5")))
	require.True(t, sums[99].IsZero())

	onOrder, err := svc.OnOrder(ctx, 1)
	require.NoError(t, err)
	require.True(t, onOrder.Equal(dec("40")))
}

func TestReceiveGoodsPostsLedgerEntries(t *testing.T) {
	svc, _, led := fixtureService()
	ctx := context.Background()

	po := confirmedPO(t, svc, []LineInput{{ProductID: 1, OrderedQty: dec("40")}})
	lineID := po.Lines[0].ID

	po, err := svc.ReceiveGoods(ctx, ReceiptInput{POID: po.ID, Lines: []ReceiptLine{{LineID: lineID, Quantity: dec("15")}}})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, po.Status)
	require.True(t, po.Lines[0].ReceivedQty.Equal(dec("15")))
	require.Len(t, led.entries, 1)
	require.Equal(t, int64(1), led.entries[0].ProductID)
	require.True(t, led.entries[0].Quantity.Equal(dec("15")))
	require.Equal(t, ledger.RefReceipt, led.entries[0].ReferenceKind)

	// commitment shrinks by the received amount
	onOrder, err := svc.OnOrder(ctx, 1)
	require.NoError(t, err)
	require.True(t, onOrder.Equal(dec("25")))

	// final receipt closes the order and releases the commitment
	po, err = svc.ReceiveGoods(ctx, ReceiptInput{POID: po.ID, Lines: []ReceiptLine{{LineID: lineID, Quantity: dec("25")}}})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, po.Status)

	onOrder, err = svc.OnOrder(ctx, 1)
	require.NoError(t, err)
	require.True(t, onOrder.IsZero())
}

func TestReceiveGoodsRejectsOverfill(t *testing.T) {
	svc, _, led := fixtureService()
	ctx := context.Background()

	po := confirmedPO(t, svc, []LineInput{{ProductID: 1, OrderedQty: dec("10")}})

	_, err := svc.ReceiveGoods(ctx, ReceiptInput{POID: po.ID, Lines: []ReceiptLine{{LineID: po.Lines[0].ID, Quantity: dec("11")}}})
	require.ErrorIs(t, err, ErrReceiptExceedsOrdered)
	require.Empty(t, led.entries)

	_, err = svc.ReceiveGoods(ctx, ReceiptInput{POID: po.ID, Lines: []ReceiptLine{{LineID: 999, Quantity: dec("1")}}})
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestReceiveGoodsRequiresConfirmedOrder(t *testing.T) {
	svc, _, _ := fixtureService()
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{SupplierName: "Acme Metals", Lines: []LineInput{{ProductID: 1, OrderedQty: dec("10")}}})
	require.NoError(t, err)

	_, err = svc.ReceiveGoods(ctx, ReceiptInput{POID: po.ID, Lines: []ReceiptLine{{LineID: po.Lines[0].ID, Quantity: dec("1")}}})
	require.ErrorIs(t, err, ErrInvalidTransition)
}
