package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type fakeIdentity map[string]string

func (f fakeIdentity) Identify(ctx context.Context, sample []byte) (string, bool, error) {
	id, ok := f[string(sample)]
	return id, ok, nil
}

func TestCreateTable_RequiresCapacity(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Tab.CreateTable(f.ctx, domain.CreateTableRequest{Label: "bar", Capacity: 0})
	de := requireKind(t, err, domain.KindValidation)
	assert.Equal(t, "capacity", de.Field)
}

func TestSeatOccupant(t *testing.T) {
	f := newFixture(t, nil)
	small := f.createTable(1)

	ana := f.seat("Ana", 0)
	tab, err := f.svc.Tab.GetTab(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.ID, tab.Table.PrincipalOccupantID, "first to sit is principal")

	again, err := f.svc.Tab.SeatOccupant(f.ctx, f.table.ID, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, ana.TableID, again.TableID)

	_, err = f.svc.Tab.SeatOccupant(f.ctx, small.ID, ana.ID)
	requireKind(t, err, domain.KindValidation)

	bia, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Bia"})
	require.NoError(t, err)
	caio, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Caio"})
	require.NoError(t, err)
	_, err = f.svc.Tab.SeatOccupant(f.ctx, small.ID, bia.ID)
	require.NoError(t, err)
	_, err = f.svc.Tab.SeatOccupant(f.ctx, small.ID, caio.ID)
	requireKind(t, err, domain.KindCapacityExceeded)
	assert.False(t, f.occupant(caio.ID).Seated())

	_, err = f.svc.Tab.SeatOccupant(f.ctx, "no-table", caio.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestRegisterOccupant_Validation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "  "})
	requireKind(t, err, domain.KindValidation)
	_, err = f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Ana", Points: -5})
	requireKind(t, err, domain.KindValidation)
}

func TestSetPrincipal(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	bia := f.seat("Bia", 0)

	require.NoError(t, f.svc.Tab.SetPrincipal(f.ctx, f.table.ID, bia.ID))
	tab, err := f.svc.Tab.GetTab(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Equal(t, bia.ID, tab.Table.PrincipalOccupantID)

	outsider, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Caio"})
	require.NoError(t, err)
	err = f.svc.Tab.SetPrincipal(f.ctx, f.table.ID, outsider.ID)
	requireKind(t, err, domain.KindValidation)
}

func TestSeatIdentified(t *testing.T) {
	f := newFixture(t, nil)
	ana, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Ana"})
	require.NoError(t, err)

	_, err = f.svc.Tab.SeatIdentified(f.ctx, f.table.ID, []byte("face"))
	requireKind(t, err, domain.KindValidation)

	f.svc.Tab.(*TabService).Identity = fakeIdentity{"face": ana.ID}
	occ, err := f.svc.Tab.SeatIdentified(f.ctx, f.table.ID, []byte("face"))
	require.NoError(t, err)
	assert.Equal(t, f.table.ID, occ.TableID)

	_, err = f.svc.Tab.SeatIdentified(f.ctx, f.table.ID, []byte("someone else"))
	requireKind(t, err, domain.KindNotFound)
}

func TestAddItem_OpensOrderOnceAndQueuesKitchen(t *testing.T) {
	f := newFixture(t, nil)
	ana := f.seat("Ana", 0)

	first := f.add(soda, 1, "")
	assert.True(t, first.Consumer.IsShared())
	assert.Equal(t, domain.PrepNone, first.PrepStatus)
	assert.Empty(t, f.rec.tickets)

	second := f.add(pizza, 2, ana.ID)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, domain.PrepQueued, second.PrepStatus)
	require.Len(t, f.rec.tickets, 1)
	assert.Equal(t, 10, f.rec.tickets[0].Priority)

	f.add(pizza, 1, "")
	require.Len(t, f.rec.tickets, 2)
	assert.Equal(t, 5, f.rec.tickets[1].Priority)

	tab, err := f.svc.Tab.GetTab(f.ctx, f.table.ID)
	require.NoError(t, err)
	require.NotNil(t, tab.Order)
	assert.Len(t, tab.Lines, 3)
}

func TestAddItem_Validation(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	outsider, err := f.svc.Tab.RegisterOccupant(f.ctx, domain.RegisterOccupantRequest{Name: "Caio"})
	require.NoError(t, err)

	cases := []struct {
		name string
		req  domain.AddItemRequest
		kind domain.ErrorKind
	}{
		{"zero quantity", domain.AddItemRequest{TableID: f.table.ID, ProductID: soda.ID}, domain.KindValidation},
		{"unknown product", domain.AddItemRequest{TableID: f.table.ID, ProductID: "p-none", Quantity: 1}, domain.KindNotFound},
		{"unknown table", domain.AddItemRequest{TableID: "t-none", ProductID: soda.ID, Quantity: 1}, domain.KindNotFound},
		{"consumer not seated", domain.AddItemRequest{TableID: f.table.ID, ProductID: soda.ID, Quantity: 1, ConsumerOccupantID: outsider.ID}, domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Tab.AddItem(f.ctx, tc.req)
			requireKind(t, err, tc.kind)
		})
	}
	tab, err := f.svc.Tab.GetTab(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Nil(t, tab.Order)
}

// Scenario A.
func TestOrderTotals_SharedLineWithDiscount(t *testing.T) {
	f := newFixture(t, nil)
	ana := f.seat("Ana", 120)
	l := f.add(soda, 2, "")
	f.discount(l.ID, "10")

	groups, err := f.svc.Tab.GroupLines(f.ctx, l.OrderID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	id, ok := groups[0].Consumer.OccupantID()
	require.True(t, ok)
	assert.Equal(t, ana.ID, id)
	assert.True(t, groups[0].Subtotal.IsZero())
	assert.True(t, groups[1].Consumer.IsShared())

	off := f.svc.Tab.ComputeTotals(groups, false)
	money(t, "18.00", off.Subtotal)
	money(t, "18.00", off.GrandTotal)

	on := f.svc.Tab.ComputeTotals(groups, true)
	money(t, "1.80", on.Tip)
	money(t, "19.80", on.GrandTotal)
}

func TestMarkServed(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	p := f.add(pizza, 1, "")

	_, err := f.svc.Tab.MarkServed(f.ctx, p.ID, "staff-garcom")
	requireKind(t, err, domain.KindValidation)

	f.setPrep(p.ID, domain.PrepReady)
	served, err := f.svc.Tab.MarkServed(f.ctx, p.ID, "staff-garcom")
	require.NoError(t, err)
	assert.Equal(t, domain.PrepServed, served.PrepStatus)
	assert.Equal(t, domain.PrepServed, f.line(p.ID).PrepStatus)

	evs := f.rec.ofType(domain.EventLineStatus)
	require.Len(t, evs, 1)
	ev := evs[0].Payload.(domain.LineStatusEvent)
	assert.Equal(t, f.table.ID, ev.TableID)
	assert.Equal(t, "staff-garcom", ev.ChangedBy)
}

func TestSeatOccupant_RewritesTableOnEverySeating(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	stale := f.tableRow(f.table.ID)

	bia := f.seat("Bia", 0)
	fresh := f.tableRow(f.table.ID)
	assert.Greater(t, fresh.Version, stale.Version)
	assert.NotEqual(t, bia.ID, fresh.PrincipalOccupantID)

	err := f.db.InTx(f.ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.UpdateTable(ctx, &stale)
	})
	requireKind(t, err, domain.KindConflict)
}

// A settlement that read the order before an item was added must not commit.
func TestAddItem_InvalidatesEarlierOrderReads(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	first := f.add(soda, 1, "")
	stale := f.order(first.OrderID)

	second := f.add(dessert, 1, "")
	require.Equal(t, first.OrderID, second.OrderID)
	assert.Greater(t, f.order(first.OrderID).Version, stale.Version)

	err := f.db.InTx(f.ctx, func(ctx context.Context, tx ledger.Tx) error {
		stale.Status = domain.OrderSettled
		return tx.UpdateOrder(ctx, &stale)
	})
	requireKind(t, err, domain.KindConflict)
	assert.Equal(t, 1, f.line(second.ID).Remaining)
	assert.True(t, f.order(first.OrderID).IsOpen())
}
