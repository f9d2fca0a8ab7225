package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestInTx_RollsBackWhenFnFails(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		require.NoError(t, tx.CreateTable(ctx, domain.Table{ID: "t1", Capacity: 2}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.GetTable(ctx, "t1")
		return err
	})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestUpdate_ConflictsOnStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateOccupant(ctx, domain.Occupant{ID: "o1", Name: "Ana", Points: 10})
	}))

	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		o, err := tx.GetOccupant(ctx, "o1")
		require.NoError(t, err)
		stale := o

		o.Points = 5
		require.NoError(t, tx.UpdateOccupant(ctx, &o))
		assert.EqualValues(t, 1, o.Version)

		stale.Points = 0
		return tx.UpdateOccupant(ctx, &stale)
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestOpenOrder_AtMostOnePerTable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now()

	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		require.NoError(t, tx.CreateOrder(ctx, domain.Order{ID: "a", TableID: "t1", Status: domain.OrderOpen, CreatedAt: now}))
		return tx.CreateOrder(ctx, domain.Order{ID: "b", TableID: "t1", Status: domain.OrderOpen, CreatedAt: now})
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.CreateOrder(ctx, domain.Order{ID: "a", TableID: "t1", Status: domain.OrderSettled}); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, domain.Order{ID: "b", TableID: "t1", Status: domain.OrderOpen})
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		o, found, err := tx.OpenOrder(ctx, "t1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "b", o.ID)
		return nil
	}))
}

func TestListOccupants_OnlySeatedEarliestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for _, o := range []domain.Occupant{
			{ID: "late", TableID: "t1", SeatedAt: base.Add(time.Minute)},
			{ID: "early", TableID: "t1", SeatedAt: base},
			{ID: "other", TableID: "t2", SeatedAt: base},
			{ID: "walking", SeatedAt: base},
		} {
			if err := tx.CreateOccupant(ctx, o); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		got, err := tx.ListOccupants(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "early", got[0].ID)
		assert.Equal(t, "late", got[1].ID)
		return nil
	}))
}

func TestResolveApproval_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	req := domain.ApprovalRequest{ID: "r1", Status: domain.ApprovalPending, CreatedAt: time.Now()}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateApproval(ctx, req)
	}))

	req.Status = domain.ApprovalApproved
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.ResolveApproval(ctx, req)
	}))

	req.Status = domain.ApprovalRejected
	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.ResolveApproval(ctx, req)
	})
	assert.True(t, domain.IsKind(err, domain.KindAlreadyResolved))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		pending, err := tx.ListApprovals(ctx, domain.ApprovalPending)
		require.NoError(t, err)
		assert.Empty(t, pending)
		got, err := tx.GetApproval(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalApproved, got.Status)
		return nil
	}))
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.UpsertProduct(ctx, domain.Product{ID: "p1", Name: "Picanha", Price: decimal.RequireFromString("89.90")}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Picanha", p.Name)

	_, err = s.GetProduct(ctx, "nope")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestView_RejectsWrites(t *testing.T) {
	s := newStore(t)
	err := s.View(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateTable(ctx, domain.Table{ID: "t1"})
	})
	assert.ErrorIs(t, err, errReadOnly)
}
