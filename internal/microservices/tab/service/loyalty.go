package service

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type LoyaltyServiceInterface interface {
	Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Redemption, error)
}

type LoyaltyService struct {
	*core
}

func NewLoyaltyService(c *core) LoyaltyServiceInterface {
	return &LoyaltyService{core: c}
}

// Redeem trades points for a fully discounted line billed to the occupant.
// The balance debit and the new line commit together or not at all.
func (s *LoyaltyService) Redeem(ctx context.Context, req domain.RedeemRequest) (domain.Redemption, error) {
	if req.Quantity <= 0 {
		return domain.Redemption{}, domain.Validation("quantity", req.ProductID, "quantity must be positive")
	}
	product, err := s.Catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Redemption{}, err
	}
	if product.PointsCost <= 0 {
		return domain.Redemption{}, domain.Validation("product_id", product.ID, "product cannot be redeemed with points")
	}
	// Balances are stored as 32-bit integers.
	if req.Quantity > math.MaxInt32/product.PointsCost {
		return domain.Redemption{}, domain.Validation("quantity", product.ID, "quantity is too large to redeem")
	}
	cost := product.PointsCost * req.Quantity

	var (
		out     domain.Redemption
		tableID string
	)
	err = s.update(ctx, "redeem", func(ctx context.Context, tx ledger.Tx) error {
		occ, err := tx.GetOccupant(ctx, req.OccupantID)
		if err != nil {
			return err
		}
		if !occ.Seated() {
			return domain.Validation("occupant_id", occ.ID, "occupant is not seated")
		}
		if occ.Points < cost {
			return domain.InsufficientPoints(occ.ID, occ.Points, cost)
		}
		order, err := ensureOpenOrder(ctx, tx, occ.TableID, s.now())
		if err != nil {
			return err
		}
		line := newLine(order, product, req.Quantity, domain.OccupantConsumer(occ.ID), s.now())
		line.DiscountPercent = decimal.NewFromInt(100)
		line.DiscountReason = fmt.Sprintf("redeemed for %d points", cost)
		if err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
		occ.Points -= cost
		if err := tx.UpdateOccupant(ctx, &occ); err != nil {
			return err
		}
		out = domain.Redemption{Line: line, PointsSpent: cost, Balance: occ.Points}
		tableID = order.TableID
		return nil
	})
	if err != nil {
		return domain.Redemption{}, err
	}

	s.Log.Info("points_redeemed", map[string]any{
		"occupant_id": req.OccupantID, "line_id": out.Line.ID, "points": cost, "balance": out.Balance,
	})
	if out.Line.PrepStatus == domain.PrepQueued {
		s.dispatch(ctx, ticketFor(out.Line, tableID))
	}
	return out, nil
}
