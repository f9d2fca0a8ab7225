package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"restaurant-billing/internal/billing"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type TabServiceInterface interface {
	CreateTable(ctx context.Context, req domain.CreateTableRequest) (domain.Table, error)
	RegisterOccupant(ctx context.Context, req domain.RegisterOccupantRequest) (domain.Occupant, error)
	SeatOccupant(ctx context.Context, tableID, occupantID string) (domain.Occupant, error)
	SeatIdentified(ctx context.Context, tableID string, sample []byte) (domain.Occupant, error)
	SetPrincipal(ctx context.Context, tableID, occupantID string) error
	AddItem(ctx context.Context, req domain.AddItemRequest) (domain.OrderLine, error)
	GetTab(ctx context.Context, tableID string) (domain.Tab, error)
	GroupLines(ctx context.Context, orderID string) ([]billing.ConsumerGroup, error)
	ComputeTotals(groups []billing.ConsumerGroup, tipEnabled bool) billing.Totals
	OrderTotals(ctx context.Context, orderID string, tipEnabled bool) (billing.Totals, error)
	MarkServed(ctx context.Context, lineID, staffID string) (domain.OrderLine, error)
}

type TabService struct {
	*core
}

func NewTabService(c *core) TabServiceInterface {
	return &TabService{core: c}
}

func (s *TabService) CreateTable(ctx context.Context, req domain.CreateTableRequest) (domain.Table, error) {
	if req.Capacity <= 0 {
		return domain.Table{}, domain.Validation("capacity", "", "capacity must be positive")
	}
	tb := domain.Table{ID: uuid.NewString(), Label: strings.TrimSpace(req.Label), Capacity: req.Capacity}
	err := s.update(ctx, "create_table", func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateTable(ctx, tb)
	})
	if err != nil {
		return domain.Table{}, err
	}
	s.Log.Info("table_created", map[string]any{"table_id": tb.ID, "capacity": tb.Capacity})
	return tb, nil
}

func (s *TabService) RegisterOccupant(ctx context.Context, req domain.RegisterOccupantRequest) (domain.Occupant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Occupant{}, domain.Validation("name", "", "name is required")
	}
	if req.Points < 0 {
		return domain.Occupant{}, domain.Validation("points", "", "points must not be negative")
	}
	occ := domain.Occupant{ID: uuid.NewString(), Name: name, Points: req.Points}
	err := s.update(ctx, "register_occupant", func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateOccupant(ctx, occ)
	})
	if err != nil {
		return domain.Occupant{}, err
	}
	return occ, nil
}

func (s *TabService) SeatOccupant(ctx context.Context, tableID, occupantID string) (domain.Occupant, error) {
	var occ domain.Occupant
	err := s.update(ctx, "seat_occupant", func(ctx context.Context, tx ledger.Tx) error {
		tb, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		occ, err = tx.GetOccupant(ctx, occupantID)
		if err != nil {
			return err
		}
		switch occ.TableID {
		case tableID:
			return nil
		case "":
		default:
			return domain.Validation("occupant_id", occupantID, "occupant is seated at another table")
		}

		seated, err := tx.ListOccupants(ctx, tableID)
		if err != nil {
			return err
		}
		if len(seated) >= tb.Capacity {
			return domain.CapacityExceeded(tableID, tb.Capacity)
		}
		occ.TableID = tableID
		occ.SeatedAt = s.now()
		if err := tx.UpdateOccupant(ctx, &occ); err != nil {
			return err
		}
		// The table is always rewritten so concurrent seatings that counted
		// the same occupants conflict instead of overfilling it.
		if tb.PrincipalOccupantID == "" {
			tb.PrincipalOccupantID = occ.ID
		}
		return tx.UpdateTable(ctx, &tb)
	})
	if err != nil {
		return domain.Occupant{}, err
	}
	s.Log.Info("occupant_seated", map[string]any{"table_id": tableID, "occupant_id": occupantID})
	return occ, nil
}

func (s *TabService) SeatIdentified(ctx context.Context, tableID string, sample []byte) (domain.Occupant, error) {
	if s.Identity == nil {
		return domain.Occupant{}, domain.Validation("sample", "", "identity service is not configured")
	}
	id, found, err := s.Identity.Identify(ctx, sample)
	if err != nil {
		return domain.Occupant{}, err
	}
	if !found {
		return domain.Occupant{}, &domain.Error{Kind: domain.KindNotFound, Field: "sample", Message: "no occupant matches the sample"}
	}
	return s.SeatOccupant(ctx, tableID, id)
}

func (s *TabService) SetPrincipal(ctx context.Context, tableID, occupantID string) error {
	return s.update(ctx, "set_principal", func(ctx context.Context, tx ledger.Tx) error {
		tb, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		occ, err := tx.GetOccupant(ctx, occupantID)
		if err != nil {
			return err
		}
		if occ.TableID != tableID {
			return domain.Validation("occupant_id", occupantID, "occupant is not seated at this table")
		}
		if tb.PrincipalOccupantID == occupantID {
			return nil
		}
		tb.PrincipalOccupantID = occupantID
		return tx.UpdateTable(ctx, &tb)
	})
}

func (s *TabService) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.OrderLine, error) {
	if req.Quantity <= 0 {
		return domain.OrderLine{}, domain.Validation("quantity", "", "quantity must be positive")
	}
	product, err := s.Catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	consumer := domain.Shared()
	if req.ConsumerOccupantID != "" {
		consumer = domain.OccupantConsumer(req.ConsumerOccupantID)
	}

	var line domain.OrderLine
	err = s.update(ctx, "add_item", func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.GetTable(ctx, req.TableID); err != nil {
			return err
		}
		if id, ok := consumer.OccupantID(); ok {
			occ, err := tx.GetOccupant(ctx, id)
			if err != nil {
				return err
			}
			if occ.TableID != req.TableID {
				return domain.Validation("consumer_occupant_id", id, "occupant is not seated at this table")
			}
		}
		order, err := ensureOpenOrder(ctx, tx, req.TableID, s.now())
		if err != nil {
			return err
		}
		line = newLine(order, product, req.Quantity, consumer, s.now())
		return tx.InsertLine(ctx, line)
	})
	if err != nil {
		return domain.OrderLine{}, err
	}

	s.Log.Info("item_added", map[string]any{
		"table_id": req.TableID, "order_id": line.OrderID, "line_id": line.ID,
		"product": line.ProductName, "quantity": line.Quantity, "consumer": consumer.String(),
	})
	if line.PrepStatus == domain.PrepQueued {
		s.dispatch(ctx, ticketFor(line, req.TableID))
	}
	return line, nil
}

func (s *TabService) GetTab(ctx context.Context, tableID string) (domain.Tab, error) {
	var tab domain.Tab
	err := s.Store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		tb, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		occupants, err := tx.ListOccupants(ctx, tableID)
		if err != nil {
			return err
		}
		tab = domain.Tab{Table: tb, Occupants: occupants}
		order, found, err := tx.OpenOrder(ctx, tableID)
		if err != nil || !found {
			return err
		}
		tab.Order = &order
		tab.Lines, err = tx.ListLines(ctx, order.ID)
		return err
	})
	return tab, err
}

func (s *TabService) GroupLines(ctx context.Context, orderID string) ([]billing.ConsumerGroup, error) {
	var groups []billing.ConsumerGroup
	err := s.Store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, orderID)
		if err != nil {
			return err
		}
		var occupants []domain.Occupant
		principal := ""
		if order.IsOpen() {
			if occupants, err = tx.ListOccupants(ctx, order.TableID); err != nil {
				return err
			}
			tb, err := tx.GetTable(ctx, order.TableID)
			if err != nil {
				return err
			}
			principal = tb.PrincipalOccupantID
		}
		groups = billing.GroupLines(lines, occupants, principal)
		return nil
	})
	return groups, err
}

func (s *TabService) ComputeTotals(groups []billing.ConsumerGroup, tipEnabled bool) billing.Totals {
	return s.Calculator.Compute(groups, tipEnabled)
}

func (s *TabService) OrderTotals(ctx context.Context, orderID string, tipEnabled bool) (billing.Totals, error) {
	groups, err := s.GroupLines(ctx, orderID)
	if err != nil {
		return billing.Totals{}, err
	}
	return s.ComputeTotals(groups, tipEnabled), nil
}

// MarkServed records that a ready line reached the table.
func (s *TabService) MarkServed(ctx context.Context, lineID, staffID string) (domain.OrderLine, error) {
	var (
		line    domain.OrderLine
		tableID string
	)
	err := s.update(ctx, "mark_served", func(ctx context.Context, tx ledger.Tx) error {
		var err error
		line, err = tx.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.PrepStatus != domain.PrepReady {
			return domain.Validation("prep_status", lineID, "line is %s, only ready lines can be served", line.PrepStatus)
		}
		order, err := tx.GetOrder(ctx, line.OrderID)
		if err != nil {
			return err
		}
		tableID = order.TableID
		line.PrepStatus = domain.PrepServed
		return tx.UpdateLine(ctx, &line)
	})
	if err != nil {
		return domain.OrderLine{}, err
	}
	now := s.now()
	s.emit(ctx, domain.EventLineStatus, domain.LineStatusEvent{
		LineID: line.ID, OrderID: line.OrderID, TableID: tableID,
		OldStatus: domain.PrepReady, NewStatus: domain.PrepServed,
		ChangedBy: staffID, Timestamp: now,
	})
	return line, nil
}
