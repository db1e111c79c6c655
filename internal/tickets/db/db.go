package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- READS ----------------

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByIDs(ctx context.Context, ids []string) ([]models.Ticket, error) {
	if len(ids) == 0 {
		return []models.Ticket{}, nil
	}
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("ticket_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetTicketsByShow(ctx context.Context, showID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("show_id = ?", showID).
		Order("ticket_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) GetShow(ctx context.Context, id string) (*models.Show, error) {
	var show models.Show
	err := d.Bun.NewSelect().
		Model(&show).
		Where("show_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// CountActiveBySeat returns how many live tickets reference a (seat, show)
// pair. Anything above zero means the seat is taken.
func (d *DB) CountActiveBySeat(ctx context.Context, seatID, showID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("seat_id = ?", seatID).
		Where("show_id = ?", showID).
		Where("status IN (?)", bun.In(models.ActiveStatuses())).
		Count(ctx)
}

// CountActiveBySector returns how many live tickets occupy a standing sector
// for a show, compared against the sector capacity by the allocation engine.
func (d *DB) CountActiveBySector(ctx context.Context, sectorID, showID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("sector_id = ?", sectorID).
		Where("show_id = ?", showID).
		Where("status IN (?)", bun.In(models.ActiveStatuses())).
		Count(ctx)
}

// ---------------- WRITES ----------------
//
// Every write that changes how many tickets are active also moves the
// Show/Event sold_seats counters, inside the same transaction. Counter
// writes only happen after validation has passed, so there is never a
// compensating decrement to apply on failure.

func (d *DB) InsertTicketsWithCounters(ctx context.Context, tickets []models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
			return err
		}
		for _, t := range tickets {
			if err := adjustSoldSeats(ctx, tx, t.ShowID, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateTicketStates persists state transitions that do not change how many
// tickets are active (cart/reserve/purchase moves, order assignment).
func (d *DB) UpdateTicketStates(ctx context.Context, tickets []models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range tickets {
			_, err := tx.NewUpdate().
				Model(&tickets[i]).
				Column("status", "user_id", "order_id", "updated_at").
				Where("ticket_id = ?", tickets[i].TicketID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelTicketsWithCounters flips purchased tickets to cancelled and releases
// their counter slots. The rows stay behind so the cancellation invoice can
// reference them.
func (d *DB) CancelTicketsWithCounters(ctx context.Context, tickets []models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range tickets {
			_, err := tx.NewUpdate().
				Model(&tickets[i]).
				Column("status", "updated_at").
				Where("ticket_id = ?", tickets[i].TicketID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if err := adjustSoldSeats(ctx, tx, tickets[i].ShowID, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTicketWithCounters removes a released ticket (cart removal or
// reservation cancel) and gives its slot back.
func (d *DB) DeleteTicketWithCounters(ctx context.Context, ticket models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("ticket_id = ?", ticket.TicketID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			// already gone, nothing to refund
			return nil
		}
		return adjustSoldSeats(ctx, tx, ticket.ShowID, -1)
	})
}

// SweepExpiredCart deletes in-cart tickets for a show whose timestamp is
// older than the cutoff, decrementing the counters for every row it removes.
// Returns the deleted tickets.
func (d *DB) SweepExpiredCart(ctx context.Context, showID string, cutoff time.Time) ([]models.Ticket, error) {
	var expired []models.Ticket
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&expired).
			Where("show_id = ?", showID).
			Where("status = ?", models.StatusInCart).
			Where("updated_at < ?", cutoff).
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, t := range expired {
			_, err := tx.NewDelete().
				Model((*models.Ticket)(nil)).
				Where("ticket_id = ?", t.TicketID).
				Exec(ctx)
			if err != nil {
				return err
			}
			if err := adjustSoldSeats(ctx, tx, t.ShowID, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// adjustSoldSeats moves a show counter by delta and mirrors the delta onto
// the owning event when there is one. Must run inside the transaction of the
// ticket change that justifies it.
func adjustSoldSeats(ctx context.Context, tx bun.Tx, showID string, delta int) error {
	var show models.Show
	err := tx.NewSelect().
		Model(&show).
		Where("show_id = ?", showID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return err
	}

	_, err = tx.NewUpdate().
		Model((*models.Show)(nil)).
		Set("sold_seats = sold_seats + ?", delta).
		Where("show_id = ?", showID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if show.EventID != "" {
		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("sold_seats = sold_seats + ?", delta).
			Where("event_id = ?", show.EventID).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
