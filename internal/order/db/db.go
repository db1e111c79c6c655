package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) SetInvoicePath(ctx context.Context, orderID, path string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("invoice_path = ?", path).
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}

// ---------------- CANCELLATION ----------------

// ApplyCancellation persists the cancellation invoice and flips the order to
// cancelled in one transaction, so an order never ends up cancelled without
// its invoice or the other way round.
func (d *DB) ApplyCancellation(ctx context.Context, order models.Order, invoice models.CancellationInvoice) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&invoice).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model(&order).
			Column("cancelled", "cancellation_invoice_id").
			Where("order_id = ?", order.OrderID).
			Exec(ctx)
		return err
	})
}

func (d *DB) GetCancellationInvoice(ctx context.Context, id string) (*models.CancellationInvoice, error) {
	var invoice models.CancellationInvoice
	err := d.Bun.NewSelect().
		Model(&invoice).
		Where("invoice_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (d *DB) SetCancellationDocumentPath(ctx context.Context, invoiceID, path string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.CancellationInvoice)(nil)).
		Set("document_path = ?", path).
		Where("invoice_id = ?", invoiceID).
		Exec(ctx)
	return err
}

// ---------------- RELATION QUERIES ----------------

func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
