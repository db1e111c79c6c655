package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type OrderDBLayer interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SetInvoicePath(ctx context.Context, orderID, path string) error
	ApplyCancellation(ctx context.Context, order models.Order, invoice models.CancellationInvoice) error
	GetCancellationInvoice(ctx context.Context, id string) (*models.CancellationInvoice, error)
	SetCancellationDocumentPath(ctx context.Context, invoiceID, path string) error
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
}

// TicketOps is what the workflow needs from the ticket service: the
// ticket-level purchase and cancellation plus lookups for context discovery.
type TicketOps interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetShow(ctx context.Context, id string) (*models.Show, error)
	PurchaseTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error)
	AssignOrder(ctx context.Context, ticketIDs []string, orderID string) error
	CancelPurchasedTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error)
}

type PaymentGateway interface {
	Refund(paymentIntentID string, amount float64) error
}

type DocumentRenderer interface {
	RenderOrderInvoice(order models.Order, tickets []models.Ticket) ([]byte, error)
	RenderCancellationInvoice(invoice models.CancellationInvoice, tickets []models.Ticket) ([]byte, error)
}

type DocumentStore interface {
	Store(name string, data []byte) (string, error)
}

type OrderPublisher interface {
	PublishOrderPurchased(order models.Order) error
	PublishOrderCancelled(order models.Order) error
}

// OrderService runs the checkout and cancellation workflows on top of the
// ticket-level operations.
type OrderService struct {
	DB      OrderDBLayer
	Tickets TicketOps
	Gateway PaymentGateway
	Docs    DocumentRenderer
	Store   DocumentStore
	Kafka   OrderPublisher
	Logger  *logger.Logger
}

func NewOrderService(db OrderDBLayer, tickets TicketOps, gateway PaymentGateway, docs DocumentRenderer, store DocumentStore, kafka OrderPublisher, lg *logger.Logger) *OrderService {
	return &OrderService{
		DB:      db,
		Tickets: tickets,
		Gateway: gateway,
		Docs:    docs,
		Store:   store,
		Kafka:   kafka,
		Logger:  lg,
	}
}

// PurchaseOrder turns a cart draft into a persisted order: the named tickets
// are purchased, grouped under a new order, and the invoice document is
// rendered. A failure to render or store the invoice after the tickets are
// purchased is Fatal: the purchase stands, the paperwork is regenerated by
// an operator.
func (s *OrderService) PurchaseOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error) {
	if draft.UserID == "" {
		return nil, errs.Conflict("order draft has no user")
	}
	if len(draft.TicketIDs) == 0 {
		return nil, errs.Conflict("order draft has no tickets")
	}

	purchased, err := s.Tickets.PurchaseTickets(ctx, draft.TicketIDs, draft.UserID)
	if err != nil {
		return nil, err
	}

	total := draft.Total
	if total == 0 {
		for _, t := range purchased {
			total += t.Price
		}
	}

	order := models.Order{
		OrderID:         uuid.NewString(),
		UserID:          draft.UserID,
		Total:           total,
		PaymentIntentID: draft.PaymentIntentID,
		CreatedAt:       time.Now(),
	}
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if err := s.Tickets.AssignOrder(ctx, draft.TicketIDs, order.OrderID); err != nil {
		return nil, fmt.Errorf("failed to attach tickets to order %s: %w", order.OrderID, err)
	}
	s.Logger.LogOrder("PURCHASE", order.OrderID, fmt.Sprintf("%d tickets, total %.2f", len(purchased), total))

	data, err := s.Docs.RenderOrderInvoice(order, purchased)
	if err != nil {
		s.Logger.Error("DOCS", fmt.Sprintf("invoice render failed for order %s: %v", order.OrderID, err))
		return &order, errs.Fatal("failed to render order invoice", err)
	}
	path, err := s.Store.Store("invoice-"+order.OrderID+".pdf", data)
	if err != nil {
		s.Logger.Error("DOCS", fmt.Sprintf("invoice store failed for order %s: %v", order.OrderID, err))
		return &order, errs.Fatal("failed to store order invoice", err)
	}
	order.InvoicePath = path
	if err := s.DB.SetInvoicePath(ctx, order.OrderID, path); err != nil {
		return &order, errs.Fatal("failed to record invoice path", err)
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderPurchased(order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish error (order purchased): %v", err))
		}
	}
	return &order, nil
}

// CancelPurchase reverses a purchased ticket group. The order context comes
// from the first named ticket; a batch is expected to share one order. The
// refund runs before any state changes, so a gateway rejection leaves
// tickets and order untouched.
func (s *OrderService) CancelPurchase(ctx context.Context, ticketIDs []string, userID string) (*models.Order, error) {
	if len(ticketIDs) == 0 {
		return nil, errs.Conflict("no tickets to cancel")
	}
	// a repeated id must not refund or release the same ticket twice
	ticketIDs = uniqueIDs(ticketIDs)

	first, err := s.Tickets.GetTicket(ctx, ticketIDs[0])
	if err != nil {
		return nil, err
	}
	if first.OrderID == "" {
		return nil, errs.Conflict(fmt.Sprintf("ticket %s was not purchased through an order", first.TicketID))
	}

	order, err := s.DB.GetOrderByID(ctx, first.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %s not found", first.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", first.OrderID, err)
	}
	if order.Cancelled {
		return nil, errs.Conflict(fmt.Sprintf("order %s is already cancelled", order.OrderID))
	}
	if order.UserID != userID {
		return nil, errs.Conflict(fmt.Sprintf("order %s belongs to another user", order.OrderID))
	}

	// past-show purchases are non-refundable
	now := time.Now()
	var refundTotal float64
	var violations []string
	checkedShows := map[string]bool{}
	for _, id := range ticketIDs {
		ticket, err := s.Tickets.GetTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		if ticket.OrderID != order.OrderID {
			violations = append(violations, fmt.Sprintf("ticket %s does not belong to order %s", ticket.TicketID, order.OrderID))
			continue
		}
		refundTotal += ticket.Price
		if checkedShows[ticket.ShowID] {
			continue
		}
		checkedShows[ticket.ShowID] = true
		show, err := s.Tickets.GetShow(ctx, ticket.ShowID)
		if err != nil {
			return nil, err
		}
		if show.HasStarted(now) {
			violations = append(violations, fmt.Sprintf("show %s has already started", show.ShowID))
		}
	}
	if len(violations) > 0 {
		return nil, errs.Conflict("purchase cannot be cancelled", violations...)
	}

	if order.PaymentIntentID != "" {
		if err := s.Gateway.Refund(order.PaymentIntentID, refundTotal); err != nil {
			return nil, errs.Conflict("refund rejected by payment gateway", err.Error())
		}
	}

	cancelled, err := s.Tickets.CancelPurchasedTickets(ctx, ticketIDs, userID)
	if err != nil {
		return nil, err
	}

	invoice := models.CancellationInvoice{
		InvoiceID:     uuid.NewString(),
		InvoiceNumber: utils.GenerateInvoiceNumber(),
		OrderID:       order.OrderID,
		UserID:        userID,
		Total:         refundTotal,
		TicketIDs:     ticketIDs,
		CreatedAt:     now,
	}
	order.Cancelled = true
	order.CancellationInvoiceID = invoice.InvoiceID
	if err := s.DB.ApplyCancellation(ctx, *order, invoice); err != nil {
		return nil, fmt.Errorf("failed to record cancellation for order %s: %w", order.OrderID, err)
	}
	s.Logger.LogOrder("CANCEL", order.OrderID, fmt.Sprintf("%d tickets refunded, total %.2f", len(cancelled), refundTotal))

	data, err := s.Docs.RenderCancellationInvoice(invoice, cancelled)
	if err != nil {
		s.Logger.Error("DOCS", fmt.Sprintf("cancellation invoice render failed for order %s: %v", order.OrderID, err))
		return order, errs.Fatal("failed to render cancellation invoice", err)
	}
	path, err := s.Store.Store("cancellation-"+invoice.InvoiceID+".pdf", data)
	if err != nil {
		s.Logger.Error("DOCS", fmt.Sprintf("cancellation invoice store failed for order %s: %v", order.OrderID, err))
		return order, errs.Fatal("failed to store cancellation invoice", err)
	}
	if err := s.DB.SetCancellationDocumentPath(ctx, invoice.InvoiceID, path); err != nil {
		return order, errs.Fatal("failed to record cancellation document path", err)
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderCancelled(*order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish error (order cancelled): %v", err))
		}
	}
	return order, nil
}

// GetCancellation returns the cancellation invoice of a cancelled order.
func (s *OrderService) GetCancellation(ctx context.Context, orderID string) (*models.CancellationInvoice, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if !order.Cancelled || order.CancellationInvoiceID == "" {
		return nil, errs.NotFound("order %s has no cancellation invoice", orderID)
	}

	invoice, err := s.DB.GetCancellationInvoice(ctx, order.CancellationInvoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("cancellation invoice %s not found", order.CancellationInvoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cancellation invoice %s: %w", order.CancellationInvoiceID, err)
	}
	return invoice, nil
}

// GetOrder returns an order with its tickets.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.OrderWithTickets, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	tickets, err := s.DB.GetTicketsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets for order %s: %w", id, err)
	}
	return &models.OrderWithTickets{Order: *order, Tickets: tickets}, nil
}

// uniqueIDs collapses duplicate ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
