package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderDraft is the checkout request body. When Total is zero it is computed
// from the ticket prices.
type OrderDraft struct {
	UserID          string   `json:"user_id"`
	TicketIDs       []string `json:"ticket_ids"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	Total           float64  `json:"total,omitempty"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID               string    `bun:"order_id,pk" json:"order_id"`
	UserID                string    `bun:"user_id,notnull" json:"user_id"`
	Total                 float64   `bun:"total" json:"total"`
	PaymentIntentID       string    `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	Cancelled             bool      `bun:"cancelled" json:"cancelled"`
	CancellationInvoiceID string    `bun:"cancellation_invoice_id,nullzero" json:"cancellation_invoice_id,omitempty"`
	InvoicePath           string    `bun:"invoice_path,nullzero" json:"invoice_path,omitempty"`
	CreatedAt             time.Time `bun:"created_at,notnull" json:"created_at"`
}

// CancellationInvoice records a refunded cancellation. Created once at
// cancellation time; only the rendered document path is filled in afterwards.
type CancellationInvoice struct {
	bun.BaseModel `bun:"table:cancellation_invoices"`

	InvoiceID     string    `bun:"invoice_id,pk" json:"invoice_id"`
	InvoiceNumber string    `bun:"invoice_number" json:"invoice_number"`
	OrderID       string    `bun:"order_id,notnull" json:"order_id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	Total         float64   `bun:"total" json:"total"`
	TicketIDs     []string  `bun:"ticket_ids" json:"ticket_ids"`
	DocumentPath  string    `bun:"document_path,nullzero" json:"document_path,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// OrderWithTickets bundles an order and its tickets for read endpoints.
type OrderWithTickets struct {
	Order   Order    `json:"order"`
	Tickets []Ticket `json:"tickets"`
}
