package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketKind string

const (
	KindRegular  TicketKind = "REGULAR"
	KindStanding TicketKind = "STANDING"
)

type TicketStatus string

const (
	StatusInCart    TicketStatus = "in_cart"
	StatusReserved  TicketStatus = "reserved"
	StatusPurchased TicketStatus = "purchased"
	StatusCancelled TicketStatus = "cancelled"
)

// Active reports whether a ticket in this status still occupies its seat or
// sector capacity. Cancelled rows are kept for invoicing but count as free.
func (s TicketStatus) Active() bool {
	return s == StatusInCart || s == StatusReserved || s == StatusPurchased
}

// ActiveStatuses lists the statuses that occupy inventory, for IN queries.
func ActiveStatuses() []TicketStatus {
	return []TicketStatus{StatusInCart, StatusReserved, StatusPurchased}
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID  string       `bun:"ticket_id,pk" json:"ticket_id"`
	ShowID    string       `bun:"show_id,notnull" json:"show_id"`
	Kind      TicketKind   `bun:"kind,notnull" json:"kind"`
	SeatID    string       `bun:"seat_id,nullzero" json:"seat_id,omitempty"`
	SectorID  string       `bun:"sector_id,nullzero" json:"sector_id,omitempty"`
	Price     float64      `bun:"price" json:"price"`
	UserID    string       `bun:"user_id,nullzero" json:"user_id,omitempty"`
	Status    TicketStatus `bun:"status,notnull" json:"status"`
	OrderID   string       `bun:"order_id,nullzero" json:"order_id,omitempty"`
	UpdatedAt time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

// TicketIntent is one entry of a creation batch. A batch is validated and
// persisted all-or-nothing.
type TicketIntent struct {
	ShowID   string       `json:"show_id"`
	Kind     TicketKind   `json:"kind"`
	SeatID   string       `json:"seat_id,omitempty"`
	SectorID string       `json:"sector_id,omitempty"`
	Price    float64      `json:"price"`
	UserID   string       `json:"user_id,omitempty"`
	Status   TicketStatus `json:"status"`
}
