package models

import (
	"github.com/uptrace/bun"
)

// Seat is an individually numbered place sold at most once per show.
type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	SeatID string `bun:"seat_id,pk" json:"seat_id"`
	Label  string `bun:"label" json:"label"`
	Row    string `bun:"row" json:"row"`
	Number int    `bun:"number" json:"number"`
}

// StandingSector is a venue area sold by capacity rather than by seat.
type StandingSector struct {
	bun.BaseModel `bun:"table:standing_sectors"`

	SectorID string `bun:"sector_id,pk" json:"sector_id"`
	Name     string `bun:"name" json:"name"`
	Capacity int    `bun:"capacity,notnull" json:"capacity"`
}
