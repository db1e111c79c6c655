package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Show struct {
	bun.BaseModel `bun:"table:shows"`

	ShowID          string    `bun:"show_id,pk" json:"show_id"`
	EventID         string    `bun:"event_id,nullzero" json:"event_id,omitempty"`
	Name            string    `bun:"name,notnull" json:"name"`
	StartsAt        time.Time `bun:"starts_at,notnull" json:"starts_at"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	SoldSeats       int       `bun:"sold_seats" json:"sold_seats"`
}

func (s *Show) EndsAt() time.Time {
	return s.StartsAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// HasEnded gates ticket creation: nothing is sold for a show that is over.
func (s *Show) HasEnded(now time.Time) bool {
	return now.After(s.EndsAt())
}

// HasStarted gates purchase cancellation: past-show purchases are non-refundable.
func (s *Show) HasStarted(now time.Time) bool {
	return now.After(s.StartsAt)
}

// Event groups shows. Its sold_seats counter mirrors the sum of the deltas
// applied to its shows.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	EventID   string `bun:"event_id,pk" json:"event_id"`
	Name      string `bun:"name,notnull" json:"name"`
	SoldSeats int    `bun:"sold_seats" json:"sold_seats"`
}
