// Package inventory resolves seat and standing-sector identity from the
// venue catalog. The catalog itself is maintained elsewhere; the booking
// engine only ever reads it.
package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

type Store struct {
	Bun *bun.DB
}

func NewStore(bunDB *bun.DB) *Store {
	return &Store{Bun: bunDB}
}

func (s *Store) GetSeat(ctx context.Context, seatID string) (*models.Seat, error) {
	var seat models.Seat
	err := s.Bun.NewSelect().
		Model(&seat).
		Where("seat_id = ?", seatID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("seat %s not found", seatID)
	}
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (s *Store) GetStandingSector(ctx context.Context, sectorID string) (*models.StandingSector, error) {
	var sector models.StandingSector
	err := s.Bun.NewSelect().
		Model(&sector).
		Where("sector_id = ?", sectorID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("standing sector %s not found", sectorID)
	}
	if err != nil {
		return nil, err
	}
	return &sector, nil
}
