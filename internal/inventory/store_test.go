package inventory_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/errs"
	"ms-booking/internal/inventory"
	"ms-booking/internal/models"
)

func setupStore(t *testing.T) (*inventory.Store, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Seat)(nil),
		(*models.StandingSector)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return &inventory.Store{Bun: bunDB}, bunDB
}

func TestGetSeat(t *testing.T) {
	store, bunDB := setupStore(t)
	defer bunDB.Close()
	ctx := context.Background()

	seat := models.Seat{SeatID: "seat-7", Label: "A7", Row: "A", Number: 7}
	_, err := bunDB.NewInsert().Model(&seat).Exec(ctx)
	require.NoError(t, err)

	found, err := store.GetSeat(ctx, "seat-7")
	require.NoError(t, err)
	assert.Equal(t, "A7", found.Label)

	_, err = store.GetSeat(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestGetStandingSector(t *testing.T) {
	store, bunDB := setupStore(t)
	defer bunDB.Close()
	ctx := context.Background()

	sector := models.StandingSector{SectorID: "sector-A", Name: "Pit", Capacity: 200}
	_, err := bunDB.NewInsert().Model(&sector).Exec(ctx)
	require.NoError(t, err)

	found, err := store.GetStandingSector(ctx, "sector-A")
	require.NoError(t, err)
	assert.Equal(t, 200, found.Capacity)

	_, err = store.GetStandingSector(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}
