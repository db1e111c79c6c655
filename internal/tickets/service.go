package tickets

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
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketsByIDs(ctx context.Context, ids []string) ([]models.Ticket, error)
	GetTicketsByShow(ctx context.Context, showID string) ([]models.Ticket, error)
	GetShow(ctx context.Context, id string) (*models.Show, error)
	CountActiveBySeat(ctx context.Context, seatID, showID string) (int, error)
	CountActiveBySector(ctx context.Context, sectorID, showID string) (int, error)
	InsertTicketsWithCounters(ctx context.Context, tickets []models.Ticket) error
	UpdateTicketStates(ctx context.Context, tickets []models.Ticket) error
	CancelTicketsWithCounters(ctx context.Context, tickets []models.Ticket) error
	DeleteTicketWithCounters(ctx context.Context, ticket models.Ticket) error
	SweepExpiredCart(ctx context.Context, showID string, cutoff time.Time) ([]models.Ticket, error)
}

type InventoryStore interface {
	GetSeat(ctx context.Context, seatID string) (*models.Seat, error)
	GetStandingSector(ctx context.Context, sectorID string) (*models.StandingSector, error)
}

type ResourceLocker interface {
	LockResources(resourceIDs []string, token string) (bool, error)
	UnlockResources(resourceIDs []string, token string) error
}

type EventPublisher interface {
	PublishTicketsCreated(tickets []models.Ticket) error
	PublishTicketsReleased(tickets []models.Ticket) error
}

// TicketService is the allocation engine plus the cart/reservation manager.
// It owns ticket creation and every state transition short of checkout.
type TicketService struct {
	DB         TicketDBLayer
	Inventory  InventoryStore
	Locks      ResourceLocker
	Kafka      EventPublisher
	Logger     *logger.Logger
	CartExpiry time.Duration
}

func NewTicketService(db TicketDBLayer, inv InventoryStore, locks ResourceLocker, kafka EventPublisher, lg *logger.Logger, cartExpiry time.Duration) *TicketService {
	if cartExpiry <= 0 {
		cartExpiry = 10 * time.Minute
	}
	return &TicketService{
		DB:         db,
		Inventory:  inv,
		Locks:      locks,
		Kafka:      kafka,
		Logger:     lg,
		CartExpiry: cartExpiry,
	}
}

// CreateTickets validates and persists a batch of booking intents
// all-or-nothing. Standing intents are checked against sector capacity,
// regular intents against seat uniqueness; any violation rejects the whole
// batch before a single row or counter is written.
func (s *TicketService) CreateTickets(ctx context.Context, batch []models.TicketIntent) ([]models.Ticket, error) {
	if len(batch) == 0 {
		return nil, errs.Conflict("ticket batch is empty")
	}
	now := time.Now()

	// validation happens in two groups, ended shows then structural checks,
	// and every violation of both is reported in one rejection
	var violations []string

	shows := map[string]*models.Show{}
	for _, intent := range batch {
		if _, ok := shows[intent.ShowID]; ok {
			continue
		}
		show, err := s.DB.GetShow(ctx, intent.ShowID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("show %s not found", intent.ShowID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load show %s: %w", intent.ShowID, err)
		}
		shows[intent.ShowID] = show
		if show.HasEnded(now) {
			violations = append(violations, fmt.Sprintf("show %s has already ended", show.ShowID))
		}
	}

	for i, intent := range batch {
		switch intent.Status {
		case models.StatusInCart, models.StatusReserved:
		case models.StatusPurchased:
			violations = append(violations, fmt.Sprintf("intent %d: tickets cannot be created as purchased", i))
		default:
			violations = append(violations, fmt.Sprintf("intent %d: status must be %q or %q at creation", i, models.StatusInCart, models.StatusReserved))
		}

		switch intent.Kind {
		case models.KindRegular:
			if intent.SeatID == "" || intent.SectorID != "" {
				violations = append(violations, fmt.Sprintf("intent %d: a %s ticket needs a seat and no sector", i, models.KindRegular))
			}
		case models.KindStanding:
			if intent.SectorID == "" || intent.SeatID != "" {
				violations = append(violations, fmt.Sprintf("intent %d: a %s ticket needs a sector and no seat", i, models.KindStanding))
			}
		default:
			violations = append(violations, fmt.Sprintf("intent %d: unknown ticket kind %q", i, intent.Kind))
		}
	}
	if len(violations) > 0 {
		return nil, errs.Conflict("invalid ticket batch", violations...)
	}

	// Lock every seat and sector the batch touches so a concurrent batch
	// cannot pass the same checks. LockResources sorts ids, so competing
	// batches acquire in the same order.
	lockIDs := lockKeySet(batch)
	token := uuid.NewString()
	ok, err := s.Locks.LockResources(lockIDs, token)
	if err != nil {
		return nil, fmt.Errorf("resource lock error: %w", err)
	}
	if !ok {
		return nil, errs.Conflict("seats are being booked by another request")
	}
	defer func() {
		if err := s.Locks.UnlockResources(lockIDs, token); err != nil {
			s.Logger.Error("REDIS", fmt.Sprintf("failed to release booking locks: %v", err))
		}
	}()

	// capacity per (sector, show) group
	type sectorKey struct{ sectorID, showID string }
	groups := map[sectorKey]int{}
	for _, intent := range batch {
		if intent.Kind == models.KindStanding {
			groups[sectorKey{intent.SectorID, intent.ShowID}]++
		}
	}
	for key, fresh := range groups {
		sector, err := s.Inventory.GetStandingSector(ctx, key.sectorID)
		if err != nil {
			return nil, err
		}
		existing, err := s.DB.CountActiveBySector(ctx, key.sectorID, key.showID)
		if err != nil {
			return nil, fmt.Errorf("failed to count sector tickets: %w", err)
		}
		if existing+fresh > sector.Capacity {
			violations = append(violations, fmt.Sprintf(
				"standing sector %s is full for show %s (%d of %d taken, %d requested)",
				key.sectorID, key.showID, existing, sector.Capacity, fresh))
		}
	}

	// seat uniqueness, including duplicates inside the batch itself
	seen := map[string]bool{}
	for _, intent := range batch {
		if intent.Kind != models.KindRegular {
			continue
		}
		if _, err := s.Inventory.GetSeat(ctx, intent.SeatID); err != nil {
			return nil, err
		}
		key := intent.SeatID + "|" + intent.ShowID
		if seen[key] {
			violations = append(violations, fmt.Sprintf("seat %s requested twice for show %s in one batch", intent.SeatID, intent.ShowID))
			continue
		}
		seen[key] = true
		active, err := s.DB.CountActiveBySeat(ctx, intent.SeatID, intent.ShowID)
		if err != nil {
			return nil, fmt.Errorf("failed to check seat %s: %w", intent.SeatID, err)
		}
		if active > 0 {
			violations = append(violations, fmt.Sprintf("seat %s is already taken for show %s", intent.SeatID, intent.ShowID))
		}
	}

	if len(violations) > 0 {
		return nil, errs.Conflict("ticket batch rejected", violations...)
	}

	tickets := make([]models.Ticket, 0, len(batch))
	for _, intent := range batch {
		tickets = append(tickets, models.Ticket{
			TicketID:  uuid.NewString(),
			ShowID:    intent.ShowID,
			Kind:      intent.Kind,
			SeatID:    intent.SeatID,
			SectorID:  intent.SectorID,
			Price:     intent.Price,
			UserID:    intent.UserID,
			Status:    intent.Status,
			UpdatedAt: now,
		})
	}

	if err := s.DB.InsertTicketsWithCounters(ctx, tickets); err != nil {
		return nil, fmt.Errorf("failed to persist ticket batch: %w", err)
	}
	s.Logger.LogBooking("CREATE", fmt.Sprintf("%d tickets", len(tickets)), "batch persisted")

	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketsCreated(tickets); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish error (tickets created): %v", err))
		}
	}
	return tickets, nil
}

// GetTicket returns a single ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %s: %w", id, err)
	}
	return ticket, nil
}

// GetShow returns a show by id, used by the order workflow for past-show checks.
func (s *TicketService) GetShow(ctx context.Context, id string) (*models.Show, error) {
	show, err := s.DB.GetShow(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("show %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load show %s: %w", id, err)
	}
	return show, nil
}

// GetTicketsByShow lists tickets for a show. Reading a show is also the
// moment expired cart tickets are swept out, counters included.
func (s *TicketService) GetTicketsByShow(ctx context.Context, showID string) ([]models.Ticket, error) {
	if _, err := s.GetShow(ctx, showID); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-s.CartExpiry)
	expired, err := s.DB.SweepExpiredCart(ctx, showID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("cart expiry sweep failed for show %s: %w", showID, err)
	}
	if len(expired) > 0 {
		s.Logger.LogBooking("SWEEP", showID, fmt.Sprintf("released %d expired cart tickets", len(expired)))
		if s.Kafka != nil {
			if err := s.Kafka.PublishTicketsReleased(expired); err != nil {
				s.Logger.Error("KAFKA", fmt.Sprintf("publish error (tickets released): %v", err))
			}
		}
	}

	tickets, err := s.DB.GetTicketsByShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for show %s: %w", showID, err)
	}
	return tickets, nil
}

// lockKeySet collects the distinct seat and sector ids a batch touches.
func lockKeySet(batch []models.TicketIntent) []string {
	set := map[string]bool{}
	for _, intent := range batch {
		if intent.SeatID != "" {
			set["seat:"+intent.SeatID] = true
		}
		if intent.SectorID != "" {
			set["sector:"+intent.SectorID] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
