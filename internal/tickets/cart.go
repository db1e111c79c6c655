package tickets

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

// Cart/reservation transitions. The state machine per active ticket:
//
//	in_cart  --PurchaseTickets-->  purchased
//	reserved --AddToCart-->        in_cart
//	reserved --CancelReservation-> (deleted)
//	in_cart  --RemoveFromCart-->   (deleted)
//
// purchased tickets leave this machine through the order workflow only.

// AddToCart moves tickets into the caller's cart. Reservations held by the
// same user convert to cart items; anything held by another user, already
// purchased, or cancelled rejects the whole batch.
func (s *TicketService) AddToCart(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, errs.Conflict("no tickets specified")
	}

	found, err := s.loadAll(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, t := range found {
		switch {
		case t.Status == models.StatusPurchased:
			violations = append(violations, fmt.Sprintf("ticket %s is already purchased", t.TicketID))
		case t.Status == models.StatusCancelled:
			violations = append(violations, fmt.Sprintf("ticket %s has been cancelled", t.TicketID))
		case t.UserID != "" && t.UserID != userID:
			violations = append(violations, fmt.Sprintf("ticket %s is held by another user", t.TicketID))
		}
	}
	if len(violations) > 0 {
		return nil, errs.Conflict("tickets cannot be added to cart", violations...)
	}

	now := time.Now()
	for i := range found {
		found[i].Status = models.StatusInCart
		found[i].UserID = userID
		found[i].UpdatedAt = now
	}
	if err := s.DB.UpdateTicketStates(ctx, found); err != nil {
		return nil, fmt.Errorf("failed to update cart tickets: %w", err)
	}
	s.Logger.LogBooking("CART", userID, fmt.Sprintf("%d tickets added to cart", len(found)))
	return found, nil
}

// PurchaseTickets is the ticket-level purchase: every ticket must currently
// be in the cart and its show must not have ended.
func (s *TicketService) PurchaseTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, errs.Conflict("no tickets specified")
	}

	found, err := s.loadAll(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var violations []string
	checkedShows := map[string]bool{}
	for _, t := range found {
		if !checkedShows[t.ShowID] {
			checkedShows[t.ShowID] = true
			show, err := s.GetShow(ctx, t.ShowID)
			if err != nil {
				return nil, err
			}
			if show.HasEnded(now) {
				violations = append(violations, fmt.Sprintf("show %s has already ended", show.ShowID))
			}
		}
		if t.Status != models.StatusInCart {
			violations = append(violations, fmt.Sprintf("ticket %s is not in a cart (status %s)", t.TicketID, t.Status))
		}
	}
	if len(violations) > 0 {
		return nil, errs.Conflict("tickets cannot be purchased", violations...)
	}

	for i := range found {
		found[i].Status = models.StatusPurchased
		found[i].UserID = userID
		found[i].UpdatedAt = now
	}
	if err := s.DB.UpdateTicketStates(ctx, found); err != nil {
		return nil, fmt.Errorf("failed to mark tickets purchased: %w", err)
	}
	s.Logger.LogBooking("PURCHASE", userID, fmt.Sprintf("%d tickets purchased", len(found)))
	return found, nil
}

// AssignOrder stamps the owning order onto freshly purchased tickets.
func (s *TicketService) AssignOrder(ctx context.Context, ticketIDs []string, orderID string) error {
	found, err := s.loadAll(ctx, ticketIDs)
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range found {
		found[i].OrderID = orderID
		found[i].UpdatedAt = now
	}
	if err := s.DB.UpdateTicketStates(ctx, found); err != nil {
		return fmt.Errorf("failed to assign order %s: %w", orderID, err)
	}
	return nil
}

// CancelReservation releases a reserved ticket. The lookup is scoped to
// (ticket, user): a ticket reserved by someone else reads as absent.
func (s *TicketService) CancelReservation(ctx context.Context, ticketID, userID string) error {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.UserID != userID {
		return errs.NotFound("no reservation for ticket %s and user %s", ticketID, userID)
	}
	if ticket.Status != models.StatusReserved {
		return errs.NotFound("ticket %s is not reserved", ticketID)
	}

	if err := s.DB.DeleteTicketWithCounters(ctx, *ticket); err != nil {
		return fmt.Errorf("failed to cancel reservation %s: %w", ticketID, err)
	}
	s.Logger.LogBooking("RESERVATION", ticketID, "reservation cancelled, ticket released")
	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketsReleased([]models.Ticket{*ticket}); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish error (tickets released): %v", err))
		}
	}
	return nil
}

// RemoveFromCart releases an in-cart ticket.
func (s *TicketService) RemoveFromCart(ctx context.Context, ticketID string) error {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status != models.StatusInCart {
		return errs.NotFound("ticket %s is not in a cart", ticketID)
	}

	if err := s.DB.DeleteTicketWithCounters(ctx, *ticket); err != nil {
		return fmt.Errorf("failed to remove ticket %s from cart: %w", ticketID, err)
	}
	s.Logger.LogBooking("CART", ticketID, "ticket removed from cart")
	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketsReleased([]models.Ticket{*ticket}); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish error (tickets released): %v", err))
		}
	}
	return nil
}

// CancelPurchasedTickets flips purchased tickets to cancelled on behalf of
// the order workflow. Rows are kept so the cancellation invoice can point at
// them; the counters are decremented in the same transaction.
func (s *TicketService) CancelPurchasedTickets(ctx context.Context, ticketIDs []string, userID string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, errs.Conflict("no tickets specified")
	}

	found, err := s.loadAll(ctx, ticketIDs)
	if err != nil {
		return nil, err
	}

	var violations []string
	for _, t := range found {
		if t.Status != models.StatusPurchased {
			violations = append(violations, fmt.Sprintf("ticket %s is not purchased (status %s)", t.TicketID, t.Status))
		} else if t.UserID != userID {
			violations = append(violations, fmt.Sprintf("ticket %s belongs to another user", t.TicketID))
		}
	}
	if len(violations) > 0 {
		return nil, errs.Conflict("tickets cannot be cancelled", violations...)
	}

	now := time.Now()
	for i := range found {
		found[i].Status = models.StatusCancelled
		found[i].UpdatedAt = now
	}
	if err := s.DB.CancelTicketsWithCounters(ctx, found); err != nil {
		return nil, fmt.Errorf("failed to cancel purchased tickets: %w", err)
	}
	s.Logger.LogBooking("CANCEL", userID, fmt.Sprintf("%d purchased tickets cancelled", len(found)))
	return found, nil
}

// loadAll fetches the named tickets and fails NotFound when any id is
// missing, listing the absent ones. Duplicate ids collapse to one entry so
// repeated ids cannot apply a state change or counter delta twice. The
// result preserves first-seen input order.
func (s *TicketService) loadAll(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByIDs(ctx, ticketIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	byID := make(map[string]models.Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.TicketID] = t
	}

	ordered := make([]models.Ticket, 0, len(ticketIDs))
	seen := make(map[string]bool, len(ticketIDs))
	var missing []string
	for _, id := range ticketIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, t)
	}
	if len(missing) > 0 {
		return nil, errs.NotFound("tickets not found: %v", missing)
	}
	return ordered, nil
}
