package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/docs"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets"
	"ms-booking/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Renderer      *docs.Renderer
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, renderer *docs.Renderer, lg *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		Renderer:      renderer,
		Logger:        lg,
	}
}

type createTicketsRequest struct {
	Tickets []models.TicketIntent `json:"tickets"`
}

type ticketBatchRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	UserID    string   `json:"user_id"`
}

// CreateTickets handles POST /tickets: an all-or-nothing booking batch.
func (h *Handler) CreateTickets(w http.ResponseWriter, r *http.Request) {
	var req createTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTickets: failed to decode request: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	created, err := h.TicketService.CreateTickets(r.Context(), req.Tickets)
	if err != nil {
		h.writeError(w, "CreateTickets", err)
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("tickets created", created))
}

// AddToCart handles POST /cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req ticketBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	updated, err := h.TicketService.AddToCart(r.Context(), req.TicketIDs, req.UserID)
	if err != nil {
		h.writeError(w, "AddToCart", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("tickets added to cart", updated))
}

// PurchaseTickets handles POST /tickets/purchase, the ticket-level purchase.
func (h *Handler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	var req ticketBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	updated, err := h.TicketService.PurchaseTickets(r.Context(), req.TicketIDs, req.UserID)
	if err != nil {
		h.writeError(w, "PurchaseTickets", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("tickets purchased", updated))
}

// CancelReservation handles DELETE /reservations/{ticketID}?user_id=...
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	userID := r.URL.Query().Get("user_id")

	if err := h.TicketService.CancelReservation(r.Context(), ticketID, userID); err != nil {
		h.writeError(w, "CancelReservation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromCart handles DELETE /cart/{ticketID}.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	if err := h.TicketService.RemoveFromCart(r.Context(), ticketID); err != nil {
		h.writeError(w, "RemoveFromCart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTicket handles GET /tickets/{ticketID}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	ticket, err := h.TicketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "GetTicket", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("ticket found", ticket))
}

// GetShowTickets handles GET /shows/{showID}/tickets. Reading a show also
// sweeps expired cart tickets.
func (h *Handler) GetShowTickets(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")

	list, err := h.TicketService.GetTicketsByShow(r.Context(), showID)
	if err != nil {
		h.writeError(w, "GetShowTickets", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("tickets for show", list))
}

// GetTicketDocument handles GET /tickets/{ticketID}/document, returning the
// printable PDF with the encrypted QR.
func (h *Handler) GetTicketDocument(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	ticket, err := h.TicketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "GetTicketDocument", err)
		return
	}

	data, err := h.Renderer.RenderTicket(*ticket)
	if err != nil {
		h.Logger.Error("DOCS", fmt.Sprintf("ticket render failed for %s: %v", ticketID, err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to render ticket", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	writeJSON(w, status, utils.ErrorResponse(op+" failed", err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
