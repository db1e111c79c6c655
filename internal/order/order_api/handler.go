package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	"ms-booking/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, lg *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Logger:       lg,
	}
}

// PurchaseOrder handles POST /orders: checkout of in-cart tickets.
func (h *Handler) PurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var draft models.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PurchaseOrder: failed to decode request: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	placed, err := h.OrderService.PurchaseOrder(r.Context(), draft)
	if err != nil {
		// A fatal document failure still carries the committed order;
		// report the failure but include what was persisted.
		if errs.IsFatal(err) && placed != nil {
			h.Logger.Error("API", fmt.Sprintf("PurchaseOrder: order %s persisted but invoice failed: %v", placed.OrderID, err))
			writeJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success:   false,
				Message:   "order placed but invoice generation failed",
				Data:      placed,
				Error:     err.Error(),
				Timestamp: placed.CreatedAt,
			})
			return
		}
		h.writeError(w, "PurchaseOrder", err)
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("order placed", placed))
}

type cancelPurchaseRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	UserID    string   `json:"user_id"`
}

// CancelPurchase handles POST /orders/cancel: refund and cancellation
// invoice for a purchased ticket group.
func (h *Handler) CancelPurchase(w http.ResponseWriter, r *http.Request) {
	var req cancelPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	cancelled, err := h.OrderService.CancelPurchase(r.Context(), req.TicketIDs, req.UserID)
	if err != nil {
		if errs.IsFatal(err) && cancelled != nil {
			h.Logger.Error("API", fmt.Sprintf("CancelPurchase: order %s cancelled but paperwork failed: %v", cancelled.OrderID, err))
			writeJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success:   false,
				Message:   "purchase cancelled but invoice generation failed",
				Data:      cancelled,
				Error:     err.Error(),
				Timestamp: cancelled.CreatedAt,
			})
			return
		}
		h.writeError(w, "CancelPurchase", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("purchase cancelled", cancelled))
}

// GetCancellation handles GET /orders/{orderID}/cancellation, returning the
// cancellation invoice of a cancelled order.
func (h *Handler) GetCancellation(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	invoice, err := h.OrderService.GetCancellation(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "GetCancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("cancellation invoice found", invoice))
}

// GetOrder handles GET /orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	result, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "GetOrder", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("order found", result))
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
