/**
 * @description
 * HTTP handlers for the payment request endpoints: create, list (both
 * directions), decline and remind. Fulfillment has no endpoint of its own —
 * it happens through a broadcast carrying a request id.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
)

// CreatePaymentRequestHandler creates a new payment request from the caller.
func (h *Handlers) CreatePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var payload domain.CreatePaymentRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	request, err := h.service.CreatePaymentRequest(r.Context(), userID, payload)
	if err != nil {
		h.mapRequestError(w, err, "create_payment_request")
		return
	}
	h.writeJSON(w, http.StatusCreated, request)
}

func listOptions(r *http.Request) domain.PaymentRequestListOptions {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return domain.PaymentRequestListOptions{
		Limit:  limit,
		Offset: offset,
		Status: r.URL.Query().Get("status"),
	}
}

// ListPaymentRequestsHandler lists requests the caller created.
func (h *Handlers) ListPaymentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListPaymentRequests(r.Context(), userID, listOptions(r))
	if err != nil {
		h.mapRequestError(w, err, "list_payment_requests")
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// ListIncomingPaymentRequestsHandler lists requests addressed to the caller.
func (h *Handlers) ListIncomingPaymentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListIncomingPaymentRequests(r.Context(), userID, listOptions(r))
	if err != nil {
		h.mapRequestError(w, err, "list_incoming_payment_requests")
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

func requestIDParam(w http.ResponseWriter, r *http.Request, h *Handlers) (uuid.UUID, bool) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payment request ID.")
		return uuid.Nil, false
	}
	return requestID, true
}

// DeclinePaymentRequestHandler declines a pending incoming request.
func (h *Handlers) DeclinePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(w, r, h)
	if !ok {
		return
	}

	request, err := h.service.DeclinePaymentRequest(r.Context(), userID, requestID)
	if err != nil {
		h.mapRequestError(w, err, "decline_payment_request")
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

// RemindPaymentRequestHandler sends a throttled fulfillment reminder.
func (h *Handlers) RemindPaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	requestID, ok := requestIDParam(w, r, h)
	if !ok {
		return
	}

	if err := h.service.RemindPaymentRequest(r.Context(), userID, requestID); err != nil {
		h.mapRequestError(w, err, "remind_payment_request")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reminder_sent"})
}
