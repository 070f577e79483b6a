/**
 * @description
 * HTTP handlers for the settlement endpoints. Handlers parse requests, call
 * the application service and translate error kinds into HTTP statuses; no
 * business logic lives here.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/app"
	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/store"
)

// Handlers holds the application service used by all endpoints.
type Handlers struct {
	service    *app.Service
	reconciler *app.Reconciler
}

// NewHandlers creates the handler set.
func NewHandlers(service *app.Service, reconciler *app.Reconciler) *Handlers {
	return &Handlers{service: service, reconciler: reconciler}
}

// broadcastResponse mirrors what the mobile client expects after submitting a
// signed transaction. RecordPending signals the soft failure path: the
// transfer is on chain but the ledger row is missing until reconciliation.
type broadcastResponse struct {
	Hash          string                 `json:"hash"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Status        string                 `json:"status"`
	Message       string                 `json:"message,omitempty"`
	RecordPending bool                   `json:"record_pending,omitempty"`
	RequestStatus string                 `json:"request_status,omitempty"`
	Request       *domain.PaymentRequest `json:"request,omitempty"`
}

// callerID authenticates the request and resolves the bearer subject to the
// internal user id, writing the error response itself on failure.
func (h *Handlers) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get subject from context")
		return uuid.Nil, false
	}
	userID, err := h.service.ResolveUserID(r.Context(), subject)
	if err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			h.writeError(w, http.StatusUnauthorized, "Unknown user")
			return uuid.Nil, false
		}
		log.Printf("level=error component=api msg=\"resolve user failed\" subject=%s err=%v", subject, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return uuid.Nil, false
	}
	return userID, true
}

// BuildTransferHandler constructs an unsigned transfer descriptor.
func (h *Handlers) BuildTransferHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerID(w, r); !ok {
		return
	}

	var payload domain.BuildTransferPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	descriptor, err := h.service.BuildTransfer(r.Context(), payload.From, payload.To, payload.Amount)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrInsufficientFunds):
			h.writeError(w, http.StatusUnprocessableEntity, "Insufficient token balance for this transfer.")
		default:
			log.Printf("level=error component=api endpoint=build_transfer outcome=failed err=%v", err)
			h.writeError(w, http.StatusBadGateway, "Could not build transfer. Please retry.")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, descriptor)
}

// BroadcastHandler submits a signed transaction and records it.
func (h *Handlers) BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var payload domain.BroadcastPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	result, err := h.service.Broadcast(r.Context(), userID, payload.SignedTx, payload.TxInfo)
	if err != nil {
		var stateErr *app.InvalidStateError
		switch {
		case errors.Is(err, app.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrUnauthorized):
			h.writeError(w, http.StatusForbidden, "You are not the payer on this request.")
		case errors.Is(err, app.ErrAlreadyFulfilled):
			h.writeError(w, http.StatusConflict, "This request was already fulfilled.")
		case errors.As(err, &stateErr):
			h.writeError(w, http.StatusConflict, stateErr.Error())
		case errors.Is(err, app.ErrBroadcastRejected):
			log.Printf("level=warn component=api endpoint=broadcast outcome=rejected user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusBadGateway, "Transaction issue, check status.")
		default:
			log.Printf("level=error component=api endpoint=broadcast outcome=failed user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	resp := broadcastResponse{
		Hash:   result.Hash,
		Status: domain.TxStatusPending,
	}
	if result.TransactionID != uuid.Nil {
		resp.TransactionID = result.TransactionID.String()
	}
	if result.RecordWriteFailed {
		resp.RecordPending = true
		resp.Message = "Transaction issue, check status."
	}
	if result.Request != nil {
		resp.Request = result.Request
		resp.RequestStatus = result.Request.Status
	} else if result.RequestErr != nil {
		if errors.Is(result.RequestErr, app.ErrAlreadyFulfilled) {
			resp.RequestStatus = domain.RequestStatusFulfilled
		} else {
			resp.RequestStatus = "unresolved"
		}
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// ListTransactionsHandler returns the caller's transaction history.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.service.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Could not retrieve transactions.")
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// mapRequestError translates state-machine errors shared by the payment
// request endpoints.
func (h *Handlers) mapRequestError(w http.ResponseWriter, err error, endpoint string) {
	var stateErr *app.InvalidStateError
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Payment request not found.")
	case errors.Is(err, app.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "You are not a party to this request.")
	case errors.Is(err, app.ErrAlreadyFulfilled):
		h.writeError(w, http.StatusConflict, "This request was already fulfilled.")
	case errors.As(err, &stateErr):
		h.writeError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, app.ErrReminderThrottled):
		h.writeError(w, http.StatusTooManyRequests, "A reminder was sent recently. Try again later.")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
