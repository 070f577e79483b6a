/**
 * @description
 * Payment request state machine. A request leaves pending exactly once:
 * fulfill is driven by a settling broadcast, decline by the requestee, expiry
 * by the background sweep. Remind leaves the state untouched and is gated by
 * the reminder throttle. All transitions ride conditional updates in the
 * store, so concurrent callers race on the row, not in memory.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/store"
)

// CreatePaymentRequest records a new pending request from requesterID against
// the requestee named in the payload and notifies the requestee.
func (s *Service) CreatePaymentRequest(ctx context.Context, requesterID uuid.UUID, payload domain.CreatePaymentRequestPayload) (*domain.PaymentRequest, error) {
	requesteeID, err := s.resolveRequestee(ctx, payload)
	if err != nil {
		return nil, err
	}
	if requesteeID == requesterID {
		return nil, fmt.Errorf("%w: cannot request funds from yourself", ErrInvalidRequest)
	}
	amount, err := domain.ParseAmountMicro(payload.Amount)
	if err != nil || !domain.MicroFits(amount) {
		return nil, fmt.Errorf("%w: bad amount %q", ErrInvalidRequest, payload.Amount)
	}

	req, err := s.repo.CreatePaymentRequest(ctx, &domain.PaymentRequest{
		RequesterID: requesterID,
		RequesteeID: requesteeID,
		Amount:      amount.Int64(),
		Memo:        payload.Memo,
		Status:      domain.RequestStatusPending,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Enqueue(domain.PushNotification{
		UserIDs: []string{req.RequesteeID.String()},
		Title:   "Payment request",
		Body:    fmt.Sprintf("%s requested %s %s", handleOrFallback(req.RequesterHandle, "Someone"), domain.FormatAmountMicro(req.Amount), s.asset),
		Data:    map[string]string{"request_id": req.ID.String()},
	})
	return req, nil
}

// resolveRequestee accepts the requestee by internal id or by handle and
// verifies the user exists either way.
func (s *Service) resolveRequestee(ctx context.Context, payload domain.CreatePaymentRequestPayload) (uuid.UUID, error) {
	switch {
	case payload.RequesteeID != nil:
		u, err := s.repo.FindUserByID(ctx, *payload.RequesteeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("%w: unknown requestee", ErrInvalidRequest)
			}
			return uuid.Nil, err
		}
		return u.ID, nil
	case payload.RequesteeHandle != nil && *payload.RequesteeHandle != "":
		u, err := s.repo.FindUserByHandle(ctx, *payload.RequesteeHandle)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("%w: unknown requestee handle %q", ErrInvalidRequest, *payload.RequesteeHandle)
			}
			return uuid.Nil, err
		}
		return u.ID, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: requestee_id or requestee_handle is required", ErrInvalidRequest)
	}
}

// ListPaymentRequests returns requests the caller created.
func (s *Service) ListPaymentRequests(ctx context.Context, requesterID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error) {
	return s.repo.ListPaymentRequestsByRequester(ctx, requesterID, opts)
}

// ListIncomingPaymentRequests returns requests addressed to the caller.
func (s *Service) ListIncomingPaymentRequests(ctx context.Context, requesteeID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error) {
	return s.repo.ListIncomingPaymentRequests(ctx, requesteeID, opts)
}

// fulfillRequest marks the request fulfilled. The conditional update decides the race: of two
// concurrent attempts exactly one transitions the row and the loser is told
// the request was already fulfilled.
func (s *Service) fulfillRequest(ctx context.Context, requestID, callerID, settledTxID uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := s.repo.FulfillPaymentRequest(ctx, requestID, callerID, settledTxID)
	if err != nil {
		if errors.Is(err, store.ErrRequestNotPending) {
			return nil, s.classifyNotPending(ctx, requestID)
		}
		return nil, err
	}

	s.notifier.Enqueue(domain.PushNotification{
		UserIDs: []string{req.RequesterID.String()},
		Title:   "Request fulfilled",
		Body:    fmt.Sprintf("%s paid your request for %s %s", handleOrFallback(req.RequesteeHandle, "Your contact"), domain.FormatAmountMicro(req.Amount), s.asset),
		Data:    map[string]string{"request_id": req.ID.String()},
	})
	return req, nil
}

// DeclinePaymentRequest moves a request to declined. Only the requestee may decline, only from
// pending, and no funds move.
func (s *Service) DeclinePaymentRequest(ctx context.Context, callerID, requestID uuid.UUID) (*domain.PaymentRequest, error) {
	current, err := s.repo.GetPaymentRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.RequesteeID != callerID {
		return nil, ErrUnauthorized
	}

	req, err := s.repo.DeclinePaymentRequest(ctx, requestID, callerID)
	if err != nil {
		if errors.Is(err, store.ErrRequestNotPending) {
			return nil, s.classifyNotPending(ctx, requestID)
		}
		return nil, err
	}

	s.notifier.Enqueue(domain.PushNotification{
		UserIDs: []string{req.RequesterID.String()},
		Title:   "Request declined",
		Body:    fmt.Sprintf("%s declined your request for %s %s", handleOrFallback(req.RequesteeHandle, "Your contact"), domain.FormatAmountMicro(req.Amount), s.asset),
		Data:    map[string]string{"request_id": req.ID.String()},
	})
	return req, nil
}

// RemindPaymentRequest sends a fulfillment nudge: either party may nudge, the throttle gates
// frequency, and the request state does not change.
func (s *Service) RemindPaymentRequest(ctx context.Context, callerID, requestID uuid.UUID) error {
	req, err := s.repo.GetPaymentRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if callerID != req.RequesterID && callerID != req.RequesteeID {
		return ErrUnauthorized
	}
	if req.Status != domain.RequestStatusPending {
		return &InvalidStateError{Status: req.Status}
	}
	if !CanRemind(req.LastReminderSentAt, s.reminderMinHours) {
		return ErrReminderThrottled
	}

	s.notifier.Enqueue(domain.PushNotification{
		UserIDs: []string{req.RequesteeID.String()},
		Title:   "Payment reminder",
		Body:    fmt.Sprintf("Reminder: %s is waiting on %s %s", handleOrFallback(req.RequesterHandle, "a contact"), domain.FormatAmountMicro(req.Amount), s.asset),
		Data:    map[string]string{"request_id": req.ID.String()},
	})
	return s.repo.TouchReminderSentAt(ctx, requestID, time.Now().UTC())
}

// ExpireStaleRequests sweeps pending requests older than maxAge into the
// expired terminal state. Returns the number of rows moved.
func (s *Service) ExpireStaleRequests(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.repo.ExpirePaymentRequests(ctx, time.Now().UTC().Add(-maxAge))
}

// classifyNotPending re-reads the row the conditional update skipped so the
// caller learns the current status.
func (s *Service) classifyNotPending(ctx context.Context, requestID uuid.UUID) error {
	current, err := s.repo.GetPaymentRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if current.Status == domain.RequestStatusFulfilled {
		return ErrAlreadyFulfilled
	}
	return &InvalidStateError{Status: current.Status}
}

func handleOrFallback(handle *string, fallback string) string {
	if handle != nil && *handle != "" {
		return *handle
	}
	return fallback
}
