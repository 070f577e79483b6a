/**
 * @description
 * This file defines the payment request domain model. A payment request is a
 * request for funds between two users: the requester is owed funds, the
 * requestee is expected to pay. A request leaves the pending state exactly
 * once; fulfilled, declined and expired are all terminal.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment request lifecycle states. Every state other than pending is terminal.
const (
	RequestStatusPending   = "pending"
	RequestStatusFulfilled = "fulfilled"
	RequestStatusDeclined  = "declined"
	RequestStatusExpired   = "expired"
)

// PaymentRequest maps directly to the `payment_requests` table. Amounts are
// stored as int64 micro-units (USDC value x 10^6) to avoid floating-point
// inaccuracies with financial data.
type PaymentRequest struct {
	ID                 uuid.UUID  `json:"id"`
	RequesterID        uuid.UUID  `json:"requester_id"`
	RequesteeID        uuid.UUID  `json:"requestee_id"`
	RequesterHandle    *string    `json:"requester_handle,omitempty"`
	RequesteeHandle    *string    `json:"requestee_handle,omitempty"`
	Amount             int64      `json:"amount"` // micro-units
	Memo               *string    `json:"memo,omitempty"`
	Status             string     `json:"status"`
	SettledTxID        *uuid.UUID `json:"settled_transaction_id,omitempty"`
	LastReminderSentAt *time.Time `json:"last_reminder_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CreatePaymentRequestPayload is the DTO for creating a new payment request.
// The requestee may be addressed by internal id or by handle; amount arrives
// as a decimal string and is parsed into micro-units.
type CreatePaymentRequestPayload struct {
	RequesteeID     *uuid.UUID `json:"requestee_id,omitempty"`
	RequesteeHandle *string    `json:"requestee_handle,omitempty"`
	Amount          string     `json:"amount"`
	Memo            *string    `json:"memo,omitempty"`
}

// PaymentRequestListOptions controls pagination for request listings.
type PaymentRequestListOptions struct {
	Limit  int
	Offset int
	Status string
}
