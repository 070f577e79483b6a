/**
 * @description
 * Error kinds for the settlement service. Expected conditions (bad input,
 * insufficient funds, state-machine violations) are explicit sentinel values
 * so handlers can map them to actionable responses; wrapped causes preserve
 * the underlying reason for the log.
 */

package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks malformed input; raised before any external call.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized marks a missing or mismatched caller identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientFunds is the advisory pre-check failure; the network
	// submission remains the authoritative check.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBroadcastRejected wraps a network-level submission failure. The
	// node's reason string is preserved in the wrapped message.
	ErrBroadcastRejected = errors.New("broadcast rejected")
	// ErrRecordWriteFailed signals a ledger insert failure after a successful
	// submission. Non-fatal: funds have moved, the webhook is the backstop.
	ErrRecordWriteFailed = errors.New("transaction record write failed")
	// ErrAlreadyFulfilled is returned to the loser of a fulfillment race.
	ErrAlreadyFulfilled = errors.New("payment request already fulfilled")
	// ErrReminderThrottled gates reminders sent too soon after the last one.
	ErrReminderThrottled = errors.New("reminder sent too recently")
	// ErrInvalidSignature marks a webhook that failed HMAC verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// InvalidStateError reports an action attempted against a non-pending payment
// request, carrying the current status so the caller can reconcile its view.
type InvalidStateError struct {
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("payment request is %s", e.Status)
}
