/**
 * @description
 * This file defines the transaction ledger model and the amount helpers shared
 * across the service. A Transaction row is created the moment an on-chain
 * broadcast succeeds, never before, and is keyed by the network-assigned hash.
 *
 * @notes
 * - Token amounts are int64 micro-units (6-decimal asset). The gas fee is kept
 *   as a decimal string because it is denominated in the native asset, whose
 *   precision exceeds six places.
 */

package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction settlement states.
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// Transaction is the off-chain record of a single on-chain transfer.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	FromUserID  uuid.UUID  `json:"from_user_id"`
	ToUserID    *uuid.UUID `json:"to_user_id,omitempty"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      int64      `json:"amount"` // micro-units
	MethodID    string     `json:"method_id"`
	RequestID   *uuid.UUID `json:"request_id,omitempty"`
	Hash        string     `json:"hash"`
	Status      string     `json:"status"`
	Fee         string     `json:"fee"` // native-asset decimal, "0" until reconciled
	Asset       string     `json:"asset"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TokenDecimals is the precision of the settlement asset.
const TokenDecimals = 6

var ErrBadAmount = errors.New("amount must be a positive decimal with at most 6 fractional digits")

// ParseAmountMicro converts a human decimal amount ("12.5") into micro-units.
// It rejects non-numeric input, zero, negatives and excess precision.
func ParseAmountMicro(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, ErrBadAmount
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return nil, ErrBadAmount
	}
	frac += strings.Repeat("0", TokenDecimals-len(frac))
	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || n.Sign() <= 0 {
		return nil, ErrBadAmount
	}
	return n, nil
}

// FormatAmountMicro renders micro-units as a trimmed decimal string for
// presentation boundaries ("10", "0.25").
func FormatAmountMicro(v int64) string {
	q, r := v/1_000_000, v%1_000_000
	if r < 0 {
		r = -r
	}
	if r == 0 {
		return fmt.Sprintf("%d", q)
	}
	frac := strings.TrimRight(fmt.Sprintf("%06d", r), "0")
	return fmt.Sprintf("%d.%s", q, frac)
}

// MicroFits reports whether a big.Int micro-unit value fits the ledger column.
func MicroFits(v *big.Int) bool {
	return v.IsInt64()
}
