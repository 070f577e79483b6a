/**
 * @description
 * This file models the inbound chain-activity webhook payload. A single
 * delivery carries one or more activity legs for a mined transaction: exactly
 * one is the user-intended token transfer, the rest are gas/fee movements
 * against the network's reserved fee-collection address.
 */

package domain

import "encoding/json"

// NativeAsset is the gas token symbol reported on activity legs.
const NativeAsset = "ETH"

// ChainActivityEvent is the top-level webhook body:
// { "event": { "activity": [ ... ] } }.
type ChainActivityEvent struct {
	WebhookID string `json:"webhookId,omitempty"`
	ID        string `json:"id,omitempty"`
	Event     struct {
		Network  string          `json:"network,omitempty"`
		Activity []ChainActivity `json:"activity"`
	} `json:"event"`
}

// ChainActivity is one leg of a multi-leg transfer event. Value is kept as a
// json.Number so fee arithmetic stays exact (float64 round-trips are not).
type ChainActivity struct {
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
	Asset       string      `json:"asset"`
	Value       json.Number `json:"value"`
	Hash        string      `json:"hash"`
	Category    string      `json:"category"`
}

// PushNotification is the message handed to the notification dispatcher.
// Delivery is fire-and-forget with bounded retry; user ids fan out downstream.
type PushNotification struct {
	UserIDs []string          `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}
