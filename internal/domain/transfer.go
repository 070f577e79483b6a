/**
 * @description
 * Ephemeral transfer-construction types. An UnsignedTransferDescriptor is
 * produced by the transfer builder, handed to the client-side signer, and
 * discarded after signing; nothing here is persisted.
 *
 * @notes
 * - The target network uses account-abstraction (EIP-712 style) transactions:
 *   the token movement is encoded in calldata, so the top-level `value` stays
 *   "0x0". That shape must be preserved exactly for signature validity.
 */

package domain

import "github.com/google/uuid"

// EIP712TxType is the wire type of account-abstraction transactions on the
// target network (0x71).
const EIP712TxType = "0x71"

// TransferSkeleton is the minimal call description sent to fee estimation.
type TransferSkeleton struct {
	From  string `json:"from"`
	To    string `json:"to"` // token contract
	Value string `json:"value"`
	Data  string `json:"data"`
}

// FeeEstimate mirrors the node's zks_estimateFee response. All quantities are
// hex strings in wei / gas units.
type FeeEstimate struct {
	GasLimit             string `json:"gas_limit"`
	GasPerPubdataLimit   string `json:"gas_per_pubdata_limit"`
	MaxFeePerGas         string `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas"`
}

// EIP712Meta carries the protocol-specific metadata merged into the unsigned
// transaction. FactoryDeps is always present and empty for plain transfers.
type EIP712Meta struct {
	GasPerPubdata string   `json:"gasPerPubdata"`
	FactoryDeps   []string `json:"factoryDeps"`
}

// UnsignedTransferDescriptor is a complete, independently signable transfer.
type UnsignedTransferDescriptor struct {
	Type                 string     `json:"type"`
	From                 string     `json:"from"`
	To                   string     `json:"to"` // token contract
	Value                string     `json:"value"`
	Data                 string     `json:"data"`
	Nonce                uint64     `json:"nonce"`
	GasLimit             string     `json:"gasLimit"`
	MaxFeePerGas         string     `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string     `json:"maxPriorityFeePerGas"`
	ChainID              uint64     `json:"chainId"`
	CustomData           EIP712Meta `json:"customData"`
}

// SubmitResult is the detailed output of a raw-transaction submission.
type SubmitResult struct {
	TransactionHash string `json:"transactionHash"`
}

// BuildTransferPayload is the DTO for the construct-transfer endpoint.
type BuildTransferPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// BroadcastPayload is the DTO for the submit-signed-transaction endpoint.
// TxInfo mirrors what the client knows about the transfer so the ledger row
// can be written without re-deriving it from the raw transaction.
type BroadcastPayload struct {
	SignedTx string          `json:"signed_tx"`
	TxInfo   BroadcastTxInfo `json:"tx_info"`
}

// BroadcastTxInfo carries the off-chain metadata recorded with a broadcast.
type BroadcastTxInfo struct {
	ToUserID    *uuid.UUID `json:"to_user_id,omitempty"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      string     `json:"amount"` // decimal string
	MethodID    string     `json:"method_id"`
	RequestID   *uuid.UUID `json:"request_id,omitempty"`
}
