package models

import (
	"encoding/json"
	"fmt"
	"time"

	"starkdemo/pkg/felt"
)

// ReceiptStatus is the single status shown for a transaction.
type ReceiptStatus string

const (
	StatusReceived     ReceiptStatus = "RECEIVED"
	StatusPending      ReceiptStatus = "PENDING"
	StatusAcceptedOnL2 ReceiptStatus = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 ReceiptStatus = "ACCEPTED_ON_L1"
	StatusRejected     ReceiptStatus = "REJECTED"
	StatusReverted     ReceiptStatus = "REVERTED"
	StatusUnknown      ReceiptStatus = "UNKNOWN"
)

// Final reports whether the status can no longer change.
func (s ReceiptStatus) Final() bool {
	switch s {
	case StatusAcceptedOnL1, StatusRejected, StatusReverted:
		return true
	}
	return false
}

// Receipt is a transaction receipt. A nil *Receipt means the node does not
// know the transaction yet.
type Receipt struct {
	TransactionHash felt.Felt     `json:"transaction_hash"`
	Status          ReceiptStatus `json:"status"`
	FinalityStatus  string        `json:"finality_status,omitempty"`
	ExecutionStatus string        `json:"execution_status,omitempty"`
	ActualFee       *felt.Felt    `json:"actual_fee,omitempty"`
	FeeUnit         string        `json:"fee_unit,omitempty"`
	BlockNumber     uint64        `json:"block_number,omitempty"`
	RevertReason    string        `json:"revert_reason,omitempty"`
}

// feePayment is the actual_fee object of RPC 0.5 and later.
type feePayment struct {
	Amount felt.Felt `json:"amount"`
	Unit   string    `json:"unit"`
}

// UnmarshalJSON accepts both the legacy receipt (status, actual_fee as a
// hex string) and the current one (finality_status, execution_status,
// actual_fee as {amount, unit}).
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var raw struct {
		TransactionHash felt.Felt       `json:"transaction_hash"`
		Status          string          `json:"status"`
		FinalityStatus  string          `json:"finality_status"`
		ExecutionStatus string          `json:"execution_status"`
		ActualFee       json.RawMessage `json:"actual_fee"`
		FeeUnit         string          `json:"fee_unit"`
		BlockNumber     uint64          `json:"block_number"`
		RevertReason    string          `json:"revert_reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Receipt{
		TransactionHash: raw.TransactionHash,
		FinalityStatus:  raw.FinalityStatus,
		ExecutionStatus: raw.ExecutionStatus,
		FeeUnit:         raw.FeeUnit,
		BlockNumber:     raw.BlockNumber,
		RevertReason:    raw.RevertReason,
	}

	if len(raw.ActualFee) > 0 && string(raw.ActualFee) != "null" {
		switch raw.ActualFee[0] {
		case '"':
			var fee felt.Felt
			if err := json.Unmarshal(raw.ActualFee, &fee); err != nil {
				return fmt.Errorf("actual_fee: %w", err)
			}
			out.ActualFee = &fee
		case '{':
			var fee feePayment
			if err := json.Unmarshal(raw.ActualFee, &fee); err != nil {
				return fmt.Errorf("actual_fee: %w", err)
			}
			out.ActualFee = &fee.Amount
			out.FeeUnit = fee.Unit
		default:
			return fmt.Errorf("actual_fee: unexpected value %s", raw.ActualFee)
		}
	}

	out.Status = deriveStatus(raw.Status, raw.FinalityStatus, raw.ExecutionStatus)
	*r = out
	return nil
}

func deriveStatus(status, finality, execution string) ReceiptStatus {
	if status != "" {
		return ReceiptStatus(status)
	}
	switch execution {
	case "REVERTED":
		return StatusReverted
	case "REJECTED":
		return StatusRejected
	}
	switch finality {
	case "ACCEPTED_ON_L1":
		return StatusAcceptedOnL1
	case "ACCEPTED_ON_L2":
		return StatusAcceptedOnL2
	case "RECEIVED":
		return StatusReceived
	case "PRE_CONFIRMED", "PENDING":
		return StatusPending
	}
	return StatusUnknown
}

// InvokeResponse is the node's acknowledgement of a submitted transaction.
type InvokeResponse struct {
	TransactionHash felt.Felt `json:"transaction_hash"`
}

// BalancePoint holds a timestamped balance sample for the history graph.
type BalancePoint struct {
	Timestamp time.Time
	Value     float64
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL      string
	Latency     time.Duration
	BlockNumber uint64
	Err         error
}

// TokenMetadata contains the result of a token metadata fetch.
type TokenMetadata struct {
	Symbol   string
	Decimals int
	Err      error
}

// NetworkResult holds test results for one configured network.
type NetworkResult struct {
	Name            string `json:"name"`
	RPCURL          string `json:"rpc_url"`
	Status          string `json:"status"` // "ok" or "error"
	ConfigChainID   string `json:"config_chain_id,omitempty"`
	ObservedChainID string `json:"observed_chain_id,omitempty"`
	ChainIDUpdated  bool   `json:"chain_id_updated"`
	Inconsistent    bool   `json:"inconsistent"`
	LatencyMs       int64  `json:"latency_ms,omitempty"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	TokenDecimals   int    `json:"token_decimals,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath           string          `json:"config_path"`
	ValidStructure       bool            `json:"valid_structure"`
	StructureErrors      []string        `json:"structure_errors,omitempty"`
	AccountConfigured    bool            `json:"account_configured"`
	NetworkCount         int             `json:"network_count"`
	Networks             []NetworkResult `json:"networks,omitempty"`
	InconsistentNetworks []string        `json:"inconsistent_networks,omitempty"`
	ConfigUpdated        bool            `json:"config_updated"`
	SaveError            string          `json:"save_error,omitempty"`
	DryRun               bool            `json:"dry_run"`
}
