package wallet

import (
	"time"

	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
)

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventBalanceUpdated       EventType = "balance_updated"
	EventTransactionSubmitted EventType = "transaction_submitted"
	EventReceiptUpdated       EventType = "receipt_updated"
	EventOperationFailed      EventType = "operation_failed"
)

// Event is published after every completed operation. ID is the operation
// id that also appears in the logs.
type Event struct {
	ID   string      `json:"id"`
	Type EventType   `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

type BalanceData struct {
	Address felt.Felt    `json:"address"`
	Balance felt.Uint256 `json:"balance"`
}

type TransactionData struct {
	Recipient       felt.Felt    `json:"recipient"`
	Amount          felt.Uint256 `json:"amount"`
	TransactionHash felt.Felt    `json:"transaction_hash"`
}

// ReceiptData carries a nil Receipt when the node does not know the hash.
type ReceiptData struct {
	TransactionHash felt.Felt       `json:"transaction_hash"`
	Receipt         *models.Receipt `json:"receipt"`
}

type FailureData struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
