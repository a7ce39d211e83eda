package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/logging"
	"starkdemo/pkg/metrics"
	"starkdemo/pkg/models"
	"starkdemo/pkg/utils"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrNoTransaction is returned by CheckStatus before anything was submitted.
var ErrNoTransaction = errors.New("no transaction submitted yet")

const historySize = 120

// State is a snapshot of what the screen shows.
type State struct {
	Network        string          `json:"network"`
	Account        felt.Felt       `json:"account"`
	TokenSymbol    string          `json:"token_symbol,omitempty"`
	TokenDecimals  int             `json:"token_decimals"`
	Balance        felt.Uint256    `json:"balance"`
	BalanceKnown   bool            `json:"balance_known"`
	BalanceUpdated time.Time       `json:"balance_updated,omitempty"`
	TxHash         felt.Felt       `json:"tx_hash"`
	Receipt        *models.Receipt `json:"receipt"`
}

// HasTransaction reports whether TxHash is set.
func (s State) HasTransaction() bool {
	return !s.TxHash.IsZero()
}

// Options configures a Wallet.
type Options struct {
	Network        config.NetworkConfig
	Account        felt.Felt
	Logger         *log.Logger
	Metrics        metrics.Metrics
	AutoRefresh    time.Duration
	RequestTimeout time.Duration
}

// Wallet holds the shared view state and runs the three chain operations.
type Wallet struct {
	opts   Options
	client ChainClient
	logger *log.Logger

	state   State
	history []models.BalancePoint

	subscribers []Subscriber
	mu          sync.RWMutex
	stopOnce    sync.Once
	stopChan    chan struct{}
}

// New creates a Wallet. A nil logger or metrics falls back to no-ops.
func New(client ChainClient, opts Options) *Wallet {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopMetrics()
	}
	return &Wallet{
		opts:   opts,
		client: client,
		logger: opts.Logger.With("network", opts.Network.Name),
		state: State{
			Network:       opts.Network.Name,
			Account:       opts.Account,
			TokenSymbol:   opts.Network.TokenSymbol,
			TokenDecimals: opts.Network.TokenDecimals,
		},
		stopChan: make(chan struct{}),
	}
}

// Network returns the network the wallet talks to.
func (w *Wallet) Network() config.NetworkConfig {
	return w.opts.Network
}

// State returns a copy of the current state.
func (w *Wallet) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.state
	if s.Receipt != nil {
		r := *s.Receipt
		s.Receipt = &r
	}
	return s
}

// History returns the recorded balance samples, oldest first.
func (w *Wallet) History() []models.BalancePoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.BalancePoint, len(w.history))
	copy(out, w.history)
	return out
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Wallet) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Wallet) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Wallet) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			// slow subscriber, drop
		}
	}
}

// begin starts an operation: an id for logs and events and the call context.
func (w *Wallet) begin(ctx context.Context, op string) (string, *log.Logger, context.Context, context.CancelFunc) {
	id := uuid.NewString()
	logger := w.logger.With("op", op, "op_id", id)
	if w.opts.RequestTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, w.opts.RequestTimeout)
		return id, logger, ctx, cancel
	}
	return id, logger, ctx, func() {}
}

func (w *Wallet) fail(id, op string, logger *log.Logger, start time.Time, err error) {
	w.opts.Metrics.ObserveOperation(op, metrics.ResultError, time.Since(start))
	logger.Error("operation failed", "err", err)
	w.notify(Event{ID: id, Type: EventOperationFailed, Time: time.Now(), Data: FailureData{Op: op, Error: err.Error()}})
}

// CheckBalance reads the token balance of addr and stores it as the current
// balance.
func (w *Wallet) CheckBalance(ctx context.Context, addr felt.Felt) (felt.Uint256, error) {
	id, logger, ctx, cancel := w.begin(ctx, metrics.OpBalance)
	defer cancel()
	start := time.Now()

	bal, err := w.client.BalanceOf(ctx, addr)
	if err != nil {
		err = fmt.Errorf("check balance of %s: %w", addr, err)
		w.fail(id, metrics.OpBalance, logger, start, err)
		return felt.Uint256{}, err
	}
	w.opts.Metrics.ObserveOperation(metrics.OpBalance, metrics.ResultOK, time.Since(start))

	now := time.Now()
	units := utils.BigFloatToFloat64(utils.ToUnits(bal.BigInt(), w.opts.Network.TokenDecimals))
	w.mu.Lock()
	w.state.Balance = bal
	w.state.BalanceKnown = true
	w.state.BalanceUpdated = now
	w.history = append(w.history, models.BalancePoint{Timestamp: now, Value: units})
	if len(w.history) > historySize {
		w.history = w.history[len(w.history)-historySize:]
	}
	w.mu.Unlock()
	w.opts.Metrics.SetBalance(units)

	logger.Info("balance checked", "address", addr, "balance", bal.Dec())
	w.notify(Event{ID: id, Type: EventBalanceUpdated, Time: now, Data: BalanceData{Address: addr, Balance: bal}})
	return bal, nil
}

// CheckAccountBalance is CheckBalance for the configured account.
func (w *Wallet) CheckAccountBalance(ctx context.Context) (felt.Uint256, error) {
	if w.opts.Account.IsZero() {
		return felt.Uint256{}, config.ErrNoAccount
	}
	return w.CheckBalance(ctx, w.opts.Account)
}

// SendTransaction submits transfer(recipient, amount) and stores the new hash.
// Concurrent or repeated calls each submit their own transfer.
func (w *Wallet) SendTransaction(ctx context.Context, recipient felt.Felt, amount felt.Uint256) (models.InvokeResponse, error) {
	id, logger, ctx, cancel := w.begin(ctx, metrics.OpTransfer)
	defer cancel()
	start := time.Now()

	logger.Info("submitting transfer", "recipient", recipient, "amount", amount.Dec())
	resp, err := w.client.Transfer(ctx, recipient, amount)
	if err != nil {
		err = fmt.Errorf("transfer %s to %s: %w", amount, recipient, err)
		w.fail(id, metrics.OpTransfer, logger, start, err)
		return models.InvokeResponse{}, err
	}
	w.opts.Metrics.ObserveOperation(metrics.OpTransfer, metrics.ResultOK, time.Since(start))
	w.opts.Metrics.IncTransfersSubmitted()

	w.mu.Lock()
	w.state.TxHash = resp.TransactionHash
	w.mu.Unlock()

	logger.Info("transfer submitted", "tx_hash", resp.TransactionHash)
	w.notify(Event{ID: id, Type: EventTransactionSubmitted, Time: time.Now(), Data: TransactionData{
		Recipient:       recipient,
		Amount:          amount,
		TransactionHash: resp.TransactionHash,
	}})
	return resp, nil
}

// CheckStatus fetches the receipt of the last submitted transaction. A nil
// receipt with a nil error means the node does not know it yet.
func (w *Wallet) CheckStatus(ctx context.Context) (*models.Receipt, error) {
	w.mu.RLock()
	hash := w.state.TxHash
	w.mu.RUnlock()
	if hash.IsZero() {
		return nil, ErrNoTransaction
	}

	return w.fetchReceipt(ctx, hash, true)
}

// LookupReceipt fetches the receipt of any hash without touching the state.
func (w *Wallet) LookupReceipt(ctx context.Context, hash felt.Felt) (*models.Receipt, error) {
	return w.fetchReceipt(ctx, hash, false)
}

func (w *Wallet) fetchReceipt(ctx context.Context, hash felt.Felt, store bool) (*models.Receipt, error) {
	id, logger, ctx, cancel := w.begin(ctx, metrics.OpReceipt)
	defer cancel()
	start := time.Now()

	receipt, err := w.client.TransactionReceipt(ctx, hash)
	if err != nil {
		err = fmt.Errorf("receipt of %s: %w", hash, err)
		w.fail(id, metrics.OpReceipt, logger, start, err)
		return nil, err
	}

	if receipt == nil {
		w.opts.Metrics.ObserveOperation(metrics.OpReceipt, metrics.ResultUnknown, time.Since(start))
		logger.Info("transaction not known yet", "tx_hash", hash)
	} else {
		w.opts.Metrics.ObserveOperation(metrics.OpReceipt, metrics.ResultOK, time.Since(start))
		w.opts.Metrics.SetReceiptStatus(string(receipt.Status))
		logger.Info("receipt fetched", "tx_hash", hash, "status", receipt.Status)
	}
	if store {
		w.mu.Lock()
		w.state.Receipt = receipt
		w.mu.Unlock()
	}
	w.notify(Event{ID: id, Type: EventReceiptUpdated, Time: time.Now(), Data: ReceiptData{TransactionHash: hash, Receipt: receipt}})
	return receipt, nil
}

// Start begins the balance refresh loop when AutoRefresh is set.
func (w *Wallet) Start(ctx context.Context) {
	if w.opts.AutoRefresh <= 0 || w.opts.Account.IsZero() {
		return
	}
	go w.pollingLoop(ctx)
}

// Stop stops the refresh loop.
func (w *Wallet) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *Wallet) pollingLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.AutoRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// failures are already logged and published
			_, _ = w.CheckAccountBalance(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
