package tui

import (
	"context"
	"time"

	"starkdemo/pkg/felt"
	"starkdemo/pkg/rpc"
	"starkdemo/pkg/validate"
	"starkdemo/pkg/wallet"

	tea "github.com/charmbracelet/bubbletea"
)

// Each action is its own command; the wallet runs the network call and the
// result comes back to Update as a message.

func checkBalanceCmd(w *wallet.Wallet) tea.Cmd {
	return func() tea.Msg {
		bal, err := w.CheckAccountBalance(context.Background())
		return balanceMsg{balance: bal, err: err}
	}
}

func sendTransactionCmd(w *wallet.Wallet, recipient felt.Felt, amount felt.Uint256) tea.Cmd {
	return func() tea.Msg {
		resp, err := w.SendTransaction(context.Background(), recipient, amount)
		return txSentMsg{resp: resp, err: err}
	}
}

func checkStatusCmd(w *wallet.Wallet) tea.Cmd {
	return func() tea.Msg {
		r, err := w.CheckStatus(context.Background())
		return receiptMsg{receipt: r, err: err}
	}
}

func fetchLatencyCmd(rpcURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		data, _ := rpc.FetchRPCLatency(ctx, rpcURL)
		return data
	}
}

func listenForWallet(sub wallet.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// validateInputs re-runs both validators on the raw field text.
func (m *model) validateInputs() {
	m.recipientValid = validate.ValidateAddress(m.inputs[inputRecipient].Value())
	m.amountValid = validate.ValidateAmount(m.inputs[inputAmount].Value())
}

func (m *model) setFocus(f focus) tea.Cmd {
	m.focus = f
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	switch f {
	case focusRecipient:
		return m.inputs[inputRecipient].Focus()
	case focusAmount:
		return m.inputs[inputAmount].Focus()
	}
	return nil
}

func (m *model) nextFocus() tea.Cmd {
	return m.setFocus((m.focus + 1) % (focusSend + 1))
}

func (m *model) prevFocus() tea.Cmd {
	return m.setFocus((m.focus + focusSend) % (focusSend + 1))
}

// startOp counts an action in flight and restarts the spinner when it was
// idle.
func (m *model) startOp() tea.Cmd {
	m.inFlight++
	if m.inFlight == 1 {
		return m.spinner.Tick
	}
	return nil
}

func (m *model) endOp() {
	if m.inFlight > 0 {
		m.inFlight--
	}
}

func (m *model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsErr = isErr
	if isErr {
		return clearStatusAfter(8 * time.Second)
	}
	return clearStatusAfter(3 * time.Second)
}

// refresh copies the wallet snapshot into the model.
func (m *model) refresh() {
	m.state = m.wallet.State()
	m.history = m.wallet.History()
	m.lastUpdate = time.Now()
}
