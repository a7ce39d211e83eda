package tui

import (
	"errors"
	"fmt"
	"time"

	"starkdemo/pkg/models"
	"starkdemo/pkg/validate"
	"starkdemo/pkg/wallet"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case balanceMsg:
		m.endOp()
		m.refresh()
		if msg.err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Check balance failed: %v", msg.err), true))
		} else {
			cmds = append(cmds, m.setStatus("Balance updated", false))
		}

	case txSentMsg:
		m.endOp()
		m.refresh()
		if msg.err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Send failed: %v", msg.err), true))
		} else {
			cmds = append(cmds, m.setStatus("Transaction submitted", false))
		}

	case receiptMsg:
		m.endOp()
		m.refresh()
		switch {
		case errors.Is(msg.err, wallet.ErrNoTransaction):
			cmds = append(cmds, m.setStatus("No transaction sent yet", true))
		case msg.err != nil:
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Status check failed: %v", msg.err), true))
		case msg.receipt == nil:
			cmds = append(cmds, m.setStatus("Transaction not known to the node yet", false))
		default:
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Status: %s", msg.receipt.Status), false))
		}

	case wallet.Event:
		// also covers the refresh loop and API calls made by the server
		m.refresh()
		if msg.Type == wallet.EventOperationFailed {
			if data, ok := msg.Data.(wallet.FailureData); ok && m.statusMessage == "" {
				cmds = append(cmds, m.setStatus(fmt.Sprintf("%s failed: %s", data.Op, data.Error), true))
			}
		}
		cmds = append(cmds, listenForWallet(m.sub))

	case models.RPCLatencyData:
		m.latencyErr = msg.Err != nil
		if msg.Err == nil {
			m.latency = msg.Latency
			m.blockNumber = msg.BlockNumber
		}
		cmds = append(cmds, tea.Tick(latencyInterval, func(t time.Time) tea.Msg { return latencyTickMsg(t) }))

	case latencyTickMsg:
		cmds = append(cmds, fetchLatencyCmd(m.network.RPCURL))

	case clearStatusMsg:
		m.statusMessage = ""
		m.statusIsErr = false

	case spinner.TickMsg:
		if m.inFlight > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp || m.showGraph {
		switch key {
		case "q", "esc", "?":
			m.showHelp = false
			m.showGraph = false
		case "g":
			m.showGraph = false
		}
		return m, nil
	}

	switch key {
	case "tab", "down":
		return m, m.nextFocus()
	case "shift+tab", "up":
		return m, m.prevFocus()
	case "esc":
		return m, m.setFocus(focusNone)
	}

	if m.focus == focusRecipient || m.focus == focusAmount {
		if key == "enter" {
			return m, m.nextFocus()
		}
		idx := inputRecipient
		if m.focus == focusAmount {
			idx = inputAmount
		}
		var cmd tea.Cmd
		m.inputs[idx], cmd = m.inputs[idx].Update(msg)
		m.validateInputs()
		return m, cmd
	}

	var cmds []tea.Cmd
	switch key {
	case "q":
		return m, tea.Quit

	case "?":
		m.showHelp = true

	case "g":
		m.showGraph = true

	case "b":
		if m.state.Account.IsZero() {
			cmds = append(cmds, m.setStatus("No account configured", true))
			break
		}
		cmds = append(cmds, m.startOp(), checkBalanceCmd(m.wallet))

	case "enter":
		if m.focus != focusSend {
			break
		}
		if !m.sendEnabled() {
			cmds = append(cmds, m.setStatus("Fix the invalid fields first", true))
			break
		}
		recipient, _ := validate.Address(m.inputs[inputRecipient].Value())
		amount, _ := validate.Amount(m.inputs[inputAmount].Value())
		cmds = append(cmds, m.startOp(), sendTransactionCmd(m.wallet, recipient, amount))

	case "s":
		cmds = append(cmds, m.startOp(), checkStatusCmd(m.wallet))

	case "c":
		if !m.state.HasTransaction() {
			cmds = append(cmds, m.setStatus("No transaction hash to copy", true))
			break
		}
		if err := clipboard.WriteAll(m.state.TxHash.Hex()); err != nil {
			cmds = append(cmds, m.setStatus("Failed to copy to clipboard", true))
		} else {
			cmds = append(cmds, m.setStatus("Transaction hash copied to clipboard!", false))
		}

	case "o":
		if !m.state.HasTransaction() {
			cmds = append(cmds, m.setStatus("No transaction to open", true))
			break
		}
		url := m.network.TxURL(m.state.TxHash)
		if url == "" {
			cmds = append(cmds, m.setStatus("Explorer URL not configured for this network", true))
			break
		}
		if err := openBrowser(url); err != nil {
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Failed to open browser: %v", err), true))
		} else {
			cmds = append(cmds, m.setStatus("Opened in browser", false))
		}
	}

	return m, tea.Batch(cmds...)
}
