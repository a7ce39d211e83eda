package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"starkdemo/pkg/models"
	"starkdemo/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showGraph {
		return m.viewGraph()
	}

	targetWidth := 76
	if m.width > 0 && m.width-4 < targetWidth {
		targetWidth = m.width - 4
	}
	if targetWidth < 0 {
		targetWidth = 0
	}

	content := boxStyle.Width(targetWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.viewBalance(),
		"",
		m.viewTransfer(),
		"",
		m.viewReceipt(),
	))

	// Footer
	line1 := "b:balance • tab:focus • enter:send • s:status • c:copy • o:open • g:graph • ?:help • q:quit"
	line1 += fmt.Sprintf(" • v%s", Version)
	var footer string
	if m.width > 0 {
		footer = subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
	} else {
		footer = subtleStyle.Render(line1)
	}

	if m.statusMessage != "" {
		style := infoStyle
		if m.statusIsErr {
			style = errStyle
		}
		footer = lipgloss.JoinVertical(lipgloss.Center, style.Render(m.statusMessage), footer)
	}

	topBar := m.viewTopBar()
	if m.width == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, topBar, content, footer)
	}

	h := m.height - 1
	if h < 0 {
		h = 0
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func (m model) viewTopBar() string {
	left := titleStyle.Render(fmt.Sprintf("Starknet • %s", m.network.Name)) +
		subtleStyle.Render(fmt.Sprintf(" %s %s", m.network.TokenSymbol, utils.ShortHex(m.network.TokenAddress, 6)))

	var latDisplay string
	switch {
	case m.latencyErr:
		latDisplay = errStyle.Render("RPC error")
	case m.latency > 0:
		s := infoStyle
		if m.latency > 500*time.Millisecond {
			s = warnStyle
		}
		if m.latency > time.Second {
			s = errStyle
		}
		latDisplay = s.Render(fmt.Sprintf("%s • block %d", m.latency.Round(time.Millisecond), m.blockNumber))
	}

	spin := ""
	if m.inFlight > 0 {
		spin = m.spinner.View() + " "
	}
	lastUpd := ""
	if !m.lastUpdate.IsZero() {
		lastUpd = " • " + m.lastUpdate.Format("15:04:05")
	}
	right := spin + latDisplay + subtleStyle.Render(lastUpd+" ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), right)
}

func (m model) viewBalance() string {
	account := subtleStyle.Render("no account configured")
	if !m.state.Account.IsZero() {
		account = m.state.Account.Hex()
	}

	balance := fmt.Sprintf("Current balance: %s wei", m.state.Balance.Dec())
	formatted := subtleStyle.Render("not checked yet")
	if m.state.BalanceKnown {
		formatted = infoStyle.Render(formatBalance(m.state.Balance, m.state.TokenDecimals, m.state.TokenSymbol))
	}

	lines := []string{
		labelStyle.Render("Account: ") + account,
		balance,
		"  " + formatted,
		buttonStyle.Render("Check Balance (b)"),
	}
	if m.state.HasTransaction() {
		lines = append(lines, "", "Transaction hash: "+m.state.TxHash.Hex())
	}
	return strings.Join(lines, "\n")
}

func (m model) viewTransfer() string {
	var lines []string

	lines = append(lines, labelStyle.Render("Recipient address"), m.inputs[inputRecipient].View())
	if !m.recipientValid {
		lines = append(lines, errStyle.Render("  Invalid address"))
	}

	lines = append(lines, labelStyle.Render("Amount"), m.inputs[inputAmount].View())
	if !m.amountValid {
		lines = append(lines, errStyle.Render("  Invalid amount"))
	}

	button := buttonDisabledStyle.Render("Send Transaction")
	if m.sendEnabled() {
		button = buttonStyle.Render("Send Transaction")
		if m.focus == focusSend {
			button = buttonFocusedStyle.Render("Send Transaction")
		}
	} else if m.focus == focusSend {
		button = buttonDisabledStyle.Underline(true).Render("Send Transaction")
	}
	lines = append(lines, button)
	return strings.Join(lines, "\n")
}

func (m model) viewReceipt() string {
	var lines []string
	if r := m.state.Receipt; r != nil {
		status := infoStyle
		switch {
		case r.Status == models.StatusRejected || r.Status == models.StatusReverted:
			status = errStyle
		case !r.Status.Final():
			status = warnStyle
		}
		lines = append(lines,
			labelStyle.Render("Transaction Receipt"),
			"Status: "+status.Render(string(r.Status)),
			"Fee paid: "+feeString(r),
		)
		if r.RevertReason != "" {
			lines = append(lines, errStyle.Render("Revert reason: "+utils.TruncateString(r.RevertReason, 60)))
		}
	}
	lines = append(lines, buttonStyle.Render("Check Transaction Status (s)"))
	return strings.Join(lines, "\n")
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"b: Check Balance",
		"tab/↓: Next Field",
		"S-tab/↑: Previous Field",
		"enter: Send Transaction (on the button)",
		"esc: Leave Field",
		"s: Check Transaction Status",
		"c: Copy Transaction Hash",
		"o: Open Transaction in Explorer",
		"g: Balance History",
		"q/ctrl+c: Quit",
		"?: Toggle Help",
	}

	header := titleStyle.Render("Help")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func (m model) viewGraph() string {
	symbol := m.state.TokenSymbol
	if symbol == "" {
		symbol = "tokens"
	}
	header := titleStyle.Render(fmt.Sprintf("Balance History: %s (%s)", m.network.Name, symbol))

	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var graph, stats string
	if len(m.history) > 0 {
		values := make([]float64, len(m.history))
		for i, p := range m.history {
			values[i] = p.Value
		}
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		stats = subtleStyle.Render(fmt.Sprintf("Samples: %d • Low: %s • High: %s",
			len(values), utils.FormatFloat(min, 4), utils.FormatFloat(max, 4)))

		graphWidth := targetBoxWidth - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphHeight := m.height - 14
		if graphHeight < 1 {
			graphHeight = 1
		}
		graph = asciigraph.Plot(values,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption(fmt.Sprintf("Balance (%s)", symbol)),
		)
	} else {
		graph = "Not enough data to draw graph. Press b to check the balance."
	}

	content := boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := subtleStyle.Render("g/q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}
