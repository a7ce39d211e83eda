package tui

import (
	"time"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
	"starkdemo/pkg/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const latencyInterval = 30 * time.Second

// --- Messages ---

type clearStatusMsg struct{}
type latencyTickMsg time.Time

type balanceMsg struct {
	balance felt.Uint256
	err     error
}

type txSentMsg struct {
	resp models.InvokeResponse
	err  error
}

type receiptMsg struct {
	receipt *models.Receipt
	err     error
}

// --- Focus ---

type focus int

const (
	focusNone focus = iota
	focusRecipient
	focusAmount
	focusSend
)

const (
	inputRecipient = iota
	inputAmount
)

// --- Model ---

type model struct {
	wallet  *wallet.Wallet
	sub     wallet.Subscriber
	network config.NetworkConfig

	state   wallet.State
	history []models.BalancePoint

	inputs         []textinput.Model
	focus          focus
	recipientValid bool
	amountValid    bool

	inFlight      int
	spinner       spinner.Model
	statusMessage string
	statusIsErr   bool
	showHelp      bool
	showGraph     bool
	width         int
	height        int

	latency     time.Duration
	latencyErr  bool
	blockNumber uint64
	lastUpdate  time.Time
}

func initialModel(w *wallet.Wallet) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	inputs := make([]textinput.Model, 2)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Width = 66
		inputs[i].Prompt = "> "
	}
	inputs[inputRecipient].Placeholder = "0x..."
	inputs[inputAmount].Placeholder = "amount in base units"
	inputs[inputAmount].Width = 40

	return model{
		wallet:  w,
		network: w.Network(),
		state:   w.State(),
		history: w.History(),
		inputs:  inputs,
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	if m.sub != nil {
		cmds = append(cmds, listenForWallet(m.sub))
	}
	if m.network.RPCURL != "" {
		cmds = append(cmds, fetchLatencyCmd(m.network.RPCURL))
	}
	return tea.Batch(cmds...)
}

// sendEnabled mirrors the Send button state: both fields must parse.
func (m model) sendEnabled() bool {
	return m.recipientValid && m.amountValid
}
