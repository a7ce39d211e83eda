package tui

import (
	"fmt"

	"starkdemo/pkg/wallet"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the wallet screen until the user quits.
func Start(w *wallet.Wallet, version string) error {
	Version = version

	m := initialModel(w)
	m.sub = w.Subscribe()
	defer w.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
