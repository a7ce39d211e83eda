package tui

import (
	"os/exec"
	"runtime"
	"strings"

	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
	"starkdemo/pkg/utils"
)

const displayPrecision = 6

// formatBalance renders a base-unit amount with the token's decimals.
func formatBalance(bal felt.Uint256, decimals int, symbol string) string {
	s := utils.FormatUnits(bal.BigInt(), decimals, displayPrecision)
	if symbol != "" {
		s += " " + symbol
	}
	return s
}

// feeString renders the fee paid like "123 wei"; a receipt without a fee
// prints "unknown".
func feeString(r *models.Receipt) string {
	if r == nil || r.ActualFee == nil {
		return "unknown"
	}
	unit := "wei"
	if r.FeeUnit != "" {
		unit = strings.ToLower(r.FeeUnit)
	}
	return r.ActualFee.Dec() + " " + unit
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
