package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/metrics"
	"starkdemo/pkg/server"
	"starkdemo/pkg/utils"
	"starkdemo/pkg/validate"

	"github.com/spf13/cobra"
)

func (a *app) autoRefresh() time.Duration {
	return time.Duration(a.cfg.Global.AutoRefreshSeconds) * time.Second
}

// accountAddress is the configured account, usable for reads even without a
// private key.
func (a *app) accountAddress() (felt.Felt, error) {
	if a.cfg.Account.Address == "" {
		return felt.Zero, config.ErrNoAccount
	}
	return felt.FromHex(a.cfg.Account.Address)
}

func newBalanceCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Print the token balance of an address (default: the configured account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var addr felt.Felt
			if len(args) == 1 {
				if addr, err = validate.Address(args[0]); err != nil {
					return err
				}
			} else if addr, err = a.accountAddress(); err != nil {
				return err
			}

			w, err := a.newWallet(nil)
			if err != nil {
				return err
			}
			bal, err := w.CheckBalance(cmd.Context(), addr)
			if err != nil {
				return err
			}

			n := a.cfg.Network()
			fmt.Fprintf(cmd.OutOrStdout(), "Balance of %s on %s: %s %s (%s wei)\n",
				addr, n.Name, utils.FormatUnits(bal.BigInt(), n.TokenDecimals, n.TokenDecimals), n.TokenSymbol, bal.Dec())
			return nil
		},
	}
}

func newTransferCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <recipient> <amount>",
		Short: "Send amount base units of the network token to recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := validate.Address(args[0])
			if err != nil {
				return err
			}
			amount, err := validate.Amount(args[1])
			if err != nil {
				return err
			}

			a, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.newWallet(nil)
			if err != nil {
				return err
			}
			resp, err := w.SendTransaction(cmd.Context(), recipient, amount)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Transaction hash: %s\n", resp.TransactionHash)
			if url := a.cfg.Network().TxURL(resp.TransactionHash); url != "" {
				fmt.Fprintf(out, "Explorer: %s\n", url)
			}
			return nil
		},
	}
}

func newReceiptCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "receipt <hash>",
		Short: "Print the receipt of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := validate.Address(args[0])
			if err != nil {
				return err
			}

			a, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.newWallet(nil)
			if err != nil {
				return err
			}
			receipt, err := w.LookupReceipt(cmd.Context(), hash)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(receipt)
			}
			if receipt == nil {
				fmt.Fprintf(out, "Transaction %s is not known to the node yet\n", hash)
				return nil
			}
			fmt.Fprintf(out, "Transaction: %s\n", receipt.TransactionHash)
			fmt.Fprintf(out, "Status:      %s\n", receipt.Status)
			if receipt.ActualFee != nil {
				unit := receipt.FeeUnit
				if unit == "" {
					unit = "WEI"
				}
				fmt.Fprintf(out, "Fee paid:    %s %s\n", receipt.ActualFee.Dec(), unit)
			}
			if receipt.BlockNumber != 0 {
				fmt.Fprintf(out, "Block:       %d\n", receipt.BlockNumber)
			}
			if receipt.RevertReason != "" {
				fmt.Fprintf(out, "Revert:      %s\n", receipt.RevertReason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API without the screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Global.ServerAddr
			}

			m := metrics.NewPrometheusMetrics("starkdemo")
			w, err := a.newWallet(m)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w.Start(ctx)
			defer w.Stop()

			srv := server.NewServer(w, m, a.logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config server_addr)")
	return cmd
}
