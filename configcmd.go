package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
	"starkdemo/pkg/rpc"

	"github.com/spf13/cobra"
)

const probeTimeout = 15 * time.Second

var errInvalidConfig = errors.New("configuration is invalid")

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and repair the configuration file",
	}
	cmd.AddCommand(newConfigTestCmd(opts))
	cmd.AddCommand(newConfigRestoreCmd(opts))
	return cmd
}

func newConfigTestCmd(opts *globalOptions) *cobra.Command {
	var asJSON, dryRun bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check every configured network and fill in missing chain ids",
		Long: `Test connects to every network in the configuration file, measures the
RPC round trip, asks the node for its chain id and reads the token's
symbol and decimals.

A network without a chain id gets the one the node reports and the file is
saved (with a backup) unless --dry-run is given. Environment overrides are
not applied, so secrets from the environment never end up in the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(opts.configPath)
			if err != nil {
				return fmt.Errorf("determining config path: %w", err)
			}
			cfg, err := config.LoadConfigFromFile(path)
			if err != nil {
				return fmt.Errorf("loading config from %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				out = io.Discard
			}
			report := testConfig(cmd.Context(), &cfg, path, dryRun, out)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if !report.ValidStructure {
				return errInvalidConfig
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output test results as JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "perform a trial run with no changes made")
	return cmd
}

// testConfig probes every network of cfg, updating cfg in place and saving
// it to path when a chain id was learned.
func testConfig(ctx context.Context, cfg *config.Config, path string, dryRun bool, out io.Writer) models.TestReport {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         dryRun,
	}
	fmt.Fprintf(out, "Testing configuration at: %s\n", path)

	if problems := cfg.Problems(); len(problems) > 0 {
		report.ValidStructure = false
		report.StructureErrors = problems
		for _, p := range problems {
			fmt.Fprintf(out, "Error: %s\n", p)
		}
		return report
	}

	_, _, credErr := cfg.Credentials()
	report.AccountConfigured = credErr == nil
	report.NetworkCount = len(cfg.Networks)
	fmt.Fprintf(out, "Found %d networks. Account configured: %t\n", report.NetworkCount, report.AccountConfigured)

	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		res := probeNetwork(ctx, n, dryRun, out)
		if res.ChainIDUpdated {
			report.ConfigUpdated = true
		}
		if res.Inconsistent {
			report.InconsistentNetworks = append(report.InconsistentNetworks, n.Name)
		}
		report.Networks = append(report.Networks, res)
	}

	if len(report.InconsistentNetworks) > 0 {
		fmt.Fprintln(out, "\nWARNING: Inconsistent networks detected!")
		fmt.Fprintln(out, "The following networks report a chain id different from the configured one:")
		for _, name := range report.InconsistentNetworks {
			fmt.Fprintf(out, " - %s\n", name)
		}
	}

	if report.ConfigUpdated {
		fmt.Fprintln(out, "\nUpdating configuration with fetched chain ids...")
		if dryRun {
			fmt.Fprintln(out, "Dry run enabled: Configuration NOT saved.")
		} else if err := config.SaveConfig(*cfg, path); err != nil {
			report.SaveError = err.Error()
			fmt.Fprintf(out, "Failed to save config: %v\n", err)
		} else {
			fmt.Fprintln(out, "Configuration saved successfully.")
		}
	}
	return report
}

func probeNetwork(ctx context.Context, n *config.NetworkConfig, dryRun bool, out io.Writer) models.NetworkResult {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res := models.NetworkResult{Name: n.Name, RPCURL: n.RPCURL, ConfigChainID: n.ChainID}
	fmt.Fprintf(out, "Testing network: %s\n  RPC: %s ... ", n.Name, n.RPCURL)

	fail := func(err error) models.NetworkResult {
		res.Status = "error"
		res.Error = err.Error()
		fmt.Fprintf(out, "Failed: %v\n", err)
		return res
	}

	lat, err := rpc.FetchRPCLatency(ctx, n.RPCURL)
	if err != nil {
		return fail(err)
	}
	res.LatencyMs = lat.Latency.Milliseconds()

	observed, err := rpc.ChainID(ctx, n.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("failed to get chain id: %w", err))
	}
	res.Status = "ok"
	res.ObservedChainID = chainIDString(observed)
	fmt.Fprintf(out, "OK (%dms, block %d, chain id %s)", res.LatencyMs, lat.BlockNumber, res.ObservedChainID)

	configured, ok, _ := n.ChainIDFelt()
	switch {
	case !ok:
		n.ChainID = res.ObservedChainID
		res.ChainIDUpdated = true
		fmt.Fprint(out, " - UPDATED CONFIG")
		if dryRun {
			fmt.Fprint(out, " (DRY RUN)")
		}
	case !configured.Equal(observed):
		res.Inconsistent = true
		res.Error = fmt.Sprintf("chain id mismatch: configured %s", n.ChainID)
		fmt.Fprintf(out, " - MISMATCH! Expected %s", n.ChainID)
	default:
		fmt.Fprint(out, " - Verified")
	}
	fmt.Fprintln(out)

	meta, err := rpc.FetchTokenMetadata(ctx, *n)
	if err != nil {
		fmt.Fprintf(out, "  Token %s: failed to read metadata: %v\n", n.TokenAddress, err)
		return res
	}
	res.TokenSymbol = meta.Symbol
	res.TokenDecimals = meta.Decimals
	fmt.Fprintf(out, "  Token %s: %s, %d decimals", n.TokenAddress, meta.Symbol, meta.Decimals)
	if n.TokenDecimals != meta.Decimals {
		fmt.Fprintf(out, " - WARNING: config says %d decimals", n.TokenDecimals)
	}
	fmt.Fprintln(out)
	return res
}

// chainIDString renders a chain id the way it is written in the config: as
// its short string (SN_SEPOLIA) when printable, otherwise as hex.
func chainIDString(id felt.Felt) string {
	s := id.ShortString()
	if s == "" {
		return id.Hex()
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return id.Hex()
		}
	}
	return s
}

func newConfigRestoreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the configuration file with its most recent backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(opts.configPath)
			if err != nil {
				return fmt.Errorf("determining config path: %w", err)
			}
			backup, err := config.RestoreLastBackup(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
			return nil
		},
	}
}
