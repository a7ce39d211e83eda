package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"starkdemo/pkg/config"
	"starkdemo/pkg/logging"
	"starkdemo/pkg/metrics"
	"starkdemo/pkg/tui"
	"starkdemo/pkg/wallet"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version should be set during build
var Version = "dev"

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	network    string
	logLevel   string
}

// app is what every command needs after flags and config are resolved.
type app struct {
	cfg    config.Config
	path   string
	logger *log.Logger
	closer io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "starkdemo",
		Short: "Check a Starknet token balance, send a transfer and follow its receipt",
		Long: `starkdemo talks to a Starknet JSON-RPC node.

Run without a command to open the interactive screen. The subcommands
perform the same operations from the shell.`,
		Version:       Version,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (default ~/"+config.ConfigFileName+")")
	root.PersistentFlags().StringVarP(&opts.network, "network", "n", "", "network name from the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")

	root.AddCommand(newBalanceCmd(opts))
	root.AddCommand(newTransferCmd(opts))
	root.AddCommand(newReceiptCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "starkdemo version %s\n", Version)
		},
	}
}

// setup loads .env, the config file and the environment overrides, then
// builds the logger. With logToFile the logger appends to the log file
// instead of writing to stderr.
func setup(cmd *cobra.Command, opts *globalOptions, logToFile bool) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	path, err := config.GetConfigPath(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(opts.network, os.Getenv); err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Global.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, path: path}
	if logToFile {
		a.logger, a.closer, err = logging.OpenFile(cfg.Global.LogFile, cfg.Global.LogLevel)
	} else {
		a.logger, err = logging.New(cmd.ErrOrStderr(), cfg.Global.LogLevel, "text")
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newWallet wires the selected network and account into a Wallet.
func (a *app) newWallet(m metrics.Metrics) (*wallet.Wallet, error) {
	client, err := wallet.NewRealChainClient(a.cfg)
	if err != nil {
		return nil, err
	}
	opts := wallet.Options{
		Network:        client.Network,
		Logger:         a.logger,
		Metrics:        m,
		AutoRefresh:    a.autoRefresh(),
		RequestTimeout: a.cfg.RequestTimeout(),
	}
	if client.Signer != nil {
		opts.Account = client.Signer.Address
	} else if addr, err := a.accountAddress(); err == nil {
		opts.Account = addr
	}
	return wallet.New(client, opts), nil
}

func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	a, err := setup(cmd, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := a.newWallet(nil)
	if err != nil {
		return err
	}
	w.Start(cmd.Context())
	defer w.Stop()

	a.logger.Info("starting", "version", Version, "network", a.cfg.Network().Name, "config", a.path)
	return tui.Start(w, Version)
}
