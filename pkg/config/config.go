package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"starkdemo/pkg/felt"

	"github.com/joho/godotenv"
)

const ConfigFileName = ".starkdemo.json"

// ErrNoAccount is returned when a signing operation runs without credentials.
var ErrNoAccount = errors.New("no account configured: set account.address and account.private_key")

// Environment variables that override the file.
const (
	EnvNetwork        = "STARKDEMO_NETWORK"
	EnvRPCURL         = "STARKDEMO_RPC_URL"
	EnvTokenAddress   = "STARKDEMO_TOKEN_ADDRESS"
	EnvAccountAddress = "STARKDEMO_ACCOUNT_ADDRESS"
	EnvPrivateKey     = "STARKDEMO_PRIVATE_KEY"
	EnvMaxFee         = "STARKDEMO_MAX_FEE"
	EnvLogLevel       = "STARKDEMO_LOG_LEVEL"
)

// StarkEthToken is the ETH ERC-20 contract, deployed at the same address on
// mainnet and Sepolia.
const StarkEthToken = "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"

// NetworkConfig holds the endpoint and token for one Starknet network.
type NetworkConfig struct {
	Name          string `json:"name"`
	RPCURL        string `json:"rpc_url"`
	ChainID       string `json:"chain_id,omitempty"` // short string (SN_SEPOLIA) or hex
	TokenAddress  string `json:"token_address"`
	TokenSymbol   string `json:"token_symbol,omitempty"`
	TokenDecimals int    `json:"token_decimals"`
	ExplorerURL   string `json:"explorer_url,omitempty"`
}

// AccountConfig holds the signing account.
type AccountConfig struct {
	Address      string `json:"address"`
	PrivateKey   string `json:"private_key"`
	CairoVersion int    `json:"cairo_version"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	MaxFee                string `json:"max_fee"` // base units, decimal
	LogLevel              string `json:"log_level"`
	LogFile               string `json:"log_file,omitempty"`
	AutoRefreshSeconds    int    `json:"auto_refresh_seconds"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	ServerAddr            string `json:"server_addr"`
}

// Config is the whole configuration file.
type Config struct {
	Networks        []NetworkConfig
	SelectedNetwork int
	Account         AccountConfig
	Global          GlobalConfig
}

func DefaultNetworks() []NetworkConfig {
	return []NetworkConfig{
		{
			Name:          "Sepolia",
			RPCURL:        "https://starknet-sepolia.public.blastapi.io/rpc/v0_7",
			ChainID:       "SN_SEPOLIA",
			TokenAddress:  StarkEthToken,
			TokenSymbol:   "ETH",
			TokenDecimals: 18,
			ExplorerURL:   "https://sepolia.voyager.online",
		},
		{
			Name:          "Mainnet",
			RPCURL:        "https://starknet-mainnet.public.blastapi.io/rpc/v0_7",
			ChainID:       "SN_MAIN",
			TokenAddress:  StarkEthToken,
			TokenSymbol:   "ETH",
			TokenDecimals: 18,
			ExplorerURL:   "https://voyager.online",
		},
	}
}

func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		MaxFee:             "1000000000000000",
		LogLevel:           "info",
		AutoRefreshSeconds: 0,
		ServerAddr:         ":8080",
	}
}

func Default() Config {
	return Config{
		Networks: DefaultNetworks(),
		Account:  AccountConfig{CairoVersion: 1},
		Global:   DefaultGlobal(),
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadConfigFromFile reads path, falling back to defaults if it does not exist.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Networks              []NetworkConfig `json:"networks"`
		SelectedNetwork       string          `json:"selected_network"`
		Account               *AccountConfig  `json:"account"`
		MaxFee                *string         `json:"max_fee"`
		LogLevel              *string         `json:"log_level"`
		LogFile               *string         `json:"log_file"`
		AutoRefreshSeconds    *int            `json:"auto_refresh_seconds"`
		RequestTimeoutSeconds *int            `json:"request_timeout_seconds"`
		ServerAddr            *string         `json:"server_addr"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if len(raw.Networks) > 0 {
		cfg.Networks = raw.Networks
	}
	for i := range cfg.Networks {
		if cfg.Networks[i].TokenAddress == "" {
			cfg.Networks[i].TokenAddress = StarkEthToken
		}
		if cfg.Networks[i].TokenDecimals == 0 && cfg.Networks[i].TokenAddress == StarkEthToken {
			cfg.Networks[i].TokenDecimals = 18
		}
	}
	cfg.SelectedNetwork = indexOf(cfg.Networks, raw.SelectedNetwork)

	if raw.Account != nil {
		cfg.Account = *raw.Account
	}
	if raw.MaxFee != nil {
		cfg.Global.MaxFee = *raw.MaxFee
	}
	if raw.LogLevel != nil {
		cfg.Global.LogLevel = *raw.LogLevel
	}
	if raw.LogFile != nil {
		cfg.Global.LogFile = *raw.LogFile
	}
	if raw.AutoRefreshSeconds != nil {
		cfg.Global.AutoRefreshSeconds = *raw.AutoRefreshSeconds
	}
	if raw.RequestTimeoutSeconds != nil {
		cfg.Global.RequestTimeoutSeconds = *raw.RequestTimeoutSeconds
	}
	if raw.ServerAddr != nil {
		cfg.Global.ServerAddr = *raw.ServerAddr
	}
	return cfg, nil
}

func indexOf(networks []NetworkConfig, name string) int {
	for i, n := range networks {
		if strings.EqualFold(n.Name, name) {
			return i
		}
	}
	return 0
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any STARKDEMO_* variables getenv returns.
// The network is chosen first (network, else STARKDEMO_NETWORK, else the
// file's selected_network) so the per-network overrides land on it.
func (c *Config) ApplyEnv(network string, getenv func(string) string) error {
	if network == "" {
		network = getenv(EnvNetwork)
	}
	if network != "" {
		if err := c.SelectNetwork(network); err != nil {
			return err
		}
	}
	if len(c.Networks) > 0 {
		n := &c.Networks[c.SelectedNetwork]
		if v := getenv(EnvRPCURL); v != "" {
			n.RPCURL = v
		}
		if v := getenv(EnvTokenAddress); v != "" {
			n.TokenAddress = v
		}
	}
	if v := getenv(EnvAccountAddress); v != "" {
		c.Account.Address = v
	}
	if v := getenv(EnvPrivateKey); v != "" {
		c.Account.PrivateKey = v
	}
	if v := getenv(EnvMaxFee); v != "" {
		c.Global.MaxFee = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Global.LogLevel = v
	}
	return nil
}

// SelectNetwork makes the named network current.
func (c *Config) SelectNetwork(name string) error {
	for i, n := range c.Networks {
		if strings.EqualFold(n.Name, name) {
			c.SelectedNetwork = i
			return nil
		}
	}
	return fmt.Errorf("unknown network %q", name)
}

// Network returns the selected network.
func (c Config) Network() NetworkConfig {
	if c.SelectedNetwork < 0 || c.SelectedNetwork >= len(c.Networks) {
		return NetworkConfig{}
	}
	return c.Networks[c.SelectedNetwork]
}

// Problems lists everything that makes the configuration unusable.
func (c Config) Problems() []string {
	var out []string
	if len(c.Networks) == 0 {
		return append(out, "configuration must have at least one network")
	}
	for i, n := range c.Networks {
		label := n.Name
		if strings.TrimSpace(n.Name) == "" {
			out = append(out, fmt.Sprintf("network at index %d has no name", i))
			label = fmt.Sprintf("#%d", i)
		}
		if strings.TrimSpace(n.RPCURL) == "" {
			out = append(out, fmt.Sprintf("network %s has no RPC URL", label))
		}
		if _, err := felt.FromHex(n.TokenAddress); err != nil {
			out = append(out, fmt.Sprintf("network %s: token address: %v", label, err))
		}
		if _, _, err := n.ChainIDFelt(); err != nil {
			out = append(out, fmt.Sprintf("network %s: chain id: %v", label, err))
		}
	}
	if c.Account.Address != "" {
		if _, err := felt.FromHex(c.Account.Address); err != nil {
			out = append(out, fmt.Sprintf("account address: %v", err))
		}
	}
	if c.Account.CairoVersion != 0 && c.Account.CairoVersion != 1 {
		out = append(out, fmt.Sprintf("account cairo_version must be 0 or 1, got %d", c.Account.CairoVersion))
	}
	if _, err := c.MaxFee(); err != nil {
		out = append(out, err.Error())
	}
	return out
}

func (c Config) Validate() error {
	problems := c.Problems()
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
}

// Credentials parses the account address and private key.
func (c Config) Credentials() (address, privateKey felt.Felt, err error) {
	if c.Account.Address == "" || c.Account.PrivateKey == "" {
		return felt.Zero, felt.Zero, ErrNoAccount
	}
	address, err = felt.FromHex(c.Account.Address)
	if err != nil {
		return felt.Zero, felt.Zero, fmt.Errorf("account address: %w", err)
	}
	privateKey, err = felt.FromHex(c.Account.PrivateKey)
	if err != nil {
		return felt.Zero, felt.Zero, fmt.Errorf("private key: %w", err)
	}
	return address, privateKey, nil
}

// MaxFee parses the configured fee cap.
func (c Config) MaxFee() (felt.Felt, error) {
	u, err := felt.Uint256FromDecimal(c.Global.MaxFee)
	if err != nil {
		return felt.Zero, fmt.Errorf("max_fee: %w", err)
	}
	f, err := felt.FromBigInt(u.BigInt())
	if err != nil {
		return felt.Zero, fmt.Errorf("max_fee: %w", err)
	}
	return f, nil
}

// RequestTimeout is zero when no timeout is configured.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Global.RequestTimeoutSeconds) * time.Second
}

// ChainIDFelt parses ChainID. ok is false when the chain id is not set and
// must be asked from the node.
func (n NetworkConfig) ChainIDFelt() (id felt.Felt, ok bool, err error) {
	if n.ChainID == "" {
		return felt.Zero, false, nil
	}
	if strings.HasPrefix(n.ChainID, "0x") || strings.HasPrefix(n.ChainID, "0X") {
		id, err = felt.FromHex(n.ChainID)
	} else {
		id, err = felt.FromShortString(n.ChainID)
	}
	if err != nil {
		return felt.Zero, false, err
	}
	return id, true, nil
}

// TxURL links a transaction in the network's block explorer.
func (n NetworkConfig) TxURL(hash felt.Felt) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash.Hex()
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	selectedName := cfg.Network().Name
	out := struct {
		Networks              []NetworkConfig `json:"networks"`
		SelectedNetwork       string          `json:"selected_network"`
		Account               AccountConfig   `json:"account"`
		MaxFee                string          `json:"max_fee"`
		LogLevel              string          `json:"log_level"`
		LogFile               string          `json:"log_file,omitempty"`
		AutoRefreshSeconds    int             `json:"auto_refresh_seconds"`
		RequestTimeoutSeconds int             `json:"request_timeout_seconds"`
		ServerAddr            string          `json:"server_addr"`
	}{
		Networks:              cfg.Networks,
		SelectedNetwork:       selectedName,
		Account:               cfg.Account,
		MaxFee:                cfg.Global.MaxFee,
		LogLevel:              cfg.Global.LogLevel,
		LogFile:               cfg.Global.LogFile,
		AutoRefreshSeconds:    cfg.Global.AutoRefreshSeconds,
		RequestTimeoutSeconds: cfg.Global.RequestTimeoutSeconds,
		ServerAddr:            cfg.Global.ServerAddr,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	// Keep a timestamped copy of whatever is being replaced
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405.000"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	// the file may hold a private key
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	return lastBackup, os.WriteFile(configPath, data, 0600)
}
