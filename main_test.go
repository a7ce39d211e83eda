package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// nodeHandler answers one JSON-RPC method. A non-nil *rpcError is sent as
// the error member.
type nodeHandler func(params []json.RawMessage) (interface{}, *rpcError)

type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]nodeHandler
	methods  []string
}

func startNode(t *testing.T, handlers map[string]nodeHandler) (*fakeNode, string) {
	t.Helper()
	node := &fakeNode{handlers: handlers}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		node.mu.Lock()
		node.methods = append(node.methods, req.Method)
		h, ok := node.handlers[req.Method]
		node.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		} else if res, fail := h(req.Params); fail != nil {
			resp["error"] = fail
		} else {
			resp["result"] = res
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return node, server.URL
}

func (n *fakeNode) called(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.methods {
		if m == method {
			count++
		}
	}
	return count
}

func reply(v interface{}) nodeHandler {
	return func([]json.RawMessage) (interface{}, *rpcError) { return v, nil }
}

// tokenCalls dispatches starknet_call on the entrypoint selector.
func tokenCalls(results map[string]interface{}) nodeHandler {
	return func(params []json.RawMessage) (interface{}, *rpcError) {
		var call struct {
			Selector felt.Felt `json:"entry_point_selector"`
		}
		if len(params) == 0 || json.Unmarshal(params[0], &call) != nil {
			return nil, &rpcError{Code: -32602, Message: "invalid params"}
		}
		for name, res := range results {
			if felt.Selector(name).Equal(call.Selector) {
				return res, nil
			}
		}
		return nil, &rpcError{Code: 21, Message: "Invalid message selector"}
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvNetwork, config.EnvRPCURL, config.EnvTokenAddress,
		config.EnvAccountAddress, config.EnvPrivateKey, config.EnvMaxFee, config.EnvLogLevel,
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, rpcURL, chainID string, account config.AccountConfig) string {
	t.Helper()
	cfg := config.Default()
	cfg.Networks = []config.NetworkConfig{{
		Name:          "Devnet",
		RPCURL:        rpcURL,
		ChainID:       chainID,
		TokenAddress:  config.StarkEthToken,
		TokenSymbol:   "ETH",
		TokenDecimals: 18,
		ExplorerURL:   "https://explorer.test",
	}}
	cfg.Account = account
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeEnv(t, nil, args...)
}

func executeEnv(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	for k, v := range env {
		t.Setenv(k, v)
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "starkdemo version dev\n", out)
}

func TestBalanceCmd(t *testing.T) {
	_, url := startNode(t, map[string]nodeHandler{
		"starknet_call": tokenCalls(map[string]interface{}{
			"balanceOf": []string{"0x1bc16d674ec80000", "0x0"},
		}),
	})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{Address: "0x1234", CairoVersion: 1})

	out, err := execute(t, "balance", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance of 0x1234 on Devnet: 2.000000000000000000 ETH (2000000000000000000 wei)")

	out, err = execute(t, "balance", "0x99", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance of 0x99")
}

func TestBalanceCmd_Errors(t *testing.T) {
	node, url := startNode(t, map[string]nodeHandler{})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{CairoVersion: 1})

	_, err := execute(t, "balance", "--config", path)
	assert.ErrorIs(t, err, config.ErrNoAccount)

	_, err = execute(t, "balance", "1234", "--config", path)
	assert.ErrorIs(t, err, felt.ErrMissingPrefix)

	_, err = execute(t, "balance", "0x1", "--network", "nowhere", "--config", path)
	assert.Error(t, err)
	assert.Zero(t, node.called("starknet_call"))
}

// The endpoint from the environment belongs to the network picked with
// --network, not to the one the file selects.
func TestBalanceCmd_EnvOverrideFollowsNetworkFlag(t *testing.T) {
	_, url := startNode(t, map[string]nodeHandler{
		"starknet_call": tokenCalls(map[string]interface{}{
			"balanceOf": []string{"0x5", "0x0"},
		}),
	})
	cfg := config.Default()
	cfg.Account = config.AccountConfig{Address: "0x1234", CairoVersion: 1}
	for i := range cfg.Networks {
		cfg.Networks[i].RPCURL = "http://127.0.0.1:1"
	}
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.SaveConfig(cfg, path))

	out, err := executeEnv(t, map[string]string{config.EnvRPCURL: url},
		"balance", "--network", "Mainnet", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "on Mainnet")
	assert.Contains(t, out, "(5 wei)")
}

func TestTransferCmd(t *testing.T) {
	node, url := startNode(t, map[string]nodeHandler{
		"starknet_getNonce":              reply("0x2"),
		"starknet_addInvokeTransaction": reply(map[string]string{"transaction_hash": "0xabc"}),
	})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{Address: "0x1234", PrivateKey: "0x1", CairoVersion: 1})

	out, err := execute(t, "transfer", "0xbeef", "1000", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction hash: 0xabc")
	assert.Contains(t, out, "Explorer: https://explorer.test/tx/0xabc")
	assert.Equal(t, 1, node.called("starknet_addInvokeTransaction"))
	// chain id comes from the config
	assert.Zero(t, node.called("starknet_chainId"))
}

func TestTransferCmd_Invalid(t *testing.T) {
	node, url := startNode(t, map[string]nodeHandler{})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{Address: "0x1234", CairoVersion: 1})

	_, err := execute(t, "transfer", "0xbeef", "12x", "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "transfer", "beef", "5", "--config", path)
	assert.Error(t, err)

	// address without a key cannot sign
	_, err = execute(t, "transfer", "0xbeef", "5", "--config", path)
	assert.ErrorIs(t, err, config.ErrNoAccount)
	assert.Zero(t, node.called("starknet_addInvokeTransaction"))
}

func TestReceiptCmd(t *testing.T) {
	_, url := startNode(t, map[string]nodeHandler{
		"starknet_getTransactionReceipt": reply(map[string]interface{}{
			"transaction_hash": "0xabc",
			"actual_fee":       map[string]string{"amount": "0x3039", "unit": "WEI"},
			"execution_status": "SUCCEEDED",
			"finality_status":  "ACCEPTED_ON_L2",
			"block_number":     7,
		}),
	})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{CairoVersion: 1})

	out, err := execute(t, "receipt", "0xabc", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:      ACCEPTED_ON_L2")
	assert.Contains(t, out, "Fee paid:    12345 WEI")
	assert.Contains(t, out, "Block:       7")

	out, err = execute(t, "receipt", "0xabc", "--json", "--config", path)
	require.NoError(t, err)
	var receipt models.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	assert.Equal(t, models.StatusAcceptedOnL2, receipt.Status)
}

func TestReceiptCmd_Unknown(t *testing.T) {
	_, url := startNode(t, map[string]nodeHandler{
		"starknet_getTransactionReceipt": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: 29, Message: "Transaction hash not found"}
		},
	})
	path := writeConfig(t, url, "SN_SEPOLIA", config.AccountConfig{CairoVersion: 1})

	out, err := execute(t, "receipt", "0xabc", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not known to the node yet")
}

func configTestNode(t *testing.T, chainID string) (*fakeNode, string) {
	return startNode(t, map[string]nodeHandler{
		"starknet_blockNumber": reply(100),
		"starknet_chainId":     reply(chainID),
		"starknet_call": tokenCalls(map[string]interface{}{
			"symbol":   []string{"0x455448"},
			"decimals": []string{"0x12"},
		}),
	})
}

func TestConfigTest_FillsChainID(t *testing.T) {
	_, url := configTestNode(t, "0x534e5f5345504f4c4941")
	path := writeConfig(t, url, "", config.AccountConfig{CairoVersion: 1})

	out, err := execute(t, "config", "test", "--json", "--config", path)
	require.NoError(t, err)

	var report models.TestReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.ValidStructure)
	assert.True(t, report.ConfigUpdated)
	assert.False(t, report.AccountConfigured)
	require.Len(t, report.Networks, 1)
	res := report.Networks[0]
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "SN_SEPOLIA", res.ObservedChainID)
	assert.True(t, res.ChainIDUpdated)
	assert.Equal(t, "ETH", res.TokenSymbol)
	assert.Equal(t, 18, res.TokenDecimals)

	saved, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SN_SEPOLIA", saved.Network().ChainID)

	backups, err := filepath.Glob(path + ".*.bak")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigTest_DryRun(t *testing.T) {
	_, url := configTestNode(t, "0x534e5f5345504f4c4941")
	path := writeConfig(t, url, "", config.AccountConfig{CairoVersion: 1})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := execute(t, "config", "test", "--dry-run", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "UPDATED CONFIG (DRY RUN)")
	assert.Contains(t, out, "Configuration NOT saved")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConfigTest_Mismatch(t *testing.T) {
	_, url := configTestNode(t, "0x534e5f5345504f4c4941")
	path := writeConfig(t, url, "SN_MAIN", config.AccountConfig{CairoVersion: 1})

	out, err := execute(t, "config", "test", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "MISMATCH! Expected SN_MAIN")
	assert.Contains(t, out, "Inconsistent networks detected")
}

func TestConfigTest_Unreachable(t *testing.T) {
	path := writeConfig(t, "http://127.0.0.1:1", "SN_SEPOLIA", config.AccountConfig{CairoVersion: 1})

	out, err := execute(t, "config", "test", "--json", "--config", path)
	require.NoError(t, err)
	var report models.TestReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Networks, 1)
	assert.Equal(t, "error", report.Networks[0].Status)
	assert.NotEmpty(t, report.Networks[0].Error)
	assert.False(t, report.ConfigUpdated)
}

func TestConfigTest_InvalidStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"networks":[{"name":"Broken","token_address":"nothex"}]}`), 0600))

	out, err := execute(t, "config", "test", "--json", "--config", path)
	assert.True(t, errors.Is(err, errInvalidConfig))

	var report models.TestReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.ValidStructure)
	assert.Len(t, report.StructureErrors, 2)
}

func TestConfigRestore(t *testing.T) {
	_, url := configTestNode(t, "0x534e5f5345504f4c4941")
	path := writeConfig(t, url, "", config.AccountConfig{CairoVersion: 1})

	_, err := execute(t, "config", "test", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "config", "restore", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")

	restored, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, restored.Network().ChainID)

	_, err = execute(t, "config", "restore", "--config", filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestChainIDString(t *testing.T) {
	assert.Equal(t, "SN_MAIN", chainIDString(felt.MustFromHex("0x534e5f4d41494e")))
	assert.Equal(t, "0x0", chainIDString(felt.Zero))
	assert.Equal(t, "0x1", chainIDString(felt.FromUint64(1)))
}
