package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"starkdemo/pkg/account"
	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// ErrMalformedResult is returned when a node answers with a shape the call
// cannot decode.
var ErrMalformedResult = errors.New("malformed result")

// JSON-RPC error codes meaning the node does not know a transaction.
const (
	CodeTxnHashNotFound = 29
	CodeInvalidTxnHash  = 25
)

// BlockLatest is the block tag every read is made against.
const BlockLatest = "latest"

type functionCall struct {
	ContractAddress    felt.Felt   `json:"contract_address"`
	EntryPointSelector felt.Felt   `json:"entry_point_selector"`
	Calldata           []felt.Felt `json:"calldata"`
}

func dial(ctx context.Context, rpcURL string) (*gethrpc.Client, error) {
	client, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// call runs a read-only starknet_call against the latest block.
func call(ctx context.Context, client *gethrpc.Client, contract felt.Felt, entrypoint string, calldata []felt.Felt) ([]felt.Felt, error) {
	if calldata == nil {
		calldata = []felt.Felt{}
	}
	req := functionCall{
		ContractAddress:    contract,
		EntryPointSelector: felt.Selector(entrypoint),
		Calldata:           calldata,
	}
	var result []felt.Felt
	if err := client.CallContext(ctx, &result, "starknet_call", req, BlockLatest); err != nil {
		return nil, fmt.Errorf("call %s: %w", entrypoint, err)
	}
	return result, nil
}

// BalanceOf reads the token balance of addr from the network's token contract.
func BalanceOf(ctx context.Context, network config.NetworkConfig, addr felt.Felt) (felt.Uint256, error) {
	token, err := felt.FromHex(network.TokenAddress)
	if err != nil {
		return felt.Uint256{}, fmt.Errorf("token address: %w", err)
	}

	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return felt.Uint256{}, err
	}
	defer client.Close()

	res, err := call(ctx, client, token, "balanceOf", []felt.Felt{addr})
	if err != nil {
		return felt.Uint256{}, err
	}
	if len(res) != 2 {
		return felt.Uint256{}, fmt.Errorf("balanceOf returned %d values: %w", len(res), ErrMalformedResult)
	}
	bal, err := felt.Uint256FromFelts(res[0], res[1])
	if err != nil {
		return felt.Uint256{}, fmt.Errorf("balanceOf: %v: %w", err, ErrMalformedResult)
	}
	return bal, nil
}

// Transfer signs and submits transfer(recipient, amount) on the token
// contract. The nonce and, when not configured, the chain id are read from
// the node first.
func Transfer(ctx context.Context, network config.NetworkConfig, signer *account.Account, maxFee, recipient felt.Felt, amount felt.Uint256) (models.InvokeResponse, error) {
	token, err := felt.FromHex(network.TokenAddress)
	if err != nil {
		return models.InvokeResponse{}, fmt.Errorf("token address: %w", err)
	}

	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return models.InvokeResponse{}, err
	}
	defer client.Close()

	chainID, ok, err := network.ChainIDFelt()
	if err != nil {
		return models.InvokeResponse{}, fmt.Errorf("chain id: %w", err)
	}
	if !ok {
		if chainID, err = chainIDWith(ctx, client); err != nil {
			return models.InvokeResponse{}, err
		}
	}

	nonce, err := nonceWith(ctx, client, signer.Address)
	if err != nil {
		return models.InvokeResponse{}, err
	}

	transfer := account.Call{
		ContractAddress: token,
		Entrypoint:      "transfer",
		Calldata:        append([]felt.Felt{recipient}, amount.Calldata()...),
	}
	tx, err := signer.BuildInvoke([]account.Call{transfer}, maxFee, chainID, nonce)
	if err != nil {
		return models.InvokeResponse{}, err
	}

	var resp models.InvokeResponse
	if err := client.CallContext(ctx, &resp, "starknet_addInvokeTransaction", tx); err != nil {
		return models.InvokeResponse{}, fmt.Errorf("add invoke transaction: %w", err)
	}
	if resp.TransactionHash.IsZero() {
		return models.InvokeResponse{}, fmt.Errorf("add invoke transaction returned no hash: %w", ErrMalformedResult)
	}
	return resp, nil
}

// TransactionReceipt fetches the receipt of hash. A nil receipt with a nil
// error means the node does not know the transaction (yet).
func TransactionReceipt(ctx context.Context, network config.NetworkConfig, hash felt.Felt) (*models.Receipt, error) {
	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var raw json.RawMessage
	if err := client.CallContext(ctx, &raw, "starknet_getTransactionReceipt", hash); err != nil {
		if IsTxnNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt %s: %w", hash, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var receipt models.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %v: %w", hash, err, ErrMalformedResult)
	}
	return &receipt, nil
}

// IsTxnNotFound reports whether err is the node saying it does not know a
// transaction hash.
func IsTxnNotFound(err error) bool {
	var rpcErr gethrpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	code := rpcErr.ErrorCode()
	return code == CodeTxnHashNotFound || code == CodeInvalidTxnHash
}

// ChainID asks the node which chain it serves.
func ChainID(ctx context.Context, rpcURL string) (felt.Felt, error) {
	client, err := dial(ctx, rpcURL)
	if err != nil {
		return felt.Zero, err
	}
	defer client.Close()
	return chainIDWith(ctx, client)
}

func chainIDWith(ctx context.Context, client *gethrpc.Client) (felt.Felt, error) {
	var id felt.Felt
	if err := client.CallContext(ctx, &id, "starknet_chainId"); err != nil {
		return felt.Zero, fmt.Errorf("chain id: %w", err)
	}
	return id, nil
}

// nonceWith returns the next nonce of an account contract.
func nonceWith(ctx context.Context, client *gethrpc.Client, addr felt.Felt) (felt.Felt, error) {
	var nonce felt.Felt
	if err := client.CallContext(ctx, &nonce, "starknet_getNonce", BlockLatest, addr); err != nil {
		return felt.Zero, fmt.Errorf("get nonce of %s: %w", addr, err)
	}
	return nonce, nil
}

// FetchTokenMetadata fetches the symbol and decimals of the network's token.
func FetchTokenMetadata(ctx context.Context, network config.NetworkConfig) (models.TokenMetadata, error) {
	fail := func(err error) (models.TokenMetadata, error) {
		return models.TokenMetadata{Err: err}, err
	}

	token, err := felt.FromHex(network.TokenAddress)
	if err != nil {
		return fail(fmt.Errorf("token address: %w", err))
	}
	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return fail(err)
	}
	defer client.Close()

	res, err := call(ctx, client, token, "symbol", nil)
	if err != nil {
		return fail(err)
	}
	symbol, err := decodeString(res)
	if err != nil {
		return fail(fmt.Errorf("symbol: %w", err))
	}

	res, err = call(ctx, client, token, "decimals", nil)
	if err != nil {
		return fail(err)
	}
	if len(res) != 1 || !res[0].BigInt().IsUint64() || res[0].BigInt().Uint64() > 255 {
		return fail(fmt.Errorf("decimals: %w", ErrMalformedResult))
	}
	return models.TokenMetadata{Symbol: symbol, Decimals: int(res[0].BigInt().Uint64())}, nil
}

// decodeString reads either a single short-string felt or a Cairo ByteArray
// [n, words..., pending_word, pending_len].
func decodeString(res []felt.Felt) (string, error) {
	if len(res) == 1 {
		return res[0].ShortString(), nil
	}
	if len(res) < 3 {
		return "", ErrMalformedResult
	}
	n := res[0].BigInt()
	if !n.IsUint64() || n.Uint64() != uint64(len(res)-3) {
		return "", ErrMalformedResult
	}
	var sb strings.Builder
	for _, w := range res[1 : len(res)-2] {
		sb.WriteString(w.ShortString())
	}
	sb.WriteString(res[len(res)-2].ShortString())
	return sb.String(), nil
}

// FetchRPCLatency measures a starknet_blockNumber round trip.
func FetchRPCLatency(ctx context.Context, rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	client, err := dial(ctx, rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	var block uint64
	if err := client.CallContext(ctx, &block, "starknet_blockNumber"); err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start), BlockNumber: block}, nil
}
