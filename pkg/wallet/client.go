package wallet

import (
	"context"
	"errors"

	"starkdemo/pkg/account"
	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
	"starkdemo/pkg/rpc"
)

// ChainClient is the network side of the wallet.
type ChainClient interface {
	BalanceOf(ctx context.Context, addr felt.Felt) (felt.Uint256, error)
	Transfer(ctx context.Context, recipient felt.Felt, amount felt.Uint256) (models.InvokeResponse, error)
	TransactionReceipt(ctx context.Context, hash felt.Felt) (*models.Receipt, error)
}

// RealChainClient implements ChainClient using the rpc package.
type RealChainClient struct {
	Network config.NetworkConfig
	Signer  *account.Account // nil when no credentials are configured
	MaxFee  felt.Felt
}

func (c *RealChainClient) BalanceOf(ctx context.Context, addr felt.Felt) (felt.Uint256, error) {
	return rpc.BalanceOf(ctx, c.Network, addr)
}

func (c *RealChainClient) Transfer(ctx context.Context, recipient felt.Felt, amount felt.Uint256) (models.InvokeResponse, error) {
	if c.Signer == nil {
		return models.InvokeResponse{}, config.ErrNoAccount
	}
	return rpc.Transfer(ctx, c.Network, c.Signer, c.MaxFee, recipient, amount)
}

func (c *RealChainClient) TransactionReceipt(ctx context.Context, hash felt.Felt) (*models.Receipt, error) {
	return rpc.TransactionReceipt(ctx, c.Network, hash)
}

// NewRealChainClient wires the selected network and, when configured, the
// signing account.
func NewRealChainClient(cfg config.Config) (*RealChainClient, error) {
	client := &RealChainClient{Network: cfg.Network()}

	maxFee, err := cfg.MaxFee()
	if err != nil {
		return nil, err
	}
	client.MaxFee = maxFee

	addr, key, err := cfg.Credentials()
	if errors.Is(err, config.ErrNoAccount) {
		return client, nil
	}
	if err != nil {
		return nil, err
	}
	signer, err := account.New(addr, key, cfg.Account.CairoVersion)
	if err != nil {
		return nil, err
	}
	client.Signer = signer
	return client, nil
}
