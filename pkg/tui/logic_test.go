package tui

import (
	"context"
	"errors"
	"testing"

	"starkdemo/pkg/config"
	"starkdemo/pkg/felt"
	"starkdemo/pkg/models"
	"starkdemo/pkg/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChain struct {
	mock.Mock
}

func (m *mockChain) BalanceOf(ctx context.Context, addr felt.Felt) (felt.Uint256, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(felt.Uint256), args.Error(1)
}

func (m *mockChain) Transfer(ctx context.Context, recipient felt.Felt, amount felt.Uint256) (models.InvokeResponse, error) {
	args := m.Called(ctx, recipient, amount)
	return args.Get(0).(models.InvokeResponse), args.Error(1)
}

func (m *mockChain) TransactionReceipt(ctx context.Context, hash felt.Felt) (*models.Receipt, error) {
	args := m.Called(ctx, hash)
	r, _ := args.Get(0).(*models.Receipt)
	return r, args.Error(1)
}

var owner = felt.MustFromHex("0x1234")

func newTestModel(chain *mockChain, account felt.Felt) model {
	w := wallet.New(chain, wallet.Options{
		Network: config.NetworkConfig{
			Name:          "Sepolia",
			TokenSymbol:   "ETH",
			TokenDecimals: 18,
			ExplorerURL:   "https://sepolia.voyager.online",
		},
		Account: account,
	})
	return initialModel(w)
}

func TestCheckBalanceCmd(t *testing.T) {
	chain := new(mockChain)
	chain.On("BalanceOf", mock.Anything, owner).Return(felt.NewUint256(9), nil)
	m := newTestModel(chain, owner)

	msg := checkBalanceCmd(m.wallet)()
	bm, ok := msg.(balanceMsg)
	require.True(t, ok)
	assert.NoError(t, bm.err)
	assert.Equal(t, felt.NewUint256(9), bm.balance)
}

func TestSendTransactionCmd(t *testing.T) {
	chain := new(mockChain)
	recipient := felt.MustFromHex("0xbeef")
	chain.On("Transfer", mock.Anything, recipient, felt.NewUint256(3)).Return(models.InvokeResponse{TransactionHash: felt.FromUint64(0xabc)}, nil)
	m := newTestModel(chain, owner)

	msg := sendTransactionCmd(m.wallet, recipient, felt.NewUint256(3))()
	sent, ok := msg.(txSentMsg)
	require.True(t, ok)
	assert.NoError(t, sent.err)
	assert.Equal(t, felt.FromUint64(0xabc), sent.resp.TransactionHash)
}

func TestCheckStatusCmd_NoTransaction(t *testing.T) {
	chain := new(mockChain)
	m := newTestModel(chain, owner)

	msg := checkStatusCmd(m.wallet)()
	rm, ok := msg.(receiptMsg)
	require.True(t, ok)
	assert.ErrorIs(t, rm.err, wallet.ErrNoTransaction)
	chain.AssertNotCalled(t, "TransactionReceipt", mock.Anything, mock.Anything)
}

func TestListenForWallet(t *testing.T) {
	chain := new(mockChain)
	chain.On("BalanceOf", mock.Anything, owner).Return(felt.NewUint256(1), nil)
	m := newTestModel(chain, owner)
	sub := m.wallet.Subscribe()

	_, err := m.wallet.CheckAccountBalance(context.Background())
	require.NoError(t, err)

	ev, ok := listenForWallet(sub)().(wallet.Event)
	require.True(t, ok)
	assert.Equal(t, wallet.EventBalanceUpdated, ev.Type)

	m.wallet.Unsubscribe(sub)
	assert.Nil(t, listenForWallet(sub)())
}

func TestFocusCycle(t *testing.T) {
	m := newTestModel(new(mockChain), owner)
	assert.Equal(t, focusNone, m.focus)

	m.nextFocus()
	assert.Equal(t, focusRecipient, m.focus)
	assert.True(t, m.inputs[inputRecipient].Focused())

	m.nextFocus()
	assert.Equal(t, focusAmount, m.focus)
	assert.False(t, m.inputs[inputRecipient].Focused())
	assert.True(t, m.inputs[inputAmount].Focused())

	m.nextFocus()
	assert.Equal(t, focusSend, m.focus)
	m.nextFocus()
	assert.Equal(t, focusNone, m.focus)

	m.prevFocus()
	assert.Equal(t, focusSend, m.focus)
}

func TestValidateInputs(t *testing.T) {
	m := newTestModel(new(mockChain), owner)
	m.validateInputs()
	assert.False(t, m.sendEnabled())

	m.inputs[inputRecipient].SetValue("0xbeef")
	m.validateInputs()
	assert.True(t, m.recipientValid)
	assert.False(t, m.sendEnabled())

	m.inputs[inputAmount].SetValue("1000")
	m.validateInputs()
	assert.True(t, m.sendEnabled())

	// raw text is validated as typed
	m.inputs[inputAmount].SetValue(" 1000")
	m.validateInputs()
	assert.False(t, m.amountValid)
}

func TestStartEndOp(t *testing.T) {
	m := newTestModel(new(mockChain), owner)
	assert.NotNil(t, m.startOp())
	assert.Nil(t, m.startOp())
	assert.Equal(t, 2, m.inFlight)
	m.endOp()
	m.endOp()
	m.endOp()
	assert.Equal(t, 0, m.inFlight)
}

func TestFeeString(t *testing.T) {
	fee := felt.FromUint64(12345)
	assert.Equal(t, "12345 wei", feeString(&models.Receipt{ActualFee: &fee}))
	assert.Equal(t, "12345 fri", feeString(&models.Receipt{ActualFee: &fee, FeeUnit: "FRI"}))
	assert.Equal(t, "unknown", feeString(&models.Receipt{}))
	assert.Equal(t, "unknown", feeString(nil))
}

func TestFormatBalance(t *testing.T) {
	bal, err := felt.Uint256FromDecimal("1234567890000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1,234.567890 ETH", formatBalance(bal, 18, "ETH"))
	assert.Equal(t, "42", formatBalance(felt.NewUint256(42), 0, ""))
}

func TestCheckBalanceCmd_Error(t *testing.T) {
	chain := new(mockChain)
	chain.On("BalanceOf", mock.Anything, owner).Return(felt.Uint256{}, errors.New("timeout"))
	m := newTestModel(chain, owner)

	bm := checkBalanceCmd(m.wallet)().(balanceMsg)
	assert.ErrorContains(t, bm.err, "timeout")
}
