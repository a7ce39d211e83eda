package account

import (
	"encoding/json"
	"testing"

	"starkdemo/pkg/felt"

	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, cairo int) *Account {
	t.Helper()
	acc, err := New(felt.MustFromHex("0x1234"), felt.FromUint64(1), cairo)
	require.NoError(t, err)
	return acc
}

func TestPedersenVector(t *testing.T) {
	a := felt.MustFromHex("0x3d937c035c878245caf64531a5756109c53068da139362728feb561405371cb")
	b := felt.MustFromHex("0x208a0a10250e382e1e4bbe2880906c2791bf6275695e02fbbc6aeff9cd8b31a")
	ea, eb := a.Element(), b.Element()
	pair := felt.FromElement(pedersenhash.Pedersen(&ea, &eb))
	assert.Equal(t, "0x30e480bed5fe53fa909cc0f8c4d99b8f9f2c016be4c41e13a4848797979c662", pair.Hex())

	// mainnet deploy transaction e0a2e45a...
	deploy, err := felt.FromShortString("deploy")
	require.NoError(t, err)
	chain, err := felt.FromShortString("SN_MAIN")
	require.NoError(t, err)
	got := pedersenArray(
		deploy,
		felt.MustFromHex("0x20cfa74ee3564b4cd5435cdace0f9c4d43b939620e4a0bb5076105df0a626c6"),
		felt.Selector("constructor"),
		felt.MustFromHex("0x7885ba4f628b6cdcd0b5e6282d2a1b17fe7cd4dd536230c5db3eac890528b4d"),
		chain,
	)
	assert.Equal(t, "0xe0a2e45a80bb827967e096bcf58874f6c01c191e0a0530624cba66a508ae75", got.Hex())
}

func TestNew_PublicKey(t *testing.T) {
	acc := testAccount(t, CairoV0)
	assert.Equal(t, "0x1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca", acc.PublicKey().Hex())
}

func TestNew_RejectsBadKeys(t *testing.T) {
	_, err := New(felt.FromUint64(1), felt.Zero, CairoV0)
	assert.ErrorIs(t, err, ErrInvalidKey)

	// the curve order is below P, so P-1 is out of range for a scalar
	pMinusOne := felt.MustFromHex("0x800000000000011000000000000000000000000000000000000000000000000")
	_, err = New(felt.FromUint64(1), pMinusOne, CairoV0)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New(felt.FromUint64(1), felt.FromUint64(1), 7)
	assert.Error(t, err)
}

func TestExecuteCalldata(t *testing.T) {
	token := felt.MustFromHex("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7")
	recipient := felt.MustFromHex("0xbeef")
	amount := felt.NewUint256(500)
	call := Call{
		ContractAddress: token,
		Entrypoint:      "transfer",
		Calldata:        append([]felt.Felt{recipient}, amount.Calldata()...),
	}
	sel := felt.Selector("transfer")

	t.Run("cairo 0", func(t *testing.T) {
		got := testAccount(t, CairoV0).ExecuteCalldata(call)
		want := []felt.Felt{
			felt.FromUint64(1),
			token, sel, felt.FromUint64(0), felt.FromUint64(3),
			felt.FromUint64(3),
			recipient, felt.FromUint64(500), felt.Zero,
		}
		assert.Equal(t, want, got)
	})

	t.Run("cairo 1", func(t *testing.T) {
		got := testAccount(t, CairoV1).ExecuteCalldata(call)
		want := []felt.Felt{
			felt.FromUint64(1),
			token, sel, felt.FromUint64(3),
			recipient, felt.FromUint64(500), felt.Zero,
		}
		assert.Equal(t, want, got)
	})

	t.Run("cairo 0 offsets accumulate", func(t *testing.T) {
		second := Call{ContractAddress: token, Entrypoint: "approve", Calldata: []felt.Felt{recipient}}
		got := testAccount(t, CairoV0).ExecuteCalldata(call, second)
		require.Len(t, got, 1+4+4+1+4)
		assert.Equal(t, felt.FromUint64(3), got[7], "second call offset")
		assert.Equal(t, felt.FromUint64(4), got[9], "total data length")
	})
}

func TestInvokeV1Hash(t *testing.T) {
	acc := testAccount(t, CairoV1)
	calldata := []felt.Felt{felt.FromUint64(1), felt.FromUint64(2)}
	chainID, err := felt.FromShortString("SN_SEPOLIA")
	require.NoError(t, err)
	maxFee := felt.FromUint64(1_000_000_000_000_000)

	h1 := acc.InvokeV1Hash(calldata, maxFee, chainID, felt.FromUint64(0))
	h2 := acc.InvokeV1Hash(calldata, maxFee, chainID, felt.FromUint64(0))
	h3 := acc.InvokeV1Hash(calldata, maxFee, chainID, felt.FromUint64(1))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	want := pedersenArray(
		felt.MustFromHex("0x696e766f6b65"),
		felt.FromUint64(1),
		acc.Address,
		felt.Zero,
		pedersenArray(calldata...),
		maxFee,
		chainID,
		felt.FromUint64(0),
	)
	assert.Equal(t, want, h1)
}

func TestSignVerify(t *testing.T) {
	acc := testAccount(t, CairoV0)
	hash := felt.MustFromHex("0x6fea80189363a786037ed3e7ba546dad0ef7de49fccae0e31eb658b7dd4ea76")

	sig, err := acc.Sign(hash)
	require.NoError(t, err)
	require.Len(t, sig, 2)

	ok, err := acc.Verify(hash, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = acc.Verify(felt.FromUint64(42), sig)
	assert.False(t, ok)
}

func TestBuildInvoke(t *testing.T) {
	acc := testAccount(t, CairoV1)
	call := Call{
		ContractAddress: felt.MustFromHex("0x49d3"),
		Entrypoint:      "transfer",
		Calldata:        []felt.Felt{felt.FromUint64(7), felt.FromUint64(10), felt.Zero},
	}
	tx, err := acc.BuildInvoke([]Call{call}, felt.FromUint64(100), felt.FromUint64(0x534e), felt.FromUint64(3))
	require.NoError(t, err)
	assert.False(t, tx.Hash.IsZero())

	ok, err := acc.Verify(tx.Hash, tx.Signature)
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "INVOKE", wire["type"])
	assert.Equal(t, "0x1", wire["version"])
	assert.Equal(t, "0x1234", wire["sender_address"])
	assert.Equal(t, "0x64", wire["max_fee"])
	assert.Equal(t, "0x3", wire["nonce"])
	assert.Len(t, wire["signature"], 2)
	assert.Len(t, wire["calldata"], 7)
	assert.NotContains(t, wire, "Hash")
}
