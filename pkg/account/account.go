package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"starkdemo/pkg/felt"

	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
)

// Cairo versions of the account contract; they differ in __execute__ calldata layout.
const (
	CairoV0 = 0
	CairoV1 = 1
)

var ErrInvalidKey = errors.New("private key must be in [1, n-1] of the stark curve order")

var (
	invokePrefix = felt.MustFromHex("0x696e766f6b65") // "invoke"
	txVersionOne = felt.FromUint64(1)
)

// Call is a single contract invocation.
type Call struct {
	ContractAddress felt.Felt
	Entrypoint      string
	Calldata        []felt.Felt
}

// Account signs transactions on behalf of an account contract.
type Account struct {
	Address      felt.Felt
	CairoVersion int

	key       *ecdsa.PrivateKey
	publicKey felt.Felt
}

// InvokeV1 is a signed INVOKE transaction ready for starknet_addInvokeTransaction.
type InvokeV1 struct {
	SenderAddress felt.Felt   `json:"sender_address"`
	Calldata      []felt.Felt `json:"calldata"`
	MaxFee        felt.Felt   `json:"max_fee"`
	Nonce         felt.Felt   `json:"nonce"`
	Signature     []felt.Felt `json:"signature"`
	Hash          felt.Felt   `json:"-"`
}

func (tx InvokeV1) MarshalJSON() ([]byte, error) {
	type wire InvokeV1
	return json.Marshal(struct {
		Type    string `json:"type"`
		Version string `json:"version"`
		wire
	}{
		Type:    "INVOKE",
		Version: "0x1",
		wire:    wire(tx),
	})
}

// New builds a signing account from the account contract address and its
// Stark private key.
func New(address, privateKey felt.Felt, cairoVersion int) (*Account, error) {
	if cairoVersion != CairoV0 && cairoVersion != CairoV1 {
		return nil, fmt.Errorf("unsupported cairo version %d", cairoVersion)
	}
	k := privateKey.BigInt()
	if k.Sign() <= 0 || k.Cmp(fr.Modulus()) >= 0 {
		return nil, ErrInvalidKey
	}

	var pub starkcurve.G1Affine
	pub.ScalarMultiplicationBase(k)

	pubBytes := pub.Bytes()
	buf := make([]byte, 0, len(pubBytes)+fr.Bytes)
	buf = append(buf, pubBytes[:]...)
	buf = append(buf, k.FillBytes(make([]byte, fr.Bytes))...)

	key := new(ecdsa.PrivateKey)
	if _, err := key.SetBytes(buf); err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Account{
		Address:      address,
		CairoVersion: cairoVersion,
		key:          key,
		publicKey:    felt.FromElement(pub.X),
	}, nil
}

// PublicKey is the x coordinate of the account's public point.
func (a *Account) PublicKey() felt.Felt {
	return a.publicKey
}

// ExecuteCalldata encodes calls as the account's __execute__ arguments.
func (a *Account) ExecuteCalldata(calls ...Call) []felt.Felt {
	if a.CairoVersion == CairoV1 {
		return executeCalldataV1(calls)
	}
	return executeCalldataV0(calls)
}

// [n, (to, selector, offset, len)..., total, data...]
func executeCalldataV0(calls []Call) []felt.Felt {
	out := []felt.Felt{felt.FromUint64(uint64(len(calls)))}
	var data []felt.Felt
	for _, c := range calls {
		out = append(out,
			c.ContractAddress,
			felt.Selector(c.Entrypoint),
			felt.FromUint64(uint64(len(data))),
			felt.FromUint64(uint64(len(c.Calldata))),
		)
		data = append(data, c.Calldata...)
	}
	out = append(out, felt.FromUint64(uint64(len(data))))
	return append(out, data...)
}

// [n, (to, selector, len, data...)...]
func executeCalldataV1(calls []Call) []felt.Felt {
	out := []felt.Felt{felt.FromUint64(uint64(len(calls)))}
	for _, c := range calls {
		out = append(out,
			c.ContractAddress,
			felt.Selector(c.Entrypoint),
			felt.FromUint64(uint64(len(c.Calldata))),
		)
		out = append(out, c.Calldata...)
	}
	return out
}

// InvokeV1Hash computes the version 1 INVOKE transaction hash.
func (a *Account) InvokeV1Hash(calldata []felt.Felt, maxFee, chainID, nonce felt.Felt) felt.Felt {
	return pedersenArray(
		invokePrefix,
		txVersionOne,
		a.Address,
		felt.Zero,
		pedersenArray(calldata...),
		maxFee,
		chainID,
		nonce,
	)
}

// Sign returns the [r, s] signature of a transaction hash.
func (a *Account) Sign(hash felt.Felt) ([]felt.Felt, error) {
	msg := hash.Bytes()
	sig, err := a.key.Sign(msg[:], nil)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", hash, err)
	}
	half := len(sig) / 2
	r, err := felt.FromBigInt(new(big.Int).SetBytes(sig[:half]))
	if err != nil {
		return nil, err
	}
	s, err := felt.FromBigInt(new(big.Int).SetBytes(sig[half:]))
	if err != nil {
		return nil, err
	}
	return []felt.Felt{r, s}, nil
}

// Verify checks an [r, s] signature against the account's public key.
func (a *Account) Verify(hash felt.Felt, signature []felt.Felt) (bool, error) {
	if len(signature) != 2 {
		return false, fmt.Errorf("expected 2 signature elements, got %d", len(signature))
	}
	r, s := signature[0].Bytes(), signature[1].Bytes()
	msg := hash.Bytes()
	return a.key.PublicKey.Verify(append(r[:], s[:]...), msg[:], nil)
}

// BuildInvoke wraps calls into a signed INVOKE v1 transaction.
func (a *Account) BuildInvoke(calls []Call, maxFee, chainID, nonce felt.Felt) (InvokeV1, error) {
	calldata := a.ExecuteCalldata(calls...)
	hash := a.InvokeV1Hash(calldata, maxFee, chainID, nonce)
	sig, err := a.Sign(hash)
	if err != nil {
		return InvokeV1{}, err
	}
	return InvokeV1{
		SenderAddress: a.Address,
		Calldata:      calldata,
		MaxFee:        maxFee,
		Nonce:         nonce,
		Signature:     sig,
		Hash:          hash,
	}, nil
}

func pedersenArray(elems ...felt.Felt) felt.Felt {
	in := make([]*fp.Element, len(elems))
	for i := range elems {
		e := elems[i].Element()
		in[i] = &e
	}
	return felt.FromElement(pedersenhash.PedersenArray(in...))
}
