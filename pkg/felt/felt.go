package felt

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmpty         = errors.New("empty value")
	ErrMissingPrefix = errors.New("missing 0x prefix")
	ErrSyntax        = errors.New("invalid hex digit")
	ErrRange         = errors.New("value out of field range")
	ErrShortString   = errors.New("short string must be at most 31 ASCII characters")
)

// Felt is an element of the Starknet prime field P = 2^251 + 17*2^192 + 1.
// The zero value is the field's zero and compares equal with ==.
type Felt struct {
	val fp.Element
}

// Zero doubles as the "no transaction" sentinel hash.
var Zero Felt

// selectorMask keeps the low 250 bits of a keccak digest.
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Modulus returns a copy of the field prime.
func Modulus() *big.Int {
	return fp.Modulus()
}

func FromUint64(v uint64) Felt {
	var f Felt
	f.val.SetUint64(v)
	return f
}

// FromHex parses a 0x-prefixed hexadecimal numeral. Values that do not fit
// the field are rejected rather than reduced.
func FromHex(s string) (Felt, error) {
	if s == "" {
		return Felt{}, ErrEmpty
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Felt{}, ErrMissingPrefix
	}
	digits := s[2:]
	if digits == "" {
		return Felt{}, ErrSyntax
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return Felt{}, fmt.Errorf("%w: %q", ErrSyntax, c)
		}
	}
	b, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return Felt{}, ErrSyntax
	}
	return FromBigInt(b)
}

// MustFromHex is FromHex for compile-time constants.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(fmt.Sprintf("felt: %s: %v", s, err))
	}
	return f
}

func FromBigInt(b *big.Int) (Felt, error) {
	if b == nil {
		return Felt{}, ErrEmpty
	}
	if b.Sign() < 0 || b.Cmp(fp.Modulus()) >= 0 {
		return Felt{}, ErrRange
	}
	var f Felt
	f.val.SetBigInt(b)
	return f, nil
}

// FromElement wraps a field element produced by the curve libraries.
func FromElement(e fp.Element) Felt {
	return Felt{val: e}
}

// FromShortString encodes an ASCII string of up to 31 characters as a felt,
// the way Cairo encodes string literals.
func FromShortString(s string) (Felt, error) {
	if len(s) > 31 {
		return Felt{}, ErrShortString
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return Felt{}, ErrShortString
		}
	}
	return FromBigInt(new(big.Int).SetBytes([]byte(s)))
}

// Selector computes the entrypoint selector: keccak256(name) masked to 250 bits.
func Selector(name string) Felt {
	h := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	h.And(h, selectorMask)
	f, _ := FromBigInt(h)
	return f
}

func (f Felt) Element() fp.Element {
	return f.val
}

func (f Felt) BigInt() *big.Int {
	return f.val.BigInt(new(big.Int))
}

// Bytes returns the big-endian 32-byte encoding.
func (f Felt) Bytes() [32]byte {
	return f.val.Bytes()
}

func (f Felt) IsZero() bool {
	return f.val.IsZero()
}

func (f Felt) Equal(o Felt) bool {
	return f.val.Equal(&o.val)
}

// Hex returns the canonical 0x-prefixed lowercase form without leading zeros.
func (f Felt) Hex() string {
	return "0x" + f.BigInt().Text(16)
}

// Dec returns the base-10 form.
func (f Felt) Dec() string {
	return f.BigInt().String()
}

func (f Felt) String() string {
	return f.Hex()
}

// ShortString decodes the felt as a Cairo short string, dropping NUL bytes.
func (f Felt) ShortString() string {
	b := f.BigInt().Bytes()
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}
	return string(out)
}

func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *Felt) UnmarshalText(text []byte) error {
	v, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
