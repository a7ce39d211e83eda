package felt

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var ErrNegative = errors.New("negative value")

var max128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Uint256 is the Cairo u256: an unsigned 256-bit integer carried on chain
// as two felts, the low and high 128-bit halves.
type Uint256 struct {
	v uint256.Int
}

func NewUint256(v uint64) Uint256 {
	var u Uint256
	u.v.SetUint64(v)
	return u
}

// Uint256FromDecimal parses a non-negative base-10 integer below 2^256.
func Uint256FromDecimal(s string) (Uint256, error) {
	if s == "" {
		return Uint256{}, ErrEmpty
	}
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		// negative zero is still zero
		if rest == "" || strings.Trim(rest, "0") != "" {
			return Uint256{}, ErrNegative
		}
		return Uint256{}, nil
	}
	var u Uint256
	if err := u.v.SetFromDecimal(s); err != nil {
		return Uint256{}, err
	}
	return u, nil
}

func Uint256FromBig(b *big.Int) (Uint256, error) {
	if b.Sign() < 0 {
		return Uint256{}, ErrNegative
	}
	var u Uint256
	if overflow := u.v.SetFromBig(b); overflow {
		return Uint256{}, uint256.ErrBig256Range
	}
	return u, nil
}

// Uint256FromFelts joins the (low, high) pair returned by u256 entrypoints.
func Uint256FromFelts(low, high Felt) (Uint256, error) {
	lo, hi := low.BigInt(), high.BigInt()
	if lo.Cmp(max128) >= 0 {
		return Uint256{}, fmt.Errorf("low half %s exceeds 128 bits", low.Hex())
	}
	if hi.Cmp(max128) >= 0 {
		return Uint256{}, fmt.Errorf("high half %s exceeds 128 bits", high.Hex())
	}
	return Uint256FromBig(hi.Lsh(hi, 128).Or(hi, lo))
}

func (u Uint256) Low() Felt {
	var lo uint256.Int
	lo[0], lo[1] = u.v[0], u.v[1]
	f, _ := FromBigInt(lo.ToBig())
	return f
}

func (u Uint256) High() Felt {
	var hi uint256.Int
	hi[0], hi[1] = u.v[2], u.v[3]
	f, _ := FromBigInt(hi.ToBig())
	return f
}

// Calldata returns [low, high].
func (u Uint256) Calldata() []Felt {
	return []Felt{u.Low(), u.High()}
}

func (u Uint256) BigInt() *big.Int {
	return u.v.ToBig()
}

func (u Uint256) IsZero() bool {
	return u.v.IsZero()
}

func (u Uint256) Cmp(o Uint256) int {
	return u.v.Cmp(&o.v)
}

func (u Uint256) Dec() string {
	return u.v.Dec()
}

func (u Uint256) String() string {
	return u.v.Dec()
}

func (u Uint256) MarshalText() ([]byte, error) {
	return []byte(u.v.Dec()), nil
}

func (u *Uint256) UnmarshalText(text []byte) error {
	v, err := Uint256FromDecimal(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
