package utils

import (
	"fmt"
	"math/big"
	"strings"
)

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortHex keeps the first and last n characters after the 0x prefix.
func ShortHex(s string, n int) string {
	if !strings.HasPrefix(s, "0x") || len(s) <= 2+2*n+3 {
		return s
	}
	return s[:2+n] + "..." + s[len(s)-n:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	parts := strings.Split(s, ".")
	integerPart := parts[0]
	sign := ""
	if strings.HasPrefix(integerPart, "-") {
		sign = "-"
		integerPart = integerPart[1:]
	}

	n := len(integerPart)
	if n <= 3 {
		return s
	}

	var result strings.Builder
	result.WriteString(sign)
	remainder := n % 3
	if remainder > 0 {
		result.WriteString(integerPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < n; i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(integerPart[i : i+3])
	}

	if len(parts) > 1 {
		result.WriteString(".")
		result.WriteString(parts[1])
	}
	return result.String()
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

func BigFloatToFloat64(f *big.Float) float64 {
	if f == nil {
		return 0
	}
	val, _ := f.Float64()
	return val
}

// ToUnits scales a base-unit amount down by 10^decimals.
func ToUnits(amount *big.Int, decimals int) *big.Float {
	if amount == nil {
		return new(big.Float)
	}
	f := new(big.Float).SetPrec(256).SetInt(amount)
	if decimals <= 0 {
		return f
	}
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return f.Quo(f, div)
}

// FormatUnits renders amount/10^decimals exactly, truncated (not rounded)
// to precision fractional digits.
func FormatUnits(amount *big.Int, decimals, precision int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return AddCommas(amount.String())
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, div, new(big.Int))

	out := whole.String()
	if precision > 0 {
		fracStr := frac.String()
		fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
		if precision < len(fracStr) {
			fracStr = fracStr[:precision]
		}
		out += "." + fracStr
	}
	return AddCommas(out)
}
