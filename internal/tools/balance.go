package tools

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SuiDecimals SUI 原生币（MIST）的小数位数
const SuiDecimals = 9

var enPrinter = message.NewPrinter(language.English)

// FormatBalance 把最小单位的整数金额除以 10^decimals，保留六位小数并按千分位分组，
// 例如 ("1234567890", 9) -> "1.234568"。非整数输入原样返回。
func FormatBalance(raw string, decimals int) string {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return raw
	}
	if decimals < 0 {
		decimals = 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	fixed := new(big.Rat).SetFrac(amount, scale).FloatString(6)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	n, ok := new(big.Int).SetString(digits, 10)
	if ok && n.IsInt64() {
		return enPrinter.Sprintf("%d", n.Int64())
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// balanceString 兼容 relayer 返回金额的几种形式
func balanceString(v any) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case json.Number:
		return vv.String(), true
	case float64:
		return fmt.Sprintf("%.0f", vv), true
	default:
		return "", false
	}
}

func decimalsOf(v any) int {
	switch vv := v.(type) {
	case json.Number:
		if n, err := vv.Int64(); err == nil {
			return int(n)
		}
	case float64:
		return int(vv)
	case string:
		var n int
		if _, err := fmt.Sscanf(vv, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
