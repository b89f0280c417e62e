package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "omni-agent/internal/errors"
)

// Networks 支持的 Sui 网络
var Networks = []string{"mainnet", "testnet", "devnet"}

// Schemes 支持的密钥方案
var Schemes = []string{"secp256k1", "ed25519"}

const suiAddressHexLen = 64

func getStringArg(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch vv := v.(type) {
	case string:
		if s := strings.TrimSpace(vv); s != "" {
			return s
		}
		return def
	case json.Number:
		return vv.String()
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	default:
		return fmt.Sprint(vv)
	}
}

func getIntArg(args map[string]any, key string) (int64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case int:
		return int64(vv), true
	case int64:
		return vv, true
	case float64:
		if vv != math.Trunc(vv) {
			return 0, false
		}
		return int64(vv), true
	case json.Number:
		n, err := vv.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(vv), ",", ""), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func getBoolArg(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch vv := v.(type) {
	case bool:
		return vv
	case string:
		if b, err := strconv.ParseBool(vv); err == nil {
			return b
		}
	}
	return def
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// validateNetwork 空值视为未提供
func validateNetwork(network string) error {
	if network == "" || oneOf(network, Networks) {
		return nil
	}
	return xerrors.New(xerrors.CodeInvalidArgument,
		fmt.Sprintf("Invalid network %q. Please choose 'mainnet', 'testnet', or 'devnet'.", network))
}

func validateScheme(scheme string) error {
	if oneOf(scheme, Schemes) {
		return nil
	}
	return xerrors.New(xerrors.CodeInvalidArgument,
		fmt.Sprintf("Invalid scheme %q. Please choose 'secp256k1' or 'ed25519'.", scheme))
}

// NormalizeAddress 校验 Sui 地址（0x + 最多 32 字节十六进制），短地址左侧补零
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("Invalid Sui address %q: must start with 0x", addr))
	}
	digits := strings.ToLower(addr[2:])
	if digits == "" || len(digits) > suiAddressHexLen {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("Invalid Sui address %q: expected up to %d hex digits", addr, suiAddressHexLen))
	}
	padded := "0x" + strings.Repeat("0", suiAddressHexLen-len(digits)) + digits
	if _, err := hexutil.Decode(padded); err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("Invalid Sui address %q", addr))
	}
	return padded, nil
}
