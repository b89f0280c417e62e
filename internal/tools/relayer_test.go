package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relayerStub records the last request and answers with a fixed body.
type relayerStub struct {
	hits   atomic.Int32
	method string
	path   string
	query  string
	body   map[string]any
}

func newRelayerStub(t *testing.T, status int, reply string) (*relayerStub, *Relayer) {
	t.Helper()
	stub := &relayerStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.hits.Add(1)
		stub.method = r.Method
		stub.path = r.URL.Path
		stub.query = r.URL.RawQuery
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &stub.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return stub, &Relayer{BaseURL: srv.URL + "/", Client: NewHTTPClient(time.Second), TokenCap: 5}
}

func TestCreateAccount(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{"data":{"address":"0x1"}}`)
	tool := NewCreateAccountTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{"network": "testnet", "user_id": "42"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.MethodPost, stub.method)
	assert.Equal(t, "/api/sui/account", stub.path)
	assert.Equal(t, map[string]any{"scheme": "secp256k1", "network": "testnet", "user_id": "42"}, stub.body)
}

func TestCreateAccountRejectsBadInput(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{}`)
	tool := NewCreateAccountTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Network parameter is required")

	res = tool.Execute(context.Background(), map[string]any{"network": "moonnet"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid network")

	res = tool.Execute(context.Background(), map[string]any{"network": "devnet", "scheme": "rsa"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid scheme")

	assert.Zero(t, stub.hits.Load())
}

func TestGetAccountByUser(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{"data":{"address":"0xabc"}}`)
	tool := NewGetAccountTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{"user_id": "42", "privatekey": true, "network": "mainnet"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.MethodGet, stub.method)
	assert.Equal(t, "/api/sui/account/by-user", stub.path)
	assert.Equal(t, "network=mainnet&privatekey=true&user_id=42", stub.query)
}

func TestUpstreamErrorBecomesResult(t *testing.T) {
	_, relayer := newRelayerStub(t, http.StatusBadGateway, `{"error":"relayer offline"}`)
	tool := NewGetAccountTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{"user_id": "42"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "returned 502: relayer offline")
	assert.Equal(t, http.StatusBadGateway, res.UpstreamStatus)
	assert.Contains(t, res.JSON(), `"upstream_status":502`)
}

func TestAccountDetailFormatsBalances(t *testing.T) {
	tokens := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		tokens = append(tokens, `{"symbol":"USDC","balance":"2500000","decimals":6}`)
	}
	reply := `{"data":{"balance":{"totalBalance":"1234567890"},"tokens":[` + strings.Join(tokens, ",") + `]}}`
	stub, relayer := newRelayerStub(t, http.StatusOK, reply)
	tool := NewGetAccountDetailTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{"address": "0x2", "network": "mainnet"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/api/sui/account/0x"+strings.Repeat("0", 63)+"2", stub.path)
	assert.Equal(t, "network=mainnet", stub.query)

	data := res.Data.(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "1.234568 SUI", data["balance"].(map[string]any)["totalBalance"])

	list := data["tokens"].([]any)
	require.Len(t, list, 5)
	assert.Equal(t, "2.500000 USDC", list[0].(map[string]any)["formatted_balance"])
}

func TestAccountDetailPrompts(t *testing.T) {
	tool := NewGetAccountDetailTool(&Relayer{})

	prompt, ok := tool.PromptForInput(map[string]any{"address": "0x2"})
	assert.True(t, ok)
	assert.Equal(t, "Please select a network for this wallet: *mainnet*, *testnet* or *devnet*.", prompt)

	prompt, ok = tool.PromptForInput(map[string]any{"network": "mainnet"})
	assert.True(t, ok)
	assert.Equal(t, "Please send me the Sui wallet address you want to check.", prompt)

	prompt, ok = tool.PromptForInput(map[string]any{})
	assert.True(t, ok)
	assert.Contains(t, prompt, "wallet address")
	assert.Contains(t, prompt, "*devnet*")

	_, ok = tool.PromptForInput(map[string]any{"address": "0x2", "network": "mainnet"})
	assert.False(t, ok)
}

func TestCreateTokenMissingWalletNeverCallsRelayer(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{}`)
	tool := NewCreateTokenTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{
		"name":        "Omni",
		"symbol":      "omni",
		"init_supply": float64(1000),
		"network":     "testnet",
	})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"wallet_address"}, res.MissingFields)
	assert.Zero(t, stub.hits.Load())
}

func TestCreateToken(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{"data":{"coinType":"0x1::omni::OMNI"}}`)
	tool := NewCreateTokenTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{
		"name":           "Omni",
		"symbol":         "omni",
		"init_supply":    json.Number("1000"),
		"wallet_address": "0xabc",
		"network":        "testnet",
		"website":        "https://omni.example",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/api/sui/token", stub.path)
	assert.Equal(t, "OMNI", stub.body["symbol"])
	assert.Equal(t, float64(1000), stub.body["init_supply"])
	assert.Equal(t, "https://omni.example", stub.body["website"])
	assert.NotContains(t, stub.body, "twitter")

	res = tool.Execute(context.Background(), map[string]any{
		"name": "Omni", "symbol": "o", "init_supply": float64(-5), "wallet_address": "0xabc", "network": "testnet",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "positive")
}

func TestCreateNFT(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{"data":{"objectId":"0x9"}}`)
	tool := NewCreateNFTTool(relayer)

	args := map[string]any{
		"name": "Cat", "description": "A cat", "url": "cat.png", "network": "devnet", "user_id": "42",
	}
	res := tool.Execute(context.Background(), args)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "absolute link")
	assert.Zero(t, stub.hits.Load())

	args["url"] = "https://img.example/cat.png"
	res = tool.Execute(context.Background(), args)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/api/sui/nft", stub.path)
	assert.Equal(t, "42", stub.body["user_id"])
}

func TestSwitchAccount(t *testing.T) {
	stub, relayer := newRelayerStub(t, http.StatusOK, `{"data":{"active":"0x1"}}`)
	tool := NewSwitchAccountTool(relayer)

	res := tool.Execute(context.Background(), map[string]any{"user_id": "42", "address": "0x1", "network": "mainnet"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "/api/sui/account/switch", stub.path)
	assert.Equal(t, "Successfully switched active address", res.Data.(map[string]any)["message"])
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"1", stub.body["address"])
}
