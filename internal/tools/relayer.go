package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Relayer Sui relayer 服务的公共部分
type Relayer struct {
	BaseURL string
	Client  *HTTPClient
	// TokenCap 账户详情里最多返回的代币数量
	TokenCap int
}

func (r *Relayer) call(ctx context.Context, method, path string, query url.Values, body any) Result {
	var out any
	if err := r.Client.Do(ctx, method, joinURL(r.BaseURL, path), query, body, &out); err != nil {
		slog.Warn("relayer call failed", slog.String("path", path), slog.String("err", err.Error()))
		return FromError(err)
	}
	return OK(out)
}

func networkParam(required bool, desc string) Param {
	return Param{Name: "network", Type: "string", Description: desc, Required: required, Enum: Networks}
}

func userIDParam(required bool) Param {
	return Param{Name: "user_id", Type: "string", Description: "The Telegram user ID. Filled in automatically, never ask the user for it.", Required: required}
}

//
// ============================================================
// create_account
// ============================================================
//

type CreateAccountTool struct{ *Relayer }

func NewCreateAccountTool(r *Relayer) *CreateAccountTool { return &CreateAccountTool{r} }

func (t *CreateAccountTool) Name() string { return "create_account" }

func (t *CreateAccountTool) Description() string {
	return "Create a new wallet account on the Sui blockchain. Network parameter is required (mainnet/testnet/devnet)."
}

func (t *CreateAccountTool) Params() []Param {
	return []Param{
		{Name: "scheme", Type: "string", Description: "The cryptographic scheme to use (default: secp256k1)", Enum: Schemes},
		userIDParam(false),
		networkParam(true, "The network to create account on (mainnet/testnet/devnet)"),
	}
}

func (t *CreateAccountTool) Execute(ctx context.Context, args map[string]any) Result {
	network := getStringArg(args, "network", "")
	if network == "" {
		return Fail("Network parameter is required. Please specify 'mainnet', 'testnet', or 'devnet'.")
	}
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}
	scheme := getStringArg(args, "scheme", "secp256k1")
	if err := validateScheme(scheme); err != nil {
		return FromError(err)
	}

	payload := map[string]any{"scheme": scheme, "network": network}
	if uid := getStringArg(args, "user_id", ""); uid != "" {
		payload["user_id"] = uid
	}
	slog.Info("creating sui account", slog.String("scheme", scheme), slog.String("network", network))
	return t.call(ctx, http.MethodPost, "/api/sui/account", nil, payload)
}

//
// ============================================================
// get_account_by_user
// ============================================================
//

type GetAccountTool struct{ *Relayer }

func NewGetAccountTool(r *Relayer) *GetAccountTool { return &GetAccountTool{r} }

func (t *GetAccountTool) Name() string { return "get_account_by_user" }

func (t *GetAccountTool) Description() string {
	return "Get the current user's Sui wallet account information"
}

func (t *GetAccountTool) Params() []Param {
	return []Param{
		userIDParam(true),
		{Name: "privatekey", Type: "boolean", Description: "Whether to include private key in response"},
		networkParam(false, "The network to get account from (mainnet/testnet/devnet). Optional, defaults to mainnet."),
	}
}

func (t *GetAccountTool) Execute(ctx context.Context, args map[string]any) Result {
	network := getStringArg(args, "network", "")
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}

	q := url.Values{}
	q.Set("user_id", getStringArg(args, "user_id", ""))
	if getBoolArg(args, "privatekey", false) {
		q.Set("privatekey", "true")
	}
	if network != "" {
		q.Set("network", network)
	}
	return t.call(ctx, http.MethodGet, "/api/sui/account/by-user", q, nil)
}

//
// ============================================================
// get_account_detail
// ============================================================
//

type GetAccountDetailTool struct{ *Relayer }

func NewGetAccountDetailTool(r *Relayer) *GetAccountDetailTool { return &GetAccountDetailTool{r} }

func (t *GetAccountDetailTool) Name() string { return "get_account_detail" }

func (t *GetAccountDetailTool) Description() string {
	return "Get detailed Sui account info such as balance, tokens, NFTs, and on-chain objects by wallet address."
}

func (t *GetAccountDetailTool) Params() []Param {
	return []Param{
		{Name: "address", Type: "string", Description: "The Sui wallet address to fetch details for.", Required: true},
		networkParam(false, "The network to get account from (mainnet/testnet/devnet)."),
	}
}

// PromptForInput 调用前先向用户追问地址或网络
func (t *GetAccountDetailTool) PromptForInput(args map[string]any) (string, bool) {
	address := getStringArg(args, "address", "")
	network := getStringArg(args, "network", "")
	switch {
	case address == "" && network == "":
		return "Please send me the Sui wallet address you want to check and select a network: *mainnet*, *testnet* or *devnet*.", true
	case address == "":
		return "Please send me the Sui wallet address you want to check.", true
	case network == "":
		return "Please select a network for this wallet: *mainnet*, *testnet* or *devnet*.", true
	}
	return "", false
}

func (t *GetAccountDetailTool) Execute(ctx context.Context, args map[string]any) Result {
	address, err := NormalizeAddress(getStringArg(args, "address", ""))
	if err != nil {
		return FromError(err)
	}
	network := getStringArg(args, "network", "")
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}

	q := url.Values{}
	if network != "" {
		q.Set("network", network)
	}
	res := t.call(ctx, http.MethodGet, "/api/sui/account/"+url.PathEscape(address), q, nil)
	if !res.Success {
		return res
	}
	res.Data = formatAccountDetail(res.Data, t.TokenCap)
	return res
}

// formatAccountDetail 格式化余额并截断代币列表，保持 relayer 的顺序
func formatAccountDetail(payload any, tokenCap int) any {
	root, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	data, ok := root["data"].(map[string]any)
	if !ok {
		return payload
	}

	if bal, ok := data["balance"].(map[string]any); ok {
		if raw, ok := balanceString(bal["totalBalance"]); ok {
			bal["totalBalance"] = FormatBalance(raw, SuiDecimals) + " SUI"
		}
	}

	if list, ok := data["tokens"].([]any); ok {
		if tokenCap > 0 && len(list) > tokenCap {
			list = list[:tokenCap]
		}
		for _, item := range list {
			tok, ok := item.(map[string]any)
			if !ok {
				continue
			}
			raw, ok := balanceString(tok["balance"])
			if !ok || tok["decimals"] == nil {
				continue
			}
			symbol, _ := tok["symbol"].(string)
			tok["formatted_balance"] = strings.TrimSpace(FormatBalance(raw, decimalsOf(tok["decimals"])) + " " + symbol)
		}
		data["tokens"] = list
	}
	return root
}

//
// ============================================================
// create_token
// ============================================================
//

type CreateTokenTool struct{ *Relayer }

func NewCreateTokenTool(r *Relayer) *CreateTokenTool { return &CreateTokenTool{r} }

func (t *CreateTokenTool) Name() string { return "create_token" }

func (t *CreateTokenTool) Description() string {
	return "Create a new token on the Sui blockchain"
}

func (t *CreateTokenTool) Params() []Param {
	return []Param{
		{Name: "name", Type: "string", Description: "The name of the token", Required: true},
		{Name: "symbol", Type: "string", Description: "The symbol of the token (e.g., BTC, ETH)", Required: true},
		{Name: "description", Type: "string", Description: "A description of the token and its purpose"},
		{Name: "image_url", Type: "string", Description: "URL to the token's image or logo"},
		{Name: "init_supply", Type: "integer", Description: "The initial supply of the token", Required: true},
		{Name: "wallet_address", Type: "string", Description: "The Sui wallet address of the token creator", Required: true},
		networkParam(true, "The network to create the token on (mainnet/testnet/devnet)"),
		{Name: "twitter", Type: "string", Description: "Twitter/X link of the project"},
		{Name: "telegram", Type: "string", Description: "Telegram link of the project"},
		{Name: "website", Type: "string", Description: "Website of the project"},
		{Name: "uri", Type: "string", Description: "Metadata URI of the token"},
	}
}

func (t *CreateTokenTool) Execute(ctx context.Context, args map[string]any) Result {
	if missing := RequiredMissing(t, args); len(missing) > 0 {
		return Missing(missing)
	}
	network := getStringArg(args, "network", "")
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}
	supply, ok := getIntArg(args, "init_supply")
	if !ok || supply <= 0 {
		return Fail("init_supply must be a positive whole number")
	}
	wallet, err := NormalizeAddress(getStringArg(args, "wallet_address", ""))
	if err != nil {
		return FromError(err)
	}

	payload := map[string]any{
		"name":           getStringArg(args, "name", ""),
		"symbol":         strings.ToUpper(getStringArg(args, "symbol", "")),
		"description":    getStringArg(args, "description", ""),
		"image_url":      getStringArg(args, "image_url", ""),
		"init_supply":    supply,
		"wallet_address": wallet,
		"network":        network,
	}
	for _, k := range []string{"twitter", "telegram", "website", "uri"} {
		if v := getStringArg(args, k, ""); v != "" {
			payload[k] = v
		}
	}
	slog.Info("creating token", slog.String("symbol", fmt.Sprint(payload["symbol"])), slog.String("network", network))
	return t.call(ctx, http.MethodPost, "/api/sui/token", nil, payload)
}

//
// ============================================================
// create_nft
// ============================================================
//

type CreateNFTTool struct{ *Relayer }

func NewCreateNFTTool(r *Relayer) *CreateNFTTool { return &CreateNFTTool{r} }

func (t *CreateNFTTool) Name() string { return "create_nft" }

func (t *CreateNFTTool) Description() string {
	return "Create a new NFT on the Sui blockchain"
}

func (t *CreateNFTTool) Params() []Param {
	return []Param{
		{Name: "name", Type: "string", Description: "The name of the NFT", Required: true},
		{Name: "description", Type: "string", Description: "A description of the NFT", Required: true},
		{Name: "url", Type: "string", Description: "URL to the NFT's image or media", Required: true},
		networkParam(true, "The network to create the NFT on (mainnet/testnet/devnet)"),
		userIDParam(true),
	}
}

func (t *CreateNFTTool) Execute(ctx context.Context, args map[string]any) Result {
	if missing := RequiredMissing(t, args); len(missing) > 0 {
		return Missing(missing)
	}
	network := getStringArg(args, "network", "")
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}
	media := getStringArg(args, "url", "")
	if u, err := url.Parse(media); err != nil || u.Scheme == "" || u.Host == "" {
		return Fail("url must be an absolute link to the NFT media, got %q", media)
	}

	payload := map[string]any{
		"name":        getStringArg(args, "name", ""),
		"description": getStringArg(args, "description", ""),
		"url":         media,
		"network":     network,
		"user_id":     getStringArg(args, "user_id", ""),
	}
	return t.call(ctx, http.MethodPost, "/api/sui/nft", nil, payload)
}

//
// ============================================================
// switch_account
// ============================================================
//

type SwitchAccountTool struct{ *Relayer }

func NewSwitchAccountTool(r *Relayer) *SwitchAccountTool { return &SwitchAccountTool{r} }

func (t *SwitchAccountTool) Name() string { return "switch_account" }

func (t *SwitchAccountTool) Description() string {
	return "Switch the active Sui wallet address of the current user"
}

func (t *SwitchAccountTool) Params() []Param {
	return []Param{
		userIDParam(true),
		{Name: "address", Type: "string", Description: "The Sui wallet address to switch to", Required: true},
		networkParam(true, "The network to switch to (mainnet/testnet/devnet)"),
	}
}

func (t *SwitchAccountTool) Execute(ctx context.Context, args map[string]any) Result {
	if missing := RequiredMissing(t, args); len(missing) > 0 {
		return Missing(missing)
	}
	network := getStringArg(args, "network", "")
	if err := validateNetwork(network); err != nil {
		return FromError(err)
	}
	address, err := NormalizeAddress(getStringArg(args, "address", ""))
	if err != nil {
		return FromError(err)
	}

	payload := map[string]any{
		"user_id": getStringArg(args, "user_id", ""),
		"address": address,
		"network": network,
	}
	res := t.call(ctx, http.MethodPost, "/api/sui/account/switch", nil, payload)
	if res.Success {
		res.Data = map[string]any{
			"message": "Successfully switched active address",
			"result":  res.Data,
		}
	}
	return res
}
