package tools

import (
	"time"

	"omni-agent/internal/cache"
)

// Names 机器人对模型暴露的完整工具集合
var Names = []string{
	"search_web",
	"get_token_price",
	"create_token",
	"create_account",
	"get_account_by_user",
	"get_account_detail",
	"get_news",
	"switch_account",
	"create_nft",
}

// SetConfig 构建工具集合所需的依赖
type SetConfig struct {
	RelayerURL  string
	PriceAPIURL string
	NewsURL     string
	SearchURL   string
	BraveAPIKey string
	Timeout     time.Duration
	TokenCap    int
	NewsLimit   int
	Cache       cache.Cache
	PriceTTL    time.Duration
	NewsTTL     time.Duration
}

// NewDefaultRegistry 构建并校验全部工具
func NewDefaultRegistry(cfg SetConfig) (*Registry, error) {
	client := NewHTTPClient(cfg.Timeout)
	relayer := &Relayer{BaseURL: cfg.RelayerURL, Client: client, TokenCap: cfg.TokenCap}

	reg, err := NewRegistry(
		&SearchTool{Endpoint: cfg.SearchURL, APIKey: cfg.BraveAPIKey, Client: client},
		&TokenPriceTool{BaseURL: cfg.PriceAPIURL, Client: client, Cache: cfg.Cache, TTL: cfg.PriceTTL},
		NewCreateTokenTool(relayer),
		NewCreateAccountTool(relayer),
		NewGetAccountTool(relayer),
		NewGetAccountDetailTool(relayer),
		&NewsTool{Endpoint: cfg.NewsURL, Client: client, Cache: cfg.Cache, TTL: cfg.NewsTTL, Limit: cfg.NewsLimit},
		NewSwitchAccountTool(relayer),
		NewCreateNFTTool(relayer),
	)
	if err != nil {
		return nil, err
	}
	if err := reg.Require(Names...); err != nil {
		return nil, err
	}
	return reg, nil
}

// News 返回注册表中的新闻工具，供 /news 命令使用
func (r *Registry) News() (*NewsTool, bool) {
	t, ok := r.Get("get_news")
	if !ok {
		return nil, false
	}
	n, ok := t.(*NewsTool)
	return n, ok
}
