package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"omni-agent/internal/cache"
	xerrors "omni-agent/internal/errors"
)

// cached 先查缓存，未命中时调用 fetch 并写回。缓存故障只记录日志。
func cached[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if c != nil {
		if raw, err := c.Get(ctx, key); err == nil {
			var v T
			if json.Unmarshal(raw, &v) == nil {
				return v, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("cache read failed", slog.String("key", key), slog.String("err", err.Error()))
		}
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}

	if c != nil && ttl > 0 {
		if raw, err := json.Marshal(v); err == nil {
			if err := c.Set(ctx, key, raw, ttl); err != nil {
				slog.Warn("cache write failed", slog.String("key", key), slog.String("err", err.Error()))
			}
		}
	}
	return v, nil
}

//
// ============================================================
// get_token_price
// ============================================================
//

// TokenPrice 价格接口中第一条行情的摘要
type TokenPrice struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	PriceUSD      any    `json:"price_usd"`
	Price         any    `json:"price"`
	QuoteCurrency string `json:"quote_currency"`
	Change24h     any    `json:"change_24h_percent"`
	High24h       any    `json:"high_24h"`
	Low24h        any    `json:"low_24h"`
	Exchange      string `json:"exchange"`
	URL           string `json:"url"`
}

type priceTicker struct {
	FromCoin struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"fromCoin"`
	ToCoin struct {
		Symbol string `json:"symbol"`
	} `json:"toCoin"`
	UsdLast       any    `json:"usdLast"`
	Last          any    `json:"last"`
	ChangePercent any    `json:"changePercent"`
	High          any    `json:"high"`
	Low           any    `json:"low"`
	ExchangeName  string `json:"exchangeName"`
	URL           string `json:"url"`
}

type priceResponse struct {
	Data struct {
		Data []priceTicker `json:"data"`
	} `json:"data"`
}

type TokenPriceTool struct {
	BaseURL string
	Client  *HTTPClient
	Cache   cache.Cache
	TTL     time.Duration
}

func (t *TokenPriceTool) Name() string { return "get_token_price" }

func (t *TokenPriceTool) Description() string {
	return "Get the current price of a specified cryptocurrency token"
}

func (t *TokenPriceTool) Params() []Param {
	return []Param{
		{Name: "token", Type: "string", Description: "The cryptocurrency token symbol (e.g., 'btc', 'eth', 'sui')", Required: true},
	}
}

func (t *TokenPriceTool) Execute(ctx context.Context, args map[string]any) Result {
	token := strings.ToLower(getStringArg(args, "token", ""))
	if token == "" {
		return Missing([]string{"token"})
	}

	price, err := cached(ctx, t.Cache, "price:"+token, t.TTL, func() (*TokenPrice, error) {
		return t.fetch(ctx, token)
	})
	if err != nil {
		return FromError(err)
	}
	return OK(price)
}

func (t *TokenPriceTool) fetch(ctx context.Context, token string) (*TokenPrice, error) {
	var resp priceResponse
	q := url.Values{"token": {token}}
	if err := t.Client.Do(ctx, http.MethodGet, joinURL(t.BaseURL, "/api/token/price"), q, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Data) == 0 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure,
			fmt.Sprintf("No price information found for token '%s'", token))
	}

	tk := resp.Data.Data[0]
	quote := tk.ToCoin.Symbol
	if quote == "" {
		quote = "USDT"
	}
	return &TokenPrice{
		Symbol:        tk.FromCoin.Symbol,
		Name:          tk.FromCoin.Name,
		PriceUSD:      orZero(tk.UsdLast),
		Price:         orZero(tk.Last),
		QuoteCurrency: quote,
		Change24h:     orZero(tk.ChangePercent),
		High24h:       orZero(tk.High),
		Low24h:        orZero(tk.Low),
		Exchange:      tk.ExchangeName,
		URL:           tk.URL,
	}, nil
}

func orZero(v any) any {
	if v == nil {
		return 0
	}
	return v
}

//
// ============================================================
// get_news
// ============================================================
//

// NewsItem 一条新闻
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type NewsTool struct {
	Endpoint string
	Client   *HTTPClient
	Cache    cache.Cache
	TTL      time.Duration
	Limit    int
}

func (t *NewsTool) Name() string { return "get_news" }

func (t *NewsTool) Description() string {
	return "Get latest news about SUI cryptocurrency"
}

func (t *NewsTool) Params() []Param { return nil }

func (t *NewsTool) Execute(ctx context.Context, _ map[string]any) Result {
	items, err := t.Latest(ctx)
	if err != nil {
		return FromError(err)
	}
	return OK(items)
}

// Latest 返回最新的 SUI 新闻，最多 Limit 条
func (t *NewsTool) Latest(ctx context.Context) ([]NewsItem, error) {
	return cached(ctx, t.Cache, "news:sui", t.TTL, func() ([]NewsItem, error) {
		return t.fetch(ctx)
	})
}

func (t *NewsTool) fetch(ctx context.Context) ([]NewsItem, error) {
	var resp struct {
		Data []NewsItem `json:"data"`
	}
	q := url.Values{
		"lang":            {"en"},
		"coinKeys":        {"sui"},
		"withFullContent": {"true"},
	}
	if err := t.Client.Do(ctx, http.MethodGet, t.Endpoint, q, nil, &resp); err != nil {
		return nil, err
	}

	limit := t.Limit
	if limit <= 0 {
		limit = 5
	}
	items := resp.Data
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]NewsItem, 0, len(items))
	for _, it := range items {
		out = append(out, NewsItem{
			Title:       strings.TrimSpace(it.Title),
			Description: strings.TrimSpace(it.Description),
			URL:         it.URL,
		})
	}
	return out, nil
}

// FormatNews 把新闻渲染为 markdown 列表
func FormatNews(items []NewsItem) string {
	if len(items) == 0 {
		return "No news found."
	}
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, it.Title, it.URL)
		if it.Description != "" {
			fmt.Fprintf(&b, "   %s\n", it.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

//
// ============================================================
// search_web
// ============================================================
//

const (
	defaultSearchCount = 5
	maxSearchCount     = 10
)

type SearchTool struct {
	Endpoint string
	APIKey   string
	Client   *HTTPClient
}

func (t *SearchTool) Name() string { return "search_web" }

func (t *SearchTool) Description() string {
	return "Search the web for information using Brave Search API"
}

func (t *SearchTool) Params() []Param {
	return []Param{
		{Name: "query", Type: "string", Description: "The search query", Required: true},
		{Name: "count", Type: "integer", Description: "Number of results to return (max 10, default 5)"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) Result {
	query := getStringArg(args, "query", "")
	if query == "" {
		return Missing([]string{"query"})
	}
	if t.APIKey == "" {
		r := Fail("web search is not configured")
		r.Code = xerrors.CodeConfigInvalid
		return r
	}

	count := defaultSearchCount
	if n, ok := getIntArg(args, "count"); ok {
		count = int(n)
	}
	count = max(1, min(count, maxSearchCount))

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	q := url.Values{"q": {query}, "count": {strconv.Itoa(count)}}
	client := t.Client.WithHeader("X-Subscription-Token", t.APIKey)
	if err := client.Do(ctx, http.MethodGet, t.Endpoint, q, nil, &resp); err != nil {
		return FromError(err)
	}

	var b strings.Builder
	b.WriteString("Web Search Results:\n\n")
	if len(resp.Web.Results) == 0 {
		b.WriteString("No results found.")
		return OK(b.String())
	}
	for i, r := range resp.Web.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, or(r.Title, "No title"))
		fmt.Fprintf(&b, "   URL: %s\n", or(r.URL, "No URL"))
		fmt.Fprintf(&b, "   %s\n\n", or(r.Description, "No description"))
	}
	return OK(b.String())
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
