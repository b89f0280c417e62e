package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"omni-agent/internal/llm"
	"omni-agent/internal/retry"
	"omni-agent/internal/schema"
	"omni-agent/internal/tools"
)

// Generator 摘要所用的模型接口
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*schema.LLMResponse, error)
}

// NewsSummarizer 把新闻列表整理成用户语言的简报。
// 模型调用按固定间隔重试，全部失败后调用方回退到原始新闻列表。
type NewsSummarizer struct {
	client    Generator
	retry     *retry.Config
	timeout   time.Duration
	maxTokens int
}

// NewNewsSummarizer 新建 NewsSummarizer 实例
func NewNewsSummarizer(client Generator, attempts int, delay, timeout time.Duration, maxTokens int) *NewsSummarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NewsSummarizer{
		client:    client,
		retry:     retry.Fixed(attempts, delay),
		timeout:   timeout,
		maxTokens: maxTokens,
	}
}

// LanguageName 把 Telegram 的 language_code 转为英文语言名，无法识别时为 English
func LanguageName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil || code == "" {
		return "English"
	}
	base, _ := tag.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return "English"
}

// Summarize 返回摘要文本。失败时返回原始新闻列表与错误，调用方可以直接展示前者。
func (s *NewsSummarizer) Summarize(ctx context.Context, items []tools.NewsItem, languageCode string) (string, error) {
	raw := tools.FormatNews(items)
	if len(items) == 0 {
		return raw, nil
	}

	lang := LanguageName(languageCode)
	req := llm.Request{
		Messages: []schema.Message{
			{Role: schema.RoleSystem, Content: "You summarize cryptocurrency news for a Telegram audience."},
			{Role: schema.RoleUser, Content: buildPrompt(raw, lang)},
		},
		MaxTokens: s.maxTokens,
	}

	summary, err := retry.Do(ctx, s.retry, func() (string, error) {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		resp, err := s.client.Generate(cctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(resp.Content) == "" {
			return "", fmt.Errorf("empty summary")
		}
		return resp.Content, nil
	}, func(err error, attempt int) {
		slog.Warn("News summary failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
	})
	if err != nil {
		return raw, err
	}
	return summary, nil
}

func buildPrompt(news, lang string) string {
	return fmt.Sprintf(`
Summarize the following SUI news in %s:

%s

Rules:
- One short bullet per story, starting with "- "
- Keep the markdown links to the original articles
- Concise, no speculation, no price predictions
`, lang, news)
}
