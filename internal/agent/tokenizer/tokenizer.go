package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"omni-agent/internal/schema"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// EstimateTokens 估算消息历史的 token 数量。
// 优先使用 tiktoken-go 进行编码统计，若不可用则回退到字符长度估算。
// 对每条消息，统计 Content 与 ToolCalls 的 token 数，并加上元数据开销。
func EstimateTokens(messages []schema.Message) int {
	e := encoding()
	if e == nil {
		return EstimateTokensFallback(messages)
	}

	total := 0
	for _, m := range messages {
		total += countTokens(e, m.Content)
		for _, tc := range m.ToolCalls {
			total += countTokens(e, tc.Function.Name)
			total += countTokens(e, tc.Function.Arguments)
		}
		// 每条消息加约 4 个 token 的元数据开销
		total += 4
	}
	return total
}

// countTokens 用编码器统计文本的 token 数。
// 若文本为空则返回 0。
func countTokens(e *tiktoken.Tiktoken, text string) int {
	if text == "" {
		return 0
	}
	return len(e.Encode(text, nil, nil))
}

// EstimateTokensFallback 在无法使用编码器时，采用字符长度除以 2.5 的方式估算 token 数量。
func EstimateTokensFallback(messages []schema.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Function.Name) + len(tc.Function.Arguments)
		}
	}
	// 按 2.5 字符约等于 1 token 进行估算
	return int(float64(total) / 2.5)
}
