package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"omni-agent/internal/schema"
)

func TestEstimateTokensFallback(t *testing.T) {
	msgs := []schema.Message{
		{Role: schema.RoleUser, Content: strings.Repeat("a", 20)},
		{Role: schema.RoleAssistant, ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: "get_news", Arguments: "{}"},
		}}},
	}
	// 20 + 8 + 2 = 30 chars
	assert.Equal(t, 12, EstimateTokensFallback(msgs))
	assert.Zero(t, EstimateTokensFallback(nil))
}

func TestEstimateTokensGrowsWithContent(t *testing.T) {
	short := []schema.Message{{Role: schema.RoleUser, Content: "hi"}}
	long := []schema.Message{{Role: schema.RoleUser, Content: strings.Repeat("price of sui today ", 50)}}

	assert.Positive(t, EstimateTokens(short))
	assert.Greater(t, EstimateTokens(long), EstimateTokens(short))
}
