package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-agent/internal/schema"
)

func user(text string) schema.Message {
	return schema.Message{Role: schema.RoleUser, Content: text}
}

func TestIsReset(t *testing.T) {
	assert.True(t, IsReset("please RESET"))
	assert.True(t, IsReset("Clear the chat"))
	assert.True(t, IsReset("HỦY"))
	// decomposed form of "hủy"
	assert.True(t, IsReset("hu\u0309y"))
	assert.False(t, IsReset("what is the price of SUI?"))
}

func TestHistoryNeverExceedsWindow(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 37; i++ {
		h.Append(user(fmt.Sprintf("m%d", i)))
		require.LessOrEqual(t, h.Len(), 10)
	}
	msgs := h.Messages()
	assert.Equal(t, "m27", msgs[0].Content)
	assert.Equal(t, "m36", msgs[9].Content)
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(10)
	h.Append(user("a"), user("b"), user("c"))

	h.Reset(user("reset please"))
	require.Equal(t, 1, h.Len())
	assert.Equal(t, "reset please", h.Messages()[0].Content)
}

func TestTruncateDropsOrphanToolTurns(t *testing.T) {
	h := NewHistory(4)
	h.Append(
		user("q1"),
		schema.Message{Role: schema.RoleAssistant, ToolCalls: []schema.ToolCall{{ID: "c1"}}},
		schema.Message{Role: schema.RoleTool, ToolCallID: "c1", Content: "{}"},
		schema.Message{Role: schema.RoleAssistant, Content: "a1"},
	)
	require.Equal(t, 4, h.Len())

	// pushes out q1 and the assistant call, which would orphan the tool turn
	h.Append(user("q2"), schema.Message{Role: schema.RoleAssistant, Content: "a2"})

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "a1", msgs[0].Content)
}

func TestDropOldest(t *testing.T) {
	h := NewHistory(10)
	h.Append(
		schema.Message{Role: schema.RoleAssistant, ToolCalls: []schema.ToolCall{{ID: "c1"}}},
		schema.Message{Role: schema.RoleTool, ToolCallID: "c1"},
		user("latest"),
	)

	require.True(t, h.DropOldest())
	require.Equal(t, 1, h.Len())
	assert.Equal(t, "latest", h.Messages()[0].Content)
	assert.False(t, h.DropOldest())
}

func echo(id string) schema.Message {
	return schema.Message{Role: schema.RoleAssistant, ToolCalls: []schema.ToolCall{{ID: id}}}
}

func toolTurn(id string) schema.Message {
	return schema.Message{Role: schema.RoleTool, ToolCallID: id, Content: "{}"}
}

func TestDropOldestKeepsPendingToolHop(t *testing.T) {
	h := NewHistory(10)
	h.Append(user("q1"), schema.Message{Role: schema.RoleAssistant, Content: "a1"})
	h.Append(user("q2"), echo("c2"), toolTurn("c2"))

	for h.DropOldest() {
	}

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "c2", msgs[1].ToolCalls[0].ID)
	assert.Equal(t, "c2", msgs[2].ToolCallID)
}

func TestDropOldestRemovesCallWithItsResults(t *testing.T) {
	h := NewHistory(10)
	h.Append(echo("c1"), toolTurn("c1"), schema.Message{Role: schema.RoleAssistant, Content: "a1"}, user("q2"))

	require.True(t, h.DropOldest())
	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a1", msgs[0].Content)
}

func TestDropOldestWithoutUserTurnKeepsLastCall(t *testing.T) {
	h := NewHistory(10)
	h.Append(schema.Message{Role: schema.RoleAssistant, Content: "a0"}, echo("c1"), toolTurn("c1"))

	require.True(t, h.DropOldest())
	assert.False(t, h.DropOldest())
	msgs := h.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.RoleAssistant, msgs[0].Role)
	assert.Equal(t, schema.RoleTool, msgs[1].Role)
}

func TestSmallWindowNeverLeavesLoneToolTurn(t *testing.T) {
	h := NewHistory(1)
	h.Append(user("q1"))
	h.Append(echo("c1"), toolTurn("c1"))

	msgs := h.Messages()
	require.Len(t, msgs, MinTurns)
	assert.Equal(t, schema.RoleUser, msgs[0].Role)
	assert.Equal(t, schema.RoleTool, msgs[2].Role)
}

func TestTruncateDropsTrailingOrphan(t *testing.T) {
	h := NewHistory(3)
	h.Append(user("q1"), echo("c1"), toolTurn("c1"), toolTurn("c1"), toolTurn("c1"))

	// 窗口只剩三条 tool 结果，全部失去了调用
	assert.Zero(t, h.Len())
}

func TestMessagesIsACopy(t *testing.T) {
	h := NewHistory(10)
	h.Append(user("a"))
	msgs := h.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "a", h.Messages()[0].Content)
}

func TestStoreIsolatesUsers(t *testing.T) {
	s := NewStore(10, time.Hour, 10)

	a := s.Get(1)
	a.Append(user("from 1"))
	b := s.Get(2)

	assert.Equal(t, 0, b.Len())
	assert.Same(t, a, s.Get(1))
	assert.Equal(t, 2, s.Len())
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s := NewStore(2, time.Hour, 10)
	s.Get(1)
	s.Get(2)
	s.Get(1)
	s.Get(3)

	_, ok := s.Peek(2)
	assert.False(t, ok)
	_, ok = s.Peek(1)
	assert.True(t, ok)
}

func TestStoreReset(t *testing.T) {
	s := NewStore(10, time.Hour, 10)
	assert.False(t, s.Reset(5))

	s.Get(5).Append(user("x"), user("y"))
	assert.True(t, s.Reset(5))
	assert.Equal(t, 0, s.Get(5).Len())
}

func TestStoreConcurrentGet(t *testing.T) {
	s := NewStore(100, time.Hour, 10)
	var wg sync.WaitGroup
	seen := make([]*History, 50)
	for i := range seen {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = s.Get(42)
		}(i)
	}
	wg.Wait()
	for _, h := range seen {
		assert.Same(t, seen[0], h)
	}
}
