package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-agent/internal/agent"
	"omni-agent/internal/llm"
	"omni-agent/internal/schema"
	"omni-agent/internal/session"
	"omni-agent/internal/tools"
)

type cannedLLM struct{ content string }

func (c cannedLLM) Generate(context.Context, llm.Request) (*schema.LLMResponse, error) {
	return &schema.LLMResponse{Content: c.content}, nil
}

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	ag := agent.New(cannedLLM{content: "**SUI** is [fast](https://sui.io)"}, reg,
		session.NewStore(10, time.Minute, 10), agent.Options{})

	out := &bytes.Buffer{}
	return &console{agent: ag, userID: 7, model: "test-model", start: time.Now(), out: out}, out
}

func TestConsoleConversation(t *testing.T) {
	c, out := newTestConsole(t)

	assert.False(t, c.execute(context.Background(), "what is sui?"))
	assert.Contains(t, out.String(), "SUI is fast (https://sui.io)")
	assert.NotContains(t, out.String(), "<b>")
	assert.Len(t, c.history(), 2)
}

func TestConsoleCommands(t *testing.T) {
	c, out := newTestConsole(t)
	ctx := context.Background()

	c.execute(ctx, "hello")
	out.Reset()
	c.execute(ctx, "/history")
	assert.Contains(t, out.String(), "message count: 2")

	out.Reset()
	c.execute(ctx, "/reset")
	assert.Contains(t, out.String(), "Cleared 2 messages")
	assert.Empty(t, c.history())

	out.Reset()
	c.execute(ctx, "/launch")
	assert.Contains(t, out.String(), "Unknown command: /launch")

	out.Reset()
	c.execute(ctx, "/stats")
	assert.Contains(t, out.String(), "Session Statistics")

	assert.True(t, c.execute(ctx, "/exit"))
	assert.True(t, c.execute(ctx, "quit"))
	assert.False(t, c.execute(ctx, "   "))
}

func TestSessionInfo(t *testing.T) {
	c, _ := newTestConsole(t)
	c.printBanner()
	c.printSessionInfo()
	assert.Contains(t, c.out.(*bytes.Buffer).String(), "User ID: 7")
}
