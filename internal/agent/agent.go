package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"omni-agent/internal/agent/tokenizer"
	xerrors "omni-agent/internal/errors"
	"omni-agent/internal/llm"
	"omni-agent/internal/logger"
	"omni-agent/internal/markdown"
	"omni-agent/internal/schema"
	"omni-agent/internal/session"
	"omni-agent/internal/tools"
)

// 回复给用户的固定文案
const (
	TimeoutReply = "Sorry, the request took too long to process. Please try again or ask a simpler question."
	ErrorReply   = "Sorry, I encountered an error processing your request.\nPlease try again later or ask a different question."
	DefaultReply = "Sorry, I could not process your request."
)

// Generator 编排器依赖的模型接口，由 *llm.Client 实现
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*schema.LLMResponse, error)
}

// Options 编排器参数
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	LLMTimeout   time.Duration
	ToolTimeout  time.Duration
	// MaxToolHops 一轮中最多允许的工具往返次数
	MaxToolHops int
	// TokenLimit 大于 0 时，请求估算超出后丢弃最旧的历史
	TokenLimit int
	Transcript *logger.Transcript
}

func (o *Options) defaults() {
	if o.LLMTimeout <= 0 {
		o.LLMTimeout = 15 * time.Second
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 10 * time.Second
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 800
	}
	if o.MaxToolHops < 0 {
		o.MaxToolHops = 0
	}
}

//
// ============================================================
// Agent Structure
// ============================================================
//

// Agent 会话编排器：一条用户消息驱动一轮对话
type Agent struct {
	llm      Generator
	registry *tools.Registry
	sessions *session.Store
	opts     Options
}

func New(gen Generator, registry *tools.Registry, sessions *session.Store, opts Options) *Agent {
	opts.defaults()
	return &Agent{
		llm:      gen,
		registry: registry,
		sessions: sessions,
		opts:     opts,
	}
}

// Sessions 返回会话存储
func (a *Agent) Sessions() *session.Store { return a.sessions }

// turn 单轮对话的上下文
type turn struct {
	trace  string
	userID int64
	hist   *session.History
	log    *slog.Logger
}

//
// ============================================================
// Main Turn
// ============================================================
//

// HandleMessage 处理一条用户消息，返回最终回复以及是否为 HTML。
// 失败时返回固定的道歉文案，ok 为 false。
func (a *Agent) HandleMessage(ctx context.Context, userID int64, text string) (string, bool) {
	start := time.Now()
	t := &turn{
		trace:  uuid.NewString(),
		userID: userID,
		hist:   a.sessions.Get(userID),
	}
	t.log = slog.With(slog.String("trace", t.trace), slog.Int64("user_id", userID))

	t.hist.Lock()
	defer t.hist.Unlock()

	userTurn := schema.Message{Role: schema.RoleUser, Content: text}
	if session.IsReset(text) {
		t.hist.Reset(userTurn)
		t.log.Info("Conversation history reset")
	} else {
		t.hist.Append(userTurn)
	}

	final, err := a.run(ctx, t)
	if err != nil {
		t.log.Log(ctx, xerrors.Level(err), "Turn failed",
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.String("err", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		if xerrors.CodeOf(err) == xerrors.CodeTimeout {
			return TimeoutReply, false
		}
		return ErrorReply, false
	}

	t.log.Info("Turn complete", slog.Duration("elapsed", time.Since(start)))
	return markdown.ToHTML(final)
}

func (a *Agent) run(ctx context.Context, t *turn) (string, error) {
	hops := 0
	for {
		var offered []tools.Tool
		if hops < a.opts.MaxToolHops {
			offered = a.registry.List()
		}

		resp, err := a.generate(ctx, t, offered)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 || offered == nil {
			return a.answer(t, resp.Content), nil
		}

		if len(resp.ToolCalls) > 1 {
			t.log.Warn("Ignoring extra tool calls", slog.Int("count", len(resp.ToolCalls)))
		}
		call := resp.ToolCalls[0]

		tool, ok := a.registry.Get(call.Function.Name)
		if !ok {
			t.log.Warn("Model requested unknown tool", slog.String("tool", call.Function.Name))
			return a.answer(t, resp.Content), nil
		}

		echo := schema.Message{
			Role:      schema.RoleAssistant,
			ToolCalls: []schema.ToolCall{call},
		}
		content, prompt, prompted := a.dispatch(ctx, t, tool, call)
		t.hist.Append(echo, schema.Message{
			Role:       schema.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       tool.Name(),
		})

		if prompted {
			return a.answer(t, prompt), nil
		}
		hops++
	}
}

// answer 记录 assistant 回复并作为本轮最终文本
func (a *Agent) answer(t *turn, content string) string {
	if strings.TrimSpace(content) == "" {
		content = DefaultReply
	}
	t.hist.Append(schema.Message{Role: schema.RoleAssistant, Content: content})
	return content
}

//
// ============================================================
// LLM Call
// ============================================================
//

func (a *Agent) generate(ctx context.Context, t *turn, offered []tools.Tool) (*schema.LLMResponse, error) {
	system := schema.Message{Role: schema.RoleSystem, Content: SystemPrompt(a.opts.SystemPrompt, t.userID)}
	messages := a.fitBudget(t, system)

	names := make([]string, 0, len(offered))
	for _, tl := range offered {
		names = append(names, tl.Name())
	}
	if err := a.opts.Transcript.LogRequest(t.trace, t.userID, messages, names); err != nil {
		t.log.Warn("Transcript write failed", slog.String("err", err.Error()))
	}

	cctx, cancel := context.WithTimeout(ctx, a.opts.LLMTimeout)
	defer cancel()

	resp, err := a.llm.Generate(cctx, llm.Request{
		Messages:    messages,
		Tools:       offered,
		Temperature: llm.Temperature(a.opts.Temperature),
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}
	if err := a.opts.Transcript.LogResponse(t.trace, resp); err != nil {
		t.log.Warn("Transcript write failed", slog.String("err", err.Error()))
	}
	return resp, nil
}

// fitBudget 估算请求 token 数，超出上限时丢弃最旧的历史
func (a *Agent) fitBudget(t *turn, system schema.Message) []schema.Message {
	build := func() []schema.Message {
		return append([]schema.Message{system}, t.hist.Messages()...)
	}
	messages := build()
	tokens := tokenizer.EstimateTokens(messages)
	t.log.Debug("Request token estimate", slog.Int("tokens", tokens), slog.Int("limit", a.opts.TokenLimit))

	if a.opts.TokenLimit <= 0 {
		return messages
	}
	dropped := 0
	for tokens > a.opts.TokenLimit && t.hist.DropOldest() {
		dropped++
		messages = build()
		tokens = tokenizer.EstimateTokens(messages)
	}
	if dropped > 0 {
		t.log.Info("Dropped history over token limit", slog.Int("dropped", dropped), slog.Int("tokens", tokens))
	}
	return messages
}

// classify 统一模型错误码：超时为 TIMEOUT，其余为 LLM_FAILURE
func classify(err error) error {
	switch {
	case xerrors.CodeOf(err) == xerrors.CodeTimeout:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return xerrors.Wrap(xerrors.CodeTimeout, err, "llm call timed out")
	case xerrors.CodeOf(err) == xerrors.CodeLLMFailure:
		return err
	default:
		return xerrors.Wrap(xerrors.CodeLLMFailure, err, "llm call failed")
	}
}

//
// ============================================================
// Tool Dispatch
// ============================================================
//

// dispatch 执行单个工具调用，返回写入 tool 消息的内容。
// prompted 为 true 时工具需要用户补充输入，prompt 直接作为本轮回复。
func (a *Agent) dispatch(ctx context.Context, t *turn, tool tools.Tool, call schema.ToolCall) (content, prompt string, prompted bool) {
	name := tool.Name()
	log := t.log.With(slog.String("tool", name))

	var result tools.Result
	args, err := parseArguments(call.Function.Arguments)
	switch {
	case err != nil:
		result = tools.Fail("invalid tool arguments: %v", err)

	default:
		if tools.Declares(tool, "user_id") {
			args["user_id"] = strconv.FormatInt(t.userID, 10)
		}
		if p, ok := tool.(tools.InputPrompter); ok {
			if prompt, need := p.PromptForInput(args); need {
				log.Info("Tool needs user input")
				a.logTool(t, name, call.Function.Arguments, false, prompt)
				return prompt, prompt, true
			}
		}
		if missing := tools.RequiredMissing(tool, args); len(missing) > 0 {
			result = tools.Missing(missing)
		} else {
			result = a.execute(ctx, tool, args)
		}
	}

	if result.Success {
		log.Info("Tool succeeded")
	} else {
		log.Log(ctx, xerrors.LevelOf(result.Code), "Tool failed",
			slog.String("code", string(result.Code)),
			slog.String("err", result.Error),
		)
	}
	content = result.JSON()
	a.logTool(t, name, call.Function.Arguments, result.Success, content)
	return content, "", false
}

// execute 在工具超时内执行，panic 也折叠为失败结果
func (a *Agent) execute(ctx context.Context, tool tools.Tool, args map[string]any) (result tools.Result) {
	tctx, cancel := context.WithTimeout(ctx, a.opts.ToolTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			result = tools.Fail("tool %s panicked: %v", tool.Name(), r)
			result.Code = xerrors.CodeUnknown
		}
	}()
	return tool.Execute(tctx, args)
}

func (a *Agent) logTool(t *turn, name, arguments string, success bool, result string) {
	if err := a.opts.Transcript.LogToolResult(t.trace, name, arguments, success, result); err != nil {
		t.log.Warn("Transcript write failed", slog.String("err", err.Error()))
	}
}

// parseArguments 解析模型给出的 JSON 参数，数字保留为 json.Number
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
