package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	xerrors "omni-agent/internal/errors"
	"omni-agent/internal/retry"
	"omni-agent/internal/schema"
	"omni-agent/internal/tools"
)

// Request 一次补全请求
type Request struct {
	Messages []schema.Message
	// Tools 为空时模型不能调用工具
	Tools []tools.Tool
	// Temperature 为 nil 时使用服务端默认值，0 会照常发送
	Temperature *float64
	MaxTokens   int
}

// Temperature 返回指向 v 的指针，便于填写 Request
func Temperature(v float64) *float64 { return &v }

// Client LLM 客户端
type Client struct {
	client      openai.Client
	model       string
	retryConfig *retry.Config
	onRetry     retry.OnRetryFunc
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithRetryConfig 设置重试配置
func WithRetryConfig(cfg *retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithRetryCallback 设置重试回调
func WithRetryCallback(fn retry.OnRetryFunc) ClientOption {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// NewClient 创建 LLM 客户端。默认不重试：超时预算由调用方的 context 控制。
func NewClient(apiKey, baseURL, model string, opts ...ClientOption) *Client {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	c := &Client{
		client:      openai.NewClient(clientOpts...),
		model:       model,
		retryConfig: &retry.Config{Enabled: false},
	}

	for _, opt := range opts {
		opt(c)
	}

	slog.Info("Initialized LLM client",
		slog.String("model", model),
		slog.String("baseURL", baseURL),
	)

	return c
}

// Generate 生成 LLM 响应。超过 ctx 截止时间返回 TIMEOUT，其余失败返回 LLM_FAILURE。
func (c *Client) Generate(ctx context.Context, req Request) (*schema.LLMResponse, error) {
	return retry.Do(ctx, c.retryConfig, func() (*schema.LLMResponse, error) {
		return c.doGenerate(ctx, req)
	}, c.onRetry)
}

func (c *Client) doGenerate(ctx context.Context, req Request) (*schema.LLMResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "chat completion timed out")
		}
		return nil, xerrors.Wrap(xerrors.CodeLLMFailure, err, "chat completion failed",
			xerrors.WithRetryable(retryableStatus(err)))
	}

	return parseResponse(completion), nil
}

// retryableStatus 4xx 中只有 408/429 值得重试，其余请求本身有问题；没有状态码时视为传输错误
func retryableStatus(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	code := apiErr.StatusCode
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// RetryConfig 返回只重试可恢复错误的配置；TIMEOUT 不重试，超时预算由调用方 context 控制
func RetryConfig(maxRetries int, initialDelay, maxDelay time.Duration, base float64) *retry.Config {
	return &retry.Config{
		Enabled:         maxRetries > 0,
		MaxRetries:      maxRetries,
		InitialDelay:    initialDelay,
		MaxDelay:        maxDelay,
		ExponentialBase: base,
		ShouldRetry:     xerrors.Retryable,
	}
}

// convertMessages 转换消息格式
func convertMessages(messages []schema.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case schema.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case schema.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))

		case schema.RoleAssistant:
			if !msg.HasToolCalls() {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}

			toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args := tc.Function.Arguments
				if args == "" {
					args = "{}"
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: args,
						},
					},
				})
			}

			assistantParam := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: toolCalls,
			}
			if msg.Content != "" {
				assistantParam.Content.OfString = param.NewOpt(msg.Content)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &assistantParam,
			})

		case schema.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

// convertTools 转换工具格式
func convertTools(list []tools.Tool) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(list))

	for _, tool := range list {
		result = append(result, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Name(),
			Description: openai.String(tool.Description()),
			Parameters:  openai.FunctionParameters(tools.Parameters(tool)),
		}))
	}

	return result
}

// parseResponse 解析 API 响应，工具参数保留原始 JSON 由编排器解析
func parseResponse(completion *openai.ChatCompletion) *schema.LLMResponse {
	if len(completion.Choices) == 0 {
		return &schema.LLMResponse{FinishReason: "unknown"}
	}

	message := completion.Choices[0].Message
	response := &schema.LLMResponse{
		Content:      message.Content,
		FinishReason: string(completion.Choices[0].FinishReason),
	}

	// 提取 thinking 内容
	for k, v := range message.JSON.ExtraFields {
		switch k {
		case "reasoning_content",
			"thoughts",
			"internal_thoughts",
			"reasoning":
			response.Thinking = v.Raw()
		}
	}

	for _, tc := range message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, schema.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	return response
}
