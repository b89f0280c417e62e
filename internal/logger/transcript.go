package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"omni-agent/internal/schema"
)

//
// ---------------------------------------------------------
// Transcript
// ---------------------------------------------------------
//

// Transcript 记录每轮对话中的 LLM 请求、响应和工具执行结果。
// 多个用户的轮次会并发写入同一个文件，每条记录带 trace id。
// nil *Transcript 的所有方法都是空操作。
type Transcript struct {
	dir   string
	file  *os.File
	index int
	mu    sync.Mutex
}

// NewTranscript 在 dir 下创建本次运行的日志文件。dir 为空时返回 nil。
func NewTranscript(dir string) (*Transcript, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create transcript directory: %w", err)
	}

	name := fmt.Sprintf("omni_run_%s.log", time.Now().Format("20060102_150405"))
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	header := fmt.Sprintf("%s\nOmni Agent Run Log - %s\n%s\n",
		strings.Repeat("=", 80),
		time.Now().Format("2006-01-02 15:04:05"),
		strings.Repeat("=", 80),
	)
	if _, err := file.WriteString(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed writing header: %w", err)
	}

	return &Transcript{dir: dir, file: file}, nil
}

// safeJSON 格式化 JSON，失败时返回错误描述
func safeJSON(v any) []byte {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Appendf(nil, `{"error": "json marshal failed: %v"}`, err)
	}
	return j
}

func (t *Transcript) write(kind, trace string, payload any) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return fmt.Errorf("transcript closed")
	}
	t.index++

	entry := fmt.Sprintf(
		"\n%s\n[%d] %s trace=%s\nTimestamp: %s\n%s\n%s\n",
		strings.Repeat("-", 80),
		t.index,
		kind,
		trace,
		time.Now().Format("2006-01-02 15:04:05.000"),
		strings.Repeat("-", 80),
		safeJSON(payload),
	)
	if _, err := t.file.WriteString(entry); err != nil {
		return fmt.Errorf("write transcript failed: %w", err)
	}
	return t.file.Sync()
}

func dumpToolCalls(calls []schema.ToolCall) []map[string]any {
	out := make([]map[string]any, len(calls))
	for i, tc := range calls {
		out[i] = map[string]any{
			"id":   tc.ID,
			"type": tc.Type,
			"function": map[string]any{
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			},
		}
	}
	return out
}

// LogRequest 记录一次 LLM 请求，工具只记录名称
func (t *Transcript) LogRequest(trace string, userID int64, messages []schema.Message, toolNames []string) error {
	if t == nil {
		return nil
	}
	msgs := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
		}
		if len(m.ToolCalls) > 0 {
			entry["tool_calls"] = dumpToolCalls(m.ToolCalls)
		}
		msgs = append(msgs, entry)
	}
	if toolNames == nil {
		toolNames = []string{}
	}
	return t.write("REQUEST", trace, map[string]any{
		"user_id":  userID,
		"messages": msgs,
		"tools":    toolNames,
	})
}

// LogResponse 记录 LLM 响应
func (t *Transcript) LogResponse(trace string, resp *schema.LLMResponse) error {
	if t == nil || resp == nil {
		return nil
	}
	payload := map[string]any{"content": resp.Content}
	if resp.Thinking != "" {
		payload["thinking"] = resp.Thinking
	}
	if resp.FinishReason != "" {
		payload["finish_reason"] = resp.FinishReason
	}
	if len(resp.ToolCalls) > 0 {
		payload["tool_calls"] = dumpToolCalls(resp.ToolCalls)
	}
	return t.write("RESPONSE", trace, payload)
}

// LogToolResult 记录工具执行结果，result 为写入历史的 JSON 文本
func (t *Transcript) LogToolResult(trace, toolName, arguments string, success bool, result string) error {
	if t == nil {
		return nil
	}
	return t.write("TOOL_RESULT", trace, map[string]any{
		"tool_name": toolName,
		"arguments": json.RawMessage(rawOrQuoted(arguments)),
		"success":   success,
		"result":    json.RawMessage(rawOrQuoted(result)),
	})
}

func rawOrQuoted(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}

// Path 返回当前文件路径
func (t *Transcript) Path() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return ""
	}
	return t.file.Name()
}

// Close 关闭文件
func (t *Transcript) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
