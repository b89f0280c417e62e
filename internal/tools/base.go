package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	xerrors "omni-agent/internal/errors"
)

// Param 工具参数声明
type Param struct {
	Name        string
	Type        string // "string" | "integer" | "number" | "boolean"
	Description string
	Required    bool
	Enum        []string
}

// Result 工具执行结果。工具永远不向调用方返回 error，失败也折叠成 Result。
type Result struct {
	Success       bool
	Data          any
	Error         string
	MissingFields []string
	// UpstreamStatus 上游返回非 2xx 时的 HTTP 状态码
	UpstreamStatus int
	// Code 失败原因，只用于日志级别，不写入 tool 消息
	Code xerrors.Code
}

// OK 成功结果
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail 参数类失败结果
func Fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...), Code: xerrors.CodeInvalidArgument}
}

// FromError 将 error 转换为失败结果，统一错误类型只取 message 与上游状态码
func FromError(err error) Result {
	e, ok := xerrors.From(err)
	if !ok {
		return Result{Error: err.Error(), Code: xerrors.CodeUnknown}
	}
	msg := e.Message()
	if cause := e.Unwrap(); cause != nil {
		msg += ": " + cause.Error()
	}
	status, _ := strconv.Atoi(e.Meta(xerrors.MetaStatus))
	return Result{Error: msg, UpstreamStatus: status, Code: e.Code()}
}

// Missing 缺少必填字段的结果
func Missing(fields []string) Result {
	return Result{
		Error:         "missing required fields: " + strings.Join(fields, ", "),
		MissingFields: fields,
		Code:          xerrors.CodeInvalidArgument,
	}
}

type resultJSON struct {
	Success        bool     `json:"success"`
	Data           any      `json:"data,omitempty"`
	Error          string   `json:"error,omitempty"`
	MissingFields  []string `json:"missing_fields,omitempty"`
	UpstreamStatus int      `json:"upstream_status,omitempty"`
}

// JSON 序列化为写入 tool 消息的文本
func (r Result) JSON() string {
	b, err := json.Marshal(resultJSON{
		Success:        r.Success,
		Data:           r.Data,
		Error:          r.Error,
		MissingFields:  r.MissingFields,
		UpstreamStatus: r.UpstreamStatus,
	})
	if err != nil {
		b, _ = json.Marshal(resultJSON{Success: false, Error: "unserializable tool result: " + err.Error()})
	}
	return string(b)
}

// Tool 工具接口
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Execute(ctx context.Context, args map[string]any) Result
}

// InputPrompter 由需要向用户追问输入的工具实现。
// 返回 ok=true 时编排器直接把 prompt 回复给用户，不执行工具，也不再调用模型。
type InputPrompter interface {
	PromptForInput(args map[string]any) (prompt string, ok bool)
}

// Parameters 转换为 JSON Schema（OpenAI function parameters 格式）
func Parameters(t Tool) map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range t.Params() {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// RequiredMissing 按声明顺序返回缺失的必填参数
func RequiredMissing(t Tool, args map[string]any) []string {
	var missing []string
	for _, p := range t.Params() {
		if p.Required && isBlank(args[p.Name]) {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// Declares 判断工具是否声明了某个参数
func Declares(t Tool, name string) bool {
	for _, p := range t.Params() {
		if p.Name == name {
			return true
		}
	}
	return false
}

func isBlank(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	default:
		return false
	}
}

//
// ============================================================
// Registry
// ============================================================
//

// Registry 工具注册表，保持注册顺序
type Registry struct {
	tools map[string]Tool
	order []string
}

var validTypes = map[string]bool{"string": true, "integer": true, "number": true, "boolean": true}

// NewRegistry 创建注册表并校验每个工具的声明，任何问题都在启动时报错
func NewRegistry(list ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(list))}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 注册工具
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return xerrors.New(xerrors.CodeConfigInvalid, "tool with empty name")
	}
	if _, dup := r.tools[name]; dup {
		return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("duplicate tool %q", name))
	}
	seen := map[string]bool{}
	for _, p := range t.Params() {
		if p.Name == "" || seen[p.Name] {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("tool %q: empty or duplicate parameter %q", name, p.Name))
		}
		seen[p.Name] = true
		if !validTypes[p.Type] {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("tool %q: parameter %q has unsupported type %q", name, p.Name, p.Type))
		}
		if len(p.Enum) > 0 && p.Type != "string" {
			return xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("tool %q: enum on non-string parameter %q", name, p.Name))
		}
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Require 校验注册表恰好覆盖期望的工具集合
func (r *Registry) Require(names ...string) error {
	want := make(map[string]bool, len(names))
	var missing, extra []string
	for _, n := range names {
		want[n] = true
		if _, ok := r.tools[n]; !ok {
			missing = append(missing, n)
		}
	}
	for _, n := range r.order {
		if !want[n] {
			extra = append(extra, n)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return xerrors.New(xerrors.CodeConfigInvalid,
			fmt.Sprintf("tool set mismatch: missing [%s] unexpected [%s]",
				strings.Join(missing, ", "), strings.Join(extra, ", ")))
	}
	return nil
}

// Get 获取工具
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List 按注册顺序列出工具
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Names 按注册顺序列出工具名
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
