package session

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"omni-agent/internal/schema"
)

const (
	// DefaultMaxTurns 每个用户保留的滚动窗口
	DefaultMaxTurns = 10
	// MinTurns 一次工具往返至少需要 user、assistant 调用和 tool 结果三条
	MinTurns = 3
)

var resetKeywords = []string{"reset", "clear", "hủy"}

// IsReset 判断消息是否要求重新开始；忽略大小写与 Unicode 组合形式差异
func IsReset(text string) bool {
	lower := strings.ToLower(norm.NFC.String(text))
	for _, kw := range resetKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// History 单个用户的对话窗口。
//
// 编排器在整轮对话期间持有锁，同一用户的轮次不会交错；数据方法假定调用方已持锁。
type History struct {
	mu       sync.Mutex
	turns    []schema.Message
	maxTurns int
}

// NewHistory 新建空窗口；maxTurns <= 0 时使用 DefaultMaxTurns，小于 MinTurns 时取 MinTurns
func NewHistory(maxTurns int) *History {
	switch {
	case maxTurns <= 0:
		maxTurns = DefaultMaxTurns
	case maxTurns < MinTurns:
		maxTurns = MinTurns
	}
	return &History{maxTurns: maxTurns}
}

func (h *History) Lock()   { h.mu.Lock() }
func (h *History) Unlock() { h.mu.Unlock() }

// Append 追加并截断到窗口大小
func (h *History) Append(turns ...schema.Message) {
	h.turns = append(h.turns, turns...)
	h.truncate()
}

// Reset 用一条记录替换全部历史
func (h *History) Reset(turn schema.Message) {
	h.turns = []schema.Message{turn}
}

// Clear 清空历史
func (h *History) Clear() {
	h.turns = nil
}

// Messages 返回副本，按时间先后
func (h *History) Messages() []schema.Message {
	out := make([]schema.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int { return len(h.turns) }

// DropOldest 丢弃最旧的一组记录：assistant 工具调用与其 tool 结果作为一组一起丢弃。
// 最新的用户消息及其后的调用和结果永远保留。返回是否丢弃了内容。
func (h *History) DropOldest() bool {
	keep := h.protectedFrom()
	if keep <= 0 {
		return false
	}
	n := 1
	if isToolCall(h.turns[0]) {
		for n < keep && h.turns[n].Role == schema.RoleTool {
			n++
		}
	}
	h.turns = append([]schema.Message(nil), h.turns[n:]...)
	h.dropOrphans()
	return true
}

// protectedFrom 返回最新用户消息的位置；没有用户消息时保护最后一次工具调用
func (h *History) protectedFrom() int {
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == schema.RoleUser {
			return i
		}
	}
	for i := len(h.turns) - 1; i >= 0; i-- {
		if isToolCall(h.turns[i]) {
			return i
		}
	}
	return len(h.turns) - 1
}

func isToolCall(m schema.Message) bool {
	return m.Role == schema.RoleAssistant && len(m.ToolCalls) > 0
}

func (h *History) truncate() {
	if over := len(h.turns) - h.maxTurns; over > 0 {
		h.turns = append([]schema.Message(nil), h.turns[over:]...)
	}
	h.dropOrphans()
}

// 窗口不能以失去调用的 tool 结果开头；全是 tool 结果时清空
func (h *History) dropOrphans() {
	i := 0
	for i < len(h.turns) && h.turns[i].Role == schema.RoleTool {
		i++
	}
	if i > 0 {
		h.turns = h.turns[i:]
	}
}
