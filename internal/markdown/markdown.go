// Package markdown 把模型输出的 markdown 子集转换为 Telegram HTML 或纯文本
package markdown

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
)

// Rule 一步改写
type Rule func(string) string

func replace(pattern, repl string) Rule {
	re := regexp.MustCompile(pattern)
	return func(s string) string {
		return re.ReplaceAllString(s, repl)
	}
}

// Renderer 按顺序应用规则
type Renderer struct {
	HTML  []Rule
	Plain []Rule
}

// 顺序有意义：代码块必须先于行内代码处理
var htmlRules = []Rule{
	html.EscapeString,
	replace(`(?m)^##\s+(.*?)$`, `<b>${1}</b>`),
	replace(`(?m)^#\s+(.*?)$`, `<b><u>${1}</u></b>`),
	replace(`\*\*(.*?)\*\*`, `<b>${1}</b>`),
	replace(`\*(.*?)\*`, `<b>${1}</b>`),
	replace(`_(.*?)_`, `<i>${1}</i>`),
	replace("(?s)```(.*?)```", `<pre>${1}</pre>`),
	replace("`(.*?)`", `<code>${1}</code>`),
	replace(`\[(.*?)\]\((.*?)\)`, `<a href="${2}">${1}</a>`),
	replace(`(?m)^-\s+(.*?)$`, `• ${1}`),
	replace(`(?m)^(\d+)\.\s+(.*?)$`, `${1}. ${2}`),
}

var plainRules = []Rule{
	replace(`\*\*(.*?)\*\*`, `${1}`),
	replace(`\*(.*?)\*`, `${1}`),
	replace(`_(.*?)_`, `${1}`),
	replace("(?s)```(.*?)```", `${1}`),
	replace("`(.*?)`", `${1}`),
	replace(`\[(.*?)\]\((.*?)\)`, `${1} (${2})`),
}

var std = &Renderer{HTML: htmlRules, Plain: plainRules}

// ToHTML 使用默认规则渲染
func ToHTML(text string) (string, bool) { return std.ToHTML(text) }

// ToPlain 使用默认规则去掉 markdown 标记
func ToPlain(text string) string { return std.ToPlain(text) }

// ToHTML 返回 Telegram 可接受的 HTML 与 true；任一规则失败时返回纯文本与 false
func (r *Renderer) ToHTML(text string) (out string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("markdown to html failed, falling back to plain text",
				slog.String("err", fmt.Sprint(rec)))
			out, ok = r.ToPlain(text), false
		}
	}()

	out = text
	for _, rule := range r.HTML {
		out = rule(out)
	}
	return out, true
}

// ToPlain 不会失败，规则出错时原样返回
func (r *Renderer) ToPlain(text string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("markdown to plain text failed",
				slog.String("err", fmt.Sprint(rec)))
			out = text
		}
	}()

	out = text
	for _, rule := range r.Plain {
		out = rule(out)
	}
	return out
}

var (
	anchorTag = regexp.MustCompile(`<a href="(.*?)">(.*?)</a>`)
	styleTag  = regexp.MustCompile(`</?(?:b|i|u|code|pre)>`)
)

// StripHTML 把 ToHTML 的输出还原为可读纯文本，用于 Telegram 拒绝 HTML 时重发
func StripHTML(s string) string {
	s = anchorTag.ReplaceAllString(s, "${2} (${1})")
	s = styleTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}
