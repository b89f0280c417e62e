// Package terminal 控制台文本宽度计算与填充：CJK 宽字符和 emoji 占两列，忽略 ANSI 颜色码
package terminal

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Align 填充方向
type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

func runeWidth(r rune) int {
	switch {
	case unicode.Is(unicode.Mn, r), r == '\u200d', r == '\ufe0f':
		return 0
	case isEmoji(r):
		return 2
	}

	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF) || r == 0x231B || r == 0x23F3
}

// StripANSI 去掉颜色控制码
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// CalculateDisplayWidth 返回文本在终端中占用的列数
func CalculateDisplayWidth(s string) int {
	w := 0
	for _, r := range StripANSI(s) {
		w += runeWidth(r)
	}
	return w
}

// TruncateWithEllipsis 把文本截断到 maxWidth 列以内，被截断时追加省略号（默认 "…"）。
// 截断后的文本不保留颜色码。
func TruncateWithEllipsis(text string, maxWidth int, ellipsis ...string) string {
	if maxWidth <= 0 {
		return ""
	}

	e := "…"
	if len(ellipsis) > 0 && ellipsis[0] != "" {
		e = ellipsis[0]
	}

	if CalculateDisplayWidth(text) <= maxWidth {
		return text
	}

	plain := StripANSI(text)
	eWidth := CalculateDisplayWidth(e)
	if maxWidth <= eWidth {
		return truncateWidth(plain, maxWidth)
	}
	return truncateWidth(plain, maxWidth-eWidth) + e
}

func truncateWidth(s string, max int) string {
	w := 0
	var b strings.Builder
	for _, r := range s {
		rw := runeWidth(r)
		if w+rw > max {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String()
}

// PadToWidth 用 fill 把文本补足到 target 列
func PadToWidth(text string, target int, align Align, fill rune) string {
	pad := target - CalculateDisplayWidth(text)
	if pad <= 0 {
		return text
	}

	switch align {
	case AlignRight:
		return repeat(fill, pad) + text
	case AlignCenter:
		left := pad / 2
		return repeat(fill, left) + text + repeat(fill, pad-left)
	default:
		return text + repeat(fill, pad)
	}
}

func repeat(r rune, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(string(r), n)
}
