package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDisplayWidth(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Hello", 5},
		{"🤖 Agent", 8},
		{"你好世界", 8},
		{"Hello 你好", 10},
		{"e\u0301", 1},
		{"\033[1m\033[36mBold Cyan\033[0m", 9},
		{"\033[31m🤖\033[0m", 2},
		{"⏳ Processing...", 16},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CalculateDisplayWidth(tc.in), "%q", tc.in)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "Hello", TruncateWithEllipsis("Hello", 5))
	assert.Equal(t, "Hello W…", TruncateWithEllipsis("Hello World", 8))
	assert.Equal(t, "", TruncateWithEllipsis("Hello", 0))
	assert.Equal(t, "H", TruncateWithEllipsis("Hello", 1))

	r := TruncateWithEllipsis("你好世界", 5)
	assert.LessOrEqual(t, CalculateDisplayWidth(r), 5)
	assert.Contains(t, r, "…")

	r = TruncateWithEllipsis("\033[31mHello World\033[0m", 8)
	assert.NotContains(t, r, "\033[")
	assert.Equal(t, "Hello W…", r)

	assert.Equal(t, "Hel...", TruncateWithEllipsis("Hello World", 6, "..."))
}

func TestPadToWidth(t *testing.T) {
	assert.Equal(t, "Hello     ", PadToWidth("Hello", 10, AlignLeft, ' '))
	assert.Equal(t, "     Hello", PadToWidth("Hello", 10, AlignRight, ' '))
	assert.Equal(t, "   Test   ", PadToWidth("Test", 10, AlignCenter, ' '))
	assert.Equal(t, "--Hi---", PadToWidth("Hi", 7, AlignCenter, '-'))
	assert.Equal(t, 10, CalculateDisplayWidth(PadToWidth("你好", 10, AlignLeft, ' ')))
	assert.Equal(t, "toolong", PadToWidth("toolong", 3, AlignLeft, ' '))
}
