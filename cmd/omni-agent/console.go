package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"omni-agent/internal/agent"
	"omni-agent/internal/llm"
	"omni-agent/internal/markdown"
	"omni-agent/internal/schema"
	tw "omni-agent/internal/utils/terminal"
)

const boxWidth = 58

func newConsoleCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the agent in the terminal, without Telegram",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, explicit := configPath(cmd)
			cfg, err := loadConfig(path, explicit, false)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, llm.WithRetryCallback(func(err error, attempt int) {
				fmt.Printf("\n%s⚠️  LLM call failed (attempt %d): %s%s\n", tw.BrightYellow, attempt, err.Error(), tw.Reset)
			}))
			if err != nil {
				return err
			}
			defer a.Close()

			c := &console{
				agent:     a.agent,
				userID:    userID,
				model:     cfg.LLM.Model,
				toolCount: len(a.registry.List()),
				start:     time.Now(),
				out:       os.Stdout,
			}
			c.run(cmd.Context())
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 1, "User id passed to wallet tools")
	return cmd
}

// console 本地交互会话，复用与 Telegram 相同的编排器与会话存储
type console struct {
	agent     *agent.Agent
	userID    int64
	model     string
	toolCount int
	start     time.Time
	out       io.Writer
}

func (c *console) run(ctx context.Context) {
	c.printBanner()
	c.printSessionInfo()

	exiting := false
	p := prompt.New(
		func(in string) {
			if c.execute(ctx, in) {
				exiting = true
			}
		},
		completer,
		prompt.OptionPrefix("You › "),
		prompt.OptionTitle("omni-agent"),
		prompt.OptionInputTextColor(prompt.Yellow),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return exiting }),
	)
	p.Run()

	c.printStats()
}

func completer(d prompt.Document) []prompt.Suggest {
	text := strings.TrimSpace(d.TextBeforeCursor())
	if text != "" && !strings.HasPrefix(text, "/") {
		return nil
	}
	return prompt.FilterHasPrefix([]prompt.Suggest{
		{Text: "/help", Description: "Show help message"},
		{Text: "/reset", Description: "Clear conversation history"},
		{Text: "/history", Description: "Show message count"},
		{Text: "/stats", Description: "Show session statistics"},
		{Text: "/exit", Description: "Exit program"},
	}, text, true)
}

// execute 处理一行输入，返回 true 表示退出
func (c *console) execute(ctx context.Context, in string) bool {
	input := strings.TrimSpace(in)
	if input == "" {
		return false
	}

	switch strings.ToLower(input) {
	case "/exit", "/quit", "/q", "exit", "quit", "q":
		fmt.Fprintf(c.out, "\n%s👋 Goodbye!%s\n", tw.BrightYellow, tw.Reset)
		return true
	case "/help":
		c.printHelp()
		return false
	case "/reset":
		n := len(c.history())
		c.agent.Sessions().Reset(c.userID)
		fmt.Fprintf(c.out, "%s✅ Cleared %d messages, starting new session%s\n\n", tw.Green, n, tw.Reset)
		return false
	case "/history":
		fmt.Fprintf(c.out, "\n%sCurrent session message count: %d%s\n\n", tw.BrightCyan, len(c.history()), tw.Reset)
		return false
	case "/stats":
		c.printStats()
		return false
	}
	if strings.HasPrefix(input, "/") {
		fmt.Fprintf(c.out, "%s❌ Unknown command: %s%s\n", tw.Red, input, tw.Reset)
		fmt.Fprintf(c.out, "%sType /help to see available commands%s\n\n", tw.Dim, tw.Reset)
		return false
	}

	fmt.Fprintf(c.out, "\n%sAgent%s %s›%s %sThinking...%s\n\n", tw.BrightBlue, tw.Reset, tw.Dim, tw.Reset, tw.Dim, tw.Reset)
	reply, isHTML := c.agent.HandleMessage(ctx, c.userID, input)
	if isHTML {
		reply = markdown.StripHTML(reply)
	} else {
		reply = tw.Red + reply + tw.Reset
	}
	fmt.Fprintf(c.out, "%s\n\n%s%s%s\n\n", reply, tw.Dim, strings.Repeat("─", 60), tw.Reset)
	return false
}

func (c *console) history() []schema.Message {
	h, ok := c.agent.Sessions().Peek(c.userID)
	if !ok {
		return nil
	}
	h.Lock()
	defer h.Unlock()
	return h.Messages()
}

//
// ===== Banner & Info =====
//

func (c *console) printBanner() {
	text := fmt.Sprintf("%s🤖 Omni Agent - Interactive Console%s", tw.Bold, tw.Reset)
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "%s%s╔%s╗%s\n", tw.Bold, tw.BrightCyan, strings.Repeat("═", boxWidth), tw.Reset)
	fmt.Fprintf(c.out, "%s%s║%s%s%s║%s\n",
		tw.Bold, tw.BrightCyan,
		tw.PadToWidth(text, boxWidth, tw.AlignCenter, ' '),
		tw.Bold, tw.BrightCyan, tw.Reset)
	fmt.Fprintf(c.out, "%s%s╚%s╝%s\n\n", tw.Bold, tw.BrightCyan, strings.Repeat("═", boxWidth), tw.Reset)
}

func (c *console) printSessionInfo() {
	line := func(text string) {
		fmt.Fprintf(c.out, "%s│%s %s%s│%s\n", tw.Dim, tw.Reset,
			tw.PadToWidth(tw.TruncateWithEllipsis(text, boxWidth-1), boxWidth-1, tw.AlignLeft, ' '),
			tw.Dim, tw.Reset)
	}

	fmt.Fprintf(c.out, "%s┌%s┐%s\n", tw.Dim, strings.Repeat("─", boxWidth), tw.Reset)
	line(tw.PadToWidth(tw.BrightCyan+"Session Info"+tw.Reset, boxWidth-1, tw.AlignCenter, ' '))
	fmt.Fprintf(c.out, "%s├%s┤%s\n", tw.Dim, strings.Repeat("─", boxWidth), tw.Reset)
	line(fmt.Sprintf("Model: %s", c.model))
	line(fmt.Sprintf("User ID: %d", c.userID))
	line(fmt.Sprintf("Message History: %d messages", len(c.history())))
	line(fmt.Sprintf("Available Tools: %d tools", c.toolCount))
	fmt.Fprintf(c.out, "%s└%s┘%s\n\n", tw.Dim, strings.Repeat("─", boxWidth), tw.Reset)
	fmt.Fprintf(c.out, "%sType %s/help%s for help, %s/exit%s to quit%s\n\n",
		tw.Dim, tw.BrightGreen, tw.Dim, tw.BrightGreen, tw.Dim, tw.Reset)
}

func (c *console) printHelp() {
	fmt.Fprintf(c.out, `
%s%sAvailable Commands:%s
  %s/help%s      - Show this help message
  %s/reset%s     - Clear conversation history (also: reset, clear)
  %s/history%s   - Show current session message count
  %s/stats%s     - Show session statistics
  %s/exit%s      - Exit program (also: exit, quit, q)

`,
		tw.Bold, tw.BrightYellow, tw.Reset,
		tw.BrightGreen, tw.Reset,
		tw.BrightGreen, tw.Reset,
		tw.BrightGreen, tw.Reset,
		tw.BrightGreen, tw.Reset,
		tw.BrightGreen, tw.Reset,
	)
}

func (c *console) printStats() {
	total := int(time.Since(c.start).Seconds())

	history := c.history()
	var users, assistants, toolTurns int
	for _, m := range history {
		switch m.Role {
		case schema.RoleUser:
			users++
		case schema.RoleAssistant:
			assistants++
		case schema.RoleTool:
			toolTurns++
		}
	}

	fmt.Fprintf(c.out, "\n%s%sSession Statistics:%s\n", tw.Bold, tw.BrightCyan, tw.Reset)
	fmt.Fprintf(c.out, "%s%s%s\n", tw.Dim, strings.Repeat("─", 40), tw.Reset)
	fmt.Fprintf(c.out, "  Session Duration: %02d:%02d:%02d\n", total/3600, (total%3600)/60, total%60)
	fmt.Fprintf(c.out, "  Total Messages: %d\n", len(history))
	fmt.Fprintf(c.out, "    - User Messages: %s%d%s\n", tw.BrightGreen, users, tw.Reset)
	fmt.Fprintf(c.out, "    - Assistant Replies: %s%d%s\n", tw.BrightBlue, assistants, tw.Reset)
	fmt.Fprintf(c.out, "    - Tool Calls: %s%d%s\n", tw.BrightYellow, toolTurns, tw.Reset)
	fmt.Fprintf(c.out, "  Available Tools: %d\n", c.toolCount)
	fmt.Fprintf(c.out, "%s%s%s\n\n", tw.Dim, strings.Repeat("─", 40), tw.Reset)
}
