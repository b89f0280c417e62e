// Command omni-agent 运行 Telegram 机器人，或在终端中直接与同一个编排器对话
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tw "omni-agent/internal/utils/terminal"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s❌ %v%s\n", tw.Red, err, tw.Reset)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "omni-agent",
		Short:         "Blockchain and cryptocurrency assistant for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "Config file path (default: "+defaultConfigPath+" when present)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConsoleCmd())
	return cmd
}

// configPath 返回 --config 的值；未指定时使用默认路径，且文件可缺省
func configPath(cmd *cobra.Command) (path string, explicit bool) {
	path, _ = cmd.Flags().GetString("config")
	if path != "" {
		return path, true
	}
	return defaultConfigPath, false
}
