package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

// rootCmd 是 taikomcpd 的根命令，不带子命令时打印帮助。
var rootCmd = &cobra.Command{
	Use:           "taikomcpd",
	Short:         "Taiko wallet agent: transfers, balances and contract analytics",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// main 是 TaikoMCP 守护进程与命令行的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file (defaults to $TAIKOMCP_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print the full action result as JSON")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "taikomcpd: %v\n", err)
		os.Exit(1)
	}
}
