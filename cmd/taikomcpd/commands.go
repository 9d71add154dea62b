package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"TaikoMCP-Chain/internal/agent"
	"TaikoMCP-Chain/internal/api"
	"TaikoMCP-Chain/internal/auth"
	"TaikoMCP-Chain/internal/wallet"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := []api.Option{
			api.WithGuard(auth.NewTokenGuard(a.cfg.Auth.Tokens)),
			api.WithShutdownTimeout(a.cfg.Server.ShutdownTimeout.Duration),
		}
		if a.cfg.Metrics.Enabled {
			opts = append(opts, api.WithMetrics(a.metrics, a.cfg.Metrics.Path))
		}
		server := api.NewServer(a.cfg.Server.Address, a.agent, opts...)

		logger.L().Info("taikomcpd listening", "address", a.cfg.Server.Address, "active_chain", a.cfg.Web3.ActiveChain)
		if err := server.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var transferReq wallet.TransferRequest

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send native ETH or an ERC20 token from the configured wallet",
	Example: `  taikomcpd transfer --to siddesh.eth --amount 0.1
  taikomcpd transfer --chain taikoHekla --token USDC --to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, func(ctx context.Context, ag *agent.Agent) (*agent.ActionResult, error) {
			return ag.Transfer(ctx, transferReq)
		})
	},
}

var balanceReq wallet.BalanceRequest

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the native or token balance of an address or name (default: the signer wallet)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			balanceReq.Address = args[0]
		}
		return runAction(cmd, func(ctx context.Context, ag *agent.Agent) (*agent.ActionResult, error) {
			if balanceReq.Address == "" {
				balanceReq.Address = ag.SignerAddress(ctx)
			}
			return ag.GetBalance(ctx, balanceReq)
		})
	},
}

var analyticsReq agent.AnalyticsRequest

var analyticsCmd = &cobra.Command{
	Use:   "analytics <contract>",
	Short: "Summarise a contract's activity over the last 1, 7 and 30 days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analyticsReq.ContractAddress = args[0]
		return runAction(cmd, func(ctx context.Context, ag *agent.Agent) (*agent.ActionResult, error) {
			return ag.GetAnalytics(ctx, analyticsReq)
		})
	},
}

var chatIntent agent.Intent

var chatCmd = &cobra.Command{
	Use:   "chat <action> <message...>",
	Short: "Extract parameters from a message with the LLM and run the action",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatIntent.Action = args[0]
		chatIntent.Message = strings.Join(args[1:], " ")
		chatIntent.Source = agent.SourceDirect
		return runAction(cmd, func(ctx context.Context, ag *agent.Agent) (*agent.ActionResult, error) {
			return ag.Handle(ctx, chatIntent)
		})
	},
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List the supported chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		chains := a.agent.Chains()
		if jsonOutput {
			return printJSON(chains)
		}
		fmt.Printf("%-12s %-8s %-28s %s\n", "Name", "ID", "RPC", "Explorer")
		fmt.Printf("------------------------------------------------------------------------\n")
		for _, c := range chains {
			fmt.Printf("%-12s %-8d %-28s %s\n", c.Name, c.ID, c.RPCURL(), c.ExplorerURL)
		}
		return nil
	},
}

// runAction 装配智能体并执行单个动作，失败时仍打印面向用户的文本。
func runAction(cmd *cobra.Command, fn func(context.Context, *agent.Agent) (*agent.ActionResult, error)) error {
	a, err := loadApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := fn(cmd.Context(), a.agent)
	if res != nil {
		if jsonOutput {
			if printErr := printJSON(res); printErr != nil {
				return printErr
			}
		} else {
			fmt.Println(res.Text)
		}
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	transferCmd.Flags().StringVar(&transferReq.Chain, "chain", web3.ChainTaiko, "chain to send on (taiko, taikoHekla)")
	transferCmd.Flags().StringVar(&transferReq.ToAddress, "to", "", "recipient address or name")
	transferCmd.Flags().StringVar(&transferReq.Amount, "amount", "", "amount in whole units; empty sends the full token balance")
	transferCmd.Flags().StringVar(&transferReq.Token, "token", "", "token symbol or address; empty means native ETH")
	transferCmd.Flags().StringVar(&transferReq.Data, "data", "", "hex calldata attached to a native transfer")
	_ = transferCmd.MarkFlagRequired("to")

	balanceCmd.Flags().StringVar(&balanceReq.Chain, "chain", web3.ChainTaiko, "chain to query")
	balanceCmd.Flags().StringVar(&balanceReq.Token, "token", "", "token symbol or address; empty means native ETH")

	analyticsCmd.Flags().StringVar(&analyticsReq.Chain, "chain", web3.ChainTaiko, "chain the contract lives on")

	chatCmd.Flags().StringVar(&chatIntent.Defaults.Chain, "chain", "", "chain used when the message names none")

	rootCmd.AddCommand(serveCmd, transferCmd, balanceCmd, analyticsCmd, chatCmd, chainsCmd)
}
