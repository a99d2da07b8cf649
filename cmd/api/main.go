package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	outputFormat   string
	commandTimeout time.Duration
)

// rootCmd serves the HTTP API when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "drfms",
	Short: "Relief funds ledger gateway",
	Long: `drfms connects donors and fund managers to the relief funds contract.
It serves the HTTP API by default and offers read-only commands for
operators to inspect funds, usage history and the signing agent.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Inspect relief funds",
}

var fundSearchCmd = &cobra.Command{
	Use:   "search <funds-address>",
	Short: "Show the fund registered at an address",
	Args:  cobra.ExactArgs(1),
	RunE:  runFundSearch,
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect how fund money was used",
}

var usageListCmd = &cobra.Command{
	Use:   "list <funds-address>",
	Short: "List usage records of a fund in ledger order",
	Long: `List usage records of a fund in ledger order. Listing goes through the
signing agent's account, so the agent may ask the user to connect first.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsageList,
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect the signing agent",
}

var walletProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report whether the signing agent has an authorized account",
	RunE:  runWalletProbe,
}

func init() {
	rootCmd.AddCommand(serveCmd, fundCmd, usageCmd, walletCmd)
	fundCmd.AddCommand(fundSearchCmd)
	usageCmd.AddCommand(usageListCmd)
	walletCmd.AddCommand(walletProbeCmd)

	for _, cmd := range []*cobra.Command{fundSearchCmd, usageListCmd, walletProbeCmd} {
		cmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
		cmd.Flags().DurationVar(&commandTimeout, "timeout", 30*time.Second, "Timeout for ledger and agent calls")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
