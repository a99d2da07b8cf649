package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drfms/drfms/internal/config"
	"github.com/drfms/drfms/internal/gateway"
	"github.com/drfms/drfms/internal/logging"
)

func newCommandGateway(ctx context.Context) (*gateway.Service, *ledgerStack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, "text")
	stack, err := buildLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc := gateway.NewService(stack.session, stack.deployment,
		gateway.WithLogger(logger),
		gateway.WithLocation(cfg.DateLocation),
	)
	return svc, stack, nil
}

func runFundSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	svc, stack, err := newCommandGateway(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	fund, err := svc.SearchFund(ctx, args[0])
	if err != nil {
		return err
	}
	if strings.EqualFold(outputFormat, "json") {
		return outputJSON(cmd.OutOrStdout(), fund)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Fund\t%s\n", fund.FundsAddress)
	if !fund.Registered {
		fmt.Fprintf(w, "Registered\tno\n")
		return w.Flush()
	}
	fmt.Fprintf(w, "Description\t%s\n", fund.Description)
	fmt.Fprintf(w, "Manager\t%s\n", fund.Manager)
	fmt.Fprintf(w, "Created\t%s\n", fund.CreatedOnDate)
	fmt.Fprintf(w, "Funds needed\t%s\n", fund.FundsNeeded)
	fmt.Fprintf(w, "Total donated\t%s\n", fund.TotalAmount)
	return w.Flush()
}

func runUsageList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	svc, stack, err := newCommandGateway(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	records, err := svc.ListUsage(ctx, args[0])
	if err != nil {
		return err
	}
	if strings.EqualFold(outputFormat, "json") {
		return outputJSON(cmd.OutOrStdout(), records)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USED ON\tAMOUNT\tREASON")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.UsedOn, r.Amount, r.Reason)
	}
	return w.Flush()
}

func runWalletProbe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	svc, stack, err := newCommandGateway(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	stack.session.Probe(ctx)
	snap := svc.Session()
	if strings.EqualFold(outputFormat, "json") {
		return outputJSON(cmd.OutOrStdout(), map[string]string{"status": snap.State.String(), "address": snap.Address})
	}
	if snap.Address == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", snap.State)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", snap.State, snap.Address)
	return nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
