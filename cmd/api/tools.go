package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/01moynul/creator-commerce/internal/config"
	"github.com/01moynul/creator-commerce/internal/database"
	"github.com/01moynul/creator-commerce/internal/fees"
	"github.com/01moynul/creator-commerce/internal/jobs"
)

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [entity...]",
		Short: "Print the table each logical entity resolves to in the configured store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, entity := range args {
				candidates := strings.Join(database.Candidates(entity), ",")
				table, err := a.store.Resolve(cmd.Context(), entity)
				if err != nil {
					fmt.Fprintf(out, "%s\t[%s]\tunresolved (%v)\n", entity, candidates, err)
					continue
				}
				fmt.Fprintf(out, "%s\t[%s]\t%s\n", entity, candidates, table)
			}
			return nil
		},
	}
}

func feeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee [tier] [amount]",
		Short: "Show the marketplace fee split for a sale",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			split := fees.NewEngine(cfg.FeeLookup()).Compute(amount, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "percent=%g fee=%s payout=%s\n",
				split.Percent, split.Fee.StringFixed(2), split.Payout.StringFixed(2))
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-sponsorships",
		Short: "Run the featured placement expiry sweep once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := jobs.NewSponsorshipSweeper(a.store, a.log, nil).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d sponsorships\n", n)
			return nil
		},
	}
}
