package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	creditsUser   string
	creditsAmount int
	creditsReason string
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and grant per-user credits",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print a user's credit balance and tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		acct, err := st.Account(cmd.Context(), creditsUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user=%s balance=%d tier=%s\n", acct.UserID, acct.Balance, acct.Tier)
		return nil
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to a user's account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		balance, err := st.Grant(cmd.Context(), creditsUser, creditsAmount, creditsReason)
		if err != nil {
			return err
		}
		zap.L().Info("credits: granted",
			zap.String("user_id", creditsUser),
			zap.Int("amount", creditsAmount),
			zap.Int("balance", balance),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "user=%s balance=%d\n", creditsUser, balance)
		return nil
	},
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsUser, "user", "", "user id (required)")
	_ = creditsCmd.MarkPersistentFlagRequired("user")
	creditsGrantCmd.Flags().IntVar(&creditsAmount, "amount", 0, "credits to add (required)")
	creditsGrantCmd.Flags().StringVar(&creditsReason, "reason", "grant", "ledger reason")
	_ = creditsGrantCmd.MarkFlagRequired("amount")

	creditsCmd.AddCommand(creditsBalanceCmd, creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}
