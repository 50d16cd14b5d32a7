package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Eursukkul/booking-microservice/carpool-service/internal/app"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/dto"
	"github.com/spf13/cobra"
)

type engineFunc func() (*app.Engine, func(), error)

func newRootCmd(open engineFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "settlectl",
		Short:         "Carpool settlement operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(payoutsCmd(open))
	root.AddCommand(routesCmd(open))
	return root
}

func payoutsCmd(open engineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Generate, execute and fail driver payouts",
	}
	cmd.AddCommand(payoutsGenerateCmd(open))
	cmd.AddCommand(payoutsExecuteCmd(open))
	cmd.AddCommand(payoutsFailCmd(open))
	return cmd
}

func payoutsGenerateCmd(open engineFunc) *cobra.Command {
	var period, key string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Aggregate paid payments of a period into payouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			payouts, err := eng.Payouts.GeneratePayouts(cmd.Context(), auth.System, period, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.ToPayoutResponses(payouts))
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Settlement period, YYYY-MM")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Replay-safe key for this run")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func payoutsExecuteCmd(open engineFunc) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "execute [payout-id]",
		Short: "Send a pending payout through PayPal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			payout, err := eng.Payouts.ExecutePaypalPayout(cmd.Context(), auth.System, args[0], key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.ToPayoutResponse(payout))
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Replay-safe key for this run")
	return cmd
}

func payoutsFailCmd(open engineFunc) *cobra.Command {
	var reason, key string
	cmd := &cobra.Command{
		Use:   "fail [payout-id]",
		Short: "Mark a pending payout as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			payout, err := eng.Payouts.FailPayout(cmd.Context(), auth.System, args[0], reason, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.ToPayoutResponse(payout))
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the payout failed")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Replay-safe key for this run")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func routesCmd(open engineFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Route maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Finalize routes whose trip has elapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := eng.Routes.AutoFinalizeElapsed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "finalized %d routes\n", n)
			return nil
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
