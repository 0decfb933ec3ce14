package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Inspect and replay fee payment notifications",
}

var notifyResendCmd = &cobra.Command{
	Use:   "resend <tx_ref>",
	Short: "Send the receipt for a completed payment again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := commandApplication()
		if err != nil {
			return err
		}
		defer app.close()

		ctx := cmd.Context()
		record, err := app.payments.GetByTxRef(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load fee payment %s: %w", args[0], err)
		}

		event, err := feepayment.ReceiptEventFor(record)
		if err != nil {
			return err
		}

		if err := app.bus.PublishSync(ctx, event); err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}

		fmt.Printf("Receipt for %s sent (event %s)\n", record.TxRef, event.EventID())
		return nil
	},
}

var notifyHistoryCmd = &cobra.Command{
	Use:   "history <tx_ref>",
	Short: "List the gateway deliveries recorded for a payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := commandApplication()
		if err != nil {
			return err
		}
		defer app.close()

		deliveries, err := app.eventLog.ListByTxRef(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("list deliveries for %s: %w", args[0], err)
		}
		if len(deliveries) == 0 {
			fmt.Println("No deliveries recorded for", args[0])
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RECEIVED\tEVENT\tGATEWAY ID\tOUTCOME\tDETAIL")
		for _, d := range deliveries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.ReceivedAt.Format("2006-01-02 15:04:05"), d.EventType, d.GatewayTxID, d.Outcome, d.Detail)
		}
		return w.Flush()
	},
}

func commandApplication() (*application, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(cfg)
	return newApplication(cfg, logger.LoggerWrapper())
}

func init() {
	notifyCmd.AddCommand(notifyResendCmd)
	notifyCmd.AddCommand(notifyHistoryCmd)
}
