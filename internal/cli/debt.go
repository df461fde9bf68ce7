package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/SscSPs/credit_ledger_service/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(overdueCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary <customerID>",
	Short: "Show a customer's debt summary",
	Long: `Show the reconciled debt summary of a customer. Like the API, this creates the
credit account on first access and repairs a drifted cached balance.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	summary, err := svc.GetCustomerDebt(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get summary for %s: %w", args[0], err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Customer:\t%s\n", summary.CustomerID)
	fmt.Fprintf(w, "Current debt:\t%s\n", utils.FormatVND(summary.CurrentDebt))
	fmt.Fprintf(w, "Credit limit:\t%s\n", utils.FormatVND(summary.CreditLimit))
	fmt.Fprintf(w, "Available:\t%s\n", utils.FormatVND(summary.AvailableCredit))
	fmt.Fprintf(w, "Overdue:\t%s\n", utils.FormatVND(summary.OverdueAmount))
	fmt.Fprintf(w, "Pattern:\t%s\n", summary.PaymentPattern)
	if summary.LastPaymentDate != nil {
		fmt.Fprintf(w, "Last payment:\t%s\n", summary.LastPaymentDate.Format("2006-01-02 15:04"))
	}
	if summary.IsBlocked {
		fmt.Fprintf(w, "Blocked:\t%s\n", summary.BlockReason)
	}
	return w.Flush()
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [customerID]",
	Short: "Repair cached balances from the ledger",
	Long: `Compare each cached balance with the sum of its ledger and repair the cache
where they have drifted. Without an argument every customer is processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if len(args) == 1 {
		summary, err := svc.GetCustomerDebt(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %s: current debt %s\n", summary.CustomerID, utils.FormatVND(summary.CurrentDebt))
		return nil
	}

	processed, err := svc.ReconcileAll(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d customers\n", processed)
	return err
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List overdue debt across customers",
	Args:  cobra.NoArgs,
	RunE:  runOverdue,
}

func runOverdue(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	txns, err := svc.ListOverdue(cmd.Context())
	if err != nil {
		return fmt.Errorf("list overdue: %w", err)
	}
	if len(txns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No overdue debt.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tTRANSACTION\tTYPE\tAMOUNT\tDUE")
	for _, t := range txns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.CustomerID, t.TransactionID, t.TransactionType, utils.FormatVND(t.Amount), t.DueDate.Format("2006-01-02"))
	}
	return w.Flush()
}
