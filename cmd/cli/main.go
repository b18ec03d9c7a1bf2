package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// errInconsistent makes the process exit non-zero after a failed check.
var errInconsistent = errors.New("ledger is inconsistent")

type options struct {
	baseURL    string
	ledgerID   string
	timeout    time.Duration
	maxElapsed time.Duration
	asJSON     bool
}

func (o *options) client() *apiClient {
	return newAPIClient(o.baseURL, o.timeout, o.maxElapsed)
}

func (o *options) ledgerPath(suffix string) string {
	return "/api/v1/ledgers/" + url.PathEscape(o.ledgerID) + suffix
}

type entry struct {
	ID             string `json:"id"`
	OccurredOn     string `json:"occurred_on"`
	Label          string `json:"label"`
	Kind           string `json:"kind"`
	Amount         string `json:"amount"`
	RunningBalance string `json:"running_balance"`
}

type summary struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	NetBalance   string `json:"net_balance"`
	Average      string `json:"average"`
	Count        int    `json:"count"`
}

type consistency struct {
	LedgerID      string `json:"ledger_id"`
	Consistent    bool   `json:"consistent"`
	Checked       int    `json:"checked"`
	Mismatches    int    `json:"mismatches"`
	FinalBalance  string `json:"final_balance"`
	FirstMismatch *struct {
		EntryID  string `json:"entry_id"`
		Stored   string `json:"stored"`
		Expected string `json:"expected"`
	} `json:"first_mismatch"`
}

type recompute struct {
	LedgerID string `json:"ledger_id"`
	Entries  int    `json:"entries"`
	Changed  int    `json:"changed"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "cashbook-cli",
		Short:        "Cashbook CLI tool",
		Long:         `A command line interface for interacting with the Cashbook API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the Cashbook API")
	rootCmd.PersistentFlags().StringVar(&opts.ledgerID, "ledger", "default", "Ledger to operate on")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().DurationVar(&opts.maxElapsed, "retry-max-elapsed", 15*time.Second, "Give up retrying after this long")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(entriesCmd(opts), summaryCmd(opts), ledgerCmd(opts))

	return rootCmd
}

func addFilterFlags(cmd *cobra.Command, q *filterFlags) {
	cmd.Flags().StringVar(&q.start, "start", "", "Start date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&q.end, "end", "", "End date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&q.kind, "kind", "", "income or expense")
}

type filterFlags struct {
	start, end, kind string
}

func (f filterFlags) values() url.Values {
	v := url.Values{}
	if f.start != "" {
		v.Set("start", f.start)
	}
	if f.end != "" {
		v.Set("end", f.end)
	}
	if f.kind != "" {
		v.Set("kind", f.kind)
	}
	return v
}

func entriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Entry operations",
	}

	var filter filterFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List entries with running balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []entry
			if err := opts.client().do(cmd.Context(), "GET", opts.ledgerPath("/entries"), filter.values(), nil, &entries); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	addFilterFlags(listCmd, &filter)

	var add struct{ date, label, kind, amount string }
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if add.date == "" {
				add.date = time.Now().Format("2006-01-02")
			}
			body := map[string]string{
				"occurred_on": add.date,
				"label":       add.label,
				"kind":        add.kind,
				"amount":      add.amount,
			}

			var created entry
			if err := opts.client().do(cmd.Context(), "POST", opts.ledgerPath("/entries"), nil, body, &created); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s, balance %s\n", created.ID, created.RunningBalance)
			return nil
		},
	}
	addCmd.Flags().StringVar(&add.date, "date", "", "Date (YYYY-MM-DD), defaults to today")
	addCmd.Flags().StringVar(&add.label, "label", "", "Description")
	addCmd.Flags().StringVar(&add.kind, "kind", "", "income or expense")
	addCmd.Flags().StringVar(&add.amount, "amount", "", "Amount, e.g. 12.50")
	addCmd.MarkFlagRequired("label")
	addCmd.MarkFlagRequired("kind")
	addCmd.MarkFlagRequired("amount")

	removeCmd := &cobra.Command{
		Use:   "remove ID",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().do(cmd.Context(), "DELETE", opts.ledgerPath("/entries/"+url.PathEscape(args[0])), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, removeCmd)
	return cmd
}

func summaryCmd(opts *options) *cobra.Command {
	var filter filterFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and balance totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s summary
			if err := opts.client().do(cmd.Context(), "GET", opts.ledgerPath("/summary"), filter.values(), nil, &s); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Income\t%s\n", s.TotalIncome)
			fmt.Fprintf(w, "Expense\t%s\n", s.TotalExpense)
			fmt.Fprintf(w, "Balance\t%s\n", s.NetBalance)
			fmt.Fprintf(w, "Average\t%s\n", s.Average)
			fmt.Fprintf(w, "Entries\t%d\n", s.Count)
			return w.Flush()
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List ledgers holding entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			if err := opts.client().do(cmd.Context(), "GET", "/api/v1/ledgers/", nil, nil, &ids); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), ids)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report consistency
			if err := opts.client().do(cmd.Context(), "GET", opts.ledgerPath("/consistency"), nil, nil, &report); err != nil {
				return err
			}
			if opts.asJSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printConsistency(cmd.OutOrStdout(), report)
			}
			if !report.Consistent {
				return errInconsistent
			}
			return nil
		},
	}

	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rewrite every running balance of the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result recompute
			if err := opts.client().do(cmd.Context(), "POST", opts.ledgerPath("/recompute"), nil, nil, &result); err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d entries, %d changed\n", result.Entries, result.Changed)
			return nil
		},
	}

	cmd.AddCommand(listCmd, consistencyCmd, recomputeCmd)
	return cmd
}

func printEntries(out io.Writer, entries []entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tLABEL\tKIND\tAMOUNT\tBALANCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.OccurredOn, truncate(e.Label, 32), e.Kind, e.Amount, e.RunningBalance)
	}
	w.Flush()
}

func printConsistency(out io.Writer, report consistency) {
	if report.Consistent {
		fmt.Fprintf(out, "Consistency check PASSED\n")
	} else {
		fmt.Fprintf(out, "Consistency check FAILED\n")
	}
	fmt.Fprintf(out, "Checked: %d\nMismatches: %d\nFinal balance: %s\n", report.Checked, report.Mismatches, report.FinalBalance)
	if m := report.FirstMismatch; m != nil {
		fmt.Fprintf(out, "First mismatch: %s stored %s expected %s\n", m.EntryID, m.Stored, m.Expected)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
