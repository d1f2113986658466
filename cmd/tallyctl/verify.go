package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/internal/database"
	"tally/internal/ledger"
	"tally/internal/logger"
)

var errDiscrepancies = errors.New("rollups do not match the entry log")

func verifyCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute day and month totals from entries and report mismatches",
		Long: `verify reads every entry of one user (or of all users) and checks that
day totals, month totals and the sum of each month's days agree with the
entries. It never modifies data. The exit status is non-zero when any
mismatch is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := database.NewManager(database.NewConfig(appConfig))
			if err != nil {
				return err
			}
			defer func() {
				if err := mgr.Close(); err != nil {
					logger.Get().Warnf("database close error: %v", err)
				}
			}()

			return runVerify(cmd.Context(), ledger.NewVerifier(mgr.DB()), owner, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&owner, "user", "", "only verify this user id")
	return cmd
}

func runVerify(ctx context.Context, verifier ledger.Verifier, owner string, out io.Writer) error {
	owners := []string{owner}
	if owner == "" {
		var err error
		if owners, err = verifier.Owners(ctx); err != nil {
			return err
		}
	}

	var found []ledger.Discrepancy
	for _, id := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		ds, err := verifier.Verify(ctx, id)
		if err != nil {
			return fmt.Errorf("verify %s: %w", id, err)
		}
		found = append(found, ds...)
	}

	if len(found) == 0 {
		fmt.Fprintf(out, "checked %d user(s), no discrepancies\n", len(owners))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tKIND\tPERIOD\tFIELD\tEXPECTED\tACTUAL")
	for _, d := range found {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", d.OwnerID, d.Kind, period(d), d.Field, d.Expected, d.Actual)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	logger.Get().Errorw("rollup verification failed", "discrepancies", len(found), "users", len(owners))
	return fmt.Errorf("%w: %d discrepancies", errDiscrepancies, len(found))
}

func period(d ledger.Discrepancy) string {
	if d.Day == 0 {
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
