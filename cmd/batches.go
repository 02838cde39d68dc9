package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/report"
	"github.com/sells-group/bankscan/internal/store"
)

var (
	batchesLimit int
	exportExcel  string
	exportHTML   string
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List and export stored batches",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListBatches(cmd.Context(), batchesLimit)
		if err != nil {
			return eris.Wrap(err, "list batches")
		}
		return printSummaries(cmd.OutOrStdout(), list)
	},
}

var batchesExportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Write a stored batch as Excel and/or HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBatch(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrapf(err, "get batch %s", args[0])
		}

		excel := exportExcel
		if excel == "" && exportHTML == "" {
			excel = filepath.Join(cfg.Results.Dir, report.Filename(b.ID, "xlsx"))
		}
		return writeExports(b, excel, exportHTML)
	},
}

// openStore opens and migrates the configured store without loading the
// ledger or OCR settings.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func printSummaries(w io.Writer, list []model.BatchSummary) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no batches")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTOTAL\tSUCCEEDED\tFAILED\tMATCHED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			s.ID, s.CreatedAt.Local().Format(time.DateTime), s.Total, s.Succeeded, s.Failed, s.Matched)
	}
	return tw.Flush()
}

func init() {
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", 20, "max number of batches to list")
	batchesExportCmd.Flags().StringVar(&exportExcel, "excel", "", "write the Excel report to this path")
	batchesExportCmd.Flags().StringVar(&exportHTML, "html", "", "write the HTML report to this path")

	batchesCmd.AddCommand(batchesListCmd, batchesExportCmd)
	rootCmd.AddCommand(batchesCmd)
}
