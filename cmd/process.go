package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/report"
)

var (
	processExcel string
	processHTML  string
	processJSON  bool
)

var processCmd = &cobra.Command{
	Use:   "process <image>...",
	Short: "Recognize, extract and validate a batch of screenshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.NewPipeline()
		if err != nil {
			return err
		}

		b := p.Run(ctx, args)
		if err := env.Store.SaveBatch(ctx, b); err != nil {
			return eris.Wrap(err, "save batch")
		}

		excel := processExcel
		if excel == "" && processHTML == "" {
			excel = filepath.Join(cfg.Results.Dir, report.Filename(b.ID, "xlsx"))
		}
		if err := writeExports(b, excel, processHTML); err != nil {
			return err
		}

		if processJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		}
		return printBatch(cmd.OutOrStdout(), b)
	},
}

// writeExports renders b to each non-empty path, creating parent dirs.
func writeExports(b *model.Batch, excelPath, htmlPath string) error {
	exports := []struct {
		path   string
		render func(io.Writer, *model.Batch) error
	}{
		{excelPath, report.WriteExcel},
		{htmlPath, report.WriteHTML},
	}
	for _, e := range exports {
		if e.path == "" {
			continue
		}
		if err := writeFile(e.path, func(w io.Writer) error { return e.render(w, b) }); err != nil {
			return eris.Wrapf(err, "export %s", e.path)
		}
		zap.L().Info("export written", zap.String("batch_id", b.ID), zap.String("path", e.path))
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()       //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return err
	}
	return f.Close()
}

// printBatch writes a one-line-per-image summary table.
func printBatch(w io.Writer, b *model.Batch) error {
	s := b.Summary()
	fmt.Fprintf(w, "batch %s: %d images, %d succeeded, %d failed, %d matched\n\n",
		b.ID, s.Total, s.Succeeded, s.Failed, s.Matched)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tBANK\tACCOUNT\tBALANCE\tVALIDATION\tSTATUS")
	for _, r := range b.Records {
		balance := ""
		if r.Balance != nil {
			balance = fmt.Sprintf("%.2f", *r.Balance)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			filepath.Base(r.ImageReference),
			model.StringValue(r.BankName),
			model.StringValue(r.AccountNumber),
			balance,
			r.ValidationStatus,
			r.Status,
		)
	}
	return tw.Flush()
}

func init() {
	processCmd.Flags().StringVar(&processExcel, "excel", "", "write the Excel report to this path")
	processCmd.Flags().StringVar(&processHTML, "html", "", "write the HTML report to this path")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the batch as JSON")
	rootCmd.AddCommand(processCmd)
}
