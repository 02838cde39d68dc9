package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/model"
)

var (
	providerEnable  bool
	providerDisable bool
	providerSet     []string
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and configure OCR providers",
}

var providersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which OCR providers are enabled and configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.NewSettingsStore(cfg.Settings.Path)
		return printProviderStatus(cmd.OutOrStdout(), settings.Status())
	},
}

var providersSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Update one provider's settings",
	Example: `  bankscan providers set baidu --enable --set api_key=xxx --set secret_key=yyy
  bankscan providers set tesseract --set languages=chi_sim,eng
  bankscan providers set google --disable`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := buildPatch(providerEnable, providerDisable, providerSet)
		if err != nil {
			return err
		}

		settings := config.NewSettingsStore(cfg.Settings.Path)
		if err := settings.UpdateProvider(args[0], patch); err != nil {
			return err
		}

		id, _ := model.ParseProviderID(args[0])
		return printProviderStatus(cmd.OutOrStdout(), map[model.ProviderID]config.ProviderStatus{
			id: settings.Status()[id],
		})
	},
}

// buildPatch turns the set command's flags into a settings patch.
func buildPatch(enable, disable bool, pairs []string) (map[string]any, error) {
	if enable && disable {
		return nil, eris.New("--enable and --disable are mutually exclusive")
	}

	kv := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, eris.Errorf("invalid --set %q, want key=value", p)
		}
		kv[k] = v
	}

	patch, err := config.ParsePatch(kv)
	if err != nil {
		return nil, err
	}
	switch {
	case enable:
		patch["enabled"] = true
	case disable:
		patch["enabled"] = false
	}
	if len(patch) == 0 {
		return nil, eris.New("nothing to update: pass --enable, --disable or --set")
	}
	return patch, nil
}

func printProviderStatus(w io.Writer, status map[model.ProviderID]config.ProviderStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENABLED\tCONFIGURED\tTHRESHOLD")
	for _, id := range model.ProviderIDs() {
		s, ok := status[id]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%.2f\n", id, s.Enabled, s.Configured, s.ConfidenceThreshold)
	}
	return tw.Flush()
}

func init() {
	providersSetCmd.Flags().BoolVar(&providerEnable, "enable", false, "enable the provider")
	providersSetCmd.Flags().BoolVar(&providerDisable, "disable", false, "disable the provider")
	providersSetCmd.Flags().StringArrayVar(&providerSet, "set", nil, "setting as key=value (repeatable)")

	providersCmd.AddCommand(providersStatusCmd, providersSetCmd)
	rootCmd.AddCommand(providersCmd)
}
