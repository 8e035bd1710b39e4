package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent face-touch alerts",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)

	alertsCmd.Flags().Int("limit", 20, "Maximum number of alerts to show")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	alerts, err := st.Alerts().List(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		fmt.Println("No alerts recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLABEL\tCONFIDENCE")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Label, a.Confidence)
	}
	return w.Flush()
}
