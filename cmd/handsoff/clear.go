package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/knn"
	"github.com/ayusman/handsoff/internal/persist"
	"github.com/ayusman/handsoff/internal/store"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all training examples",
	Long: `Remove the saved training examples for both labels.
Use --alerts to also delete the alert history.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	clearCmd.Flags().Bool("alerts", false, "Also delete the alert history")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if !mustGetBool(cmd, "yes") && !confirmAction("Delete all training examples? [y/N] ") {
		fmt.Println("Aborted")
		return nil
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return clearData(context.Background(), cfg, st, mustGetBool(cmd, "alerts"))
}

// clearData works on the store alone so the camera is never opened.
func clearData(ctx context.Context, cfg *config.Config, st *store.Store, alerts bool) error {
	if err := persist.New(st.KV(), knn.New(), cfg.Embedding.Dim).Clear(ctx); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}
	fmt.Println("Training examples removed")

	if alerts {
		if err := st.Alerts().DeleteAll(ctx); err != nil {
			return fmt.Errorf("clear alerts: %w", err)
		}
		fmt.Println("Alert history removed")
	}
	return nil
}
