package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/alert"
	"github.com/ayusman/handsoff/internal/config"
	"github.com/ayusman/handsoff/internal/knn"
	"github.com/ayusman/handsoff/internal/persist"
	"github.com/ayusman/handsoff/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved training data and today's alerts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return printStatus(context.Background(), cfg, st)
}

// printStatus reads the saved dataset without touching the camera.
func printStatus(ctx context.Context, cfg *config.Config, st *store.Store) error {
	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("Embedding:      %s (%d dims)\n", cfg.Embedding.Backend, cfg.Embedding.Dim)

	clf := knn.New()
	found, err := persist.New(st.KV(), clf, cfg.Embedding.Dim).Load(ctx)
	switch {
	case errors.Is(err, persist.ErrCorruptDataset):
		fmt.Println("Training data:  corrupt (discarded, please train again)")
	case err != nil:
		return err
	case !found:
		fmt.Println("Training data:  none")
	default:
		fmt.Println("Training data:")
		for _, label := range []string{alert.NotTouchLabel, alert.TouchLabel} {
			fmt.Printf("  %-10s %d examples\n", label, clf.Count(label))
		}
	}

	if clf.NumClasses() >= 2 {
		fmt.Println("Ready to run")
	} else {
		fmt.Println("Train both labels before running")
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := st.Alerts().Count(ctx, midnight)
	if err != nil {
		return fmt.Errorf("count alerts: %w", err)
	}
	fmt.Printf("Alerts today:   %d\n", today)
	return nil
}
