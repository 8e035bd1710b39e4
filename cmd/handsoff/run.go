package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch for face touches until interrupted",
	Long: `Start the detection loop in the foreground. Every touch plays the alert
sound and raises a notification. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initApp(ctx, c); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	updates, unsubscribe := c.app.State().Subscribe()
	defer unsubscribe()

	if err := c.app.Run(); err != nil {
		return err
	}
	fmt.Println("Watching. Press Ctrl+C to stop")

	touched := false
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping...")
			return c.app.StopRun()
		case snap := <-updates:
			if snap.Touched && !touched {
				fmt.Printf("%s  Hands off!\n", time.Now().Format("15:04:05"))
			}
			touched = snap.Touched
		}
	}
}
