package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/alert"
)

var trainCmd = &cobra.Command{
	Use:   "train <not_touch|touched>",
	Short: "Record training examples for one label",
	Long: `Capture examples from the camera and store them under a label.

Train "not_touch" while sitting normally, then "touched" while touching
your face. Training a label again adds to its existing examples.

Example:
  handsoff train not_touch
  handsoff train touched`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{alert.NotTouchLabel, alert.TouchLabel},
	RunE:      runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	label := args[0]

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

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(fmt.Sprintf("Training %s", label)),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	updates, unsubscribe := c.app.State().Subscribe()
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for snap := range updates {
			if snap.Training == label {
				bar.Set(int(snap.Progress))
			}
		}
	}()

	res, err := c.app.Train(ctx, label)
	unsubscribe()
	<-progressDone
	if err != nil {
		bar.Exit()
		fmt.Println()
		return fmt.Errorf("train %s: %w", label, err)
	}
	bar.Finish()

	fmt.Printf("\nRecorded %d examples for %s (%d total) in %s\n",
		res.Examples, res.Label, res.Total, res.Duration.Round(100*time.Millisecond))
	if c.app.Classifier().NumClasses() < 2 {
		fmt.Println("Train the other label before running.")
	}
	return nil
}
