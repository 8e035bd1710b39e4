package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "handsoff",
	Short: "Warns you when you touch your face",
	Long: `Hands off watches your webcam and plays a sound when you touch your face.

Train it once with examples of you not touching and touching your face,
then run it in the background. Training examples are kept in the local
database, so they survive restarts.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("mock-camera", false, "Use a synthetic camera instead of a device")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the config named by --config and applies root flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(mustGetString(cmd, "config"))
	if err != nil {
		return nil, err
	}
	if mustGetBool(cmd, "mock-camera") {
		cfg.Camera.Mock = true
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}
