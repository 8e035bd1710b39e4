package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/persist"
	"github.com/ayusman/handsoff/internal/server"
	"github.com/ayusman/handsoff/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control panel",
	Long: `Start the handsoff web control panel.
The panel shows the camera preview, trains the two labels and starts or
stops watching. With --tray the same controls are available from the
system tray.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (defaults to the configured address)")
	serveCmd.Flags().Bool("tray", false, "Show a system tray menu")
}

// initApp opens the camera and restores the saved dataset. A corrupt
// dataset has already been discarded and only warrants a warning.
func initApp(ctx context.Context, c *components) error {
	err := c.app.Init(ctx)
	if errors.Is(err, persist.ErrCorruptDataset) {
		fmt.Printf("Warning: %v; please train again\n", err)
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr := mustGetString(cmd, "addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := initApp(ctx, c); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	staticDir := findStaticDir(cfg.StaticDir, cfg.DataDir)
	if staticDir != "" {
		fmt.Printf("Serving static files from: %s\n", staticDir)
	}

	srv := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		StaticDir: staticDir,
		App:       c.app,
		Store:     c.store,
	})

	shutdown := func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}

	var t *tray.Tray
	if mustGetBool(cmd, "tray") {
		t = tray.New(c.app)
		t.OnSettings(func() { openBrowser("http://" + cfg.Server.Addr) })
		t.OnQuit(shutdown)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		shutdown()
		if t != nil {
			t.Quit()
		}
	}()

	fmt.Println("Press Ctrl+C to stop")

	if t == nil {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	}

	// The tray owns the main goroutine.
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	t.Run()
	if err := <-errCh; err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// findStaticDir returns the first existing directory among configured,
// its parents up to two levels, and <dataDir>/web. It returns "" if none exist.
func findStaticDir(configured, dataDir string) string {
	candidates := []string{configured}
	if configured != "" && !filepath.IsAbs(configured) {
		candidates = append(candidates, filepath.Join("..", configured), filepath.Join("..", "..", configured))
	}
	candidates = append(candidates, filepath.Join(dataDir, "web"))

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open %s: %v", url, err)
		return
	}
	go cmd.Wait()
}
