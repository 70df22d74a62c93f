package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/mboehler/aktis/internal/api"
	"github.com/mboehler/aktis/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aktis HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running aktis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "aktis.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "aktis version %s\n", version)

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if cfg.Server.APIToken == "" {
		return fmt.Errorf("no API token configured (set AKTIS_API_TOKEN or server.api_token)")
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	for _, bad := range engine.BadRules() {
		slog.Warn("matching rule disabled", "rule", bad.Rule.Name, "error", bad.Err)
	}

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:  a.store,
		Sealer: a.sealer,
		Runner: a.pipeline(engine),
		Token:  cfg.Server.APIToken,
	})

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	router.Mount("/", appHandler)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("aktis listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir))
	if err != nil {
		return fmt.Errorf("no running server found: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stopping server (PID %d): %w", pid, err)
	}
	printSuccess("Sent shutdown signal to PID %d", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	printStatus("Version", "%s", version)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Archive", "%s", cfg.Channels.ArchiveDir)
	printStatus("Intake", "%s", cfg.Channels.IntakeDir)

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(healthURL)
	if err != nil {
		printWarning("Server not running on port %d", cfg.Server.Port)
		return nil
	}
	resp.Body.Close()

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printSuccess("Server running on port %d (PID %d)", cfg.Server.Port, pid)
	} else {
		printSuccess("Server running on port %d", cfg.Server.Port)
	}
	return nil
}
