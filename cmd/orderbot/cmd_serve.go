package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/orderbot/internal/telegram"
	"github.com/user/orderbot/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orderbot daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

const pidFileName = "orderbot.pid"

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFileName)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func welcomeMessage(storeName string) string {
	return fmt.Sprintf("Olá! Você está falando com a %s. Envie uma mensagem para começar seu pedido.", storeName)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, provider)
	if err != nil {
		return err
	}
	a.start(ctx)

	slog.Info("orderbot started",
		"store", cfg.Store.Name,
		"data_dir", cfg.DataDir,
		"storage", cfg.Storage.Backend,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"menu", a.menu.Configured(),
		"pid_file", pidPath,
	)

	channels := 0

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, a.gateway, welcomeMessage(cfg.Store.Name))
		if err != nil {
			a.shutdown()
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		a.delivery.Register(telegram.AddressPrefix, adapter.Send)
		go adapter.Start(ctx)
		channels++
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		if cfg.HTTP.OutboundURL != "" {
			client := webhook.NewClient(cfg.HTTP.OutboundURL, cfg.HTTP.Secret)
			a.delivery.Register(webhook.AddressPrefix, client.Send)
		} else {
			slog.Warn("http.outbound_url not set, replies to whatsapp senders will fail")
		}
		httpServer = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           webhook.NewServer(a.gateway, a.store, a.orders, cfg.HTTP.Secret),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("webhook server error", "error", err)
			}
		}()
		channels++
	}

	if channels == 0 {
		slog.Warn("no channels enabled; set telegram.token or http.enabled")
	}

	stop := func() {
		cancel()
		if httpServer != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			httpServer.Shutdown(shutdownCtx)
			done()
		}
		a.shutdown()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// In-flight orders and pending replies finish before re-exec.
			stop()
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				return fmt.Errorf("re-exec: %w", err)
			}
		}
		slog.Info("shutting down", "signal", sig)
		stop()
		return nil
	}
}
