package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/orderbot/internal/state"
	"github.com/user/orderbot/internal/types"
)

var errNotRunning = errors.New("orderbot is not running")

var stopWait time.Duration

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "wait this long for pending replies to drain")
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

// readPID returns the PID recorded in dataDir if that process is alive.
func readPID(dataDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFileName))
	if errors.Is(err, os.ErrNotExist) {
		return 0, errNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s is corrupt", pidFileName)
	}
	if !alive(pid) {
		return 0, fmt.Errorf("%w (stale pid %d)", errNotRunning, pid)
	}
	return pid, nil
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	return err == nil && proc.Signal(syscall.Signal(0)) == nil
}

func signalDaemon(dataDir string, sig syscall.Signal) (int, error) {
	pid, err := readPID(dataDir)
	if err != nil {
		return 0, err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("signal %d: %w", pid, err)
	}
	return pid, nil
}

// waitExit polls until pid is gone or timeout passes.
func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for alive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
	return true
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the bot after in-flight messages finish",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(loadConfig().DataDir, syscall.SIGTERM)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if stopWait <= 0 {
			fmt.Fprintf(out, "Sent SIGTERM to orderbot (pid %d).\n", pid)
			return nil
		}
		if !waitExit(pid, stopWait) {
			return fmt.Errorf("orderbot (pid %d) still running after %s", pid, stopWait)
		}
		fmt.Fprintf(out, "orderbot (pid %d) stopped.\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Re-exec the bot to pick up config and prompt changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(loadConfig().DataDir, syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGHUP to orderbot (pid %d).\n", pid)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the bot runs and how many sessions are open",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		out := cmd.OutOrStdout()
		if pid, err := readPID(cfg.DataDir); err != nil {
			fmt.Fprintf(out, "daemon:  %v\n", err)
		} else {
			fmt.Fprintf(out, "daemon:  running (pid %d)\n", pid)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return printSessionCounts(cmd.Context(), store, cfg.Storage.Backend, out)
	},
}

func printSessionCounts(ctx context.Context, store state.Store, backend string, out io.Writer) error {
	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var open, closed, broken int
	for _, key := range keys {
		sess, err := state.LoadSession(ctx, store, key)
		switch {
		case err != nil:
			broken++
		case sess.Status == types.StatusOpen:
			open++
		default:
			closed++
		}
	}
	fmt.Fprintf(out, "store:   %s\n", backend)
	fmt.Fprintf(out, "open:    %d\nclosed:  %d\n", open, closed)
	if broken > 0 {
		fmt.Fprintf(out, "broken:  %d\n", broken)
	}
	return nil
}
