package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/zpw/internal/client"
	"github.com/matheus3301/zpw/internal/session"
	"github.com/matheus3301/zpw/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides ZPW_SESSION and config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := session.SocketPath(sessionName)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		if err := startDaemon(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if err := tui.NewApp(c, c).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon reports whether a daemon answers GetStatus on the socket.
func probeDaemon(socketPath string) bool {
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Status(ctx)
	return err == nil
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	zpwd := filepath.Join(filepath.Dir(executable), "zpwd")
	if _, err := os.Stat(zpwd); err != nil {
		zpwd = "zpwd"
	}

	cmd := exec.Command(zpwd, "--session", sessionName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
