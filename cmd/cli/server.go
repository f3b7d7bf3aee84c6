package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yourusername/ytrelay-go/pkg/procutil"
)

const (
	serverBinary       = "ytrelay-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// isServerRunning reports whether baseURL answers /health with status "ok"
func isServerRunning(baseURL string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	return json.NewDecoder(resp.Body).Decode(&health) == nil && health.Status == "ok"
}

// isLocalServer reports whether baseURL points at this machine; a remote
// server is never spawned.
func isLocalServer(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	switch host := u.Hostname(); host {
	case "localhost", "":
		return true
	default:
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
}

// findServerBinary looks next to the CLI, then on PATH, then in the usual
// Go install directories.
func findServerBinary() (string, error) {
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), serverBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(serverBinary); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	for _, p := range []string{
		filepath.Join(home, "go", "bin", serverBinary),
		filepath.Join(home, ".local", "bin", serverBinary),
		filepath.Join("/usr/local/bin", serverBinary),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// startServerBackground starts the server detached from this terminal,
// listening on the port of baseURL.
func startServerBackground(baseURL string) error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(serverPath)
	cmd.Env = os.Environ()
	if u, err := url.Parse(baseURL); err == nil && u.Port() != "" {
		if _, err := strconv.Atoi(u.Port()); err == nil {
			cmd.Env = append(cmd.Env, "YTRELAY_SERVER_PORT="+u.Port())
		}
	}
	procutil.Detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// reap the child if it exits while the CLI is still running
	go cmd.Wait()

	return nil
}

// waitForServerReady polls the server until it's ready or timeout
func waitForServerReady(baseURL string) error {
	deadline := time.Now().Add(serverStartTimeout)

	for time.Now().Before(deadline) {
		if isServerRunning(baseURL) {
			return nil
		}
		time.Sleep(serverPollInterval)
	}

	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// ensureServerRunning starts a local server when none answers at serverURL
func ensureServerRunning() error {
	if isServerRunning(serverURL) {
		return nil
	}
	if !isLocalServer(serverURL) {
		return fmt.Errorf("server at %s is not responding", serverURL)
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")

	if err := startServerBackground(serverURL); err != nil {
		return err
	}
	if err := waitForServerReady(serverURL); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Server started successfully")
	return nil
}
