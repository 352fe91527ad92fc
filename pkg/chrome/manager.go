package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager owns the Chrome processes started for runs, one per run.
type Manager struct {
	mutex     sync.Mutex
	processes map[string]*ChromeProcess
	firstPort int
	lastPort  int
}

// ChromeProcess is one running Chrome with its DevTools endpoint.
type ChromeProcess struct {
	Command      *exec.Cmd
	Port         int
	PID          int
	UserDataDir  string
	WebSocketURL string
}

// GlobalChromeManager is shared by every session of the process.
var GlobalChromeManager = NewManager()

// NewManager returns a manager that hands out debugging ports 9222..9322.
func NewManager() *Manager {
	return &Manager{
		processes: make(map[string]*ChromeProcess),
		firstPort: 9222,
		lastPort:  9322,
	}
}

// Start launches Chrome for runID and blocks until its DevTools endpoint
// answers. The returned process carries the browser websocket URL both
// drivers attach to.
func (cm *Manager) Start(ctx context.Context, runID string, opts LaunchOptions) (*ChromeProcess, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, exists := cm.processes[runID]; exists {
		return nil, fmt.Errorf("chrome already running for run %s", runID)
	}

	port := cm.findAvailablePort()
	if port == 0 {
		return nil, fmt.Errorf("no available port found")
	}

	chromePath := ResolveExecPath(opts.ExecPath)
	if chromePath == "" {
		return nil, fmt.Errorf("chrome not found")
	}

	userDataDir := filepath.Join(os.TempDir(), "orgsetup-chrome-"+runID)
	args := opts.Args(port, userDataDir)

	cmd := exec.Command(chromePath, args...)
	cmd.Stderr = nil
	cmd.Stdout = nil

	log.Debug().Str("run_id", runID).Str("chrome", chromePath).Strs("args", args).Msg("📋 Executing Chrome command")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	process := &ChromeProcess{
		Command:     cmd,
		Port:        port,
		PID:         cmd.Process.Pid,
		UserDataDir: userDataDir,
	}

	wsURL, err := cm.waitForChromeReady(ctx, fmt.Sprintf("http://127.0.0.1:%d", port), 15*time.Second)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("chrome failed to start properly: %w", err)
	}
	process.WebSocketURL = wsURL
	cm.processes[runID] = process

	log.Info().Str("run_id", runID).Int("pid", process.PID).Int("port", port).Msg("✅ Chrome started")
	return process, nil
}

type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// waitForChromeReady polls /json/version until it answers with the browser
// websocket URL.
func (cm *Manager) waitForChromeReady(ctx context.Context, baseURL string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: time.Second}

	for time.Now().Before(deadline) {
		if wsURL, err := fetchWebSocketURL(ctx, client, baseURL); err == nil {
			return wsURL, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	return "", fmt.Errorf("chrome debugging endpoint not ready within %v", timeout)
}

func fetchWebSocketURL(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

// Stop terminates the Chrome process of runID, gracefully first.
func (cm *Manager) Stop(runID string) {
	cm.mutex.Lock()
	process, exists := cm.processes[runID]
	delete(cm.processes, runID)
	cm.mutex.Unlock()

	if !exists {
		return
	}

	if process.Command.Process != nil {
		if err := process.Command.Process.Signal(os.Interrupt); err != nil {
			log.Warn().Err(err).Int("pid", process.PID).Msg("⚠️ Failed to interrupt Chrome")
		}
		done := make(chan error, 1)
		go func() {
			done <- process.Command.Wait()
		}()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			log.Warn().Int("pid", process.PID).Msg("🔨 Graceful shutdown timeout, force killing Chrome")
			_ = process.Command.Process.Kill()
			<-done
		}
	}

	if err := os.RemoveAll(process.UserDataDir); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("⚠️ Failed to cleanup user data dir")
	}
	log.Debug().Str("run_id", runID).Msg("🧹 Chrome cleanup completed")
}

// CleanupAll stops all Chrome instances (for shutdown)
func (cm *Manager) CleanupAll() {
	cm.mutex.Lock()
	ids := make([]string, 0, len(cm.processes))
	for id := range cm.processes {
		ids = append(ids, id)
	}
	cm.mutex.Unlock()

	if len(ids) > 0 {
		log.Info().Int("count", len(ids)).Msg("🧹 Cleaning up all Chrome instances")
	}
	for _, id := range ids {
		cm.Stop(id)
	}
}

// Running reports how many Chrome processes are alive.
func (cm *Manager) Running() int {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	return len(cm.processes)
}

// findAvailablePort finds an available port for Chrome debugging
func (cm *Manager) findAvailablePort() int {
	usedPorts := make(map[int]bool)
	for _, process := range cm.processes {
		usedPorts[process.Port] = true
	}

	for port := cm.firstPort; port <= cm.lastPort; port++ {
		if !usedPorts[port] {
			return port
		}
	}

	return 0
}

func itoa(n int) string { return strconv.Itoa(n) }
