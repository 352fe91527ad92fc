package chrome

import (
	"os"
	"os/exec"
	"runtime"
)

// GetChromePath returns the path to Chrome executable
func GetChromePath() string {
	// Common Chrome paths for different systems
	var chromePaths []string

	switch runtime.GOOS {
	case "linux":
		chromePaths = []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		chromePaths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		chromePaths = []string{
			"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
			"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
		}
	}

	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Try to find in PATH
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	return "" // Not found
}

// ResolveExecPath prefers an explicitly configured binary and falls back to
// discovery.
func ResolveExecPath(configured string) string {
	if configured != "" {
		return configured
	}
	return GetChromePath()
}

// LaunchOptions controls how a run's Chrome process is started.
type LaunchOptions struct {
	ExecPath string
	Headless bool
	Width    int
	Height   int
}

// Args builds the command line for one run's Chrome process.
func (o LaunchOptions) Args(port int, userDataDir string) []string {
	width, height := o.Width, o.Height
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 1200
	}
	args := []string{
		"--remote-debugging-port=" + itoa(port),
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		// setup pages embed cross-origin frames that must share the page's process
		"--disable-features=IsolateOrigins,site-per-process",
		"--disable-site-isolation-trials",
		"--window-size=" + itoa(width) + "," + itoa(height),
	}
	if o.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	return append(args, "about:blank")
}
