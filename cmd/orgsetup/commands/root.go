// Package commands is the orgsetup command line.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"orgsetup/internal/config"
	"orgsetup/internal/credentials"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitUsage   = 2
	ExitMissing = 3
)

// errRunFailed is returned by a command whose run finished with status
// failed; the result was already printed.
var errRunFailed = errors.New("run failed")

type app struct {
	cfg      *config.Config
	out      io.Writer
	jsonOut  bool
	logLevel string
	cfgFile  string
	envFile  string

	// interactive is whether a human can answer prompts.
	interactive bool
}

// flagKeys binds flag names to config keys. Flags not in the set of the
// running command are skipped.
var flagKeys = map[string]string{
	"instance-url":   "org.instance_url",
	"access-token":   "org.access_token",
	"target-org":     "org.target_org",
	"driver":         "chrome.driver",
	"chrome-path":    "chrome.exec_path",
	"headless":       "chrome.headless",
	"settle-delay":   "chrome.settle_delay",
	"field-delay":    "chrome.field_delay",
	"frame-prefix":   "chrome.frame_name_prefix",
	"screenshots":    "run.screenshots",
	"screenshot-dir": "run.screenshot_dir",
	"strict":         "run.strict",
	"nats-url":       "nats.url",
	"port":           "server.port",
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	a := &app{out: os.Stdout}
	root := newRootCmd(a)
	err := root.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errRunFailed):
		return ExitFailed
	default:
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		return exitCode(err)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "orgsetup",
		Short:         "Idempotent bulk configuration of an org's Setup pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.Options{
				File:     a.cfgFile,
				EnvFile:  a.envFile,
				Flags:    cmd.Flags(),
				FlagKeys: flagKeys,
			})
			if err != nil {
				return usageError{err}
			}
			a.cfg = cfg
			a.interactive = isInteractive()
			setupLogging(a.logLevel, os.Stderr)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./orgsetup.yaml or $HOME/.orgsetup.yaml)")
	pf.StringVar(&a.envFile, "env-file", "", "dotenv file loaded before the environment (default .env)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonOut, "json", false, "print the run result as JSON")
	pf.String("instance-url", "", "org instance URL")
	pf.String("access-token", "", "org access token")
	pf.StringP("target-org", "u", "", "sf CLI alias or username to take the connection from")
	pf.String("driver", "chromedp", "browser driver: chromedp or rod")
	pf.String("chrome-path", "", "Chrome binary (default auto-discover)")
	pf.Bool("headless", true, "run Chrome headless")
	pf.Duration("settle-delay", 10*time.Second, "wait after transitions that render no marker")
	pf.Duration("field-delay", 3*time.Second, "wait between filling form fields")
	pf.String("frame-prefix", "", "name prefix of the setup content frame")
	pf.String("screenshot-dir", "./tmp", "run-scoped screenshot directory, emptied at the start of every run")
	pf.Bool("strict", false, "fail the run when any record failed or was aborted")

	root.AddCommand(stateCountryCmd(a), csvCmd(a), emailCmd(a), serveCmd(a))
	return root
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// setupLogging writes human-readable logs to a terminal and JSON lines
// everywhere else. Logs always go to w, leaving stdout to the result.
func setupLogging(level string, w *os.File) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = w
	if term.IsTerminal(int(w.Fd())) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// usageError marks errors in how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return ExitUsage
	case errors.Is(err, credentials.ErrMissing):
		return ExitMissing
	default:
		return ExitFailed
	}
}
