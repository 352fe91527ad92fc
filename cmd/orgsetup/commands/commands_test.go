package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsetup/internal/config"
	"orgsetup/internal/credentials"
	"orgsetup/internal/executor"
	"orgsetup/internal/progress"
	"orgsetup/internal/reconcile"
)

func run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	return &out, root.Execute()
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestCSVCheckOK(t *testing.T) {
	dir := t.TempDir()
	countries := writeCSV(t, dir, "countries.csv", "Name,IsoCode,IntVal\nCanada,CA,39\n")
	states := writeCSV(t, dir, "states.csv", "Name,IsoCode,IntVal,CountryIso\nOntario,ON,1,CA\n")

	out, err := run(t, "csv", "check", "-c", countries, "-s", states, "--json")
	require.NoError(t, err)

	var result executor.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, executor.StatusOK, result.Status)
	require.NotEmpty(t, result.Events)
	assert.Equal(t, "Validated 1 countries and 1 states", result.Events[0].Message)
}

func TestCSVCheckMismatchFails(t *testing.T) {
	dir := t.TempDir()
	countries := writeCSV(t, dir, "countries.csv", "Name,IsoCode,IntVal\nCanada,CA,39\n")
	states := writeCSV(t, dir, "states.csv", "Name,IsoCode,IntVal,CountryIso\nParis,PAR,1,FR\n")

	out, err := run(t, "csv", "check", "-c", countries, "-s", states)
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out.String(), "failed")
	assert.Contains(t, out.String(), "countries without states: CA")
}

func TestCSVCheckRequiresFlags(t *testing.T) {
	_, err := run(t, "csv", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "countrycsv")
}

func TestLoadWithoutCredentials(t *testing.T) {
	dir := t.TempDir()
	countries := writeCSV(t, dir, "countries.csv", "Name,IsoCode,IntVal\nCanada,CA,39\n")
	states := writeCSV(t, dir, "states.csv", "Name,IsoCode,IntVal,CountryIso\nOntario,ON,1,CA\n")
	t.Setenv("ORGSETUP_ORG_TARGET_ORG", "")
	t.Setenv("ORGSETUP_ORG_INSTANCE_URL", "")
	t.Setenv("ORGSETUP_ORG_ACCESS_TOKEN", "")

	out, err := run(t, "state-country", "load", "-c", countries, "-s", states, "--json")
	assert.ErrorIs(t, err, errRunFailed)

	var result executor.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, credentials.ErrMissing.Error(), result.Error)
}

func TestEmailRejectsAccessLevel(t *testing.T) {
	_, err := run(t, "email", "deliverability", "--access-level", "9")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitUsage, exitCode(usageError{errors.New("bad")}))
	assert.Equal(t, ExitMissing, exitCode(credentials.ErrMissing))
	assert.Equal(t, ExitFailed, exitCode(errors.New("boom")))
}

func TestExecutorConfig(t *testing.T) {
	cfg := &config.Config{
		Chrome: config.ChromeConfig{
			Driver:          "rod",
			ExecPath:        "/opt/chrome",
			Headless:        true,
			ViewportWidth:   800,
			ViewportHeight:  600,
			SettleDelay:     2 * time.Second,
			FieldDelay:      time.Second,
			BannerTimeout:   5 * time.Second,
			FrameNamePrefix: "vfFrameId_",
		},
		Org: config.OrgConfig{InstanceURL: "https://example.my.salesforce.com", AccessToken: "tok"},
		Run: config.RunConfig{ScreenshotDir: "/tmp/shots", Strict: true},
	}

	got := executorConfig(cfg)
	assert.Equal(t, "rod", got.Browser.Driver)
	assert.Equal(t, "/opt/chrome", got.Browser.Launch.ExecPath)
	assert.Equal(t, 800, got.Browser.Launch.Width)
	assert.Equal(t, 2*time.Second, got.Setup.SettleDelay)
	assert.Equal(t, 5*time.Second, got.Reconcile.BannerTimeout)
	assert.Equal(t, "/tmp/shots", got.ScreenshotDir)
	assert.True(t, got.Strict)
	assert.IsType(t, credentials.Static{}, got.Credentials)

	cfg.Org = config.OrgConfig{}
	assert.Nil(t, executorConfig(cfg).Credentials)
}

func TestPrintSummary(t *testing.T) {
	started := time.Now()
	r := &executor.Result{
		RunID:   "run-1",
		Kind:    executor.KindStateCountry,
		Status:  executor.StatusOK,
		Created: 1,
		Skipped: 1,
		Records: []reconcile.Record{
			{Entity: progress.EntityCountry, Key: "CA", Name: "Canada", Outcome: progress.OutcomeSkipped},
			{Entity: progress.EntityState, Key: "CA/ON", Name: "Ontario", Outcome: progress.OutcomeCreated},
		},
		Screenshots: []string{"tmp/state_country_home_CA.png"},
		Started:     started,
		Finished:    started.Add(3 * time.Second),
	}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, r, false))
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "CA/ON")
	assert.Contains(t, out, "created 1, updated 0, skipped 1, failed 0, aborted 0 in 3s")
	assert.Contains(t, out, "1 screenshots in tmp")
}

func TestEmailFlagSpellings(t *testing.T) {
	cmd := emailDeliverabilityCmd(&app{})
	require.NoError(t, cmd.Flags().Parse([]string{"--bouncemgmt=false", "--return-bounce-to-sender", "--enforceemailprivacy"}))

	bounce, err := cmd.Flags().GetBool("bounce-mgmt")
	require.NoError(t, err)
	assert.False(t, bounce)
	ret, err := cmd.Flags().GetBool("return-bounce-to-sender")
	require.NoError(t, err)
	assert.True(t, ret)
	privacy, err := cmd.Flags().GetBool("enforce-email-privacy")
	require.NoError(t, err)
	assert.True(t, privacy)
}
