// Package credentials supplies the opaque instance URL and access token a
// browser session needs to enter the admin console.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// ErrMissing is returned when neither a static credential nor an org alias is
// configured.
var ErrMissing = errors.New("no org credentials: set --instance-url and --access-token, or --target-org")

// Credential is consumed as-is; nothing in this module inspects the token.
type Credential struct {
	InstanceURL string
	AccessToken string
}

// Validate checks that both halves are present and that the instance URL is
// absolute.
func (c Credential) Validate() error {
	if c.InstanceURL == "" || c.AccessToken == "" {
		return ErrMissing
	}
	u, err := url.Parse(c.InstanceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid instance url %q", c.InstanceURL)
	}
	return nil
}

// Source resolves a Credential.
type Source interface {
	Credential(ctx context.Context) (Credential, error)
}

// Static returns a fixed credential.
type Static Credential

func (s Static) Credential(context.Context) (Credential, error) {
	c := Credential(s)
	c.InstanceURL = strings.TrimRight(c.InstanceURL, "/")
	return c, c.Validate()
}

// Runner runs a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CLI resolves an org alias through `sf org display --json`.
type CLI struct {
	TargetOrg string
	Binary    string
	Run       Runner
}

// NewCLI returns a CLI source using the sf binary on PATH.
func NewCLI(targetOrg string) *CLI {
	return &CLI{TargetOrg: targetOrg, Binary: "sf", Run: execRunner}
}

type orgDisplay struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  struct {
		InstanceURL string `json:"instanceUrl"`
		AccessToken string `json:"accessToken"`
	} `json:"result"`
}

func (c *CLI) Credential(ctx context.Context) (Credential, error) {
	run := c.Run
	if run == nil {
		run = execRunner
	}
	bin := c.Binary
	if bin == "" {
		bin = "sf"
	}
	out, err := run(ctx, bin, "org", "display", "--target-org", c.TargetOrg, "--json")
	if err != nil && len(out) == 0 {
		return Credential{}, fmt.Errorf("resolve org %s: %w", c.TargetOrg, err)
	}

	var display orgDisplay
	if jerr := json.Unmarshal(out, &display); jerr != nil {
		if err != nil {
			return Credential{}, fmt.Errorf("resolve org %s: %w", c.TargetOrg, err)
		}
		return Credential{}, fmt.Errorf("decode org display: %w", jerr)
	}
	if display.Status != 0 {
		return Credential{}, fmt.Errorf("resolve org %s: %s", c.TargetOrg, display.Message)
	}

	cred := Credential{
		InstanceURL: strings.TrimRight(display.Result.InstanceURL, "/"),
		AccessToken: display.Result.AccessToken,
	}
	return cred, cred.Validate()
}

// FromConfig picks a static credential when both halves are set and the CLI
// otherwise.
func FromConfig(instanceURL, accessToken, targetOrg string) (Source, error) {
	switch {
	case instanceURL != "" && accessToken != "":
		return Static{InstanceURL: instanceURL, AccessToken: accessToken}, nil
	case targetOrg != "":
		return NewCLI(targetOrg), nil
	default:
		return nil, ErrMissing
	}
}
