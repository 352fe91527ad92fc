package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"orgsetup/internal/executor"
	"orgsetup/internal/reconcile"
)

func emailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Email administration workflows",
	}
	cmd.AddCommand(emailDeliverabilityCmd(a))
	return cmd
}

func emailDeliverabilityCmd(a *app) *cobra.Command {
	opts := reconcile.DefaultEmailOptions()
	cmd := &cobra.Command{
		Use:   "deliverability",
		Short: "Set the email deliverability access level and bounce handling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.AccessLevel {
			case reconcile.AccessNone, reconcile.AccessSystemOnly, reconcile.AccessAllEmail:
			default:
				return usageError{fmt.Errorf("--access-level must be 0, 1 or 2, got %q", opts.AccessLevel)}
			}
			email := opts
			return a.finish(a.runOnce(executor.Request{
				Kind:        executor.KindEmailDeliverability,
				Trigger:     "cli",
				Email:       &email,
				Screenshots: a.cfg.Run.Screenshots,
			}))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.AccessLevel, "access-level", opts.AccessLevel, "0 no access, 1 system email only, 2 all email")
	f.BoolVarP(&opts.BounceManagement, "bounce-mgmt", "b", opts.BounceManagement, "activate bounce management")
	f.BoolVarP(&opts.ReturnBounceToSender, "return-bounce-to-sender", "r", opts.ReturnBounceToSender, "return bounced email to sender")
	f.BoolVarP(&opts.EnforceEmailPrivacy, "enforce-email-privacy", "p", opts.EnforceEmailPrivacy, "enforce email privacy")
	f.SetNormalizeFunc(emailFlagAliases)
	f.BoolP("screenshots", "a", false, "capture a screenshot at every step")
	return cmd
}

// legacyEmailFlags maps the unhyphenated sfdx spellings onto the flags.
var legacyEmailFlags = map[string]string{
	"bouncemgmt":           "bounce-mgmt",
	"returnbouncetosender": "return-bounce-to-sender",
	"enforceemailprivacy":  "enforce-email-privacy",
}

func emailFlagAliases(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := legacyEmailFlags[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}
