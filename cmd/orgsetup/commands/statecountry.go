package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"orgsetup/internal/executor"
)

func stateCountryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state-country",
		Short: "Country and state picklist workflows",
	}
	cmd.AddCommand(stateCountryLoadCmd(a), stateCountryValidateCmd(a))
	return cmd
}

func stateCountryLoadCmd(a *app) *cobra.Command {
	var countryCSV, stateCSV string
	cmd := &cobra.Command{
		Use:     "load",
		Short:   "Create the countries and states of two CSV files that the org does not have yet",
		Example: "  orgsetup state-country load -u myOrg -c ./countries.csv -s ./states.csv --screenshots",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := a.runOnce(executor.Request{
				Kind:        executor.KindStateCountry,
				Trigger:     "cli",
				CountryCSV:  countryCSV,
				StateCSV:    stateCSV,
				Screenshots: a.cfg.Run.Screenshots,
			})
			return a.finish(result)
		},
	}
	cmd.Flags().StringVarP(&countryCSV, "countrycsv", "c", "", "country CSV with the columns Name, IsoCode, IntVal")
	cmd.Flags().StringVarP(&stateCSV, "statecsv", "s", "", "state CSV with the columns Name, IsoCode, IntVal, CountryIso")
	cmd.Flags().BoolP("screenshots", "a", false, "capture a screenshot at every step")
	_ = cmd.MarkFlagRequired("countrycsv")
	_ = cmd.MarkFlagRequired("statecsv")
	return cmd
}

func stateCountryValidateCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that state and country picklists are enabled and open their configuration",
		Long: "Walks to the picklist configuration page, always capturing screenshots, " +
			"then asks for confirmation that the screenshots look right.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := executor.Request{Kind: executor.KindPicklistValidate, Trigger: "cli", Screenshots: true}
			if a.interactive && !yes && !a.jsonOut {
				req.Confirm = confirmScreenshots
			}
			return a.finish(a.runOnce(req))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func confirmScreenshots(_ context.Context, screenshots []string) (bool, error) {
	for _, s := range screenshots {
		fmt.Println("  " + gray(s))
	}
	prompt := promptui.Prompt{
		Label:     "Do the screenshots show the picklist configuration page",
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
