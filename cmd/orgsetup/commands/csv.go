package commands

import (
	"github.com/spf13/cobra"

	"orgsetup/internal/executor"
)

func csvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Work with picklist CSV files",
	}
	cmd.AddCommand(csvCheckCmd(a))
	return cmd
}

// csvCheckCmd runs the validation gate alone. It never opens a browser and
// needs no org.
func csvCheckCmd(a *app) *cobra.Command {
	var countryCSV, stateCSV string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a country and state CSV pair without touching the org",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := executor.New(executorConfig(a.cfg)).Run(cmd.Context(), executor.Request{
				Kind:       executor.KindStateCountry,
				Trigger:    "cli",
				CountryCSV: countryCSV,
				StateCSV:   stateCSV,
				CheckOnly:  true,
			})
			return a.finish(result)
		},
	}
	cmd.Flags().StringVarP(&countryCSV, "countrycsv", "c", "", "country CSV")
	cmd.Flags().StringVarP(&stateCSV, "statecsv", "s", "", "state CSV")
	_ = cmd.MarkFlagRequired("countrycsv")
	_ = cmd.MarkFlagRequired("statecsv")
	return cmd
}
