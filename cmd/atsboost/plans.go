package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"atsboost/internal/plans"
)

var plansJSON bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Print the subscription plan catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := plans.All()
		if plansJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(catalog)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tDURATION\tFEATURES")
		for _, p := range catalog {
			name := p.Name
			if p.Recommended {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t₹%d\t%s\t%s\n", p.ID, name, p.Price, p.Duration, strings.Join(p.Features, "; "))
		}
		return w.Flush()
	},
}

func init() {
	plansCmd.Flags().BoolVar(&plansJSON, "json", false, "print as JSON")
}
