package commands

import (
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var callList bool

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Inspect or exercise the registry's routes",
	Long: `call inspects the route table of the bundled example services.

Currently only --list is implemented: a live call against a running peer
requires an active signaling session and is driven by the "serve" side of
the harness instead.`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().BoolVar(&callList, "list", false, "list every registered route")
}

func runCall(cmd *cobra.Command, args []string) error {
	if !callList {
		return cmd.Help()
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	routes := app.GetRegisteredMethods()
	sort.Strings(routes)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Route", "Complete"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	complete := color.New(color.FgGreen).SprintFunc()
	for _, route := range routes {
		table.Append([]string{route, complete("yes")})
	}
	table.Render()

	if missing := app.MissingRoutes(); len(missing) > 0 {
		warn := color.New(color.FgYellow).SprintFunc()
		for _, route := range missing {
			cmd.Println(warn("missing handler: " + route))
		}
	}
	return nil
}
