package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newEnginesCmd creates the engines command
func newEnginesCmd(flags *rootFlags, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the engines and whether this host can run them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load(cmd, d)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%-22s %-8s %s", "ENGINE", "LEGACY", "SUPPORTED")))
			for _, a := range e.selector().Available() {
				marker := " "
				if a.Name == e.cfg.Engine {
					marker = "*"
				}
				fmt.Fprintf(out, "%s%-21s %-8t %s\n", marker, a.Name, a.Legacy, renderYesNo(a.Supported))
			}
			return nil
		},
	}
}
