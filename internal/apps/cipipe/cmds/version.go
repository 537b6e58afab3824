package cipipe

import (
	"fmt"

	"github.com/0xa1bed0/cipipe/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of cipipe",
		Long:  `Display the current version of cipipe.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get())
		},
	}

	return cmd
}
