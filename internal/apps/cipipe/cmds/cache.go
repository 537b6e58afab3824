package cipipe

import (
	"fmt"
	"os"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/moby/term"
	"github.com/spf13/cobra"
)

type cacheClearOptions struct {
	yes bool
}

func newCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the remembered previous build tag",
	}
	cmd.AddCommand(newCacheShowCmd(opts))
	cmd.AddCommand(newCacheClearCmd(opts))
	return cmd
}

func newCacheShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the tag the next build will use as layer cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts)
			if err != nil {
				return err
			}
			tag, ok, err := s.cache.Read()
			if err != nil {
				return err
			}
			if !ok {
				logs.Infof("no previous tag in %s", s.cache.Path())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), tag)
			return nil
		},
	}
}

func newCacheClearCmd(opts *globalOptions) *cobra.Command {
	clearOpts := &cacheClearOptions{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the previous build tag",
		Long: `Forget the previous build tag. The next build starts without a layer cache.
Asks for confirmation on a terminal unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts)
			if err != nil {
				return err
			}

			if !clearOpts.yes {
				if _, isTerm := term.GetFdInfo(os.Stdin); isTerm {
					confirmed, err := logs.PromptConfirm("Clear "+s.cache.Path()+"?", false)
					if err != nil {
						return err
					}
					if !confirmed {
						logs.Infof("nothing cleared")
						return nil
					}
				}
			}

			if err := s.cache.Clear(); err != nil {
				return err
			}
			logs.Infof("cleared %s", s.cache.Path())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&clearOpts.yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
