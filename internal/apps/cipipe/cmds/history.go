package cipipe

import (
	"fmt"
	"io"
	"time"

	appconfig "github.com/0xa1bed0/cipipe/internal/apps/cipipe/config"
	"github.com/0xa1bed0/cipipe/internal/runtime"
	"github.com/0xa1bed0/cipipe/internal/state"
	"github.com/0xa1bed0/cipipe/internal/ui"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	limit int
	runID string
}

func newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent job runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtime.FromContextOrPanic(cmd.Context())

			store, err := state.OpenRunStore(rt.Ctx(), appconfig.StateDBFile())
			if err != nil {
				return err
			}
			defer store.Close()

			var records []state.JobRecord
			if opts.runID != "" {
				records, err = store.ListRun(rt.Ctx(), opts.runID)
			} else {
				records, err = store.List(rt.Ctx(), opts.limit)
			}
			if err != nil {
				return err
			}

			return renderHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "number of records to show, 0 for all")
	cmd.Flags().StringVar(&opts.runID, "run", "", "show only the jobs of this run")

	return cmd
}

func renderHistory(w io.Writer, records []state.JobRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}

	t := ui.NewTable(
		ui.Column{Header: "Run", MaxWidth: 8},
		ui.Column{Header: "Job"},
		ui.Column{Header: "Status"},
		ui.Column{Header: "Started"},
		ui.Column{Header: "Duration", Align: ui.AlignRight},
		ui.Column{Header: "Image", MaxWidth: 60},
		ui.Column{Header: "Error", MaxWidth: 60},
	)
	for _, r := range records {
		t.AddRow(
			r.RunID,
			r.Job,
			string(r.Status),
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Second).String(),
			r.Image,
			r.Error,
		)
	}
	return t.Render(w)
}
