package cipipe

import (
	"io"
	"strings"

	"github.com/0xa1bed0/cipipe/internal/registry"
	"github.com/0xa1bed0/cipipe/internal/ui"
	"github.com/0xa1bed0/cipipe/internal/utils"
	"github.com/0xa1bed0/cipipe/internal/versions"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a build would tag and push, without touching docker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.detect(opts); err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), s)
		},
	}
}

func renderPlan(w io.Writer, s *session) error {
	previous, ok, err := s.cache.Read()
	if err != nil {
		return err
	}
	if !ok {
		previous = "-"
	}

	var labels []string
	for _, k := range utils.SortedKeys(s.plan.Labels) {
		labels = append(labels, k+"="+s.plan.Labels[k])
	}

	t := ui.NewTable(ui.Column{Header: "Key"}, ui.Column{Header: "Value"})
	t.AddRow("branch", orDash(s.info.Branch))
	t.AddRow("tag", orDash(s.info.Tag))
	t.AddRow("commit", orDash(s.info.Commit))
	t.AddRow("describe", orDash(s.info.Describe))
	t.AddRow("pull request", orDash(s.info.PullRequest))
	t.AddRow("kind", string(s.plan.Kind))
	t.AddRow("image", s.plan.Image)
	t.AddRow("aliases", orDash(strings.Join(s.plan.Aliases, ", ")))
	t.AddRow("labels", orDash(strings.Join(labels, ", ")))
	t.AddRow("push", pushDecision(s))
	t.AddRow("newest release", orDash(newestRelease(s.releases)))
	t.AddRow("tag cache", s.cache.Path())
	t.AddRow("previous tag", previous)

	return t.Render(w)
}

// pushDecision mirrors the checks the build job makes before pushing.
func pushDecision(s *session) string {
	switch {
	case !s.cfg.PushEnabled():
		return "no (disabled in config)"
	case s.info.IsPullRequest():
		return "no (pull request)"
	}
	if missing := registry.Missing(s.cfg.Registry, s.environ); len(missing) > 0 {
		return "no (missing " + strings.Join(missing, ", ") + ")"
	}
	return "yes"
}

func newestRelease(tags []string) string {
	var stable []string
	for _, t := range tags {
		if versions.IsStable(t) {
			stable = append(stable, t)
		}
	}
	newest, err := versions.MaxVersion(stable)
	if err != nil {
		return ""
	}
	return newest
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
