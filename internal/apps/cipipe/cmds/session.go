package cipipe

import (
	"os"
	"path/filepath"

	appconfig "github.com/0xa1bed0/cipipe/internal/apps/cipipe/config"
	"github.com/0xa1bed0/cipipe/internal/cienv"
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/pipeline"
	"github.com/0xa1bed0/cipipe/internal/runtime"
	"github.com/0xa1bed0/cipipe/internal/tagcache"
	"github.com/0xa1bed0/cipipe/internal/tagging"
	"github.com/spf13/cobra"
)

// session is everything a command knows about the project it runs against.
type session struct {
	rt      *runtime.Runtime
	project *runtime.Project
	cfg     *pipeline.Config
	cache   *tagcache.Cache

	// set by detect
	environ  map[string]string
	info     cienv.Info
	releases []string
	plan     tagging.Plan
}

// loadSession resolves the project, its pipeline config and its tag cache.
func loadSession(cmd *cobra.Command, opts *globalOptions) (*session, error) {
	rt := runtime.FromContextOrPanic(cmd.Context())

	path := opts.projectPath
	if path == "" {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = pwd
	}

	project, err := rt.ResolveProject(path)
	if err != nil {
		return nil, err
	}
	logs.Debugf("project %s at %s", project.Name(), project.Path())

	cfg, err := pipeline.Load(opts.configPath, project.Path())
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.Resolve(cfg.Cache.Dir)
	if cacheDir == "" {
		cacheDir = appconfig.DefaultTagCacheDir()
	}
	cache, err := tagcache.Open(cacheDir, cfg.Cache.TagFile)
	if err != nil {
		return nil, err
	}

	return &session{rt: rt, project: project, cfg: cfg, cache: cache}, nil
}

// detect reads the CI environment and computes the tag plan.
func (s *session) detect(opts *globalOptions) error {
	envFile := opts.envFile
	if envFile == "" {
		envFile = filepath.Join(s.project.Path(), ".env")
	}

	environ, err := cienv.Environ(envFile)
	if err != nil {
		return err
	}
	info, err := cienv.Detect(environ, s.project.Path())
	if err != nil {
		return err
	}

	if repo, err := cienv.OpenRepo(s.project.Path()); err == nil {
		if s.releases, err = repo.Tags(); err != nil {
			logs.Debugf("could not list git tags: %v", err)
		}
	}

	s.environ = environ
	s.info = info
	s.plan = tagging.New(s.cfg, info, s.releases)
	return nil
}
