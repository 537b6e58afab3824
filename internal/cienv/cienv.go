// Package cienv figures out what is being built: branch, tag, commit, and
// whether the build is a pull request. CI provider variables win; the local
// git checkout fills the gaps.
package cienv

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Info describes the build being run.
type Info struct {
	Branch      string
	Tag         string
	Commit      string
	PullRequest string
	BuildNumber string
	JobID       string
	CI          bool

	// Describe is the `git describe --tags --always` equivalent for Commit.
	Describe string
}

// IsPullRequest follows Travis semantics: the variable holds the PR number or
// the literal "false".
func (i Info) IsPullRequest() bool {
	return i.PullRequest != "" && i.PullRequest != "false"
}

// IsReleaseBranch reports a non-PR build of the given branch.
func (i Info) IsReleaseBranch(name string) bool {
	return !i.IsPullRequest() && i.Branch == name
}

// vars lists the provider variables we understand. CIPIPE_* overrides are
// checked first so any CI system can be driven explicitly.
type vars struct {
	Branch      string `env:"CIPIPE_BRANCH"`
	Tag         string `env:"CIPIPE_TAG"`
	Commit      string `env:"CIPIPE_COMMIT"`
	PullRequest string `env:"CIPIPE_PULL_REQUEST"`

	TravisBranch      string `env:"TRAVIS_BRANCH"`
	TravisPRBranch    string `env:"TRAVIS_PULL_REQUEST_BRANCH"`
	TravisTag         string `env:"TRAVIS_TAG"`
	TravisCommit      string `env:"TRAVIS_COMMIT"`
	TravisPullRequest string `env:"TRAVIS_PULL_REQUEST"`
	TravisBuildNumber string `env:"TRAVIS_BUILD_NUMBER"`
	TravisJobID       string `env:"TRAVIS_JOB_ID"`

	GitHubRefName   string `env:"GITHUB_REF_NAME"`
	GitHubRefType   string `env:"GITHUB_REF_TYPE"`
	GitHubHeadRef   string `env:"GITHUB_HEAD_REF"`
	GitHubSHA       string `env:"GITHUB_SHA"`
	GitHubEventName string `env:"GITHUB_EVENT_NAME"`
	GitHubRunNumber string `env:"GITHUB_RUN_NUMBER"`
	GitHubRunID     string `env:"GITHUB_RUN_ID"`

	CI bool `env:"CI"`
}

// Environ returns the process environment as a map, with values from the
// dotenv file added underneath: real environment variables always win. A
// missing dotenv file is not an error.
func Environ(dotenvPath string) (map[string]string, error) {
	out := map[string]string{}

	if dotenvPath != "" {
		fileVars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			for k, v := range fileVars {
				out[k] = v
			}
			logs.Debugf("loaded %d variables from %s", len(fileVars), dotenvPath)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", dotenvPath, err)
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Detect builds Info from environ, falling back to the git repository in
// repoDir for anything the environment does not provide.
func Detect(environ map[string]string, repoDir string) (Info, error) {
	var v vars
	if err := env.ParseWithOptions(&v, env.Options{Environment: environ}); err != nil {
		return Info{}, fmt.Errorf("parse CI environment: %w", err)
	}

	// on Travis pull requests TRAVIS_BRANCH is the target branch
	info := Info{
		Branch:      first(v.Branch, v.TravisPRBranch, v.TravisBranch, v.GitHubHeadRef, githubBranch(v)),
		Tag:         first(v.Tag, v.TravisTag, githubTag(v)),
		Commit:      first(v.Commit, v.TravisCommit, v.GitHubSHA),
		PullRequest: first(v.PullRequest, v.TravisPullRequest, githubPullRequest(v)),
		BuildNumber: first(v.TravisBuildNumber, v.GitHubRunNumber),
		JobID:       first(v.TravisJobID, v.GitHubRunID),
		CI:          v.CI,
	}

	repo, err := OpenRepo(repoDir)
	if err != nil {
		if info.Branch == "" || info.Commit == "" {
			logs.Warnf("no git metadata available (%v); branch and commit come from the environment only", err)
		}
		info.Describe = shortCommit(info.Commit)
		return info, nil
	}

	head, err := repo.Head()
	if err != nil {
		return info, fmt.Errorf("read git HEAD: %w", err)
	}
	if info.Branch == "" {
		info.Branch = head.Branch
	}
	if info.Commit == "" {
		info.Commit = head.Commit
	}
	if info.Tag == "" && !info.IsPullRequest() {
		info.Tag = head.ExactTag
	}

	info.Describe, err = repo.Describe(info.Commit)
	if err != nil {
		logs.Warnf("git describe failed for %s: %v", info.Commit, err)
		info.Describe = shortCommit(info.Commit)
	}

	return info, nil
}

func githubBranch(v vars) string {
	if v.GitHubRefType == "branch" {
		return v.GitHubRefName
	}
	return ""
}

func githubTag(v vars) string {
	if v.GitHubRefType == "tag" {
		return v.GitHubRefName
	}
	return ""
}

func githubPullRequest(v vars) string {
	if v.GitHubEventName == "" {
		return ""
	}
	if strings.HasPrefix(v.GitHubEventName, "pull_request") {
		// GITHUB_REF_NAME is "<number>/merge" for pull requests
		number, _, _ := strings.Cut(v.GitHubRefName, "/")
		return number
	}
	return "false"
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
