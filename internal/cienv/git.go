package cienv

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repo is a read-only view of the checkout being built.
type Repo struct {
	repo *git.Repository
}

// HeadInfo is what HEAD points at.
type HeadInfo struct {
	// Branch is the short branch name, or "HEAD" when detached.
	Branch   string
	Commit   string
	ExactTag string
}

// OpenRepo opens the repository containing dir, searching parent directories.
func OpenRepo(dir string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Repo{repo: r}, nil
}

func (r *Repo) Head() (HeadInfo, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return HeadInfo{}, err
	}

	info := HeadInfo{
		Branch: "HEAD",
		Commit: ref.Hash().String(),
	}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}

	tags, err := r.tagsByCommit()
	if err != nil {
		return HeadInfo{}, err
	}
	if names := tags[ref.Hash()]; len(names) > 0 {
		info.ExactTag = names[0]
	}
	return info, nil
}

// Tags returns every tag name in the repository.
func (r *Repo) Tags() ([]string, error) {
	byCommit, err := r.tagsByCommit()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, names := range byCommit {
		out = append(out, names...)
	}
	sort.Strings(out)
	return out, nil
}

// tagsByCommit maps commit hashes to the tags pointing at them, peeling
// annotated tags. Names per commit are sorted for stable output.
func (r *Repo) tagsByCommit() (map[plumbing.Hash][]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer iter.Close()

	out := map[plumbing.Hash][]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		tagObj, err := r.repo.TagObject(target)
		switch {
		case err == nil:
			commit, err := tagObj.Commit()
			if err != nil {
				// tags on trees or blobs are not interesting here
				return nil
			}
			target = commit.Hash
		case errors.Is(err, plumbing.ErrObjectNotFound):
			// lightweight tag
		default:
			return err
		}
		out[target] = append(out[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve tags: %w", err)
	}
	for h := range out {
		sort.Strings(out[h])
	}
	return out, nil
}

// Describe mimics `git describe --tags --always`: the tag on commit itself,
// otherwise "<tag>-<n>-g<short>" where n counts the commits reachable from
// commit but not from the tag, picking the tag with the smallest n. Ties go
// to the newer tagged commit, then to the first tag name. Without any
// reachable tag the abbreviated hash is returned.
func (r *Repo) Describe(commit string) (string, error) {
	start, err := r.repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", commit, err)
	}

	tags, err := r.tagsByCommit()
	if err != nil {
		return "", err
	}

	short := start.String()[:7]
	if names := tags[*start]; len(names) > 0 {
		return names[0], nil
	}

	history, err := r.ancestors(*start)
	if err != nil {
		return "", err
	}

	var (
		best     string
		bestDist = -1
		bestWhen time.Time
	)
	for hash, names := range tags {
		if _, ok := history[hash]; !ok {
			continue
		}
		tagged, err := r.ancestors(hash)
		if err != nil {
			return "", err
		}
		dist := len(history) - len(tagged)
		when := history[hash]
		if bestDist < 0 || dist < bestDist ||
			(dist == bestDist && (when.After(bestWhen) || (when.Equal(bestWhen) && names[0] < best))) {
			best, bestDist, bestWhen = names[0], dist, when
		}
	}
	if bestDist < 0 {
		return short, nil
	}
	return fmt.Sprintf("%s-%d-g%s", best, bestDist, short), nil
}

// ancestors returns every commit reachable from head, head included, with its
// committer time.
func (r *Repo) ancestors(head plumbing.Hash) (map[plumbing.Hash]time.Time, error) {
	seen := map[plumbing.Hash]time.Time{}
	stack := []plumbing.Hash{head}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[h]; ok {
			continue
		}

		c, err := r.repo.CommitObject(h)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", h, err)
		}
		seen[h] = c.Committer.When
		stack = append(stack, c.ParentHashes...)
	}
	return seen, nil
}
