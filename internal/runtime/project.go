package runtime

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/0xa1bed0/cipipe/internal/utils"
)

// Project is the checkout the pipeline runs against.
type Project struct {
	name string
	path string
}

func resolveProject(p string) (*Project, error) {
	path, err := utils.ResolveDirStrict(p)
	if err != nil {
		return nil, err
	}

	return &Project{
		name: resolveProjectName(path),
		path: path,
	}, nil
}

func (p *Project) Path() string {
	return p.path
}

func (p *Project) Name() string {
	return p.name
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// resolveProjectName derives a label-safe name from the project directory.
func resolveProjectName(abs string) string {
	name := strings.ToLower(filepath.Base(abs))
	name = invalidNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".-_")
	if name == "" {
		name = "anonymous-project"
	}
	return name
}
