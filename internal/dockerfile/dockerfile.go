// Package dockerfile patches the project's Dockerfile and packs the build
// context sent to the daemon.
package dockerfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/0xa1bed0/cipipe/internal/utils"
)

type Dockerfile []string

// Parse splits content into lines. A trailing newline does not produce an
// empty last line.
func Parse(content string) Dockerfile {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return Dockerfile{}
	}
	return strings.Split(content, "\n")
}

// Read loads the Dockerfile at path.
func Read(path string) (Dockerfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dockerfile: %w", err)
	}
	return Parse(string(data)), nil
}

func (df Dockerfile) String() string {
	var b strings.Builder
	for _, line := range df {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WithLabels returns a copy of df with one LABEL instruction per entry
// appended in key order. Existing lines are left as they are.
func (df Dockerfile) WithLabels(labels map[string]string) Dockerfile {
	out := make(Dockerfile, 0, len(df)+len(labels))
	out = append(out, df...)
	for _, k := range utils.SortedKeys(labels) {
		out = append(out, fmt.Sprintf("LABEL %s=%s", k, quoteLabelValue(labels[k])))
	}
	return out
}

// Patch appends labels to content. Without labels content is returned as is.
func Patch(content string, labels map[string]string) string {
	if len(labels) == 0 {
		return content
	}
	return Parse(content).WithLabels(labels).String()
}

func quoteLabelValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\"'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
