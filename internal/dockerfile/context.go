package dockerfile

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/moby/go-archive"
	"github.com/moby/patternmatcher/ignorefile"
)

const ignoreFileName = ".dockerignore"

// Context tars dir as a docker build context honouring .dockerignore.
// dockerfile is the Dockerfile path relative to dir. When patched is not nil
// it replaces the Dockerfile in the stream.
func Context(dir, dockerfile string, patched []byte) (io.ReadCloser, error) {
	rel, err := ContextPath(dir, dockerfile)
	if err != nil {
		return nil, err
	}

	excludes, err := readIgnoreFile(dir)
	if err != nil {
		return nil, err
	}
	if len(excludes) > 0 {
		// the daemon needs these even when ignored
		excludes = append(excludes, "!"+rel, "!"+ignoreFileName)
	}

	rc, err := archive.TarWithOptions(dir, &archive.TarOptions{
		ExcludePatterns: excludes,
		Compression:     archive.Uncompressed,
	})
	if err != nil {
		return nil, fmt.Errorf("tar build context: %w", err)
	}

	if patched == nil {
		return rc, nil
	}

	return archive.ReplaceFileTarWrapper(rc, map[string]archive.TarModifierFunc{
		rel: func(_ string, h *tar.Header, _ io.Reader) (*tar.Header, []byte, error) {
			if h == nil {
				h = &tar.Header{Name: rel, Mode: 0o644, Typeflag: tar.TypeReg, ModTime: time.Now()}
			}
			h.Size = int64(len(patched))
			return h, patched, nil
		},
	}), nil
}

// ContextPath maps a Dockerfile path, absolute or relative to dir, to its
// name inside the build context.
func ContextPath(dir, dockerfile string) (string, error) {
	path := dockerfile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", fmt.Errorf("locate dockerfile: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dockerfile %s is outside the build context %s", dockerfile, dir)
	}
	return filepath.ToSlash(rel), nil
}

func readIgnoreFile(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ignoreFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ignoreFileName, err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ignoreFileName, err)
	}
	logs.Debugf("%s: %d exclude patterns", ignoreFileName, len(patterns))
	return patterns, nil
}
