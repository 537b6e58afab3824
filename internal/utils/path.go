package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNonexistentPath also covers symlinks whose target is gone.
var ErrNonexistentPath = errors.New("path does not exist")

// ResolvePathStrict returns p as an absolute path with every symlink
// followed, so checks run against what docker would actually bind.
func ResolvePathStrict(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNonexistentPath, p)
	}
	return resolved, err
}

// ResolveDirStrict resolves p like ResolvePathStrict. A file resolves to the
// directory holding it, so --project may point at the pipeline config.
func ResolveDirStrict(p string) (string, error) {
	resolved, err := ResolvePathStrict(p)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return resolved, nil
	}
	return filepath.Dir(resolved), nil
}
