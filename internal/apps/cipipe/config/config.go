package appconfig

import (
	"os"
	"path/filepath"
)

// ConfigBasePath is the per-user directory holding the state database and
// run logs.
func ConfigBasePath() string {
	if dir := os.Getenv("CIPIPE_HOME"); dir != "" {
		return dir
	}
	homedir, err := os.UserHomeDir()
	if err != nil {
		homedir = os.TempDir()
	}
	return filepath.Join(homedir, ".config", "cipipe")
}

func StateDBFile() string {
	return filepath.Join(ConfigBasePath(), "state.db")
}

func logsPath() string {
	return filepath.Join(ConfigBasePath(), "logs")
}

// RunLogPath returns the full log path for a run and makes sure its
// directory exists.
func RunLogPath(runID string) (string, error) {
	dir := logsPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "run-"+runID+".log"), nil
}

// DefaultTagCacheDir is used when the pipeline config leaves cache.dir empty.
func DefaultTagCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "cipipe")
	}
	return filepath.Join(ConfigBasePath(), "cache")
}
