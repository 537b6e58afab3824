package dockerclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	dockerMaxNameLen = 255
	shortLen         = 6       // length of the hash-like suffix
	tailMarker       = "tail-" // visible indicator that we trimmed the left side
)

// ErrNonZeroExit matches every ExitError.
var ErrNonZeroExit = errors.New("container exited with non-zero status")

type ExitError struct {
	Code int64
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("container exited with status %d", e.Code)
}

func (e *ExitError) Is(target error) bool {
	return target == ErrNonZeroExit
}

// RunSpec is one `docker run --rm` invocation.
type RunSpec struct {
	Image   string
	Cmd     []string
	Env     []string
	Binds   []string
	WorkDir string
	// Name is a prefix; a unique suffix is always added.
	Name string

	Stdout io.Writer
	Stderr io.Writer
}

type DockerContainerRunner interface {
	RunContainer(ctx context.Context, spec RunSpec) (int64, error)
}

// RunContainer emulates:
//
//	docker run --rm -v ...binds... -w WORKDIR -e ...env... IMAGE CMD...
//
// without a TTY. Output is demultiplexed into spec.Stdout and spec.Stderr. A
// non-zero exit code is returned as an *ExitError together with the code.
// Cancelling ctx kills the container; it is removed in every case.
func (dc *dockerClient) RunContainer(ctx context.Context, spec RunSpec) (int64, error) {
	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		WorkingDir:   spec.WorkDir,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostCfg := &container.HostConfig{
		Binds: spec.Binds,
	}

	name := spec.Name
	if name == "" {
		name = "cipipe"
	}
	created, err := dc.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, resolveContainerName(name))
	if err != nil {
		return 0, fmt.Errorf("container create: %w", err)
	}
	id := created.ID
	logs.Debugf("created container %s from %s", id, spec.Image)

	defer func() {
		err := dc.client.ContainerRemove(context.Background(), id, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		})
		if err != nil {
			logs.Warnf("remove container %s: %v", id, err)
		}
	}()

	// Wait BEFORE start so a fast exit is not missed.
	statusCh, errCh := dc.client.ContainerWait(ctx, id, container.WaitConditionNextExit)

	if err := dc.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("container start: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = dc.client.ContainerKill(context.Background(), id, "SIGKILL")
	})
	defer stop()

	stdout, stderr := spec.Stdout, spec.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = stdout
	}

	logsRC, err := dc.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return 0, fmt.Errorf("container logs: %w", err)
	}
	defer logsRC.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logsRC); err != nil && ctx.Err() == nil {
		logs.Warnf("container %s output stream ended early: %v", id, err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("container wait: %w", err)
		}
		return 0, errors.New("container wait ended without a status")
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return st.StatusCode, fmt.Errorf("container wait: %s", st.Error.Message)
		}
		if st.StatusCode != 0 {
			return st.StatusCode, &ExitError{Code: st.StatusCode}
		}
		return 0, nil
	}
}

// resolveContainerName returns "<prefix>-<short>", trimming prefix from the
// LEFT if needed and marking it with "tail-" to show it was trimmed.
func resolveContainerName(prefix string) string {
	short := shortHash(prefix+
		"|"+time.Now().UTC().Format(time.RFC3339Nano)+
		"|"+procTag(),
		shortLen)

	need := len(prefix) + 1 + len(short)
	if need <= dockerMaxNameLen {
		return prefix + "-" + short
	}

	maxPrefix := dockerMaxNameLen - 1 - len(short)
	keep := maxPrefix - len(tailMarker)
	if keep < 1 {
		keep = 1
	}
	if keep > len(prefix) {
		keep = len(prefix)
	}

	return tailMarker + prefix[len(prefix)-keep:] + "-" + short
}

func shortHash(s string, n int) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:n]
}

func procTag() string {
	pid := os.Getpid()
	return hex.EncodeToString([]byte{
		byte(pid >> 24), byte(pid >> 16), byte(pid >> 8), byte(pid),
	})
}
