package dockerclient

import (
	"context"
	"fmt"
	"io"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"
)

// DockerImageTransfer moves images between the daemon and a registry. auth is
// an encoded X-Registry-Auth value, empty for anonymous access.
type DockerImageTransfer interface {
	PullImage(ctx context.Context, ref, auth string) error
	PushImage(ctx context.Context, ref, auth string) error
	TagImage(ctx context.Context, src, dst string) error
}

func (dc *dockerClient) PullImage(ctx context.Context, ref, auth string) error {
	rc, err := dc.client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()

	if err := displayProgress(rc, logs.Writer()); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}

func (dc *dockerClient) PushImage(ctx context.Context, ref, auth string) error {
	rc, err := dc.client.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	defer rc.Close()

	if err := displayProgress(rc, logs.Writer()); err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	return nil
}

func (dc *dockerClient) TagImage(ctx context.Context, src, dst string) error {
	if err := dc.client.ImageTag(ctx, src, dst); err != nil {
		return fmt.Errorf("tag %s as %s: %w", src, dst, err)
	}
	return nil
}

// displayProgress renders the daemon's JSON progress stream. Errors reported
// inside the stream are returned, so a failed layer push is not mistaken for
// success.
func displayProgress(in io.Reader, out io.Writer) error {
	fd, isTerm := term.GetFdInfo(out)
	return jsonmessage.DisplayJSONMessagesStream(in, out, fd, isTerm, nil)
}
