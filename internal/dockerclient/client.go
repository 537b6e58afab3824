package dockerclient

import (
	"context"
	"log/slog"

	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/docker/go-sdk/client"
)

//go:generate mockgen -destination=mocks/mock_dockerclient.go -package=mocks github.com/0xa1bed0/cipipe/internal/dockerclient DockerClient

type dockerClient struct {
	client client.SDKClient
}

// DockerClient is everything the pipeline jobs need from the daemon.
type DockerClient interface {
	DockerImageBuilder
	DockerImageTransfer
	DockerContainerRunner
	ImageExists(ctx context.Context, ref string) bool
	Close() error
}

func NewDockerClient(ctx context.Context) (DockerClient, error) {
	c, err := client.New(
		ctx,
		client.WithLogger(slog.New(slog.NewTextHandler(logs.DebugWriter(), &slog.HandlerOptions{}))),
	)
	if err != nil {
		return nil, err
	}

	return &dockerClient{
		client: c,
	}, nil
}

func (dc *dockerClient) ImageExists(ctx context.Context, ref string) bool {
	_, err := dc.client.ImageInspect(ctx, ref)

	return err == nil
}

func (dc *dockerClient) Close() error {
	return dc.client.Close()
}
