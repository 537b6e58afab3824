package dockerclient

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/build"
	sdkimage "github.com/docker/go-sdk/image"
)

// BuildRequest is one `docker build`.
type BuildRequest struct {
	// Context is a tar stream of the build context.
	Context io.Reader
	// Dockerfile is the path of the Dockerfile inside Context.
	Dockerfile string
	Tag        string
	CacheFrom  []string
	BuildArgs  map[string]string
}

type DockerImageBuilder interface {
	BuildImage(ctx context.Context, req BuildRequest) (string, error)
}

func (dc *dockerClient) BuildImage(ctx context.Context, req BuildRequest) (string, error) {
	if req.Context == nil {
		return "", fmt.Errorf("image build: no build context")
	}

	buildTag, err := sdkimage.Build(
		ctx,
		req.Context,
		req.Tag,
		sdkimage.WithBuildClient(dc.client),
		sdkimage.WithBuildOptions(buildOptions(req)),
	)
	if err != nil {
		return "", fmt.Errorf("image build: %w", err)
	}

	return buildTag, nil
}

func buildOptions(req BuildRequest) build.ImageBuildOptions {
	dockerfile := req.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	var args map[string]*string
	if len(req.BuildArgs) > 0 {
		args = make(map[string]*string, len(req.BuildArgs))
		for k, v := range req.BuildArgs {
			args[k] = &v
		}
	}

	return build.ImageBuildOptions{
		Tags:        []string{req.Tag},
		Dockerfile:  dockerfile,
		CacheFrom:   req.CacheFrom,
		BuildArgs:   args,
		Remove:      true, // remove intermediate containers
		ForceRemove: true,
	}
}
