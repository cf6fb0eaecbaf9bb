package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// DockerSandbox runs shell commands inside a throwaway container instead of
// the host process, implementing ShellTool's Sandbox hook. Grounded on
// cmd/sandbox's subprocess-isolation design (runner.go): a fresh execution
// environment per call, a hard wall-clock timeout, and combined
// stdout+stderr capture — generalized from "Python/Node subprocess in a
// workspace directory" to "arbitrary shell command in a container" (§11:
// docker/docker + go-connections wiring for the sandboxed shell backend).
type DockerSandbox struct {
	cli   *client.Client
	Image string
	// Ports are optional "containerPort/proto" specs (e.g. "8080/tcp")
	// exposed on the container, for sandboxed commands that start a local
	// dev server a caller wants to reach.
	Ports []string
}

// NewDockerSandbox connects to the Docker daemon using the standard
// environment variables (DOCKER_HOST, DOCKER_CERT_PATH, ...).
func NewDockerSandbox(image string) (*DockerSandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: docker sandbox: %w", err)
	}
	if image == "" {
		image = "alpine:3.20"
	}
	return &DockerSandbox{cli: cli, Image: image}, nil
}

// Run satisfies ShellTool.Sandbox's function signature: execute command in a
// fresh container, wait up to timeout, and return combined stdout+stderr.
func (d *DockerSandbox) Run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exposedPorts, portBindings, err := nat.ParsePortSpecs(d.Ports)
	if err != nil {
		return "", fmt.Errorf("orchestrator: docker sandbox: parse ports: %w", err)
	}

	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        d.Image,
			Cmd:          []string{"/bin/sh", "-c", command},
			Tty:          false,
			ExposedPorts: exposedPorts,
		},
		&container.HostConfig{
			AutoRemove:   true,
			PortBindings: portBindings,
			NetworkMode:  "bridge",
		},
		nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("orchestrator: docker sandbox: create container: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("orchestrator: docker sandbox: start container: %w", err)
	}

	statusCh, errCh := d.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("orchestrator: docker sandbox: wait: %w", err)
		}
	case <-statusCh:
	case <-ctx.Done():
		return "", fmt.Errorf("orchestrator: docker sandbox: command timed out after %s", timeout)
	}

	logs, err := d.cli.ContainerLogs(ctx, created.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("orchestrator: docker sandbox: read logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil && err != io.EOF {
		return "", fmt.Errorf("orchestrator: docker sandbox: demux logs: %w", err)
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}

// Close releases the Docker client connection.
func (d *DockerSandbox) Close() error { return d.cli.Close() }
