package docker

import "time"

// Config describes how to create a Docker-backed process runner.
type Config struct {
	// Image provides the toolchain the program under test needs, e.g. a JDK.
	Image string
	// Workdir is where the host working directory is mounted inside the container.
	Workdir string
	// User is passed to the container as-is ("uid:gid"). Empty keeps the image default.
	User string
	// NetworkMode defaults to "none".
	NetworkMode string
	// SkipPull uses the local image without contacting a registry.
	SkipPull bool
}

const (
	defaultWorkdir     = "/workspace"
	defaultNetworkMode = "none"
	pullTimeout        = 10 * time.Minute
)
