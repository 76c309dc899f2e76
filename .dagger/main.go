// Switchboard CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/switchboard/internal/dagger"
)

// Switchboard is the main module for the switchboard CI/CD pipeline
type Switchboard struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Switchboard CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "testdata/captures/*.local"]
	source *dagger.Directory,
) *Switchboard {
	return &Switchboard{
		Source: source,
	}
}

// goContainer returns a Go container with the project source mounted.
// The binary is pure Go so CGO stays off.
//
// It is the shared foundation for tests, builds, and linting.
func (s *Switchboard) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", s.Source)
}

// Test runs the switchboard unit tests via "go test"
func (s *Switchboard) Test(ctx context.Context) (string, error) {
	return s.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestRace runs the unit tests with the race detector. The pipeline and
// worker pool are concurrent so this is the run CI gates on.
func (s *Switchboard) TestRace(ctx context.Context) (string, error) {
	return s.goContainer().
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
