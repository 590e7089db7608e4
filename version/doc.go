// Package version provides build version information embedding for
// pipekit applications.
//
// Version, git commit, and build time are set at compile time via
// -ldflags; builds without them fall back to the toolchain's embedded
// VCS metadata:
//
//	go build -ldflags "-X github.com/kbukum/pipekit/version.Version=1.0.0"
package version
