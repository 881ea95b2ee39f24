package sandbox

import (
	"slices"
	"time"
)

// Policy defines resource limits for Docker execution.
type Policy struct {
	MaxMemory  string        // Docker memory limit (e.g. "256m")
	MaxTimeout time.Duration // Maximum execution time
	Network    bool          // Whether network access is allowed
	Images     []string      // Allowed Docker images
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		MaxMemory:  "256m",
		MaxTimeout: 5 * time.Second,
		Network:    false,
		Images: []string{
			"python:3.12-slim",
			"python:3.13-slim",
		},
	}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	return slices.Contains(p.Images, image)
}

// clamp bounds a requested timeout by the policy maximum.
func (p Policy) clamp(d time.Duration) time.Duration {
	if d <= 0 || (p.MaxTimeout > 0 && d > p.MaxTimeout) {
		return p.MaxTimeout
	}
	return d
}
