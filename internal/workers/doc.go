/*
Package workers provides utilities for determining optimal worker pool sizes
in containerized environments.

# Overview

When running Go applications in containers (Docker, Kubernetes, etc.), the
number of available CPUs may be limited by cgroup constraints. While Go 1.19+
automatically sets GOMAXPROCS based on container CPU limits, the commonly used
runtime.NumCPU() function still returns the host machine's CPU count.

This package provides helper functions that use GOMAXPROCS to determine
appropriate worker counts for different types of workloads, ensuring the
compression service respects container resource limits.

# The Problem

Consider a Kubernetes pod with a CPU limit of 2 cores running on a 64-core node:

	// Wrong: Returns 64 (host CPUs), ignores container limit
	workers := runtime.NumCPU()

	// Correct: Returns 2 (respects container limit in Go 1.19+)
	workers := runtime.GOMAXPROCS(0)

Running 64 concurrent FFmpeg encodes when you only have 2 CPUs available leads
to CPU throttling by the container runtime, poor performance, and increased
latency for every job in the pool.

# Basic Usage

The package provides task-specific helper functions:

	import "github.com/wbt-web-support/video-compress/internal/workers"

	// For encode slots (ffmpeg already parallelizes internally)
	// Uses 1 worker per two available CPUs
	numWorkers := workers.ForEncoding(8) // max 8 workers

	// For I/O-bound tasks (URL downloads, CDN uploads)
	// Uses 2 workers per available CPU
	numWorkers := workers.ForIO(16) // max 16 workers

# Custom Configuration

For fine-grained control, use the Count function directly:

	// 3 workers per CPU, maximum of 24
	numWorkers := workers.Count(3.0, 24)

	// No maximum (use 0)
	numWorkers := workers.Count(2.0, 0)

# Environment Variable Override

All functions respect the JOB_WORKERS environment variable, allowing operators
to override the automatic calculation:

	# In Kubernetes deployment
	env:
	- name: JOB_WORKERS
	  value: "4"

This is useful for fine-tuning throughput on shared hosts, debugging resource
issues, or temporarily limiting concurrency.

# Workload Types

Different workloads benefit from different worker-to-CPU ratios.

Encode Slots (multiplier: 0.5): a single FFmpeg encode already spreads
across cores with -threads 0, so running one job per core oversubscribes
the node. One slot per two CPUs keeps individual encodes fast:

	workers := workers.ForEncoding(8)

I/O-Bound Tasks (multiplier: 2.0): downloads and CDN uploads spend most of
their time waiting on the network, so workers beyond the CPU count still do
useful work:

	workers := workers.ForIO(16)

# Thread Safety

All functions in this package are safe for concurrent use. They read from
runtime.GOMAXPROCS and environment variables, which are themselves thread-safe.

# Go Version Requirements

This package relies on Go 1.19+ behavior where GOMAXPROCS is automatically
set based on container CPU limits. On earlier Go versions, GOMAXPROCS defaults
to runtime.NumCPU(), and the container-awareness benefits are lost.
*/
package workers
