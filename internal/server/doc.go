// Package server provides the HTTP surface: lifecycle management for the
// listener (non-blocking start, graceful shutdown, signal handling) and
// the REST handlers over the finance and call pipelines.
package server
