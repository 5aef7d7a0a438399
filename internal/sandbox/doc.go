// Package sandbox runs untrusted programs as isolated child processes.
//
// Every invocation starts from an empty environment plus an explicit
// allowlist, runs in its own process group, and is bounded by a wall-clock
// timeout, an address-space and CPU ceiling, and an output cap. When any
// bound trips, the whole process group is killed and no partial output is
// trusted.
package sandbox
