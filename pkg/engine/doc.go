// Package engine implements the provisioning execution core: dependency
// ordering of configuration sections, the provider coroutine runtime, and
// the session driver that flattens an ordered provider list into a single
// command/outcome stream.
//
// The engine never executes shell commands. Every command it produces is
// handed to the caller, and the caller feeds back the observed outcome
// (exit status, stdout, stderr) before the next command is produced. At most
// one command is outstanding per session at any time.
package engine
