// Package runner executes the bootstrap sequence: external commands run
// strictly in order via os/exec, followed by the serve handoff that turns
// the entrypoint into (or attaches it to) the long-running server.
//
// Design decisions:
//   - Commands are invoked directly, never through a shell, so manifest
//     argv elements are passed to the tools verbatim.
//   - Step output streams straight through to the entrypoint's own
//     stdout/stderr — this process is a container entrypoint and its output
//     IS the container log. A bounded tail of stderr is retained so error
//     messages can quote what the failing tool said.
//   - The Runner interface exists so the Sequencer can be tested against a
//     fake without spawning processes.
//   - Exec handoff uses execve(2): on success the server inherits the PID,
//     environment and file descriptors, and the sequencer code is gone from
//     memory. This is the same contract as `exec gunicorn …` in a shell
//     entrypoint, and is what lets the process supervisor deliver lifecycle
//     signals directly to the server.
package runner
