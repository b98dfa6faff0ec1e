package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRunner returns an ExecRunner with output captured into buffers,
// so passing tests stay quiet and output can be asserted on.
func newTestRunner() (*ExecRunner, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &ExecRunner{Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

// TestExecRunner_Success verifies exit code 0 and stdout streaming.
// Like the rest of these tests, it shells out to sh, which is a safe
// assumption on the Linux containers this tool targets.
func TestExecRunner_Success(t *testing.T) {
	r, stdout, _ := newTestRunner()

	code, err := r.Run(context.Background(), Spec{Argv: []string{"sh", "-c", "echo booted"}})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "booted\n", stdout.String())
}

// TestExecRunner_ExitCode verifies that the command's own exit code is
// propagated and reflected in the error message.
func TestExecRunner_ExitCode(t *testing.T) {
	r, _, _ := newTestRunner()

	code, err := r.Run(context.Background(), Spec{Argv: []string{"sh", "-c", "exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, err.Error(), "exited with code 3")
}

// TestExecRunner_StderrTail verifies that the failing command's last
// stderr line is quoted in the error while still streaming to the
// stderr writer.
func TestExecRunner_StderrTail(t *testing.T) {
	r, _, stderr := newTestRunner()

	code, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo some progress >&2; echo relation does not exist >&2; exit 1"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "relation does not exist")
	// Full output still reached the stream.
	assert.Contains(t, stderr.String(), "some progress")
}

// TestExecRunner_MissingBinary verifies the start-failure path: no exit
// code exists, so -1 is returned.
func TestExecRunner_MissingBinary(t *testing.T) {
	r, _, _ := newTestRunner()

	code, err := r.Run(context.Background(), Spec{Argv: []string{"definitely-not-a-real-binary-42"}})
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.Contains(t, err.Error(), "starting definitely-not-a-real-binary-42")
}

// TestExecRunner_Timeout verifies that a step timeout kills the command
// and reports the timeout rather than a raw kill status.
func TestExecRunner_Timeout(t *testing.T) {
	r, _, _ := newTestRunner()

	start := time.Now()
	code, err := r.Run(context.Background(), Spec{
		Argv:    []string{"sh", "-c", "sleep 30"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.Contains(t, err.Error(), "timed out after")
	assert.Less(t, time.Since(start), 10*time.Second)
}

// TestExecRunner_EnvInjection verifies that Spec.Env reaches the child
// process on top of the inherited environment.
func TestExecRunner_EnvInjection(t *testing.T) {
	r, stdout, _ := newTestRunner()

	code, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "printf '%s' \"$BOOT_TOKEN\""},
		Env:  map[string]string{"BOOT_TOKEN": "abc123"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "abc123", stdout.String())
}

// TestExecRunner_Dir verifies the working directory is honored.
func TestExecRunner_Dir(t *testing.T) {
	r, stdout, _ := newTestRunner()
	dir := t.TempDir()

	_, err := r.Run(context.Background(), Spec{Argv: []string{"pwd"}, Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), dir)
}

// TestExecRunner_EmptyCommand verifies the guard against an empty argv.
func TestExecRunner_EmptyCommand(t *testing.T) {
	r, _, _ := newTestRunner()

	code, err := r.Run(context.Background(), Spec{})
	require.Error(t, err)
	assert.Equal(t, -1, code)
}

// TestMergeEnv verifies override and append semantics without duplicates.
func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "DEBUG=false"}

	merged := MergeEnv(base, map[string]string{
		"DEBUG":                     "true",
		"DJANGO_SUPERUSER_PASSWORD": "hunter2",
	})

	assert.Contains(t, merged, "PATH=/usr/bin")
	assert.Contains(t, merged, "HOME=/root")
	assert.Contains(t, merged, "DEBUG=true")
	assert.Contains(t, merged, "DJANGO_SUPERUSER_PASSWORD=hunter2")
	assert.NotContains(t, merged, "DEBUG=false")
	assert.Len(t, merged, 4)

	// No overrides: the base slice passes through untouched.
	assert.Equal(t, base, MergeEnv(base, nil))
}

// TestTailWriter verifies the bounded-tail behavior.
func TestTailWriter(t *testing.T) {
	w := newTailWriter(8)

	_, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", w.String())

	_, err = w.Write([]byte("ghijkl"))
	require.NoError(t, err)
	// Only the last 8 bytes survive.
	assert.Equal(t, "efghijkl", w.String())
}

// TestLastLine verifies extraction of the final non-empty line.
func TestLastLine(t *testing.T) {
	assert.Equal(t, "error: boom", lastLine("progress\nerror: boom\n"))
	assert.Equal(t, "only", lastLine("only"))
	assert.Equal(t, "end", lastLine("start\n\nend\n\n"))
	assert.Equal(t, "", lastLine("\n\n"))
}
